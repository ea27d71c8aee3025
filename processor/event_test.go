package processor

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func objectEvent(id string, typ EventType, object string) *Event {
	evt := &Event{ID: id, Type: typ, Created: 1759320000}
	if object != "" {
		evt.Data.Object = json.RawMessage(object)
	}
	return evt
}

func TestEventSubscription(t *testing.T) {
	evt := objectEvent("evt_123", EventSubscriptionUpdated, `{
		"id": "sub_1",
		"object": "subscription",
		"customer": "cus_1",
		"status": "trialing",
		"cancel_at_period_end": true,
		"trial_end": 1759924800,
		"metadata": {"tier": "cme_annual"},
		"items": {"object": "list", "data": [{"id": "si_1", "price": {"id": "price_annual"}, "current_period_start": 1759320000, "current_period_end": 1790856000}]}
	}`)

	if !evt.CreatedAt().Equal(time.Unix(1759320000, 0)) {
		t.Errorf("CreatedAt = %v", evt.CreatedAt())
	}

	sub, err := evt.Subscription()
	if err != nil {
		t.Fatalf("Subscription: %v", err)
	}
	if sub.ID != "sub_1" || sub.Customer != "cus_1" || sub.Metadata["tier"] != "cme_annual" {
		t.Errorf("subscription = %+v", sub)
	}
	if got := sub.PriceIDs(); len(got) != 1 || got[0] != "price_annual" {
		t.Errorf("PriceIDs = %v", got)
	}

	p := sub.Period()
	if p.End == nil || p.End.Unix() != 1790856000 {
		t.Errorf("period end from items = %v", p.End)
	}
	if p.Start == nil || p.Start.Unix() != 1759320000 {
		t.Errorf("period start from items = %v", p.Start)
	}
	if p.TrialEnd == nil || p.TrialEnd.Unix() != 1759924800 || !p.CancelAtPeriodEnd {
		t.Errorf("period = %+v", p)
	}
	if sub.SubscriptionStatus() != "trialing" {
		t.Errorf("status = %s", sub.SubscriptionStatus())
	}
}

func TestEventCheckoutSession(t *testing.T) {
	evt := objectEvent("evt_2", EventCheckoutCompleted, `{
		"id": "cs_1",
		"object": "checkout.session",
		"mode": "subscription",
		"payment_status": "paid",
		"client_reference_id": "u1",
		"customer": "cus_1",
		"subscription": "sub_1"
	}`)

	cs, err := evt.CheckoutSession()
	if err != nil {
		t.Fatalf("CheckoutSession: %v", err)
	}
	if cs.Mode != ModeSubscription || cs.PaymentStatus != "paid" {
		t.Errorf("mode/status = %s/%s", cs.Mode, cs.PaymentStatus)
	}
	if cs.Customer != "cus_1" || cs.Subscription != "sub_1" || cs.UserID() != "u1" {
		t.Errorf("session = %+v", cs)
	}
}

func TestEventObjectMalformed(t *testing.T) {
	if _, err := objectEvent("evt_1", EventInvoicePaymentFailed, "").Invoice(); !errors.Is(err, ErrMalformedEvent) {
		t.Errorf("missing data object error = %v", err)
	}
	if _, err := objectEvent("evt_1", EventSubscriptionUpdated, `[1, 2]`).Subscription(); !errors.Is(err, ErrMalformedEvent) {
		t.Errorf("non-object data error = %v", err)
	}
}

func TestCheckoutSessionUserID(t *testing.T) {
	s := &CheckoutSession{ClientReferenceID: "u1", Metadata: map[string]string{"user_id": "u2"}}
	if s.UserID() != "u1" {
		t.Errorf("UserID = %s, want client reference", s.UserID())
	}
	s.ClientReferenceID = ""
	if s.UserID() != "u2" {
		t.Errorf("UserID = %s, want metadata fallback", s.UserID())
	}
}

func TestInvoiceSubscriptionID(t *testing.T) {
	evt := objectEvent("evt_1", EventInvoicePaymentFailed, `{
		"id":"in_1","object":"invoice","customer":"cus_1",
		"parent":{"subscription_details":{"subscription":"sub_9"}}}`)

	inv, err := evt.Invoice()
	if err != nil {
		t.Fatalf("Invoice: %v", err)
	}
	if inv.Customer != "cus_1" || inv.SubscriptionID() != "sub_9" {
		t.Errorf("invoice = %+v, want subscription sub_9", inv)
	}
}
