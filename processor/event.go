// Package processor decodes and authenticates payment processor webhook
// events and looks up processor objects the events refer to. Payloads are
// Stripe events, verified and decoded with stripe-go; the reconciler works
// on the narrow views defined here.
package processor

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v82"

	"github.com/xraph/accredit/subscription"
)

// EventType names a processor event.
type EventType string

// Event types the reconciler acts on.
const (
	EventCheckoutCompleted    EventType = "checkout.session.completed"
	EventSubscriptionUpdated  EventType = "customer.subscription.updated"
	EventSubscriptionDeleted  EventType = "customer.subscription.deleted"
	EventInvoicePaymentFailed EventType = "invoice.payment_failed"
)

// ErrMalformedEvent is returned when a payload is not a usable event.
var ErrMalformedEvent = errors.New("processor: malformed event")

// Event is the envelope of a webhook delivery.
type Event struct {
	ID       string    `json:"id"`
	Type     EventType `json:"type"`
	Created  int64     `json:"created"`
	Livemode bool      `json:"livemode"`
	Data     struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// CreatedAt returns the event creation time.
func (e *Event) CreatedAt() time.Time {
	return time.Unix(e.Created, 0).UTC()
}

func (e *Event) decode(v any) error {
	if len(e.Data.Object) == 0 {
		return fmt.Errorf("%w: event %s has no data object", ErrMalformedEvent, e.ID)
	}
	if err := json.Unmarshal(e.Data.Object, v); err != nil {
		return fmt.Errorf("%w: event %s: %v", ErrMalformedEvent, e.ID, err)
	}
	return nil
}

// CheckoutSession decodes the event object as a checkout session.
func (e *Event) CheckoutSession() (*CheckoutSession, error) {
	var s stripe.CheckoutSession
	if err := e.decode(&s); err != nil {
		return nil, err
	}
	return checkoutSessionFromStripe(&s), nil
}

// Subscription decodes the event object as a subscription.
func (e *Event) Subscription() (*Subscription, error) {
	var s stripe.Subscription
	if err := e.decode(&s); err != nil {
		return nil, err
	}
	return subscriptionFromStripe(&s), nil
}

// Invoice decodes the event object as an invoice.
func (e *Event) Invoice() (*Invoice, error) {
	var inv stripe.Invoice
	if err := e.decode(&inv); err != nil {
		return nil, err
	}
	return invoiceFromStripe(&inv), nil
}

// Checkout session modes.
const (
	ModeSubscription = string(stripe.CheckoutSessionModeSubscription)
	ModePayment      = string(stripe.CheckoutSessionModePayment)
)

// CheckoutSession is a completed checkout.
type CheckoutSession struct {
	ID                string            `json:"id"`
	Mode              string            `json:"mode,omitempty"`
	Customer          string            `json:"customer,omitempty"`
	Subscription      string            `json:"subscription,omitempty"`
	ClientReferenceID string            `json:"client_reference_id,omitempty"`
	PaymentStatus     string            `json:"payment_status,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

// UserID returns the user the checkout was started for.
func (s *CheckoutSession) UserID() string {
	if s.ClientReferenceID != "" {
		return s.ClientReferenceID
	}
	return s.Metadata["user_id"]
}

// Price is a processor price reference.
type Price struct {
	ID string `json:"id"`
}

// SubscriptionItem is one priced line of a subscription. Billing periods
// are reported per item.
type SubscriptionItem struct {
	Price              Price `json:"price"`
	CurrentPeriodStart int64 `json:"current_period_start,omitempty"`
	CurrentPeriodEnd   int64 `json:"current_period_end,omitempty"`
}

// Subscription is a processor subscription object.
type Subscription struct {
	ID                string            `json:"id"`
	Customer          string            `json:"customer,omitempty"`
	Status            string            `json:"status,omitempty"`
	CancelAtPeriodEnd bool              `json:"cancel_at_period_end,omitempty"`
	TrialEnd          *int64            `json:"trial_end,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
	Items             struct {
		Data []SubscriptionItem `json:"data"`
	} `json:"items"`
}

// PriceIDs returns the price ids of all items.
func (s *Subscription) PriceIDs() []string {
	out := make([]string, 0, len(s.Items.Data))
	for _, it := range s.Items.Data {
		if it.Price.ID != "" {
			out = append(out, it.Price.ID)
		}
	}
	return out
}

// Period returns the current billing period of the first item that
// reports one.
func (s *Subscription) Period() subscription.Period {
	var start, end int64
	for _, it := range s.Items.Data {
		if it.CurrentPeriodEnd != 0 {
			start, end = it.CurrentPeriodStart, it.CurrentPeriodEnd
			break
		}
	}

	p := subscription.Period{
		Start:             unixPtr(start),
		End:               unixPtr(end),
		CancelAtPeriodEnd: s.CancelAtPeriodEnd,
	}
	if s.TrialEnd != nil {
		p.TrialEnd = unixPtr(*s.TrialEnd)
	}
	return p
}

// SubscriptionStatus returns the status as a subscription.Status.
func (s *Subscription) SubscriptionStatus() subscription.Status {
	return subscription.Status(s.Status)
}

// Invoice is a processor invoice object.
type Invoice struct {
	ID           string
	Customer     string
	Subscription string
}

// SubscriptionID returns the subscription the invoice bills.
func (inv *Invoice) SubscriptionID() string {
	return inv.Subscription
}

// LineItem is one purchased line of a checkout session.
type LineItem struct {
	ID       string `json:"id"`
	Quantity int64  `json:"quantity"`
	Price    Price  `json:"price"`
}

func checkoutSessionFromStripe(s *stripe.CheckoutSession) *CheckoutSession {
	out := &CheckoutSession{
		ID:                s.ID,
		Mode:              string(s.Mode),
		ClientReferenceID: s.ClientReferenceID,
		PaymentStatus:     string(s.PaymentStatus),
		Metadata:          s.Metadata,
	}
	if s.Customer != nil {
		out.Customer = s.Customer.ID
	}
	if s.Subscription != nil {
		out.Subscription = s.Subscription.ID
	}
	return out
}

func subscriptionFromStripe(s *stripe.Subscription) *Subscription {
	out := &Subscription{
		ID:                s.ID,
		Status:            string(s.Status),
		CancelAtPeriodEnd: s.CancelAtPeriodEnd,
		Metadata:          s.Metadata,
	}
	if s.Customer != nil {
		out.Customer = s.Customer.ID
	}
	if s.TrialEnd != 0 {
		trialEnd := s.TrialEnd
		out.TrialEnd = &trialEnd
	}
	if s.Items != nil {
		for _, it := range s.Items.Data {
			if it == nil {
				continue
			}
			item := SubscriptionItem{
				CurrentPeriodStart: it.CurrentPeriodStart,
				CurrentPeriodEnd:   it.CurrentPeriodEnd,
			}
			if it.Price != nil {
				item.Price.ID = it.Price.ID
			}
			out.Items.Data = append(out.Items.Data, item)
		}
	}
	return out
}

func invoiceFromStripe(inv *stripe.Invoice) *Invoice {
	out := &Invoice{ID: inv.ID}
	if inv.Customer != nil {
		out.Customer = inv.Customer.ID
	}
	if inv.Parent != nil && inv.Parent.SubscriptionDetails != nil && inv.Parent.SubscriptionDetails.Subscription != nil {
		out.Subscription = inv.Parent.SubscriptionDetails.Subscription.ID
	}
	return out
}

func lineItemFromStripe(li *stripe.LineItem) LineItem {
	out := LineItem{ID: li.ID, Quantity: li.Quantity}
	if li.Price != nil {
		out.Price.ID = li.Price.ID
	}
	return out
}

func unixPtr(sec int64) *time.Time {
	if sec == 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}
