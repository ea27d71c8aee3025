package accredit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xraph/accredit/entitlement"
	"github.com/xraph/accredit/plan"
	"github.com/xraph/accredit/processor"
	"github.com/xraph/accredit/store"
	"github.com/xraph/accredit/subscription"
	"github.com/xraph/accredit/types"
)

// ReconcileOutcome describes what reconciling an event did.
type ReconcileOutcome string

const (
	OutcomeApplied   ReconcileOutcome = "applied"
	OutcomeDuplicate ReconcileOutcome = "duplicate"
	OutcomeIgnored   ReconcileOutcome = "ignored"
	OutcomeNoAccount ReconcileOutcome = "no_account"
)

// ReconcileResult reports the effect of one processor event.
type ReconcileResult struct {
	EventID   string              `json:"event_id"`
	EventType processor.EventType `json:"event_type"`
	Outcome   ReconcileOutcome    `json:"outcome"`
	UserID    string              `json:"user_id,omitempty"`
	Tier      entitlement.Tier    `json:"tier,omitempty"`

	// Degraded is set when a processor lookup failed and the event was
	// applied with partial data.
	Degraded bool `json:"degraded,omitempty"`
}

func newResult(evt *processor.Event, outcome ReconcileOutcome) *ReconcileResult {
	return &ReconcileResult{EventID: evt.ID, EventType: evt.Type, Outcome: outcome}
}

type tierChange struct {
	userID   string
	from, to entitlement.Tier
}

// HandleWebhook authenticates a raw webhook delivery and reconciles it.
func (e *Engine) HandleWebhook(ctx context.Context, payload []byte, signature string) (*ReconcileResult, error) {
	if e.webhookSecret == "" {
		return nil, fmt.Errorf("%w: no signing secret configured", ErrWebhookSignature)
	}

	evt, err := processor.ConstructEvent(payload, signature, e.webhookSecret, e.webhookTolerance)
	if errors.Is(err, processor.ErrInvalidSignature) {
		return nil, fmt.Errorf("%w: %w", ErrWebhookSignature, err)
	}
	if err != nil {
		return nil, err
	}
	return e.ReconcileEvent(ctx, evt)
}

// ReconcileEvent applies a processor event to the affected account. Each
// event id is applied at most once; replays report OutcomeDuplicate.
func (e *Engine) ReconcileEvent(ctx context.Context, evt *processor.Event) (*ReconcileResult, error) {
	if evt == nil || evt.ID == "" {
		return nil, ValidationError{Field: "event", Message: "id is required"}
	}

	start := time.Now()
	e.plugins.EmitWebhookReceived(ctx, evt.ID, string(evt.Type))

	var (
		res *ReconcileResult
		err error
	)
	switch evt.Type {
	case processor.EventCheckoutCompleted:
		res, err = e.reconcileCheckout(ctx, evt)
	case processor.EventSubscriptionUpdated, processor.EventSubscriptionDeleted:
		res, err = e.reconcileSubscription(ctx, evt)
	case processor.EventInvoicePaymentFailed:
		res, err = e.reconcilePaymentFailed(ctx, evt)
	default:
		res = newResult(evt, OutcomeIgnored)
	}

	elapsed := time.Since(start)
	var outcome string
	if res != nil {
		outcome = string(res.Outcome)
	}
	e.plugins.EmitWebhookProcessed(ctx, evt.ID, string(evt.Type), outcome, elapsed, err)

	if err != nil {
		e.logger.Error("webhook reconciliation failed",
			"event_id", evt.ID,
			"event_type", evt.Type,
			"error", err,
		)
		return nil, err
	}

	e.logger.Info("webhook reconciled",
		"event_id", evt.ID,
		"event_type", evt.Type,
		"outcome", res.Outcome,
		"user_id", res.UserID,
		"degraded", res.Degraded,
		"elapsed", elapsed,
	)
	return res, nil
}

// ──────────────────────────────────────────────────
// Checkout
// ──────────────────────────────────────────────────

func (e *Engine) reconcileCheckout(ctx context.Context, evt *processor.Event) (*ReconcileResult, error) {
	sess, err := evt.CheckoutSession()
	if err != nil {
		return nil, err
	}

	userID := sess.UserID()
	if userID == "" {
		e.logger.Warn("checkout has no user reference",
			"event_id", evt.ID,
			"session_id", sess.ID,
		)
		return newResult(evt, OutcomeIgnored), nil
	}

	switch sess.Mode {
	case processor.ModeSubscription:
		return e.checkoutSubscription(ctx, evt, sess, userID)
	case processor.ModePayment:
		return e.checkoutPayment(ctx, evt, sess, userID)
	default:
		e.logger.Warn("checkout mode not handled",
			"event_id", evt.ID,
			"mode", sess.Mode,
		)
		return newResult(evt, OutcomeIgnored), nil
	}
}

func (e *Engine) checkoutSubscription(ctx context.Context, evt *processor.Event, sess *processor.CheckoutSession, userID string) (*ReconcileResult, error) {
	sub, lookupErr := e.lookupSubscription(ctx, sess.Subscription)
	if lookupErr != nil {
		e.logger.Warn("subscription lookup failed, continuing without period",
			"event_id", evt.ID,
			"user_id", userID,
			"error", lookupErr,
		)
	}

	metadata := make(map[string]string, len(sess.Metadata))
	var prices []string
	if sub != nil {
		for k, v := range sub.Metadata {
			metadata[k] = v
		}
		prices = sub.PriceIDs()
	}
	for k, v := range sess.Metadata {
		metadata[k] = v
	}

	p, known := e.catalog.Resolve(prices, metadata)
	var kind subscription.Kind
	if known {
		kind, known = p.SubscriptionKind()
	}
	if !known {
		e.logger.Warn("checkout plan not recognized",
			"event_id", evt.ID,
			"user_id", userID,
			"prices", prices,
		)
		return newResult(evt, OutcomeIgnored), nil
	}

	res, err := e.applyEvent(ctx, evt, userID, true, func(acct *entitlement.Account) bool {
		if acct.CustomerID == "" {
			acct.CustomerID = sess.Customer
		}

		state := acct.Subscription(kind)
		if sub != nil {
			state.Apply(sub.ID, p.Slug, sub.SubscriptionStatus(), sub.Period())
		} else {
			started := evt.CreatedAt()
			state.Apply(sess.Subscription, p.Slug, subscription.StatusActive, subscription.Period{Start: &started})
		}
		state.DerivedFrom = ""

		mirrorAnnual(acct, kind)
		return true
	})
	if res != nil {
		res.Degraded = lookupErr != nil
	}
	return res, err
}

func (e *Engine) checkoutPayment(ctx context.Context, evt *processor.Event, sess *processor.CheckoutSession, userID string) (*ReconcileResult, error) {
	qty, degraded := e.purchasedQuantity(ctx, evt, sess)
	amount := types.Whole(qty)

	res, err := e.applyEvent(ctx, evt, userID, true, func(acct *entitlement.Account) bool {
		if acct.CustomerID == "" {
			acct.CustomerID = sess.Customer
		}
		acct.CreditsAvailable = acct.CreditsAvailable.Add(amount)
		return true
	})
	if err != nil {
		return nil, err
	}

	res.Degraded = degraded
	if res.Outcome == OutcomeApplied {
		e.plugins.EmitCreditsPurchased(ctx, userID, amount)
	}
	return res, nil
}

// purchasedQuantity returns the number of credits bought in a payment
// checkout: the "credits" or "quantity" metadata, else the sum of line item
// quantities, else 1.
func (e *Engine) purchasedQuantity(ctx context.Context, evt *processor.Event, sess *processor.CheckoutSession) (int64, bool) {
	for _, key := range []string{"credits", "quantity"} {
		raw, ok := sess.Metadata[key]
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err == nil && n > 0 {
			return n, false
		}
		e.logger.Warn("ignoring invalid checkout quantity",
			"event_id", evt.ID,
			"key", key,
			"value", raw,
		)
	}

	if e.processor == nil {
		return 1, false
	}

	items, err := e.processor.ListLineItems(ctx, sess.ID)
	e.plugins.EmitProcessorLookup(ctx, "list_line_items", err == nil, err)
	if err != nil {
		e.logger.Warn("line item lookup failed, crediting one",
			"event_id", evt.ID,
			"error", &ExternalServiceError{Op: "list line items " + sess.ID, Err: err},
		)
		return 1, true
	}

	var total int64
	for _, it := range items {
		total += it.Quantity
	}
	if total <= 0 {
		return 1, false
	}
	return total, false
}

func (e *Engine) lookupSubscription(ctx context.Context, subscriptionID string) (*processor.Subscription, error) {
	const op = "get subscription"
	if subscriptionID == "" {
		return nil, &ExternalServiceError{Op: op, Err: errors.New("checkout carries no subscription id")}
	}
	if e.processor == nil {
		return nil, &ExternalServiceError{Op: op, Err: errors.New("no processor client configured")}
	}

	sub, err := e.processor.GetSubscription(ctx, subscriptionID)
	e.plugins.EmitProcessorLookup(ctx, "get_subscription", err == nil, err)
	if err != nil {
		return nil, &ExternalServiceError{Op: op + " " + subscriptionID, Err: err}
	}
	return sub, nil
}

// ──────────────────────────────────────────────────
// Subscription lifecycle
// ──────────────────────────────────────────────────

func (e *Engine) reconcileSubscription(ctx context.Context, evt *processor.Event) (*ReconcileResult, error) {
	sub, err := evt.Subscription()
	if err != nil {
		return nil, err
	}

	userID, res, err := e.accountForCustomer(ctx, evt, sub.Customer)
	if res != nil || err != nil {
		return res, err
	}

	deleted := evt.Type == processor.EventSubscriptionDeleted
	p, known := e.catalog.Resolve(sub.PriceIDs(), sub.Metadata)

	return e.applyEvent(ctx, evt, userID, false, func(acct *entitlement.Account) bool {
		kind, ok := subscriptionKindFor(acct, p, known, sub.ID)
		if !ok {
			e.logger.Warn("subscription does not match a known plan",
				"event_id", evt.ID,
				"user_id", userID,
				"subscription_id", sub.ID,
			)
			return false
		}

		status := sub.SubscriptionStatus()
		if deleted && (status == "" || status.IsActive()) {
			status = subscription.StatusCanceled
		}

		var slug string
		if known {
			slug = p.Slug
		}

		state := acct.Subscription(kind)
		state.Apply(sub.ID, slug, status, sub.Period())
		if deleted {
			state.Active = false
		}

		mirrorAnnual(acct, kind)
		return true
	})
}

// subscriptionKindFor picks the product a subscription object refers to:
// the catalog's answer if it has one, otherwise whichever stored
// subscription carries the same id.
func subscriptionKindFor(acct *entitlement.Account, p *plan.Plan, known bool, subscriptionID string) (subscription.Kind, bool) {
	if known {
		if kind, ok := p.SubscriptionKind(); ok {
			return kind, true
		}
	}
	if subscriptionID == "" {
		return "", false
	}
	if acct.CME.SubscriptionID == subscriptionID {
		return subscription.KindCMEAnnual, true
	}
	if acct.BoardReview.SubscriptionID == subscriptionID && acct.BoardReview.DerivedFrom == "" {
		return subscription.KindBoardReview, true
	}
	return "", false
}

// mirrorAnnual copies the annual plan's state onto board review when board
// review is unset or was itself mirrored.
func mirrorAnnual(acct *entitlement.Account, kind subscription.Kind) {
	if kind != subscription.KindCMEAnnual {
		return
	}
	if acct.BoardReview.AcceptsMirror() {
		acct.BoardReview.MirrorFrom(acct.CME, subscription.KindCMEAnnual)
	}
}

// ──────────────────────────────────────────────────
// Invoices
// ──────────────────────────────────────────────────

func (e *Engine) reconcilePaymentFailed(ctx context.Context, evt *processor.Event) (*ReconcileResult, error) {
	inv, err := evt.Invoice()
	if err != nil {
		return nil, err
	}

	subscriptionID := inv.SubscriptionID()
	if subscriptionID == "" {
		return newResult(evt, OutcomeIgnored), nil
	}

	userID, res, err := e.accountForCustomer(ctx, evt, inv.Customer)
	if res != nil || err != nil {
		return res, err
	}

	return e.applyEvent(ctx, evt, userID, false, func(acct *entitlement.Account) bool {
		matched := false
		for _, state := range []*subscription.State{&acct.CME, &acct.BoardReview} {
			if state.SubscriptionID == subscriptionID {
				state.Deactivate(subscription.StatusPastDue)
				matched = true
			}
		}
		return matched
	})
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

// accountForCustomer resolves the single account owning customerID. When
// none does it returns a no_account result instead of a user id.
func (e *Engine) accountForCustomer(ctx context.Context, evt *processor.Event, customerID string) (string, *ReconcileResult, error) {
	accounts, err := e.store.FindAccountsByCustomerID(ctx, customerID)
	if err != nil {
		return "", nil, err
	}

	switch len(accounts) {
	case 0:
		e.logger.Warn("no account for processor customer",
			"event_id", evt.ID,
			"customer_id", customerID,
		)
		return "", newResult(evt, OutcomeNoAccount), nil
	case 1:
		return accounts[0].UserID, nil, nil
	default:
		return "", nil, fmt.Errorf("%w: %s", ErrAmbiguousCustomer, customerID)
	}
}

// applyEvent marks evt processed and applies mutate to the user's account
// in one transaction, then re-evaluates and stores the tier. With create
// set a missing account is initialized. mutate reports whether the event
// changed anything; when it did not the event is still marked processed.
func (e *Engine) applyEvent(
	ctx context.Context,
	evt *processor.Event,
	userID string,
	create bool,
	mutate func(acct *entitlement.Account) bool,
) (*ReconcileResult, error) {
	var (
		res    *ReconcileResult
		change *tierChange
	)
	err := e.runTx(ctx, string(evt.Type), func(ctx context.Context, tx store.Tx) error {
		now := e.now()
		res = newResult(evt, OutcomeApplied)
		res.UserID = userID
		change = nil

		fresh, err := tx.MarkEventProcessed(ctx, evt.ID, string(evt.Type), now)
		if err != nil {
			return err
		}
		if !fresh {
			res.Outcome = OutcomeDuplicate
			return nil
		}

		acct, err := tx.GetAccount(ctx, userID)
		if create && errors.Is(err, ErrAccountNotFound) {
			acct, err = entitlement.NewAccount(userID, now), nil
		}
		if err != nil {
			return err
		}

		if !mutate(acct) {
			res.Outcome = OutcomeIgnored
			return nil
		}

		if evt.Created > 0 {
			at := evt.CreatedAt()
			acct.LastEventAt = &at
		}
		if prev, changed := acct.Refresh(now); changed {
			change = &tierChange{userID: userID, from: prev, to: acct.Tier}
		}
		res.Tier = acct.Tier

		return tx.PutAccount(ctx, acct)
	})
	if err != nil {
		return nil, err
	}

	if change != nil {
		e.plugins.EmitTierChanged(ctx, change.userID, change.from, change.to)
	}
	return res, nil
}
