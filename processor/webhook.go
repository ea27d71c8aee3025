package processor

import (
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v82/webhook"
)

// SignatureHeader carries the webhook signature.
const SignatureHeader = "Stripe-Signature"

// DefaultTolerance is the maximum accepted age of a signed delivery.
const DefaultTolerance = 5 * time.Minute

// Signature errors. ErrInvalidSignature wraps every authentication
// failure; the others identify the cause.
var (
	ErrInvalidSignature   = errors.New("processor: invalid webhook signature")
	ErrNoSignature        = webhook.ErrNotSigned
	ErrInvalidHeader      = webhook.ErrInvalidHeader
	ErrSignatureMismatch  = webhook.ErrNoValidSignature
	ErrTimestampTooSkewed = webhook.ErrTooOld
)

// ConstructEvent authenticates a "t=...,v1=..." signed delivery and decodes
// its envelope. A non-positive tolerance means DefaultTolerance. The
// payload's API version is not checked against the SDK's; objects are
// decoded field by field.
func ConstructEvent(payload []byte, header, secret string, tolerance time.Duration) (*Event, error) {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}

	se, err := webhook.ConstructEventWithOptions(payload, header, secret, webhook.ConstructEventOptions{
		Tolerance:                tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		if isSignatureError(err) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	evt := &Event{
		ID:       se.ID,
		Type:     EventType(se.Type),
		Created:  se.Created,
		Livemode: se.Livemode,
	}
	if se.Data != nil {
		evt.Data.Object = se.Data.Raw
	}
	if evt.ID == "" || evt.Type == "" {
		return nil, fmt.Errorf("%w: missing id or type", ErrMalformedEvent)
	}
	return evt, nil
}

func isSignatureError(err error) bool {
	return errors.Is(err, webhook.ErrNotSigned) ||
		errors.Is(err, webhook.ErrInvalidHeader) ||
		errors.Is(err, webhook.ErrNoValidSignature) ||
		errors.Is(err, webhook.ErrTooOld)
}
