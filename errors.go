package accredit

import (
	"errors"
	"fmt"

	"github.com/xraph/accredit/processor"
	"github.com/xraph/accredit/store"
	"github.com/xraph/accredit/types"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = errors.New("accredit: not found")
	ErrAlreadyExists = errors.New("accredit: already exists")
	ErrInvalidInput  = errors.New("accredit: invalid input")

	// Account errors
	ErrAccountNotFound   = errors.New("accredit: account not found")
	ErrAmbiguousCustomer = errors.New("accredit: customer id maps to more than one account")

	// Ledger preconditions
	ErrNoActiveWindow      = errors.New("accredit: no active accreditation window")
	ErrTierIneligible      = errors.New("accredit: tier does not earn credit")
	ErrInsufficientCredits = errors.New("accredit: insufficient credits")
	ErrWindowOverlap       = errors.New("accredit: accreditation windows overlap")

	// Processor errors
	ErrWebhookSignature = errors.New("accredit: webhook signature verification failed")
	ErrProviderLookup   = errors.New("accredit: processor lookup failed")

	// Store errors
	ErrStoreClosed       = errors.New("accredit: store is closed")
	ErrTransactionFailed = errors.New("accredit: transaction failed after retries")
	ErrMigrationFailed   = errors.New("accredit: migration failed")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("accredit: validation failed for %s: %s", e.Field, e.Message)
}

// Is makes every ValidationError match ErrInvalidInput.
func (e ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// InsufficientCreditsError reports a claim larger than the balance.
type InsufficientCreditsError struct {
	Available types.Credits
	Requested types.Credits
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("accredit: insufficient credits: %s available, %s requested", e.Available, e.Requested)
}

// Is makes the error match ErrInsufficientCredits.
func (e *InsufficientCreditsError) Is(target error) bool {
	return target == ErrInsufficientCredits
}

// ExternalServiceError wraps a failed call to the payment processor. The
// operation that hit it continued with degraded data.
type ExternalServiceError struct {
	Op  string
	Err error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("accredit: %s: %v", e.Op, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// Is makes the error match ErrProviderLookup.
func (e *ExternalServiceError) Is(target error) bool {
	return target == ErrProviderLookup
}

// Kind classifies errors for callers that map them onto transport codes.
type Kind string

const (
	KindNone         Kind = ""
	KindValidation   Kind = "validation"
	KindPrecondition Kind = "precondition"
	KindNotFound     Kind = "not_found"
	KindTransient    Kind = "transient"
	KindExternal     Kind = "external"
	KindInternal     Kind = "internal"
)

// KindOf classifies err.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, types.ErrNotQuarter),
		errors.Is(err, types.ErrOutOfRange),
		errors.Is(err, processor.ErrMalformedEvent):
		return KindValidation
	case errors.Is(err, ErrWebhookSignature):
		return KindValidation
	case IsNotFound(err):
		return KindNotFound
	case errors.Is(err, ErrInsufficientCredits),
		errors.Is(err, ErrNoActiveWindow),
		errors.Is(err, ErrTierIneligible),
		errors.Is(err, ErrWindowOverlap),
		errors.Is(err, ErrAlreadyExists),
		errors.Is(err, ErrAmbiguousCustomer):
		return KindPrecondition
	case IsRetryable(err):
		return KindTransient
	case errors.Is(err, ErrProviderLookup):
		return KindExternal
	default:
		return KindInternal
	}
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrAccountNotFound)
}

// IsRetryable returns true if the error is temporary and the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransactionFailed) ||
		errors.Is(err, store.ErrConflict) ||
		errors.Is(err, ErrStoreClosed)
}
