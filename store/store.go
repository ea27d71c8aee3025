// Package store defines the persistence contract for Accredit.
//
// Mutations that must stay consistent with each other (answer records,
// yearly counters, entitlement fields, claims and the processed-event
// ledger) go through RunInTx. Backends run fn in a serializable transaction
// and report write conflicts as ErrConflict; retrying is the caller's job.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/xraph/accredit/answer"
	"github.com/xraph/accredit/claim"
	"github.com/xraph/accredit/credit"
	"github.com/xraph/accredit/entitlement"
	"github.com/xraph/accredit/window"
)

// ErrConflict is returned by RunInTx when the transaction lost a race with
// a concurrent writer. The whole transaction may be retried.
var ErrConflict = errors.New("store: write conflict")

// Tx is the transactional view handed to RunInTx callbacks. Reads return the
// root package's not-found sentinel when a record is absent.
type Tx interface {
	GetAccount(ctx context.Context, userID string) (*entitlement.Account, error)
	PutAccount(ctx context.Context, a *entitlement.Account) error

	GetYearStats(ctx context.Context, userID, yearID string) (*credit.YearStats, error)
	PutYearStats(ctx context.Context, s *credit.YearStats) error

	GetAnswer(ctx context.Context, userID, yearID, questionHash string) (*answer.Record, error)
	PutAnswer(ctx context.Context, r *answer.Record) error

	AppendClaim(ctx context.Context, c *claim.Claim) error

	// MarkEventProcessed records eventID in the dedup ledger. It reports
	// false if the event had already been recorded.
	MarkEventProcessed(ctx context.Context, eventID, eventType string, at time.Time) (bool, error)
}

// Store is the aggregate storage interface.
type Store interface {
	entitlement.Store
	claim.Store
	window.Store

	// RunInTx runs fn once inside a serializable transaction, committing
	// if fn returns nil and rolling back otherwise.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
