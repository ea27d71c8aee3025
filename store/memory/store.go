// Package memory implements store.Store in process memory. Transactions are
// optimistic: reads remember the version they saw, and commit fails with
// store.ErrConflict if any of those versions moved in the meantime.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xraph/accredit"
	"github.com/xraph/accredit/answer"
	"github.com/xraph/accredit/claim"
	"github.com/xraph/accredit/credit"
	"github.com/xraph/accredit/entitlement"
	"github.com/xraph/accredit/id"
	"github.com/xraph/accredit/store"
	"github.com/xraph/accredit/window"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

type eventRecord struct {
	ID          string
	Type        string
	ProcessedAt time.Time
}

// Store is an in-memory store.Store.
type Store struct {
	mu     sync.RWMutex
	closed bool

	accounts  map[string]*entitlement.Account
	yearStats map[string]*credit.YearStats
	answers   map[string]*answer.Record
	claims    map[string][]*claim.Claim
	events    map[string]eventRecord
	windows   []*window.Window

	// versions is bumped on every committed write, keyed like the records.
	versions map[string]int64
}

// New returns an empty store.
func New() *Store {
	return &Store{
		accounts:  make(map[string]*entitlement.Account),
		yearStats: make(map[string]*credit.YearStats),
		answers:   make(map[string]*answer.Record),
		claims:    make(map[string][]*claim.Claim),
		events:    make(map[string]eventRecord),
		versions:  make(map[string]int64),
	}
}

func accountKey(userID string) string { return "acct/" + userID }

func statsKey(userID, yearID string) string { return "year/" + userID + "/" + yearID }

func answerKey(userID, yearID, hash string) string {
	return "ans/" + userID + "/" + yearID + "/" + hash
}

func eventKey(eventID string) string { return "evt/" + eventID }

// ==================== Core ====================

// Migrate is a no-op.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping reports whether the store is open.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return accredit.ErrStoreClosed
	}
	return nil
}

// Close marks the store closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

// ==================== Accounts ====================

func (s *Store) GetAccount(_ context.Context, userID string) (*entitlement.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[userID]
	if !ok {
		return nil, accredit.ErrAccountNotFound
	}
	return a.Clone(), nil
}

func (s *Store) CreateAccount(_ context.Context, a *entitlement.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return accredit.ErrStoreClosed
	}
	if _, exists := s.accounts[a.UserID]; exists {
		return accredit.ErrAlreadyExists
	}

	key := accountKey(a.UserID)
	s.versions[key]++
	stored := a.Clone()
	stored.Version = s.versions[key]
	s.accounts[a.UserID] = stored
	a.Version = stored.Version
	return nil
}

func (s *Store) FindAccountsByCustomerID(_ context.Context, customerID string) ([]*entitlement.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*entitlement.Account, 0, 1)
	if customerID == "" {
		return result, nil
	}
	for _, a := range s.accounts {
		if a.CustomerID == customerID {
			result = append(result, a.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].UserID < result[j].UserID })
	return result, nil
}

func (s *Store) ListStaleAccounts(_ context.Context, now time.Time, limit int) ([]*entitlement.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*entitlement.Account, 0)
	for _, a := range s.accounts {
		if stale(a, now) {
			result = append(result, a.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].UserID < result[j].UserID })

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func stale(a *entitlement.Account, now time.Time) bool {
	switch a.Tier {
	case entitlement.TierCMEAnnual:
		return !a.CME.Live(now)
	case entitlement.TierBoardReview:
		return !a.BoardReview.Live(now)
	default:
		return false
	}
}

// ==================== Claims ====================

func (s *Store) ListClaims(_ context.Context, userID string, opts claim.ListOpts) ([]*claim.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.claims[userID]
	result := make([]*claim.Claim, 0, len(all))
	for _, c := range all {
		cp := *c
		result = append(result, &cp)
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].ClaimedAt.Before(result[j].ClaimedAt) })

	start := opts.Offset
	if start > len(result) {
		start = len(result)
	}
	end := start + opts.Limit
	if opts.Limit == 0 || end > len(result) {
		end = len(result)
	}

	return result[start:end], nil
}

func (s *Store) AttachClaimArtifact(_ context.Context, userID string, claimID id.ClaimID, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.claims[userID] {
		if c.ID.String() == claimID.String() {
			c.FilePath = path
			return nil
		}
	}
	return accredit.ErrNotFound
}

// ==================== Windows ====================

func (s *Store) ListWindows(_ context.Context) ([]*window.Window, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*window.Window, 0, len(s.windows))
	for _, w := range s.windows {
		cp := *w
		result = append(result, &cp)
	}
	return result, nil
}

func (s *Store) PutWindow(_ context.Context, w *window.Window) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *w
	s.windows = window.Upsert(s.windows, &cp)
	return nil
}

// ==================== Transactions ====================

// RunInTx runs fn against a snapshot-isolated view and commits its writes
// atomically.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	if err := s.Ping(ctx); err != nil {
		return err
	}

	t := newTx(s)
	if err := fn(ctx, t); err != nil {
		return err
	}
	return t.commit()
}
