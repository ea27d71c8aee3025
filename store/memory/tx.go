package memory

import (
	"context"
	"time"

	"github.com/xraph/accredit"
	"github.com/xraph/accredit/answer"
	"github.com/xraph/accredit/claim"
	"github.com/xraph/accredit/credit"
	"github.com/xraph/accredit/entitlement"
	"github.com/xraph/accredit/store"
)

type tx struct {
	s *Store

	// reads holds the committed version observed for each key read.
	reads map[string]int64

	accounts  map[string]*entitlement.Account
	yearStats map[string]*credit.YearStats
	answers   map[string]*answer.Record
	events    map[string]eventRecord
	claims    []*claim.Claim
}

var _ store.Tx = (*tx)(nil)

func newTx(s *Store) *tx {
	return &tx{
		s:         s,
		reads:     make(map[string]int64),
		accounts:  make(map[string]*entitlement.Account),
		yearStats: make(map[string]*credit.YearStats),
		answers:   make(map[string]*answer.Record),
		events:    make(map[string]eventRecord),
	}
}

// observe records the committed version of key the first time it is read.
// Caller holds s.mu.
func (t *tx) observe(key string) {
	if _, seen := t.reads[key]; !seen {
		t.reads[key] = t.s.versions[key]
	}
}

func (t *tx) GetAccount(_ context.Context, userID string) (*entitlement.Account, error) {
	if a, ok := t.accounts[userID]; ok {
		return a.Clone(), nil
	}

	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	t.observe(accountKey(userID))
	a, ok := t.s.accounts[userID]
	if !ok {
		return nil, accredit.ErrAccountNotFound
	}
	return a.Clone(), nil
}

func (t *tx) PutAccount(_ context.Context, a *entitlement.Account) error {
	t.accounts[a.UserID] = a.Clone()
	return nil
}

func (t *tx) GetYearStats(_ context.Context, userID, yearID string) (*credit.YearStats, error) {
	key := statsKey(userID, yearID)
	if ys, ok := t.yearStats[key]; ok {
		cp := *ys
		return &cp, nil
	}

	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	t.observe(key)
	ys, ok := t.s.yearStats[key]
	if !ok {
		return nil, accredit.ErrNotFound
	}
	cp := *ys
	return &cp, nil
}

func (t *tx) PutYearStats(_ context.Context, ys *credit.YearStats) error {
	cp := *ys
	t.yearStats[statsKey(ys.UserID, ys.YearID)] = &cp
	return nil
}

func (t *tx) GetAnswer(_ context.Context, userID, yearID, questionHash string) (*answer.Record, error) {
	key := answerKey(userID, yearID, questionHash)
	if r, ok := t.answers[key]; ok {
		cp := *r
		return &cp, nil
	}

	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	t.observe(key)
	r, ok := t.s.answers[key]
	if !ok {
		return nil, accredit.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (t *tx) PutAnswer(_ context.Context, r *answer.Record) error {
	cp := *r
	t.answers[answerKey(r.UserID, r.YearID, r.QuestionHash)] = &cp
	return nil
}

func (t *tx) AppendClaim(_ context.Context, c *claim.Claim) error {
	cp := *c
	t.claims = append(t.claims, &cp)
	return nil
}

func (t *tx) MarkEventProcessed(_ context.Context, eventID, eventType string, at time.Time) (bool, error) {
	key := eventKey(eventID)
	if _, ok := t.events[key]; ok {
		return false, nil
	}

	t.s.mu.RLock()
	t.observe(key)
	_, seen := t.s.events[eventID]
	t.s.mu.RUnlock()

	if seen {
		return false, nil
	}
	t.events[key] = eventRecord{ID: eventID, Type: eventType, ProcessedAt: at.UTC()}
	return true, nil
}

// commit validates every observed version and applies the buffered writes.
func (t *tx) commit() error {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return accredit.ErrStoreClosed
	}
	for key, v := range t.reads {
		if s.versions[key] != v {
			return store.ErrConflict
		}
	}

	for userID, a := range t.accounts {
		key := accountKey(userID)
		s.versions[key]++
		a.Version = s.versions[key]
		s.accounts[userID] = a
	}
	for key, ys := range t.yearStats {
		s.versions[key]++
		ys.Version = s.versions[key]
		s.yearStats[key] = ys
	}
	for key, r := range t.answers {
		s.versions[key]++
		s.answers[key] = r
	}
	for key, e := range t.events {
		s.versions[key]++
		s.events[e.ID] = e
	}
	for _, c := range t.claims {
		s.claims[c.UserID] = append(s.claims[c.UserID], c)
	}

	return nil
}
