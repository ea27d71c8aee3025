package mongo

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/xraph/accredit"
	"github.com/xraph/accredit/claim"
	"github.com/xraph/accredit/entitlement"
	"github.com/xraph/accredit/id"
	"github.com/xraph/accredit/store"
	"github.com/xraph/accredit/subscription"
	"github.com/xraph/accredit/types"
	"github.com/xraph/accredit/window"
)

var now = time.Date(2025, 11, 1, 9, 0, 0, 0, time.UTC)

func ptr(t time.Time) *time.Time { return &t }

func TestAccountModelRoundTrip(t *testing.T) {
	a := entitlement.NewAccount("u1", now)
	a.Tier = entitlement.TierCMEAnnual
	a.CreditsAvailable = types.Quarters(9)
	a.CustomerID = "cus_1"
	a.CME = subscription.State{
		Active:         true,
		Plan:           "cme_annual",
		SubscriptionID: "sub_1",
		Status:         subscription.StatusActive,
		EndDate:        ptr(now.AddDate(1, 0, 0)),
	}
	a.BoardReview = subscription.State{Active: true, EndDate: a.CME.EndDate, DerivedFrom: subscription.KindCMEAnnual}
	a.Stats.CreditsClaimed = types.Whole(3)
	a.LastEventAt = ptr(now)

	m := toAccountModel(a)
	require.NotNil(t, m.CMEUntil)
	assert.Equal(t, *a.CME.EndDate, *m.CMEUntil)
	assert.Equal(t, int64(9), m.CreditsAvailable)

	got := fromAccountModel(m)
	assert.Equal(t, a.UserID, got.UserID)
	assert.Equal(t, a.Tier, got.Tier)
	assert.Equal(t, a.CreditsAvailable, got.CreditsAvailable)
	assert.Equal(t, a.CME.SubscriptionID, got.CME.SubscriptionID)
	assert.Equal(t, subscription.KindCMEAnnual, got.BoardReview.DerivedFrom)
	assert.Equal(t, types.Whole(3), got.Stats.CreditsClaimed)
	assert.True(t, got.CME.Live(now))
}

func TestLiveUntil(t *testing.T) {
	end := now.Add(time.Hour)

	assert.Nil(t, liveUntil(subscription.State{Active: false, EndDate: &end}))
	assert.Nil(t, liveUntil(subscription.State{Active: true}))
	assert.Equal(t, end, *liveUntil(subscription.State{Active: true, EndDate: &end}))
}

func TestClaimModelRejectsForeignIDs(t *testing.T) {
	c := claim.New("u1", types.Whole(1), map[string]any{"rating": 5}, false, now)

	got, err := fromClaimModel(toClaimModel(c))
	require.NoError(t, err)
	assert.Equal(t, c.ID.String(), got.ID.String())
	assert.Equal(t, types.Whole(1), got.Credits)

	bad := toClaimModel(c)
	bad.ID = id.NewJobID().String()
	_, err = fromClaimModel(bad)
	assert.Error(t, err)
}

func TestMapErr(t *testing.T) {
	assert.NoError(t, mapErr(nil))

	dup := mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000}}}
	assert.ErrorIs(t, mapErr(dup), store.ErrConflict)

	transient := mongo.CommandError{Code: 112, Labels: []string{"TransientTransactionError"}}
	assert.ErrorIs(t, mapErr(transient), store.ErrConflict)

	other := errors.New("network down")
	assert.Equal(t, other, mapErr(other))
}

// newIntegrationStore connects to ACCREDIT_MONGO_URI, which must point at a
// replica set, and uses a throwaway database.
func newIntegrationStore(t *testing.T) *Store {
	t.Helper()

	uri := os.Getenv("ACCREDIT_MONGO_URI")
	if uri == "" {
		t.Skip("ACCREDIT_MONGO_URI not set")
	}

	ctx := context.Background()
	s, err := Open(ctx, uri, "accredit_test_"+id.NewJobID().String())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Database().Drop(context.Background())
		_ = s.Close()
	})

	require.NoError(t, s.Migrate(ctx))
	return s
}

func TestIntegrationAccountsAndClaims(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()

	a := entitlement.NewAccount("u1", now)
	a.CreditsAvailable = types.Whole(2)
	require.NoError(t, s.CreateAccount(ctx, a))
	assert.ErrorIs(t, s.CreateAccount(ctx, entitlement.NewAccount("u1", now)), accredit.ErrAlreadyExists)

	c := claim.New("u1", types.Whole(1), nil, false, now)
	err := s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		acct, err := tx.GetAccount(ctx, "u1")
		if err != nil {
			return err
		}
		acct.CreditsAvailable = acct.CreditsAvailable.Sub(c.Credits)
		if err := tx.AppendClaim(ctx, c); err != nil {
			return err
		}
		return tx.PutAccount(ctx, acct)
	})
	require.NoError(t, err)

	got, err := s.GetAccount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, types.Whole(1), got.CreditsAvailable)

	require.NoError(t, s.AttachClaimArtifact(ctx, "u1", c.ID, "certs/u1.json"))
	claims, err := s.ListClaims(ctx, "u1", claim.ListOpts{})
	require.NoError(t, err)
	require.Len(t, claims, 1)
	assert.Equal(t, "certs/u1.json", claims[0].FilePath)
}

func TestIntegrationRollback(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateAccount(ctx, entitlement.NewAccount("u1", now)))

	boom := errors.New("boom")
	err := s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		acct, err := tx.GetAccount(ctx, "u1")
		if err != nil {
			return err
		}
		acct.CreditsAvailable = types.Whole(50)
		if err := tx.PutAccount(ctx, acct); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.GetAccount(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, got.CreditsAvailable.IsZero())
}

func TestIntegrationMarkEventProcessed(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()

	mark := func() (bool, error) {
		var fresh bool
		err := s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
			var err error
			fresh, err = tx.MarkEventProcessed(ctx, "evt_1", "checkout.session.completed", now)
			return err
		})
		return fresh, err
	}

	first, err := mark()
	require.NoError(t, err)
	assert.True(t, first)

	second, err := mark()
	require.NoError(t, err)
	assert.False(t, second)
}

func TestIntegrationConcurrentWritesConflict(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateAccount(ctx, entitlement.NewAccount("u1", now)))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		failures []error
		gate     = make(chan struct{})
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
				acct, err := tx.GetAccount(ctx, "u1")
				if err != nil {
					return err
				}
				<-gate
				acct.CreditsAvailable = acct.CreditsAvailable.Add(types.Whole(1))
				return tx.PutAccount(ctx, acct)
			})
			if err != nil {
				mu.Lock()
				failures = append(failures, err)
				mu.Unlock()
			}
		}()
	}
	time.Sleep(100 * time.Millisecond)
	close(gate)
	wg.Wait()

	for _, err := range failures {
		assert.ErrorIs(t, err, store.ErrConflict)
	}

	got, err := s.GetAccount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, types.Whole(int64(2-len(failures))), got.CreditsAvailable)
}

func TestIntegrationWindowsAndStaleAccounts(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()

	w := &window.Window{ID: "2025-2026", StartDate: now.AddDate(0, -4, 0), EndDate: now.AddDate(0, 8, 0)}
	require.NoError(t, s.PutWindow(ctx, w))
	require.NoError(t, s.PutWindow(ctx, w))
	windows, err := s.ListWindows(ctx)
	require.NoError(t, err)
	require.Len(t, windows, 1)

	lapsed := entitlement.NewAccount("lapsed", now)
	lapsed.Tier = entitlement.TierCMEAnnual
	lapsed.CME = subscription.State{Active: true, EndDate: ptr(now.Add(-time.Hour))}
	require.NoError(t, s.CreateAccount(ctx, lapsed))

	live := entitlement.NewAccount("live", now)
	live.Tier = entitlement.TierCMEAnnual
	live.CME = subscription.State{Active: true, EndDate: ptr(now.Add(time.Hour))}
	require.NoError(t, s.CreateAccount(ctx, live))

	stale, err := s.ListStaleAccounts(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "lapsed", stale[0].UserID)
}
