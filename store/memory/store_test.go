package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/accredit"
	"github.com/xraph/accredit/answer"
	"github.com/xraph/accredit/claim"
	"github.com/xraph/accredit/credit"
	"github.com/xraph/accredit/entitlement"
	"github.com/xraph/accredit/store"
	"github.com/xraph/accredit/types"
	"github.com/xraph/accredit/window"
)

var now = time.Date(2025, 11, 1, 9, 0, 0, 0, time.UTC)

func seeded(t *testing.T) *Store {
	t.Helper()
	s := New()
	require.NoError(t, s.CreateAccount(context.Background(), entitlement.NewAccount("u1", now)))
	return s
}

func TestCreateAccountDuplicate(t *testing.T) {
	s := seeded(t)
	err := s.CreateAccount(context.Background(), entitlement.NewAccount("u1", now))
	assert.ErrorIs(t, err, accredit.ErrAlreadyExists)
}

func TestGetAccountReturnsCopy(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	a, err := s.GetAccount(ctx, "u1")
	require.NoError(t, err)
	a.CreditsAvailable = types.Whole(100)

	again, err := s.GetAccount(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, again.CreditsAvailable.IsZero())

	_, err = s.GetAccount(ctx, "nobody")
	assert.ErrorIs(t, err, accredit.ErrAccountNotFound)
}

func TestRunInTxCommitsAllOrNothing(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		a, err := tx.GetAccount(ctx, "u1")
		require.NoError(t, err)
		a.CreditsAvailable = types.Whole(5)
		require.NoError(t, tx.PutAccount(ctx, a))
		require.NoError(t, tx.PutYearStats(ctx, credit.NewYearStats("u1", "2025-2026", now)))
		return boom
	})
	require.ErrorIs(t, err, boom)

	a, err := s.GetAccount(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, a.CreditsAvailable.IsZero(), "rolled back write leaked")

	err = s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		_, err := tx.GetYearStats(ctx, "u1", "2025-2026")
		assert.ErrorIs(t, err, accredit.ErrNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestRunInTxReadsOwnWrites(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	err := s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		rec := &answer.Record{UserID: "u1", YearID: "y", QuestionHash: "h", IsCorrect: true}
		require.NoError(t, tx.PutAnswer(ctx, rec))

		got, err := tx.GetAnswer(ctx, "u1", "y", "h")
		require.NoError(t, err)
		assert.True(t, got.IsCorrect)
		return nil
	})
	require.NoError(t, err)
}

func TestRunInTxDetectsConflict(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	err := s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		a, err := tx.GetAccount(ctx, "u1")
		require.NoError(t, err)

		// A concurrent writer commits between our read and our commit.
		inner := s.RunInTx(ctx, func(ctx context.Context, tx2 store.Tx) error {
			b, err := tx2.GetAccount(ctx, "u1")
			require.NoError(t, err)
			b.CreditsAvailable = types.Whole(1)
			return tx2.PutAccount(ctx, b)
		})
		require.NoError(t, inner)

		a.CreditsAvailable = types.Whole(9)
		return tx.PutAccount(ctx, a)
	})
	require.ErrorIs(t, err, store.ErrConflict)

	a, err := s.GetAccount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, types.Whole(1), a.CreditsAvailable)
}

func TestMarkEventProcessed(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	mark := func() bool {
		var fresh bool
		require.NoError(t, s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
			var err error
			fresh, err = tx.MarkEventProcessed(ctx, "evt_1", "invoice.payment_failed", now)
			return err
		}))
		return fresh
	}

	assert.True(t, mark(), "first delivery should be fresh")
	assert.False(t, mark(), "replay should be detected")
}

func TestConcurrentEventMarkConflicts(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	err := s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		fresh, err := tx.MarkEventProcessed(ctx, "evt_2", "x", now)
		require.NoError(t, err)
		require.True(t, fresh)

		require.NoError(t, s.RunInTx(ctx, func(ctx context.Context, tx2 store.Tx) error {
			_, err := tx2.MarkEventProcessed(ctx, "evt_2", "x", now)
			return err
		}))
		return nil
	})
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestClaimsAndArtifacts(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	first := claim.New("u1", types.Whole(2), nil, false, now)
	second := claim.New("u1", types.Whole(1), nil, true, now.Add(time.Minute))
	require.NoError(t, s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		require.NoError(t, tx.AppendClaim(ctx, second))
		return tx.AppendClaim(ctx, first)
	}))

	claims, err := s.ListClaims(ctx, "u1", claim.ListOpts{})
	require.NoError(t, err)
	require.Len(t, claims, 2)
	assert.Equal(t, first.ID.String(), claims[0].ID.String(), "claims are ordered by time")

	page, err := s.ListClaims(ctx, "u1", claim.ListOpts{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, second.ID.String(), page[0].ID.String())

	require.NoError(t, s.AttachClaimArtifact(ctx, "u1", first.ID, "certs/u1/a.json"))
	claims, err = s.ListClaims(ctx, "u1", claim.ListOpts{})
	require.NoError(t, err)
	assert.Equal(t, "certs/u1/a.json", claims[0].FilePath)

	err = s.AttachClaimArtifact(ctx, "u2", first.ID, "x")
	assert.ErrorIs(t, err, accredit.ErrNotFound)
}

func TestListStaleAccounts(t *testing.T) {
	s := New()
	ctx := context.Background()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	lapsed := entitlement.NewAccount("lapsed", now)
	lapsed.Tier = entitlement.TierCMEAnnual
	lapsed.CME.Active = true
	lapsed.CME.EndDate = &past

	live := entitlement.NewAccount("live", now)
	live.Tier = entitlement.TierCMEAnnual
	live.CME.Active = true
	live.CME.EndDate = &future

	br := entitlement.NewAccount("br", now)
	br.Tier = entitlement.TierBoardReview

	for _, a := range []*entitlement.Account{lapsed, live, br, entitlement.NewAccount("free", now)} {
		require.NoError(t, s.CreateAccount(ctx, a))
	}

	stale, err := s.ListStaleAccounts(ctx, now, 0)
	require.NoError(t, err)
	require.Len(t, stale, 2)
	assert.Equal(t, "br", stale[0].UserID)
	assert.Equal(t, "lapsed", stale[1].UserID)

	limited, err := s.ListStaleAccounts(ctx, now, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestFindAccountsByCustomerID(t *testing.T) {
	s := New()
	ctx := context.Background()

	a := entitlement.NewAccount("u1", now)
	a.CustomerID = "cus_1"
	require.NoError(t, s.CreateAccount(ctx, a))
	require.NoError(t, s.CreateAccount(ctx, entitlement.NewAccount("u2", now)))

	found, err := s.FindAccountsByCustomerID(ctx, "cus_1")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "u1", found[0].UserID)

	none, err := s.FindAccountsByCustomerID(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestWindows(t *testing.T) {
	s := New()
	ctx := context.Background()

	w := &window.Window{ID: "2025-2026", StartDate: now.AddDate(0, -4, 0), EndDate: now.AddDate(0, 8, 0)}
	require.NoError(t, s.PutWindow(ctx, w))
	require.NoError(t, s.PutWindow(ctx, w))

	windows, err := s.ListWindows(ctx)
	require.NoError(t, err)
	require.Len(t, windows, 1)
	assert.Equal(t, "2025-2026", windows[0].ID)
}

func TestClosedStore(t *testing.T) {
	s := seeded(t)
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.Ping(context.Background()), accredit.ErrStoreClosed)
	err := s.RunInTx(context.Background(), func(context.Context, store.Tx) error { return nil })
	assert.ErrorIs(t, err, accredit.ErrStoreClosed)
}
