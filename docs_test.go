package accredit_test

import (
	"context"
	"log"
	"log/slog"
	"testing"
	"time"

	"github.com/xraph/accredit"
	"github.com/xraph/accredit/entitlement"
	"github.com/xraph/accredit/store/memory"
	"github.com/xraph/accredit/types"
	"github.com/xraph/accredit/window"
)

// TestDocumentationExamples verifies that all examples in the documentation compile
func TestDocumentationExamples(t *testing.T) {
	// Test Quick Start example from the package doc
	t.Run("QuickStartExample", func(t *testing.T) {
		// Create store (memory for demo, use PostgreSQL in production)
		store := memory.New()

		e := accredit.New(store,
			accredit.WithLogger(slog.Default()),
			accredit.WithTierSweep(15*time.Minute, 500),
		)

		ctx := context.Background()
		if err := e.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer e.Stop()

		now := time.Now().UTC()
		err := e.PutWindow(ctx, &window.Window{
			ID:        "current",
			StartDate: now.AddDate(0, -1, 0),
			EndDate:   now.AddDate(0, 11, 0),
		})
		if err != nil {
			t.Fatal(err)
		}

		// A user who bought two credits earns on answers
		acct := entitlement.NewAccount("user_123", now)
		acct.CreditsAvailable = types.Whole(2)
		acct.Tier = entitlement.Evaluate(acct, now)
		if err := store.CreateAccount(ctx, acct); err != nil {
			t.Fatal(err)
		}

		res, err := e.RecordAnswer(ctx, accredit.AnswerInput{
			UserID:    "user_123",
			Question:  "Which electrolyte disturbance causes peaked T waves?",
			IsCorrect: true,
		})
		if err != nil {
			t.Fatal(err)
		}
		log.Printf("answer status: %s, year total: %s\n", res.Status, res.YearTotal)

		// Claim 1.75 credits
		claimed, err := e.ClaimCredits(ctx, accredit.ClaimInput{
			UserID: "user_123",
			Amount: types.Quarters(7),
		})
		if err != nil {
			t.Fatal(err)
		}
		log.Printf("claim %s, remaining %s\n", claimed.ClaimReference, claimed.CreditsAvailable)
	})

	// Test Credits type examples
	t.Run("CreditsExamples", func(t *testing.T) {
		// Constructors
		_ = types.Whole(2)    // 2.00
		_ = types.Quarters(7) // 1.75
		c, err := types.ParseCredits(1.25)
		if err != nil {
			t.Fatal(err)
		}

		// Arithmetic
		_ = c.Add(types.Quarters(1)) // 1.50
		_ = c.Sub(types.Quarters(1)) // 1.00
		_ = c.Min(types.Whole(24))

		// Comparison
		if c.LessThan(types.Whole(2)) {
			// c is less than two credits
		}

		// Formatting
		_ = c.String() // "1.25"

		if _, err := types.ParseCredits(0.3); err == nil {
			t.Error("0.3 is not a quarter multiple")
		}
	})
}
