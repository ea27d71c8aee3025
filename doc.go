// Package accredit is a continuing medical education (CME) credit ledger.
//
// Accredit is a library. It records question answers against the active
// accreditation year, converts them into quarter-credit quantities, lets
// users claim earned or purchased credit, and keeps each user's access tier
// in step with the payment processor. It provides:
//
//   - Answer accrual with a monotonic, capped per-year credit formula
//   - Credit claims checked against purchased balances or a live annual plan
//   - A pure entitlement state machine deriving the user's tier
//   - Idempotent reconciliation of processor webhook events
//   - Certificate publishing and a periodic tier sweep as background workers
//   - Pluggable lifecycle hooks for metrics and audit trails
//
// # Quick Start
//
//	import (
//	    "github.com/xraph/accredit"
//	    "github.com/xraph/accredit/store/postgres"
//	)
//
//	s, err := postgres.Open(ctx, databaseURL)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	e := accredit.New(s, accredit.WithWebhookSecret(secret, processor.DefaultTolerance))
//	if err := e.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer e.Stop()
//
// # Core Concepts
//
// Accreditation windows bucket credit earning into years:
//
//	err := e.PutWindow(ctx, &window.Window{
//	    ID:        "2025-2026",
//	    StartDate: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
//	    EndDate:   time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
//	})
//
// Answers accrue credit for users on a credit-earning tier:
//
//	res, err := e.RecordAnswer(ctx, accredit.AnswerInput{
//	    UserID:    userID,
//	    Question:  text,
//	    IsCorrect: true,
//	})
//
// Claims spend credit:
//
//	res, err := e.ClaimCredits(ctx, accredit.ClaimInput{
//	    UserID: userID,
//	    Amount: types.Quarters(7), // 1.75 credits
//	})
//
// # Credits
//
// All credit quantities are types.Credits, an integer count of quarter
// credits. A value that is not a multiple of 0.25 cannot be represented.
//
// # Transactions
//
// Every operation that mutates an account runs in a single serializable
// store transaction. Write conflicts are retried a bounded number of times
// before ErrTransactionFailed is returned.
//
// # TypeID
//
// Claims and background jobs use TypeIDs:
//
//	clm_01h2xcejqtf2nbrexx3vqjhp41  // Claim ID
//	job_01h455vb4pex5vsknk084sn02q  // Certificate job ID
package accredit
