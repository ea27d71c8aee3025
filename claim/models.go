// Package claim holds the append-only history of credits a user has claimed.
package claim

import (
	"context"
	"maps"
	"time"

	"github.com/xraph/accredit/id"
	"github.com/xraph/accredit/types"
)

// Claim is one irreversible redemption of earned credit.
type Claim struct {
	ID              id.ClaimID     `json:"id"`
	UserID          string         `json:"user_id"`
	ClaimedAt       time.Time      `json:"claimed_at"`
	Credits         types.Credits  `json:"credits"`
	Evaluation      map[string]any `json:"evaluation,omitempty"`
	ViaSubscription bool           `json:"via_subscription"`
	FilePath        string         `json:"file_path,omitempty"`
}

// New returns a claim stamped at now with a fresh id. The evaluation map
// is copied.
func New(userID string, amount types.Credits, evaluation map[string]any, viaSubscription bool, now time.Time) *Claim {
	return &Claim{
		ID:              id.NewClaimID(),
		UserID:          userID,
		ClaimedAt:       now.UTC(),
		Credits:         amount,
		Evaluation:      maps.Clone(evaluation),
		ViaSubscription: viaSubscription,
	}
}

// ListOpts pages through a user's claim history.
type ListOpts struct {
	Limit  int
	Offset int
}

// Store reads claim history and attaches certificate paths. Claims are
// appended through store.Tx.
type Store interface {
	ListClaims(ctx context.Context, userID string, opts ListOpts) ([]*Claim, error)
	AttachClaimArtifact(ctx context.Context, userID string, claimID id.ClaimID, path string) error
}
