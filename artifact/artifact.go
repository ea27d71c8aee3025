// Package artifact produces claim certificates. A Publisher renders a
// committed claim into a durable receipt and returns where it was stored.
package artifact

import (
	"context"
	"encoding/json"
	"path"
	"time"

	"github.com/xraph/accredit/claim"
	"github.com/xraph/accredit/id"
	"github.com/xraph/accredit/types"
)

// Publisher stores a certificate for a claim and returns its path.
type Publisher interface {
	Publish(ctx context.Context, c *claim.Claim) (string, error)
}

// PublisherFunc adapts a plain function to Publisher.
type PublisherFunc func(ctx context.Context, c *claim.Claim) (string, error)

// Publish implements Publisher.
func (f PublisherFunc) Publish(ctx context.Context, c *claim.Claim) (string, error) {
	return f(ctx, c)
}

// Receipt is the certificate document written for a claim.
type Receipt struct {
	ClaimID         id.ClaimID     `json:"claim_id"`
	UserID          string         `json:"user_id"`
	ClaimedAt       time.Time      `json:"claimed_at"`
	Credits         types.Credits  `json:"credits"`
	ViaSubscription bool           `json:"via_subscription"`
	Evaluation      map[string]any `json:"evaluation,omitempty"`
	IssuedAt        time.Time      `json:"issued_at"`
}

// NewReceipt builds the receipt for c issued at now.
func NewReceipt(c *claim.Claim, now time.Time) *Receipt {
	return &Receipt{
		ClaimID:         c.ID,
		UserID:          c.UserID,
		ClaimedAt:       c.ClaimedAt,
		Credits:         c.Credits,
		ViaSubscription: c.ViaSubscription,
		Evaluation:      c.Evaluation,
		IssuedAt:        now.UTC(),
	}
}

// Encode returns the receipt as indented JSON.
func (r *Receipt) Encode() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// Key returns the object key for c under prefix: prefix/user/claim.json.
func Key(prefix string, c *claim.Claim) string {
	return path.Join(prefix, c.UserID, c.ID.String()+".json")
}
