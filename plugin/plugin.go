// Package plugin provides an extensible plugin system for accredit.
// Plugins can hook into lifecycle events to extend functionality.
package plugin

import (
	"context"
	"time"

	"github.com/xraph/accredit/claim"
	"github.com/xraph/accredit/entitlement"
	"github.com/xraph/accredit/types"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the engine starts.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine interface{}) error
}

// OnShutdown is called when the engine stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Accrual hooks
// ──────────────────────────────────────────────────

// OnAnswerRecorded is called after an answer submission is resolved.
// status is the outcome reported to the caller, delta the credits earned.
type OnAnswerRecorded interface {
	Plugin
	OnAnswerRecorded(ctx context.Context, userID, yearID, status string, delta types.Credits) error
}

// OnAccrualCapped is called when a user's year total reaches the cap.
type OnAccrualCapped interface {
	Plugin
	OnAccrualCapped(ctx context.Context, userID, yearID string, total types.Credits) error
}

// ──────────────────────────────────────────────────
// Balance hooks
// ──────────────────────────────────────────────────

// OnCreditsClaimed is called after a claim commits.
type OnCreditsClaimed interface {
	Plugin
	OnCreditsClaimed(ctx context.Context, c *claim.Claim) error
}

// OnCreditsPurchased is called after a one-time credit purchase is applied.
type OnCreditsPurchased interface {
	Plugin
	OnCreditsPurchased(ctx context.Context, userID string, amount types.Credits) error
}

// OnArtifactAttached is called after a certificate is published and its
// path attached to the claim. err is set when either step failed.
type OnArtifactAttached interface {
	Plugin
	OnArtifactAttached(ctx context.Context, c *claim.Claim, path string, err error) error
}

// ──────────────────────────────────────────────────
// Entitlement hooks
// ──────────────────────────────────────────────────

// OnTierChanged is called when an account's stored tier changes.
type OnTierChanged interface {
	Plugin
	OnTierChanged(ctx context.Context, userID string, from, to entitlement.Tier) error
}

// OnTierSweep is called after each periodic tier sweep.
type OnTierSweep interface {
	Plugin
	OnTierSweep(ctx context.Context, scanned, changed int, elapsed time.Duration) error
}

// ──────────────────────────────────────────────────
// Payment processor hooks
// ──────────────────────────────────────────────────

// OnWebhookReceived is called when a verified webhook event arrives.
type OnWebhookReceived interface {
	Plugin
	OnWebhookReceived(ctx context.Context, eventID, eventType string) error
}

// OnWebhookProcessed is called when event reconciliation finishes.
type OnWebhookProcessed interface {
	Plugin
	OnWebhookProcessed(ctx context.Context, eventID, eventType, outcome string, elapsed time.Duration, err error) error
}

// OnProcessorLookup is called after every call to the payment processor API.
type OnProcessorLookup interface {
	Plugin
	OnProcessorLookup(ctx context.Context, op string, success bool, err error) error
}
