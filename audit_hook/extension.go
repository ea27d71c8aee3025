// Package audithook bridges Accredit lifecycle events to an audit trail
// backend.
//
// It defines a local Recorder interface so the package does not import an
// audit backend directly. Callers inject a RecorderFunc adapter at wiring
// time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/accredit/claim"
	"github.com/xraph/accredit/entitlement"
	"github.com/xraph/accredit/plugin"
	"github.com/xraph/accredit/types"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin             = (*Extension)(nil)
	_ plugin.OnAccrualCapped    = (*Extension)(nil)
	_ plugin.OnCreditsClaimed   = (*Extension)(nil)
	_ plugin.OnCreditsPurchased = (*Extension)(nil)
	_ plugin.OnArtifactAttached = (*Extension)(nil)
	_ plugin.OnTierChanged      = (*Extension)(nil)
	_ plugin.OnTierSweep        = (*Extension)(nil)
	_ plugin.OnWebhookProcessed = (*Extension)(nil)
	_ plugin.OnProcessorLookup  = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is one audit trail entry.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges Accredit lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Accrual and claim hooks
// ──────────────────────────────────────────────────

// OnAccrualCapped implements plugin.OnAccrualCapped.
func (e *Extension) OnAccrualCapped(ctx context.Context, userID, yearID string, total types.Credits) error {
	return e.record(ctx, ActionAccrualCapped, SeverityInfo, OutcomeSuccess,
		ResourceAccount, userID, CategoryAccrual, nil,
		"year_id", yearID,
		"total", total.String(),
	)
}

// OnCreditsClaimed implements plugin.OnCreditsClaimed.
func (e *Extension) OnCreditsClaimed(ctx context.Context, c *claim.Claim) error {
	return e.record(ctx, ActionCreditsClaimed, SeverityInfo, OutcomeSuccess,
		ResourceClaim, c.ID.String(), CategoryCredit, nil,
		"user_id", c.UserID,
		"credits", c.Credits.String(),
		"via_subscription", c.ViaSubscription,
	)
}

// OnCreditsPurchased implements plugin.OnCreditsPurchased.
func (e *Extension) OnCreditsPurchased(ctx context.Context, userID string, amount types.Credits) error {
	return e.record(ctx, ActionCreditsPurchased, SeverityInfo, OutcomeSuccess,
		ResourceAccount, userID, CategoryPayment, nil,
		"credits", amount.String(),
	)
}

// OnArtifactAttached implements plugin.OnArtifactAttached.
func (e *Extension) OnArtifactAttached(ctx context.Context, c *claim.Claim, path string, err error) error {
	if err != nil {
		return e.record(ctx, ActionCertificateFailed, SeverityWarning, OutcomeFailure,
			ResourceCertificate, c.ID.String(), CategoryCredit, err,
			"user_id", c.UserID,
		)
	}
	return e.record(ctx, ActionCertificateIssued, SeverityInfo, OutcomeSuccess,
		ResourceCertificate, c.ID.String(), CategoryCredit, nil,
		"user_id", c.UserID,
		"path", path,
	)
}

// ──────────────────────────────────────────────────
// Entitlement hooks
// ──────────────────────────────────────────────────

// OnTierChanged implements plugin.OnTierChanged.
func (e *Extension) OnTierChanged(ctx context.Context, userID string, from, to entitlement.Tier) error {
	return e.record(ctx, ActionTierChanged, SeverityInfo, OutcomeSuccess,
		ResourceAccount, userID, CategoryAccess, nil,
		"from", string(from),
		"to", string(to),
	)
}

// OnTierSweep implements plugin.OnTierSweep. Sweeps that changed nothing
// are not audited.
func (e *Extension) OnTierSweep(ctx context.Context, scanned, changed int, elapsed time.Duration) error {
	if changed == 0 {
		return nil
	}
	return e.record(ctx, ActionTierSwept, SeverityInfo, OutcomeSuccess,
		ResourceAccount, "", CategoryAccess, nil,
		"scanned", scanned,
		"changed", changed,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// ──────────────────────────────────────────────────
// Processor hooks
// ──────────────────────────────────────────────────

// OnWebhookProcessed implements plugin.OnWebhookProcessed.
func (e *Extension) OnWebhookProcessed(ctx context.Context, eventID, eventType, outcome string, _ time.Duration, err error) error {
	if err != nil {
		return e.record(ctx, ActionWebhookFailed, SeverityError, OutcomeFailure,
			ResourceWebhook, eventID, CategoryIntegration, err,
			"event_type", eventType,
		)
	}
	return e.record(ctx, ActionWebhookProcessed, SeverityInfo, OutcomeSuccess,
		ResourceWebhook, eventID, CategoryIntegration, nil,
		"event_type", eventType,
		"outcome", outcome,
	)
}

// OnProcessorLookup implements plugin.OnProcessorLookup. Only failed
// lookups are audited.
func (e *Extension) OnProcessorLookup(ctx context.Context, op string, success bool, err error) error {
	if success {
		return nil
	}
	return e.record(ctx, ActionProcessorLookup, SeverityWarning, OutcomePartial,
		ResourceProcessor, "", CategoryIntegration, err,
		"op", op,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
