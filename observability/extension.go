// Package observability provides a metrics extension for Accredit that
// records lifecycle event counts through a MetricFactory.
package observability

import (
	"context"
	"time"

	"github.com/xraph/accredit/claim"
	"github.com/xraph/accredit/entitlement"
	"github.com/xraph/accredit/plugin"
	"github.com/xraph/accredit/types"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin             = (*MetricsExtension)(nil)
	_ plugin.OnInit             = (*MetricsExtension)(nil)
	_ plugin.OnAnswerRecorded   = (*MetricsExtension)(nil)
	_ plugin.OnAccrualCapped    = (*MetricsExtension)(nil)
	_ plugin.OnCreditsClaimed   = (*MetricsExtension)(nil)
	_ plugin.OnCreditsPurchased = (*MetricsExtension)(nil)
	_ plugin.OnArtifactAttached = (*MetricsExtension)(nil)
	_ plugin.OnTierChanged      = (*MetricsExtension)(nil)
	_ plugin.OnTierSweep        = (*MetricsExtension)(nil)
	_ plugin.OnWebhookReceived  = (*MetricsExtension)(nil)
	_ plugin.OnWebhookProcessed = (*MetricsExtension)(nil)
	_ plugin.OnProcessorLookup  = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as an Accredit plugin to track accrual and billing metrics.
type MetricsExtension struct {
	factory MetricFactory

	// Accrual metrics
	AnswersRecorded  Counter
	AnswersCredited  Counter
	AnswersLowAcc    Counter
	AccrualCapped    Counter
	QuartersAccrued  Counter
	AnswerIneligible Counter

	// Claim metrics
	ClaimsRecorded     Counter
	ClaimsViaSub       Counter
	QuartersClaimed    Counter
	QuartersPurchased  Counter
	CertificatesOK     Counter
	CertificatesFailed Counter

	// Entitlement metrics
	TierChanged      Counter
	TierSweepChanged Counter
	TierSweepLatency Histogram

	// Processor metrics
	WebhookReceived      Counter
	WebhookProcessed     Counter
	WebhookFailed        Counter
	WebhookDuplicate     Counter
	WebhookLatency       Histogram
	ProcessorLookupOK    Counter
	ProcessorLookupError Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions or NewPrometheusFactory elsewhere.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Accrual metrics
		AnswersRecorded:  factory.Counter("accredit.answer.recorded"),
		AnswersCredited:  factory.Counter("accredit.answer.credited"),
		AnswersLowAcc:    factory.Counter("accredit.answer.accuracy_low"),
		AccrualCapped:    factory.Counter("accredit.accrual.capped"),
		QuartersAccrued:  factory.Counter("accredit.credits.accrued_quarters"),
		AnswerIneligible: factory.Counter("accredit.answer.tier_ineligible"),

		// Claim metrics
		ClaimsRecorded:     factory.Counter("accredit.claim.recorded"),
		ClaimsViaSub:       factory.Counter("accredit.claim.via_subscription"),
		QuartersClaimed:    factory.Counter("accredit.credits.claimed_quarters"),
		QuartersPurchased:  factory.Counter("accredit.credits.purchased_quarters"),
		CertificatesOK:     factory.Counter("accredit.certificate.attached"),
		CertificatesFailed: factory.Counter("accredit.certificate.failed"),

		// Entitlement metrics
		TierChanged:      factory.Counter("accredit.tier.changed"),
		TierSweepChanged: factory.Counter("accredit.tier.sweep.changed"),
		TierSweepLatency: factory.Histogram("accredit.tier.sweep.latency_ms"),

		// Processor metrics
		WebhookReceived:      factory.Counter("accredit.webhook.received"),
		WebhookProcessed:     factory.Counter("accredit.webhook.processed"),
		WebhookFailed:        factory.Counter("accredit.webhook.failed"),
		WebhookDuplicate:     factory.Counter("accredit.webhook.duplicate"),
		WebhookLatency:       factory.Histogram("accredit.webhook.latency_ms"),
		ProcessorLookupOK:    factory.Counter("accredit.processor.lookup.success"),
		ProcessorLookupError: factory.Counter("accredit.processor.lookup.failure"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	// No initialization needed
	return nil
}

// ──────────────────────────────────────────────────
// Accrual hooks
// ──────────────────────────────────────────────────

// OnAnswerRecorded implements plugin.OnAnswerRecorded.
func (m *MetricsExtension) OnAnswerRecorded(_ context.Context, _, _, status string, delta types.Credits) error {
	m.AnswersRecorded.Inc()
	switch status {
	case "success":
		m.AnswersCredited.Inc()
		m.QuartersAccrued.Add(float64(delta.Quarters()))
	case "accuracy_low":
		m.AnswersLowAcc.Inc()
	case "tier_ineligible":
		m.AnswerIneligible.Inc()
	}
	return nil
}

// OnAccrualCapped implements plugin.OnAccrualCapped.
func (m *MetricsExtension) OnAccrualCapped(_ context.Context, _, _ string, _ types.Credits) error {
	m.AccrualCapped.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Claim hooks
// ──────────────────────────────────────────────────

// OnCreditsClaimed implements plugin.OnCreditsClaimed.
func (m *MetricsExtension) OnCreditsClaimed(_ context.Context, c *claim.Claim) error {
	m.ClaimsRecorded.Inc()
	m.QuartersClaimed.Add(float64(c.Credits.Quarters()))
	if c.ViaSubscription {
		m.ClaimsViaSub.Inc()
	}
	return nil
}

// OnCreditsPurchased implements plugin.OnCreditsPurchased.
func (m *MetricsExtension) OnCreditsPurchased(_ context.Context, _ string, amount types.Credits) error {
	m.QuartersPurchased.Add(float64(amount.Quarters()))
	return nil
}

// OnArtifactAttached implements plugin.OnArtifactAttached.
func (m *MetricsExtension) OnArtifactAttached(_ context.Context, _ *claim.Claim, _ string, err error) error {
	if err != nil {
		m.CertificatesFailed.Inc()
		return nil
	}
	m.CertificatesOK.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Entitlement hooks
// ──────────────────────────────────────────────────

// OnTierChanged implements plugin.OnTierChanged.
func (m *MetricsExtension) OnTierChanged(_ context.Context, _ string, _, _ entitlement.Tier) error {
	m.TierChanged.Inc()
	return nil
}

// OnTierSweep implements plugin.OnTierSweep.
func (m *MetricsExtension) OnTierSweep(_ context.Context, _, changed int, elapsed time.Duration) error {
	m.TierSweepChanged.Add(float64(changed))
	m.TierSweepLatency.Observe(float64(elapsed.Milliseconds()))
	return nil
}

// ──────────────────────────────────────────────────
// Processor hooks
// ──────────────────────────────────────────────────

// OnWebhookReceived implements plugin.OnWebhookReceived.
func (m *MetricsExtension) OnWebhookReceived(_ context.Context, _, _ string) error {
	m.WebhookReceived.Inc()
	return nil
}

// OnWebhookProcessed implements plugin.OnWebhookProcessed.
func (m *MetricsExtension) OnWebhookProcessed(_ context.Context, _, _, outcome string, elapsed time.Duration, err error) error {
	m.WebhookLatency.Observe(float64(elapsed.Milliseconds()))
	switch {
	case err != nil:
		m.WebhookFailed.Inc()
	case outcome == "duplicate":
		m.WebhookDuplicate.Inc()
	default:
		m.WebhookProcessed.Inc()
	}
	return nil
}

// OnProcessorLookup implements plugin.OnProcessorLookup.
func (m *MetricsExtension) OnProcessorLookup(_ context.Context, _ string, success bool, _ error) error {
	if success {
		m.ProcessorLookupOK.Inc()
	} else {
		m.ProcessorLookupError.Inc()
	}
	return nil
}
