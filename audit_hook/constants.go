package audithook

// Action constants for audit events.
const (
	// Accrual actions
	ActionAccrualCapped = "accrual.capped"

	// Claim actions
	ActionCreditsClaimed    = "credits.claimed"
	ActionCreditsPurchased  = "credits.purchased"
	ActionCertificateIssued = "certificate.issued"
	ActionCertificateFailed = "certificate.failed"

	// Entitlement actions
	ActionTierChanged = "tier.changed"
	ActionTierSwept   = "tier.swept"

	// Processor actions
	ActionWebhookProcessed = "webhook.processed"
	ActionWebhookFailed    = "webhook.failed"
	ActionProcessorLookup  = "processor.lookup"
)

// Resource constants for audit events.
const (
	ResourceAccount     = "account"
	ResourceClaim       = "claim"
	ResourceCertificate = "certificate"
	ResourceWebhook     = "webhook"
	ResourceProcessor   = "processor"
)

// Category constants for audit events.
const (
	CategoryAccrual     = "accrual"
	CategoryCredit      = "credit"
	CategoryAccess      = "access"
	CategoryPayment     = "payment"
	CategoryIntegration = "integration"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)
