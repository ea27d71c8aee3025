package extension

import "time"

// Config holds the Accredit extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.accredit" or "accredit" keys).
type Config struct {
	// DisableRoutes prevents the HTTP handler from being built.
	DisableRoutes bool `json:"disable_routes" mapstructure:"disable_routes" yaml:"disable_routes"`

	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// BasePath is the URL prefix for accredit routes (default: "/accredit").
	BasePath string `json:"base_path" mapstructure:"base_path" yaml:"base_path"`

	// TxMaxAttempts is how many times a conflicting transaction is
	// attempted (default: 4).
	TxMaxAttempts int `json:"tx_max_attempts" mapstructure:"tx_max_attempts" yaml:"tx_max_attempts"`

	// TierSweepInterval is how often lapsed paid tiers are rewritten
	// (default: 15m). Negative disables the sweep.
	TierSweepInterval time.Duration `json:"tier_sweep_interval" mapstructure:"tier_sweep_interval" yaml:"tier_sweep_interval"`

	// TierSweepBatch is the number of accounts loaded per sweep (default: 500).
	TierSweepBatch int `json:"tier_sweep_batch" mapstructure:"tier_sweep_batch" yaml:"tier_sweep_batch"`

	// ArtifactQueueSize bounds the pending certificate jobs (default: 1000).
	ArtifactQueueSize int `json:"artifact_queue_size" mapstructure:"artifact_queue_size" yaml:"artifact_queue_size"`

	// WebhookSecret is the processor's webhook signing secret.
	WebhookSecret string `json:"webhook_secret" mapstructure:"webhook_secret" yaml:"webhook_secret"`

	// WebhookTolerance is the maximum accepted age of a signed delivery
	// (default: 5m).
	WebhookTolerance time.Duration `json:"webhook_tolerance" mapstructure:"webhook_tolerance" yaml:"webhook_tolerance"`

	// AnnualPriceIDs are the processor prices billing the CME annual plan.
	AnnualPriceIDs []string `json:"annual_price_ids" mapstructure:"annual_price_ids" yaml:"annual_price_ids"`

	// BoardReviewPriceIDs are the processor prices billing board review.
	BoardReviewPriceIDs []string `json:"board_review_price_ids" mapstructure:"board_review_price_ids" yaml:"board_review_price_ids"`

	// MaxCreditsPerYear overrides the yearly accrual cap. Must be a
	// multiple of 0.25 when set.
	MaxCreditsPerYear float64 `json:"max_credits_per_year" mapstructure:"max_credits_per_year" yaml:"max_credits_per_year"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BasePath:          "/accredit",
		TxMaxAttempts:     4,
		TierSweepInterval: 15 * time.Minute,
		TierSweepBatch:    500,
		ArtifactQueueSize: 1000,
		WebhookTolerance:  5 * time.Minute,
	}
}
