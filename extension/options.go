package extension

import (
	"time"

	"github.com/xraph/accredit"
	"github.com/xraph/accredit/artifact"
	"github.com/xraph/accredit/plugin"
	"github.com/xraph/accredit/processor"
	"github.com/xraph/accredit/store"
)

// Option configures the Accredit Forge extension.
type Option func(*Extension)

// WithStore sets the store for the accredit engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithEngineOption passes an accredit.Option through to the underlying engine.
func WithEngineOption(opt accredit.Option) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, opt)
	}
}

// WithPlugin registers an accredit plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, accredit.WithPlugin(p))
	}
}

// WithProcessor sets the payment processor client used for lookups.
func WithProcessor(c processor.Client) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, accredit.WithProcessor(c))
	}
}

// WithPublisher enables certificate publishing.
func WithPublisher(p artifact.Publisher) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, accredit.WithPublisher(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableRoutes prevents the HTTP handler from being built.
func WithDisableRoutes() Option {
	return func(e *Extension) { e.config.DisableRoutes = true }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithBasePath sets the URL prefix for accredit routes.
func WithBasePath(path string) Option {
	return func(e *Extension) { e.config.BasePath = path }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithWebhookSecret sets the processor's webhook signing secret.
func WithWebhookSecret(secret string) Option {
	return func(e *Extension) { e.config.WebhookSecret = secret }
}

// WithTierSweepInterval sets how often lapsed tiers are swept.
func WithTierSweepInterval(d time.Duration) Option {
	return func(e *Extension) { e.config.TierSweepInterval = d }
}

// WithPrices attaches processor price ids to the annual and board review plans.
func WithPrices(annual, boardReview []string) Option {
	return func(e *Extension) {
		e.config.AnnualPriceIDs = annual
		e.config.BoardReviewPriceIDs = boardReview
	}
}
