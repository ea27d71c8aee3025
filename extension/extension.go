// Package extension provides the Forge extension adapter for Accredit.
//
// It implements the forge.Extension interface to integrate Accredit
// into a Forge application with automatic dependency discovery,
// DI registration, and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.accredit" or "accredit" keys.
package extension

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/accredit"
	"github.com/xraph/accredit/credit"
	"github.com/xraph/accredit/httpapi"
	"github.com/xraph/accredit/plan"
	"github.com/xraph/accredit/store"
	"github.com/xraph/accredit/store/memory"
	"github.com/xraph/accredit/types"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "accredit"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "CME credit accrual, claim and entitlement ledger"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts Accredit as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *accredit.Engine
	handler    http.Handler
	store      store.Store
	engineOpts []accredit.Option
}

// New creates a new Accredit Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying Accredit engine.
// This is nil until Register is called.
func (e *Extension) Engine() *accredit.Engine { return e.engine }

// Handler returns the HTTP API with BasePath stripped, ready to be mounted
// by the application. It is nil until Register is called or when routes
// are disabled.
func (e *Extension) Handler() http.Handler { return e.handler }

// Register implements [forge.Extension]. It loads configuration,
// initializes the engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	// Use memory store if no store was provided programmatically.
	if e.store == nil {
		e.store = memory.New()
	}

	opts, err := buildEngineOpts(e.config, e.engineOpts)
	if err != nil {
		return fmt.Errorf("accredit: %w", err)
	}

	e.engine = accredit.New(e.store, opts...)
	if !e.config.DisableRoutes {
		e.handler = mountHandler(e.config.BasePath, httpapi.New(e.engine).Router())
	}

	return vessel.Provide(fapp.Container(), func() (*accredit.Engine, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("accredit: extension not initialized")
	}

	if err := e.engine.Start(ctx); err != nil {
		return err
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("accredit: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildEngineOpts constructs accredit.Option values from the resolved config.
// Pass-through options are appended last so they win.
func buildEngineOpts(cfg Config, extra []accredit.Option) ([]accredit.Option, error) {
	opts := make([]accredit.Option, 0, len(extra)+7)

	catalog, err := plan.PricedCatalog(map[plan.Kind][]string{
		plan.KindCMEAnnual:   cfg.AnnualPriceIDs,
		plan.KindBoardReview: cfg.BoardReviewPriceIDs,
	})
	if err != nil {
		return nil, err
	}
	opts = append(opts, accredit.WithCatalog(catalog))

	if cfg.MaxCreditsPerYear > 0 {
		maxPerYear, err := types.ParseCredits(cfg.MaxCreditsPerYear)
		if err != nil {
			return nil, fmt.Errorf("max_credits_per_year: %w", err)
		}
		policy := credit.DefaultPolicy()
		policy.MaxPerYear = maxPerYear
		opts = append(opts, accredit.WithPolicy(policy))
	}

	sweep := cfg.TierSweepInterval
	if sweep < 0 {
		sweep = 0
	}
	opts = append(opts,
		accredit.WithTxRetry(cfg.TxMaxAttempts, accredit.DefaultTxBackoff),
		accredit.WithTierSweep(sweep, cfg.TierSweepBatch),
		accredit.WithArtifactQueue(cfg.ArtifactQueueSize),
		accredit.WithWebhookSecret(cfg.WebhookSecret, cfg.WebhookTolerance),
	)

	if cfg.DisableMigrate {
		opts = append(opts, accredit.WithoutMigrate())
	}

	return append(opts, extra...), nil
}

func mountHandler(basePath string, h http.Handler) http.Handler {
	prefix := strings.TrimRight(basePath, "/")
	if prefix == "" {
		return h
	}
	return http.StripPrefix(prefix, h)
}

// --- Config Loading ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("accredit: configuration is required but not found in config files; " +
				"ensure 'extensions.accredit' or 'accredit' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("accredit: configuration loaded",
		forge.F("disable_routes", e.config.DisableRoutes),
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("base_path", e.config.BasePath),
		forge.F("tx_max_attempts", e.config.TxMaxAttempts),
		forge.F("tier_sweep_interval", e.config.TierSweepInterval),
		forge.F("annual_prices", len(e.config.AnnualPriceIDs)),
		forge.F("board_review_prices", len(e.config.BoardReviewPriceIDs)),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	for _, key := range []string{"extensions.accredit", "accredit"} {
		if !cm.IsSet(key) {
			continue
		}
		err := cm.Bind(key, &cfg)
		if err == nil {
			e.Logger().Debug("accredit: loaded config from file",
				forge.F("key", key),
			)
			return cfg, true
		}
		e.Logger().Warn("accredit: failed to bind config",
			forge.F("key", key),
			forge.F("error", err.Error()),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.BasePath == "" {
		cfg.BasePath = defaults.BasePath
	}
	if cfg.TxMaxAttempts == 0 {
		cfg.TxMaxAttempts = defaults.TxMaxAttempts
	}
	if cfg.TierSweepInterval == 0 {
		cfg.TierSweepInterval = defaults.TierSweepInterval
	}
	if cfg.TierSweepBatch == 0 {
		cfg.TierSweepBatch = defaults.TierSweepBatch
	}
	if cfg.ArtifactQueueSize == 0 {
		cfg.ArtifactQueueSize = defaults.ArtifactQueueSize
	}
	if cfg.WebhookTolerance == 0 {
		cfg.WebhookTolerance = defaults.WebhookTolerance
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic values fill gaps.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableRoutes {
		yamlConfig.DisableRoutes = true
	}
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}

	// String fields: YAML takes precedence.
	if yamlConfig.BasePath == "" {
		yamlConfig.BasePath = programmaticConfig.BasePath
	}
	if yamlConfig.WebhookSecret == "" {
		yamlConfig.WebhookSecret = programmaticConfig.WebhookSecret
	}
	if len(yamlConfig.AnnualPriceIDs) == 0 {
		yamlConfig.AnnualPriceIDs = programmaticConfig.AnnualPriceIDs
	}
	if len(yamlConfig.BoardReviewPriceIDs) == 0 {
		yamlConfig.BoardReviewPriceIDs = programmaticConfig.BoardReviewPriceIDs
	}

	// Duration/int fields: YAML takes precedence, programmatic fills gaps.
	if yamlConfig.TxMaxAttempts == 0 {
		yamlConfig.TxMaxAttempts = programmaticConfig.TxMaxAttempts
	}
	if yamlConfig.TierSweepInterval == 0 {
		yamlConfig.TierSweepInterval = programmaticConfig.TierSweepInterval
	}
	if yamlConfig.TierSweepBatch == 0 {
		yamlConfig.TierSweepBatch = programmaticConfig.TierSweepBatch
	}
	if yamlConfig.ArtifactQueueSize == 0 {
		yamlConfig.ArtifactQueueSize = programmaticConfig.ArtifactQueueSize
	}
	if yamlConfig.WebhookTolerance == 0 {
		yamlConfig.WebhookTolerance = programmaticConfig.WebhookTolerance
	}
	if yamlConfig.MaxCreditsPerYear == 0 {
		yamlConfig.MaxCreditsPerYear = programmaticConfig.MaxCreditsPerYear
	}

	// Fill remaining zeros with defaults.
	return mergeWithDefaults(yamlConfig)
}
