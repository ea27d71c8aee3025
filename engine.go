package accredit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/accredit/artifact"
	"github.com/xraph/accredit/credit"
	"github.com/xraph/accredit/plan"
	"github.com/xraph/accredit/plugin"
	"github.com/xraph/accredit/processor"
	"github.com/xraph/accredit/store"
)

// DefaultTxBackoff is the base delay between conflicting transaction attempts.
const DefaultTxBackoff = 20 * time.Millisecond

// Engine is the credit accrual, claim and entitlement ledger.
type Engine struct {
	store     store.Store
	plugins   *plugin.Registry
	logger    *slog.Logger
	processor processor.Client
	catalog   *plan.Catalog
	publisher artifact.Publisher
	policy    credit.Policy
	now       func() time.Time

	// Background workers
	artifactJobs chan *artifactJob
	stopChan     chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup

	// Serializes PutWindow's read-check-write.
	windowMu sync.Mutex

	// Configuration
	txMaxAttempts     int
	txBackoff         time.Duration
	artifactQueueSize int
	sweepInterval     time.Duration
	sweepBatch        int
	webhookSecret     string
	webhookTolerance  time.Duration
	skipMigrate       bool
}

// New creates a new Engine over s.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:             s,
		plugins:           plugin.NewRegistry(),
		logger:            slog.Default(),
		catalog:           plan.DefaultCatalog(),
		policy:            credit.DefaultPolicy(),
		now:               time.Now,
		stopChan:          make(chan struct{}),
		txMaxAttempts:     4,
		txBackoff:         DefaultTxBackoff,
		artifactQueueSize: 1000,
		sweepInterval:     15 * time.Minute,
		sweepBatch:        500,
		webhookTolerance:  processor.DefaultTolerance,
	}

	for _, opt := range opts {
		opt(e)
	}

	e.artifactJobs = make(chan *artifactJob, e.artifactQueueSize)
	return e
}

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithProcessor sets the client used to look up subscriptions and line
// items referenced by webhook events.
func WithProcessor(c processor.Client) Option {
	return func(e *Engine) { e.processor = c }
}

// WithCatalog sets the plan catalog used to classify processor objects.
func WithCatalog(c *plan.Catalog) Option {
	return func(e *Engine) {
		if c != nil {
			e.catalog = c
		}
	}
}

// WithPolicy sets the credit accrual policy.
func WithPolicy(p credit.Policy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithPublisher enables certificate publishing for claims.
func WithPublisher(p artifact.Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithTxRetry sets how many times a conflicting transaction is attempted
// and the base backoff between attempts.
func WithTxRetry(attempts int, backoff time.Duration) Option {
	return func(e *Engine) {
		if attempts > 0 {
			e.txMaxAttempts = attempts
		}
		e.txBackoff = backoff
	}
}

// WithArtifactQueue sets the certificate job queue capacity.
func WithArtifactQueue(size int) Option {
	return func(e *Engine) {
		if size > 0 {
			e.artifactQueueSize = size
		}
	}
}

// WithTierSweep configures the periodic tier sweep. A zero interval
// disables the worker.
func WithTierSweep(interval time.Duration, batch int) Option {
	return func(e *Engine) {
		e.sweepInterval = interval
		if batch > 0 {
			e.sweepBatch = batch
		}
	}
}

// WithWebhookSecret sets the signing secret and timestamp tolerance for
// processor webhooks.
func WithWebhookSecret(secret string, tolerance time.Duration) Option {
	return func(e *Engine) {
		e.webhookSecret = secret
		e.webhookTolerance = tolerance
	}
}

// WithoutMigrate skips store migration on Start.
func WithoutMigrate() Option {
	return func(e *Engine) { e.skipMigrate = true }
}

// Store returns the underlying store.
func (e *Engine) Store() store.Store { return e.store }

// Plugins returns the plugin registry.
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// Policy returns the credit accrual policy.
func (e *Engine) Policy() credit.Policy { return e.policy }

// Start migrates the store and begins background workers.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.policy.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	if !e.skipMigrate {
		if err := e.store.Migrate(ctx); err != nil {
			return fmt.Errorf("%w: %w", ErrMigrationFailed, err)
		}
	}

	e.plugins.EmitInit(ctx, e)

	// Workers run until Stop, not until ctx is canceled, so queued jobs
	// are drained on shutdown.
	workerCtx := context.WithoutCancel(ctx)

	if e.publisher != nil {
		e.wg.Add(1)
		go e.artifactWorker(workerCtx)
	}

	if e.sweepInterval > 0 {
		e.wg.Add(1)
		go e.sweepWorker(workerCtx)
	}

	e.logger.Info("accredit started",
		"tx_max_attempts", e.txMaxAttempts,
		"artifact_queue", e.artifactQueueSize,
		"publisher", e.publisher != nil,
		"sweep_interval", e.sweepInterval,
	)

	return nil
}

// Stop shuts down background workers and closes the store.
func (e *Engine) Stop() error {
	e.stopOnce.Do(func() { close(e.stopChan) })
	e.wg.Wait()

	ctx := context.Background()
	e.plugins.EmitShutdown(ctx)

	return e.store.Close()
}

// ──────────────────────────────────────────────────
// Transactions
// ──────────────────────────────────────────────────

// runTx runs fn in a store transaction, retrying write conflicts with a
// linear backoff. Exhausting the attempts yields ErrTransactionFailed.
func (e *Engine) runTx(ctx context.Context, op string, fn func(ctx context.Context, tx store.Tx) error) error {
	var err error
	for attempt := 1; attempt <= e.txMaxAttempts; attempt++ {
		err = e.store.RunInTx(ctx, fn)
		if !errors.Is(err, store.ErrConflict) {
			return err
		}

		e.logger.Debug("transaction conflict",
			"op", op,
			"attempt", attempt,
		)

		if attempt == e.txMaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * e.txBackoff):
		}
	}

	return fmt.Errorf("%w: %s: %w", ErrTransactionFailed, op, err)
}
