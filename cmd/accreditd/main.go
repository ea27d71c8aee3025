// Command accreditd serves the accredit ledger over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/xraph/accredit"
	"github.com/xraph/accredit/artifact/s3store"
	audithook "github.com/xraph/accredit/audit_hook"
	"github.com/xraph/accredit/httpapi"
	"github.com/xraph/accredit/internal/config"
	"github.com/xraph/accredit/observability"
	"github.com/xraph/accredit/plan"
	"github.com/xraph/accredit/processor"
	"github.com/xraph/accredit/store"
	"github.com/xraph/accredit/store/memory"
	"github.com/xraph/accredit/store/mongo"
	"github.com/xraph/accredit/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "accreditd: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	if err := run(cfg, logger); err != nil {
		logger.Error("accreditd stopped", "error", err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.LogDev {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}

	catalog, err := plan.PricedCatalog(map[plan.Kind][]string{
		plan.KindCMEAnnual:   cfg.AnnualPriceIDs,
		plan.KindBoardReview: cfg.BoardReviewPriceIDs,
	})
	if err != nil {
		_ = st.Close()
		return fmt.Errorf("plan catalog: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts := []accredit.Option{
		accredit.WithLogger(logger),
		accredit.WithCatalog(catalog),
		accredit.WithTxRetry(cfg.TxMaxAttempts, accredit.DefaultTxBackoff),
		accredit.WithTierSweep(cfg.TierSweepInterval, 0),
		accredit.WithWebhookSecret(cfg.WebhookSecret, processor.DefaultTolerance),
		accredit.WithPlugin(observability.NewMetricsExtension(observability.NewPrometheusFactory(reg))),
		accredit.WithPlugin(audithook.New(auditLogger(logger), audithook.WithLogger(logger))),
	}

	if cfg.ProcessorAPIKey != "" {
		var clientOpts []processor.ClientOption
		if cfg.ProcessorBaseURL != "" {
			clientOpts = append(clientOpts, processor.WithBaseURL(cfg.ProcessorBaseURL))
		}
		opts = append(opts, accredit.WithProcessor(processor.NewHTTPClient(cfg.ProcessorAPIKey, clientOpts...)))
	}

	if cfg.CertBucket != "" {
		pub, err := s3store.NewFromConfig(ctx, s3store.Config{
			Bucket:   cfg.CertBucket,
			Prefix:   "certificates",
			Region:   cfg.CertRegion,
			Endpoint: cfg.CertEndpoint,
		})
		if err != nil {
			_ = st.Close()
			return err
		}
		opts = append(opts, accredit.WithPublisher(pub))
	}

	engine := accredit.New(st, opts...)
	if err := engine.Start(ctx); err != nil {
		_ = st.Close()
		return err
	}

	api := httpapi.New(engine,
		httpapi.WithLogger(logger),
		httpapi.WithMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})),
	)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           h2c.NewHandler(api.Router(), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("accreditd listening", "addr", cfg.Addr, "store", cfg.Store)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		return errors.Join(err, engine.Stop())
	})

	return g.Wait()
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store {
	case config.StorePostgres:
		return postgres.Open(ctx, cfg.DatabaseURL)
	case config.StoreMongo:
		return mongo.Open(ctx, cfg.MongoURI, cfg.MongoDatabase)
	default:
		return memory.New(), nil
	}
}

// auditLogger writes audit events to the structured log.
func auditLogger(logger *slog.Logger) audithook.RecorderFunc {
	return func(_ context.Context, ev *audithook.AuditEvent) error {
		logger.Info("audit",
			"action", ev.Action,
			"resource", ev.Resource,
			"resource_id", ev.ResourceID,
			"outcome", ev.Outcome,
			"severity", ev.Severity,
			"metadata", ev.Metadata,
		)
		return nil
	}
}
