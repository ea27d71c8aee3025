package extension

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/xraph/accredit"
	"github.com/xraph/accredit/store/memory"
	"github.com/xraph/accredit/types"
)

func TestMergeWithDefaults(t *testing.T) {
	cfg := mergeWithDefaults(Config{TxMaxAttempts: 9, TierSweepInterval: -1})

	if cfg.TxMaxAttempts != 9 {
		t.Errorf("TxMaxAttempts = %d", cfg.TxMaxAttempts)
	}
	if cfg.TierSweepInterval != -1 {
		t.Errorf("negative sweep interval overwritten: %s", cfg.TierSweepInterval)
	}
	if cfg.BasePath != "/accredit" || cfg.TierSweepBatch != 500 || cfg.WebhookTolerance != 5*time.Minute {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestMergeConfigurations(t *testing.T) {
	yaml := Config{
		BasePath:       "/cme",
		AnnualPriceIDs: []string{"price_yaml"},
	}
	programmatic := Config{
		DisableRoutes:       true,
		BasePath:            "/ignored",
		WebhookSecret:       "whsec_prog",
		AnnualPriceIDs:      []string{"price_prog"},
		BoardReviewPriceIDs: []string{"price_br"},
		TxMaxAttempts:       2,
	}

	cfg := mergeConfigurations(yaml, programmatic)

	if !cfg.DisableRoutes {
		t.Error("programmatic DisableRoutes lost")
	}
	if cfg.BasePath != "/cme" {
		t.Errorf("BasePath = %q, want yaml value", cfg.BasePath)
	}
	if cfg.WebhookSecret != "whsec_prog" || cfg.TxMaxAttempts != 2 {
		t.Errorf("programmatic gaps not filled: %+v", cfg)
	}
	if len(cfg.AnnualPriceIDs) != 1 || cfg.AnnualPriceIDs[0] != "price_yaml" {
		t.Errorf("AnnualPriceIDs = %v", cfg.AnnualPriceIDs)
	}
	if len(cfg.BoardReviewPriceIDs) != 1 {
		t.Errorf("BoardReviewPriceIDs = %v", cfg.BoardReviewPriceIDs)
	}
	if cfg.ArtifactQueueSize != 1000 {
		t.Errorf("ArtifactQueueSize = %d", cfg.ArtifactQueueSize)
	}
}

func TestBuildEngineOpts(t *testing.T) {
	t.Run("rejects shared prices", func(t *testing.T) {
		cfg := mergeWithDefaults(Config{
			AnnualPriceIDs:      []string{"p"},
			BoardReviewPriceIDs: []string{"p"},
		})
		if _, err := buildEngineOpts(cfg, nil); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("rejects fractional cap", func(t *testing.T) {
		cfg := mergeWithDefaults(Config{MaxCreditsPerYear: 10.1})
		if _, err := buildEngineOpts(cfg, nil); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("applies cap", func(t *testing.T) {
		cfg := mergeWithDefaults(Config{MaxCreditsPerYear: 12.5, TierSweepInterval: -1})
		opts, err := buildEngineOpts(cfg, nil)
		if err != nil {
			t.Fatal(err)
		}

		e := accredit.New(memory.New(), opts...)
		if got := e.Policy().MaxPerYear; got != types.Quarters(50) {
			t.Errorf("MaxPerYear = %s", got)
		}
	})
}

func TestMountHandler(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, r.URL.Path)
	})

	for _, base := range []string{"/accredit", "/accredit/"} {
		rec := httptest.NewRecorder()
		mountHandler(base, inner).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/accredit/healthz", nil))
		if rec.Body.String() != "/healthz" {
			t.Errorf("base %q: path = %q", base, rec.Body.String())
		}
	}

	rec := httptest.NewRecorder()
	mountHandler("", inner).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Body.String() != "/healthz" {
		t.Errorf("no base: path = %q", rec.Body.String())
	}
}
