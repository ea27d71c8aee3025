// Package httpapi exposes the Accredit engine over HTTP. Authentication is
// handled upstream; the user id is taken from the path.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/xraph/accredit"
)

// maxWebhookBody bounds the size of a webhook delivery.
const maxWebhookBody = 1 << 20

// Option configures the HTTP API.
type Option func(*API)

// WithLogger sets the logger for request failures.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) { a.logger = logger }
}

// WithMetricsHandler serves h at GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(a *API) { a.metrics = h }
}

// API holds the handlers.
type API struct {
	engine  *accredit.Engine
	logger  *slog.Logger
	metrics http.Handler
}

// New returns the API handlers for e.
func New(e *accredit.Engine, opts ...Option) *API {
	a := &API{engine: e, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Router mounts the API on a chi router.
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)

	r.Get("/healthz", a.Health)
	if a.metrics != nil {
		r.Method(http.MethodGet, "/metrics", a.metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/webhooks/processor", a.Webhook)
		r.Get("/windows/active", a.ActiveWindow)

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Post("/answers", a.RecordAnswer)
			r.Post("/claims", a.ClaimCredits)
			r.Get("/claims", a.ListClaims)
			r.Get("/entitlement", a.Entitlement)
		})
	})

	return r
}

func (a *API) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
