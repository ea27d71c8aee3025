package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/accredit/claim"
	"github.com/xraph/accredit/entitlement"
	"github.com/xraph/accredit/types"
)

// Registry manages all registered plugins and provides efficient dispatch.
// It caches each hook's implementers at registration time.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit             []OnInit
	onShutdown         []OnShutdown
	onAnswerRecorded   []OnAnswerRecorded
	onAccrualCapped    []OnAccrualCapped
	onCreditsClaimed   []OnCreditsClaimed
	onCreditsPurchased []OnCreditsPurchased
	onArtifactAttached []OnArtifactAttached
	onTierChanged      []OnTierChanged
	onTierSweep        []OnTierSweep
	onWebhookReceived  []OnWebhookReceived
	onWebhookProcessed []OnWebhookProcessed
	onProcessorLookup  []OnProcessorLookup
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: 5 * time.Second,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout bounds how long a single hook may run.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnAnswerRecorded); ok {
		r.onAnswerRecorded = append(r.onAnswerRecorded, v)
	}
	if v, ok := p.(OnAccrualCapped); ok {
		r.onAccrualCapped = append(r.onAccrualCapped, v)
	}
	if v, ok := p.(OnCreditsClaimed); ok {
		r.onCreditsClaimed = append(r.onCreditsClaimed, v)
	}
	if v, ok := p.(OnCreditsPurchased); ok {
		r.onCreditsPurchased = append(r.onCreditsPurchased, v)
	}
	if v, ok := p.(OnArtifactAttached); ok {
		r.onArtifactAttached = append(r.onArtifactAttached, v)
	}
	if v, ok := p.(OnTierChanged); ok {
		r.onTierChanged = append(r.onTierChanged, v)
	}
	if v, ok := p.(OnTierSweep); ok {
		r.onTierSweep = append(r.onTierSweep, v)
	}
	if v, ok := p.(OnWebhookReceived); ok {
		r.onWebhookReceived = append(r.onWebhookReceived, v)
	}
	if v, ok := p.(OnWebhookProcessed); ok {
		r.onWebhookProcessed = append(r.onWebhookProcessed, v)
	}
	if v, ok := p.(OnProcessorLookup); ok {
		r.onProcessorLookup = append(r.onProcessorLookup, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", implementedInterfaces(p),
	)

	return nil
}

var hookTypes = []struct {
	name string
	typ  reflect.Type
}{
	{"OnInit", reflect.TypeOf((*OnInit)(nil)).Elem()},
	{"OnShutdown", reflect.TypeOf((*OnShutdown)(nil)).Elem()},
	{"OnAnswerRecorded", reflect.TypeOf((*OnAnswerRecorded)(nil)).Elem()},
	{"OnAccrualCapped", reflect.TypeOf((*OnAccrualCapped)(nil)).Elem()},
	{"OnCreditsClaimed", reflect.TypeOf((*OnCreditsClaimed)(nil)).Elem()},
	{"OnCreditsPurchased", reflect.TypeOf((*OnCreditsPurchased)(nil)).Elem()},
	{"OnArtifactAttached", reflect.TypeOf((*OnArtifactAttached)(nil)).Elem()},
	{"OnTierChanged", reflect.TypeOf((*OnTierChanged)(nil)).Elem()},
	{"OnTierSweep", reflect.TypeOf((*OnTierSweep)(nil)).Elem()},
	{"OnWebhookReceived", reflect.TypeOf((*OnWebhookReceived)(nil)).Elem()},
	{"OnWebhookProcessed", reflect.TypeOf((*OnWebhookProcessed)(nil)).Elem()},
	{"OnProcessorLookup", reflect.TypeOf((*OnProcessorLookup)(nil)).Elem()},
}

// implementedInterfaces returns the hook names p implements.
func implementedInterfaces(p Plugin) []string {
	var names []string
	v := reflect.TypeOf(p)
	for _, h := range hookTypes {
		if v.Implements(h.typ) {
			names = append(names, h.name)
		}
	}
	return names
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnInit", func() error {
			return p.OnInit(ctx, engine)
		})
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnShutdown", func() error {
			return p.OnShutdown(ctx)
		})
	}
}

// EmitAnswerRecorded emits an answer recorded event.
func (r *Registry) EmitAnswerRecorded(ctx context.Context, userID, yearID, status string, delta types.Credits) {
	r.mu.RLock()
	plugins := r.onAnswerRecorded
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnAnswerRecorded", func() error {
			return p.OnAnswerRecorded(ctx, userID, yearID, status, delta)
		})
	}
}

// EmitAccrualCapped emits an accrual capped event.
func (r *Registry) EmitAccrualCapped(ctx context.Context, userID, yearID string, total types.Credits) {
	r.mu.RLock()
	plugins := r.onAccrualCapped
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnAccrualCapped", func() error {
			return p.OnAccrualCapped(ctx, userID, yearID, total)
		})
	}
}

// EmitCreditsClaimed emits a credits claimed event.
func (r *Registry) EmitCreditsClaimed(ctx context.Context, c *claim.Claim) {
	r.mu.RLock()
	plugins := r.onCreditsClaimed
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnCreditsClaimed", func() error {
			return p.OnCreditsClaimed(ctx, c)
		})
	}
}

// EmitCreditsPurchased emits a credits purchased event.
func (r *Registry) EmitCreditsPurchased(ctx context.Context, userID string, amount types.Credits) {
	r.mu.RLock()
	plugins := r.onCreditsPurchased
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnCreditsPurchased", func() error {
			return p.OnCreditsPurchased(ctx, userID, amount)
		})
	}
}

// EmitArtifactAttached emits a certificate attach event.
func (r *Registry) EmitArtifactAttached(ctx context.Context, c *claim.Claim, path string, err error) {
	r.mu.RLock()
	plugins := r.onArtifactAttached
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnArtifactAttached", func() error {
			return p.OnArtifactAttached(ctx, c, path, err)
		})
	}
}

// EmitTierChanged emits a tier changed event.
func (r *Registry) EmitTierChanged(ctx context.Context, userID string, from, to entitlement.Tier) {
	r.mu.RLock()
	plugins := r.onTierChanged
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnTierChanged", func() error {
			return p.OnTierChanged(ctx, userID, from, to)
		})
	}
}

// EmitTierSweep emits a tier sweep event.
func (r *Registry) EmitTierSweep(ctx context.Context, scanned, changed int, elapsed time.Duration) {
	r.mu.RLock()
	plugins := r.onTierSweep
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnTierSweep", func() error {
			return p.OnTierSweep(ctx, scanned, changed, elapsed)
		})
	}
}

// EmitWebhookReceived emits a webhook received event.
func (r *Registry) EmitWebhookReceived(ctx context.Context, eventID, eventType string) {
	r.mu.RLock()
	plugins := r.onWebhookReceived
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnWebhookReceived", func() error {
			return p.OnWebhookReceived(ctx, eventID, eventType)
		})
	}
}

// EmitWebhookProcessed emits a webhook processed event.
func (r *Registry) EmitWebhookProcessed(ctx context.Context, eventID, eventType, outcome string, elapsed time.Duration, err error) {
	r.mu.RLock()
	plugins := r.onWebhookProcessed
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnWebhookProcessed", func() error {
			return p.OnWebhookProcessed(ctx, eventID, eventType, outcome, elapsed, err)
		})
	}
}

// EmitProcessorLookup emits a processor lookup event.
func (r *Registry) EmitProcessorLookup(ctx context.Context, op string, success bool, err error) {
	r.mu.RLock()
	plugins := r.onProcessorLookup
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnProcessorLookup", func() error {
			return p.OnProcessorLookup(ctx, op, success, err)
		})
	}
}

// dispatch runs one hook and logs its failure.
func (r *Registry) dispatch(ctx context.Context, pluginName, hook string, fn func() error) {
	if err := r.callWithTimeout(ctx, pluginName, fn); err != nil {
		r.logger.Warn("plugin "+hook+" failed",
			"plugin", pluginName,
			"error", err,
		)
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the accrual pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(r.timeout):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
