// Package led provides the indicator framework: a registry of named
// boolean indicators that subsystems register their per-indication
// controls with, and that control surfaces (CLI, HTTP API) drive.
package led

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/smazurov/pcileds/internal/events"
)

// Indicator is a single named boolean control. Implementations delegate
// to whatever mechanism actually drives the indication.
type Indicator interface {
	Get(ctx context.Context) (bool, error)
	Set(ctx context.Context, active bool) error
}

// Registry holds the currently registered indicators. Registration and
// lookup are safe for concurrent use; Get/Set concurrency is the
// indicator's own concern.
type Registry struct {
	mu         sync.RWMutex
	indicators map[string]Indicator
	bus        *events.Bus
	logger     *slog.Logger
}

// NewRegistry creates an empty registry. bus may be nil; when set,
// successful Set calls publish IndicationChangedEvent.
func NewRegistry(bus *events.Bus, logger *slog.Logger) *Registry {
	return &Registry{
		indicators: make(map[string]Indicator),
		bus:        bus,
		logger:     logger,
	}
}

// Register adds an indicator under name. Names must be unique; a
// duplicate registration is an error and leaves the registry unchanged.
func (r *Registry) Register(name string, ind Indicator) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.indicators[name]; exists {
		return fmt.Errorf("indicator %q already registered", name)
	}
	r.indicators[name] = ind
	r.logger.Debug("Indicator registered", "name", name)
	return nil
}

// Unregister removes an indicator. Unknown names are ignored so teardown
// paths can unregister unconditionally.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.indicators[name]; !exists {
		return
	}
	delete(r.indicators, name)
	r.logger.Debug("Indicator unregistered", "name", name)
}

// Names returns the registered indicator names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.indicators))
	for name := range r.indicators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get reads the current state of a named indicator.
func (r *Registry) Get(ctx context.Context, name string) (bool, error) {
	ind, err := r.lookup(name)
	if err != nil {
		return false, err
	}
	return ind.Get(ctx)
}

// Set changes the state of a named indicator.
func (r *Registry) Set(ctx context.Context, name string, active bool) error {
	ind, err := r.lookup(name)
	if err != nil {
		return err
	}
	if err := ind.Set(ctx, active); err != nil {
		return err
	}
	if r.bus != nil {
		r.bus.Publish(events.IndicationChangedEvent{
			Name:      name,
			Active:    active,
			Timestamp: time.Now().Format(time.RFC3339),
		})
	}
	return nil
}

func (r *Registry) lookup(name string) (Indicator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ind, exists := r.indicators[name]
	if !exists {
		return nil, fmt.Errorf("unknown indicator %q", name)
	}
	return ind, nil
}
