package npem

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/smazurov/pcileds/internal/led"
	"github.com/smazurov/pcileds/internal/pci"
)

// Engine is the per-device indication control engine. It serializes all
// access to the device's indication state behind one interruptible lock
// and keeps a cached copy of the active mask, initialized lazily on the
// first read or write. Laziness matters: at attach time other platform
// subsystems the backend depends on may not be ready yet.
type Engine struct {
	addr      pci.Addr
	ops       backendOps
	supported uint32

	// mu is a channel-based lock so acquisition can be abandoned when
	// the caller's context is cancelled. A cancelled acquire fails the
	// operation without touching hardware.
	mu chan struct{}

	// active caches the last known asserted mask; valid only after
	// activeValid is set, and only ever mutated with mu held.
	active      uint32
	activeValid bool

	toggles  []*Toggle
	registry *led.Registry
	logger   *slog.Logger
}

// newEngine builds an engine for a probed device and registers one
// indicator per supported bit. Any registration failure unwinds the
// already registered indicators and fails construction; a half-built
// engine is never returned.
func newEngine(addr pci.Addr, ops backendOps, registry *led.Registry, logger *slog.Logger) (*Engine, error) {
	e := &Engine{
		addr:      addr,
		ops:       ops,
		supported: ops.supportedMask(),
		mu:        make(chan struct{}, 1),
		registry:  registry,
		logger:    logger,
	}

	for _, ind := range ops.indications() {
		if e.supported&ind.Bit == 0 {
			continue
		}
		t := &Toggle{
			name:   fmt.Sprintf("%s:enclosure:%s", addr, ind.Name),
			ind:    ind,
			engine: e,
		}
		if err := registry.Register(t.name, t); err != nil {
			for _, registered := range e.toggles {
				registry.Unregister(registered.name)
			}
			return nil, fmt.Errorf("register indicator %s: %w", t.name, err)
		}
		e.toggles = append(e.toggles, t)
	}

	return e, nil
}

// Addr returns the managed device's PCI address.
func (e *Engine) Addr() pci.Addr { return e.addr }

// Backend names the selected backend, "register" or "firmware".
func (e *Engine) Backend() string { return e.ops.name() }

// SupportedMask returns the supported-indication bits.
func (e *Engine) SupportedMask() uint32 { return e.supported }

// Supported returns the supported indications in table order.
func (e *Engine) Supported() []Indication {
	inds := make([]Indication, 0)
	for _, ind := range e.ops.indications() {
		if e.supported&ind.Bit != 0 {
			inds = append(inds, ind)
		}
	}
	return inds
}

// Read reports whether the indication bit is currently asserted.
func (e *Engine) Read(ctx context.Context, bit uint32) (bool, error) {
	if err := e.lock(ctx); err != nil {
		return false, err
	}
	defer e.unlock()

	if err := e.ensureActive(ctx); err != nil {
		return false, err
	}
	return e.active&bit != 0, nil
}

// Write asserts or deasserts a single indication bit, leaving all other
// bits as they are. On failure the cached mask is left at its last
// known-good value; the engine never assumes a partial write unless the
// backend reports one.
func (e *Engine) Write(ctx context.Context, bit uint32, active bool) error {
	if err := e.lock(ctx); err != nil {
		return err
	}
	defer e.unlock()

	if err := e.ensureActive(ctx); err != nil {
		return err
	}

	mask := e.active &^ bit
	if active {
		mask = e.active | bit
	}

	newActive, err := e.ops.setActive(ctx, mask)
	if err != nil {
		writeErrorsTotal.WithLabelValues(e.addr.String(), e.ops.name()).Inc()
		return err
	}
	e.active = newActive & e.supported
	writesTotal.WithLabelValues(e.addr.String(), e.ops.name()).Inc()
	return nil
}

// Active returns the currently asserted indication mask.
func (e *Engine) Active(ctx context.Context) (uint32, error) {
	if err := e.lock(ctx); err != nil {
		return 0, err
	}
	defer e.unlock()

	if err := e.ensureActive(ctx); err != nil {
		return 0, err
	}
	return e.active, nil
}

// Close unregisters the engine's indicators. The engine must not be
// used afterwards; toggles never outlive their engine.
func (e *Engine) Close() {
	for _, t := range e.toggles {
		e.registry.Unregister(t.name)
	}
	e.toggles = nil
}

// ensureActive populates the cache from the backend on first use.
// Callers must hold the lock.
func (e *Engine) ensureActive(ctx context.Context) error {
	if e.activeValid {
		return nil
	}
	active, err := e.ops.getActive(ctx)
	if err != nil {
		return err
	}
	e.active = active & e.supported
	e.activeValid = true
	return nil
}

func (e *Engine) lock(ctx context.Context) error {
	// Fail deterministically when the caller is already cancelled.
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case e.mu <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) unlock() {
	<-e.mu
}

// Toggle is the per-indication boolean control registered with the
// indicator framework. It holds a non-owning back-reference to its
// engine and delegates get/set to it.
type Toggle struct {
	name   string
	ind    Indication
	engine *Engine
}

// Name returns the registered indicator name.
func (t *Toggle) Name() string { return t.name }

// Get implements led.Indicator.
func (t *Toggle) Get(ctx context.Context) (bool, error) {
	return t.engine.Read(ctx, t.ind.Bit)
}

// Set implements led.Indicator.
func (t *Toggle) Set(ctx context.Context, active bool) error {
	return t.engine.Write(ctx, t.ind.Bit, active)
}
