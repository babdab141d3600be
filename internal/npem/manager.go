package npem

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/smazurov/pcileds/internal/events"
	"github.com/smazurov/pcileds/internal/firmware"
	"github.com/smazurov/pcileds/internal/led"
	"github.com/smazurov/pcileds/internal/pci"
)

// Manager owns the engine handles between device attach and detach.
// The bus watcher (or a one-shot scan) hands it devices; nobody else
// holds engine references, so detach tears down exactly what attach
// built.
type Manager struct {
	med      firmware.Mediator
	registry *led.Registry
	bus      *events.Bus
	logger   *slog.Logger

	mu      sync.Mutex
	engines map[string]*Engine
}

// NewManager creates a manager. bus may be nil for one-shot CLI use.
func NewManager(med firmware.Mediator, registry *led.Registry, bus *events.Bus, logger *slog.Logger) *Manager {
	return &Manager{
		med:      med,
		registry: registry,
		bus:      bus,
		logger:   logger,
		engines:  make(map[string]*Engine),
	}
}

// Attach probes a device and, when it exposes indication support,
// constructs and retains its engine. Returns (nil, nil) for devices
// without indication support.
func (m *Manager) Attach(ctx context.Context, dev pci.Device) (*Engine, error) {
	ops, err := probe(ctx, dev, m.med, m.logger)
	if err != nil {
		return nil, err
	}
	if ops == nil {
		return nil, nil
	}

	addr := dev.Addr().String()

	// A stale handle from a device that was yanked without a remove
	// event still holds this address's indicator names; tear it down
	// before the replacement registers the same names.
	m.mu.Lock()
	if old, exists := m.engines[addr]; exists {
		delete(m.engines, addr)
		old.Close()
		enginesAttached.Dec()
		m.logger.Info("Stale indication engine replaced", "address", addr)
	}
	m.mu.Unlock()

	engine, err := newEngine(dev.Addr(), ops, m.registry, m.logger)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.engines[addr] = engine
	m.mu.Unlock()
	enginesAttached.Inc()

	m.logger.Info("Indication engine attached",
		"address", addr,
		"backend", engine.Backend(),
		"supported", indicationNames(engine.Supported()))

	if m.bus != nil {
		m.bus.Publish(events.DeviceAttachedEvent{
			Address:   addr,
			Backend:   engine.Backend(),
			Supported: indicationNames(engine.Supported()),
			Timestamp: time.Now().Format(time.RFC3339),
		})
	}
	return engine, nil
}

// Detach destroys the engine for a departed device, if one exists.
func (m *Manager) Detach(addr pci.Addr) {
	key := addr.String()

	m.mu.Lock()
	engine, exists := m.engines[key]
	if exists {
		delete(m.engines, key)
	}
	m.mu.Unlock()

	if !exists {
		return
	}

	engine.Close()
	enginesAttached.Dec()
	m.logger.Info("Indication engine detached", "address", key)

	if m.bus != nil {
		m.bus.Publish(events.DeviceDetachedEvent{
			Address:   key,
			Timestamp: time.Now().Format(time.RFC3339),
		})
	}
}

// Engine returns the engine for a device address, if attached.
func (m *Manager) Engine(addr string) (*Engine, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	engine, exists := m.engines[addr]
	return engine, exists
}

// Engines returns all attached engines, ordered by address.
func (m *Manager) Engines() []*Engine {
	m.mu.Lock()
	defer m.mu.Unlock()

	engines := make([]*Engine, 0, len(m.engines))
	for _, engine := range m.engines {
		engines = append(engines, engine)
	}
	sort.Slice(engines, func(i, j int) bool {
		return engines[i].Addr().String() < engines[j].Addr().String()
	})
	return engines
}

// Close detaches everything, for shutdown.
func (m *Manager) Close() {
	for _, engine := range m.Engines() {
		m.Detach(engine.Addr())
	}
}

func indicationNames(inds []Indication) []string {
	names := make([]string, len(inds))
	for i, ind := range inds {
		names[i] = ind.Name
	}
	return names
}
