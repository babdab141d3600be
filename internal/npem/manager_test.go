package npem

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/pcileds/internal/events"
	"github.com/smazurov/pcileds/internal/firmware"
	"github.com/smazurov/pcileds/internal/led"
	"github.com/smazurov/pcileds/internal/pci"
)

func newTestManager(med firmware.Mediator) (*Manager, *led.Registry, *events.Bus) {
	bus := events.New()
	registry := led.NewRegistry(bus, testLogger())
	return NewManager(med, registry, bus, testLogger()), registry, bus
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestManagerAttachDetach(t *testing.T) {
	manager, registry, bus := newTestManager(firmware.Unavailable())
	defer manager.Close()

	// Event dispatch is asynchronous; the handlers run on the bus's
	// goroutines.
	var mu sync.Mutex
	var attached, detached []string
	unsubA := bus.Subscribe(func(e events.DeviceAttachedEvent) {
		mu.Lock()
		attached = append(attached, e.Address)
		mu.Unlock()
	})
	defer unsubA()
	unsubD := bus.Subscribe(func(e events.DeviceDetachedEvent) {
		mu.Lock()
		detached = append(detached, e.Address)
		mu.Unlock()
	})
	defer unsubD()

	dev := newFakeDevice().withNPEMCap(testPos, npemEnable|bitOK|bitLocate)
	engine, err := manager.Attach(context.Background(), dev)
	if err != nil {
		t.Fatalf("Attach returned error: %v", err)
	}
	if engine == nil {
		t.Fatal("Attach returned no engine for a capable device")
	}
	if engine.Backend() != "register" {
		t.Errorf("backend = %q, want register", engine.Backend())
	}

	if got, ok := manager.Engine(testAddr.String()); !ok || got != engine {
		t.Error("attached engine not retrievable by address")
	}
	if len(manager.Engines()) != 1 {
		t.Errorf("Engines() has %d entries, want 1", len(manager.Engines()))
	}
	if names := registry.Names(); len(names) != 2 {
		t.Errorf("registry has %d indicators, want 2: %v", len(names), names)
	}
	waitFor(t, "attach event", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(attached) == 1
	})
	mu.Lock()
	if attached[0] != testAddr.String() {
		t.Errorf("attach event address = %q, want %q", attached[0], testAddr.String())
	}
	mu.Unlock()

	manager.Detach(testAddr)
	if _, ok := manager.Engine(testAddr.String()); ok {
		t.Error("engine still retrievable after Detach")
	}
	if names := registry.Names(); len(names) != 0 {
		t.Errorf("registry after detach = %v, want empty", names)
	}
	waitFor(t, "detach event", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(detached) == 1
	})

	// Detaching an unknown address is a no-op.
	manager.Detach(pci.Addr{Bus: 9})
}

func TestManagerAttachNoSupport(t *testing.T) {
	manager, registry, _ := newTestManager(firmware.Unavailable())
	defer manager.Close()

	engine, err := manager.Attach(context.Background(), newFakeDevice())
	if err != nil {
		t.Fatalf("Attach returned error: %v", err)
	}
	if engine != nil {
		t.Error("Attach built an engine for a device without indication support")
	}
	if len(manager.Engines()) != 0 {
		t.Error("manager retained an engine for an unsupported device")
	}
	if names := registry.Names(); len(names) != 0 {
		t.Errorf("registry = %v, want empty", names)
	}
}

func TestManagerReattachReplacesStaleEngine(t *testing.T) {
	manager, registry, _ := newTestManager(firmware.Unavailable())
	defer manager.Close()
	ctx := context.Background()

	dev := newFakeDevice().withNPEMCap(testPos, npemEnable|bitOK)
	first, err := manager.Attach(ctx, dev)
	if err != nil {
		t.Fatalf("first Attach returned error: %v", err)
	}

	// A surprise re-add with no remove event in between: the stale
	// engine still holds the indicator names, and Attach must tear it
	// down rather than fail on the duplicates.
	second, err := manager.Attach(ctx, dev)
	if err != nil {
		t.Fatalf("second Attach returned error: %v", err)
	}
	if second == first {
		t.Error("second Attach returned the stale engine")
	}
	if got, _ := manager.Engine(testAddr.String()); got != second {
		t.Error("manager does not hold the replacement engine")
	}
	if len(first.toggles) != 0 {
		t.Error("stale engine still holds registered toggles")
	}
	if names := registry.Names(); len(names) != 1 {
		t.Errorf("registry = %v, want one indicator", names)
	}
}

func TestManagerClose(t *testing.T) {
	manager, registry, _ := newTestManager(&fakeMediator{available: true, supported: bitOK | bitLocate})

	if _, err := manager.Attach(context.Background(), newFakeDevice()); err != nil {
		t.Fatalf("Attach returned error: %v", err)
	}

	manager.Close()
	if len(manager.Engines()) != 0 {
		t.Error("engines remain after Close")
	}
	if names := registry.Names(); len(names) != 0 {
		t.Errorf("registry after Close = %v, want empty", names)
	}
}

func TestManagerEndToEndRegisterToggle(t *testing.T) {
	manager, registry, bus := newTestManager(firmware.Unavailable())
	defer manager.Close()
	ctx := context.Background()

	var mu sync.Mutex
	var changed []events.IndicationChangedEvent
	unsub := bus.Subscribe(func(e events.IndicationChangedEvent) {
		mu.Lock()
		changed = append(changed, e)
		mu.Unlock()
	})
	defer unsub()

	dev := newFakeDevice().withNPEMCap(testPos, npemEnable|bitOK|bitLocate|bitFailure)
	if _, err := manager.Attach(ctx, dev); err != nil {
		t.Fatalf("Attach returned error: %v", err)
	}

	name := fmt.Sprintf("%s:enclosure:locate", testAddr)
	if err := registry.Set(ctx, name, true); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	on, err := registry.Get(ctx, name)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if !on {
		t.Error("Get = false after Set(true)")
	}

	ctrl := dev.words[testPos+regCtrl]
	if ctrl&bitLocate == 0 {
		t.Errorf("control register %#x missing locate bit", ctrl)
	}
	if ctrl&npemEnable == 0 {
		t.Errorf("control register %#x missing global enable", ctrl)
	}

	waitFor(t, "indication change event", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(changed) == 1
	})
	mu.Lock()
	if changed[0].Name != name || !changed[0].Active {
		t.Errorf("event = %+v, want %q active", changed[0], name)
	}
	mu.Unlock()
}
