// Package monitoring tracks PCI device arrival and departure through the
// kernel's sysfs bus directory and feeds the changes to a handler,
// normally the indication manager.
package monitoring

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/smazurov/pcileds/internal/pci"
)

// DeviceHandler receives bus membership changes. Attach errors are the
// handler's to report; the watcher keeps running either way.
type DeviceHandler interface {
	DeviceAdded(ctx context.Context, dev pci.Device)
	DeviceRemoved(addr pci.Addr)
}

// BusWatcher watches a sysfs PCI devices directory. Start performs an
// initial scan so devices present before the watcher came up are not
// missed, then follows directory events.
type BusWatcher struct {
	root    string
	handler DeviceHandler
	logger  *slog.Logger

	mu      sync.Mutex
	known   map[string]struct{}
	watcher *fsnotify.Watcher
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewBusWatcher creates a watcher over root (usually
// pci.DefaultSysfsPath).
func NewBusWatcher(root string, handler DeviceHandler, logger *slog.Logger) *BusWatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &BusWatcher{
		root:    root,
		handler: handler,
		logger:  logger,
		known:   make(map[string]struct{}),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

// Start scans the bus and begins following events.
func (w *BusWatcher) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(w.root); err != nil {
		watcher.Close()
		return err
	}
	w.watcher = watcher

	// Initial scan after the watch is in place, so a device appearing
	// between scan and watch is seen by one of the two.
	addrs, err := pci.ScanBus(w.root)
	if err != nil {
		watcher.Close()
		// The watch loop never ran, so Stop must not wait for it.
		w.watcher = nil
		return err
	}
	for _, addr := range addrs {
		w.add(addr)
	}

	w.logger.Info("Bus watcher started", "root", w.root, "devices", len(addrs))
	go w.watch()
	return nil
}

// Stop ends event processing and waits for the watch loop to exit. The
// handler sees no callbacks after Stop returns.
func (w *BusWatcher) Stop() error {
	w.cancel()
	var err error
	if w.watcher != nil {
		err = w.watcher.Close()
		<-w.done
	}
	return err
}

func (w *BusWatcher) watch() {
	defer close(w.done)
	for {
		select {
		case <-w.ctx.Done():
			w.logger.Debug("Bus watcher stopped")
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			addr, err := pci.ParseAddr(filepath.Base(event.Name))
			if err != nil {
				// Not a device directory.
				continue
			}
			switch {
			case event.Op&fsnotify.Create != 0:
				w.add(addr)
			case event.Op&fsnotify.Remove != 0:
				w.remove(addr)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Bus watcher error", "error", err)
		}
	}
}

func (w *BusWatcher) add(addr pci.Addr) {
	key := addr.String()
	w.mu.Lock()
	if _, seen := w.known[key]; seen {
		w.mu.Unlock()
		return
	}
	w.known[key] = struct{}{}
	w.mu.Unlock()

	dev, err := pci.Open(w.root, addr)
	if err != nil {
		// The device may have vanished again already.
		w.logger.Debug("Device appeared but could not be opened",
			"address", key, "error", err)
		w.mu.Lock()
		delete(w.known, key)
		w.mu.Unlock()
		return
	}
	w.handler.DeviceAdded(w.ctx, dev)
}

func (w *BusWatcher) remove(addr pci.Addr) {
	key := addr.String()
	w.mu.Lock()
	_, seen := w.known[key]
	delete(w.known, key)
	w.mu.Unlock()

	if seen {
		w.handler.DeviceRemoved(addr)
	}
}
