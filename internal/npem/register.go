package npem

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/smazurov/pcileds/internal/pci"
)

// Completion polling bounds. The underlying hardware spec sets a 1
// second limit on command execution and recommends not spinning
// continuously while waiting.
const (
	defaultPollInterval = 50 * time.Microsecond
	defaultPollTimeout  = time.Second
)

// registerBackend drives the indication control block in configuration
// space directly.
type registerBackend struct {
	dev       pci.Device
	pos       int // offset of the capability block
	supported uint32

	pollInterval time.Duration
	pollTimeout  time.Duration

	logger *slog.Logger
}

func newRegisterBackend(dev pci.Device, pos int, supported uint32, logger *slog.Logger) *registerBackend {
	return &registerBackend{
		dev:          dev,
		pos:          pos,
		supported:    supported,
		pollInterval: defaultPollInterval,
		pollTimeout:  defaultPollTimeout,
		logger:       logger,
	}
}

func (b *registerBackend) name() string { return "register" }

func (b *registerBackend) indications() []Indication { return registerIndications }

func (b *registerBackend) supportedMask() uint32 { return b.supported }

func (b *registerBackend) getActive(ctx context.Context) (uint32, error) {
	ctrl, err := b.dev.ReadConfig32(b.pos + regCtrl)
	if err != nil {
		return 0, fmt.Errorf("read control register: %w", err)
	}
	// Indications are inert while the block is globally disabled.
	if ctrl&npemEnable == 0 {
		return 0, nil
	}
	return ctrl & b.supported, nil
}

func (b *registerBackend) setActive(ctx context.Context, mask uint32) (uint32, error) {
	// Every write re-asserts global enable; clearing it would blind all
	// indications at once.
	if err := b.dev.WriteConfig32(b.pos+regCtrl, mask|npemEnable); err != nil {
		return 0, fmt.Errorf("write control register: %w", err)
	}

	b.waitCommandComplete()

	// Re-read after write: the device may have rejected or auto-cleared
	// mutually exclusive combinations.
	ctrl, err := b.dev.ReadConfig32(b.pos + regCtrl)
	if err != nil {
		return 0, fmt.Errorf("read control register after write: %w", err)
	}
	return ctrl & b.supported, nil
}

// waitCommandComplete polls the status register until the device reports
// command completion or the deadline elapses. Timing out is not a
// failure: the write has been issued and software is permitted to
// proceed or retry, so the caller re-reads actual state either way.
func (b *registerBackend) waitCommandComplete() {
	deadline := time.Now().Add(b.pollTimeout)
	for {
		status, err := b.dev.ReadConfig32(b.pos + regStatus)
		if err == nil && status&npemCC != 0 {
			return
		}
		if time.Now().After(deadline) {
			completionTimeoutsTotal.WithLabelValues(b.dev.Addr().String()).Inc()
			b.logger.Debug("Command completion not reported before deadline",
				"address", b.dev.Addr().String(),
				"timeout", b.pollTimeout)
			return
		}
		time.Sleep(b.pollInterval)
	}
}
