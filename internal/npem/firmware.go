package npem

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/smazurov/pcileds/internal/firmware"
	"github.com/smazurov/pcileds/internal/pci"
)

// partialHonorErr is the function-specific sub-code meaning the platform
// intentionally withheld some requested bits. The call still succeeded
// and the returned state word is authoritative.
const partialHonorErr = 1

// StatusError reports a firmware call that completed but returned a
// failing status code.
type StatusError struct {
	Response firmware.Response
}

func (e *StatusError) Error() string {
	return "firmware call failed: " + firmware.StatusText(e.Response)
}

// firmwareBackend manages indications through the platform's mediated
// call interface.
type firmwareBackend struct {
	addr      pci.Addr
	med       firmware.Mediator
	supported uint32
	logger    *slog.Logger
}

func newFirmwareBackend(addr pci.Addr, med firmware.Mediator, supported uint32, logger *slog.Logger) *firmwareBackend {
	return &firmwareBackend{addr: addr, med: med, supported: supported, logger: logger}
}

func (b *firmwareBackend) name() string { return "firmware" }

func (b *firmwareBackend) indications() []Indication { return firmwareIndications }

func (b *firmwareBackend) supportedMask() uint32 { return b.supported }

func (b *firmwareBackend) getActive(ctx context.Context) (uint32, error) {
	state, err := b.call(ctx, firmware.FuncGetState, nil)
	if err != nil {
		return 0, err
	}
	return state & b.supported, nil
}

func (b *firmwareBackend) setActive(ctx context.Context, mask uint32) (uint32, error) {
	arg := mask
	state, err := b.call(ctx, firmware.FuncSetState, &arg)
	if err != nil {
		return 0, err
	}
	// No register to re-read here; the state word in the response is the
	// authoritative post-write value.
	return state & b.supported, nil
}

func (b *firmwareBackend) call(ctx context.Context, fn firmware.Func, arg *uint32) (uint32, error) {
	resp, err := b.med.Invoke(ctx, b.addr, fn, arg)
	if err != nil {
		return 0, fmt.Errorf("invoke firmware method %#x: %w", uint8(fn), err)
	}
	if err := checkStatus(resp); err != nil {
		b.logger.Debug("Firmware call returned failing status",
			"address", b.addr.String(),
			"method", uint8(fn),
			"status", firmware.StatusText(resp))
		return 0, err
	}
	return resp.State, nil
}

// checkStatus interprets a firmware response. Status 0 is success.
// Status 4 is success only with the partial-honor sub-code; everything
// else is a hard failure.
func checkStatus(resp firmware.Response) error {
	switch {
	case resp.Status == 0:
		return nil
	case resp.Status == 4 && resp.FunctionSpecificErr == partialHonorErr:
		return nil
	}
	return &StatusError{Response: resp}
}
