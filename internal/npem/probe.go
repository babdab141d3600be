package npem

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/smazurov/pcileds/internal/firmware"
	"github.com/smazurov/pcileds/internal/pci"
)

// probe inspects a device once and selects its backend. It returns
// (nil, nil) when the device exposes no indication support - that is a
// normal outcome, not an error.
func probe(ctx context.Context, dev pci.Device, med firmware.Mediator, logger *slog.Logger) (backendOps, error) {
	addr := dev.Addr()

	// The firmware backend is preferred and final whenever the platform
	// implements all three methods. Falling back to the register block
	// as well would put two independent managers on one device.
	if med.Supports(addr, firmware.FuncGetSupportedStates, firmware.FuncGetState, firmware.FuncSetState) {
		resp, err := med.Invoke(ctx, addr, firmware.FuncGetSupportedStates, nil)
		if err != nil {
			return nil, fmt.Errorf("query supported states: %w", err)
		}
		if err := checkStatus(resp); err != nil {
			return nil, fmt.Errorf("query supported states: %w", err)
		}

		supported := resp.State & tableMask(firmwareIndications)
		if supported == 0 {
			logger.Debug("Firmware reports no usable indications", "address", addr.String())
			return nil, nil
		}
		return newFirmwareBackend(addr, med, supported, logger), nil
	}

	pos, err := pci.FindExtCapability(dev, capNPEM)
	if err != nil {
		return nil, fmt.Errorf("capability walk: %w", err)
	}
	if pos == 0 {
		return nil, nil
	}

	cap, err := dev.ReadConfig32(pos + regCap)
	if err != nil {
		return nil, fmt.Errorf("read capability register: %w", err)
	}
	if cap&npemEnable == 0 {
		// Capability block present but not capable.
		return nil, nil
	}

	// Keep only real indications; enable/reset are mechanism bits and
	// reserved bits are unknown to this engine.
	supported := cap & tableMask(registerIndications)
	if supported == 0 {
		logger.Debug("Capability advertises no usable indications", "address", addr.String())
		return nil, nil
	}
	return newRegisterBackend(dev, pos, supported, logger), nil
}
