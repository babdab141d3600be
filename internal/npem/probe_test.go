package npem

import (
	"context"
	"testing"

	"github.com/smazurov/pcileds/internal/firmware"
)

func TestProbePrefersFirmware(t *testing.T) {
	// Device exposes both interfaces; the firmware one wins and the
	// register block is never consulted.
	dev := newFakeDevice().withNPEMCap(testPos, npemEnable|bitOK|bitLocate)
	med := &fakeMediator{available: true, supported: bitOK}

	ops, err := probe(context.Background(), dev, med, testLogger())
	if err != nil {
		t.Fatalf("probe returned error: %v", err)
	}
	if ops == nil {
		t.Fatal("probe returned no backend")
	}
	if ops.name() != "firmware" {
		t.Errorf("backend = %q, want firmware", ops.name())
	}
	if ops.supportedMask() != bitOK {
		t.Errorf("supported = %#x, want %#x", ops.supportedMask(), uint32(bitOK))
	}
}

func TestProbeFirmwareMasksUnknownBits(t *testing.T) {
	// Bits outside the firmware indication table (the enclosure-specific
	// block among them) are dropped from the supported mask.
	med := &fakeMediator{available: true, supported: bitOK | 1<<24 | 1<<31}

	ops, err := probe(context.Background(), newFakeDevice(), med, testLogger())
	if err != nil {
		t.Fatalf("probe returned error: %v", err)
	}
	if ops == nil {
		t.Fatal("probe returned no backend")
	}
	if ops.supportedMask() != bitOK {
		t.Errorf("supported = %#x, want %#x", ops.supportedMask(), uint32(bitOK))
	}
}

func TestProbeFirmwareNoUsableBits(t *testing.T) {
	// Platform implements the methods but reports nothing this engine can
	// drive. No fallback to the register block: backend choice is final.
	dev := newFakeDevice().withNPEMCap(testPos, npemEnable|bitOK)
	med := &fakeMediator{available: true, supported: 0}

	ops, err := probe(context.Background(), dev, med, testLogger())
	if err != nil {
		t.Fatalf("probe returned error: %v", err)
	}
	if ops != nil {
		t.Errorf("probe selected %q backend, want none", ops.name())
	}
}

func TestProbeFirmwareQueryFailure(t *testing.T) {
	med := &scriptedMediator{
		responses: map[firmware.Func]firmware.Response{
			firmware.FuncGetSupportedStates: {Status: 3},
		},
	}

	if _, err := probe(context.Background(), newFakeDevice(), med, testLogger()); err == nil {
		t.Fatal("probe succeeded despite failing supported-states query, want error")
	}
}

func TestProbeRegisterFallback(t *testing.T) {
	dev := newFakeDevice().withNPEMCap(testPos, npemEnable|bitOK|bitFailure)
	med := firmware.Unavailable()

	ops, err := probe(context.Background(), dev, med, testLogger())
	if err != nil {
		t.Fatalf("probe returned error: %v", err)
	}
	if ops == nil {
		t.Fatal("probe returned no backend")
	}
	if ops.name() != "register" {
		t.Errorf("backend = %q, want register", ops.name())
	}
	if ops.supportedMask() != bitOK|bitFailure {
		t.Errorf("supported = %#x, want %#x", ops.supportedMask(), bitOK|bitFailure)
	}
}

func TestProbeRegisterEnclosureSpecificBits(t *testing.T) {
	// The register interface carries the enclosure-specific block that the
	// firmware table lacks.
	dev := newFakeDevice().withNPEMCap(testPos, npemEnable|bitOK|1<<24|1<<31)

	ops, err := probe(context.Background(), dev, firmware.Unavailable(), testLogger())
	if err != nil {
		t.Fatalf("probe returned error: %v", err)
	}
	if ops == nil {
		t.Fatal("probe returned no backend")
	}
	if ops.supportedMask() != bitOK|1<<24|1<<31 {
		t.Errorf("supported = %#x, want %#x", ops.supportedMask(), bitOK|1<<24|1<<31)
	}
}

func TestProbeNoCapability(t *testing.T) {
	ops, err := probe(context.Background(), newFakeDevice(), firmware.Unavailable(), testLogger())
	if err != nil {
		t.Fatalf("probe returned error: %v", err)
	}
	if ops != nil {
		t.Errorf("probe selected %q backend on a bare device, want none", ops.name())
	}
}

func TestProbeCapabilityNotCapable(t *testing.T) {
	// Block present but the capable bit is clear: the device opted out.
	dev := newFakeDevice().withNPEMCap(testPos, bitOK|bitLocate)

	ops, err := probe(context.Background(), dev, firmware.Unavailable(), testLogger())
	if err != nil {
		t.Fatalf("probe returned error: %v", err)
	}
	if ops != nil {
		t.Errorf("probe selected %q backend, want none", ops.name())
	}
}

func TestProbeCapabilityNoIndicationBits(t *testing.T) {
	// Capable, but only mechanism and reserved bits are set.
	dev := newFakeDevice().withNPEMCap(testPos, npemEnable|npemReset|1<<12)

	ops, err := probe(context.Background(), dev, firmware.Unavailable(), testLogger())
	if err != nil {
		t.Fatalf("probe returned error: %v", err)
	}
	if ops != nil {
		t.Errorf("probe selected %q backend, want none", ops.name())
	}
}
