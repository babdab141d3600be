package npem

import (
	"context"
	"errors"
	"testing"
	"time"
)

const testPos = 0x280

func newTestRegisterBackend(cap uint32) (*registerBackend, *fakeDevice) {
	dev := newFakeDevice().withNPEMCap(testPos, cap)
	supported := cap & tableMask(registerIndications)
	return newRegisterBackend(dev, testPos, supported, testLogger()), dev
}

func TestRegisterGetActive(t *testing.T) {
	tests := []struct {
		name string
		cap  uint32
		ctrl uint32
		want uint32
	}{
		{
			name: "disabled block reports nothing active",
			cap:  npemEnable | bitOK | bitLocate,
			ctrl: bitOK | bitLocate,
			want: 0,
		},
		{
			name: "enabled block reports asserted bits",
			cap:  npemEnable | bitOK | bitLocate,
			ctrl: npemEnable | bitLocate,
			want: bitLocate,
		},
		{
			name: "unsupported bits are filtered out",
			cap:  npemEnable | bitOK,
			ctrl: npemEnable | bitOK | bitFailure | npemReset,
			want: bitOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend, dev := newTestRegisterBackend(tt.cap)
			dev.words[testPos+regCtrl] = tt.ctrl

			active, err := backend.getActive(context.Background())
			if err != nil {
				t.Fatalf("getActive returned error: %v", err)
			}
			if active != tt.want {
				t.Errorf("getActive = %#x, want %#x", active, tt.want)
			}
		})
	}
}

func TestRegisterGetActiveReadError(t *testing.T) {
	backend, dev := newTestRegisterBackend(npemEnable | bitOK)
	dev.readErr = map[int]error{testPos + regCtrl: errors.New("config read failed")}

	if _, err := backend.getActive(context.Background()); err == nil {
		t.Fatal("getActive succeeded with failing device, want error")
	}
}

func TestRegisterSetActive(t *testing.T) {
	backend, dev := newTestRegisterBackend(npemEnable | bitOK | bitLocate)

	active, err := backend.setActive(context.Background(), bitLocate)
	if err != nil {
		t.Fatalf("setActive returned error: %v", err)
	}
	if active != bitLocate {
		t.Errorf("setActive = %#x, want %#x", active, uint32(bitLocate))
	}

	writes := dev.ctrlWrites(testPos)
	if len(writes) != 1 {
		t.Fatalf("%d control writes, want exactly 1", len(writes))
	}
	// Global enable rides along with every write.
	if writes[0].value != bitLocate|npemEnable {
		t.Errorf("control write = %#x, want %#x", writes[0].value, bitLocate|npemEnable)
	}
}

func TestRegisterSetActiveDeviceRejectsBits(t *testing.T) {
	backend, dev := newTestRegisterBackend(npemEnable | bitOK | bitLocate)

	// Device silently drops locate on write; the re-read must carry that
	// back to the caller.
	dev.onWrite = func(d *fakeDevice, offset int, value uint32) {
		if offset == testPos+regCtrl {
			d.words[offset] = value &^ bitLocate
			d.words[testPos+regStatus] |= npemCC
		}
	}

	active, err := backend.setActive(context.Background(), bitOK|bitLocate)
	if err != nil {
		t.Fatalf("setActive returned error: %v", err)
	}
	if active != bitOK {
		t.Errorf("setActive = %#x, want %#x (locate rejected)", active, uint32(bitOK))
	}
}

func TestRegisterSetActiveWriteError(t *testing.T) {
	backend, dev := newTestRegisterBackend(npemEnable | bitOK)
	dev.wrErr = errors.New("config write failed")

	if _, err := backend.setActive(context.Background(), bitOK); err == nil {
		t.Fatal("setActive succeeded with failing device, want error")
	}
}

func TestRegisterSetActiveRereadError(t *testing.T) {
	backend, dev := newTestRegisterBackend(npemEnable | bitOK)
	dev.readErr = map[int]error{testPos + regCtrl: errors.New("config read failed")}

	if _, err := backend.setActive(context.Background(), bitOK); err == nil {
		t.Fatal("setActive succeeded despite failing re-read, want error")
	}
}

func TestRegisterCompletionTimeoutIsNotAnError(t *testing.T) {
	backend, dev := newTestRegisterBackend(npemEnable | bitOK)
	backend.pollInterval = 100 * time.Microsecond
	backend.pollTimeout = 5 * time.Millisecond

	// Device never raises command-complete.
	dev.onWrite = nil

	start := time.Now()
	active, err := backend.setActive(context.Background(), bitOK)
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("setActive returned error on completion timeout: %v", err)
	}
	if active != bitOK {
		t.Errorf("setActive = %#x, want %#x", active, uint32(bitOK))
	}
	if elapsed < backend.pollTimeout {
		t.Errorf("returned after %v, before the %v deadline", elapsed, backend.pollTimeout)
	}
	if elapsed > time.Second {
		t.Errorf("polling ran %v, far past the deadline", elapsed)
	}
}

func TestRegisterCompletionPollStopsOnCC(t *testing.T) {
	backend, dev := newTestRegisterBackend(npemEnable | bitOK)
	backend.pollTimeout = time.Second

	// withNPEMCap raises CC on every control write, so the poll should
	// return on its first status read.
	start := time.Now()
	if _, err := backend.setActive(context.Background(), bitOK); err != nil {
		t.Fatalf("setActive returned error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("setActive took %v with command-complete asserted", elapsed)
	}

	if dev.words[testPos+regStatus]&npemCC == 0 {
		t.Error("status register lost command-complete bit")
	}
}
