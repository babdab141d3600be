package npem

import (
	"context"
	"log/slog"
	"os"

	"github.com/smazurov/pcileds/internal/firmware"
	"github.com/smazurov/pcileds/internal/pci"
)

// Frequently used indication bits.
const (
	bitOK       = 1 << 2
	bitLocate   = 1 << 3
	bitFailure  = 1 << 4
	bitRebuild  = 1 << 5
	bitHotspare = 1 << 7
)

var testAddr = pci.Addr{Domain: 0, Bus: 3, Device: 0, Function: 0}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

// configWrite records one config space write.
type configWrite struct {
	offset int
	value  uint32
}

// fakeDevice is an in-memory PCI config space. onWrite lets tests model
// device-side behavior such as raising command-complete or rejecting
// bits.
type fakeDevice struct {
	addr    pci.Addr
	words   map[int]uint32
	writes  []configWrite
	readErr map[int]error
	wrErr   error
	onWrite func(d *fakeDevice, offset int, value uint32)
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		addr:  testAddr,
		words: make(map[int]uint32),
	}
}

func (d *fakeDevice) Addr() pci.Addr { return d.addr }

func (d *fakeDevice) ReadConfig32(offset int) (uint32, error) {
	if err := d.readErr[offset]; err != nil {
		return 0, err
	}
	return d.words[offset], nil
}

func (d *fakeDevice) WriteConfig32(offset int, value uint32) error {
	if d.wrErr != nil {
		return d.wrErr
	}
	d.writes = append(d.writes, configWrite{offset, value})
	d.words[offset] = value
	if d.onWrite != nil {
		d.onWrite(d, offset, value)
	}
	return nil
}

func (d *fakeDevice) ctrlWrites(pos int) []configWrite {
	var out []configWrite
	for _, w := range d.writes {
		if w.offset == pos+regCtrl {
			out = append(out, w)
		}
	}
	return out
}

// extCapHeader builds an extended capability header dword.
func extCapHeader(id uint16, next int) uint32 {
	return uint32(id) | 1<<16 | uint32(next)<<20
}

// withNPEMCap wires an NPEM capability block at pos with the given
// capability word. Completion is reported immediately after every
// control write unless the test overrides onWrite.
func (d *fakeDevice) withNPEMCap(pos int, cap uint32) *fakeDevice {
	d.words[0x100] = extCapHeader(capNPEM, 0)
	if pos != 0x100 {
		d.words[0x100] = extCapHeader(0x0001, pos)
		d.words[pos] = extCapHeader(capNPEM, 0)
	}
	d.words[pos+regCap] = cap
	d.onWrite = func(d *fakeDevice, offset int, value uint32) {
		if offset == pos+regCtrl {
			d.words[pos+regStatus] |= npemCC
		}
	}
	return d
}

// fwCall records a firmware method invocation.
type fwCall struct {
	fn  firmware.Func
	arg *uint32
}

// fakeMediator is an in-memory firmware mediator holding one device's
// state word.
type fakeMediator struct {
	available bool
	supported uint32
	state     uint32

	getErr  error
	setErr  error
	setHook func(arg uint32) (firmware.Response, error)

	calls []fwCall
}

func (m *fakeMediator) Supports(addr pci.Addr, funcs ...firmware.Func) bool {
	return m.available
}

func (m *fakeMediator) Invoke(ctx context.Context, addr pci.Addr, fn firmware.Func, arg *uint32) (firmware.Response, error) {
	m.calls = append(m.calls, fwCall{fn, arg})
	switch fn {
	case firmware.FuncGetSupportedStates:
		return firmware.Response{State: m.supported}, nil
	case firmware.FuncGetState:
		if m.getErr != nil {
			return firmware.Response{}, m.getErr
		}
		return firmware.Response{State: m.state}, nil
	case firmware.FuncSetState:
		if m.setErr != nil {
			return firmware.Response{}, m.setErr
		}
		if m.setHook != nil {
			return m.setHook(*arg)
		}
		m.state = *arg & m.supported
		return firmware.Response{State: m.state}, nil
	}
	return firmware.Response{}, firmware.ErrUnsupported
}

// fakeBackend implements backendOps directly for engine-level tests.
type fakeBackend struct {
	table     []Indication
	supported uint32
	active    uint32

	getCalls int
	setCalls int
	getErr   error
	setErr   error
	setHook  func(mask uint32) (uint32, error)
}

func newFakeBackend(supported uint32) *fakeBackend {
	return &fakeBackend{table: registerIndications, supported: supported}
}

func (b *fakeBackend) name() string { return "fake" }

func (b *fakeBackend) indications() []Indication { return b.table }

func (b *fakeBackend) supportedMask() uint32 { return b.supported }

func (b *fakeBackend) getActive(ctx context.Context) (uint32, error) {
	b.getCalls++
	if b.getErr != nil {
		return 0, b.getErr
	}
	return b.active & b.supported, nil
}

func (b *fakeBackend) setActive(ctx context.Context, mask uint32) (uint32, error) {
	b.setCalls++
	if b.setErr != nil {
		return 0, b.setErr
	}
	if b.setHook != nil {
		active, err := b.setHook(mask)
		if err != nil {
			return 0, err
		}
		b.active = active
		return active, nil
	}
	b.active = mask & b.supported
	return b.active, nil
}
