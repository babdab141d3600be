package pci

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Device is a handle to a single PCI function's configuration space.
// Offsets are byte offsets into configuration space; accesses are
// dword-sized, matching what the hardware register blocks expect.
type Device interface {
	Addr() Addr
	ReadConfig32(offset int) (uint32, error)
	WriteConfig32(offset int, value uint32) error
}

// sysfsDevice accesses configuration space through the per-device
// "config" file exposed by the kernel.
type sysfsDevice struct {
	addr Addr
	path string
}

// Open returns a Device backed by sysfs under root (usually
// DefaultSysfsPath). It fails if the device's config file is missing.
func Open(root string, addr Addr) (Device, error) {
	path := filepath.Join(root, addr.String(), "config")
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open PCI device %s: %w", addr, err)
	}
	return &sysfsDevice{addr: addr, path: path}, nil
}

func (d *sysfsDevice) Addr() Addr { return d.addr }

func (d *sysfsDevice) ReadConfig32(offset int) (uint32, error) {
	f, err := os.Open(d.path)
	if err != nil {
		return 0, fmt.Errorf("config read at %#x: %w", offset, err)
	}
	defer f.Close()

	var buf [4]byte
	if _, err := f.ReadAt(buf[:], int64(offset)); err != nil {
		return 0, fmt.Errorf("config read at %#x: %w", offset, err)
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func (d *sysfsDevice) WriteConfig32(offset int, value uint32) error {
	f, err := os.OpenFile(d.path, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("config write at %#x: %w", offset, err)
	}
	defer f.Close()

	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], value)
	if _, err := f.WriteAt(buf[:], int64(offset)); err != nil {
		return fmt.Errorf("config write at %#x: %w", offset, err)
	}
	return nil
}

// ScanBus lists the addresses of all devices enumerated under root.
func ScanBus(root string) ([]Addr, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("scan PCI bus: %w", err)
	}

	addrs := make([]Addr, 0, len(entries))
	for _, entry := range entries {
		addr, err := ParseAddr(entry.Name())
		if err != nil {
			continue
		}
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool {
		return addrs[i].String() < addrs[j].String()
	})
	return addrs, nil
}
