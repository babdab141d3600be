// Package pci provides minimal access to PCI devices through the Linux
// sysfs interface: device enumeration, configuration space reads and
// writes, and the extended capability walk.
package pci

import (
	"fmt"
	"strconv"
)

// DefaultSysfsPath is where the kernel exposes enumerated PCI devices.
const DefaultSysfsPath = "/sys/bus/pci/devices"

// Addr identifies a PCI function as domain:bus:device.function.
type Addr struct {
	Domain   uint16
	Bus      uint8
	Device   uint8
	Function uint8
}

// ParseAddr parses the canonical sysfs form, e.g. "0000:03:00.0".
// Only the exact dddd:bb:dd.f layout is accepted; short fields or
// trailing characters are rejected.
func ParseAddr(s string) (Addr, error) {
	fail := func() (Addr, error) {
		return Addr{}, fmt.Errorf("invalid PCI address %q", s)
	}

	if len(s) != 12 || s[4] != ':' || s[7] != ':' || s[10] != '.' {
		return fail()
	}
	domain, err := strconv.ParseUint(s[0:4], 16, 16)
	if err != nil {
		return fail()
	}
	bus, err := strconv.ParseUint(s[5:7], 16, 8)
	if err != nil {
		return fail()
	}
	device, err := strconv.ParseUint(s[8:10], 16, 8)
	if err != nil || device > 0x1f {
		return fail()
	}
	function, err := strconv.ParseUint(s[11:12], 16, 8)
	if err != nil || function > 7 {
		return fail()
	}

	return Addr{
		Domain:   uint16(domain),
		Bus:      uint8(bus),
		Device:   uint8(device),
		Function: uint8(function),
	}, nil
}

// String returns the canonical sysfs form of the address.
func (a Addr) String() string {
	return fmt.Sprintf("%04x:%02x:%02x.%x", a.Domain, a.Bus, a.Device, a.Function)
}
