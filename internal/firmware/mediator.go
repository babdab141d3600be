// Package firmware defines the platform firmware call interface used to
// manage storage device indications on the platform's behalf. Platforms
// expose three methods per device: query the supported state word, query
// the active state word, and set the active state word.
package firmware

import (
	"context"
	"errors"
	"fmt"

	"github.com/smazurov/pcileds/internal/pci"
)

// Func selects one of the three firmware methods.
type Func uint8

const (
	// FuncGetSupportedStates returns the state bits the platform
	// implements for the device.
	FuncGetSupportedStates Func = 0x01
	// FuncGetState returns the currently active state bits.
	FuncGetState Func = 0x02
	// FuncSetState sets the active state bits.
	FuncSetState Func = 0x03
)

// ErrUnsupported is returned by Invoke when the platform does not
// implement the requested method for the device.
var ErrUnsupported = errors.New("firmware method not supported")

// Response is the fixed-layout result of a firmware method invocation.
type Response struct {
	Status              uint16
	FunctionSpecificErr uint8
	VendorSpecificErr   uint8
	State               uint32
}

// Mediator invokes firmware methods for PCI devices. Implementations
// are platform specific; Unavailable() serves platforms without one.
type Mediator interface {
	// Supports reports whether every listed method is implemented for
	// the device.
	Supports(addr pci.Addr, funcs ...Func) bool

	// Invoke calls a firmware method. arg, when non-nil, is passed as
	// the method's 4-byte argument. A returned error means the call
	// itself failed; a non-zero Response.Status is reported through the
	// Response and is the caller's to interpret.
	Invoke(ctx context.Context, addr pci.Addr, fn Func, arg *uint32) (Response, error)
}

// StatusText renders a response's status for diagnostics.
func StatusText(r Response) string {
	switch r.Status {
	case 0:
		return "success"
	case 1:
		return "method not supported"
	case 2:
		return "invalid input parameters"
	case 3:
		return "communication error"
	case 4:
		return fmt.Sprintf("function-specific error %#x", r.FunctionSpecificErr)
	case 5:
		return fmt.Sprintf("vendor-specific error %#x", r.VendorSpecificErr)
	default:
		return fmt.Sprintf("unknown status %#x", r.Status)
	}
}

type unavailable struct{}

// Unavailable returns a Mediator for platforms without firmware-mediated
// indication management. Supports always reports false.
func Unavailable() Mediator { return unavailable{} }

func (unavailable) Supports(pci.Addr, ...Func) bool { return false }

func (unavailable) Invoke(context.Context, pci.Addr, Func, *uint32) (Response, error) {
	return Response{}, ErrUnsupported
}
