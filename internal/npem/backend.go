package npem

import "context"

// backendOps is the mechanism behind an engine: direct register access
// or a firmware-mediated call interface. Exactly one implementation is
// bound per engine, selected at probe time and never switched.
type backendOps interface {
	name() string

	// indications returns the backend's static indication table.
	indications() []Indication

	// supportedMask returns the device's declared capability word
	// restricted to bits this backend's table recognizes.
	supportedMask() uint32

	// getActive reads the currently asserted indication mask.
	getActive(ctx context.Context) (uint32, error)

	// setActive writes the desired indication mask and returns the
	// authoritative post-write mask. The device may silently reject or
	// auto-clear bit combinations, so callers must trust the returned
	// value over the one they requested.
	setActive(ctx context.Context, mask uint32) (uint32, error)
}
