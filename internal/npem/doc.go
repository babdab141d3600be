// Package npem manages visual status indications (locate, failure,
// rebuild, ...) for storage devices attached behind PCIe ports.
//
// Two mutually exclusive backends exist. The register backend drives the
// Native PCIe Enclosure Management extended capability block directly
// through configuration space. The firmware backend asks platform
// firmware to perform the same function through a three-method call
// interface. A device is probed once at attach time; the firmware
// backend is preferred when available, and the selection is final for
// the engine's lifetime - concurrent management of the same device by
// two independent paths would race.
//
// Each attached device gets one Engine, which owns the serialization
// lock, the cached active-indication mask, and one registered indicator
// per supported indication bit.
package npem
