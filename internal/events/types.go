package events

// Event type constants for kelindar/event.
const (
	TypeDeviceAttached uint32 = iota + 1
	TypeDeviceDetached
	TypeIndicationChanged
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// DeviceAttachedEvent is published when an indication engine is bound to
// a device at attach time.
type DeviceAttachedEvent struct {
	Address   string   `json:"address" example:"0000:03:00.0" doc:"PCI address of the device"`
	Backend   string   `json:"backend" example:"register" doc:"Selected backend: register or firmware"`
	Supported []string `json:"supported" doc:"Names of the indications the device supports"`
	Timestamp string   `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for DeviceAttachedEvent.
func (e DeviceAttachedEvent) Type() uint32 { return TypeDeviceAttached }

// DeviceDetachedEvent is published when a device's engine is destroyed
// at detach time.
type DeviceDetachedEvent struct {
	Address   string `json:"address" example:"0000:03:00.0" doc:"PCI address of the device"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for DeviceDetachedEvent.
func (e DeviceDetachedEvent) Type() uint32 { return TypeDeviceDetached }

// IndicationChangedEvent is published when an indication is toggled
// through the indicator registry.
type IndicationChangedEvent struct {
	Name      string `json:"name" example:"0000:03:00.0:enclosure:locate" doc:"Registered indicator name"`
	Active    bool   `json:"active" example:"true" doc:"New indication state"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for IndicationChangedEvent.
func (e IndicationChangedEvent) Type() uint32 { return TypeIndicationChanged }
