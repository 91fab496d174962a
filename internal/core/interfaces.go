package core

import (
	"time"

	"vehicle-led-service/internal/arbiter"
	"vehicle-led-service/internal/messaging"
	"vehicle-led-service/internal/trigger"
	"vehicle-led-service/internal/types"
)

// MessagingClient defines the interface for Redis messaging operations needed by LightingSystem
type MessagingClient interface {
	SetCallbacks(callbacks messaging.Callbacks)
	Connect() error
	StartListening() error
	Close() error

	// Renderer output and mirrors
	PublishEffect(res arbiter.Resolution) error
	PublishVehicleState(state types.VehicleState) error
	PublishServiceState(state types.ServiceState) error
	PublishEvent(ev trigger.Fired, ts time.Time) error
	WriteExport(id int, doc []byte) error

	// Profile persistence
	SaveProfile(id int, doc []byte) error
	DeleteProfile(id int) error
	LoadProfile(id int) ([]byte, error)
	LoadProfiles() (map[int][]byte, error)
	SaveActiveProfile(id int) error
	LoadActiveProfile() (int, error)
}

// HardwareIO defines the interface for the GPIO outputs needed by LightingSystem
type HardwareIO interface {
	Initialize() error
	Cleanup()
	WriteDigitalOutput(channel string, value bool) error
	SetInitialValue(name string, value bool)
}

// CANSource is one bus reader.
type CANSource interface {
	Interface() string
	Bus() uint8
	SetFilter(ids []uint32) error
	Start(out chan<- types.Frame)
	Dropped() uint64
	Close() error
}

// CANOpener opens the reader for an interface and bus index.
type CANOpener func(ifname string, bus uint8) (CANSource, error)
