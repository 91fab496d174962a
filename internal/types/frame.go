package types

import "time"

const (
	BusChassis uint8 = iota
	BusPowertrain
	BusBody
)

// Frame is one received CAN frame. Data beyond DLC is zero.
type Frame struct {
	ID        uint32
	DLC       uint8
	Data      [8]byte
	Timestamp time.Time
	Bus       uint8
}
