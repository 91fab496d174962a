package hardware

const (
	// Digital outputs.
	OutputLEDPower    = "led_power"
	OutputCAN0Standby = "can0_standby"
	OutputCAN1Standby = "can1_standby"

	gpioConsumer = "vehicle-led-service"

	// struct can_frame: id(4) dlc(1) pad(3) data(8)
	canFrameSize = 16

	DefaultFrameBuffer = 1024
)

var DoMappings = map[string]struct {
	Chip int
	Line int
}{
	OutputLEDPower:    {2, 12},
	OutputCAN0Standby: {2, 13},
	OutputCAN1Standby: {2, 14},
}

// StandbyOutput returns the transceiver standby line for a bus index.
func StandbyOutput(bus uint8) (string, bool) {
	switch bus {
	case 0:
		return OutputCAN0Standby, true
	case 1:
		return OutputCAN1Standby, true
	default:
		return "", false
	}
}
