package types

import "time"

// Gear values as reported by DI_gear.
const (
	GearInvalid int8 = 0
	GearPark    int8 = 1
	GearReverse int8 = 2
	GearNeutral int8 = 3
	GearDrive   int8 = 4
)

// VehicleState is the consolidated view of the vehicle. It is written by the
// decode path only and read through snapshots.
type VehicleState struct {
	SpeedKph       float64 `json:"speed_kph"`
	SpeedThreshold float64 `json:"speed_threshold"`
	Gear           int8    `json:"gear"`
	Brake          bool    `json:"brake"`
	OdometerKm     float64 `json:"odometer_km"`

	Locked         bool  `json:"locked"`
	DoorsOpenCount uint8 `json:"doors_open_count"`
	DoorFrontLeft  bool  `json:"door_front_left_open"`
	DoorRearLeft   bool  `json:"door_rear_left_open"`
	DoorFrontRight bool  `json:"door_front_right_open"`
	DoorRearRight  bool  `json:"door_rear_right_open"`
	FrunkOpen      bool  `json:"frunk_open"`
	TrunkOpen      bool  `json:"trunk_open"`

	TurnLeft   bool  `json:"turn_left"`
	TurnRight  bool  `json:"turn_right"`
	Hazard     bool  `json:"hazard"`
	Headlights uint8 `json:"headlights"`
	HighBeams  uint8 `json:"high_beams"`
	FogLights  uint8 `json:"fog_lights"`

	SOC           float64 `json:"soc"`
	ChargingCable bool    `json:"charging_cable"`
	Charging      bool    `json:"charging"`
	ChargeStatus  uint8   `json:"charge_status"`
	ChargePowerKw float64 `json:"charge_power_kw"`
	ChargingPort  bool    `json:"charging_port"`

	SentryMode  bool `json:"sentry_mode"`
	SentryAlert bool `json:"sentry_alert"`

	BatteryLV float64 `json:"battery_lv"`
	BatteryHV float64 `json:"battery_hv"`

	BlindspotLeftLv1      bool `json:"blindspot_left_lv1"`
	BlindspotLeftLv2      bool `json:"blindspot_left_lv2"`
	BlindspotRightLv1     bool `json:"blindspot_right_lv1"`
	BlindspotRightLv2     bool `json:"blindspot_right_lv2"`
	SideCollisionLeft     bool `json:"side_collision_left"`
	SideCollisionRight    bool `json:"side_collision_right"`
	LaneDepartureLeftLv1  bool `json:"lane_departure_left_lv1"`
	LaneDepartureLeftLv2  bool `json:"lane_departure_left_lv2"`
	LaneDepartureRightLv1 bool `json:"lane_departure_right_lv1"`
	LaneDepartureRightLv2 bool `json:"lane_departure_right_lv2"`
	ForwardCollision      bool `json:"forward_collision"`

	NightMode  bool  `json:"night_mode"`
	Brightness uint8 `json:"brightness"`
	Autopilot  uint8 `json:"autopilot"`

	LastUpdate time.Time `json:"last_update"`
}
