// Package vehicle maintains the consolidated vehicle state: it maps decoded
// signals onto VehicleState fields, publishes snapshots and derives
// state-level events.
package vehicle

import (
	"time"

	"vehicle-led-service/internal/catalog"
	"vehicle-led-service/internal/types"
)

// setter writes one decoded value into the state and reports whether a field
// changed.
type setter func(s *types.VehicleState, v float64) bool

type rule struct {
	id   uint32
	name string
	set  setter
}

func setFloat(p *float64, v float64) bool {
	if *p == v {
		return false
	}
	*p = v
	return true
}

func setBool(p *bool, v bool) bool {
	if *p == v {
		return false
	}
	*p = v
	return true
}

func setU8(p *uint8, v uint8) bool {
	if *p == v {
		return false
	}
	*p = v
	return true
}

func clampU8(v float64, max float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > max {
		v = max
	}
	return uint8(v + 0.5)
}

// latchOpen decodes a door latch status. 2 is closed and 0 (SNA) is treated
// as closed.
func latchOpen(v float64) bool {
	code := int(v)
	return code != 2 && code != 0
}

func door(get func(*types.VehicleState) *bool) setter {
	return func(s *types.VehicleState, v float64) bool {
		if !setBool(get(s), latchOpen(v)) {
			return false
		}
		countDoors(s)
		return true
	}
}

func countDoors(s *types.VehicleState) {
	var n uint8
	for _, open := range []bool{s.DoorFrontLeft, s.DoorRearLeft, s.DoorFrontRight, s.DoorRearRight, s.TrunkOpen, s.FrunkOpen} {
		if open {
			n++
		}
	}
	s.DoorsOpenCount = n
}

func flag(get func(*types.VehicleState) *bool, threshold float64) setter {
	return func(s *types.VehicleState, v float64) bool {
		return setBool(get(s), v >= threshold)
	}
}

func level(get func(*types.VehicleState) *uint8) setter {
	return func(s *types.VehicleState, v float64) bool {
		return setU8(get(s), clampU8(v, 255))
	}
}

var rules = []rule{
	{0x257, "DI_vehicleSpeed", func(s *types.VehicleState, v float64) bool { return setFloat(&s.SpeedKph, v) }},
	{0x118, "DI_gear", func(s *types.VehicleState, v float64) bool {
		g := int8(v + 0.5)
		if s.Gear == g {
			return false
		}
		s.Gear = g
		return true
	}},
	{0x39D, "IBST_driverBrakeApply", func(s *types.VehicleState, v float64) bool { return setBool(&s.Brake, int(v) == 2) }},
	{0x3F3, "UI_odometer", func(s *types.VehicleState, v float64) bool { return setFloat(&s.OdometerKm, v) }},
	{0x334, "UI_speedLimit", func(s *types.VehicleState, v float64) bool { return setFloat(&s.SpeedThreshold, v) }},

	{0x102, "VCLEFT_frontLatchStatus", door(func(s *types.VehicleState) *bool { return &s.DoorFrontLeft })},
	{0x102, "VCLEFT_rearLatchStatus", door(func(s *types.VehicleState) *bool { return &s.DoorRearLeft })},
	{0x103, "VCRIGHT_frontLatchStatus", door(func(s *types.VehicleState) *bool { return &s.DoorFrontRight })},
	{0x103, "VCRIGHT_rearLatchStatus", door(func(s *types.VehicleState) *bool { return &s.DoorRearRight })},
	{0x103, "VCRIGHT_trunkLatchStatus", door(func(s *types.VehicleState) *bool { return &s.TrunkOpen })},
	{0x2E1, "VCFRONT_frunkLatchStatus", func(s *types.VehicleState, v float64) bool {
		code := int(v)
		if code < 1 || code > 5 {
			return false
		}
		if !setBool(&s.FrunkOpen, code == 1) {
			return false
		}
		countDoors(s)
		return true
	}},

	{0x3F5, "VCFRONT_indicatorLeftRequest", flag(func(s *types.VehicleState) *bool { return &s.TurnLeft }, 1)},
	{0x3F5, "VCFRONT_indicatorRightRequest", flag(func(s *types.VehicleState) *bool { return &s.TurnRight }, 1)},
	{0x3F5, "VCFRONT_hazardLightRequest", flag(func(s *types.VehicleState) *bool { return &s.Hazard }, 1)},
	{0x3F5, "VCFRONT_lowBeamLeftStatus", level(func(s *types.VehicleState) *uint8 { return &s.Headlights })},
	{0x3F5, "VCFRONT_lowBeamRightStatus", level(func(s *types.VehicleState) *uint8 { return &s.Headlights })},
	{0x3F5, "VCFRONT_highBeamLeftStatus", level(func(s *types.VehicleState) *uint8 { return &s.HighBeams })},
	{0x3F5, "VCFRONT_highBeamRightStatus", level(func(s *types.VehicleState) *uint8 { return &s.HighBeams })},
	{0x3F5, "VCFRONT_fogLeftStatus", level(func(s *types.VehicleState) *uint8 { return &s.FogLights })},
	{0x3F5, "VCFRONT_fogRightStatus", level(func(s *types.VehicleState) *uint8 { return &s.FogLights })},

	{0x399, "DAS_autopilotState", level(func(s *types.VehicleState) *uint8 { return &s.Autopilot })},
	{0x399, "DAS_forwardCollisionWarning", func(s *types.VehicleState, v float64) bool {
		return setBool(&s.ForwardCollision, int(v) == 1)
	}},
	{0x399, "DAS_blindSpotRearLeft", func(s *types.VehicleState, v float64) bool {
		a := setBool(&s.BlindspotLeftLv1, int(v) == 1)
		b := setBool(&s.BlindspotLeftLv2, int(v) == 2)
		return a || b
	}},
	{0x399, "DAS_blindSpotRearRight", func(s *types.VehicleState, v float64) bool {
		a := setBool(&s.BlindspotRightLv1, int(v) == 1)
		b := setBool(&s.BlindspotRightLv2, int(v) == 2)
		return a || b
	}},
	{0x399, "DAS_sideCollisionWarning", func(s *types.VehicleState, v float64) bool {
		code := int(v)
		a := setBool(&s.SideCollisionLeft, code == 1 || code == 3)
		b := setBool(&s.SideCollisionRight, code == 2 || code == 3)
		return a || b
	}},
	{0x399, "DAS_laneDepartureWarning", func(s *types.VehicleState, v float64) bool {
		code := int(v)
		changed := setBool(&s.LaneDepartureLeftLv1, code == 1)
		changed = setBool(&s.LaneDepartureRightLv1, code == 2) || changed
		changed = setBool(&s.LaneDepartureLeftLv2, code == 3) || changed
		changed = setBool(&s.LaneDepartureRightLv2, code == 4) || changed
		return changed
	}},

	{0x292, "SOCUI292", func(s *types.VehicleState, v float64) bool {
		soc := v / 1.023
		if soc > 100 {
			soc = 100
		}
		return setFloat(&s.SOC, soc)
	}},
	{0x132, "BattVoltage132", func(s *types.VehicleState, v float64) bool { return setFloat(&s.BatteryHV, v) }},
	{0x261, "v12vBattVoltage261", func(s *types.VehicleState, v float64) bool { return setFloat(&s.BatteryLV, v) }},
	{0x204, "PCS_hvChargeStatus", func(s *types.VehicleState, v float64) bool {
		switch int(v) {
		case 2:
			return setBool(&s.Charging, true)
		case 0:
			return setBool(&s.Charging, false)
		}
		return false
	}},
	{0x284, "CP_chargeCablePresent", func(s *types.VehicleState, v float64) bool {
		switch int(v) {
		case 1:
			return setBool(&s.ChargingCable, false)
		case 2:
			return setBool(&s.ChargingCable, true)
		}
		return false
	}},
	{0x212, "BMS_uiChargeStatus", level(func(s *types.VehicleState) *uint8 { return &s.ChargeStatus })},
	{0x212, "BMS_chgPowerAvailable", func(s *types.VehicleState, v float64) bool {
		if v > 255 {
			v = 0
		}
		return setFloat(&s.ChargePowerKw, v)
	}},
	{0x25D, "CP_chargeDoorOpen", flag(func(s *types.VehicleState) *bool { return &s.ChargingPort }, 0.5)},

	{0x273, "UI_ambientLightingEnabled", flag(func(s *types.VehicleState) *bool { return &s.NightMode }, 0.5)},
	{0x273, "UI_displayBrightnessLevel", func(s *types.VehicleState, v float64) bool {
		return setU8(&s.Brightness, clampU8(v/1.27, 100))
	}},
	{0x273, "UI_intrusionSensorOn", flag(func(s *types.VehicleState) *bool { return &s.SentryMode }, 0.5)},
	{0x273, "UI_alarmTriggered", flag(func(s *types.VehicleState) *bool { return &s.SentryAlert }, 0.5)},
	{0x273, "UI_lockRequest", func(s *types.VehicleState, v float64) bool {
		switch int(v) {
		case 1:
			return setBool(&s.Locked, true)
		case 2:
			return setBool(&s.Locked, false)
		}
		return false
	}},
}

// Mapper applies decoded signals to a VehicleState. Rules are resolved
// against the catalog once, so Apply is an index lookup.
type Mapper struct {
	table [][]setter
	bound int
}

// NewMapper binds the mapping rules to cat. Rules naming signals that are not
// in the catalog are ignored.
func NewMapper(cat *catalog.Catalog) *Mapper {
	m := &Mapper{table: make([][]setter, len(cat.Messages))}
	for i := range cat.Messages {
		m.table[i] = make([]setter, len(cat.Messages[i].Signals))
	}
	for _, r := range rules {
		idx, msg := cat.Lookup(r.id)
		if msg == nil {
			continue
		}
		for j := range msg.Signals {
			if msg.Signals[j].Name == r.name {
				m.table[idx][j] = r.set
				m.bound++
				break
			}
		}
	}
	return m
}

// Bound returns the number of rules that resolved to a catalog signal.
func (m *Mapper) Bound() int {
	return m.bound
}

// Apply writes the value of signal sigIndex of message msgIndex into s and
// reports whether any field changed. Signals without a rule are ignored.
func (m *Mapper) Apply(s *types.VehicleState, msgIndex, sigIndex int, value float64) bool {
	if msgIndex < 0 || msgIndex >= len(m.table) {
		return false
	}
	row := m.table[msgIndex]
	if sigIndex < 0 || sigIndex >= len(row) || row[sigIndex] == nil {
		return false
	}
	return row[sigIndex](s, value)
}

// Touch records the time of the latest update.
func (m *Mapper) Touch(s *types.VehicleState, ts time.Time) {
	s.LastUpdate = ts
}
