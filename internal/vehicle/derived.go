package vehicle

import (
	"vehicle-led-service/internal/catalog"
	"vehicle-led-service/internal/trigger"
	"vehicle-led-service/internal/types"
)

// DerivedMessageID is the virtual message carrying state-level signals. Its
// low byte is unused by the sample catalog so it gets its own history row.
const DerivedMessageID uint32 = 0x7FF

type derivedSignal struct {
	signal  catalog.Signal
	compute func(s *types.VehicleState) float64
}

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func edge(name string, on, off types.SemanticEvent, compute func(s *types.VehicleState) bool) derivedSignal {
	sig := catalog.Signal{Name: name, Length: 1, Kind: catalog.Boolean, Factor: 1}
	if on != types.EventNone {
		sig.Triggers = append(sig.Triggers, catalog.Trigger{Condition: catalog.RisingEdge, Event: on})
	}
	if off != types.EventNone {
		sig.Triggers = append(sig.Triggers, catalog.Trigger{Condition: catalog.FallingEdge, Event: off})
	}
	return derivedSignal{signal: sig, compute: func(s *types.VehicleState) float64 { return b2f(compute(s)) }}
}

func laneLevel(name string, lv1, lv2 types.SemanticEvent, compute func(s *types.VehicleState) float64) derivedSignal {
	return derivedSignal{
		signal: catalog.Signal{Name: name, Length: 2, Kind: catalog.Unsigned, Factor: 1, Triggers: []catalog.Trigger{
			{Condition: catalog.Equals, Value: 1, Event: lv1},
			{Condition: catalog.Equals, Value: 2, Event: lv2},
		}},
		compute: compute,
	}
}

// ChargeStatusComplete is the BMS_uiChargeStatus code for a finished charge.
const ChargeStatusComplete = 4

var derivedSignals = []derivedSignal{
	edge("speed_over_threshold", types.EventSpeedThreshold, types.EventNone, func(s *types.VehicleState) bool {
		return s.SpeedThreshold > 0 && s.SpeedKph > s.SpeedThreshold
	}),
	edge("sentry_mode", types.EventSentryModeOn, types.EventSentryModeOff, func(s *types.VehicleState) bool { return s.SentryMode }),
	edge("sentry_alert", types.EventSentryAlert, types.EventNone, func(s *types.VehicleState) bool { return s.SentryAlert }),
	edge("blindspot_left_lv2", types.EventBlindspotLeftAlert, types.EventNone, func(s *types.VehicleState) bool { return s.BlindspotLeftLv2 }),
	edge("blindspot_right_lv2", types.EventBlindspotRightAlert, types.EventNone, func(s *types.VehicleState) bool { return s.BlindspotRightLv2 }),
	edge("side_collision_left", types.EventSideCollisionLeft, types.EventNone, func(s *types.VehicleState) bool { return s.SideCollisionLeft }),
	edge("side_collision_right", types.EventSideCollisionRight, types.EventNone, func(s *types.VehicleState) bool { return s.SideCollisionRight }),
	edge("forward_collision", types.EventForwardCollision, types.EventNone, func(s *types.VehicleState) bool { return s.ForwardCollision }),
	laneLevel("lane_departure_left", types.EventLaneDepartureLeftLv1, types.EventLaneDepartureLeftLv2, func(s *types.VehicleState) float64 {
		switch {
		case s.LaneDepartureLeftLv2:
			return 2
		case s.LaneDepartureLeftLv1:
			return 1
		}
		return 0
	}),
	laneLevel("lane_departure_right", types.EventLaneDepartureRightLv1, types.EventLaneDepartureRightLv2, func(s *types.VehicleState) float64 {
		switch {
		case s.LaneDepartureRightLv2:
			return 2
		case s.LaneDepartureRightLv1:
			return 1
		}
		return 0
	}),
	edge("charging_port_open", types.EventChargingPortOpened, types.EventNone, func(s *types.VehicleState) bool { return s.ChargingPort }),
	edge("doors_left_open", types.EventDoorOpenLeft, types.EventDoorCloseLeft, func(s *types.VehicleState) bool {
		return s.DoorFrontLeft || s.DoorRearLeft
	}),
	edge("doors_right_open", types.EventDoorOpenRight, types.EventDoorCloseRight, func(s *types.VehicleState) bool {
		return s.DoorFrontRight || s.DoorRearRight
	}),
	edge("charging", types.EventCharging, types.EventNone, func(s *types.VehicleState) bool { return s.Charging }),
	edge("charge_complete", types.EventChargeComplete, types.EventNone, func(s *types.VehicleState) bool {
		return s.ChargeStatus == ChargeStatusComplete
	}),
}

// Derived raises events from VehicleState transitions. Its signals form a
// virtual catalog message evaluated through the same history and triggers
// as decoded frames. A signal is evaluated only when its value changes, so
// level triggers fire once per transition.
type Derived struct {
	msg    catalog.Message
	last   [catalog.MaxSignalsPerMessage]float64
	primed bool
}

func NewDerived() *Derived {
	d := &Derived{msg: catalog.Message{ID: DerivedMessageID, Name: "derived_state"}}
	for _, ds := range derivedSignals {
		d.msg.Signals = append(d.msg.Signals, ds.signal)
	}
	return d
}

// Message returns the virtual message descriptor.
func (d *Derived) Message() catalog.Message {
	return d.msg
}

// Evaluate computes every derived signal from s and appends fired events to
// out. The first call records the baseline and fires nothing from edges.
func (d *Derived) Evaluate(h *trigger.History, s *types.VehicleState, out *trigger.Events) {
	for i := range derivedSignals {
		v := derivedSignals[i].compute(s)
		if d.primed && v == d.last[i] {
			continue
		}
		d.last[i] = v
		trigger.Evaluate(h, DerivedMessageID, i, &d.msg.Signals[i], v, uint64(v), out)
	}
	d.primed = true
}

// Reset forgets the baseline.
func (d *Derived) Reset() {
	d.primed = false
	d.last = [catalog.MaxSignalsPerMessage]float64{}
}
