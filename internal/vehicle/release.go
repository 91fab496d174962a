package vehicle

import (
	"slices"

	"vehicle-led-service/internal/types"
)

// release ends an event's override when the condition that raised it goes
// away, which returns the strip to the profile default.
type release struct {
	event  types.SemanticEvent
	active func(s *types.VehicleState) bool
}

var releases = []release{
	{types.EventTurnLeft, func(s *types.VehicleState) bool { return s.TurnLeft }},
	{types.EventTurnRight, func(s *types.VehicleState) bool { return s.TurnRight }},
	{types.EventTurnHazard, func(s *types.VehicleState) bool { return s.Hazard }},
	{types.EventBlindspotLeft, func(s *types.VehicleState) bool { return s.BlindspotLeftLv1 || s.BlindspotLeftLv2 }},
	{types.EventBlindspotRight, func(s *types.VehicleState) bool { return s.BlindspotRightLv1 || s.BlindspotRightLv2 }},
	{types.EventBlindspotLeftAlert, func(s *types.VehicleState) bool { return s.BlindspotLeftLv2 }},
	{types.EventBlindspotRightAlert, func(s *types.VehicleState) bool { return s.BlindspotRightLv2 }},
	{types.EventBrakeOn, func(s *types.VehicleState) bool { return s.Brake }},
	{types.EventCharging, func(s *types.VehicleState) bool { return s.Charging }},
	{types.EventSentryModeOn, func(s *types.VehicleState) bool { return s.SentryMode }},
	{types.EventSpeedThreshold, func(s *types.VehicleState) bool {
		return s.SpeedThreshold > 0 && s.SpeedKph > s.SpeedThreshold
	}},
}

// Released appends to buf every event whose condition held in prev and no
// longer holds in cur.
func Released(prev, cur *types.VehicleState, buf []types.SemanticEvent) []types.SemanticEvent {
	for i := range releases {
		r := &releases[i]
		if r.active(prev) && !r.active(cur) {
			buf = append(buf, r.event)
		}
	}
	return buf
}

// Ends returns the event whose override ev ends when it fires, or
// EventNone. Brake switch edges raise BRAKE_OFF without touching the
// booster pressure that drives VehicleState.Brake.
func Ends(ev types.SemanticEvent) types.SemanticEvent {
	switch ev {
	case types.EventBrakeOff:
		return types.EventBrakeOn
	case types.EventSentryModeOff:
		return types.EventSentryModeOn
	case types.EventNightModeOff:
		return types.EventNightModeOn
	case types.EventAutopilotDisengaged:
		return types.EventAutopilotEngaged
	}
	return types.EventNone
}

// AppendEnded appends the events ended by fired, skipping ones already in
// buf.
func AppendEnded(buf []types.SemanticEvent, fired types.SemanticEvent) []types.SemanticEvent {
	ended := Ends(fired)
	if ended == types.EventNone || slices.Contains(buf, ended) {
		return buf
	}
	return append(buf, ended)
}

// ReleaseCount bounds the number of events Released can report at once.
func ReleaseCount() int { return len(releases) }
