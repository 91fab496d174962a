package types

// SemanticEvent is a discrete occurrence derived from signal changes.
// The numeric order is internal only; persisted documents use String().
type SemanticEvent uint8

const (
	EventNone SemanticEvent = iota
	EventTurnLeft
	EventTurnRight
	EventTurnHazard
	EventCharging
	EventChargeComplete
	EventChargingStarted
	EventChargingStopped
	EventChargingCableConnected
	EventChargingCableDisconnected
	EventChargingPortOpened
	EventDoorOpen
	EventDoorClose
	EventDoorOpenLeft
	EventDoorOpenRight
	EventDoorCloseLeft
	EventDoorCloseRight
	EventLocked
	EventUnlocked
	EventBrakeOn
	EventBrakeOff
	EventBlindspotLeft
	EventBlindspotRight
	EventBlindspotLeftAlert
	EventBlindspotRightAlert
	EventSideCollisionLeft
	EventSideCollisionRight
	EventForwardCollision
	EventLaneDepartureLeftLv1
	EventLaneDepartureLeftLv2
	EventLaneDepartureRightLv1
	EventLaneDepartureRightLv2
	EventSpeedThreshold
	EventAutopilotEngaged
	EventAutopilotDisengaged
	EventAutopilotAlertLv1
	EventAutopilotAlertLv2
	EventGearDrive
	EventGearReverse
	EventGearPark
	EventSentryModeOn
	EventSentryModeOff
	EventSentryAlert
	EventNightModeOn
	EventNightModeOff

	// EventCount is the size of per-event tables, EventNone included.
	EventCount
)

var eventInfo = [EventCount]struct {
	id   string
	name string
}{
	EventNone:                      {"NONE", "None"},
	EventTurnLeft:                  {"TURN_LEFT", "Turn Left"},
	EventTurnRight:                 {"TURN_RIGHT", "Turn Right"},
	EventTurnHazard:                {"TURN_HAZARD", "Hazard"},
	EventCharging:                  {"CHARGING", "Charging"},
	EventChargeComplete:            {"CHARGE_COMPLETE", "Charge Complete"},
	EventChargingStarted:           {"CHARGING_STARTED", "Charging Started"},
	EventChargingStopped:           {"CHARGING_STOPPED", "Charging Stopped"},
	EventChargingCableConnected:    {"CHARGING_CABLE_CONNECTED", "Cable Connected"},
	EventChargingCableDisconnected: {"CHARGING_CABLE_DISCONNECTED", "Cable Disconnected"},
	EventChargingPortOpened:        {"CHARGING_PORT_OPENED", "Charge Port Opened"},
	EventDoorOpen:                  {"DOOR_OPEN", "Door Open"},
	EventDoorClose:                 {"DOOR_CLOSE", "Door Close"},
	EventDoorOpenLeft:              {"DOOR_OPEN_LEFT", "Left Door Open"},
	EventDoorOpenRight:             {"DOOR_OPEN_RIGHT", "Right Door Open"},
	EventDoorCloseLeft:             {"DOOR_CLOSE_LEFT", "Left Door Closed"},
	EventDoorCloseRight:            {"DOOR_CLOSE_RIGHT", "Right Door Closed"},
	EventLocked:                    {"LOCKED", "Locked"},
	EventUnlocked:                  {"UNLOCKED", "Unlocked"},
	EventBrakeOn:                   {"BRAKE_ON", "Brake On"},
	EventBrakeOff:                  {"BRAKE_OFF", "Brake Off"},
	EventBlindspotLeft:             {"BLINDSPOT_LEFT", "Blindspot Left"},
	EventBlindspotRight:            {"BLINDSPOT_RIGHT", "Blindspot Right"},
	EventBlindspotLeftAlert:        {"BLINDSPOT_LEFT_ALERT", "Blindspot Left Alert"},
	EventBlindspotRightAlert:       {"BLINDSPOT_RIGHT_ALERT", "Blindspot Right Alert"},
	EventSideCollisionLeft:         {"SIDE_COLLISION_LEFT", "Side Collision Left"},
	EventSideCollisionRight:        {"SIDE_COLLISION_RIGHT", "Side Collision Right"},
	EventForwardCollision:          {"FORWARD_COLLISION", "Forward Collision"},
	EventLaneDepartureLeftLv1:      {"LANE_DEPARTURE_LEFT_LV1", "Lane Departure Left 1"},
	EventLaneDepartureLeftLv2:      {"LANE_DEPARTURE_LEFT_LV2", "Lane Departure Left 2"},
	EventLaneDepartureRightLv1:     {"LANE_DEPARTURE_RIGHT_LV1", "Lane Departure Right 1"},
	EventLaneDepartureRightLv2:     {"LANE_DEPARTURE_RIGHT_LV2", "Lane Departure Right 2"},
	EventSpeedThreshold:            {"SPEED_THRESHOLD", "Speed Threshold"},
	EventAutopilotEngaged:          {"AUTOPILOT_ENGAGED", "Autopilot Engaged"},
	EventAutopilotDisengaged:       {"AUTOPILOT_DISENGAGED", "Autopilot Disengaged"},
	EventAutopilotAlertLv1:         {"AUTOPILOT_ALERT_LV1", "Autopilot Alert 1"},
	EventAutopilotAlertLv2:         {"AUTOPILOT_ALERT_LV2", "Autopilot Alert 2"},
	EventGearDrive:                 {"GEAR_DRIVE", "Gear Drive"},
	EventGearReverse:               {"GEAR_REVERSE", "Gear Reverse"},
	EventGearPark:                  {"GEAR_PARK", "Gear Park"},
	EventSentryModeOn:              {"SENTRY_MODE_ON", "Sentry Mode On"},
	EventSentryModeOff:             {"SENTRY_MODE_OFF", "Sentry Mode Off"},
	EventSentryAlert:               {"SENTRY_ALERT", "Sentry Alert"},
	EventNightModeOn:               {"NIGHT_MODE_ON", "Night Mode On"},
	EventNightModeOff:              {"NIGHT_MODE_OFF", "Night Mode Off"},
}

var eventByID = func() map[string]SemanticEvent {
	m := make(map[string]SemanticEvent, EventCount)
	for i := SemanticEvent(0); i < EventCount; i++ {
		m[eventInfo[i].id] = i
	}
	return m
}()

// String returns the stable id. Out of range values map to "NONE".
func (e SemanticEvent) String() string {
	if e >= EventCount {
		return eventInfo[EventNone].id
	}
	return eventInfo[e].id
}

// Name returns a human readable label.
func (e SemanticEvent) Name() string {
	if e >= EventCount {
		return eventInfo[EventNone].name
	}
	return eventInfo[e].name
}

func (e SemanticEvent) Valid() bool {
	return e > EventNone && e < EventCount
}

// CanSwitchProfile reports whether the event may carry a switch-profile action.
func (e SemanticEvent) CanSwitchProfile() bool {
	return e.Valid()
}

// ParseEvent converts a stable id to an event. Unknown ids yield EventNone.
func ParseEvent(id string) SemanticEvent {
	if e, ok := eventByID[id]; ok {
		return e
	}
	return EventNone
}

// Events lists every event except EventNone in enum order.
func Events() []SemanticEvent {
	out := make([]SemanticEvent, 0, EventCount-1)
	for e := EventNone + 1; e < EventCount; e++ {
		out = append(out, e)
	}
	return out
}

func (e SemanticEvent) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

func (e *SemanticEvent) UnmarshalText(text []byte) error {
	*e = ParseEvent(string(text))
	return nil
}
