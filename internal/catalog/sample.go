package catalog

import "vehicle-led-service/internal/types"

func sig(name string, start, length uint8, kind ValueKind, triggers ...Trigger) Signal {
	return Signal{
		Name:     name,
		StartBit: start,
		Length:   length,
		Order:    LittleEndian,
		Kind:     kind,
		Factor:   1,
		Triggers: triggers,
	}
}

func scaled(name string, start, length uint8, kind ValueKind, factor, offset float64) Signal {
	return Signal{
		Name:     name,
		StartBit: start,
		Length:   length,
		Order:    LittleEndian,
		Kind:     kind,
		Factor:   factor,
		Offset:   offset,
	}
}

func eq(v float64, ev types.SemanticEvent) Trigger {
	return Trigger{Condition: Equals, Value: v, Event: ev}
}

func rise(ev types.SemanticEvent) Trigger { return Trigger{Condition: RisingEdge, Event: ev} }
func fall(ev types.SemanticEvent) Trigger { return Trigger{Condition: FallingEdge, Event: ev} }

func autopilotEdges(name string, start uint8) Signal {
	return sig(name, start, 1, Boolean,
		rise(types.EventAutopilotEngaged),
		fall(types.EventAutopilotDisengaged))
}

func brakeEdges(name string, start uint8) Signal {
	return sig(name, start, 1, Boolean,
		rise(types.EventBrakeOn),
		fall(types.EventBrakeOff))
}

func chargeStatus(id uint32, name string, bus uint8) Message {
	return Message{ID: id, Name: name, Bus: bus, Signals: []Signal{
		sig("CP_hvChargeStatus", 0, 3, Unsigned,
			eq(5, types.EventChargingStarted),
			eq(2, types.EventChargingStopped)),
	}}
}

// Sample returns the catalog generated for the Model 3/Y platform.
// 0x3F5 VCFRONT_lighting carries the indicator requests in byte 0.
func Sample() *Catalog {
	frunk := sig("VCFRONT_frunkLatchStatus", 8, 4, Unsigned)
	frunk.Mux, frunk.MuxValue = MuxMultiplexed, 1
	frunkIndex := sig("VCFRONT_statusIndex", 0, 3, Unsigned)
	frunkIndex.Mux = MuxMultiplexer

	return &Catalog{Messages: []Message{
		{ID: 0x204, Name: "PCS_chgStatus", Bus: types.BusPowertrain, Signals: []Signal{
			sig("PCS_hvChargeStatus", 4, 2, Unsigned,
				eq(2, types.EventChargingStarted),
				eq(0, types.EventChargingStopped)),
		}},
		{ID: 0x273, Name: "UI_vehicleControl", Bus: types.BusPowertrain, Signals: []Signal{
			sig("UI_lockRequest", 17, 3, Unsigned,
				eq(1, types.EventLocked),
				eq(2, types.EventUnlocked)),
			sig("UI_ambientLightingEnabled", 40, 1, Boolean,
				rise(types.EventNightModeOn),
				fall(types.EventNightModeOff)),
			sig("UI_displayBrightnessLevel", 32, 8, Unsigned),
			sig("UI_intrusionSensorOn", 50, 1, Boolean),
			sig("UI_alarmTriggered", 52, 1, Boolean),
		}},
		{ID: 0x25D, Name: "CP_status", Bus: types.BusPowertrain, Signals: []Signal{
			sig("CP_chargeCablePresent", 3, 1, Boolean,
				eq(0, types.EventChargingCableDisconnected),
				eq(1, types.EventChargingCableConnected)),
			sig("CP_chargeDoorOpen", 5, 1, Boolean),
		}},
		{ID: 0x399, Name: "DAS_status", Bus: types.BusBody, Signals: []Signal{
			sig("DAS_autopilotState", 0, 4, Unsigned),
			sig("DAS_blindSpotRearLeft", 4, 2, Unsigned,
				eq(1, types.EventBlindspotLeft),
				eq(2, types.EventBlindspotLeft)),
			sig("DAS_blindSpotRearRight", 6, 2, Unsigned,
				eq(1, types.EventBlindspotRight),
				eq(2, types.EventBlindspotRight)),
			sig("DAS_forwardCollisionWarning", 22, 2, Unsigned),
			sig("DAS_sideCollisionWarning", 32, 2, Unsigned),
			sig("DAS_laneDepartureWarning", 37, 3, Unsigned),
			sig("DAS_autopilotHandsOnState", 42, 4, Unsigned,
				eq(3, types.EventAutopilotAlertLv1),
				eq(4, types.EventAutopilotAlertLv2),
				eq(5, types.EventAutopilotAlertLv2)),
		}},
		{ID: 0x3A1, Name: "VCFRONT_vehicleStatus", Bus: types.BusBody, Signals: []Signal{
			sig("VCFRONT_driverDoorStatus", 31, 1, Boolean,
				eq(1, types.EventDoorClose),
				eq(0, types.EventDoorOpen)),
		}},
		{ID: 0x3F5, Name: "VCFRONT_lighting", Bus: types.BusBody, Signals: []Signal{
			sig("VCFRONT_indicatorLeftRequest", 0, 2, Unsigned,
				eq(2, types.EventTurnLeft),
				eq(1, types.EventTurnLeft)),
			sig("VCFRONT_indicatorRightRequest", 2, 2, Unsigned,
				eq(2, types.EventTurnRight),
				eq(1, types.EventTurnRight)),
			sig("VCFRONT_hazardLightRequest", 4, 4, Unsigned,
				eq(1, types.EventTurnHazard)),
			sig("VCFRONT_lowBeamLeftStatus", 12, 2, Unsigned),
			sig("VCFRONT_lowBeamRightStatus", 14, 2, Unsigned),
			sig("VCFRONT_highBeamLeftStatus", 16, 2, Unsigned),
			sig("VCFRONT_highBeamRightStatus", 18, 2, Unsigned),
			sig("VCFRONT_fogLeftStatus", 20, 2, Unsigned),
			sig("VCFRONT_fogRightStatus", 22, 2, Unsigned),
			sig("VCFRONT_hazardSwitchBacklight", 27, 1, Boolean,
				rise(types.EventTurnHazard)),
		}},
		{ID: 0x3FD, Name: "UI_autopilotControl", Bus: types.BusBody, Signals: []Signal{
			autopilotEdges("UI_fsdVisualizationEnabled", 37),
			autopilotEdges("UI_fsdStopsControlEnabled", 38),
			autopilotEdges("UI_enableAutopilotStopWarning", 44),
		}},
		chargeStatus(0x23D, "CP_chargeStatus", types.BusPowertrain),
		chargeStatus(0x13D, "CP_chargeStatusChassis", types.BusChassis),
		chargeStatus(0x43D, "CP_chargeStatusBody", types.BusBody),
		{ID: 0x7D5, Name: "DIR_debug", Bus: types.BusBody, Signals: []Signal{
			brakeEdges("DIR_brakeSwitchNO", 62),
			brakeEdges("DIR_brakeSwitchNC", 63),
		}},
		{ID: 0x757, Name: "DIF_debug", Bus: types.BusBody, Signals: []Signal{
			brakeEdges("DIF_brakeSwitchNO", 62),
			brakeEdges("DIF_brakeSwitchNC", 63),
		}},
		{ID: 0x2F1, Name: "VCFRONT_eFuseDebugStatus", Bus: types.BusPowertrain, Signals: []Signal{
			autopilotEdges("VCFRONT_autopilot1Fault", 10),
			autopilotEdges("VCFRONT_autopilot2Fault", 10),
		}},
		{ID: 0x3C2, Name: "VCLEFT_switchStatus", Bus: types.BusBody, Signals: []Signal{
			sig("VCLEFT_hazardButtonPressed", 3, 1, Boolean,
				rise(types.EventTurnHazard)),
			brakeEdges("VCLEFT_brakeSwitchPressed", 4),
			brakeEdges("VCLEFT_brakePressed", 60),
		}},
		{ID: 0x293, Name: "UI_chassisControl", Bus: types.BusPowertrain, Signals: []Signal{
			autopilotEdges("UI_rebootAutopilot", 27),
		}},
		{ID: 0x118, Name: "DI_systemStatus", Bus: types.BusChassis, Signals: []Signal{
			sig("DI_gear", 21, 3, Unsigned,
				eq(4, types.EventGearDrive),
				eq(1, types.EventGearPark),
				eq(2, types.EventGearReverse)),
		}},

		// State only, no triggers.
		{ID: 0x257, Name: "DI_speed", Bus: types.BusChassis, Signals: []Signal{
			scaled("DI_vehicleSpeed", 12, 12, Unsigned, 0.08, -40),
		}},
		{ID: 0x39D, Name: "IBST_status", Bus: types.BusChassis, Signals: []Signal{
			sig("IBST_driverBrakeApply", 16, 2, Unsigned),
		}},
		{ID: 0x3F3, Name: "UI_odo", Bus: types.BusBody, Signals: []Signal{
			scaled("UI_odometer", 0, 24, Unsigned, 0.1, 0),
		}},
		{ID: 0x102, Name: "VCLEFT_doorStatus", Bus: types.BusBody, Signals: []Signal{
			sig("VCLEFT_frontLatchStatus", 0, 4, Unsigned),
			sig("VCLEFT_rearLatchStatus", 4, 4, Unsigned),
		}},
		{ID: 0x103, Name: "VCRIGHT_doorStatus", Bus: types.BusBody, Signals: []Signal{
			sig("VCRIGHT_frontLatchStatus", 0, 4, Unsigned),
			sig("VCRIGHT_rearLatchStatus", 4, 4, Unsigned),
			sig("VCRIGHT_trunkLatchStatus", 8, 4, Unsigned),
		}},
		{ID: 0x2E1, Name: "VCFRONT_status", Bus: types.BusBody, Signals: []Signal{
			frunkIndex,
			frunk,
		}},
		{ID: 0x292, Name: "BMS_socStatus", Bus: types.BusPowertrain, Signals: []Signal{
			scaled("SOCUI292", 10, 10, Unsigned, 0.1, 0),
		}},
		{ID: 0x132, Name: "HVBattAmpVolt", Bus: types.BusPowertrain, Signals: []Signal{
			scaled("BattVoltage132", 0, 16, Unsigned, 0.01, 0),
		}},
		{ID: 0x261, Name: "12vBattStatus", Bus: types.BusPowertrain, Signals: []Signal{
			scaled("v12vBattVoltage261", 0, 12, Unsigned, 0.005444, 0),
		}},
		{ID: 0x212, Name: "BMS_status", Bus: types.BusPowertrain, Signals: []Signal{
			sig("BMS_uiChargeStatus", 8, 3, Unsigned),
			scaled("BMS_chgPowerAvailable", 16, 11, Unsigned, 0.125, 0),
		}},
		{ID: 0x284, Name: "UIvehicleModes", Bus: types.BusPowertrain, Signals: []Signal{
			sig("CP_chargeCablePresent", 8, 2, Unsigned),
		}},
		{ID: 0x334, Name: "UI_powertrainControl", Bus: types.BusPowertrain, Signals: []Signal{
			sig("UI_speedLimit", 24, 8, Unsigned),
		}},
	}}
}
