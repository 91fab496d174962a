package profile

import (
	"time"

	"vehicle-led-service/internal/types"
)

func bind(effect types.Effect, brightness, speed uint8, color uint32, duration time.Duration, priority uint8, enabled bool) Binding {
	return Binding{
		Effect: types.EffectAssignment{
			Effect:     effect,
			Brightness: brightness,
			Speed:      speed,
			Color1:     color,
		},
		Duration:      duration,
		Priority:      priority,
		Enabled:       enabled,
		Action:        ApplyEffect,
		TargetProfile: NoProfile,
	}
}

func reversed(b Binding) Binding {
	b.Effect.Reverse = true
	return b
}

func disabled(b Binding, d time.Duration) Binding {
	b.Enabled = false
	b.Duration = d
	return b
}

// NewDefault builds the factory default profile: a red scan with the stock
// vehicle reactions.
func NewDefault(name string) Profile {
	p := New(name)
	p.Default = types.EffectAssignment{Effect: types.EffectScan, Brightness: 128, Speed: 50, Color1: 0xFF0000}

	b := &p.Bindings
	b[types.EventTurnLeft] = reversed(bind(types.EffectTurnSignal, 200, 200, 0xFF8000, 0, 200, true))
	b[types.EventTurnRight] = bind(types.EffectTurnSignal, 200, 200, 0xFF8000, 0, 200, true)
	b[types.EventTurnHazard] = bind(types.EffectHazard, 255, 100, 0xFF8000, 0, 220, true)

	b[types.EventCharging] = bind(types.EffectChargeStatus, 150, 50, 0x00FF00, 0, 150, true)
	chargeComplete := bind(types.EffectBreathing, 200, 30, 0x00FF00, 0, 140, true)
	b[types.EventChargeComplete] = chargeComplete
	for _, ev := range []types.SemanticEvent{
		types.EventChargingStarted,
		types.EventChargingStopped,
		types.EventChargingCableConnected,
		types.EventChargingCableDisconnected,
		types.EventChargingPortOpened,
	} {
		b[ev] = disabled(chargeComplete, 500*time.Millisecond)
	}

	b[types.EventBlindspotLeft] = reversed(bind(types.EffectBlindspotFlash, 255, 255, 0xFF0000, 0, 250, true))
	b[types.EventBlindspotRight] = bind(types.EffectBlindspotFlash, 255, 255, 0xFF0000, 0, 250, true)
	b[types.EventForwardCollision] = bind(types.EffectHazard, 255, 100, 0xFF0000, 0, 220, false)

	b[types.EventDoorOpen] = bind(types.EffectBreathing, 180, 80, 0xFFFFFF, 5*time.Second, 100, true)
	b[types.EventDoorClose] = bind(types.EffectBreathing, 100, 120, 0x0000FF, 2*time.Second, 90, true)
	b[types.EventLocked] = bind(types.EffectStrobe, 200, 150, 0xFF0000, time.Second, 110, true)
	b[types.EventUnlocked] = bind(types.EffectBreathing, 200, 100, 0x00FF00, 1500*time.Millisecond, 110, true)

	b[types.EventBrakeOn] = bind(types.EffectBrakeLight, 255, 100, 0xFF0000, 0, 180, true)
	b[types.EventBrakeOff] = bind(types.EffectFade, 100, 150, 0xFF0000, 500*time.Millisecond, 170, false)

	b[types.EventNightModeOn] = bind(types.EffectOff, 0, 0, 0, 0, 0, false)
	b[types.EventNightModeOff] = bind(types.EffectOff, 0, 0, 0, 0, 0, false)

	speed := bind(types.EffectRunningLights, 200, 120, 0x00FFFF, 0, 60, false)
	b[types.EventSpeedThreshold] = speed
	for _, ev := range []types.SemanticEvent{
		types.EventAutopilotEngaged,
		types.EventAutopilotDisengaged,
		types.EventAutopilotAlertLv1,
		types.EventAutopilotAlertLv2,
		types.EventGearDrive,
		types.EventGearReverse,
		types.EventGearPark,
	} {
		b[ev] = disabled(speed, 500*time.Millisecond)
	}

	b[types.EventSentryModeOn] = bind(types.EffectBreathing, 180, 40, 0xFF0000, 0, 160, false)
	b[types.EventSentryModeOff] = bind(types.EffectBreathing, 180, 40, 0x0040FF, 0, 160, false)
	b[types.EventSentryAlert] = bind(types.EffectStrobe, 255, 220, 0xFF2020, 3*time.Second, 240, true)

	return p
}

// NewOff builds a profile that keeps the strip dark and reacts to nothing.
func NewOff(name string) Profile {
	return New(name)
}
