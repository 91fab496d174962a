package types

type Effect uint8

const (
	EffectOff Effect = iota
	EffectSolid
	EffectBreathing
	EffectRainbow
	EffectRainbowCycle
	EffectTheaterChase
	EffectRunningLights
	EffectTwinkle
	EffectFire
	EffectScan
	EffectKnightRider
	EffectFade
	EffectStrobe
	EffectVehicleSync
	EffectTurnSignal
	EffectBrakeLight
	EffectChargeStatus
	EffectHazard
	EffectBlindspotFlash
	EffectAudioReactive
	EffectAudioBPM
	EffectFFTSpectrum
	EffectFFTBassPulse
	EffectFFTVocalWave
	EffectFFTEnergyBar

	EffectCount
)

var effectIDs = [EffectCount]string{
	EffectOff:            "OFF",
	EffectSolid:          "SOLID",
	EffectBreathing:      "BREATHING",
	EffectRainbow:        "RAINBOW",
	EffectRainbowCycle:   "RAINBOW_CYCLE",
	EffectTheaterChase:   "THEATER_CHASE",
	EffectRunningLights:  "RUNNING_LIGHTS",
	EffectTwinkle:        "TWINKLE",
	EffectFire:           "FIRE",
	EffectScan:           "SCAN",
	EffectKnightRider:    "KNIGHT_RIDER",
	EffectFade:           "FADE",
	EffectStrobe:         "STROBE",
	EffectVehicleSync:    "VEHICLE_SYNC",
	EffectTurnSignal:     "TURN_SIGNAL",
	EffectBrakeLight:     "BRAKE_LIGHT",
	EffectChargeStatus:   "CHARGE_STATUS",
	EffectHazard:         "HAZARD",
	EffectBlindspotFlash: "BLINDSPOT_FLASH",
	EffectAudioReactive:  "AUDIO_REACTIVE",
	EffectAudioBPM:       "AUDIO_BPM",
	EffectFFTSpectrum:    "FFT_SPECTRUM",
	EffectFFTBassPulse:   "FFT_BASS_PULSE",
	EffectFFTVocalWave:   "FFT_VOCAL_WAVE",
	EffectFFTEnergyBar:   "FFT_ENERGY_BAR",
}

func (e Effect) String() string {
	if e >= EffectCount {
		return effectIDs[EffectOff]
	}
	return effectIDs[e]
}

// ParseEffect converts a stable id to an effect. Unknown ids yield EffectOff.
func ParseEffect(id string) Effect {
	for i, s := range effectIDs {
		if s == id {
			return Effect(i)
		}
	}
	return EffectOff
}

func (e Effect) MarshalText() ([]byte, error) { return []byte(e.String()), nil }

func (e *Effect) UnmarshalText(text []byte) error {
	*e = ParseEffect(string(text))
	return nil
}

// Zone selects the part of the strip an effect is rendered on.
type Zone uint8

const (
	ZoneFull Zone = iota
	ZoneLeft
	ZoneRight
	ZoneCenter
)

var zoneIDs = [...]string{"FULL", "LEFT", "RIGHT", "CENTER"}

func (z Zone) String() string {
	if int(z) >= len(zoneIDs) {
		return zoneIDs[ZoneFull]
	}
	return zoneIDs[z]
}

func ParseZone(id string) Zone {
	for i, s := range zoneIDs {
		if s == id {
			return Zone(i)
		}
	}
	return ZoneFull
}

func (z Zone) MarshalText() ([]byte, error) { return []byte(z.String()), nil }

func (z *Zone) UnmarshalText(text []byte) error {
	*z = ParseZone(string(text))
	return nil
}

// Opposite returns the mirrored lateral zone, or the zone itself for FULL and CENTER.
func (z Zone) Opposite() Zone {
	switch z {
	case ZoneLeft:
		return ZoneRight
	case ZoneRight:
		return ZoneLeft
	default:
		return z
	}
}

type SyncMode uint8

const (
	SyncOff SyncMode = iota
	SyncDoors
	SyncSpeed
	SyncTurnSignals
	SyncBrake
	SyncCharge
	SyncLocked
	SyncAll
)

var syncIDs = [...]string{"OFF", "DOORS", "SPEED", "TURN_SIGNALS", "BRAKE", "CHARGE", "LOCKED", "ALL"}

func (s SyncMode) String() string {
	if int(s) >= len(syncIDs) {
		return syncIDs[SyncOff]
	}
	return syncIDs[s]
}

func ParseSyncMode(id string) SyncMode {
	for i, s := range syncIDs {
		if s == id {
			return SyncMode(i)
		}
	}
	return SyncOff
}

func (s SyncMode) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *SyncMode) UnmarshalText(text []byte) error {
	*s = ParseSyncMode(string(text))
	return nil
}

// EffectAssignment is the unit handed to the renderer.
type EffectAssignment struct {
	Effect        Effect   `json:"effect"`
	Brightness    uint8    `json:"brightness"`
	Speed         uint8    `json:"speed"`
	Color1        uint32   `json:"color1"`
	Color2        uint32   `json:"color2"`
	Color3        uint32   `json:"color3"`
	Zone          Zone     `json:"zone"`
	Reverse       bool     `json:"reverse"`
	SyncMode      SyncMode `json:"sync_mode"`
	AudioReactive bool     `json:"audio_reactive"`
}

// Off is the assignment rendered when nothing else applies.
var Off = EffectAssignment{Effect: EffectOff}
