// Package profile stores the user lighting profiles: a default effect plus
// one event binding per semantic event.
package profile

import (
	"errors"
	"strings"
	"time"

	"vehicle-led-service/internal/types"
)

const (
	MaxProfiles   = 8
	MaxNameLength = 32
	NoProfile     = -1
)

var (
	ErrNotFound       = errors.New("profile not found")
	ErrNoSlot         = errors.New("no free profile slot")
	ErrInUse          = errors.New("profile is the target of a switch-profile binding")
	ErrInvalidName    = errors.New("invalid profile name")
	ErrInvalidBinding = errors.New("invalid binding")
)

type Action uint8

const (
	ApplyEffect Action = iota
	SwitchProfile
)

func (a Action) String() string {
	if a == SwitchProfile {
		return "switch_profile"
	}
	return "apply_effect"
}

func ParseAction(s string) Action {
	if s == "switch_profile" {
		return SwitchProfile
	}
	return ApplyEffect
}

// Binding ties a semantic event to an effect or to a profile switch.
// Duration 0 keeps the effect until the event is stopped.
type Binding struct {
	Effect        types.EffectAssignment
	Duration      time.Duration
	Priority      uint8
	Enabled       bool
	Action        Action
	TargetProfile int
}

type Profile struct {
	ID                int
	Name              string
	Default           types.EffectAssignment
	Bindings          [types.EventCount]Binding
	DynamicBrightness bool
	BrightnessRate    uint8
	BrightnessExclude [types.EventCount]bool
	Created           time.Time
	Modified          time.Time
	Active            bool
}

// New returns an empty profile with every binding disabled.
func New(name string) Profile {
	p := Profile{ID: NoProfile, Name: name, Default: types.Off}
	for i := range p.Bindings {
		p.Bindings[i].TargetProfile = NoProfile
	}
	return p
}

// Binding returns the binding for ev, or a disabled zero binding for
// out-of-range events.
func (p *Profile) Binding(ev types.SemanticEvent) Binding {
	if !ev.Valid() {
		return Binding{TargetProfile: NoProfile}
	}
	return p.Bindings[ev]
}

// Excluded reports whether ev keeps its configured brightness when dynamic
// brightness is on.
func (p *Profile) Excluded(ev types.SemanticEvent) bool {
	return ev < types.EventCount && p.BrightnessExclude[ev]
}

// Targets reports whether any switch-profile binding points at id.
func (p *Profile) Targets(id int) bool {
	for i := range p.Bindings {
		b := &p.Bindings[i]
		if b.Action == SwitchProfile && b.TargetProfile == id {
			return true
		}
	}
	return false
}

func validName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > MaxNameLength {
		return "", ErrInvalidName
	}
	return name, nil
}
