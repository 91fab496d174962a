// Package arbiter resolves concurrently active event overrides of the active
// profile into the single effect the renderer shows.
package arbiter

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"vehicle-led-service/internal/logger"
	"vehicle-led-service/internal/profile"
	"vehicle-led-service/internal/types"
)

type Outcome uint8

const (
	Ignored Outcome = iota
	Applied
	Refreshed
	Switched
)

var outcomeNames = [...]string{"ignored", "applied", "refreshed", "switched"}

func (o Outcome) String() string {
	if int(o) >= len(outcomeNames) {
		return "unknown"
	}
	return outcomeNames[o]
}

// Override is an effect held active by an event. A zero Expiry never
// expires.
type Override struct {
	Event     types.SemanticEvent
	Effect    types.EffectAssignment
	Priority  uint8
	Activated time.Time
	Expiry    time.Time
	seq       uint64
}

func (o *Override) expired(now time.Time) bool {
	return !o.Expiry.IsZero() && !now.Before(o.Expiry)
}

type slot struct {
	active bool
	o      Override
}

// Resolution is the effect to render and where it came from. Event is
// EventNone when the profile default applies.
type Resolution struct {
	Effect    types.EffectAssignment  `json:"effect"`
	Event     types.SemanticEvent     `json:"event"`
	Priority  uint8                   `json:"priority"`
	ProfileID int                     `json:"profile_id"`
	Companion *types.EffectAssignment `json:"companion,omitempty"`
}

// Same reports whether r and o render identically.
func (r Resolution) Same(o Resolution) bool {
	if r.Effect != o.Effect || r.Event != o.Event || r.Priority != o.Priority || r.ProfileID != o.ProfileID {
		return false
	}
	if (r.Companion == nil) != (o.Companion == nil) {
		return false
	}
	return r.Companion == nil || *r.Companion == *o.Companion
}

// Manager holds at most one override per event. All methods are safe for
// concurrent use.
type Manager struct {
	mu        sync.Mutex
	profiles  *profile.Store
	overrides [types.EventCount]slot
	seq       uint64
	owner     int
	logger    *logger.Logger
}

func NewManager(profiles *profile.Store, l *logger.Logger) *Manager {
	return &Manager{
		profiles: profiles,
		owner:    profile.NoProfile,
		logger:   l,
	}
}

func (m *Manager) clearLocked() int {
	n := 0
	for i := range m.overrides {
		if m.overrides[i].active {
			n++
		}
		m.overrides[i] = slot{}
	}
	return n
}

// syncOwner drops overrides created under another profile. Activation can
// happen through the store directly, so every entry point checks.
func (m *Manager) syncOwner(id int) {
	if id == m.owner {
		return
	}
	if n := m.clearLocked(); n > 0 {
		m.logger.Debugf("Cleared %d overrides of profile %d", n, m.owner)
	}
	m.owner = id
}

func forcedZone(ev types.SemanticEvent, z types.Zone) types.Zone {
	switch ev {
	case types.EventTurnLeft, types.EventBlindspotLeft:
		return types.ZoneLeft
	case types.EventTurnRight, types.EventBlindspotRight:
		return types.ZoneRight
	}
	if z == types.ZoneLeft || z == types.ZoneRight {
		return z
	}
	return types.ZoneFull
}

// HandleEvent applies the active profile's binding for ev. Disabled bindings
// and missing profiles are no-ops. A switch to a missing profile fails and
// leaves the active profile unchanged.
func (m *Manager) HandleEvent(ev types.SemanticEvent, now time.Time) (Outcome, error) {
	if !ev.Valid() {
		return Ignored, nil
	}

	m.mu.Lock()
	p, ok := m.profiles.Active()
	if !ok {
		m.mu.Unlock()
		return Ignored, nil
	}
	m.syncOwner(p.ID)

	b := p.Binding(ev)
	if !b.Enabled {
		m.mu.Unlock()
		return Ignored, nil
	}
	if b.Action == profile.SwitchProfile {
		m.mu.Unlock()
		return m.switchProfile(ev, p.ID, b.TargetProfile)
	}
	defer m.mu.Unlock()

	effect := b.Effect
	effect.Zone = forcedZone(ev, effect.Zone)

	s := &m.overrides[ev]
	outcome := Applied
	if s.active {
		outcome = Refreshed
	}
	m.seq++
	s.active = true
	s.o = Override{
		Event:     ev,
		Effect:    effect,
		Priority:  b.Priority,
		Activated: now,
		seq:       m.seq,
	}
	if b.Duration > 0 {
		s.o.Expiry = now.Add(b.Duration)
	}
	return outcome, nil
}

// switchProfile activates target outside m.mu; activation persists the
// selection and must not hold up Stop or Resolve.
func (m *Manager) switchProfile(ev types.SemanticEvent, from, target int) (Outcome, error) {
	if err := m.profiles.Activate(target); err != nil {
		return Ignored, fmt.Errorf("failed to switch profile on %s: %w", ev, err)
	}
	m.mu.Lock()
	m.syncOwner(m.profiles.ActiveID())
	m.mu.Unlock()
	m.logger.Infof("%s switched profile %d -> %d", ev, from, target)
	return Switched, nil
}

// Stop ends the override for ev. It reports whether one was active.
func (m *Manager) Stop(ev types.SemanticEvent) bool {
	if ev >= types.EventCount {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	was := m.overrides[ev].active
	m.overrides[ev] = slot{}
	return was
}

// StopAll ends every override and returns how many were active.
func (m *Manager) StopAll() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clearLocked()
}

// Sweep removes expired overrides and returns how many it removed.
func (m *Manager) Sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for i := range m.overrides {
		s := &m.overrides[i]
		if s.active && s.o.expired(now) {
			*s = slot{}
			n++
		}
	}
	return n
}

// ActivateProfile makes id active and clears the overrides of the previous
// profile.
func (m *Manager) ActivateProfile(id int) error {
	if err := m.profiles.Activate(id); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncOwner(m.profiles.ActiveID())
	return nil
}

// Resolve picks the effect to render at now. The highest priority unexpired
// override wins and ties go to the most recently activated one. Without
// overrides the profile default applies; without a profile the strip is off.
// state may be nil, which disables dynamic brightness.
func (m *Manager) Resolve(now time.Time, state *types.VehicleState) Resolution {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.profiles.Active()
	if !ok {
		return Resolution{Effect: types.Off, ProfileID: profile.NoProfile}
	}
	m.syncOwner(p.ID)

	var best *Override
	for i := range m.overrides {
		s := &m.overrides[i]
		if !s.active || s.o.expired(now) {
			continue
		}
		if best == nil || s.o.Priority > best.Priority ||
			(s.o.Priority == best.Priority && s.o.seq > best.seq) {
			best = &s.o
		}
	}

	if best == nil {
		res := Resolution{Effect: p.Default, ProfileID: p.ID}
		res.Effect.Brightness = m.brightness(&p, types.EventNone, res.Effect.Brightness, state)
		return res
	}

	res := Resolution{
		Effect:    best.Effect,
		Event:     best.Event,
		Priority:  best.Priority,
		ProfileID: p.ID,
	}
	res.Effect.Brightness = m.brightness(&p, best.Event, res.Effect.Brightness, state)

	if z := best.Effect.Zone; z == types.ZoneLeft || z == types.ZoneRight {
		if c := m.companion(best, now); c != nil {
			eff := c.Effect
			eff.Brightness = m.brightness(&p, c.Event, eff.Brightness, state)
			res.Companion = &eff
		}
	}
	return res
}

// companion finds the most recent override at the same priority on the
// opposite side, so both indicators render together.
func (m *Manager) companion(best *Override, now time.Time) *Override {
	want := best.Effect.Zone.Opposite()
	var found *Override
	for i := range m.overrides {
		s := &m.overrides[i]
		if !s.active || s.o.expired(now) || s.o.Priority != best.Priority || s.o.Effect.Zone != want {
			continue
		}
		if found == nil || s.o.seq > found.seq {
			found = &s.o
		}
	}
	return found
}

func (m *Manager) brightness(p *profile.Profile, ev types.SemanticEvent, b uint8, state *types.VehicleState) uint8 {
	if !p.DynamicBrightness || state == nil || p.Excluded(ev) {
		return b
	}
	rate := uint32(min(p.BrightnessRate, 100))
	vehicle := uint32(min(state.Brightness, 100))
	base := uint32(b)
	scaled := base*(100-rate)/100 + base*rate*vehicle/10000
	return uint8(min(scaled, 255))
}

// Active returns the overrides of the active profile still live at now,
// ordered by priority, most recent first within a priority.
func (m *Manager) Active(now time.Time) []Override {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncOwner(m.profiles.ActiveID())
	out := make([]Override, 0, 4)
	for i := range m.overrides {
		if s := &m.overrides[i]; s.active && !s.o.expired(now) {
			out = append(out, s.o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].seq > out[j].seq
	})
	return out
}

// HasActive reports whether any override of the active profile is live at
// now.
func (m *Manager) HasActive(now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncOwner(m.profiles.ActiveID())
	for i := range m.overrides {
		if s := &m.overrides[i]; s.active && !s.o.expired(now) {
			return true
		}
	}
	return false
}
