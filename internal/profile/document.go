package profile

import (
	"encoding/json"
	"fmt"
	"time"

	"vehicle-led-service/internal/types"
)

// DocumentVersion is written into every exported profile.
const DocumentVersion = 2

type document struct {
	Version           int                    `json:"version"`
	Name              string                 `json:"name"`
	Created           int64                  `json:"created"`
	Modified          int64                  `json:"modified"`
	DynamicBrightness dynamicBrightness      `json:"dynamic_brightness"`
	DefaultEffect     types.EffectAssignment `json:"default_effect"`
	EventEffects      []bindingDocument      `json:"event_effects"`
}

type dynamicBrightness struct {
	Enabled bool     `json:"enabled"`
	Rate    uint8    `json:"rate"`
	Exclude []string `json:"exclude,omitempty"`
}

type bindingDocument struct {
	Event      string                 `json:"event"`
	Enabled    bool                   `json:"enabled"`
	Priority   uint8                  `json:"priority"`
	DurationMs int64                  `json:"duration_ms"`
	Action     string                 `json:"action"`
	ProfileID  int                    `json:"profile_id"`
	Effect     types.EffectAssignment `json:"effect"`
}

// Marshal encodes p as a portable document keyed by stable string ids.
func Marshal(p *Profile) ([]byte, error) {
	doc := document{
		Version:       DocumentVersion,
		Name:          p.Name,
		Created:       p.Created.Unix(),
		Modified:      p.Modified.Unix(),
		DefaultEffect: p.Default,
		DynamicBrightness: dynamicBrightness{
			Enabled: p.DynamicBrightness,
			Rate:    p.BrightnessRate,
		},
	}
	for _, ev := range types.Events() {
		if p.BrightnessExclude[ev] {
			doc.DynamicBrightness.Exclude = append(doc.DynamicBrightness.Exclude, ev.String())
		}
		b := p.Bindings[ev]
		doc.EventEffects = append(doc.EventEffects, bindingDocument{
			Event:      ev.String(),
			Enabled:    b.Enabled,
			Priority:   b.Priority,
			DurationMs: b.Duration.Milliseconds(),
			Action:     b.Action.String(),
			ProfileID:  b.TargetProfile,
			Effect:     b.Effect,
		})
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode profile %q: %w", p.Name, err)
	}
	return data, nil
}

// Unmarshal decodes a document into a fresh profile. Unknown events are
// skipped and unknown effects become OFF. The returned profile has no id.
func Unmarshal(data []byte) (Profile, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Profile{}, fmt.Errorf("failed to decode profile: %w", err)
	}
	name, err := validName(doc.Name)
	if err != nil {
		return Profile{}, fmt.Errorf("%w: %q", err, doc.Name)
	}

	p := New(name)
	p.Default = doc.DefaultEffect
	p.DynamicBrightness = doc.DynamicBrightness.Enabled
	p.BrightnessRate = min(doc.DynamicBrightness.Rate, 100)
	if doc.Created != 0 {
		p.Created = time.Unix(doc.Created, 0)
	}
	if doc.Modified != 0 {
		p.Modified = time.Unix(doc.Modified, 0)
	}
	for _, id := range doc.DynamicBrightness.Exclude {
		if ev := types.ParseEvent(id); ev.Valid() {
			p.BrightnessExclude[ev] = true
		}
	}
	for _, bd := range doc.EventEffects {
		ev := types.ParseEvent(bd.Event)
		if !ev.Valid() {
			continue
		}
		b := Binding{
			Effect:        bd.Effect,
			Duration:      time.Duration(max(bd.DurationMs, 0)) * time.Millisecond,
			Priority:      bd.Priority,
			Enabled:       bd.Enabled,
			Action:        ParseAction(bd.Action),
			TargetProfile: NoProfile,
		}
		if b.Action == SwitchProfile {
			b.TargetProfile = bd.ProfileID
		}
		p.Bindings[ev] = b
	}
	return p, nil
}
