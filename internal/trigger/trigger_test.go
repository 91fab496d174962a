package trigger

import (
	"testing"

	"vehicle-led-service/internal/catalog"
	"vehicle-led-service/internal/types"
)

func edgeSignal() *catalog.Signal {
	return &catalog.Signal{
		Name:   "brake",
		Length: 1,
		Kind:   catalog.Boolean,
		Factor: 1,
		Triggers: []catalog.Trigger{
			{Condition: catalog.RisingEdge, Event: types.EventBrakeOn},
			{Condition: catalog.FallingEdge, Event: types.EventBrakeOff},
		},
	}
}

// feed runs one sample through Evaluate and returns what fired.
func feed(h *History, id uint32, idx int, s *catalog.Signal, v float64) Events {
	var out Events
	Evaluate(h, id, idx, s, v, uint64(v), &out)
	return out
}

// ===== Edges =====

func TestRisingFallingSequence(t *testing.T) {
	var h History
	s := edgeSignal()
	seq := []float64{0, 0, 1, 1, 0}
	want := []types.SemanticEvent{types.EventNone, types.EventNone, types.EventBrakeOn, types.EventNone, types.EventBrakeOff}

	for i, v := range seq {
		out := feed(&h, 0x3C2, 1, s, v)
		if want[i] == types.EventNone {
			if out.Len() != 0 {
				t.Errorf("sample %d (%v): unexpected %v", i, v, out.At(0).Event)
			}
			continue
		}
		if out.Len() != 1 || out.At(0).Event != want[i] {
			t.Errorf("sample %d (%v): got %d events, want %v", i, v, out.Len(), want[i])
		}
	}
}

func TestEdgeNotOnFirstSample(t *testing.T) {
	var h History
	out := feed(&h, 0x3C2, 1, edgeSignal(), 1)
	if out.Len() != 0 {
		t.Errorf("first sample fired %v", out.At(0).Event)
	}
}

func TestResetForgetsHistory(t *testing.T) {
	var h History
	s := edgeSignal()
	feed(&h, 0x3C2, 1, s, 0)
	h.Reset()
	if out := feed(&h, 0x3C2, 1, s, 1); out.Len() != 0 {
		t.Error("sample after Reset should count as first")
	}
}

// ===== Level Conditions =====

func TestEqualsFiresOnFirstSample(t *testing.T) {
	var h History
	s := &catalog.Signal{Length: 2, Factor: 1, Triggers: []catalog.Trigger{
		{Condition: catalog.Equals, Value: 2, Event: types.EventTurnLeft},
	}}
	if out := feed(&h, 0x3F5, 0, s, 2); !out.Contains(types.EventTurnLeft) {
		t.Error("equals should fire on the first sample")
	}
	if out := feed(&h, 0x3F5, 0, s, 2); !out.Contains(types.EventTurnLeft) {
		t.Error("equals is level triggered and should fire again")
	}
	if out := feed(&h, 0x3F5, 0, s, 1); out.Len() != 0 {
		t.Error("equals fired on a different value")
	}
}

func TestEqualsRawComparison(t *testing.T) {
	var h History
	s := &catalog.Signal{Length: 3, Factor: 1, Triggers: []catalog.Trigger{
		{Condition: catalog.Equals, Value: 5, Event: types.EventChargingStarted},
	}}
	var out Events
	// A value near 5 with a different raw does not match on integral signals.
	Evaluate(&h, 0x23D, 0, s, 5.0004, 4, &out)
	if out.Len() != 0 {
		t.Error("integral equals should compare raw values")
	}
	Evaluate(&h, 0x23D, 0, s, 5, 5, &out)
	if !out.Contains(types.EventChargingStarted) {
		t.Error("raw 5 should match")
	}
}

func TestEqualsToleranceOnScaledSignals(t *testing.T) {
	var h History
	s := &catalog.Signal{Length: 12, Factor: 0.1, Triggers: []catalog.Trigger{
		{Condition: catalog.Equals, Value: 0.3, Event: types.EventSpeedThreshold},
	}}
	var out Events
	Evaluate(&h, 0x100, 0, s, 0.1+0.2, 3, &out)
	if !out.Contains(types.EventSpeedThreshold) {
		t.Error("scaled equals should use a tolerance")
	}
}

func TestEqualsSigned(t *testing.T) {
	var h History
	s := &catalog.Signal{Length: 8, Kind: catalog.Signed, Factor: 1, Triggers: []catalog.Trigger{
		{Condition: catalog.Equals, Value: -1, Event: types.EventGearReverse},
	}}
	var out Events
	Evaluate(&h, 0x118, 0, s, -1, 0xFF, &out)
	if !out.Contains(types.EventGearReverse) {
		t.Error("signed equals should compare the sign-extended value")
	}
}

func TestThresholds(t *testing.T) {
	var h History
	s := &catalog.Signal{Length: 8, Factor: 1, Triggers: []catalog.Trigger{
		{Condition: catalog.GreaterThan, Value: 100, Event: types.EventSpeedThreshold},
		{Condition: catalog.LessThan, Value: 10, Event: types.EventGearPark},
	}}
	if out := feed(&h, 0x257, 0, s, 120); out.Len() != 1 || out.At(0).Event != types.EventSpeedThreshold {
		t.Error("gt should fire on the first sample above the threshold")
	}
	if out := feed(&h, 0x257, 0, s, 121); out.Len() != 1 {
		t.Error("gt is level triggered")
	}
	if out := feed(&h, 0x257, 0, s, 100); out.Len() != 0 {
		t.Error("gt must be strict")
	}
	if out := feed(&h, 0x257, 0, s, 5); !out.Contains(types.EventGearPark) {
		t.Error("lt should fire below the threshold")
	}
}

func TestAnyChange(t *testing.T) {
	var h History
	s := &catalog.Signal{Length: 4, Factor: 1, Triggers: []catalog.Trigger{
		{Condition: catalog.AnyChange, Event: types.EventAutopilotEngaged},
	}}
	results := []int{}
	for _, v := range []float64{3, 3, 4, 4, 0} {
		out := feed(&h, 0x399, 0, s, v)
		results = append(results, out.Len())
	}
	want := []int{0, 0, 1, 0, 1}
	for i := range want {
		if results[i] != want[i] {
			t.Errorf("sample %d: %d events, want %d", i, results[i], want[i])
		}
	}
}

func TestUntriggeredSignalsSkipHistory(t *testing.T) {
	var h History
	plain := &catalog.Signal{Length: 8, Factor: 1}
	var out Events
	Evaluate(&h, 0x257, 0, plain, 7, 7, &out)
	if _, _, ok := h.Last(0x257, 0); ok {
		t.Error("a signal without triggers should not write history")
	}
}

// ===== Aliasing =====

func TestKeyReduction(t *testing.T) {
	if k := Key(0x23D, 17); k.Message != 0x3D || k.Signal != 1 {
		t.Errorf("Key(0x23D, 17) = %+v", k)
	}
	if Key(0x13D, 0) != Key(0x43D, 0) {
		t.Error("ids sharing a low byte should share a slot")
	}
}

func TestSampleAliases(t *testing.T) {
	aliases := Aliases(catalog.Sample())
	if len(aliases) != 3 {
		t.Fatalf("expected 3 alias pairs, got %d: %+v", len(aliases), aliases)
	}
	for _, a := range aliases {
		if a.Slot != (Slot{Message: 0x3D, Signal: 0}) {
			t.Errorf("unexpected alias slot %+v", a.Slot)
		}
	}
}

func TestAliasedSlotsShareHistory(t *testing.T) {
	var h History
	s := edgeSignal()
	feed(&h, 0x13D, 0, s, 0)
	// 0x23D reads the value stored by 0x13D.
	if out := feed(&h, 0x23D, 0, s, 1); !out.Contains(types.EventBrakeOn) {
		t.Error("aliased ids should observe each other's history")
	}
}

func TestAliasesIncludeExtraMessages(t *testing.T) {
	extra := catalog.Message{ID: 0x5F5, Signals: []catalog.Signal{*edgeSignal()}}
	aliases := Aliases(catalog.Sample(), extra)
	found := false
	for _, a := range aliases {
		if a.B.MessageID == 0x5F5 && a.A.MessageID == 0x3F5 {
			found = true
		}
	}
	if !found {
		t.Error("extra message 0x5F5 should alias 0x3F5 signal 0")
	}
}

// ===== Event List =====

func TestEventsCapacity(t *testing.T) {
	var e Events
	for i := 0; i < MaxEvents+3; i++ {
		e.Add(Fired{Event: types.EventBrakeOn})
	}
	if e.Len() != MaxEvents || e.Dropped() != 3 {
		t.Errorf("Len=%d Dropped=%d", e.Len(), e.Dropped())
	}
	e.Reset()
	if e.Len() != 0 || e.Dropped() != 0 {
		t.Error("Reset should clear the list")
	}
}
