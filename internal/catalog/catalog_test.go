package catalog

import (
	"errors"
	"testing"

	"vehicle-led-service/internal/types"
)

// ===== Sample Catalog =====

func TestSampleValidates(t *testing.T) {
	if err := Sample().Validate(); err != nil {
		t.Fatalf("sample catalog invalid: %v", err)
	}
}

func TestSampleIndicatorLeft(t *testing.T) {
	cat := Sample()
	idx, msg := cat.Lookup(0x3F5)
	if msg == nil || idx < 0 {
		t.Fatal("0x3F5 not in sample catalog")
	}
	s := msg.Signals[0]
	if s.Name != "VCFRONT_indicatorLeftRequest" || s.StartBit != 0 || s.Length != 2 {
		t.Fatalf("unexpected first signal: %+v", s)
	}
	found := false
	for _, tr := range s.Triggers {
		if tr.Condition == Equals && tr.Value == 2 && tr.Event == types.EventTurnLeft {
			found = true
		}
	}
	if !found {
		t.Error("indicator left request == 2 should raise TURN_LEFT")
	}
}

func TestLookupUnknown(t *testing.T) {
	idx, msg := Sample().Lookup(0x7E0)
	if idx != -1 || msg != nil {
		t.Errorf("Lookup(0x7E0) = %d, %v; want -1, nil", idx, msg)
	}
}

// ===== Validation =====

func TestValidateRejectsLayoutPastWord(t *testing.T) {
	cat := &Catalog{Messages: []Message{
		{ID: 1, Signals: []Signal{{Name: "x", StartBit: 60, Length: 8, Factor: 1}}},
	}}
	if err := cat.Validate(); !errors.Is(err, ErrBadLayout) {
		t.Errorf("expected ErrBadLayout, got %v", err)
	}
}

func TestValidateRejectsTooManyTriggers(t *testing.T) {
	tr := Trigger{Condition: AnyChange, Event: types.EventBrakeOn}
	cat := &Catalog{Messages: []Message{
		{ID: 1, Signals: []Signal{{Name: "x", Length: 1, Factor: 1, Triggers: []Trigger{tr, tr, tr, tr, tr}}}},
	}}
	if err := cat.Validate(); !errors.Is(err, ErrTooManyTriggers) {
		t.Errorf("expected ErrTooManyTriggers, got %v", err)
	}
}

func TestValidateRejectsDuplicateID(t *testing.T) {
	cat := &Catalog{Messages: []Message{{ID: 5}, {ID: 5}}}
	if err := cat.Validate(); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("expected ErrDuplicateID, got %v", err)
	}
}

// ===== JSON Loading =====

const testCatalogJSON = `{
  "messages": [
    {
      "id": "0x3F5",
      "name": "VCFRONT_lighting",
      "bus": 2,
      "signals": [
        {
          "name": "VCFRONT_indicatorLeftRequest",
          "start_bit": 0,
          "length": 2,
          "byte_order": "le",
          "value_type": "unsigned",
          "events": [
            {"condition": "equals", "value": 2, "event": "TURN_LEFT"},
            {"condition": "equals", "value": 3, "event": "NOT_AN_EVENT"}
          ]
        },
        {
          "name": "temp",
          "start_bit": 8,
          "length": 12,
          "byte_order": "be",
          "value_type": "signed",
          "factor": 0.5,
          "offset": -10,
          "min": -40,
          "max": 120,
          "events": [{"condition": "RISING_EDGE", "event": "BRAKE_ON"}]
        }
      ]
    }
  ]
}`

func TestParse(t *testing.T) {
	cat, err := Parse([]byte(testCatalogJSON))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	_, msg := cat.Lookup(0x3F5)
	if msg == nil {
		t.Fatal("message 0x3F5 missing")
	}
	if msg.Bus != types.BusBody {
		t.Errorf("bus = %d, want %d", msg.Bus, types.BusBody)
	}

	left := msg.Signals[0]
	if len(left.Triggers) != 1 {
		t.Fatalf("unknown event should be dropped, got %d triggers", len(left.Triggers))
	}
	if left.Factor != 1 {
		t.Errorf("missing factor should default to 1, got %v", left.Factor)
	}

	temp := msg.Signals[1]
	if temp.Order != BigEndian || temp.Kind != Signed {
		t.Errorf("temp order/kind = %v/%v", temp.Order, temp.Kind)
	}
	if !temp.HasRange || temp.Min != -40 || temp.Max != 120 {
		t.Errorf("temp range not parsed: %+v", temp)
	}
	if len(temp.Triggers) != 1 || temp.Triggers[0].Condition != RisingEdge {
		t.Errorf("legacy condition name not accepted: %+v", temp.Triggers)
	}
}

func TestParseBadID(t *testing.T) {
	_, err := Parse([]byte(`{"messages":[{"id":"zz","signals":[]}]}`))
	if err == nil {
		t.Fatal("expected error for invalid id")
	}
}
