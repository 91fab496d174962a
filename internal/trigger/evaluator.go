package trigger

import (
	"math"

	"vehicle-led-service/internal/catalog"
)

const equalsTolerance = 0.001

// Evaluate checks the signal's triggers against its previous value and
// appends every event that fires to out. The history slot is updated
// afterwards regardless of the outcome.
//
// Edge and change conditions need a previous value and never fire on the
// first sample. Equals and the threshold conditions are level checks and do.
// A value is falsy when it is <= 0.
func Evaluate(h *History, id uint32, sigIndex int, sig *catalog.Signal, value float64, raw uint64, out *Events) {
	if len(sig.Triggers) == 0 {
		return
	}

	k := Key(id, sigIndex)
	prev := h.slots[k.Message][k.Signal]

	for i := range sig.Triggers {
		tr := &sig.Triggers[i]
		fire := false
		switch tr.Condition {
		case catalog.Equals:
			fire = equals(sig, value, raw, tr.Value)
		case catalog.GreaterThan:
			fire = value > tr.Value
		case catalog.LessThan:
			fire = value < tr.Value
		case catalog.RisingEdge:
			fire = prev.valid && prev.value <= 0 && value > 0
		case catalog.FallingEdge:
			fire = prev.valid && prev.value > 0 && value <= 0
		case catalog.AnyChange:
			fire = prev.valid && prev.value != value
		}
		if fire {
			out.Add(Fired{Event: tr.Event, MessageID: id, Signal: sigIndex, Value: value})
		}
	}

	h.store(k, value, raw)
}

func equals(sig *catalog.Signal, value float64, raw uint64, target float64) bool {
	if sig.Integral() {
		t := math.Round(target)
		if sig.Kind == catalog.Signed {
			return int64(value) == int64(t)
		}
		return t >= 0 && raw == uint64(t)
	}
	return math.Abs(value-target) < equalsTolerance
}
