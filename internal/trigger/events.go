package trigger

import "vehicle-led-service/internal/types"

// MaxEvents bounds the events collected for one frame.
const MaxEvents = 64

// Fired is one event raised by a trigger.
type Fired struct {
	Event     types.SemanticEvent
	MessageID uint32
	Signal    int
	Value     float64
}

// Events is a fixed-capacity list of fired events. Events past capacity are
// counted in Dropped.
type Events struct {
	n       int
	items   [MaxEvents]Fired
	dropped int
}

func (e *Events) Add(f Fired) bool {
	if e.n >= len(e.items) {
		e.dropped++
		return false
	}
	e.items[e.n] = f
	e.n++
	return true
}

func (e *Events) Len() int { return e.n }

func (e *Events) At(i int) Fired { return e.items[i] }

func (e *Events) Dropped() int { return e.dropped }

func (e *Events) Reset() {
	e.n = 0
	e.dropped = 0
}

// Contains reports whether ev fired at least once.
func (e *Events) Contains(ev types.SemanticEvent) bool {
	for i := 0; i < e.n; i++ {
		if e.items[i].Event == ev {
			return true
		}
	}
	return false
}

// Append copies all events from other.
func (e *Events) Append(other *Events) {
	for i := 0; i < other.n; i++ {
		e.Add(other.items[i])
	}
	e.dropped += other.dropped
}
