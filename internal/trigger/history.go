// Package trigger keeps per-signal history and turns decoded values into
// semantic events using the catalog's declarative triggers.
//
// History is a fixed table addressed by the low byte of the message id and
// the low nibble of the signal index. Distinct messages whose ids share a low
// byte therefore share slots; Aliases lists every such pair for a catalog.
// Only signals that carry triggers read or write the table, so state-only
// signals never alias anything.
package trigger

import (
	"vehicle-led-service/internal/catalog"
)

const (
	MessageSlots = 256
	SignalSlots  = 16
)

// Slot addresses one history entry.
type Slot struct {
	Message uint8
	Signal  uint8
}

// Key reduces a (message id, signal index) pair to its history slot.
func Key(id uint32, sig int) Slot {
	return Slot{Message: uint8(id & 0xFF), Signal: uint8(sig & 0x0F)}
}

type entry struct {
	value float64
	raw   uint64
	valid bool
}

// History holds the previous value of every trigger-bearing signal. The zero
// value is ready to use. It is not safe for concurrent use; the engine owns
// it.
type History struct {
	slots [MessageSlots][SignalSlots]entry
}

// Last returns the previous value stored for the signal, if any.
func (h *History) Last(id uint32, sig int) (value float64, raw uint64, ok bool) {
	k := Key(id, sig)
	e := &h.slots[k.Message][k.Signal]
	return e.value, e.raw, e.valid
}

func (h *History) store(k Slot, value float64, raw uint64) {
	h.slots[k.Message][k.Signal] = entry{value: value, raw: raw, valid: true}
}

// Reset forgets every stored value. The next sample of each signal is
// treated as the first.
func (h *History) Reset() {
	h.slots = [MessageSlots][SignalSlots]entry{}
}

// Ref names one catalog signal.
type Ref struct {
	MessageID uint32
	Signal    int
	Name      string
}

// Alias is a pair of distinct signals that share a history slot.
type Alias struct {
	Slot Slot
	A, B Ref
}

// Aliases lists every pair of trigger-bearing signals in cat (plus any extra
// messages) that map to the same slot.
func Aliases(cat *catalog.Catalog, extra ...catalog.Message) []Alias {
	msgs := make([]catalog.Message, 0, len(cat.Messages)+len(extra))
	msgs = append(msgs, cat.Messages...)
	msgs = append(msgs, extra...)

	owners := make(map[Slot][]Ref)
	var order []Slot
	for _, m := range msgs {
		for i := range m.Signals {
			if len(m.Signals[i].Triggers) == 0 {
				continue
			}
			k := Key(m.ID, i)
			if _, seen := owners[k]; !seen {
				order = append(order, k)
			}
			owners[k] = append(owners[k], Ref{MessageID: m.ID, Signal: i, Name: m.Signals[i].Name})
		}
	}

	var out []Alias
	for _, k := range order {
		refs := owners[k]
		for i := 0; i < len(refs); i++ {
			for j := i + 1; j < len(refs); j++ {
				if refs[i].MessageID == refs[j].MessageID && refs[i].Signal == refs[j].Signal {
					continue
				}
				out = append(out, Alias{Slot: k, A: refs[i], B: refs[j]})
			}
		}
	}
	return out
}
