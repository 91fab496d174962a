// Package catalog describes the CAN messages the service understands: bit
// layout and scaling of each signal plus the triggers that raise semantic
// events. A catalog is immutable once built.
package catalog

import (
	"errors"
	"fmt"

	"vehicle-led-service/internal/types"
)

const (
	MaxSignalsPerMessage = 16
	MaxTriggersPerSignal = 4
	MaxMessages          = 64
)

type ByteOrder uint8

const (
	LittleEndian ByteOrder = iota // Intel
	BigEndian                     // Motorola
)

type ValueKind uint8

const (
	Unsigned ValueKind = iota
	Signed
	Boolean
)

type MuxKind uint8

const (
	MuxNone MuxKind = iota
	MuxMultiplexer
	MuxMultiplexed
)

type Condition uint8

const (
	Equals Condition = iota
	RisingEdge
	FallingEdge
	GreaterThan
	LessThan
	AnyChange
)

var conditionIDs = [...]string{"equals", "rising", "falling", "gt", "lt", "change"}

func (c Condition) String() string {
	if int(c) >= len(conditionIDs) {
		return "unknown"
	}
	return conditionIDs[c]
}

// Trigger raises Event when Condition holds. Value is ignored for edge and
// change conditions.
type Trigger struct {
	Condition Condition
	Value     float64
	Event     types.SemanticEvent
}

type Signal struct {
	Name     string
	StartBit uint8
	Length   uint8
	Order    ByteOrder
	Kind     ValueKind
	Factor   float64
	Offset   float64
	Min      float64
	Max      float64
	HasRange bool
	Mux      MuxKind
	MuxValue uint64
	Triggers []Trigger
}

// Integral reports whether the physical value equals the raw field, which
// lets equality triggers compare integers instead of floats.
func (s *Signal) Integral() bool {
	return s.Kind != Boolean && s.Factor == 1 && s.Offset == 0
}

type Message struct {
	ID      uint32
	Name    string
	Bus     uint8
	Signals []Signal
}

type Catalog struct {
	Messages []Message
}

var (
	ErrTooManyMessages = errors.New("too many messages")
	ErrTooManySignals  = errors.New("too many signals")
	ErrTooManyTriggers = errors.New("too many triggers")
	ErrBadLayout       = errors.New("signal layout out of range")
	ErrDuplicateID     = errors.New("duplicate message id")
)

// Lookup returns the index and descriptor for id, or -1 and nil when the id
// is not in the catalog.
func (c *Catalog) Lookup(id uint32) (int, *Message) {
	for i := range c.Messages {
		if c.Messages[i].ID == id {
			return i, &c.Messages[i]
		}
	}
	return -1, nil
}

// Validate checks limits and bit layouts.
func (c *Catalog) Validate() error {
	if len(c.Messages) > MaxMessages {
		return fmt.Errorf("%w: %d > %d", ErrTooManyMessages, len(c.Messages), MaxMessages)
	}
	seen := make(map[uint32]bool, len(c.Messages))
	for i := range c.Messages {
		m := &c.Messages[i]
		if seen[m.ID] {
			return fmt.Errorf("%w: 0x%X", ErrDuplicateID, m.ID)
		}
		seen[m.ID] = true
		if len(m.Signals) > MaxSignalsPerMessage {
			return fmt.Errorf("%w: message 0x%X has %d", ErrTooManySignals, m.ID, len(m.Signals))
		}
		for j := range m.Signals {
			s := &m.Signals[j]
			if s.Length == 0 || s.Length > 64 || int(s.StartBit)+int(s.Length) > 64 {
				return fmt.Errorf("%w: 0x%X %s start=%d len=%d", ErrBadLayout, m.ID, s.Name, s.StartBit, s.Length)
			}
			if len(s.Triggers) > MaxTriggersPerSignal {
				return fmt.Errorf("%w: 0x%X %s has %d", ErrTooManyTriggers, m.ID, s.Name, len(s.Triggers))
			}
		}
	}
	return nil
}
