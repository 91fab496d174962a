package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"vehicle-led-service/internal/types"
)

// JSON layout produced by the catalog generator. Enumerations are spelled
// out so reordering them in code does not invalidate generated files.
type fileCatalog struct {
	Messages []fileMessage `json:"messages"`
}

type fileMessage struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	Bus     uint8        `json:"bus"`
	Signals []fileSignal `json:"signals"`
}

type fileSignal struct {
	Name     string        `json:"name"`
	StartBit uint8         `json:"start_bit"`
	Length   uint8         `json:"length"`
	Order    string        `json:"byte_order"`
	Kind     string        `json:"value_type"`
	Factor   *float64      `json:"factor"`
	Offset   float64       `json:"offset"`
	Min      *float64      `json:"min"`
	Max      *float64      `json:"max"`
	Mux      string        `json:"mux"`
	MuxValue uint64        `json:"mux_value"`
	Triggers []fileTrigger `json:"events"`
}

type fileTrigger struct {
	Condition string  `json:"condition"`
	Value     float64 `json:"value"`
	Event     string  `json:"event"`
}

// Load reads and validates a generated catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a generated catalog. Triggers naming an unknown event or
// condition are dropped; the rest of the catalog is kept.
func Parse(data []byte) (*Catalog, error) {
	var fc fileCatalog
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	cat := &Catalog{Messages: make([]Message, 0, len(fc.Messages))}
	for _, fm := range fc.Messages {
		id, err := parseID(fm.ID)
		if err != nil {
			return nil, fmt.Errorf("message %q: %w", fm.Name, err)
		}
		msg := Message{ID: id, Name: fm.Name, Bus: fm.Bus, Signals: make([]Signal, 0, len(fm.Signals))}
		for _, fs := range fm.Signals {
			msg.Signals = append(msg.Signals, fs.signal())
		}
		cat.Messages = append(cat.Messages, msg)
	}

	if err := cat.Validate(); err != nil {
		return nil, err
	}
	return cat, nil
}

func (fs fileSignal) signal() Signal {
	s := Signal{
		Name:     fs.Name,
		StartBit: fs.StartBit,
		Length:   fs.Length,
		Factor:   1,
		Offset:   fs.Offset,
		MuxValue: fs.MuxValue,
	}
	if fs.Factor != nil {
		s.Factor = *fs.Factor
	}
	if strings.EqualFold(fs.Order, "be") || strings.EqualFold(fs.Order, "big_endian") {
		s.Order = BigEndian
	}
	switch strings.ToLower(fs.Kind) {
	case "signed":
		s.Kind = Signed
	case "bool", "boolean":
		s.Kind = Boolean
	}
	switch strings.ToLower(fs.Mux) {
	case "multiplexer":
		s.Mux = MuxMultiplexer
	case "multiplexed":
		s.Mux = MuxMultiplexed
	}
	if fs.Min != nil && fs.Max != nil {
		s.Min, s.Max, s.HasRange = *fs.Min, *fs.Max, true
	}
	for _, ft := range fs.Triggers {
		ev := types.ParseEvent(ft.Event)
		cond, ok := parseCondition(ft.Condition)
		if ev == types.EventNone || !ok {
			continue
		}
		s.Triggers = append(s.Triggers, Trigger{Condition: cond, Value: ft.Value, Event: ev})
	}
	return s
}

func parseCondition(s string) (Condition, bool) {
	for i, id := range conditionIDs {
		if strings.EqualFold(s, id) {
			return Condition(i), true
		}
	}
	switch strings.ToUpper(s) {
	case "EQUALS", "VALUE_EQUALS":
		return Equals, true
	case "RISING_EDGE":
		return RisingEdge, true
	case "FALLING_EDGE":
		return FallingEdge, true
	case "GREATER_THAN", "VALUE_GREATER":
		return GreaterThan, true
	case "LESS_THAN", "VALUE_LESS":
		return LessThan, true
	case "ANY_CHANGE", "VALUE_CHANGED":
		return AnyChange, true
	}
	return 0, false
}

func parseID(s string) (uint32, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid message id %q: %w", s, err)
	}
	return uint32(v), nil
}
