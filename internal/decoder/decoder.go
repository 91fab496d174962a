// Package decoder extracts physical signal values from CAN frames using a
// catalog. Nothing in this package allocates.
package decoder

import (
	"vehicle-led-service/internal/catalog"
	"vehicle-led-service/internal/types"
)

// Value is one decoded signal. Index refers to the signal's position in its
// catalog message.
type Value struct {
	Index int
	Raw   uint64
	Value float64
}

// Result holds the signals decoded from one frame. It is a plain value with
// fixed capacity so it can live on the stack.
type Result struct {
	Message int // catalog index, -1 if the id is unknown
	n       int
	values  [catalog.MaxSignalsPerMessage]Value
}

func (r *Result) Len() int { return r.n }

func (r *Result) At(i int) Value { return r.values[i] }

func (r *Result) Known() bool { return r.Message >= 0 }

func (r *Result) add(v Value) bool {
	if r.n >= len(r.values) {
		return false
	}
	r.values[r.n] = v
	r.n++
	return true
}

// Extract returns length bits of the payload starting at startBit.
//
// Little endian: the payload is read as a 64 bit word with byte 0 least
// significant and startBit is the LSB of the field.
// Big endian: the payload is read with byte 0 most significant and startBit
// counts from the MSB of byte 0, so startBit is the field's MSB.
//
// ok is false when the field needs bytes at or beyond dlc.
func Extract(data *[8]byte, dlc uint8, startBit, length uint8, order catalog.ByteOrder) (uint64, bool) {
	if length == 0 || length > 64 || int(startBit)+int(length) > 64 {
		return 0, false
	}

	mask := ^uint64(0)
	if length < 64 {
		mask = (uint64(1) << length) - 1
	}

	var word uint64
	if order == catalog.LittleEndian {
		lastByte := (int(startBit) + int(length) - 1) / 8
		if lastByte >= int(dlc) {
			return 0, false
		}
		for i := 7; i >= 0; i-- {
			word = word<<8 | uint64(data[i])
		}
		return (word >> startBit) & mask, true
	}

	msb := 63 - int(startBit)
	shift := msb - (int(length) - 1)
	lastByte := 7 - shift/8
	if lastByte >= int(dlc) {
		return 0, false
	}
	for i := 0; i < 8; i++ {
		word = word<<8 | uint64(data[i])
	}
	return (word >> uint(shift)) & mask, true
}

// Scale converts a raw field to its physical value.
func Scale(s *catalog.Signal, raw uint64) float64 {
	switch s.Kind {
	case catalog.Boolean:
		if raw != 0 {
			return 1
		}
		return 0
	case catalog.Signed:
		return float64(SignExtend(raw, s.Length))*s.Factor + s.Offset
	default:
		return float64(raw)*s.Factor + s.Offset
	}
}

// SignExtend interprets the low length bits of raw as two's complement.
func SignExtend(raw uint64, length uint8) int64 {
	if length == 0 || length >= 64 {
		return int64(raw)
	}
	shift := 64 - length
	return int64(raw<<shift) >> shift
}

// Decode looks up the frame's message and decodes every signal that fits in
// the frame. Unknown ids give an empty result.
func Decode(cat *catalog.Catalog, f *types.Frame) Result {
	res := Result{Message: -1}
	idx, msg := cat.Lookup(f.ID)
	if msg == nil {
		return res
	}
	res.Message = idx
	decodeInto(msg, f, &res)
	return res
}

// DecodeMessage decodes f against a known descriptor.
func DecodeMessage(msg *catalog.Message, f *types.Frame) Result {
	res := Result{}
	decodeInto(msg, f, &res)
	return res
}

func decodeInto(msg *catalog.Message, f *types.Frame, res *Result) {
	dlc := f.DLC
	if dlc > 8 {
		dlc = 8
	}

	var muxRaw uint64
	hasMux := false
	for i := range msg.Signals {
		s := &msg.Signals[i]
		if s.Mux == catalog.MuxMultiplexer {
			muxRaw, hasMux = Extract(&f.Data, dlc, s.StartBit, s.Length, s.Order)
			break
		}
	}

	for i := range msg.Signals {
		s := &msg.Signals[i]
		switch s.Mux {
		case catalog.MuxMultiplexer:
			continue
		case catalog.MuxMultiplexed:
			if !hasMux || muxRaw != s.MuxValue {
				continue
			}
		}
		raw, ok := Extract(&f.Data, dlc, s.StartBit, s.Length, s.Order)
		if !ok {
			continue
		}
		if !res.add(Value{Index: i, Raw: raw, Value: Scale(s, raw)}) {
			return
		}
	}
}
