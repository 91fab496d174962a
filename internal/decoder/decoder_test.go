package decoder

import (
	"testing"

	"vehicle-led-service/internal/catalog"
	"vehicle-led-service/internal/types"
)

func reversed(d [8]byte) [8]byte {
	var r [8]byte
	for i := range d {
		r[i] = d[7-i]
	}
	return r
}

// ===== Extraction =====

func TestExtractLittleEndian(t *testing.T) {
	data := [8]byte{0x34, 0x12}
	raw, ok := Extract(&data, 2, 0, 16, catalog.LittleEndian)
	if !ok || raw != 0x1234 {
		t.Fatalf("Extract = 0x%X, %v; want 0x1234, true", raw, ok)
	}
	raw, ok = Extract(&data, 2, 4, 4, catalog.LittleEndian)
	if !ok || raw != 0x3 {
		t.Errorf("Extract nibble = 0x%X, %v; want 0x3", raw, ok)
	}
}

func TestExtractBigEndian(t *testing.T) {
	data := [8]byte{0xAB, 0xCD}
	raw, ok := Extract(&data, 2, 0, 8, catalog.BigEndian)
	if !ok || raw != 0xAB {
		t.Fatalf("Extract = 0x%X, %v; want 0xAB", raw, ok)
	}
	raw, ok = Extract(&data, 2, 0, 16, catalog.BigEndian)
	if !ok || raw != 0xABCD {
		t.Errorf("Extract = 0x%X, %v; want 0xABCD", raw, ok)
	}
	// Bit 0 is the MSB of byte 0.
	raw, _ = Extract(&data, 2, 0, 1, catalog.BigEndian)
	if raw != 1 {
		t.Errorf("MSB of byte 0 = %d, want 1", raw)
	}
}

func TestExtractEndianEquivalence(t *testing.T) {
	data := [8]byte{0xDE, 0xAD, 0xBE, 0xEF, 0x01, 0x23, 0x45, 0x67}
	rev := reversed(data)
	cases := []struct{ start, length uint8 }{
		{0, 1}, {0, 8}, {3, 5}, {7, 9}, {12, 12}, {20, 17}, {32, 32}, {0, 64}, {63, 1},
	}
	for _, c := range cases {
		le, ok1 := Extract(&data, 8, c.start, c.length, catalog.LittleEndian)
		be, ok2 := Extract(&rev, 8, 64-c.length-c.start, c.length, catalog.BigEndian)
		if !ok1 || !ok2 {
			t.Fatalf("start=%d len=%d: ok=%v/%v", c.start, c.length, ok1, ok2)
		}
		if le != be {
			t.Errorf("start=%d len=%d: le=0x%X be=0x%X", c.start, c.length, le, be)
		}
	}
}

func TestExtractShortFrame(t *testing.T) {
	data := [8]byte{0xFF, 0xFF}
	if _, ok := Extract(&data, 1, 8, 8, catalog.LittleEndian); ok {
		t.Error("LE field in byte 1 must not decode with dlc=1")
	}
	if _, ok := Extract(&data, 1, 4, 8, catalog.LittleEndian); ok {
		t.Error("LE field spanning bytes 0-1 must not decode with dlc=1")
	}
	if _, ok := Extract(&data, 1, 8, 8, catalog.BigEndian); ok {
		t.Error("BE field in byte 1 must not decode with dlc=1")
	}
	if _, ok := Extract(&data, 0, 0, 1, catalog.LittleEndian); ok {
		t.Error("nothing decodes with dlc=0")
	}
}

func TestExtractBadLayout(t *testing.T) {
	var data [8]byte
	if _, ok := Extract(&data, 8, 60, 8, catalog.LittleEndian); ok {
		t.Error("layout past 64 bits must fail")
	}
	if _, ok := Extract(&data, 8, 0, 0, catalog.LittleEndian); ok {
		t.Error("zero length must fail")
	}
}

// ===== Scaling =====

func TestScaleBoolean(t *testing.T) {
	s := &catalog.Signal{Length: 3, Kind: catalog.Boolean, Factor: 5, Offset: 2}
	if v := Scale(s, 0); v != 0 {
		t.Errorf("Scale(0) = %v, want 0", v)
	}
	for _, raw := range []uint64{1, 4, 7} {
		if v := Scale(s, raw); v != 1 {
			t.Errorf("Scale(%d) = %v, want 1", raw, v)
		}
	}
}

func TestScaleSignedExtremes(t *testing.T) {
	s := &catalog.Signal{Length: 8, Kind: catalog.Signed, Factor: 1}
	cases := map[uint64]float64{0x80: -128, 0x7F: 127, 0xFF: -1, 0x00: 0}
	for raw, want := range cases {
		if v := Scale(s, raw); v != want {
			t.Errorf("Scale(0x%X) = %v, want %v", raw, v, want)
		}
	}

	wide := &catalog.Signal{Length: 64, Kind: catalog.Signed, Factor: 1}
	if v := Scale(wide, 1<<63); v != -9223372036854775808 {
		t.Errorf("64-bit min = %v", v)
	}
}

func TestSignedRoundTrip(t *testing.T) {
	const length = 12
	for _, want := range []int64{-2048, -1000, -1, 0, 1, 777, 2047} {
		var data [8]byte
		field := uint64(want) & ((1 << length) - 1)
		word := field << 5
		for i := 0; i < 8; i++ {
			data[i] = byte(word >> (8 * i))
		}
		raw, ok := Extract(&data, 8, 5, length, catalog.LittleEndian)
		if !ok {
			t.Fatalf("extract failed for %d", want)
		}
		if got := SignExtend(raw, length); got != want {
			t.Errorf("round trip %d -> 0x%X -> %d", want, raw, got)
		}
	}
}

func TestScaleFactorOffset(t *testing.T) {
	s := &catalog.Signal{Length: 12, Kind: catalog.Unsigned, Factor: 0.08, Offset: -40}
	if v := Scale(s, 1000); v < 39.99 || v > 40.01 {
		t.Errorf("Scale(1000) = %v, want 40", v)
	}
}

// ===== Frame Decoding =====

func TestDecodeIndicatorFrame(t *testing.T) {
	cat := catalog.Sample()
	f := types.Frame{ID: 0x3F5, DLC: 8, Data: [8]byte{0x02}}
	res := Decode(cat, &f)
	if !res.Known() {
		t.Fatal("0x3F5 should be known")
	}
	v := res.At(0)
	if v.Index != 0 || v.Raw != 2 || v.Value != 2 {
		t.Errorf("first value = %+v, want index 0 raw 2", v)
	}
}

func TestDecodeUnknownID(t *testing.T) {
	f := types.Frame{ID: 0x7E0, DLC: 8}
	res := Decode(catalog.Sample(), &f)
	if res.Known() || res.Len() != 0 {
		t.Errorf("unknown id decoded %d values", res.Len())
	}
}

func TestDecodeSkipsSignalsBeyondDLC(t *testing.T) {
	f := types.Frame{ID: 0x3F5, DLC: 1, Data: [8]byte{0x01}}
	res := Decode(catalog.Sample(), &f)
	// Byte 0 holds the left, right and hazard requests.
	if res.Len() != 3 {
		t.Fatalf("decoded %d values with dlc=1, want 3", res.Len())
	}
	for i := 0; i < res.Len(); i++ {
		if res.At(i).Index > 2 {
			t.Errorf("signal %d decoded past dlc", res.At(i).Index)
		}
	}
}

func TestDecodeMultiplexed(t *testing.T) {
	cat := catalog.Sample()

	f := types.Frame{ID: 0x2E1, DLC: 2, Data: [8]byte{0x01, 0x01}}
	res := Decode(cat, &f)
	if res.Len() != 1 || res.At(0).Index != 1 || res.At(0).Raw != 1 {
		t.Fatalf("mux 1: got %d values", res.Len())
	}

	f.Data[0] = 0x02
	res = Decode(cat, &f)
	if res.Len() != 0 {
		t.Errorf("mux 2: multiplexed signal should be skipped, got %d values", res.Len())
	}
}

func TestDecodeDoesNotAllocate(t *testing.T) {
	cat := catalog.Sample()
	f := types.Frame{ID: 0x3F5, DLC: 8, Data: [8]byte{0x02, 0, 0, 0x08}}
	allocs := testing.AllocsPerRun(100, func() {
		res := Decode(cat, &f)
		_ = res.Len()
	})
	if allocs != 0 {
		t.Errorf("Decode allocated %v times per run", allocs)
	}
}
