package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"vehicle-led-service/internal/logger"
	"vehicle-led-service/internal/types"

	"github.com/InfluxCommunity/influxdb3-go/v2/influxdb3"
	"github.com/google/uuid"
)

func testLogger() *logger.Logger {
	return logger.NewLogger(nil, logger.LogLevelNone)
}

// ===== Batcher =====

type flushRecorder struct {
	mu      sync.Mutex
	batches [][]int
	err     error
}

func (f *flushRecorder) flush(_ context.Context, items []int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, append([]int(nil), items...))
	return f.err
}

func (f *flushRecorder) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.batches {
		n += len(b)
	}
	return n
}

func TestBatcherFlushesFullBatch(t *testing.T) {
	rec := &flushRecorder{}
	b := newBatcher(3, time.Hour, rec.flush, testLogger())
	b.start()
	defer b.close()

	for i := 0; i < 3; i++ {
		b.add(i)
	}

	deadline := time.Now().Add(2 * time.Second)
	for rec.total() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if rec.total() != 3 {
		t.Fatalf("flushed %d items, want 3", rec.total())
	}
	if b.Written() != 3 {
		t.Errorf("Written() = %d, want 3", b.Written())
	}
}

func TestBatcherCloseDrainsQueue(t *testing.T) {
	rec := &flushRecorder{}
	b := newBatcher(100, time.Hour, rec.flush, testLogger())
	b.start()

	for i := 0; i < 10; i++ {
		b.add(i)
	}
	b.close()
	b.close()

	if rec.total() != 10 {
		t.Errorf("flushed %d items after close, want 10", rec.total())
	}
}

func TestBatcherDropsWhenQueueFull(t *testing.T) {
	rec := &flushRecorder{}
	// Not started: nothing consumes the queue.
	b := newBatcher(2, time.Hour, rec.flush, testLogger())
	accepted := 0
	for i := 0; i < 10; i++ {
		if b.add(i) {
			accepted++
		}
	}
	if accepted != 4 {
		t.Errorf("accepted %d, want queue capacity 4", accepted)
	}
	if b.Dropped() != 6 {
		t.Errorf("Dropped() = %d, want 6", b.Dropped())
	}
}

func TestBatcherFailedFlushNotCounted(t *testing.T) {
	rec := &flushRecorder{err: errors.New("unavailable")}
	b := newBatcher(10, time.Hour, rec.flush, testLogger())
	b.start()
	b.add(1)
	b.close()

	if rec.total() != 1 {
		t.Fatalf("flush not attempted")
	}
	if b.Written() != 0 {
		t.Errorf("failed batch counted as written")
	}
}

// ===== Influx =====

type mockPointWriter struct {
	mu     sync.Mutex
	points int
	calls  int
	closed bool
}

func (m *mockPointWriter) WritePoints(_ context.Context, points []*influxdb3.Point, _ ...influxdb3.WriteOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.points += len(points)
	m.calls++
	return nil
}

func (m *mockPointWriter) Close() error {
	m.closed = true
	return nil
}

func TestInfluxSinkWritesOnClose(t *testing.T) {
	w := &mockPointWriter{}
	s := newInfluxSink(w, 50, testLogger())

	s.RecordState(types.VehicleState{SpeedKph: 42, LastUpdate: time.Now()})
	s.RecordEvent(EventRecord{Time: time.Now(), Event: types.EventTurnLeft, MessageID: 0x3F5, Outcome: "applied"})
	s.RecordEvent(EventRecord{Time: time.Now(), Event: types.EventBrakeOn, MessageID: 0x145, Outcome: "ignored"})

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if w.points != 3 {
		t.Errorf("wrote %d points, want 3", w.points)
	}
	if !w.closed {
		t.Errorf("client not closed")
	}
}

// ===== ClickHouse =====

func TestEventRowOrder(t *testing.T) {
	id := uuid.New()
	ts := time.Unix(1700000000, 0)
	row := eventRow(id, &EventRecord{
		Time:      ts,
		Event:     types.EventTurnLeft,
		MessageID: 0x3F5,
		Signal:    1,
		Value:     1,
		ProfileID: 2,
		Outcome:   "applied",
	})
	if len(row) != 8 {
		t.Fatalf("row has %d columns, want 8", len(row))
	}
	if row[0] != id || row[1] != ts || row[2] != "TURN_LEFT" || row[3] != uint32(0x3F5) {
		t.Errorf("row = %v", row)
	}
	if row[4] != int16(1) || row[6] != int8(2) || row[7] != "applied" {
		t.Errorf("row = %v", row)
	}
}

// ===== Multi =====

type mockSink struct {
	states int
	events int
	err    error
}

func (m *mockSink) RecordState(types.VehicleState) { m.states++ }
func (m *mockSink) RecordEvent(EventRecord)        { m.events++ }
func (m *mockSink) Close() error                   { return m.err }

func TestMultiFansOut(t *testing.T) {
	a, b := &mockSink{}, &mockSink{err: errors.New("b failed")}
	m := Multi{a, b}

	m.RecordState(types.VehicleState{})
	m.RecordEvent(EventRecord{})
	m.RecordEvent(EventRecord{})

	if a.states != 1 || b.states != 1 || a.events != 2 || b.events != 2 {
		t.Errorf("a=%+v b=%+v", a, b)
	}
	if err := m.Close(); err == nil {
		t.Errorf("Close should report b's error")
	}
}
