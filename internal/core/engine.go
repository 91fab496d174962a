package core

import (
	"fmt"
	"sync/atomic"
	"time"

	"vehicle-led-service/internal/catalog"
	"vehicle-led-service/internal/decoder"
	"vehicle-led-service/internal/logger"
	"vehicle-led-service/internal/trigger"
	"vehicle-led-service/internal/types"
	"vehicle-led-service/internal/vehicle"
)

// FrameResult is everything one frame produced. Released aliases an engine
// buffer and is valid until the next ProcessFrame call.
type FrameResult struct {
	Known    bool
	Changed  bool
	Events   trigger.Events
	Released []types.SemanticEvent
	State    types.VehicleState
}

type EngineStats struct {
	Frames        uint64
	Unknown       uint64
	Events        uint64
	DroppedEvents uint64
	StateChanges  uint64
}

// Engine owns the decode path: the catalog binding, trigger history, the
// working vehicle state and the derived-event adapter. It is not safe for
// concurrent use except for Snapshot, Generation and Stats, which read
// published copies.
type Engine struct {
	cat      *catalog.Catalog
	history  trigger.History
	mapper   *vehicle.Mapper
	derived  *vehicle.Derived
	state    types.VehicleState
	store    *vehicle.Store
	released []types.SemanticEvent
	scratch  trigger.Events
	logger   *logger.Logger
	dropLog  *logger.Throttled

	frames        atomic.Uint64
	unknown       atomic.Uint64
	events        atomic.Uint64
	droppedEvents atomic.Uint64
	changes       atomic.Uint64
}

// NewEngine validates cat and binds the mapper to it. Shared history slots
// are logged, not rejected.
func NewEngine(cat *catalog.Catalog, l *logger.Logger) (*Engine, error) {
	if err := cat.Validate(); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}

	e := &Engine{
		cat:      cat,
		mapper:   vehicle.NewMapper(cat),
		derived:  vehicle.NewDerived(),
		store:    vehicle.NewStore(),
		released: make([]types.SemanticEvent, 0, vehicle.ReleaseCount()+trigger.MaxEvents),
		logger:   l,
		dropLog:  l.Throttled(time.Second),
	}

	for _, a := range trigger.Aliases(cat, e.derived.Message()) {
		l.Warnf("History slot %02X/%d shared by 0x%03X %s and 0x%03X %s",
			a.Slot.Message, a.Slot.Signal, a.A.MessageID, a.A.Name, a.B.MessageID, a.B.Name)
	}
	l.Infof("Catalog: %d messages, %d state rules bound", len(cat.Messages), e.mapper.Bound())

	e.prime()
	return e, nil
}

// prime records the current state as the derived baseline so the first
// change after start or reset raises its edges.
func (e *Engine) prime() {
	e.scratch.Reset()
	e.derived.Evaluate(&e.history, &e.state, &e.scratch)
}

// ProcessFrame decodes f, evaluates triggers on every decoded signal and
// folds the values into the vehicle state. When the state changed, the
// derived signals are evaluated, released conditions are collected and a
// new snapshot is published. Fired events that end another event (BRAKE_OFF
// ends BRAKE_ON) add it to Released.
func (e *Engine) ProcessFrame(f *types.Frame) FrameResult {
	var res FrameResult
	e.frames.Add(1)

	dec := decoder.Decode(e.cat, f)
	if !dec.Known() {
		e.unknown.Add(1)
		res.State = e.state
		return res
	}
	res.Known = true
	res.Released = e.released[:0]

	msg := &e.cat.Messages[dec.Message]
	prev := e.state
	for i := 0; i < dec.Len(); i++ {
		v := dec.At(i)
		trigger.Evaluate(&e.history, msg.ID, v.Index, &msg.Signals[v.Index], v.Value, v.Raw, &res.Events)
		if e.mapper.Apply(&e.state, dec.Message, v.Index, v.Value) {
			res.Changed = true
		}
	}

	if res.Changed {
		e.mapper.Touch(&e.state, f.Timestamp)
		e.derived.Evaluate(&e.history, &e.state, &res.Events)
		res.Released = vehicle.Released(&prev, &e.state, res.Released)
		e.store.Publish(e.state)
		e.changes.Add(1)
	}

	for i := 0; i < res.Events.Len(); i++ {
		res.Released = vehicle.AppendEnded(res.Released, res.Events.At(i).Event)
	}
	e.released = res.Released[:0]

	e.events.Add(uint64(res.Events.Len()))
	if d := res.Events.Dropped(); d > 0 {
		e.droppedEvents.Add(uint64(d))
		e.dropLog.Warnf("0x%03X raised more than %d events, dropped %d", f.ID, trigger.MaxEvents, d)
	}
	res.State = e.state
	return res
}

// Reset forgets trigger history and the derived baseline. The vehicle
// state itself is kept.
func (e *Engine) Reset() {
	e.history.Reset()
	e.derived.Reset()
	e.prime()
	e.logger.Infof("Trigger history reset")
}

// MessageIDs lists the catalog ids, for receive filters.
func (e *Engine) MessageIDs() []uint32 {
	ids := make([]uint32, len(e.cat.Messages))
	for i := range e.cat.Messages {
		ids[i] = e.cat.Messages[i].ID
	}
	return ids
}

func (e *Engine) State() types.VehicleState { return e.state }

func (e *Engine) Snapshot() types.VehicleState { return e.store.Snapshot() }

func (e *Engine) Generation() uint64 { return e.store.Generation() }

func (e *Engine) Stats() EngineStats {
	return EngineStats{
		Frames:        e.frames.Load(),
		Unknown:       e.unknown.Load(),
		Events:        e.events.Load(),
		DroppedEvents: e.droppedEvents.Load(),
		StateChanges:  e.changes.Load(),
	}
}
