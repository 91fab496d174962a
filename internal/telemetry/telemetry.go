// Package telemetry mirrors vehicle state and fired events into optional
// time series stores. Sinks never block the caller: records are queued and
// written in batches from a background goroutine.
package telemetry

import (
	"errors"
	"time"

	"vehicle-led-service/internal/types"
)

// EventRecord is one fired semantic event and what the arbiter made of it.
type EventRecord struct {
	Time      time.Time
	Event     types.SemanticEvent
	MessageID uint32
	Signal    int
	Value     float64
	ProfileID int
	Outcome   string
}

type Sink interface {
	RecordState(state types.VehicleState)
	RecordEvent(rec EventRecord)
	Close() error
}

// Multi fans records out to every sink.
type Multi []Sink

func (m Multi) RecordState(state types.VehicleState) {
	for _, s := range m {
		s.RecordState(state)
	}
}

func (m Multi) RecordEvent(rec EventRecord) {
	for _, s := range m {
		s.RecordEvent(rec)
	}
}

// Close closes every sink and joins their errors.
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
