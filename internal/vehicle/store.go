package vehicle

import (
	"sync/atomic"

	"vehicle-led-service/internal/types"
)

// Store publishes immutable VehicleState snapshots. One goroutine publishes,
// any number read.
type Store struct {
	current    atomic.Pointer[types.VehicleState]
	generation atomic.Uint64
}

func NewStore() *Store {
	s := &Store{}
	s.current.Store(&types.VehicleState{})
	return s
}

// Publish replaces the snapshot with a copy of st.
func (s *Store) Publish(st types.VehicleState) {
	s.current.Store(&st)
	s.generation.Add(1)
}

// Snapshot returns a copy of the latest published state.
func (s *Store) Snapshot() types.VehicleState {
	return *s.current.Load()
}

// Generation increments on every Publish. Readers use it to skip unchanged
// snapshots.
func (s *Store) Generation() uint64 {
	return s.generation.Load()
}
