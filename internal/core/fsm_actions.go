package core

import (
	"context"

	"github.com/librescoot/librefsm"

	"vehicle-led-service/internal/arbiter"
	"vehicle-led-service/internal/fsm"
	"vehicle-led-service/internal/hardware"
	"vehicle-led-service/internal/profile"
	"vehicle-led-service/internal/types"
)

// Ensure LightingSystem implements fsm.Actions
var _ fsm.Actions = (*LightingSystem)(nil)

// stateIDToServiceState maps leaf states to the published service state.
// The online parent has no published form.
func stateIDToServiceState(id librefsm.StateID) (types.ServiceState, bool) {
	switch id {
	case fsm.StateInit:
		return types.StateInit, true
	case fsm.StateWaitingBus:
		return types.StateWaitingBus, true
	case fsm.StateRunning:
		return types.StateRunning, true
	case fsm.StateBusIdle:
		return types.StateBusIdle, true
	case fsm.StateShuttingDown:
		return types.StateShuttingDown, true
	default:
		return "", false
	}
}

// initFSM initializes and starts the librefsm machine
func (s *LightingSystem) initFSM(ctx context.Context) error {
	def := fsm.NewDefinition(s, s.cfg.BusSleepTimeout)
	machine, err := def.Build()
	if err != nil {
		return err
	}

	machine.OnStateChange(func(from, to librefsm.StateID) {
		newState, ok := stateIDToServiceState(to)
		if !ok {
			return
		}

		s.mu.Lock()
		oldState := s.state
		s.state = newState
		s.mu.Unlock()

		s.logger.Infof("State transition: %s -> %s", oldState, newState)

		// Publish the known new state; asking the machine here would
		// deadlock on its mutex.
		if err := s.redis.PublishServiceState(newState); err != nil {
			s.logger.Errorf("Failed to publish state: %v", err)
		}
	})
	s.machine = machine

	if err := s.machine.Start(ctx); err != nil {
		return err
	}

	s.logger.Infof("librefsm state machine started")
	return nil
}

// sendEvent sends an event to the FSM
func (s *LightingSystem) sendEvent(event librefsm.EventID) error {
	return s.machine.SendSync(librefsm.Event{ID: event})
}

func (s *LightingSystem) currentStateID() librefsm.StateID {
	if s.machine == nil {
		return fsm.StateInit
	}
	return s.machine.CurrentState()
}

// === State Entry Actions ===

func (s *LightingSystem) EnterWaitingBus(c *librefsm.Context) error {
	s.logger.Infof("FSM: EnterWaitingBus - waiting for CAN traffic")
	return nil
}

func (s *LightingSystem) EnterRunning(c *librefsm.Context) error {
	s.logger.Debugf("FSM: EnterRunning")
	return nil
}

func (s *LightingSystem) EnterBusIdle(c *librefsm.Context) error {
	s.logger.Infof("FSM: EnterBusIdle - no frames for %s", s.cfg.BusIdleTimeout)
	// Nothing will release held overrides while the bus is quiet.
	if n := s.arbiter.StopAll(); n > 0 {
		s.logger.Infof("Stopped %d overrides", n)
	}
	return nil
}

func (s *LightingSystem) EnterShuttingDown(c *librefsm.Context) error {
	s.logger.Debugf("FSM: EnterShuttingDown")

	s.arbiter.StopAll()

	off := arbiter.Resolution{Effect: types.Off, ProfileID: s.profiles.ActiveID()}
	s.mu.Lock()
	s.last = off
	s.published = true
	s.mu.Unlock()
	if err := s.redis.PublishEffect(off); err != nil {
		s.logger.Warnf("Failed to publish final effect: %v", err)
	}
	s.setLEDPower(false)

	for _, r := range s.readers {
		if name, ok := hardware.StandbyOutput(r.Bus()); ok {
			if err := s.setOutput(name, true); err != nil {
				s.logger.Warnf("%v", err)
			}
		}
	}
	return nil
}

// === Online Parent State ===

func (s *LightingSystem) EnterOnline(c *librefsm.Context) error {
	s.logger.Infof("FSM: EnterOnline - bus active")
	s.mu.Lock()
	s.forceState = true
	s.mu.Unlock()
	return nil
}

func (s *LightingSystem) ExitOnline(c *librefsm.Context) error {
	st := s.engine.Stats()
	s.logger.Infof("FSM: ExitOnline - %d frames, %d events so far", st.Frames, st.Events)
	for _, r := range s.readers {
		if d := r.Dropped(); d > 0 {
			s.logger.Warnf("%s dropped %d frames", r.Interface(), d)
		}
	}
	return nil
}

// === Guards ===

func (s *LightingSystem) HasProfile(c *librefsm.Context) bool {
	return s.profiles.ActiveID() != profile.NoProfile
}

// === Transition Actions ===

func (s *LightingSystem) OnBusSleep(c *librefsm.Context) error {
	s.logger.Infof("FSM: Bus asleep - history will restart on the next frame")
	// The engine belongs to the frame goroutine; it resets before its next
	// frame.
	s.resetPending.Store(true)
	return nil
}
