package fsm

import (
	"time"

	"github.com/librescoot/librefsm"
)

// DefaultBusSleepTimeout is how long the bus may stay idle before the
// service returns to waiting-bus and releases the transceivers.
const DefaultBusSleepTimeout = 10 * time.Minute

// NewDefinition creates the service lifecycle definition.
//
//	init -> waiting-bus -> online{running <-> bus-idle} -> shutting-down
func NewDefinition(actions Actions, busSleep time.Duration) *librefsm.Definition {
	if busSleep <= 0 {
		busSleep = DefaultBusSleepTimeout
	}
	return librefsm.NewDefinition().
		State(StateInit).
		State(StateWaitingBus,
			librefsm.WithOnEnter(actions.EnterWaitingBus),
		).
		State(StateShuttingDown,
			librefsm.WithOnEnter(actions.EnterShuttingDown),
		).

		// Online parent state: the bus has carried traffic since waiting-bus
		State(StateOnline,
			librefsm.WithOnEnter(actions.EnterOnline),
			librefsm.WithOnExit(actions.ExitOnline),
		).
		State(StateRunning,
			librefsm.WithParent(StateOnline),
			librefsm.WithOnEnter(actions.EnterRunning),
		).
		State(StateBusIdle,
			librefsm.WithParent(StateOnline),
			librefsm.WithTimeout(busSleep, EvBusSleep),
			librefsm.WithOnEnter(actions.EnterBusIdle),
		).

		// === Transitions ===

		Transition(StateInit, EvStart, StateWaitingBus).
		Transition(StateInit, EvShutdown, StateShuttingDown).

		// Traffic only counts once a profile can render it
		Transition(StateWaitingBus, EvBusActive, StateRunning,
			librefsm.WithGuard(actions.HasProfile),
		).
		Transition(StateWaitingBus, EvShutdown, StateShuttingDown).

		Transition(StateRunning, EvBusSilent, StateBusIdle).
		Transition(StateBusIdle, EvBusActive, StateRunning).
		Transition(StateBusIdle, EvBusSleep, StateWaitingBus,
			librefsm.WithAction(actions.OnBusSleep),
		).

		Transition(StateOnline, EvShutdown, StateShuttingDown).

		Initial(StateInit)
}
