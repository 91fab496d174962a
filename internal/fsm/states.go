package fsm

import "github.com/librescoot/librefsm"

// Service lifecycle states. Leaf ids match types.ServiceState.
const (
	StateInit         librefsm.StateID = "init"
	StateWaitingBus   librefsm.StateID = "waiting-bus"
	StateShuttingDown librefsm.StateID = "shutting-down"

	// Online parent state and substates (hierarchical)
	StateOnline  librefsm.StateID = "online"
	StateRunning librefsm.StateID = "running"
	StateBusIdle librefsm.StateID = "bus-idle"
)

// Lifecycle events
const (
	EvStart     librefsm.EventID = "start"
	EvShutdown  librefsm.EventID = "shutdown"
	EvBusActive librefsm.EventID = "bus-active"
	EvBusSilent librefsm.EventID = "bus-silent"
	EvBusSleep  librefsm.EventID = "bus-sleep"
)
