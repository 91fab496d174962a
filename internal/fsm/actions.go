package fsm

import "github.com/librescoot/librefsm"

// Actions defines the callbacks of the lifecycle machine. LightingSystem
// implements this interface.
type Actions interface {
	// State entry actions
	EnterWaitingBus(c *librefsm.Context) error
	EnterRunning(c *librefsm.Context) error
	EnterBusIdle(c *librefsm.Context) error
	EnterShuttingDown(c *librefsm.Context) error

	// Online parent state
	EnterOnline(c *librefsm.Context) error
	ExitOnline(c *librefsm.Context) error

	// Guards
	HasProfile(c *librefsm.Context) bool

	// Transition actions
	OnBusSleep(c *librefsm.Context) error
}
