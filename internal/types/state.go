package types

// ServiceState is the lifecycle state published to redis.
type ServiceState string

const (
	StateInit         ServiceState = "init"
	StateWaitingBus   ServiceState = "waiting-bus"
	StateRunning      ServiceState = "running"
	StateBusIdle      ServiceState = "bus-idle"
	StateShuttingDown ServiceState = "shutting-down"
)
