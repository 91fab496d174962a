package core

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/librescoot/librefsm"

	"vehicle-led-service/internal/arbiter"
	"vehicle-led-service/internal/config"
	"vehicle-led-service/internal/fsm"
	"vehicle-led-service/internal/hardware"
	"vehicle-led-service/internal/logger"
	"vehicle-led-service/internal/messaging"
	"vehicle-led-service/internal/profile"
	"vehicle-led-service/internal/telemetry"
	"vehicle-led-service/internal/types"
)

// stateMachine is the part of the librefsm machine the system drives.
type stateMachine interface {
	Start(ctx context.Context) error
	SendSync(ev librefsm.Event) error
	CurrentState() librefsm.StateID
}

// LightingSystem wires CAN input, the engine, the arbiter and the redis
// surface together and runs the lifecycle machine.
type LightingSystem struct {
	cfg      config.Config
	engine   *Engine
	profiles *profile.Store
	arbiter  *arbiter.Manager
	io       HardwareIO // nil when GPIO is disabled
	redis    MessagingClient
	sink     telemetry.Sink // nil when telemetry is disabled
	openCAN  CANOpener
	logger   *logger.Logger
	machine  stateMachine

	readers []CANSource
	frames  chan types.Frame

	// Written by the engine goroutine, read by the sweep loop.
	lastFrame    atomic.Int64
	resetPending atomic.Bool

	mu               sync.Mutex
	state            types.ServiceState
	last             arbiter.Resolution
	published        bool
	ledPower         bool
	lastStatePublish time.Time
	lastGeneration   uint64
	forceState       bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewLightingSystem(cfg config.Config, engine *Engine, io HardwareIO, redis MessagingClient, sink telemetry.Sink, l *logger.Logger) *LightingSystem {
	ctx, cancel := context.WithCancel(context.Background())
	profiles := profile.NewStore(redis, l.WithTag("Profiles"))
	s := &LightingSystem{
		cfg:      cfg,
		engine:   engine,
		profiles: profiles,
		arbiter:  arbiter.NewManager(profiles, l.WithTag("Arbiter")),
		io:       io,
		redis:    redis,
		sink:     sink,
		logger:   l,
		frames:   make(chan types.Frame, cfg.FrameBuffer),
		state:    types.StateInit,
		ctx:      ctx,
		cancel:   cancel,
	}
	s.openCAN = func(ifname string, bus uint8) (CANSource, error) {
		return hardware.OpenCAN(ifname, bus, l.WithTag(fmt.Sprintf("CAN%d", bus)))
	}
	return s
}

// SetCANOpener replaces the SocketCAN opener. It must be called before Start.
func (s *LightingSystem) SetCANOpener(open CANOpener) {
	s.openCAN = open
}

func (s *LightingSystem) Start() error {
	s.logger.Infof("Starting lighting system")

	s.redis.SetCallbacks(messaging.Callbacks{
		ProfileCallback:        s.handleProfileCommand,
		EventCallback:          s.handleEventCommand,
		ImportCallback:         s.handleImport,
		ExportCallback:         s.handleExport,
		ProfileUpdatedCallback: s.handleProfileUpdated,
	})

	if err := s.redis.Connect(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if err := s.profiles.LoadPersisted(); err != nil {
		return fmt.Errorf("failed to load profiles: %w", err)
	}

	if s.io != nil {
		// LED supply off until something resolves; transceivers active so
		// traffic can wake the service.
		s.io.SetInitialValue(hardware.OutputLEDPower, false)
		for bus := range s.cfg.Interfaces() {
			if name, ok := hardware.StandbyOutput(uint8(bus)); ok {
				s.io.SetInitialValue(name, false)
			}
		}
		if err := s.io.Initialize(); err != nil {
			return fmt.Errorf("failed to initialize hardware: %w", err)
		}
	}

	if err := s.initFSM(s.ctx); err != nil {
		return fmt.Errorf("failed to initialize state machine: %w", err)
	}

	if err := s.openReaders(); err != nil {
		s.cancel()
		return err
	}

	if err := s.redis.StartListening(); err != nil {
		s.cancel()
		return fmt.Errorf("failed to start Redis listeners: %w", err)
	}

	s.wg.Add(2)
	go s.frameLoop()
	go s.sweepLoop()

	if err := s.sendEvent(fsm.EvStart); err != nil {
		return fmt.Errorf("failed to start state machine: %w", err)
	}

	s.logger.Infof("Lighting system started with profile %d", s.profiles.ActiveID())
	return nil
}

func (s *LightingSystem) openReaders() error {
	ifaces := s.cfg.Interfaces()
	if len(ifaces) == 0 {
		s.logger.Warnf("No CAN interfaces configured, only redis commands will raise events")
		return nil
	}

	var ids []uint32
	if s.cfg.CANFilter {
		ids = s.engine.MessageIDs()
	}

	for bus, ifname := range ifaces {
		r, err := s.openCAN(ifname, uint8(bus))
		if err != nil {
			s.logger.Errorf("Failed to open %s: %v", ifname, err)
			continue
		}
		if err := r.SetFilter(ids); err != nil {
			s.logger.Warnf("Receiving all ids on %s: %v", ifname, err)
		}
		s.readers = append(s.readers, r)
	}

	if len(s.readers) == 0 {
		return fmt.Errorf("failed to open any of the CAN interfaces %v", ifaces)
	}
	for _, r := range s.readers {
		r.Start(s.frames)
	}
	return nil
}

// frameLoop is the only goroutine that touches the engine.
func (s *LightingSystem) frameLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case f := <-s.frames:
			s.handleFrame(&f)
		}
	}
}

func (s *LightingSystem) handleFrame(f *types.Frame) {
	if s.resetPending.Swap(false) {
		s.engine.Reset()
	}

	now := f.Timestamp
	if now.IsZero() {
		now = time.Now()
	}
	s.lastFrame.Store(now.UnixNano())

	res := s.engine.ProcessFrame(f)
	if !res.Known {
		return
	}

	for _, ev := range res.Released {
		if s.arbiter.Stop(ev) {
			s.logger.Debugf("%s released", ev)
		}
	}

	for i := 0; i < res.Events.Len(); i++ {
		fired := res.Events.At(i)
		outcome, err := s.arbiter.HandleEvent(fired.Event, now)
		if err != nil {
			s.logger.Warnf("Failed to handle %s: %v", fired.Event, err)
		} else if outcome != arbiter.Ignored && s.logger.Enabled(logger.LogLevelDebug) {
			s.logger.Debugf("%s from 0x%03X: %s", fired.Event, fired.MessageID, outcome)
		}

		if err := s.redis.PublishEvent(fired, now); err != nil {
			s.logger.Warnf("Failed to publish event %s: %v", fired.Event, err)
		}
		if s.sink != nil {
			s.sink.RecordEvent(telemetry.EventRecord{
				Time:      now,
				Event:     fired.Event,
				MessageID: fired.MessageID,
				Signal:    fired.Signal,
				Value:     fired.Value,
				ProfileID: s.profiles.ActiveID(),
				Outcome:   outcome.String(),
			})
		}
	}
}

func (s *LightingSystem) sweepLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case now := <-ticker.C:
			s.tick(now)
		}
	}
}

// tick runs one pass of the slow task: expiry, resolution, output, state
// mirroring and the bus watchdog.
func (s *LightingSystem) tick(now time.Time) {
	if s.currentStateID() == fsm.StateShuttingDown {
		return
	}
	if n := s.arbiter.Sweep(now); n > 0 {
		s.logger.Debugf("Expired %d overrides", n)
	}

	state := s.engine.Snapshot()
	s.applyResolution(s.arbiter.Resolve(now, &state))
	s.mirrorState(now, state)
	s.checkBus(now)
}

// applyResolution publishes res and drives the LED supply when it differs
// from what was last rendered.
func (s *LightingSystem) applyResolution(res arbiter.Resolution) {
	s.mu.Lock()
	if s.published && res.Same(s.last) {
		s.mu.Unlock()
		return
	}
	s.last = res
	s.published = true
	s.mu.Unlock()

	if res.Event == types.EventNone {
		s.logger.Infof("Effect %s (profile %d default)", res.Effect.Effect, res.ProfileID)
	} else {
		s.logger.Infof("Effect %s for %s (priority %d, profile %d)", res.Effect.Effect, res.Event, res.Priority, res.ProfileID)
	}

	if err := s.redis.PublishEffect(res); err != nil {
		s.logger.Errorf("Failed to publish effect: %v", err)
	}

	on := res.Effect.Effect != types.EffectOff ||
		(res.Companion != nil && res.Companion.Effect != types.EffectOff)
	s.setLEDPower(on)
}

func (s *LightingSystem) setLEDPower(on bool) {
	s.mu.Lock()
	if s.ledPower == on {
		s.mu.Unlock()
		return
	}
	s.ledPower = on
	s.mu.Unlock()

	if err := s.setOutput(hardware.OutputLEDPower, on); err != nil {
		s.logger.Errorf("%v", err)
	}
}

func (s *LightingSystem) setOutput(name string, value bool) error {
	if s.io == nil {
		return nil
	}
	if err := s.io.WriteDigitalOutput(name, value); err != nil {
		return fmt.Errorf("failed to set %s to %v: %w", name, value, err)
	}
	return nil
}

// mirrorState publishes the vehicle state when it changed, at most once per
// StatePublishInterval.
func (s *LightingSystem) mirrorState(now time.Time, state types.VehicleState) {
	gen := s.engine.Generation()

	s.mu.Lock()
	due := s.forceState ||
		(gen != s.lastGeneration && now.Sub(s.lastStatePublish) >= s.cfg.StatePublishInterval)
	if !due {
		s.mu.Unlock()
		return
	}
	s.forceState = false
	s.lastGeneration = gen
	s.lastStatePublish = now
	s.mu.Unlock()

	if err := s.redis.PublishVehicleState(state); err != nil {
		s.logger.Warnf("Failed to publish vehicle state: %v", err)
	}
	if s.sink != nil {
		s.sink.RecordState(state)
	}
}

// checkBus turns frame arrival into bus-active and bus-silent events.
func (s *LightingSystem) checkBus(now time.Time) {
	last := s.lastFrame.Load()
	active := last != 0 && now.Sub(time.Unix(0, last)) < s.cfg.BusIdleTimeout

	switch s.currentStateID() {
	case fsm.StateWaitingBus, fsm.StateBusIdle:
		if active {
			if err := s.sendEvent(fsm.EvBusActive); err != nil {
				s.logger.Debugf("bus-active rejected: %v", err)
			}
		}
	case fsm.StateRunning:
		if !active {
			if err := s.sendEvent(fsm.EvBusSilent); err != nil {
				s.logger.Debugf("bus-silent rejected: %v", err)
			}
		}
	}
}

// State returns the last published service state.
func (s *LightingSystem) State() types.ServiceState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *LightingSystem) Profiles() *profile.Store { return s.profiles }

func (s *LightingSystem) Arbiter() *arbiter.Manager { return s.arbiter }

func (s *LightingSystem) Shutdown() {
	s.logger.Infof("Shutting down lighting system")

	if s.machine != nil {
		if err := s.sendEvent(fsm.EvShutdown); err != nil {
			s.logger.Warnf("Failed to enter shutting-down: %v", err)
		}
	}

	s.cancel()
	for _, r := range s.readers {
		if err := r.Close(); err != nil {
			s.logger.Warnf("Failed to close %s: %v", r.Interface(), err)
		}
	}
	s.wg.Wait()

	if s.io != nil {
		s.io.Cleanup()
	}
	if s.sink != nil {
		if err := s.sink.Close(); err != nil {
			s.logger.Warnf("Failed to flush telemetry: %v", err)
		}
	}
	if err := s.redis.Close(); err != nil {
		s.logger.Warnf("Failed to close Redis client: %v", err)
	}

	st := s.engine.Stats()
	s.logger.Infof("Processed %d frames (%d unknown), %d events, %d state changes",
		st.Frames, st.Unknown, st.Events, st.StateChanges)
}
