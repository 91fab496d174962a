package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/librescoot/librefsm"

	"vehicle-led-service/internal/arbiter"
	"vehicle-led-service/internal/config"
	"vehicle-led-service/internal/fsm"
	"vehicle-led-service/internal/hardware"
	"vehicle-led-service/internal/messaging"
	"vehicle-led-service/internal/profile"
	"vehicle-led-service/internal/telemetry"
	"vehicle-led-service/internal/trigger"
	"vehicle-led-service/internal/types"
)

// Mock MessagingClient
type mockMessagingClient struct {
	mu        sync.Mutex
	callbacks messaging.Callbacks

	// Track method calls
	effects       []arbiter.Resolution
	vehicleStates []types.VehicleState
	serviceStates []types.ServiceState
	events        []trigger.Fired
	exports       map[int][]byte

	// Persistence backing
	docs   map[int][]byte
	active int

	connectErr error
}

func newMockMessagingClient() *mockMessagingClient {
	return &mockMessagingClient{
		exports: make(map[int][]byte),
		docs:    make(map[int][]byte),
		active:  profile.NoProfile,
	}
}

func (m *mockMessagingClient) SetCallbacks(callbacks messaging.Callbacks) { m.callbacks = callbacks }
func (m *mockMessagingClient) Connect() error                            { return m.connectErr }
func (m *mockMessagingClient) StartListening() error                     { return nil }
func (m *mockMessagingClient) Close() error                              { return nil }

func (m *mockMessagingClient) PublishEffect(res arbiter.Resolution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.effects = append(m.effects, res)
	return nil
}

func (m *mockMessagingClient) PublishVehicleState(state types.VehicleState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vehicleStates = append(m.vehicleStates, state)
	return nil
}

func (m *mockMessagingClient) PublishServiceState(state types.ServiceState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.serviceStates = append(m.serviceStates, state)
	return nil
}

func (m *mockMessagingClient) PublishEvent(ev trigger.Fired, ts time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *mockMessagingClient) WriteExport(id int, doc []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exports[id] = doc
	return nil
}

func (m *mockMessagingClient) SaveProfile(id int, doc []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[id] = doc
	return nil
}

func (m *mockMessagingClient) DeleteProfile(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, id)
	return nil
}

func (m *mockMessagingClient) LoadProfile(id int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", messaging.ErrNoProfile, id)
	}
	return doc, nil
}

func (m *mockMessagingClient) LoadProfiles() (map[int][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int][]byte, len(m.docs))
	for id, doc := range m.docs {
		out[id] = doc
	}
	return out, nil
}

func (m *mockMessagingClient) SaveActiveProfile(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = id
	return nil
}

func (m *mockMessagingClient) LoadActiveProfile() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active, nil
}

func (m *mockMessagingClient) lastEffect() (arbiter.Resolution, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.effects) == 0 {
		return arbiter.Resolution{}, false
	}
	return m.effects[len(m.effects)-1], true
}

func (m *mockMessagingClient) sawEffect(ev types.SemanticEvent) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.effects {
		if r.Event == ev {
			return true
		}
	}
	return false
}

func (m *mockMessagingClient) sawServiceState(st types.ServiceState) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.serviceStates {
		if s == st {
			return true
		}
	}
	return false
}

func (m *mockMessagingClient) docCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs)
}

func (m *mockMessagingClient) eventCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func (m *mockMessagingClient) vehicleStateCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.vehicleStates)
}

// Mock HardwareIO
type mockHardwareIO struct {
	mu             sync.Mutex
	digitalOutputs map[string]bool
	initialValues  map[string]bool
	initialized    bool
	cleaned        bool
}

func newMockHardwareIO() *mockHardwareIO {
	return &mockHardwareIO{
		digitalOutputs: make(map[string]bool),
		initialValues:  make(map[string]bool),
	}
}

func (m *mockHardwareIO) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initialized = true
	return nil
}

func (m *mockHardwareIO) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleaned = true
}

func (m *mockHardwareIO) WriteDigitalOutput(channel string, value bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.digitalOutputs[channel] = value
	return nil
}

func (m *mockHardwareIO) SetInitialValue(name string, value bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initialValues[name] = value
}

func (m *mockHardwareIO) output(name string) (bool, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.digitalOutputs[name]
	return v, ok
}

// Mock CAN source
type mockCAN struct {
	mu     sync.Mutex
	name   string
	bus    uint8
	out    chan<- types.Frame
	filter []uint32
	closed bool
}

func (m *mockCAN) Interface() string { return m.name }
func (m *mockCAN) Bus() uint8        { return m.bus }
func (m *mockCAN) Dropped() uint64   { return 0 }

func (m *mockCAN) SetFilter(ids []uint32) error {
	m.filter = ids
	return nil
}

func (m *mockCAN) Start(out chan<- types.Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.out = out
}

func (m *mockCAN) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockCAN) send(f types.Frame) {
	m.mu.Lock()
	out := m.out
	m.mu.Unlock()
	out <- f
}

// Mock telemetry sink
type mockSink struct {
	mu     sync.Mutex
	states int
	events []telemetry.EventRecord
	closed bool
}

func (m *mockSink) RecordState(types.VehicleState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states++
}

func (m *mockSink) RecordEvent(rec telemetry.EventRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, rec)
}

func (m *mockSink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Test helpers

func testConfig() config.Config {
	c := config.Default()
	c.CANInterfaces = ""
	c.FrameBuffer = 16
	c.SweepInterval = 5 * time.Millisecond
	c.StatePublishInterval = 0
	c.BusIdleTimeout = 150 * time.Millisecond
	c.BusSleepTimeout = time.Hour
	return c
}

func newTestLightingSystem(t *testing.T) (*LightingSystem, *mockHardwareIO, *mockMessagingClient) {
	t.Helper()
	return newTestLightingSystemWithConfig(t, testConfig())
}

func newTestLightingSystemWithConfig(t *testing.T, cfg config.Config) (*LightingSystem, *mockHardwareIO, *mockMessagingClient) {
	t.Helper()
	mockIO := newMockHardwareIO()
	mockRedis := newMockMessagingClient()
	system := NewLightingSystem(cfg, newTestEngine(t), mockIO, mockRedis, nil, testLogger())
	return system, mockIO, mockRedis
}

// withProfiles factory resets the store, leaving Default (0, active) and Off (1).
func withProfiles(t *testing.T, s *LightingSystem) {
	t.Helper()
	if err := s.profiles.FactoryReset(); err != nil {
		t.Fatalf("FactoryReset failed: %v", err)
	}
}

// initTestFSM initializes the FSM for a test system
func initTestFSM(t *testing.T, system *LightingSystem) {
	t.Helper()
	if err := system.initFSM(context.Background()); err != nil {
		t.Fatalf("Failed to initialize FSM: %v", err)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// ===== Basic Construction Tests =====

func TestNewLightingSystem(t *testing.T) {
	system, mockIO, mockRedis := newTestLightingSystem(t)

	if system == nil {
		t.Fatal("NewLightingSystem returned nil")
	}
	if system.io != mockIO {
		t.Error("io not set correctly")
	}
	if system.redis != mockRedis {
		t.Error("redis not set correctly")
	}
	if system.State() != types.StateInit {
		t.Errorf("Expected initial state init, got %v", system.State())
	}
	if system.profiles.ActiveID() != profile.NoProfile {
		t.Errorf("store should start empty")
	}
}

func TestStateIDToServiceState(t *testing.T) {
	cases := map[librefsm.StateID]types.ServiceState{
		fsm.StateInit:         types.StateInit,
		fsm.StateWaitingBus:   types.StateWaitingBus,
		fsm.StateRunning:      types.StateRunning,
		fsm.StateBusIdle:      types.StateBusIdle,
		fsm.StateShuttingDown: types.StateShuttingDown,
	}
	for id, want := range cases {
		got, ok := stateIDToServiceState(id)
		if !ok || got != want {
			t.Errorf("stateIDToServiceState(%s) = %s, %v", id, got, ok)
		}
	}
	if _, ok := stateIDToServiceState(fsm.StateOnline); ok {
		t.Error("online parent should not be published")
	}
}

// ===== Startup and lifecycle =====

func TestStartFailsWithoutRedis(t *testing.T) {
	system, _, mockRedis := newTestLightingSystem(t)
	mockRedis.connectErr = errors.New("connection refused")
	if err := system.Start(); err == nil {
		t.Fatal("Start should fail when Redis is unreachable")
	}
}

func TestStartFailsWhenNoCANOpens(t *testing.T) {
	cfg := testConfig()
	cfg.CANInterfaces = "vcan0"
	system, _, _ := newTestLightingSystemWithConfig(t, cfg)
	system.SetCANOpener(func(string, uint8) (CANSource, error) {
		return nil, errors.New("no such device")
	})
	if err := system.Start(); err == nil {
		system.Shutdown()
		t.Fatal("Start should fail when no CAN interface opens")
	}
}

func TestStartCreatesDefaultsAndWaitsForBus(t *testing.T) {
	system, mockIO, mockRedis := newTestLightingSystem(t)
	if err := system.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer system.Shutdown()

	if got := len(system.profiles.List()); got != 2 {
		t.Errorf("expected Default and Off after first start, got %d profiles", got)
	}
	if n := mockRedis.docCount(); n != 2 {
		t.Errorf("defaults not persisted: %d docs", n)
	}
	if !mockIO.initialized {
		t.Error("hardware not initialized")
	}

	waitFor(t, "waiting-bus", func() bool { return system.State() == types.StateWaitingBus })
	if !mockRedis.sawServiceState(types.StateWaitingBus) {
		t.Error("waiting-bus not published")
	}

	// No frames yet: the default effect is rendered and the strip is powered.
	waitFor(t, "default effect", func() bool {
		res, ok := mockRedis.lastEffect()
		return ok && res.Event == types.EventNone && res.Effect.Effect == types.EffectScan
	})
	waitFor(t, "led power", func() bool {
		on, _ := mockIO.output(hardware.OutputLEDPower)
		return on
	})
}

func TestStartRestoresPersistedProfiles(t *testing.T) {
	system, _, mockRedis := newTestLightingSystem(t)

	p := profile.NewOff("Night")
	doc, err := profile.Marshal(&p)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	mockRedis.docs[3] = doc
	mockRedis.active = 3

	if err := system.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer system.Shutdown()

	if system.profiles.ActiveID() != 3 {
		t.Errorf("active = %d, want 3", system.profiles.ActiveID())
	}
}

// ===== Frame path =====

func TestFrameDrivesEffectAndRelease(t *testing.T) {
	cfg := testConfig()
	cfg.CANInterfaces = "vcan0"
	system, mockIO, mockRedis := newTestLightingSystemWithConfig(t, cfg)
	sink := &mockSink{}
	system.sink = sink

	can := &mockCAN{name: "vcan0"}
	system.SetCANOpener(func(ifname string, bus uint8) (CANSource, error) {
		can.name, can.bus = ifname, bus
		return can, nil
	})

	if err := system.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer system.Shutdown()

	if len(can.filter) != len(system.engine.MessageIDs()) {
		t.Errorf("filter has %d ids", len(can.filter))
	}

	can.send(*frame(0x3F5, time.Now(), 0x02))

	waitFor(t, "turn signal effect", func() bool { return mockRedis.sawEffect(types.EventTurnLeft) })
	waitFor(t, "running", func() bool { return system.State() == types.StateRunning })

	if mockRedis.eventCount() == 0 {
		t.Error("fired event not published to the stream")
	}
	sink.mu.Lock()
	if len(sink.events) == 0 || sink.events[0].Event != types.EventTurnLeft || sink.events[0].Outcome != "applied" {
		t.Errorf("telemetry events = %+v", sink.events)
	}
	sink.mu.Unlock()
	if on, _ := mockIO.output(hardware.OutputLEDPower); !on {
		t.Error("led power should be on")
	}

	can.send(*frame(0x3F5, time.Now(), 0x00))

	waitFor(t, "fallback to default", func() bool {
		res, ok := mockRedis.lastEffect()
		return ok && res.Event == types.EventNone
	})
	if system.arbiter.HasActive(time.Now()) {
		t.Error("released indicator left an override behind")
	}
	if mockRedis.vehicleStateCount() == 0 {
		t.Error("vehicle state not mirrored")
	}
}

func TestBusSilenceStopsOverrides(t *testing.T) {
	cfg := testConfig()
	cfg.CANInterfaces = "vcan0"
	system, _, _ := newTestLightingSystemWithConfig(t, cfg)
	can := &mockCAN{name: "vcan0"}
	system.SetCANOpener(func(string, uint8) (CANSource, error) { return can, nil })

	if err := system.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer system.Shutdown()

	can.send(*frame(0x3F5, time.Now(), 0x02))
	waitFor(t, "running", func() bool { return system.State() == types.StateRunning })
	waitFor(t, "override", func() bool { return system.arbiter.HasActive(time.Now()) })

	waitFor(t, "bus-idle", func() bool { return system.State() == types.StateBusIdle })
	if system.arbiter.HasActive(time.Now()) {
		t.Error("bus-idle should stop every override")
	}

	can.send(*frame(0x3F5, time.Now(), 0x00))
	waitFor(t, "running again", func() bool { return system.State() == types.StateRunning })
}

func TestBusSleepResetsHistoryOnNextFrame(t *testing.T) {
	system, _, _ := newTestLightingSystem(t)
	withProfiles(t, system)

	system.handleFrame(frame(0x273, time.Now()))
	system.handleFrame(frame(0x273, time.Now(), 0, 0, 0, 0, 0, 0x01))
	if !system.engine.State().NightMode {
		t.Fatal("night mode not mapped")
	}

	if err := system.OnBusSleep(nil); err != nil {
		t.Fatalf("OnBusSleep failed: %v", err)
	}
	if !system.resetPending.Load() {
		t.Fatal("reset not scheduled")
	}
	system.handleFrame(frame(0x7A0, time.Now()))
	if system.resetPending.Load() {
		t.Error("reset should run before the next frame")
	}
	if _, _, ok := system.engine.history.Last(0x273, 1); ok {
		t.Error("history survived the reset")
	}
}

// ===== Resolution output =====

func TestApplyResolutionPublishesOnChange(t *testing.T) {
	system, mockIO, mockRedis := newTestLightingSystem(t)

	res := arbiter.Resolution{Effect: types.EffectAssignment{Effect: types.EffectSolid, Brightness: 10}}
	system.applyResolution(res)
	system.applyResolution(res)
	if len(mockRedis.effects) != 1 {
		t.Errorf("published %d times, want 1", len(mockRedis.effects))
	}
	if on, _ := mockIO.output(hardware.OutputLEDPower); !on {
		t.Error("led power should follow a non-off effect")
	}

	system.applyResolution(arbiter.Resolution{Effect: types.Off})
	if on, ok := mockIO.output(hardware.OutputLEDPower); !ok || on {
		t.Error("led power should be off for OFF")
	}
}

func TestApplyResolutionCompanionKeepsPower(t *testing.T) {
	system, mockIO, _ := newTestLightingSystem(t)
	companion := types.EffectAssignment{Effect: types.EffectTurnSignal}
	system.applyResolution(arbiter.Resolution{Effect: types.Off, Companion: &companion})
	if on, _ := mockIO.output(hardware.OutputLEDPower); !on {
		t.Error("an active companion should keep the strip powered")
	}
}

func TestApplyResolutionWithoutGPIO(t *testing.T) {
	mockRedis := newMockMessagingClient()
	system := NewLightingSystem(testConfig(), newTestEngine(t), nil, mockRedis, nil, testLogger())
	system.applyResolution(arbiter.Resolution{Effect: types.EffectAssignment{Effect: types.EffectSolid}})
	if len(mockRedis.effects) != 1 {
		t.Error("effect should publish without GPIO")
	}
}

func TestMirrorStateRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.StatePublishInterval = time.Second
	system, _, mockRedis := newTestLightingSystemWithConfig(t, cfg)

	system.engine.ProcessFrame(frame(0x3F5, t0, 0x02))
	system.mirrorState(t0, system.engine.Snapshot())
	system.engine.ProcessFrame(frame(0x3F5, t0, 0x00))
	system.mirrorState(t0.Add(100*time.Millisecond), system.engine.Snapshot())
	if n := mockRedis.vehicleStateCount(); n != 1 {
		t.Fatalf("published %d states inside the interval, want 1", n)
	}

	system.mirrorState(t0.Add(time.Second), system.engine.Snapshot())
	if n := mockRedis.vehicleStateCount(); n != 2 {
		t.Errorf("published %d states after the interval, want 2", n)
	}

	system.mirrorState(t0.Add(3*time.Second), system.engine.Snapshot())
	if n := mockRedis.vehicleStateCount(); n != 2 {
		t.Errorf("unchanged state republished")
	}
}

// ===== FSM Actions =====

func TestHasProfileGuard(t *testing.T) {
	system, _, _ := newTestLightingSystem(t)
	if system.HasProfile(nil) {
		t.Error("guard passed without profiles")
	}
	withProfiles(t, system)
	if !system.HasProfile(nil) {
		t.Error("guard failed with an active profile")
	}
}

func TestEnterBusIdleStopsOverrides(t *testing.T) {
	system, _, _ := newTestLightingSystem(t)
	withProfiles(t, system)
	if _, err := system.arbiter.HandleEvent(types.EventTurnLeft, t0); err != nil {
		t.Fatal(err)
	}
	if err := system.EnterBusIdle(nil); err != nil {
		t.Fatalf("EnterBusIdle failed: %v", err)
	}
	if system.arbiter.HasActive(time.Now()) {
		t.Error("overrides survived bus-idle")
	}
}

func TestEnterShuttingDownTurnsOff(t *testing.T) {
	system, mockIO, mockRedis := newTestLightingSystem(t)
	withProfiles(t, system)
	system.readers = []CANSource{&mockCAN{name: "can0", bus: 0}, &mockCAN{name: "can1", bus: 1}}
	system.applyResolution(arbiter.Resolution{Effect: types.EffectAssignment{Effect: types.EffectSolid}})

	if err := system.EnterShuttingDown(nil); err != nil {
		t.Fatalf("EnterShuttingDown failed: %v", err)
	}

	res, _ := mockRedis.lastEffect()
	if res.Effect != types.Off {
		t.Errorf("final effect = %+v, want OFF", res.Effect)
	}
	if on, _ := mockIO.output(hardware.OutputLEDPower); on {
		t.Error("led power left on")
	}
	for _, name := range []string{hardware.OutputCAN0Standby, hardware.OutputCAN1Standby} {
		if v, ok := mockIO.output(name); !ok || !v {
			t.Errorf("%s should be set to standby", name)
		}
	}
}

func TestShutdownFromWaitingBus(t *testing.T) {
	system, mockIO, mockRedis := newTestLightingSystem(t)
	if err := system.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitFor(t, "waiting-bus", func() bool { return system.State() == types.StateWaitingBus })

	system.Shutdown()

	if !mockRedis.sawServiceState(types.StateShuttingDown) {
		t.Error("shutting-down not published")
	}
	if !mockIO.cleaned {
		t.Error("hardware not cleaned up")
	}
}

func TestFSMRunsWithProfile(t *testing.T) {
	system, _, mockRedis := newTestLightingSystem(t)
	withProfiles(t, system)
	initTestFSM(t, system)

	if err := system.sendEvent(fsm.EvStart); err != nil {
		t.Fatalf("start rejected: %v", err)
	}
	waitFor(t, "waiting-bus", func() bool { return system.currentStateID() == fsm.StateWaitingBus })

	if err := system.sendEvent(fsm.EvBusActive); err != nil {
		t.Fatalf("bus-active rejected: %v", err)
	}
	waitFor(t, "running", func() bool { return system.State() == types.StateRunning })
	if !mockRedis.sawServiceState(types.StateRunning) {
		t.Error("running not published")
	}
}
