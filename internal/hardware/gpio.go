package hardware

import (
	"fmt"
	"sync"

	"vehicle-led-service/internal/logger"

	"github.com/warthog618/go-gpiocdev"
)

// LinuxGPIO drives the digital outputs listed in DoMappings through the GPIO
// character device.
type LinuxGPIO struct {
	logger        *logger.Logger
	chips         map[int]*gpiocdev.Chip
	lines         map[string]*gpiocdev.Line
	values        map[string]bool
	initialValues map[string]bool
	mu            sync.RWMutex
}

func NewLinuxGPIO(l *logger.Logger) *LinuxGPIO {
	return &LinuxGPIO{
		logger:        l,
		chips:         make(map[int]*gpiocdev.Chip),
		lines:         make(map[string]*gpiocdev.Line),
		values:        make(map[string]bool),
		initialValues: make(map[string]bool),
	}
}

// SetInitialValue sets the level an output is requested with. It has no
// effect after Initialize.
func (g *LinuxGPIO) SetInitialValue(name string, value bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.initialValues[name] = value
}

func (g *LinuxGPIO) Initialize() error {
	g.logger.Infof("Initializing GPIO outputs")

	g.mu.Lock()
	defer g.mu.Unlock()

	for name, mapping := range DoMappings {
		chip, ok := g.chips[mapping.Chip]
		if !ok {
			var err error
			chip, err = gpiocdev.NewChip(fmt.Sprintf("gpiochip%d", mapping.Chip))
			if err != nil {
				return fmt.Errorf("failed to open GPIO chip %d: %w", mapping.Chip, err)
			}
			g.chips[mapping.Chip] = chip
		}

		val := 0
		if g.initialValues[name] {
			val = 1
		}

		line, err := chip.RequestLine(mapping.Line,
			gpiocdev.AsOutput(val),
			gpiocdev.WithConsumer(gpioConsumer))
		if err != nil {
			return fmt.Errorf("failed to request GPIO line %d: %w", mapping.Line, err)
		}

		g.lines[name] = line
		g.values[name] = val == 1
		g.logger.Infof("Configured DO %s: chip=%d, line=%d, initial=%d", name, mapping.Chip, mapping.Line, val)
	}
	return nil
}

// WriteDigitalOutput sets an output. Writing the current level is a no-op.
func (g *LinuxGPIO) WriteDigitalOutput(channel string, value bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	line, ok := g.lines[channel]
	if !ok {
		return fmt.Errorf("unknown digital output channel: %s", channel)
	}
	if cur, ok := g.values[channel]; ok && cur == value {
		return nil
	}

	val := 0
	if value {
		val = 1
	}
	if err := line.SetValue(val); err != nil {
		return fmt.Errorf("failed to set DO %s=%v: %w", channel, value, err)
	}
	g.values[channel] = value

	g.logger.Debugf("Set DO %s=%v", channel, value)
	return nil
}

func (g *LinuxGPIO) Cleanup() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.logger.Infof("Cleaning up GPIO resources")

	for name, line := range g.lines {
		line.Close()
		g.logger.Debugf("Closed GPIO line for %s", name)
	}
	for id, chip := range g.chips {
		chip.Close()
		g.logger.Debugf("Closed GPIO chip %d", id)
	}
	g.lines = make(map[string]*gpiocdev.Line)
	g.chips = make(map[int]*gpiocdev.Chip)
}
