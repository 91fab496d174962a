// Package config collects the service settings. Defaults come from the
// environment and are overridden by command line flags.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"vehicle-led-service/internal/telemetry"
)

type Config struct {
	LogLevel int

	RedisHost string
	RedisPort int

	CANInterfaces string // comma separated, bus index follows list order
	FrameBuffer   int
	CANFilter     bool // only receive catalog ids
	CatalogPath   string

	SweepInterval        time.Duration
	StatePublishInterval time.Duration
	BusIdleTimeout       time.Duration
	BusSleepTimeout      time.Duration

	GPIO bool

	Influx         telemetry.InfluxConfig
	ClickHouse     telemetry.ClickHouseConfig
	TelemetryBatch int
}

// Default reads LED_* environment variables over built-in defaults.
func Default() Config {
	return Config{
		LogLevel:             getenvInt("LED_LOG_LEVEL", 3),
		RedisHost:            getenv("LED_REDIS_HOST", "127.0.0.1"),
		RedisPort:            getenvInt("LED_REDIS_PORT", 6379),
		CANInterfaces:        getenv("LED_CAN", "can0,can1"),
		FrameBuffer:          getenvInt("LED_FRAME_BUFFER", 1024),
		CANFilter:            getenvBool("LED_CAN_FILTER", true),
		CatalogPath:          os.Getenv("LED_CATALOG"),
		SweepInterval:        getenvDuration("LED_SWEEP", 50*time.Millisecond),
		StatePublishInterval: getenvDuration("LED_STATE_INTERVAL", 200*time.Millisecond),
		BusIdleTimeout:       getenvDuration("LED_BUS_IDLE", 5*time.Second),
		BusSleepTimeout:      getenvDuration("LED_BUS_SLEEP", 10*time.Minute),
		GPIO:                 getenvBool("LED_GPIO", true),
		Influx: telemetry.InfluxConfig{
			URL:      os.Getenv("LED_INFLUX_URL"),
			Token:    os.Getenv("LED_INFLUX_TOKEN"),
			Database: getenv("LED_INFLUX_DATABASE", "vehicle"),
		},
		ClickHouse: telemetry.ClickHouseConfig{
			Addr:     os.Getenv("LED_CLICKHOUSE_ADDR"),
			Database: getenv("LED_CLICKHOUSE_DATABASE", "default"),
			Username: getenv("LED_CLICKHOUSE_USER", "default"),
			Password: os.Getenv("LED_CLICKHOUSE_PASSWORD"),
			Table:    getenv("LED_CLICKHOUSE_TABLE", "led_events"),
		},
		TelemetryBatch: getenvInt("LED_TELEMETRY_BATCH", telemetry.DefaultBatchSize),
	}
}

// RegisterFlags binds every setting to fs with the current values as
// defaults.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.LogLevel, "log", c.LogLevel, "Log level (0=NONE, 1=ERROR, 2=WARN, 3=INFO, 4=DEBUG)")
	fs.StringVar(&c.RedisHost, "redis-host", c.RedisHost, "Redis host")
	fs.IntVar(&c.RedisPort, "redis-port", c.RedisPort, "Redis port")
	fs.StringVar(&c.CANInterfaces, "can", c.CANInterfaces, "Comma separated CAN interfaces, empty disables CAN input")
	fs.IntVar(&c.FrameBuffer, "frame-buffer", c.FrameBuffer, "Frames buffered between readers and the decoder")
	fs.BoolVar(&c.CANFilter, "can-filter", c.CANFilter, "Only receive ids present in the catalog")
	fs.StringVar(&c.CatalogPath, "catalog", c.CatalogPath, "Signal catalog JSON, empty uses the built-in sample")
	fs.DurationVar(&c.SweepInterval, "sweep", c.SweepInterval, "Override sweep and resolve interval")
	fs.DurationVar(&c.StatePublishInterval, "state-interval", c.StatePublishInterval, "Minimum interval between vehicle state publishes")
	fs.DurationVar(&c.BusIdleTimeout, "bus-idle", c.BusIdleTimeout, "Silence before the bus is considered idle")
	fs.DurationVar(&c.BusSleepTimeout, "bus-sleep", c.BusSleepTimeout, "Idle time before the bus is considered asleep")
	fs.BoolVar(&c.GPIO, "gpio", c.GPIO, "Drive the LED power and transceiver standby lines")
	fs.StringVar(&c.Influx.URL, "influx-url", c.Influx.URL, "InfluxDB URL, empty disables")
	fs.StringVar(&c.Influx.Token, "influx-token", c.Influx.Token, "InfluxDB token")
	fs.StringVar(&c.Influx.Database, "influx-database", c.Influx.Database, "InfluxDB database")
	fs.StringVar(&c.ClickHouse.Addr, "clickhouse-addr", c.ClickHouse.Addr, "ClickHouse host:port, empty disables")
	fs.StringVar(&c.ClickHouse.Database, "clickhouse-database", c.ClickHouse.Database, "ClickHouse database")
	fs.StringVar(&c.ClickHouse.Username, "clickhouse-user", c.ClickHouse.Username, "ClickHouse user")
	fs.StringVar(&c.ClickHouse.Password, "clickhouse-password", c.ClickHouse.Password, "ClickHouse password")
	fs.StringVar(&c.ClickHouse.Table, "clickhouse-table", c.ClickHouse.Table, "ClickHouse event table")
	fs.IntVar(&c.TelemetryBatch, "telemetry-batch", c.TelemetryBatch, "Telemetry batch size")
}

// Load parses args over Default and validates the result.
func Load(name string, args []string) (Config, error) {
	c := Default()
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	c.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Interfaces returns the configured CAN interfaces in bus order.
func (c *Config) Interfaces() []string {
	var out []string
	for _, s := range strings.Split(c.CANInterfaces, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (c *Config) InfluxEnabled() bool { return c.Influx.URL != "" }

func (c *Config) ClickHouseEnabled() bool { return c.ClickHouse.Addr != "" }

var ErrInvalid = errors.New("invalid configuration")

func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
		}
	}

	check(c.RedisHost != "", "redis host is empty")
	check(c.RedisPort > 0 && c.RedisPort < 65536, "redis port %d", c.RedisPort)
	check(len(c.Interfaces()) <= 3, "at most 3 CAN interfaces, got %d", len(c.Interfaces()))
	check(c.FrameBuffer > 0, "frame buffer %d", c.FrameBuffer)
	check(c.SweepInterval >= time.Millisecond, "sweep interval %s", c.SweepInterval)
	check(c.StatePublishInterval >= 0, "state interval %s", c.StatePublishInterval)
	check(c.BusIdleTimeout > 0, "bus idle timeout %s", c.BusIdleTimeout)
	check(c.BusSleepTimeout > 0, "bus sleep timeout %s", c.BusSleepTimeout)
	check(c.TelemetryBatch > 0, "telemetry batch %d", c.TelemetryBatch)
	if c.ClickHouseEnabled() {
		check(c.ClickHouse.Table != "", "clickhouse table is empty")
	}
	if c.InfluxEnabled() {
		check(c.Influx.Database != "", "influx database is empty")
	}
	return errors.Join(errs...)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getenvBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}
