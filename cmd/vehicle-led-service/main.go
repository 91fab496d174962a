package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"vehicle-led-service/internal/catalog"
	"vehicle-led-service/internal/config"
	"vehicle-led-service/internal/core"
	"vehicle-led-service/internal/hardware"
	"vehicle-led-service/internal/logger"
	"vehicle-led-service/internal/messaging"
	"vehicle-led-service/internal/telemetry"
)

func main() {
	// Create standard logger with appropriate format
	var stdLogger *log.Logger
	if os.Getenv("INVOCATION_ID") != "" {
		// Running under systemd, use minimal format
		stdLogger = log.New(os.Stdout, "", 0)
	} else {
		stdLogger = log.New(os.Stdout, "", log.LstdFlags|log.Lmicroseconds|log.Lmsgprefix)
	}

	cfg, err := config.Load(os.Args[0], os.Args[1:])
	if err != nil {
		stdLogger.Fatalf("Invalid configuration: %v", err)
	}

	l := logger.NewLogger(stdLogger, logger.ClampLevel(cfg.LogLevel))
	l.Infof("Starting vehicle LED service...")

	cat := catalog.Sample()
	if cfg.CatalogPath != "" {
		if cat, err = catalog.Load(cfg.CatalogPath); err != nil {
			l.Fatalf("Failed to load catalog: %v", err)
		}
	}

	engine, err := core.NewEngine(cat, l.WithTag("Engine"))
	if err != nil {
		l.Fatalf("Failed to create engine: %v", err)
	}

	redis := messaging.NewRedisClient(cfg.RedisHost, cfg.RedisPort, l.WithTag("Redis"), messaging.Callbacks{})

	var io core.HardwareIO
	if cfg.GPIO {
		io = hardware.NewLinuxGPIO(l.WithTag("GPIO"))
	} else {
		l.Infof("GPIO disabled")
	}

	system := core.NewLightingSystem(cfg, engine, io, redis, openSinks(&cfg, l), l)
	if err := system.Start(); err != nil {
		l.Fatalf("Failed to start system: %v", err)
	}

	l.Infof("System started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	l.Infof("Received signal %v, shutting down...", sig)
	system.Shutdown()
	l.Infof("Shutdown complete")
}

// openSinks connects the enabled telemetry stores. A store that cannot be
// reached is skipped.
func openSinks(cfg *config.Config, l *logger.Logger) telemetry.Sink {
	var sinks telemetry.Multi
	if cfg.InfluxEnabled() {
		s, err := telemetry.NewInfluxSink(cfg.Influx, cfg.TelemetryBatch, l.WithTag("Influx"))
		if err != nil {
			l.Warnf("InfluxDB telemetry disabled: %v", err)
		} else {
			sinks = append(sinks, s)
		}
	}
	if cfg.ClickHouseEnabled() {
		s, err := telemetry.NewClickHouseSink(cfg.ClickHouse, cfg.TelemetryBatch, l.WithTag("ClickHouse"))
		if err != nil {
			l.Warnf("ClickHouse telemetry disabled: %v", err)
		} else {
			sinks = append(sinks, s)
		}
	}
	if len(sinks) == 0 {
		return nil
	}
	return sinks
}
