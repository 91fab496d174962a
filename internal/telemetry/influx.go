package telemetry

import (
	"context"
	"fmt"

	"vehicle-led-service/internal/logger"
	"vehicle-led-service/internal/types"

	"github.com/InfluxCommunity/influxdb3-go/v2/influxdb3"
)

const (
	stateMeasurement = "vehicle_state"
	eventMeasurement = "can_events"
)

type InfluxConfig struct {
	URL      string
	Token    string
	Database string
}

// pointWriter is the part of *influxdb3.Client the sink uses.
type pointWriter interface {
	WritePoints(ctx context.Context, points []*influxdb3.Point, options ...influxdb3.WriteOption) error
	Close() error
}

// InfluxSink writes state snapshots and events as InfluxDB points.
type InfluxSink struct {
	client pointWriter
	batch  *batcher[*influxdb3.Point]
	logger *logger.Logger
}

func NewInfluxSink(cfg InfluxConfig, batchSize int, l *logger.Logger) (*InfluxSink, error) {
	client, err := influxdb3.New(influxdb3.ClientConfig{
		Host:     cfg.URL,
		Token:    cfg.Token,
		Database: cfg.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create InfluxDB client: %w", err)
	}
	l.Infof("Writing telemetry to InfluxDB %s database %s", cfg.URL, cfg.Database)
	return newInfluxSink(client, batchSize, l), nil
}

func newInfluxSink(client pointWriter, batchSize int, l *logger.Logger) *InfluxSink {
	s := &InfluxSink{client: client, logger: l}
	s.batch = newBatcher(batchSize, DefaultFlushInterval, s.write, l)
	s.batch.start()
	return s
}

func (s *InfluxSink) write(ctx context.Context, points []*influxdb3.Point) error {
	if err := s.client.WritePoints(ctx, points); err != nil {
		return fmt.Errorf("failed to write points: %w", err)
	}
	return nil
}

func (s *InfluxSink) RecordState(st types.VehicleState) {
	s.batch.add(statePoint(&st))
}

func (s *InfluxSink) RecordEvent(rec EventRecord) {
	s.batch.add(eventPoint(&rec))
}

func statePoint(st *types.VehicleState) *influxdb3.Point {
	return influxdb3.NewPoint(
		stateMeasurement,
		nil,
		map[string]any{
			"speed_kph":        st.SpeedKph,
			"gear":             int64(st.Gear),
			"brake":            st.Brake,
			"locked":           st.Locked,
			"doors_open_count": int64(st.DoorsOpenCount),
			"turn_left":        st.TurnLeft,
			"turn_right":       st.TurnRight,
			"hazard":           st.Hazard,
			"soc":              st.SOC,
			"charging":         st.Charging,
			"charge_power_kw":  st.ChargePowerKw,
			"sentry_mode":      st.SentryMode,
			"night_mode":       st.NightMode,
			"brightness":       int64(st.Brightness),
			"battery_lv":       st.BatteryLV,
		},
		st.LastUpdate,
	)
}

func eventPoint(rec *EventRecord) *influxdb3.Point {
	return influxdb3.NewPoint(
		eventMeasurement,
		map[string]string{
			"event":   rec.Event.String(),
			"can_id":  fmt.Sprintf("0x%X", rec.MessageID),
			"outcome": rec.Outcome,
		},
		map[string]any{
			"value":      rec.Value,
			"signal":     int64(rec.Signal),
			"profile_id": int64(rec.ProfileID),
		},
		rec.Time,
	)
}

func (s *InfluxSink) Dropped() uint64 { return s.batch.Dropped() }

func (s *InfluxSink) Close() error {
	s.batch.close()
	return s.client.Close()
}
