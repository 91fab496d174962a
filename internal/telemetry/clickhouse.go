package telemetry

import (
	"context"
	"fmt"
	"time"

	"vehicle-led-service/internal/logger"
	"vehicle-led-service/internal/types"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/google/uuid"
)

type ClickHouseConfig struct {
	Addr     string
	Database string
	Username string
	Password string
	Table    string
}

// ClickHouseSink keeps a log of fired events. State snapshots are not
// stored there.
type ClickHouseSink struct {
	conn   driver.Conn
	table  string
	batch  *batcher[EventRecord]
	logger *logger.Logger
}

func NewClickHouseSink(cfg ClickHouseConfig, batchSize int, l *logger.Logger) (*ClickHouseSink, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout: 5 * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}
	if err := conn.Exec(ctx, createEventTable(cfg.Table)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create table %s: %w", cfg.Table, err)
	}

	s := &ClickHouseSink{conn: conn, table: cfg.Table, logger: l}
	s.batch = newBatcher(batchSize, DefaultFlushInterval, s.write, l)
	s.batch.start()
	l.Infof("Logging events to ClickHouse %s table %s.%s", cfg.Addr, cfg.Database, cfg.Table)
	return s, nil
}

func createEventTable(table string) string {
	return fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id UUID,
			timestamp DateTime64(3),
			event LowCardinality(String),
			can_id UInt32,
			signal Int16,
			value Float64,
			profile_id Int8,
			outcome LowCardinality(String)
		) ENGINE = MergeTree()
		ORDER BY (timestamp, event)
		PARTITION BY toYYYYMMDD(timestamp)
		TTL toDateTime(timestamp) + INTERVAL 3 MONTH
		SETTINGS index_granularity = 8192
	`, table)
}

// eventRow returns the column values in table order.
func eventRow(id uuid.UUID, rec *EventRecord) []any {
	return []any{
		id,
		rec.Time,
		rec.Event.String(),
		rec.MessageID,
		int16(rec.Signal),
		rec.Value,
		int8(rec.ProfileID),
		rec.Outcome,
	}
}

func (s *ClickHouseSink) write(ctx context.Context, records []EventRecord) error {
	batch, err := s.conn.PrepareBatch(ctx, fmt.Sprintf("INSERT INTO %s", s.table))
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}
	for i := range records {
		if err := batch.Append(eventRow(uuid.New(), &records[i])...); err != nil {
			batch.Abort()
			return fmt.Errorf("failed to append to batch: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	return nil
}

func (s *ClickHouseSink) RecordState(types.VehicleState) {}

func (s *ClickHouseSink) RecordEvent(rec EventRecord) {
	s.batch.add(rec)
}

func (s *ClickHouseSink) Dropped() uint64 { return s.batch.Dropped() }

func (s *ClickHouseSink) Close() error {
	s.batch.close()
	return s.conn.Close()
}
