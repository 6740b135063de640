package writer

import (
	"FlowTagger/internal/config"
	"FlowTagger/internal/model"
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/sirupsen/logrus"
)

// SnapshotTimeLayout is the layout of the timestamp passed to Writer.Write.
// Timestamps in this layout are always UTC.
const SnapshotTimeLayout = "2006-01-02_15-04-05"

// SnapshotTimestamp formats the time report was generated at, or now when unset.
func SnapshotTimestamp(report *model.Report) string {
	t := report.GeneratedAt
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(SnapshotTimeLayout)
}

// snapshotTime is the instant stored with each row. The report's own time wins;
// the timestamp string only fills in for reports without one.
func snapshotTime(report *model.Report, timestamp string) time.Time {
	if !report.GeneratedAt.IsZero() {
		return report.GeneratedAt.UTC()
	}
	t, err := time.ParseInLocation(SnapshotTimeLayout, timestamp, time.UTC)
	if err != nil {
		return time.Now().UTC()
	}
	return t
}

const createTagCountsStatement = `
CREATE TABLE IF NOT EXISTS tag_counts (
    Timestamp DateTime,
    RunID     String,
    Source    String,
    Tag       String,
    Count     UInt64
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(Timestamp)
ORDER BY (Tag, Timestamp);
`

const createPortProtocolCountsStatement = `
CREATE TABLE IF NOT EXISTS port_protocol_counts (
    Timestamp DateTime,
    RunID     String,
    Source    String,
    Port      UInt16,
    Protocol  String,
    Count     UInt64
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(Timestamp)
ORDER BY (Port, Protocol, Timestamp);
`

// ClickHouseWriter implements the model.Writer interface for ClickHouse.
type ClickHouseWriter struct {
	conn driver.Conn
	log  logrus.FieldLogger
}

// NewClickHouseWriter connects to ClickHouse and ensures both report tables exist.
func NewClickHouseWriter(cfg config.ClickHouseConfig, log logrus.FieldLogger) (model.Writer, error) {
	conn, err := Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}

	for _, stmt := range []string{createTagCountsStatement, createPortProtocolCountsStatement} {
		if err := conn.Exec(context.Background(), stmt); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to create table: %w", err)
		}
	}
	log.Info("Successfully connected to ClickHouse and ensured tables exist.")

	return &ClickHouseWriter{conn: conn, log: log}, nil
}

// Connect opens and pings a ClickHouse connection.
func Connect(cfg config.ClickHouseConfig) (driver.Conn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Debug: false,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}

	return conn, nil
}

// Name returns the writer type.
func (w *ClickHouseWriter) Name() string {
	return "clickhouse"
}

// Close closes the underlying connection.
func (w *ClickHouseWriter) Close() error {
	return w.conn.Close()
}

// Write inserts the report's tag counts and port/protocol counts in two batches.
func (w *ClickHouseWriter) Write(report *model.Report, timestamp string) error {
	at := snapshotTime(report, timestamp)
	ctx := context.Background()

	if len(report.TagCounts) > 0 {
		batch, err := w.conn.PrepareBatch(ctx, "INSERT INTO tag_counts")
		if err != nil {
			return fmt.Errorf("failed to prepare batch: %w", err)
		}
		for tag, count := range report.TagCounts {
			if err := batch.Append(at, report.RunID, report.Source, tag, count); err != nil {
				return fmt.Errorf("failed to append tag count to batch: %w", err)
			}
		}
		if err := batch.Send(); err != nil {
			return fmt.Errorf("failed to send batch: %w", err)
		}
	}

	if len(report.PortProtocolCounts) > 0 {
		batch, err := w.conn.PrepareBatch(ctx, "INSERT INTO port_protocol_counts")
		if err != nil {
			return fmt.Errorf("failed to prepare batch: %w", err)
		}
		for port, byProto := range report.PortProtocolCounts {
			for proto, count := range byProto {
				if err := batch.Append(at, report.RunID, report.Source, uint16(port), proto, count); err != nil {
					return fmt.Errorf("failed to append port/protocol count to batch: %w", err)
				}
			}
		}
		if err := batch.Send(); err != nil {
			return fmt.Errorf("failed to send batch: %w", err)
		}
	}

	w.log.Infof("Wrote %d tags and %d port/protocol pairs to ClickHouse for run %s",
		len(report.TagCounts), report.PortProtocolCounts.Pairs(), report.RunID)
	return nil
}
