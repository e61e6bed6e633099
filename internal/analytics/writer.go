package analytics

import (
	"context"
	"fmt"
	"log"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"FlowSentry/internal/config"
	"FlowSentry/internal/model"
)

const createTableStatement = `
CREATE TABLE IF NOT EXISTS scoring_runs (
    RunAt        DateTime,
    ModelVersion String,
    Processed    UInt64,
    Anomalies    UInt64,
    AnomalyRate  Float64
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(RunAt)
ORDER BY (RunAt);
`

// ClickHouseWriter persists scoring-run summaries to ClickHouse.
// It implements the model.RunSink interface.
type ClickHouseWriter struct {
	conn driver.Conn
}

// NewClickHouseWriter connects to ClickHouse and ensures the table exists.
func NewClickHouseWriter(cfg config.ClickHouseConfig) (*ClickHouseWriter, error) {
	conn, err := connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}

	if err := conn.Exec(context.Background(), createTableStatement); err != nil {
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	log.Println("Successfully connected to ClickHouse and ensured table exists.")

	return &ClickHouseWriter{conn: conn}, nil
}

func connect(cfg config.ClickHouseConfig) (driver.Conn, error) {
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

// WriteRun inserts one scoring-run summary.
func (w *ClickHouseWriter) WriteRun(ctx context.Context, run model.ScoringRun) error {
	batch, err := w.conn.PrepareBatch(ctx, "INSERT INTO scoring_runs")
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}
	if err := batch.Append(run.RunAt, run.ModelVersion, run.Processed, run.Anomalies, run.AnomalyRate); err != nil {
		return fmt.Errorf("failed to append run to batch: %w", err)
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	return nil
}

// DailySummary aggregates scoring runs for one calendar day.
type DailySummary struct {
	Day         string  `json:"day"`
	Runs        uint64  `json:"runs"`
	Processed   uint64  `json:"processed"`
	Anomalies   uint64  `json:"anomalies"`
	AnomalyRate float64 `json:"anomaly_rate"`
}

// DailyStats returns per-day totals for the most recent days.
func (w *ClickHouseWriter) DailyStats(ctx context.Context, days int) ([]DailySummary, error) {
	rows, err := w.conn.Query(ctx, `
		SELECT
			toString(toDate(RunAt)) AS Day,
			COUNT(*) AS Runs,
			SUM(Processed) AS Processed,
			SUM(Anomalies) AS Anomalies,
			IF(SUM(Processed) > 0, SUM(Anomalies) / SUM(Processed), 0) AS AnomalyRate
		FROM scoring_runs
		WHERE RunAt >= now() - INTERVAL ? DAY
		GROUP BY Day
		ORDER BY Day DESC`, days)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily stats: %w", err)
	}
	defer rows.Close()

	var summaries []DailySummary
	for rows.Next() {
		var s DailySummary
		if err := rows.Scan(&s.Day, &s.Runs, &s.Processed, &s.Anomalies, &s.AnomalyRate); err != nil {
			return nil, fmt.Errorf("failed to scan daily summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, nil
}
