// Package storage persists measurements in a single-table SQLite database.
// Rows are inserted once and never updated; the only delete path is the
// retention sweep. A one-connection pool serializes writes so a report query
// from a separate invocation can run mid-write without corruption.
package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"netcomfort/internal/aggregate"
	"netcomfort/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// stampFormat matches the naive ISO-8601 second precision used for cutoff
// comparisons. Stored stamps may carry a trailing Z; lexicographic comparison
// against the naive prefix still orders correctly.
const stampFormat = "2006-01-02T15:04:05"

const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Record is a successful measurement ready to persist.
type Record struct {
	MeasuredAt   string
	DownloadMbps float64
	UploadMbps   float64
	PingMs       float64
	JitterMs     float64
	ComfortScore float64

	ServerID   int64
	ServerName string
	ISP        string
	ResultURL  string
	RawJSON    string
}

// Measurement is one persisted row. Metric fields are nil on error rows.
type Measurement struct {
	ID           int64
	MeasuredAt   string
	Status       string
	DownloadMbps *float64
	UploadMbps   *float64
	PingMs       *float64
	JitterMs     *float64
	ComfortScore *float64
	ErrorMessage string
}

type Config struct {
	Path        string
	BusyTimeout time.Duration
}

// Store wraps the SQLite database.
type Store struct {
	db  *sql.DB
	log logx.Logger
}

// Open creates the database file (and parent directory) if needed, applies
// pragmas and runs migrations. Migrations are idempotent.
func Open(cfg Config, log logx.Logger) (*Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if dir := filepath.Dir(cfg.Path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	s := &Store{db: db, log: log}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveOK inserts a successful measurement and returns its row id.
func (s *Store) SaveOK(ctx context.Context, rec Record) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO measurements (
		    measured_at, status, download_mbps, upload_mbps,
		    ping_ms, jitter_ms, comfort_score,
		    server_id, server_name, isp, result_url, raw_json
		) VALUES (?,'ok',?,?,?,?,?,?,?,?,?,?)`,
		rec.MeasuredAt, rec.DownloadMbps, rec.UploadMbps,
		rec.PingMs, rec.JitterMs, rec.ComfortScore,
		nullInt(rec.ServerID), nullStr(rec.ServerName), nullStr(rec.ISP),
		nullStr(rec.ResultURL), nullStr(rec.RawJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("insert measurement: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	s.log.Debug("measurement row inserted",
		logx.Int64("id", id),
		logx.Float64("score", rec.ComfortScore))
	return id, nil
}

// SaveError records a failed probe so missing data stays explainable. All
// metric columns remain NULL.
func (s *Store) SaveError(ctx context.Context, message, rawOutput string) (int64, error) {
	now := time.Now().UTC().Format(stampFormat) + "Z"
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO measurements (measured_at, status, error_message, raw_json)
		 VALUES (?,'error',?,?)`,
		now, message, nullStr(rawOutput),
	)
	if err != nil {
		return 0, fmt.Errorf("insert error row: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	s.log.Warn("measurement error recorded", logx.Int64("id", id), logx.String("error", message))
	return id, nil
}

// HourlyAverages loads ok rows inside the lookback window and buckets them by
// (day-of-week, open hour) via the aggregation layer.
func (s *Store) HourlyAverages(ctx context.Context, lookbackDays, openHour, closeHour, utcOffsetHours int) ([]aggregate.Bucket, error) {
	samples, err := s.SamplesSince(ctx, time.Now().UTC().AddDate(0, 0, -lookbackDays))
	if err != nil {
		return nil, err
	}
	return aggregate.HourlyAverages(samples, openHour, closeHour, utcOffsetHours), nil
}

// SamplesSince returns score samples (ok rows only) measured at or after the
// cutoff, ascending.
func (s *Store) SamplesSince(ctx context.Context, since time.Time) ([]aggregate.Sample, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT measured_at, comfort_score
		 FROM measurements
		 WHERE status = 'ok' AND measured_at >= ?
		 ORDER BY measured_at ASC`,
		since.Format(stampFormat),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []aggregate.Sample
	for rows.Next() {
		var sm aggregate.Sample
		if err := rows.Scan(&sm.MeasuredAt, &sm.Score); err != nil {
			return nil, err
		}
		sm.OK = true
		samples = append(samples, sm)
	}
	return samples, rows.Err()
}

// Recent returns ok measurements from the last N hours, ascending by time.
// Used for the trend line chart.
func (s *Store) Recent(ctx context.Context, hours int) ([]Measurement, error) {
	since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour).Format(stampFormat)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, measured_at, status, download_mbps, upload_mbps,
		        ping_ms, jitter_ms, comfort_score
		 FROM measurements
		 WHERE status = 'ok' AND measured_at >= ?
		 ORDER BY measured_at ASC`,
		since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Measurement
	for rows.Next() {
		var m Measurement
		if err := rows.Scan(&m.ID, &m.MeasuredAt, &m.Status,
			&m.DownloadMbps, &m.UploadMbps, &m.PingMs, &m.JitterMs, &m.ComfortScore); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// PurgeOlderThan deletes rows (any status) older than the retention horizon
// and returns how many were removed.
func (s *Store) PurgeOlderThan(ctx context.Context, days int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days).Format(stampFormat)
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM measurements WHERE measured_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	s.log.Info("retention sweep finished",
		logx.Int("days", days), logx.Int64("deleted", deleted))
	return deleted, nil
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

func nullInt(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}
