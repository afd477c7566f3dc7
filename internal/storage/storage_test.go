package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"netcomfort/pkg/logx"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{Path: filepath.Join(t.TempDir(), "test.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func stamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05") + "Z"
}

func okRecord(at time.Time, score float64) Record {
	return Record{
		MeasuredAt:   stamp(at),
		DownloadMbps: 80,
		UploadMbps:   40,
		PingMs:       15,
		JitterMs:     3,
		ComfortScore: score,
		ServerName:   "Tokyo",
		ISP:          "Example ISP",
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "dir", "test.db")
	s1, err := Open(Config{Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	_ = s1.Close()
	s2, err := Open(Config{Path: path, BusyTimeout: time.Second}, logx.Nop())
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	_ = s2.Close()
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(Config{}, logx.Nop()); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestSaveAndRecent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	id1, err := s.SaveOK(ctx, okRecord(now.Add(-2*time.Hour), 70))
	if err != nil {
		t.Fatalf("SaveOK: %v", err)
	}
	id2, err := s.SaveOK(ctx, okRecord(now.Add(-1*time.Hour), 80))
	if err != nil {
		t.Fatalf("SaveOK: %v", err)
	}
	if id2 <= id1 {
		t.Fatalf("ids not monotonic: %d then %d", id1, id2)
	}

	// Older than the window: must not come back.
	if _, err := s.SaveOK(ctx, okRecord(now.Add(-30*time.Hour), 20)); err != nil {
		t.Fatalf("SaveOK: %v", err)
	}

	recent, err := s.Recent(ctx, 24)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 recent rows, got %d", len(recent))
	}
	if recent[0].MeasuredAt > recent[1].MeasuredAt {
		t.Fatalf("recent rows not ascending")
	}
	if recent[0].ComfortScore == nil || *recent[0].ComfortScore != 70 {
		t.Fatalf("unexpected first row: %+v", recent[0])
	}
}

func TestSaveErrorKeepsMetricsNull(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.SaveError(ctx, "speedtest failed after 3 attempts: boom", "raw stderr"); err != nil {
		t.Fatalf("SaveError: %v", err)
	}

	var status string
	var download *float64
	var msg string
	err := s.db.QueryRow(
		`SELECT status, download_mbps, error_message FROM measurements`).
		Scan(&status, &download, &msg)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if status != StatusError {
		t.Fatalf("status = %q", status)
	}
	if download != nil {
		t.Fatalf("metric column not null on error row")
	}
	if msg == "" {
		t.Fatalf("error message missing")
	}

	// Error rows never reach aggregation or the chart.
	recent, err := s.Recent(ctx, 24)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 0 {
		t.Fatalf("error row leaked into Recent: %+v", recent)
	}
}

func TestHourlyAveragesEndToEnd(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	// Two same-hour readings yesterday plus one error row.
	base := time.Date(now.Year(), now.Month(), now.Day(), 10, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	if _, err := s.SaveOK(ctx, okRecord(base, 80)); err != nil {
		t.Fatalf("SaveOK: %v", err)
	}
	if _, err := s.SaveOK(ctx, okRecord(base.Add(15*time.Minute), 90)); err != nil {
		t.Fatalf("SaveOK: %v", err)
	}
	if _, err := s.SaveError(ctx, "down", ""); err != nil {
		t.Fatalf("SaveError: %v", err)
	}

	buckets, err := s.HourlyAverages(ctx, 28, 9, 22, 0)
	if err != nil {
		t.Fatalf("HourlyAverages: %v", err)
	}
	if len(buckets) != 1 {
		t.Fatalf("expected 1 bucket, got %d: %+v", len(buckets), buckets)
	}
	if buckets[0].Hour != 10 || buckets[0].AvgScore != 85.0 || buckets[0].Count != 2 {
		t.Fatalf("unexpected bucket: %+v", buckets[0])
	}
}

func TestPurgeOlderThan(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := s.SaveOK(ctx, okRecord(now.AddDate(0, 0, -100), 50)); err != nil {
		t.Fatalf("SaveOK: %v", err)
	}
	if _, err := s.SaveOK(ctx, okRecord(now.Add(-time.Hour), 60)); err != nil {
		t.Fatalf("SaveOK: %v", err)
	}

	deleted, err := s.PurgeOlderThan(ctx, 90)
	if err != nil {
		t.Fatalf("PurgeOlderThan: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted, got %d", deleted)
	}

	recent, err := s.Recent(ctx, 24)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 1 {
		t.Fatalf("survivor row missing after purge")
	}
}

func TestSamplesSinceSkipsErrorRows(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := s.SaveOK(ctx, okRecord(now.Add(-time.Hour), 65)); err != nil {
		t.Fatalf("SaveOK: %v", err)
	}
	if _, err := s.SaveError(ctx, "nope", ""); err != nil {
		t.Fatalf("SaveError: %v", err)
	}

	samples, err := s.SamplesSince(ctx, now.AddDate(0, 0, -1))
	if err != nil {
		t.Fatalf("SamplesSince: %v", err)
	}
	if len(samples) != 1 || !samples[0].OK || samples[0].Score != 65 {
		t.Fatalf("unexpected samples: %+v", samples)
	}
}
