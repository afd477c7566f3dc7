// Package app wires configuration, storage, probing, reporting and
// notification into the operations the CLI and daemon expose.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"netcomfort/internal/aggregate"
	"netcomfort/internal/config"
	"netcomfort/internal/notify"
	"netcomfort/internal/probe"
	"netcomfort/internal/report"
	"netcomfort/internal/scoring"
	"netcomfort/internal/storage"
	"netcomfort/pkg/logx"
)

type App struct {
	Manager *config.Manager
	Store   *storage.Store
	Log     logx.Logger
}

// New loads the config file, opens logging sinks and the database, and
// returns the assembled app plus a cleanup func that flushes both.
func New(cfgPath string) (*App, func(), error) {
	manager := config.NewManager(cfgPath, logx.NewConsole("info"))
	cfg, err := manager.Load()
	if err != nil {
		return nil, nil, err
	}

	log, closeLog := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})

	store, err := storage.Open(storage.Config{
		Path:        cfg.Storage.Path,
		BusyTimeout: cfg.StorageBusyTimeout(),
	}, log)
	if err != nil {
		_ = closeLog()
		return nil, nil, err
	}

	app := &App{Manager: manager, Store: store, Log: log}
	cleanup := func() {
		_ = store.Close()
		_ = closeLog()
	}
	return app, cleanup, nil
}

// Measure runs one probe cycle, scores the result and persists it. A failed
// probe is itself persisted as an error row before the error is returned, so
// the history keeps a record of outages.
func (a *App) Measure(ctx context.Context) error {
	cfg := a.Manager.Get()

	runner := probe.NewRunner(probe.Config{
		Command:          cfg.Speedtest.Command,
		Timeout:          cfg.SpeedtestTimeout(),
		RetryCount:       cfg.Speedtest.RetryCount,
		RetryWait:        cfg.SpeedtestRetryWait(),
		FallbackEmbedded: cfg.Speedtest.FallbackEmbedded,
	}, a.Log)

	reading, err := runner.Run(ctx)
	if err != nil {
		if _, saveErr := a.Store.SaveError(ctx, err.Error(), ""); saveErr != nil {
			a.Log.Error("error row not saved", logx.Err(saveErr))
		}
		return fmt.Errorf("measurement failed: %w", err)
	}

	score := scoring.Score(
		reading.DownloadMbps(), reading.UploadMbps(),
		reading.PingMs, reading.JitterMs,
		weightsFrom(cfg), thresholdsFrom(cfg))
	label := scoring.Label(score, bandsFrom(cfg))

	id, err := a.Store.SaveOK(ctx, storage.Record{
		MeasuredAt:   reading.MeasuredAt,
		DownloadMbps: reading.DownloadMbps(),
		UploadMbps:   reading.UploadMbps(),
		PingMs:       reading.PingMs,
		JitterMs:     reading.JitterMs,
		ComfortScore: score,
		ServerID:     reading.ServerID,
		ServerName:   reading.ServerName,
		ISP:          reading.ISP,
		ResultURL:    reading.ResultURL,
		RawJSON:      reading.Raw,
	})
	if err != nil {
		return fmt.Errorf("save measurement: %w", err)
	}

	a.Log.Info("measurement saved",
		logx.Int64("id", id),
		logx.Float64("download_mbps", reading.DownloadMbps()),
		logx.Float64("upload_mbps", reading.UploadMbps()),
		logx.Float64("ping_ms", reading.PingMs),
		logx.Float64("score", score),
		logx.String("label", label))
	return nil
}

// ReportOptions override config values for one report run. Zero values fall
// back to the configured defaults.
type ReportOptions struct {
	LookbackDays int
	OutputPath   string
	Granularity  string
}

// Report aggregates the lookback window into heatmap buckets, renders the
// PNG and text summary, and pushes them to Telegram when configured.
func (a *App) Report(ctx context.Context, opts ReportOptions) error {
	cfg := a.Manager.Get()
	openHour, closeHour := cfg.Cafe.OpenHour, cfg.Cafe.CloseHour
	offset := cfg.Cafe.UTCOffsetHours

	lookback := cfg.Report.LookbackDays
	if opts.LookbackDays > 0 {
		lookback = opts.LookbackDays
	}
	granularity := cfg.Report.Granularity
	if opts.Granularity != "" {
		granularity = opts.Granularity
	}

	buckets, err := a.Store.HourlyAverages(ctx, lookback, openHour, closeHour, offset)
	if err != nil {
		return fmt.Errorf("aggregate: %w", err)
	}

	// Three days of samples covers both 24h trend windows no matter where
	// the last observation falls.
	samples, err := a.Store.SamplesSince(ctx, time.Now().UTC().Add(-72*time.Hour))
	if err != nil {
		return fmt.Errorf("trend samples: %w", err)
	}
	trend := aggregate.TrendDelta(samples, offset)

	venueNow := time.Now().In(time.FixedZone("venue", offset*3600))
	summary := report.BuildSummary(report.SummaryInput{
		GeneratedAt:  venueNow,
		LookbackDays: lookback,
		OpenHour:     openHour,
		CloseHour:    closeHour,
		Buckets:      buckets,
		Trend:        trend,
	})

	recent, err := a.recentTrendPoints(ctx, offset)
	if err != nil {
		return err
	}

	renderer := report.NewRenderer(report.Config{
		OpenHour:    openHour,
		CloseHour:   closeHour,
		AssetsDir:   cfg.Report.AssetsDir,
		FontPath:    cfg.Report.FontPath,
		Granularity: granularity,
	}, a.Log)

	imagePath := opts.OutputPath
	if imagePath == "" {
		imagePath = renderer.DefaultOutputPath(venueNow)
	}
	if err := renderer.Render(imagePath, lookback, buckets, recent, summary); err != nil {
		return err
	}
	summaryPath := strings.TrimSuffix(imagePath, ".png") + ".txt"
	if err := report.WriteSummaryFile(summaryPath, summary); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}

	if cfg.Notify != nil {
		n, err := notify.New(notify.Config{
			Token:      cfg.Notify.Token,
			ChatID:     cfg.Notify.ChatID,
			RatePerMin: cfg.Notify.RatePerMin,
		}, a.Log)
		if err != nil {
			return fmt.Errorf("notifier: %w", err)
		}
		if err := n.SendReport(ctx, imagePath, summary); err != nil {
			return fmt.Errorf("send report: %w", err)
		}
	}
	return nil
}

// Purge deletes rows older than the configured retention window.
func (a *App) Purge(ctx context.Context) error {
	cfg := a.Manager.Get()
	_, err := a.Store.PurgeOlderThan(ctx, cfg.Storage.RetentionDays)
	return err
}

func (a *App) recentTrendPoints(ctx context.Context, utcOffsetHours int) ([]report.TrendPoint, error) {
	rows, err := a.Store.Recent(ctx, 24)
	if err != nil {
		return nil, fmt.Errorf("recent rows: %w", err)
	}
	pts := make([]report.TrendPoint, 0, len(rows))
	for _, m := range rows {
		at, ok := aggregate.ParseStamp(m.MeasuredAt, utcOffsetHours)
		if !ok || m.DownloadMbps == nil || m.PingMs == nil {
			continue
		}
		pts = append(pts, report.TrendPoint{
			At:           at,
			DownloadMbps: *m.DownloadMbps,
			PingMs:       *m.PingMs,
		})
	}
	return pts, nil
}

func weightsFrom(cfg *config.Config) scoring.Weights {
	w := cfg.Scoring.Weights
	return scoring.Weights{Download: w.Download, Upload: w.Upload, Ping: w.Ping, Jitter: w.Jitter}
}

func thresholdsFrom(cfg *config.Config) scoring.Thresholds {
	t := cfg.Scoring.Thresholds
	return scoring.Thresholds{
		DownloadMbps: t.DownloadMaxMbps,
		UploadMbps:   t.UploadMaxMbps,
		PingMs:       t.PingMaxMs,
		JitterMs:     t.JitterMaxMs,
	}
}

func bandsFrom(cfg *config.Config) []scoring.Band {
	bands := make([]scoring.Band, 0, len(cfg.Scoring.Labels))
	for _, b := range cfg.Scoring.Labels {
		bands = append(bands, scoring.Band{Min: b.Min, Max: b.Max, Label: b.Label})
	}
	return bands
}
