// Package daemon runs the measure/report/purge jobs on cron schedules in
// venue-local time, with systemd readiness/watchdog integration and live
// config reload.
package daemon

import (
	"context"
	"fmt"
	"sync"
	"time"

	sdaemon "github.com/coreos/go-systemd/v22/daemon"
	"github.com/robfig/cron/v3"

	"netcomfort/internal/config"
	"netcomfort/pkg/logx"
)

// Jobs are the actions the daemon schedules. Each runs with a bounded
// context and reports failure through its error; the daemon logs failures
// and keeps the schedule running.
type Jobs struct {
	Measure func(ctx context.Context) error
	Report  func(ctx context.Context) error
	Purge   func(ctx context.Context) error
}

type Daemon struct {
	manager *config.Manager
	jobs    Jobs
	log     logx.Logger

	parser cron.Parser

	mu sync.Mutex
	c  *cron.Cron

	// runMu serializes job execution so a slow speedtest never overlaps
	// the next tick or a report run reading half-written state.
	runMu sync.Mutex
}

func New(manager *config.Manager, jobs Jobs, log logx.Logger) *Daemon {
	return &Daemon{
		manager: manager,
		jobs:    jobs,
		log:     log,
		parser:  cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

// Run blocks until ctx is cancelled. It starts the cron schedules, notifies
// systemd readiness, services the watchdog when one is configured, and
// restarts the schedules whenever the config file changes.
func (d *Daemon) Run(ctx context.Context) error {
	cfg := d.manager.Get()
	if err := d.startLocked(ctx, cfg); err != nil {
		return err
	}

	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		err := d.manager.Watch(ctx, func(next *config.Config) {
			d.log.Info("config changed, restarting schedules")
			d.mu.Lock()
			defer d.mu.Unlock()
			if d.c != nil {
				<-d.c.Stop().Done()
				d.c = nil
			}
			if err := d.startLocked(ctx, next); err != nil {
				d.log.Error("schedule restart failed", logx.Err(err))
			}
		})
		if err != nil && ctx.Err() == nil {
			d.log.Error("config watch stopped", logx.Err(err))
		}
	}()

	// Readiness is a no-op outside systemd; only the watchdog pinger is
	// opt-in because it spins a ticker for the process lifetime.
	if sent, err := sdaemon.SdNotify(false, sdaemon.SdNotifyReady); err != nil {
		d.log.Warn("sd_notify ready failed", logx.Err(err))
	} else if sent {
		d.log.Debug("sd_notify ready sent")
	}

	var wdDone <-chan struct{}
	if cfg.Daemon.Watchdog {
		wdDone = d.serviceWatchdog(ctx)
	} else {
		closed := make(chan struct{})
		close(closed)
		wdDone = closed
	}

	<-ctx.Done()

	_, _ = sdaemon.SdNotify(false, sdaemon.SdNotifyStopping)

	d.mu.Lock()
	if d.c != nil {
		stopCtx := d.c.Stop()
		d.c = nil
		d.mu.Unlock()
		select {
		case <-stopCtx.Done():
		case <-time.After(30 * time.Second):
			d.log.Warn("cron jobs still running at shutdown deadline")
		}
	} else {
		d.mu.Unlock()
	}

	<-watchDone
	<-wdDone
	d.log.Info("daemon stopped")
	return ctx.Err()
}

// startLocked builds a fresh cron in the venue timezone and registers the
// configured schedules. Callers from Run hold no lock on first start; the
// watch callback holds d.mu.
func (d *Daemon) startLocked(ctx context.Context, cfg *config.Config) error {
	loc := time.FixedZone(fmt.Sprintf("UTC%+d", cfg.Cafe.UTCOffsetHours), cfg.Cafe.UTCOffsetHours*3600)
	c := cron.New(cron.WithParser(d.parser), cron.WithLocation(loc))

	type sched struct {
		name string
		spec string
		fn   func(ctx context.Context) error
	}
	for _, s := range []sched{
		{"measure", cfg.Daemon.MeasureSpec, d.jobs.Measure},
		{"report", cfg.Daemon.ReportSpec, d.jobs.Report},
		{"purge", cfg.Daemon.PurgeSpec, d.jobs.Purge},
	} {
		if s.spec == "" || s.fn == nil {
			continue
		}
		name, fn := s.name, s.fn
		_, err := c.AddFunc(s.spec, func() {
			d.runJob(ctx, name, fn)
		})
		if err != nil {
			return fmt.Errorf("schedule %s (%q): %w", s.name, s.spec, err)
		}
		d.log.Info("schedule registered",
			logx.String("job", s.name), logx.String("spec", s.spec), logx.String("tz", loc.String()))
	}

	c.Start()
	d.c = c
	return nil
}

func (d *Daemon) runJob(ctx context.Context, name string, fn func(ctx context.Context) error) {
	d.runMu.Lock()
	defer d.runMu.Unlock()

	if ctx.Err() != nil {
		return
	}
	started := time.Now()
	d.log.Info("job started", logx.String("job", name))
	if err := fn(ctx); err != nil {
		d.log.Error("job failed",
			logx.String("job", name), logx.Duration("elapsed", time.Since(started)), logx.Err(err))
		return
	}
	d.log.Info("job finished",
		logx.String("job", name), logx.Duration("elapsed", time.Since(started)))
}

// serviceWatchdog pings the systemd watchdog at half its interval when the
// unit has WatchdogSec set. Returns a channel closed when the pinger exits.
func (d *Daemon) serviceWatchdog(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})

	interval, err := sdaemon.SdWatchdogEnabled(false)
	if err != nil || interval == 0 {
		if err != nil {
			d.log.Warn("watchdog detection failed", logx.Err(err))
		}
		close(done)
		return done
	}

	go func() {
		defer close(done)
		t := time.NewTicker(interval / 2)
		defer t.Stop()
		d.log.Info("systemd watchdog enabled", logx.Duration("interval", interval))
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				_, _ = sdaemon.SdNotify(false, sdaemon.SdNotifyWatchdog)
			}
		}
	}()
	return done
}
