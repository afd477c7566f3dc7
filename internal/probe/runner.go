package probe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"netcomfort/pkg/logx"
)

// toolArgs request machine-readable output and suppress the interactive
// license prompts that would otherwise hang an unattended run.
var toolArgs = []string{"--format=json", "--accept-license", "--accept-gdpr"}

const (
	defaultTimeout   = 2 * time.Minute
	defaultRetryWait = 10 * time.Second
	// killGrace bounds how long we wait for the process to die after a
	// timeout before Wait gives up. Prevents orphaned subprocesses.
	killGrace = 5 * time.Second
)

// Config controls a probe run.
type Config struct {
	// Command is the speedtest CLI name or path. Bare names are resolved via
	// PATH and a short list of well-known install locations.
	Command string
	// Timeout bounds one attempt's wall clock.
	Timeout time.Duration
	// RetryCount is the total number of attempts (not extra retries).
	RetryCount int
	// RetryWait is slept between attempts.
	RetryWait time.Duration
	// FallbackEmbedded switches to the in-process speedtest engine when the
	// CLI cannot be located at all.
	FallbackEmbedded bool
}

// Runner executes one measurement cycle: spawn, classify, retry.
//
// Exactly one external process runs per attempt; the only state shared
// between attempts is the attempt counter and the last error.
type Runner struct {
	cfg      Config
	path     string
	embedded bool
	log      logx.Logger
}

func NewRunner(cfg Config, log logx.Logger) *Runner {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RetryCount < 1 {
		cfg.RetryCount = 1
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = defaultRetryWait
	}

	r := &Runner{cfg: cfg, log: log}
	r.path = resolveCommand(cfg.Command)
	if cfg.FallbackEmbedded {
		if _, err := exec.LookPath(r.path); err != nil {
			r.embedded = true
			log.Warn("speedtest CLI not found, using embedded engine",
				logx.String("command", cfg.Command))
		}
	}
	return r
}

// Run executes up to RetryCount attempts and returns the first successful
// reading. Transient and timeout failures are retried after RetryWait; parse
// failures escalate immediately. When every attempt fails the last error is
// wrapped as KindExhausted.
func (r *Runner) Run(ctx context.Context) (*Reading, error) {
	if ctx == nil {
		return nil, errors.New("nil context")
	}

	var last *Error
	for attempt := 1; attempt <= r.cfg.RetryCount; attempt++ {
		r.log.Info("starting measurement attempt",
			logx.Int("attempt", attempt), logx.Int("of", r.cfg.RetryCount))

		reading, err := r.attemptOnce(ctx)
		if err == nil {
			r.log.Info("measurement succeeded",
				logx.Int("attempt", attempt),
				logx.Float64("download_mbps", reading.DownloadMbps()),
				logx.Float64("ping_ms", reading.PingMs))
			return reading, nil
		}

		var pe *Error
		if !errors.As(err, &pe) {
			pe = newError(KindTransient, err.Error(), err)
		}
		if pe.Kind == KindParse {
			// Malformed output will not improve on retry.
			pe.Attempts = attempt
			return nil, pe
		}

		last = pe
		r.log.Warn("measurement attempt failed",
			logx.Int("attempt", attempt),
			logx.String("kind", pe.Kind.String()),
			logx.Err(pe))

		if attempt < r.cfg.RetryCount {
			select {
			case <-time.After(r.cfg.RetryWait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	return nil, &Error{
		Kind:     KindExhausted,
		Message:  last.Message,
		Attempts: r.cfg.RetryCount,
		Err:      last,
	}
}

func (r *Runner) attemptOnce(ctx context.Context) (*Reading, error) {
	if r.embedded {
		return r.runEmbedded(ctx)
	}
	return r.runTool(ctx)
}

func (r *Runner) runTool(ctx context.Context) (*Reading, error) {
	actx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(actx, r.path, toolArgs...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = killGrace

	err := cmd.Run()

	if actx.Err() == context.DeadlineExceeded {
		return nil, newError(KindTimeout,
			fmt.Sprintf("timed out after %s", r.cfg.Timeout), actx.Err())
	}
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			var ee *exec.ExitError
			if errors.As(err, &ee) {
				msg = fmt.Sprintf("exit code %d", ee.ExitCode())
			} else {
				msg = err.Error()
			}
		}
		return nil, newError(KindTransient, msg, err)
	}

	return parseReading(stdout.String())
}
