package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"netcomfort/internal/app"
	"netcomfort/internal/daemon"
)

const usage = `usage: netcomfort [-config path] <command>

commands:
  measure   run one speedtest, score and store the result
  report    aggregate stored measurements into a heatmap image + summary
            [-days N] [-o path] [-granularity daily|hourly]
  purge     delete rows older than the retention window
  daemon    run measure/report/purge on their cron schedules
`

func main() {
	os.Exit(run())
}

func run() int {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config yaml")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	cmd := flag.Arg(0)
	if cmd == "" {
		flag.Usage()
		return 2
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, cleanup, err := app.New(cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		return 1
	}
	defer cleanup()

	switch cmd {
	case "measure":
		err = a.Measure(ctx)
	case "report":
		fs := flag.NewFlagSet("report", flag.ExitOnError)
		var opts app.ReportOptions
		fs.IntVar(&opts.LookbackDays, "days", 0, "lookback window in days (default from config)")
		fs.StringVar(&opts.OutputPath, "o", "", "output image path (default derived from date)")
		fs.StringVar(&opts.Granularity, "granularity", "", `default filename granularity: "daily" or "hourly"`)
		_ = fs.Parse(flag.Args()[1:])
		err = a.Report(ctx, opts)
	case "purge":
		err = a.Purge(ctx)
	case "daemon":
		d := daemon.New(a.Manager, daemon.Jobs{
			Measure: a.Measure,
			Report: func(ctx context.Context) error {
				return a.Report(ctx, app.ReportOptions{})
			},
			Purge: a.Purge,
		}, a.Log)
		err = d.Run(ctx)
		if err == context.Canceled {
			err = nil
		}
	default:
		flag.Usage()
		return 2
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}
