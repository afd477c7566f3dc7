// Package report turns aggregated buckets into the operator-facing outputs:
// a fixed-structure text summary and a heatmap + trend-line PNG.
package report

import (
	"fmt"
	"strings"
	"time"

	"netcomfort/internal/aggregate"
)

// noData is the sentinel used whenever a summary line has nothing to report.
const noData = "no data"

// SummaryInput carries everything the summary needs; nothing here reads the
// clock or the database, so a fixed input always produces the same text.
type SummaryInput struct {
	GeneratedAt  time.Time
	LookbackDays int
	OpenHour     int
	CloseHour    int
	Buckets      []aggregate.Bucket
	Trend        aggregate.Trend
}

// BuildSummary renders the multi-line trend summary. Every line is present
// even when the dataset is empty; missing values become sentinels instead of
// errors so a freshly installed tracker still produces a valid report.
func BuildSummary(in SummaryInput) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Comfort trend summary\n")
	fmt.Fprintf(&b, "Generated: %s\n", in.GeneratedAt.Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "Window: last %d days, open hours %02d:00-%02d:00\n",
		in.LookbackDays, in.OpenHour, in.CloseHour)

	coverage := aggregate.CoverageRatio(in.Buckets, in.OpenHour, in.CloseHour)
	possible := 7 * (in.CloseHour - in.OpenHour)
	fmt.Fprintf(&b, "Coverage: %.1f%% of open-hour cells observed (%d/%d)\n",
		coverage*100, len(in.Buckets), possible)

	best, worst, ok := bestWorstHours(in.Buckets)
	if ok {
		fmt.Fprintf(&b, "Best hour: %02d:00 (avg %.1f)\n", best.hour, best.mean)
		fmt.Fprintf(&b, "Worst hour: %02d:00 (avg %.1f)\n", worst.hour, worst.mean)
	} else {
		fmt.Fprintf(&b, "Best hour: %s\n", noData)
		fmt.Fprintf(&b, "Worst hour: %s\n", noData)
	}

	fmt.Fprintf(&b, "Trend (24h vs prior 24h): %s\n", trendLine(in.Trend))

	return b.String()
}

type hourMean struct {
	hour int
	mean float64
}

// bestWorstHours collapses buckets across days to a per-hour mean, weighted
// by observation count so a busy hour is not outvoted by a single reading.
func bestWorstHours(buckets []aggregate.Bucket) (best, worst hourMean, ok bool) {
	type acc struct {
		sum   float64
		count int
	}
	byHour := make(map[int]*acc)
	for _, b := range buckets {
		a := byHour[b.Hour]
		if a == nil {
			a = &acc{}
			byHour[b.Hour] = a
		}
		a.sum += b.AvgScore * float64(b.Count)
		a.count += b.Count
	}
	if len(byHour) == 0 {
		return hourMean{}, hourMean{}, false
	}

	first := true
	for hour, a := range byHour {
		mean := a.sum / float64(a.count)
		hm := hourMean{hour: hour, mean: mean}
		if first {
			best, worst = hm, hm
			first = false
			continue
		}
		// Ties break toward the earlier hour so output stays stable.
		if mean > best.mean || (mean == best.mean && hour < best.hour) {
			best = hm
		}
		if mean < worst.mean || (mean == worst.mean && hour < worst.hour) {
			worst = hm
		}
	}
	return best, worst, true
}

func trendLine(tr aggregate.Trend) string {
	switch tr.Kind {
	case aggregate.TrendCompared:
		direction := "improved"
		if !tr.Improved {
			direction = "worsened"
		}
		return fmt.Sprintf("%s by %.1f points (%.1f vs %.1f)",
			direction, abs(tr.Delta), tr.CurrentMean, tr.PriorMean)
	case aggregate.TrendCurrentOnly:
		return fmt.Sprintf("current 24h avg %.1f, no prior window to compare", tr.CurrentMean)
	default:
		return "insufficient data"
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
