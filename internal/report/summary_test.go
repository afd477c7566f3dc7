package report

import (
	"strings"
	"testing"
	"time"

	"netcomfort/internal/aggregate"
)

func TestBuildSummaryFullData(t *testing.T) {
	in := SummaryInput{
		GeneratedAt:  time.Date(2024, 6, 3, 14, 30, 0, 0, time.UTC),
		LookbackDays: 28,
		OpenHour:     9,
		CloseHour:    22,
		Buckets: []aggregate.Bucket{
			{Day: 0, Hour: 9, AvgScore: 90, Count: 2},
			{Day: 0, Hour: 14, AvgScore: 40, Count: 1},
			{Day: 1, Hour: 9, AvgScore: 60, Count: 1},
		},
		Trend: aggregate.Trend{
			Kind:        aggregate.TrendCompared,
			CurrentMean: 72.5,
			PriorMean:   68.0,
			Delta:       4.5,
			Improved:    true,
		},
	}

	out := BuildSummary(in)
	for _, want := range []string{
		"Comfort trend summary\n",
		"Generated: 2024-06-03 14:30\n",
		"Window: last 28 days, open hours 09:00-22:00\n",
		"(3/91)\n",
		// Hour 9 mean is (90*2+60*1)/3 = 80, hour 14 is 40.
		"Best hour: 09:00 (avg 80.0)\n",
		"Worst hour: 14:00 (avg 40.0)\n",
		"Trend (24h vs prior 24h): improved by 4.5 points (72.5 vs 68.0)\n",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestBuildSummaryEmpty(t *testing.T) {
	in := SummaryInput{
		GeneratedAt:  time.Date(2024, 6, 3, 14, 30, 0, 0, time.UTC),
		LookbackDays: 28,
		OpenHour:     9,
		CloseHour:    22,
		Trend:        aggregate.Trend{Kind: aggregate.TrendInsufficient},
	}

	out := BuildSummary(in)
	for _, want := range []string{
		"Coverage: 0.0% of open-hour cells observed (0/91)\n",
		"Best hour: no data\n",
		"Worst hour: no data\n",
		"Trend (24h vs prior 24h): insufficient data\n",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestBuildSummaryWorsenedAndCurrentOnly(t *testing.T) {
	worse := BuildSummary(SummaryInput{
		OpenHour: 9, CloseHour: 22,
		Trend: aggregate.Trend{
			Kind:        aggregate.TrendCompared,
			CurrentMean: 50, PriorMean: 60, Delta: -10, Improved: false,
		},
	})
	if !strings.Contains(worse, "worsened by 10.0 points (50.0 vs 60.0)") {
		t.Fatalf("worsened line wrong:\n%s", worse)
	}

	cur := BuildSummary(SummaryInput{
		OpenHour: 9, CloseHour: 22,
		Trend: aggregate.Trend{Kind: aggregate.TrendCurrentOnly, CurrentMean: 77.7},
	})
	if !strings.Contains(cur, "current 24h avg 77.7, no prior window to compare") {
		t.Fatalf("current-only line wrong:\n%s", cur)
	}
}

func TestBestWorstTiesPreferEarlierHour(t *testing.T) {
	best, worst, ok := bestWorstHours([]aggregate.Bucket{
		{Day: 0, Hour: 12, AvgScore: 80, Count: 1},
		{Day: 1, Hour: 10, AvgScore: 80, Count: 1},
		{Day: 2, Hour: 16, AvgScore: 20, Count: 1},
		{Day: 3, Hour: 11, AvgScore: 20, Count: 1},
	})
	if !ok {
		t.Fatal("expected data")
	}
	if best.hour != 10 {
		t.Fatalf("best hour = %d, want 10", best.hour)
	}
	if worst.hour != 11 {
		t.Fatalf("worst hour = %d, want 11", worst.hour)
	}
}
