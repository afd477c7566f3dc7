// Package aggregate folds sparse, irregularly sampled measurements into the
// fixed day-of-week × hour grid the report is built from. All functions are
// total over well-formed input and deterministic: nothing here looks at the
// wall clock.
package aggregate

import (
	"math"
	"sort"
	"strings"
	"time"
)

// Sample is the slice of a persisted measurement the aggregation layer needs.
type Sample struct {
	// MeasuredAt is ISO-8601. A trailing Z marks the value as UTC; without the
	// marker it is taken as venue-local wall time.
	MeasuredAt string
	Score      float64
	OK         bool
}

// Bucket is one non-empty (day-of-week, hour) cell. Day uses Monday=0 ...
// Sunday=6. Cells with no observations are omitted entirely; consumers must
// treat absence as "no data", which is not the same as a zero score.
type Bucket struct {
	Day      int
	Hour     int
	AvgScore float64
	Count    int
}

// stampLayouts cover the Ookla CLI timestamp and second/fraction variants,
// with the UTC marker already stripped.
var stampLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// ParseStamp converts a stored timestamp into venue-local wall time. The
// returned bool reports whether the stamp could be parsed; unparseable stamps
// are skipped by callers rather than failing a whole report cycle.
func ParseStamp(s string, utcOffsetHours int) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	utc := strings.HasSuffix(s, "Z")
	if utc {
		s = strings.TrimSuffix(s, "Z")
	}

	var parsed time.Time
	ok := false
	for _, layout := range stampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			parsed = t
			ok = true
			break
		}
	}
	if !ok {
		return time.Time{}, false
	}

	if utc {
		parsed = parsed.Add(time.Duration(utcOffsetHours) * time.Hour)
	}
	return parsed, true
}

// mondayDow remaps Go's Sunday=0 weekday convention to Monday=0 ... Sunday=6.
func mondayDow(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 6
	}
	return wd - 1
}

// HourlyAverages buckets ok-samples whose local hour falls inside
// [openHour, closeHour) and returns the mean score and observation count per
// (day, hour) cell, ordered by day then hour.
func HourlyAverages(samples []Sample, openHour, closeHour, utcOffsetHours int) []Bucket {
	type cell struct {
		sum   float64
		count int
	}
	cells := make(map[[2]int]*cell)

	for _, s := range samples {
		if !s.OK {
			continue
		}
		local, ok := ParseStamp(s.MeasuredAt, utcOffsetHours)
		if !ok {
			continue
		}
		hour := local.Hour()
		if hour < openHour || hour >= closeHour {
			continue
		}
		key := [2]int{mondayDow(local), hour}
		c := cells[key]
		if c == nil {
			c = &cell{}
			cells[key] = c
		}
		c.sum += s.Score
		c.count++
	}

	buckets := make([]Bucket, 0, len(cells))
	for key, c := range cells {
		buckets = append(buckets, Bucket{
			Day:      key[0],
			Hour:     key[1],
			AvgScore: round1(c.sum / float64(c.count)),
			Count:    c.count,
		})
	}
	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].Day != buckets[j].Day {
			return buckets[i].Day < buckets[j].Day
		}
		return buckets[i].Hour < buckets[j].Hour
	})
	return buckets
}

// CoverageRatio is observed distinct cells over the total possible cells in a
// full week of open hours. Returns 0 when the open window is empty.
func CoverageRatio(buckets []Bucket, openHour, closeHour int) float64 {
	possible := 7 * (closeHour - openHour)
	if possible <= 0 {
		return 0
	}
	seen := make(map[[2]int]struct{}, len(buckets))
	for _, b := range buckets {
		seen[[2]int{b.Day, b.Hour}] = struct{}{}
	}
	return float64(len(seen)) / float64(possible)
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
