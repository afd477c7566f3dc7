package aggregate

import "time"

// TrendKind describes which comparison windows had data.
type TrendKind int

const (
	// TrendInsufficient: neither window has observations.
	TrendInsufficient TrendKind = iota
	// TrendCurrentOnly: only the most recent 24h window has observations.
	TrendCurrentOnly
	// TrendCompared: both windows have observations; Delta and Improved are set.
	TrendCompared
)

// Trend is the rolling-window comparison of the last 24h against the 24h
// before it.
type Trend struct {
	Kind        TrendKind
	CurrentMean float64
	PriorMean   float64
	Delta       float64
	// Improved is true when Delta >= 0.
	Improved bool
}

// TrendDelta splits the sample set at its maximum observed timestamp rather
// than wall-clock now, so a fixed dataset always produces the same answer.
// Samples older than 48h before the reference point are ignored.
func TrendDelta(samples []Sample, utcOffsetHours int) Trend {
	type obs struct {
		at    time.Time
		score float64
	}
	all := make([]obs, 0, len(samples))
	var ref time.Time
	for _, s := range samples {
		if !s.OK {
			continue
		}
		at, ok := ParseStamp(s.MeasuredAt, utcOffsetHours)
		if !ok {
			continue
		}
		all = append(all, obs{at: at, score: s.Score})
		if at.After(ref) {
			ref = at
		}
	}
	if len(all) == 0 {
		return Trend{Kind: TrendInsufficient}
	}

	currentStart := ref.Add(-24 * time.Hour)
	priorStart := ref.Add(-48 * time.Hour)

	var curSum, priSum float64
	var curN, priN int
	for _, o := range all {
		switch {
		case o.at.After(currentStart):
			curSum += o.score
			curN++
		case o.at.After(priorStart):
			priSum += o.score
			priN++
		}
	}

	if curN == 0 {
		// Unreachable in practice: ref itself always lands in the current
		// window. Kept so the zero-value path stays total.
		return Trend{Kind: TrendInsufficient}
	}
	cur := round1(curSum / float64(curN))
	if priN == 0 {
		return Trend{Kind: TrendCurrentOnly, CurrentMean: cur}
	}
	pri := round1(priSum / float64(priN))
	delta := round1(cur - pri)
	return Trend{
		Kind:        TrendCompared,
		CurrentMean: cur,
		PriorMean:   pri,
		Delta:       delta,
		Improved:    delta >= 0,
	}
}
