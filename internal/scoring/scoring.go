// Package scoring turns the four raw speedtest metrics into a single 0-100
// comfort score plus a qualitative label. Weights, thresholds and label bands
// come from configuration so they can be re-tuned once real data accumulates.
package scoring

import "math"

// Weights for the four factors. They are expected to sum to 1.0 but this is
// deliberately not enforced; operators sometimes over/under-weight on purpose
// while experimenting.
type Weights struct {
	Download float64
	Upload   float64
	Ping     float64
	Jitter   float64
}

// Thresholds define the "good enough" point of each metric. Download/upload at
// or above their threshold contribute full marks; ping/jitter at or above
// theirs contribute nothing.
type Thresholds struct {
	DownloadMbps float64
	UploadMbps   float64
	PingMs       float64
	JitterMs     float64
}

// Band maps a closed score range to a human label.
type Band struct {
	Min   float64
	Max   float64
	Label string
}

// LabelUnknown is returned when no configured band matches a score.
const LabelUnknown = "unknown"

// Score computes the comfort score in [0,100], rounded to one decimal place.
//
// Higher-is-better metrics are normalized as min(value/threshold, 1); lower-is
// better ones as max(1-value/threshold, 0). The clipping means values past a
// threshold never push a factor's contribution outside [0,1]. Negative inputs
// are not validated.
func Score(downloadMbps, uploadMbps, pingMs, jitterMs float64, w Weights, t Thresholds) float64 {
	download := math.Min(downloadMbps/t.DownloadMbps, 1.0)
	upload := math.Min(uploadMbps/t.UploadMbps, 1.0)
	ping := math.Max(1.0-pingMs/t.PingMs, 0.0)
	jitter := math.Max(1.0-jitterMs/t.JitterMs, 0.0)

	score := (w.Download*download + w.Upload*upload + w.Ping*ping + w.Jitter*jitter) * 100

	score = math.Max(0.0, math.Min(100.0, score))
	return math.Round(score*10) / 10
}

// Label returns the label of the first band with Min <= score <= Max, or
// LabelUnknown when no band matches.
func Label(score float64, bands []Band) string {
	for _, b := range bands {
		if b.Min <= score && score <= b.Max {
			return b.Label
		}
	}
	return LabelUnknown
}
