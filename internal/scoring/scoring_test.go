package scoring

import "testing"

func defaultWeights() Weights {
	return Weights{Download: 0.35, Upload: 0.20, Ping: 0.30, Jitter: 0.15}
}

func defaultThresholds() Thresholds {
	return Thresholds{DownloadMbps: 100, UploadMbps: 50, PingMs: 100, JitterMs: 50}
}

func defaultBands() []Band {
	return []Band{
		{Min: 90, Max: 100, Label: "excellent"},
		{Min: 70, Max: 89, Label: "comfortable"},
		{Min: 50, Max: 69, Label: "unstable"},
		{Min: 0, Max: 49, Label: "poor"},
	}
}

func TestScorePerfect(t *testing.T) {
	got := Score(100, 50, 0, 0, defaultWeights(), defaultThresholds())
	if got != 100.0 {
		t.Fatalf("expected 100.0, got %v", got)
	}
}

func TestScoreWorst(t *testing.T) {
	got := Score(0, 0, 100, 50, defaultWeights(), defaultThresholds())
	if got != 0.0 {
		t.Fatalf("expected 0.0, got %v", got)
	}
}

func TestScoreMidpoint(t *testing.T) {
	// Every factor normalized to 0.5 with weights summing to 1.0.
	got := Score(50, 25, 50, 25, defaultWeights(), defaultThresholds())
	if got != 50.0 {
		t.Fatalf("expected 50.0, got %v", got)
	}
}

func TestScoreClipsAboveThreshold(t *testing.T) {
	at := Score(100, 50, 0, 0, defaultWeights(), defaultThresholds())
	above := Score(500, 200, 0, 0, defaultWeights(), defaultThresholds())
	if above != at {
		t.Fatalf("values past the threshold changed the score: %v vs %v", above, at)
	}
}

func TestScoreWithinRange(t *testing.T) {
	cases := []struct{ dl, ul, ping, jitter float64 }{
		{0, 0, 0, 0},
		{1000, 1000, 0, 0},
		{0, 0, 1000, 1000},
		{12.5, 3.2, 48.1, 9.9},
		{100, 50, 100, 50},
	}
	for _, c := range cases {
		got := Score(c.dl, c.ul, c.ping, c.jitter, defaultWeights(), defaultThresholds())
		if got < 0 || got > 100 {
			t.Fatalf("score out of range for %+v: %v", c, got)
		}
	}
}

func TestScoreMonotonic(t *testing.T) {
	w, th := defaultWeights(), defaultThresholds()
	base := Score(40, 20, 50, 20, w, th)

	if got := Score(60, 20, 50, 20, w, th); got < base {
		t.Fatalf("score decreased when download improved: %v < %v", got, base)
	}
	if got := Score(40, 30, 50, 20, w, th); got < base {
		t.Fatalf("score decreased when upload improved: %v < %v", got, base)
	}
	if got := Score(40, 20, 80, 20, w, th); got > base {
		t.Fatalf("score increased when ping worsened: %v > %v", got, base)
	}
	if got := Score(40, 20, 50, 40, w, th); got > base {
		t.Fatalf("score increased when jitter worsened: %v > %v", got, base)
	}
}

func TestScoreRounding(t *testing.T) {
	got := Score(33.33, 16.67, 66.67, 33.33, defaultWeights(), defaultThresholds())
	if got != float64(int(got*10))/10 {
		t.Fatalf("score not rounded to one decimal: %v", got)
	}
}

func TestLabelBands(t *testing.T) {
	bands := defaultBands()
	cases := []struct {
		score float64
		want  string
	}{
		{100, "excellent"},
		{90, "excellent"},
		{89, "comfortable"},
		{70, "comfortable"},
		{69, "unstable"},
		{50, "unstable"},
		{49, "poor"},
		{0, "poor"},
	}
	for _, c := range cases {
		if got := Label(c.score, bands); got != c.want {
			t.Fatalf("Label(%v) = %q, want %q", c.score, got, c.want)
		}
	}
}

func TestLabelNoMatch(t *testing.T) {
	if got := Label(55.5, []Band{{Min: 0, Max: 10, Label: "low"}}); got != LabelUnknown {
		t.Fatalf("expected %q, got %q", LabelUnknown, got)
	}
	if got := Label(5, nil); got != LabelUnknown {
		t.Fatalf("expected %q for nil bands, got %q", LabelUnknown, got)
	}
}
