package probe

import "time"

// timestampLayout is how readings stamp themselves when the tool omits a
// timestamp. The trailing Z marks the value as UTC for the aggregation layer.
const timestampLayout = "2006-01-02T15:04:05Z"

// Reading is one successful probe. Bandwidth is carried in bits/sec (the tool
// reports bytes/sec; the runner multiplies by 8). Callers divide by 1e6 for
// Mbps.
type Reading struct {
	// MeasuredAt is the tool-reported timestamp, ISO-8601. UTC values carry a
	// trailing Z; values without the marker are venue-local wall time.
	MeasuredAt string

	DownloadBps float64
	UploadBps   float64
	PingMs      float64
	JitterMs    float64

	ServerID   int64
	ServerName string
	ISP        string
	ResultURL  string

	// Raw is the tool's stdout, kept for diagnostics.
	Raw string
}

func (r *Reading) DownloadMbps() float64 { return r.DownloadBps / 1_000_000 }
func (r *Reading) UploadMbps() float64   { return r.UploadBps / 1_000_000 }

func nowStamp() string { return time.Now().UTC().Format(timestampLayout) }
