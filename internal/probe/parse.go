package probe

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Ookla CLI JSON shape, pointers where the field is required so absence is
// distinguishable from zero:
//
//	{
//	  "timestamp": "2024-01-01T00:00:00Z",
//	  "ping": {"jitter": 1.23, "latency": 4.56},
//	  "download": {"bandwidth": 12345678},   // bytes/sec
//	  "upload": {"bandwidth": 12345678},     // bytes/sec
//	  "server": {"id": 123, "name": "Server Name"},
//	  "isp": "ISP Name",
//	  "result": {"url": "https://..."}
//	}
type toolOutput struct {
	Timestamp string `json:"timestamp"`
	Ping      *struct {
		Jitter  *float64 `json:"jitter"`
		Latency *float64 `json:"latency"`
	} `json:"ping"`
	Download *struct {
		Bandwidth *float64 `json:"bandwidth"`
	} `json:"download"`
	Upload *struct {
		Bandwidth *float64 `json:"bandwidth"`
	} `json:"upload"`
	Server *struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	} `json:"server"`
	ISP    string `json:"isp"`
	Result *struct {
		URL string `json:"url"`
	} `json:"result"`
}

// parseReading converts tool stdout into a Reading. Any missing required
// field is a parse failure.
func parseReading(raw string) (*Reading, error) {
	var out toolOutput
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, newError(KindParse, fmt.Sprintf("decoding tool output: %v", err), err)
	}

	missing := missingFields(&out)
	if len(missing) > 0 {
		return nil, newError(KindParse, "tool output missing required fields: "+strings.Join(missing, ", "), nil)
	}

	r := &Reading{
		MeasuredAt:  out.Timestamp,
		DownloadBps: *out.Download.Bandwidth * 8,
		UploadBps:   *out.Upload.Bandwidth * 8,
		PingMs:      *out.Ping.Latency,
		JitterMs:    *out.Ping.Jitter,
		ISP:         out.ISP,
		Raw:         raw,
	}
	if r.MeasuredAt == "" {
		r.MeasuredAt = nowStamp()
	}
	if out.Server != nil {
		r.ServerID = out.Server.ID
		r.ServerName = out.Server.Name
	}
	if out.Result != nil {
		r.ResultURL = out.Result.URL
	}
	return r, nil
}

func missingFields(out *toolOutput) []string {
	var missing []string
	if out.Ping == nil || out.Ping.Latency == nil {
		missing = append(missing, "ping.latency")
	}
	if out.Ping == nil || out.Ping.Jitter == nil {
		missing = append(missing, "ping.jitter")
	}
	if out.Download == nil || out.Download.Bandwidth == nil {
		missing = append(missing, "download.bandwidth")
	}
	if out.Upload == nil || out.Upload.Bandwidth == nil {
		missing = append(missing, "upload.bandwidth")
	}
	return missing
}
