package probe

import (
	"context"
	"fmt"
	"math"
	"sort"

	st "github.com/showwin/speedtest-go/speedtest"
)

// runEmbedded measures with the speedtest-go library instead of the Ookla
// CLI. Used only when the CLI binary cannot be located and the fallback is
// enabled. Failures are classified transient so the normal retry path
// applies; timeouts fall out of the attempt context like CLI runs do.
func (r *Runner) runEmbedded(ctx context.Context) (*Reading, error) {
	actx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	client := st.New()
	defer func() {
		client.Snapshots().Clean()
		client.Reset()
	}()

	user, err := client.FetchUserInfoContext(actx)
	if err != nil {
		return nil, r.classifyEmbedded(actx, fmt.Errorf("fetch user info: %w", err))
	}

	servers, err := client.FetchServerListContext(actx)
	if err != nil {
		return nil, r.classifyEmbedded(actx, fmt.Errorf("fetch server list: %w", err))
	}
	if a := servers.Available(); a != nil {
		servers = *a
	}
	if len(servers) == 0 {
		return nil, newError(KindTransient, "no speedtest servers available", nil)
	}

	sort.Slice(servers, func(i, j int) bool { return servers[i].Distance < servers[j].Distance })
	server := servers[0]

	if err := server.PingTestContext(actx, nil); err != nil {
		return nil, r.classifyEmbedded(actx, fmt.Errorf("ping test: %w", err))
	}
	if err := server.DownloadTestContext(actx); err != nil {
		return nil, r.classifyEmbedded(actx, fmt.Errorf("download test: %w", err))
	}
	if err := server.UploadTestContext(actx); err != nil {
		return nil, r.classifyEmbedded(actx, fmt.Errorf("upload test: %w", err))
	}

	jitterMs := float64(server.Jitter.Milliseconds())
	if jitterMs <= 0 {
		jitterMs = math.Max(0.1, float64(server.Latency.Milliseconds())*0.1)
	}

	return &Reading{
		MeasuredAt:  nowStamp(),
		DownloadBps: server.DLSpeed.Mbps() * 1_000_000,
		UploadBps:   server.ULSpeed.Mbps() * 1_000_000,
		PingMs:      float64(server.Latency.Milliseconds()),
		JitterMs:    jitterMs,
		ServerName:  server.Sponsor,
		ISP:         user.Isp,
	}, nil
}

func (r *Runner) classifyEmbedded(ctx context.Context, err error) error {
	if ctx.Err() == context.DeadlineExceeded {
		return newError(KindTimeout, fmt.Sprintf("timed out after %s", r.cfg.Timeout), ctx.Err())
	}
	return newError(KindTransient, err.Error(), err)
}
