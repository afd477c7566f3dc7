package report

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/fogleman/gg"

	"netcomfort/internal/aggregate"
	"netcomfort/pkg/logx"
)

// TrendPoint is one ok-measurement on the 24h line chart.
type TrendPoint struct {
	At           time.Time
	DownloadMbps float64
	PingMs       float64
}

// Config controls the renderer.
type Config struct {
	OpenHour  int
	CloseHour int
	AssetsDir string
	FontPath  string
	// Granularity picks the default filename: "daily" or "hourly".
	Granularity string
}

// Renderer draws the composite report image: the day×hour heatmap on top,
// the last-24h trend lines below, and the text summary at the bottom.
type Renderer struct {
	cfg Config
	log logx.Logger
}

func NewRenderer(cfg Config, log logx.Logger) *Renderer {
	return &Renderer{cfg: cfg, log: log}
}

const (
	canvasW = 1400
	canvasH = 1060

	heatTop    = 70.0
	heatLeft   = 90.0
	heatRight  = 60.0
	heatHeight = 420.0

	chartTop    = heatTop + heatHeight + 90
	chartHeight = 260.0

	summaryTop = chartTop + chartHeight + 50
)

var dayNames = [7]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// DefaultOutputPath builds the conventional output name inside the assets
// directory for the given generation time.
func (r *Renderer) DefaultOutputPath(now time.Time) string {
	if r.cfg.Granularity == "daily" {
		return filepath.Join(r.cfg.AssetsDir, now.Format("2006-01-02")+".png")
	}
	return filepath.Join(r.cfg.AssetsDir, now.Format("2006-01-02_1500")+".png")
}

// Render writes the PNG to path, creating parent directories as needed. An
// empty dataset still renders: missing heatmap cells stay gray and the chart
// area explains itself.
func (r *Renderer) Render(path string, lookbackDays int, buckets []aggregate.Bucket, recent []TrendPoint, summary string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	dc := gg.NewContext(canvasW, canvasH)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	labelFace := loadFace(r.cfg.FontPath, 14, r.log)
	titleFace := loadFace(r.cfg.FontPath, 20, r.log)

	dc.SetFontFace(titleFace)
	dc.SetRGB(0.1, 0.1, 0.1)
	dc.DrawStringAnchored(
		fmt.Sprintf("Comfort heatmap by hour (last %d days)", lookbackDays),
		canvasW/2, heatTop-35, 0.5, 0.5)

	dc.SetFontFace(labelFace)
	r.drawHeatmap(dc, buckets)
	r.drawColorScale(dc)

	dc.SetFontFace(titleFace)
	dc.DrawStringAnchored("Last 24 hours", canvasW/2, chartTop-30, 0.5, 0.5)
	dc.SetFontFace(labelFace)
	r.drawTrendChart(dc, recent)

	dc.SetFontFace(labelFace)
	dc.SetRGB(0.15, 0.15, 0.15)
	dc.DrawStringWrapped(summary, heatLeft, summaryTop, 0, 0, canvasW-heatLeft-heatRight, 1.45, gg.AlignLeft)

	if err := dc.SavePNG(path); err != nil {
		return fmt.Errorf("save report image: %w", err)
	}
	r.log.Info("report image written", logx.String("path", path))
	return nil
}

func (r *Renderer) drawHeatmap(dc *gg.Context, buckets []aggregate.Bucket) {
	hours := r.cfg.CloseHour - r.cfg.OpenHour
	if hours <= 0 {
		return
	}
	cellW := (canvasW - heatLeft - heatRight) / float64(hours)
	cellH := heatHeight / 7

	scores := make(map[[2]int]float64, len(buckets))
	for _, b := range buckets {
		scores[[2]int{b.Day, b.Hour}] = b.AvgScore
	}

	for day := 0; day < 7; day++ {
		y := heatTop + float64(day)*cellH
		dc.SetRGB(0.2, 0.2, 0.2)
		dc.DrawStringAnchored(dayNames[day], heatLeft-14, y+cellH/2, 1, 0.5)

		for col := 0; col < hours; col++ {
			x := heatLeft + float64(col)*cellW
			score, ok := scores[[2]int{day, r.cfg.OpenHour + col}]

			if ok {
				cr, cg, cb := scoreColor(score)
				dc.SetRGB255(cr, cg, cb)
			} else {
				dc.SetRGB255(204, 204, 204)
			}
			dc.DrawRectangle(x, y, cellW, cellH)
			dc.Fill()

			dc.SetRGB(1, 1, 1)
			dc.SetLineWidth(1.5)
			dc.DrawRectangle(x, y, cellW, cellH)
			dc.Stroke()

			label := "-"
			if ok {
				label = fmt.Sprintf("%.0f", score)
			}
			dc.SetRGB(0.1, 0.1, 0.1)
			dc.DrawStringAnchored(label, x+cellW/2, y+cellH/2, 0.5, 0.5)
		}
	}

	// Hour labels along the bottom edge.
	dc.SetRGB(0.2, 0.2, 0.2)
	for col := 0; col < hours; col++ {
		x := heatLeft + (float64(col)+0.5)*cellW
		dc.DrawStringAnchored(fmt.Sprintf("%02d", r.cfg.OpenHour+col), x, heatTop+heatHeight+16, 0.5, 0.5)
	}
}

func (r *Renderer) drawColorScale(dc *gg.Context) {
	const (
		barW = 300.0
		barH = 12.0
	)
	x0 := canvasW - heatRight - barW
	y := heatTop + heatHeight + 40
	steps := 60
	for i := 0; i < steps; i++ {
		cr, cg, cb := scoreColor(float64(i) / float64(steps-1) * 100)
		dc.SetRGB255(cr, cg, cb)
		dc.DrawRectangle(x0+float64(i)*barW/float64(steps), y, barW/float64(steps)+1, barH)
		dc.Fill()
	}
	dc.SetRGB(0.2, 0.2, 0.2)
	dc.DrawStringAnchored("0", x0, y+barH+12, 0.5, 0.5)
	dc.DrawStringAnchored("100", x0+barW, y+barH+12, 0.5, 0.5)
	dc.DrawStringAnchored("comfort score", x0+barW/2, y-8, 0.5, 0.5)
}

func (r *Renderer) drawTrendChart(dc *gg.Context, recent []TrendPoint) {
	left := heatLeft
	right := canvasW - heatRight
	top := chartTop
	bottom := chartTop + chartHeight

	dc.SetRGB(0.3, 0.3, 0.3)
	dc.SetLineWidth(1)
	dc.DrawLine(left, bottom, right, bottom)
	dc.DrawLine(left, top, left, bottom)
	dc.Stroke()

	if len(recent) == 0 {
		dc.SetRGB(0.5, 0.5, 0.5)
		dc.DrawStringAnchored("no measurements in the last 24 hours",
			(left+right)/2, (top+bottom)/2, 0.5, 0.5)
		return
	}

	start := recent[0].At
	end := recent[len(recent)-1].At
	span := end.Sub(start)
	if span <= 0 {
		span = time.Hour
	}

	maxDL, maxPing := 1.0, 1.0
	for _, p := range recent {
		maxDL = math.Max(maxDL, p.DownloadMbps)
		maxPing = math.Max(maxPing, p.PingMs)
	}

	xAt := func(t time.Time) float64 {
		return left + (right-left)*t.Sub(start).Seconds()/span.Seconds()
	}
	yFor := func(v, max float64) float64 {
		return bottom - (chartHeight-20)*v/max
	}

	plot := func(value func(TrendPoint) float64, max float64) {
		for i := 1; i < len(recent); i++ {
			dc.DrawLine(
				xAt(recent[i-1].At), yFor(value(recent[i-1]), max),
				xAt(recent[i].At), yFor(value(recent[i]), max))
		}
		dc.Stroke()
		for _, p := range recent {
			dc.DrawCircle(xAt(p.At), yFor(value(p), max), 2.5)
			dc.Fill()
		}
	}

	dc.SetRGB255(33, 150, 243) // download
	dc.SetLineWidth(1.8)
	plot(func(p TrendPoint) float64 { return p.DownloadMbps }, maxDL)

	dc.SetRGB255(255, 87, 34) // ping
	plot(func(p TrendPoint) float64 { return p.PingMs }, maxPing)

	// Legend and axis hints.
	dc.SetRGB255(33, 150, 243)
	dc.DrawStringAnchored(fmt.Sprintf("download (max %.0f Mbps)", maxDL), right-220, top+14, 0, 0.5)
	dc.SetRGB255(255, 87, 34)
	dc.DrawStringAnchored(fmt.Sprintf("ping (max %.0f ms)", maxPing), right-220, top+32, 0, 0.5)

	dc.SetRGB(0.2, 0.2, 0.2)
	for t := start.Truncate(2 * time.Hour); !t.After(end); t = t.Add(2 * time.Hour) {
		if t.Before(start) {
			continue
		}
		x := xAt(t)
		dc.DrawLine(x, bottom, x, bottom+5)
		dc.Stroke()
		dc.DrawStringAnchored(t.Format("15:04"), x, bottom+16, 0.5, 0.5)
	}
}

// scoreColor maps 0-100 onto a red→yellow→green ramp.
func scoreColor(score float64) (int, int, int) {
	score = math.Max(0, math.Min(100, score))
	lerp := func(a, b int, f float64) int { return a + int(f*float64(b-a)) }
	if score < 50 {
		f := score / 50
		return lerp(214, 247, f), lerp(69, 202, f), lerp(65, 24, f)
	}
	f := (score - 50) / 50
	return lerp(247, 46, f), lerp(202, 139, f), lerp(24, 87, f)
}

// WriteSummaryFile writes the text summary next to the image so it can be
// consumed without an image viewer.
func WriteSummaryFile(path, summary string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, []byte(summary), 0o644)
}
