package dashboard

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"

	"github.com/torosent/pipefire/internal/clientmetrics"
	"github.com/torosent/pipefire/internal/console"
	"github.com/torosent/pipefire/internal/metrics"
	"github.com/torosent/pipefire/internal/runner"
)

// Source is the live run the dashboard draws.
type Source interface {
	Snapshot() runner.Snapshot
	RoundTrip() metrics.Stats
	Transfer() clientmetrics.Snapshot
}

// RunInfo holds run parameters for display.
type RunInfo struct {
	Target        string      // host:port
	Mode          runner.Mode // send protocol
	Concurrency   int         // worker connections
	PerConnection int64       // responses per connection, -1 = unbounded
	BatchSize     int         // requests per pipelined write
	ConnectRate   int         // connections per second (0 = unlimited)
	RequestBytes  int         // size of one request
	ConfigFile    string      // Path to config file if used
}

// Dashboard renders a live terminal UI for a run.
type Dashboard struct {
	source       Source
	ctx          context.Context
	cancel       context.CancelFunc
	shutdownFunc func()
	wg           sync.WaitGroup
	mu           sync.Mutex

	// Widgets
	grid            *ui.Grid
	rpsSparkline    *widgets.SparklineGroup
	progressGauge   *widgets.Gauge
	rpsGauge        *widgets.Gauge
	connectionsPara *widgets.Paragraph
	latencyPara     *widgets.Paragraph
	transferPara    *widgets.Paragraph
	summaryPara     *widgets.Paragraph

	rpsHistory []float64
	peakRPS    float64
	last       runner.Snapshot
	info       RunInfo
}

// New creates a new Dashboard.
func New(source Source, info RunInfo, shutdownFunc func()) (*Dashboard, error) {
	if err := ui.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize termui: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	d := &Dashboard{
		source:       source,
		ctx:          ctx,
		cancel:       cancel,
		shutdownFunc: shutdownFunc,
		rpsHistory:   make([]float64, 0, 100),
		info:         info,
	}

	d.initWidgets()
	d.setupGrid()

	return d, nil
}

// initWidgets initializes all dashboard widgets.
func (d *Dashboard) initWidgets() {
	sparkline := widgets.NewSparkline()
	sparkline.Title = "req/s"
	sparkline.LineColor = ui.ColorGreen
	sparkline.Data = []float64{0}

	d.rpsSparkline = widgets.NewSparklineGroup(sparkline)
	d.rpsSparkline.Title = "Throughput"
	d.rpsSparkline.BorderStyle.Fg = ui.ColorCyan

	d.progressGauge = widgets.NewGauge()
	d.progressGauge.Title = "Responses"
	d.progressGauge.BarColor = ui.ColorGreen
	d.progressGauge.BorderStyle.Fg = ui.ColorCyan
	d.progressGauge.LabelStyle = ui.NewStyle(ui.ColorWhite)

	d.rpsGauge = widgets.NewGauge()
	d.rpsGauge.Title = "Requests Per Second (vs peak)"
	d.rpsGauge.BarColor = ui.ColorBlue
	d.rpsGauge.BorderStyle.Fg = ui.ColorCyan
	d.rpsGauge.LabelStyle = ui.NewStyle(ui.ColorWhite)

	d.connectionsPara = widgets.NewParagraph()
	d.connectionsPara.Title = "Connections"
	d.connectionsPara.Text = "Connecting..."
	d.connectionsPara.BorderStyle.Fg = ui.ColorCyan

	d.latencyPara = widgets.NewParagraph()
	d.latencyPara.Title = "Round Trip"
	d.latencyPara.Text = "Waiting for data..."
	d.latencyPara.BorderStyle.Fg = ui.ColorCyan

	d.transferPara = widgets.NewParagraph()
	d.transferPara.Title = "Transfer"
	d.transferPara.Text = "Waiting for data..."
	d.transferPara.TextStyle = ui.NewStyle(ui.ColorGreen)
	d.transferPara.BorderStyle.Fg = ui.ColorCyan

	d.summaryPara = widgets.NewParagraph()
	d.summaryPara.Title = "Run"
	d.summaryPara.Text = "Initializing..."
	d.summaryPara.BorderStyle.Fg = ui.ColorCyan
}

// setupGrid configures the layout grid.
func (d *Dashboard) setupGrid() {
	termWidth, termHeight := ui.TerminalDimensions()

	d.grid = ui.NewGrid()
	d.grid.SetRect(0, 0, termWidth, termHeight)

	d.grid.Set(
		ui.NewRow(0.16,
			ui.NewCol(1.0, d.summaryPara),
		),
		ui.NewRow(0.14,
			ui.NewCol(0.5, d.progressGauge),
			ui.NewCol(0.5, d.rpsGauge),
		),
		ui.NewRow(0.38,
			ui.NewCol(1.0, d.rpsSparkline),
		),
		ui.NewRow(0.32,
			ui.NewCol(0.3, d.connectionsPara),
			ui.NewCol(0.4, d.latencyPara),
			ui.NewCol(0.3, d.transferPara),
		),
	)
}

// Start begins the dashboard update loop.
func (d *Dashboard) Start() {
	d.wg.Add(1)
	go d.run()
}

// Stop stops the dashboard and cleans up.
func (d *Dashboard) Stop() {
	d.cancel()
	d.wg.Wait()
	ui.Close()
	// Give terminal time to restore
	time.Sleep(100 * time.Millisecond)
}

// run is the main dashboard update loop.
func (d *Dashboard) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	uiEvents := ui.PollEvents()

	d.render()

	for {
		select {
		case <-d.ctx.Done():
			for len(uiEvents) > 0 {
				<-uiEvents
			}
			return
		case e := <-uiEvents:
			select {
			case <-d.ctx.Done():
				return
			default:
			}

			switch e.ID {
			case "q", "<C-c>":
				if d.shutdownFunc != nil {
					d.shutdownFunc()
				}
				// Stop() cancels the context once the run is torn down.
			case "<Resize>":
				payload := e.Payload.(ui.Resize)
				d.grid.SetRect(0, 0, payload.Width, payload.Height)
				ui.Clear()
				d.render()
			}
		case <-ticker.C:
			d.update()
			d.render()
		}
	}
}

// update refreshes all widget data from the source.
func (d *Dashboard) update() {
	d.mu.Lock()
	defer d.mu.Unlock()

	snap := d.source.Snapshot()
	rps := intervalRate(d.last, snap)
	d.last = snap

	d.rpsHistory = append(d.rpsHistory, rps)
	if len(d.rpsHistory) > 100 {
		d.rpsHistory = d.rpsHistory[1:]
	}
	d.rpsSparkline.Sparklines[0].Data = d.rpsHistory
	if rps > d.peakRPS {
		d.peakRPS = rps
	}
	d.rpsSparkline.Title = fmt.Sprintf("Throughput | Now: %.0f req/s | Peak: %.0f req/s | Avg: %.0f req/s",
		rps, d.peakRPS, snap.Throughput)

	d.rpsGauge.Percent = percentOf(rps, d.peakRPS)
	d.rpsGauge.Label = fmt.Sprintf("%.1f RPS", rps)

	d.progressGauge.Percent = progressPercent(snap)
	d.progressGauge.Label = fmt.Sprintf("%s / %s",
		console.Count(snap.Responses), console.CountOrInfinity(snap.TotalRequests))

	d.summaryPara.Text = formatSummary(d.info, snap)
	d.connectionsPara.Text = formatConnections(snap)
	d.latencyPara.Text = formatRoundTrip(d.info.Mode, d.source.RoundTrip())
	d.transferPara.Text = formatTransfer(d.source.Transfer(), snap.Elapsed)
}

// render draws all widgets to the screen.
func (d *Dashboard) render() {
	d.mu.Lock()
	defer d.mu.Unlock()

	ui.Render(d.grid)
}

// intervalRate is the response rate between two snapshots of the same run.
func intervalRate(prev, cur runner.Snapshot) float64 {
	if prev.RunID != cur.RunID {
		prev = runner.Snapshot{}
	}
	dt := (cur.Elapsed - prev.Elapsed).Seconds()
	if dt <= 0 {
		return 0
	}
	return float64(cur.Responses-prev.Responses) / dt
}

func percentOf(v, max float64) int {
	if max <= 0 {
		return 0
	}
	p := int(v / max * 100)
	if p > 100 {
		p = 100
	}
	if p < 0 {
		p = 0
	}
	return p
}

// progressPercent tracks responses for bounded runs and finished
// connections otherwise.
func progressPercent(s runner.Snapshot) int {
	if s.TotalRequests > 0 {
		return percentOf(float64(s.Responses), float64(s.TotalRequests))
	}
	return percentOf(float64(s.Finished), float64(s.Concurrency))
}

func formatSummary(info RunInfo, s runner.Snapshot) string {
	return joinLines([]string{
		fmt.Sprintf("Target: %s | Run: %s", info.Target, s.RunID),
		formatRunParams(info),
		fmt.Sprintf("Elapsed: %s | Responses: %s", s.Elapsed.Round(100*time.Millisecond), console.Count(s.Responses)),
	})
}

func formatConnections(s runner.Snapshot) string {
	total := int64(s.Concurrency)
	return fmt.Sprintf("Total:    %d\nSending:  %d\nFinished: %d\nOpen:     %d",
		total, s.SendingStarted, s.Finished, total-s.Finished)
}

func formatRoundTrip(mode runner.Mode, st metrics.Stats) string {
	if mode == runner.ModePipelined {
		return "[Not measured in pipelined mode](fg:yellow)"
	}
	if st.Count == 0 {
		return "Waiting for data..."
	}
	return fmt.Sprintf("Samples: %s\nMin:  %.3fms\nMean: %.3fms\nP50:  %.3fms\nP90:  %.3fms\nP99:  %.3fms\nMax:  %.3fms",
		console.Count(st.Count),
		st.MinLatencyMs,
		st.MeanLatencyMs,
		st.P50LatencyMs,
		st.P90LatencyMs,
		st.P99LatencyMs,
		st.MaxLatencyMs,
	)
}

func formatTransfer(t clientmetrics.Snapshot, elapsed time.Duration) string {
	const mib = 1024 * 1024
	rate := 0.0
	if secs := elapsed.Seconds(); secs > 0 {
		rate = float64(t.BytesReceived) / mib / secs
	}
	return fmt.Sprintf("Sent:     %.2f MiB\nReceived: %.2f MiB\nRx rate:  %.2f MiB/s\nErrors:   %d",
		float64(t.BytesSent)/mib, float64(t.BytesReceived)/mib, rate, t.Errors)
}

func joinLines(lines []string) string {
	var kept []string
	for _, l := range lines {
		if l != "" {
			kept = append(kept, l)
		}
	}
	return strings.Join(kept, "\n")
}

// formatRunParams formats the run parameters for display.
func formatRunParams(info RunInfo) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("Mode: %s", info.Mode))

	if info.Concurrency > 0 {
		parts = append(parts, fmt.Sprintf("Connections: %d", info.Concurrency))
	}

	if info.PerConnection < 0 {
		parts = append(parts, "Per connection: unbounded")
	} else if info.PerConnection > 0 {
		parts = append(parts, fmt.Sprintf("Per connection: %s", console.Count(info.PerConnection)))
	}

	// Batch size only matters when pipelining
	if info.Mode == runner.ModePipelined && info.BatchSize > 0 {
		parts = append(parts, fmt.Sprintf("Batch: %d", info.BatchSize))
	}

	if info.ConnectRate > 0 {
		parts = append(parts, fmt.Sprintf("Connect rate: %d/s", info.ConnectRate))
	}

	if info.RequestBytes > 0 {
		parts = append(parts, fmt.Sprintf("Request: %d bytes", info.RequestBytes))
	}

	if info.ConfigFile != "" {
		parts = append(parts, fmt.Sprintf("Config: %s", info.ConfigFile))
	}

	return strings.Join(parts, " | ")
}
