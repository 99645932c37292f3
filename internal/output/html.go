package output

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"time"
)

// HTMLReportData contains all data needed for the HTML report template.
type HTMLReportData struct {
	GeneratedAt string
	Report      Report
	Passed      int
	History     []Report
	HistoryJSON template.JS
}

type historyPoint struct {
	RunID      string  `json:"run_id"`
	Timestamp  string  `json:"timestamp"`
	Throughput float64 `json:"throughput"`
	AvgLatency float64 `json:"avg_latency"`
}

// GenerateHTMLReport generates a standalone HTML report for one run. When
// history holds earlier runs it adds a throughput trend chart and a table
// comparing them.
func GenerateHTMLReport(w io.Writer, report Report, history []Report) error {
	passed := 0
	for _, t := range report.Thresholds {
		if t.Pass {
			passed++
		}
	}

	points := make([]historyPoint, 0, len(history))
	for _, h := range history {
		points = append(points, historyPoint{
			RunID:      h.RunID,
			Timestamp:  h.Timestamp.Format(time.RFC3339),
			Throughput: h.Throughput,
			AvgLatency: h.AvgLatencyMs,
		})
	}
	historyJSON, err := json.Marshal(points)
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	data := HTMLReportData{
		GeneratedAt: time.Now().Format(time.RFC3339),
		Report:      report,
		Passed:      passed,
		History:     history,
		HistoryJSON: template.JS(historyJSON),
	}

	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"formatFloat": func(f float64) string {
			return fmt.Sprintf("%.2f", f)
		},
		"formatTime": func(t time.Time) string {
			return t.Format("2006-01-02 15:04:05")
		},
	}).Parse(htmlTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	if err := tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}

	return nil
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Pipefire Benchmark Report</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif;
            background: #f5f7fa;
            color: #2c3e50;
            line-height: 1.6;
            padding: 20px;
        }
        .container {
            max-width: 1200px;
            margin: 0 auto;
            background: white;
            border-radius: 8px;
            box-shadow: 0 2px 8px rgba(0,0,0,0.1);
            overflow: hidden;
        }
        header {
            background: linear-gradient(135deg, #f97316 0%, #b91c1c 100%);
            color: white;
            padding: 30px 40px;
        }
        header h1 { font-size: 2rem; margin-bottom: 10px; }
        header .meta { opacity: 0.9; font-size: 0.9rem; }
        .content { padding: 40px; }
        .grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(220px, 1fr));
            gap: 20px;
            margin-bottom: 40px;
        }
        .card {
            background: #f8f9fa;
            border-radius: 8px;
            padding: 20px;
            border-left: 4px solid #f97316;
        }
        .card h3 {
            font-size: 0.9rem;
            color: #6c757d;
            text-transform: uppercase;
            letter-spacing: 0.5px;
            margin-bottom: 10px;
        }
        .card .value { font-size: 1.8rem; font-weight: bold; }
        .card .subvalue { font-size: 0.85rem; color: #6c757d; margin-top: 5px; }
        .section { margin-bottom: 40px; }
        .section h2 {
            font-size: 1.4rem;
            margin-bottom: 20px;
            padding-bottom: 10px;
            border-bottom: 2px solid #e9ecef;
        }
        table { width: 100%; border-collapse: collapse; }
        th, td { padding: 10px 12px; text-align: left; border-bottom: 1px solid #e9ecef; }
        th { background: #f8f9fa; font-size: 0.85rem; text-transform: uppercase; color: #6c757d; }
        .pass { color: #10b981; font-weight: bold; }
        .fail { color: #ef4444; font-weight: bold; }
        .chart-container { position: relative; height: 320px; }
    </style>
    {{if .History}}<script src="https://cdn.jsdelivr.net/npm/chart.js@4.4.0/dist/chart.umd.min.js"></script>{{end}}
</head>
<body>
    <div class="container">
        <header>
            <h1>Pipefire Benchmark Report</h1>
            <div class="meta">Run {{.Report.RunID}} | Target: {{.Report.Target}} | {{.Report.Mode}}</div>
            <div class="meta">Generated: {{.GeneratedAt}}</div>
        </header>
        <div class="content">
            <div class="grid">
                <div class="card">
                    <h3>Throughput</h3>
                    <div class="value">{{formatFloat .Report.Throughput}}</div>
                    <div class="subvalue">requests / second</div>
                </div>
                <div class="card">
                    <h3>Total Requests</h3>
                    <div class="value">{{.Report.TotalRequests}}</div>
                    <div class="subvalue">{{.Report.Concurrency}} connections</div>
                </div>
                <div class="card">
                    <h3>Total Time</h3>
                    <div class="value">{{.Report.ElapsedMs}} ms</div>
                    <div class="subvalue">{{formatFloat .Report.ElapsedSeconds}} s</div>
                </div>
                <div class="card">
                    <h3>Avg Latency</h3>
                    <div class="value">{{printf "%.4f" .Report.AvgLatencyMs}}</div>
                    <div class="subvalue">ms / request</div>
                </div>
                <div class="card">
                    <h3>Data</h3>
                    <div class="value">{{formatFloat .Report.TotalDataMiB}} MiB</div>
                    <div class="subvalue">{{formatFloat .Report.DataThroughputMiBps}} MiB/s</div>
                </div>
            </div>

            {{with .Report.RoundTrip}}
            <div class="section">
                <h2>Round Trip</h2>
                <table>
                    <thead><tr><th>Min</th><th>P50</th><th>P90</th><th>P99</th><th>Max</th><th>Mean</th></tr></thead>
                    <tbody><tr>
                        <td>{{formatFloat .MinLatencyMs}} ms</td>
                        <td>{{formatFloat .P50LatencyMs}} ms</td>
                        <td>{{formatFloat .P90LatencyMs}} ms</td>
                        <td>{{formatFloat .P99LatencyMs}} ms</td>
                        <td>{{formatFloat .MaxLatencyMs}} ms</td>
                        <td>{{formatFloat .MeanLatencyMs}} ms</td>
                    </tr></tbody>
                </table>
            </div>
            {{end}}

            {{if .Report.Thresholds}}
            <div class="section">
                <h2>Thresholds ({{.Passed}}/{{len .Report.Thresholds}} Passed)</h2>
                <table>
                    <thead><tr><th>Threshold</th><th>Actual</th><th>Status</th></tr></thead>
                    <tbody>
                        {{range .Report.Thresholds}}
                        <tr>
                            <td>{{.Threshold}}</td>
                            <td>{{formatFloat .Actual}}</td>
                            <td>{{if .Pass}}<span class="pass">PASS</span>{{else}}<span class="fail">FAIL</span>{{end}}</td>
                        </tr>
                        {{end}}
                    </tbody>
                </table>
            </div>
            {{end}}

            {{if .History}}
            <div class="section">
                <h2>Throughput Trend</h2>
                <div class="chart-container"><canvas id="trendChart"></canvas></div>
            </div>
            <div class="section">
                <h2>Previous Runs</h2>
                <table>
                    <thead><tr><th>Time</th><th>Run</th><th>Mode</th><th>Connections</th><th>Requests</th><th>req/s</th><th>ms/req</th></tr></thead>
                    <tbody>
                        {{range .History}}
                        <tr>
                            <td>{{formatTime .Timestamp}}</td>
                            <td>{{.RunID}}</td>
                            <td>{{.Mode}}</td>
                            <td>{{.Concurrency}}</td>
                            <td>{{.TotalRequests}}</td>
                            <td>{{formatFloat .Throughput}}</td>
                            <td>{{printf "%.4f" .AvgLatencyMs}}</td>
                        </tr>
                        {{end}}
                    </tbody>
                </table>
            </div>
            {{end}}
        </div>
    </div>
    {{if .History}}
    <script>
        const historyJSON = {{.HistoryJSON}};
        new Chart(document.getElementById('trendChart'), {
            type: 'line',
            data: {
                labels: historyJSON.map(p => p.timestamp),
                datasets: [{
                    label: 'Throughput (req/s)',
                    data: historyJSON.map(p => p.throughput),
                    borderColor: '#f97316',
                    tension: 0.2
                }]
            },
            options: { responsive: true, maintainAspectRatio: false }
        });
    </script>
    {{end}}
</body>
</html>
`
