package monitor

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/banshee-data/guidecane/internal/httputil"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// echartsAssetsHost serves the echarts runtime; the monitor is usually
// viewed from a laptop with internet access while the device is offline.
const echartsAssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// handleCommandChart renders recent commands, proximity and closest
// distance as a line chart.
func (ws *WebServer) handleCommandChart(w http.ResponseWriter, r *http.Request) {
	limit := 300
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	recent := ws.history.Recent(limit)
	if len(recent) == 0 {
		httputil.NotFound(w, "no decisions recorded yet")
		return
	}

	x := make([]string, len(recent))
	cmds := make([]opts.LineData, len(recent))
	prox := make([]opts.LineData, len(recent))
	closest := make([]opts.LineData, len(recent))
	for i, v := range recent {
		x[i] = strconv.FormatUint(v.Seq, 10)
		cmds[i] = opts.LineData{Value: v.Command}
		prox[i] = opts.LineData{Value: v.Proximity}
		if v.Closest != nil {
			closest[i] = opts.LineData{Value: *v.Closest}
		} else {
			closest[i] = opts.LineData{Value: "-"}
		}
	}

	summary := ws.history.Summary()
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Steering Commands", Theme: "dark", Width: "100%", Height: "640px", AssetsHost: echartsAssetsHost}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Steering Commands",
			Subtitle: fmt.Sprintf("n=%d mean=%.3f stddev=%.3f max step=%.3f", summary.Count, summary.Mean, summary.StdDev, summary.MaxStep),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "frame"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "command / m"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)
	line.SetXAxis(x).
		AddSeries("command", cmds).
		AddSeries("proximity", prox).
		AddSeries("closest (m)", closest).
		SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(false)}))

	page := components.NewPage()
	page.SetAssetsHost(echartsAssetsHost)
	page.AddCharts(line)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, fmt.Sprintf("render error: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
