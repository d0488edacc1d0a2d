package main

import (
	"fmt"
	"image/color"
	"io"
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/banshee-data/guidecane/internal/telemetry"
)

var (
	commandColor   = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	closestColor   = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	proximityColor = color.RGBA{R: 44, G: 160, B: 44, A: 255}
)

// sessionStats summarises the commands of a session.
type sessionStats struct {
	Count   int
	Mean    float64
	StdDev  float64
	MeanAbs float64
	Modes   map[string]int
}

func summarise(rows []telemetry.DecisionRow) sessionStats {
	s := sessionStats{Count: len(rows), Modes: map[string]int{}}
	if len(rows) == 0 {
		return s
	}
	cmds := make([]float64, len(rows))
	abs := make([]float64, len(rows))
	for i, r := range rows {
		cmds[i] = r.Command
		abs[i] = math.Abs(r.Command)
		s.Modes[r.Mode]++
	}
	s.Mean, s.StdDev = stat.MeanStdDev(cmds, nil)
	if math.IsNaN(s.StdDev) {
		s.StdDev = 0
	}
	s.MeanAbs = stat.Mean(abs, nil)
	return s
}

// renderSessionPlot draws commands and obstacle distances over time as a
// two-panel PNG.
func renderSessionPlot(w io.Writer, title string, rows []telemetry.DecisionRow) error {
	if len(rows) == 0 {
		return fmt.Errorf("session has no decisions")
	}
	t0 := rows[0].Decided

	cmdPts := make(plotter.XYs, len(rows))
	proxPts := make(plotter.XYs, len(rows))
	var closestPts plotter.XYs
	for i, r := range rows {
		x := r.Decided.Sub(t0).Seconds()
		cmdPts[i] = plotter.XY{X: x, Y: r.Command}
		proxPts[i] = plotter.XY{X: x, Y: r.Proximity}
		if r.Closest != nil {
			closestPts = append(closestPts, plotter.XY{X: x, Y: *r.Closest})
		}
	}

	pCmd := plot.New()
	pCmd.Title.Text = title
	pCmd.X.Label.Text = "time (s)"
	pCmd.Y.Label.Text = "command (-1 left, +1 right)"
	pCmd.Y.Min, pCmd.Y.Max = -1.05, 1.05
	pCmd.Add(plotter.NewGrid())

	cmdLine, err := plotter.NewLine(cmdPts)
	if err != nil {
		return err
	}
	cmdLine.Color = commandColor
	cmdLine.Width = vg.Points(1)
	pCmd.Add(cmdLine)
	pCmd.Legend.Add("command", cmdLine)

	proxLine, err := plotter.NewLine(proxPts)
	if err != nil {
		return err
	}
	proxLine.Color = proximityColor
	proxLine.Width = vg.Points(0.5)
	pCmd.Add(proxLine)
	pCmd.Legend.Add("proximity", proxLine)
	pCmd.Legend.Top = true

	pDist := plot.New()
	pDist.X.Label.Text = "time (s)"
	pDist.Y.Label.Text = "closest obstacle (m)"
	pDist.Y.Min = 0
	pDist.Add(plotter.NewGrid())
	if len(closestPts) > 0 {
		scatter, err := plotter.NewScatter(closestPts)
		if err != nil {
			return err
		}
		scatter.Color = closestColor
		scatter.Radius = vg.Points(1)
		pDist.Add(scatter)
	}

	const width, height = 12 * vg.Inch, 8 * vg.Inch
	img := vgimg.New(width, height)
	dc := draw.New(img)
	tiles := draw.Tiles{Rows: 2, Cols: 1, PadY: vg.Points(8), PadX: vg.Points(8), PadTop: vg.Points(8), PadBottom: vg.Points(8), PadLeft: vg.Points(8), PadRight: vg.Points(8)}
	canvases := plot.Align([][]*plot.Plot{{pCmd}, {pDist}}, tiles, dc)
	pCmd.Draw(canvases[0][0])
	pDist.Draw(canvases[1][0])

	png := vgimg.PngCanvas{Canvas: img}
	_, err = png.WriteTo(w)
	return err
}
