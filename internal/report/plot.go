package report

import (
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"fitwalk/internal/experiment"
)

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Series struct {
	Name   string
	Points []Point
}

type Chart struct {
	Title  string
	XLabel string
	YLabel string
	Series []Series
}

// CurveChart plots mean peak fitness against sample size.
func CurveChart(title string, points []experiment.CurvePoint) Chart {
	series := Series{Name: "mean peak", Points: make([]Point, 0, len(points))}
	for _, p := range points {
		series.Points = append(series.Points, Point{X: float64(p.SampleSize), Y: p.Mean})
	}
	return Chart{Title: title, XLabel: "Sample size", YLabel: "Fitness", Series: []Series{series}}
}

// RunsChart plots each repeated run's peak together with the running best.
func RunsChart(title string, runs []float64) Chart {
	peaks := Series{Name: "peak", Points: make([]Point, 0, len(runs))}
	best := Series{Name: "best so far", Points: make([]Point, 0, len(runs))}
	for i, v := range runs {
		peaks.Points = append(peaks.Points, Point{X: float64(i + 1), Y: v})
		top := v
		if i > 0 && best.Points[i-1].Y > top {
			top = best.Points[i-1].Y
		}
		best.Points = append(best.Points, Point{X: float64(i + 1), Y: top})
	}
	return Chart{Title: title, XLabel: "Iteration", YLabel: "Fitness", Series: []Series{peaks, best}}
}

// WriteLineChart renders the chart to path; the format follows the extension.
func WriteLineChart(path string, chart Chart) error {
	if len(chart.Series) == 0 {
		return fmt.Errorf("chart has no series")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	p := plot.New()
	p.Title.Text = chart.Title
	p.X.Label.Text = chart.XLabel
	p.Y.Label.Text = chart.YLabel

	for i, series := range chart.Series {
		if len(series.Points) == 0 {
			return fmt.Errorf("series %q is empty", series.Name)
		}
		xys := make(plotter.XYs, len(series.Points))
		for j, pt := range series.Points {
			xys[j].X = pt.X
			xys[j].Y = pt.Y
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return fmt.Errorf("series %q: %w", series.Name, err)
		}
		if i > 0 {
			line.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		}
		p.Add(line)
		if series.Name != "" {
			p.Legend.Add(series.Name, line)
		}
	}
	p.Legend.Top = true
	p.Legend.Left = true

	return p.Save(6*vg.Inch, 4*vg.Inch, path)
}
