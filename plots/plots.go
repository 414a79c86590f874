// Package plots renders the reports of the pipeline with gonum/plot: the
// steering angle histogram of a dataset, training loss curves and restored
// trajectories. The image format follows the output file extension (png,
// svg, pdf, ...).
package plots

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// DefaultBins is the default number of histogram bins.
const DefaultBins = 20

var (
	trainColor = color.RGBA{R: 20, G: 80, B: 200, A: 160}
	validColor = color.RGBA{R: 200, G: 30, B: 30, A: 160}
)

// SteeringHistogram overlays the steering angle histograms of the train and
// valid partitions and saves the figure to path. The legend carries the
// size of every partition.
func SteeringHistogram(path string, train, valid []float64, bins int) error {
	if bins <= 0 {
		return fmt.Errorf("number of bins must be positive, got %d", bins)
	}
	p := plot.New()
	p.Title.Text = "Steering angle"
	p.X.Label.Text = "steering angle"
	p.Y.Label.Text = "count"

	for _, part := range []struct {
		name   string
		values []float64
		color  color.Color
	}{{"train", train, trainColor}, {"valid", valid, validColor}} {
		if len(part.values) == 0 {
			continue
		}
		h, err := plotter.NewHist(plotter.Values(part.values), bins)
		if err != nil {
			return err
		}
		h.FillColor = part.color
		h.LineStyle.Width = vg.Points(0.5)
		p.Add(h)
		p.Legend.Add(fmt.Sprintf("%s (%d)", part.name, len(part.values)), h)
	}
	p.Add(plotter.NewGrid())
	return save(p, path, 8*vg.Inch, 6*vg.Inch)
}

// LossCurves plots the train and valid losses per epoch.
func LossCurves(path string, train, valid []float64) error {
	p := plot.New()
	p.Title.Text = "Loss"
	p.X.Label.Text = "epoch"
	p.Y.Label.Text = "loss"

	for _, series := range []struct {
		name   string
		values []float64
		color  color.Color
	}{{"train", train, trainColor}, {"valid", valid, validColor}} {
		xys := make(plotter.XYs, len(series.values))
		for i, v := range series.values {
			xys[i] = plotter.XY{X: float64(i), Y: v}
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return err
		}
		line.Color = series.color
		line.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add(series.name, line)
	}
	p.Add(plotter.NewGrid())
	return save(p, path, 8*vg.Inch, 6*vg.Inch)
}

// Trajectory draws a restored path. Both axes share the same scale.
func Trajectory(path string, points []r2.Vec) error {
	p := plot.New()
	p.Title.Text = "Trajectory"
	p.X.Label.Text = "x"
	p.Y.Label.Text = "y"

	xys := make(plotter.XYs, len(points))
	for i, v := range points {
		xys[i] = plotter.XY{X: v.X, Y: v.Y}
	}
	line, err := plotter.NewLine(xys)
	if err != nil {
		return err
	}
	line.Color = trainColor
	line.Width = vg.Points(1)
	p.Add(line, plotter.NewGrid())

	xmin, xmax, ymin, ymax := autoRange(xys)
	// Square the ranges around their centers.
	half := math.Max(xmax-xmin, ymax-ymin) / 2
	cx, cy := (xmin+xmax)/2, (ymin+ymax)/2
	p.X.Min, p.X.Max = cx-half, cx+half
	p.Y.Min, p.Y.Max = cy-half, cy+half
	return save(p, path, 6*vg.Inch, 6*vg.Inch)
}

// Summary describes a series of steering angles.
type Summary struct {
	N      int
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
}

func (s Summary) String() string {
	return fmt.Sprintf("n=%d mean=%.4f std=%.4f min=%.4f max=%.4f", s.N, s.Mean, s.StdDev, s.Min, s.Max)
}

// Summarize computes the summary of values. An empty input gives a zero
// Summary.
func Summarize(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}
	mean, std := stat.MeanStdDev(values, nil)
	if len(values) == 1 {
		std = 0
	}
	return Summary{
		N:      len(values),
		Mean:   mean,
		StdDev: std,
		Min:    floats.Min(values),
		Max:    floats.Max(values),
	}
}

func save(p *plot.Plot, path string, w, h vg.Length) error {
	if err := ensureDir(filepath.Dir(path)); err != nil {
		return err
	}
	return p.Save(w, h, path)
}

// autoRange computes padded min/max for X and Y for a set of points.
func autoRange(xs plotter.XYs) (xmin, xmax, ymin, ymax float64) {
	if len(xs) == 0 {
		return -1, 1, -1, 1
	}
	xmin, ymin = math.Inf(1), math.Inf(1)
	xmax, ymax = math.Inf(-1), math.Inf(-1)
	for _, p := range xs {
		xmin, xmax = math.Min(xmin, p.X), math.Max(xmax, p.X)
		ymin, ymax = math.Min(ymin, p.Y), math.Max(ymax, p.Y)
	}
	padx := (xmax - xmin) * 0.06
	pady := (ymax - ymin) * 0.06
	if padx == 0 {
		padx = 1.0
	}
	if pady == 0 {
		pady = 1.0
	}
	return xmin - padx, xmax + padx, ymin - pady, ymax + pady
}

func ensureDir(path string) error {
	if path == "" {
		return nil
	}
	return os.MkdirAll(path, 0755)
}
