package report

import (
	"errors"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"lamarck/internal/model"
)

var ErrNoData = errors.New("nothing to plot")

var (
	bestColor = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}
	meanColor = color.RGBA{R: 0xff, G: 0x7f, B: 0x0e, A: 0xff}
	minColor  = color.RGBA{R: 0x2c, G: 0xa0, B: 0x2c, A: 0xff}
	bandColor = color.RGBA{R: 0xff, G: 0x7f, B: 0x0e, A: 0x40}
)

const (
	plotWidth  = 8 * vg.Inch
	plotHeight = 5 * vg.Inch
)

// PlotFitness draws best, mean and min fitness over generations with a
// one standard deviation band around the mean.
func PlotFitness(stats []model.GenerationStats, title, outPath string) error {
	if len(stats) == 0 {
		return ErrNoData
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Generation"
	p.Y.Label.Text = "Fitness"

	best := make(plotter.XYs, len(stats))
	mean := make(plotter.XYs, len(stats))
	low := make(plotter.XYs, len(stats))
	band := make(plotter.XYs, 0, 2*len(stats))
	for i, s := range stats {
		x := float64(s.GenerationIndex)
		best[i] = plotter.XY{X: x, Y: s.Best}
		mean[i] = plotter.XY{X: x, Y: s.Mean}
		low[i] = plotter.XY{X: x, Y: s.Min}
		band = append(band, plotter.XY{X: x, Y: s.Mean + s.StdDev})
	}
	for i := len(stats) - 1; i >= 0; i-- {
		s := stats[i]
		band = append(band, plotter.XY{X: float64(s.GenerationIndex), Y: s.Mean - s.StdDev})
	}

	poly, err := plotter.NewPolygon(band)
	if err != nil {
		return err
	}
	poly.Color = bandColor
	poly.LineStyle.Width = 0
	p.Add(poly)

	if err := addLines(p, []namedSeries{{"max", best, bestColor}, {"mean", mean, meanColor}, {"min", low, minColor}}); err != nil {
		return err
	}
	return p.Save(plotWidth, plotHeight, outPath)
}

// PlotLearning draws the mean and best learning delta per generation.
func PlotLearning(summaries []LearningSummary, title, outPath string) error {
	if len(summaries) == 0 {
		return ErrNoData
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Generation"
	p.Y.Label.Text = "Learning delta"

	mean := make(plotter.XYs, len(summaries))
	best := make(plotter.XYs, len(summaries))
	for i, s := range summaries {
		x := float64(s.GenerationIndex)
		mean[i] = plotter.XY{X: x, Y: s.MeanDelta}
		best[i] = plotter.XY{X: x, Y: s.BestDelta}
	}
	if err := addLines(p, []namedSeries{{"best", best, bestColor}, {"mean", mean, meanColor}}); err != nil {
		return err
	}
	p.Add(plotter.NewGrid())
	return p.Save(plotWidth, plotHeight, outPath)
}

// PlotLearner draws the fitness of one inner search over its generations.
func PlotLearner(curve []LearnerCurve, title, outPath string) error {
	if len(curve) == 0 {
		return ErrNoData
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Learner generation"
	p.Y.Label.Text = "Fitness"

	mean := make(plotter.XYs, len(curve))
	best := make(plotter.XYs, len(curve))
	for i, c := range curve {
		x := float64(c.Generation)
		mean[i] = plotter.XY{X: x, Y: c.Mean}
		best[i] = plotter.XY{X: x, Y: c.Best}
	}
	if err := addLines(p, []namedSeries{{"best", best, bestColor}, {"mean", mean, meanColor}}); err != nil {
		return err
	}
	return p.Save(plotWidth, plotHeight, outPath)
}

type namedSeries struct {
	name string
	pts  plotter.XYs
	c    color.Color
}

func addLines(p *plot.Plot, series []namedSeries) error {
	for _, s := range series {
		line, err := plotter.NewLine(s.pts)
		if err != nil {
			return err
		}
		line.Color = s.c
		p.Add(line)
		p.Legend.Add(s.name, line)
	}
	p.Legend.Top = true
	p.Legend.Left = true
	return nil
}
