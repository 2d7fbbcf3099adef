// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package chart draws rendering time against samples per pixel.
package chart

import (
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/pathtracer/sppreport/internal/atomicfile"
	"github.com/pathtracer/sppreport/spp"
)

// Options controls the rasterised size of the chart.
type Options struct {
	Width, Height vg.Length
	DPI           int
}

// DefaultOptions is a 576x384 pixel chart.
var DefaultOptions = Options{
	Width:  6 * vg.Inch,
	Height: 4 * vg.Inch,
	DPI:    96,
}

const pointRad = 3

var lineColor = color.NRGBA{0x1f, 0x77, 0xb4, 0xff}

// Points returns the plotted points of c: X is the sample count and Y
// the rendering time in seconds.
func Points(c *spp.Config) (plotter.XYs, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	xys := make(plotter.XYs, len(c.Samples))
	for i, s := range c.Samples {
		xys[i].X = float64(s)
		xys[i].Y = c.Seconds[i]
	}
	return xys, nil
}

// errorPoints adds symmetric Y error bars to a set of points.
type errorPoints struct {
	plotter.XYs
	plotter.YErrors
}

func series(c *spp.Config) (*plotter.Line, *plotter.Scatter, error) {
	xys, err := Points(c)
	if err != nil {
		return nil, nil, err
	}
	l, s, err := plotter.NewLinePoints(xys)
	if err != nil {
		return nil, nil, err
	}
	l.LineStyle.Color = lineColor
	l.LineStyle.Width = vg.Points(1.5)
	l.LineStyle.Dashes = nil
	s.GlyphStyle.Shape = draw.CircleGlyph{}
	s.GlyphStyle.Radius = vg.Points(pointRad)
	s.GlyphStyle.Color = lineColor
	return l, s, nil
}

// New builds the chart for c: a solid line through circular markers,
// with c's title and axis labels.
func New(c *spp.Config) (*plot.Plot, error) {
	l, s, err := series(c)
	if err != nil {
		return nil, err
	}

	pl := plot.New()
	pl.Title.Text = c.Title
	pl.X.Label.Text = c.XLabel
	pl.Y.Label.Text = c.YLabel

	grid := plotter.NewGrid()
	grid.Vertical.Color = color.Gray{0xdd}
	grid.Horizontal.Color = color.Gray{0xdd}
	pl.Add(grid)

	if c.LogScale {
		// Log axes cannot show a zero time.
		for i, sec := range c.Seconds {
			if sec <= 0 {
				return nil, fmt.Errorf("log scale: seconds[%d] = %v, want > 0", i, sec)
			}
		}
		pl.X.Scale = plot.LogScale{}
		pl.X.Tick.Marker = plot.LogTicks{Prec: -1}
		pl.Y.Scale = plot.LogScale{}
		pl.Y.Tick.Marker = plot.LogTicks{Prec: -1}
	}

	pl.Add(l, s)

	if len(c.Errors) > 0 {
		ep := errorPoints{XYs: s.XYs, YErrors: yErrors(c)}
		bars, err := plotter.NewYErrorBars(ep)
		if err != nil {
			return nil, err
		}
		bars.LineStyle.Color = lineColor
		pl.Add(bars)
	}
	return pl, nil
}

// logFloor is the fraction of a point's value that a clipped lower
// error bar reaches on a log scale.
const logFloor = 0.1

// yErrors returns the error bars of c. On a log scale a lower bar that
// would reach zero or below is clipped at logFloor times the point.
func yErrors(c *spp.Config) plotter.YErrors {
	errs := make(plotter.YErrors, len(c.Errors))
	for i, e := range c.Errors {
		errs[i].Low = e
		errs[i].High = e
		if c.LogScale && c.Seconds[i]-e <= 0 {
			errs[i].Low = c.Seconds[i] * (1 - logFloor)
		}
	}
	return errs
}

// Write draws the chart for c and writes it to w as a PNG.
func Write(w io.Writer, c *spp.Config, opts Options) error {
	pl, err := New(c)
	if err != nil {
		return err
	}
	can := vgimg.NewWith(vgimg.UseWH(opts.Width, opts.Height),
		vgimg.UseDPI(opts.DPI), vgimg.UseBackgroundColor(color.White))
	pl.Draw(draw.New(can))
	_, err = vgimg.PngCanvas{Canvas: can}.WriteTo(w)
	return err
}

// Render writes the chart for c to c.ChartPath(), replacing any
// existing file.
func Render(c *spp.Config, opts Options) error {
	// Invalid input never touches the file system.
	if _, err := Points(c); err != nil {
		return err
	}
	err := atomicfile.WriteFile(c.ChartPath(), func(w io.Writer) error {
		return Write(w, c, opts)
	})
	if err != nil {
		return fmt.Errorf("write chart: %w", err)
	}
	return nil
}
