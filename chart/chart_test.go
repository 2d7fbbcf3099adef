// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package chart

import (
	"bytes"
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/pathtracer/sppreport/spp"
	"gonum.org/v1/plot/vg/draw"
)

func TestPointsDefault(t *testing.T) {
	xys, err := Points(spp.Default())
	if err != nil {
		t.Fatalf("Points: %v", err)
	}
	if len(xys) != 9 {
		t.Fatalf("len(Points) = %d, want 9", len(xys))
	}
	for i := range xys {
		for j := i + 1; j < len(xys); j++ {
			if !(xys[i].X < xys[j].X && xys[i].Y < xys[j].Y) {
				t.Errorf("point %d %v is not below and left of point %d %v", i, xys[i], j, xys[j])
			}
		}
	}
	if xys[8].X != 10000 || xys[8].Y != 410.02 {
		t.Errorf("last point = %v, want {10000 410.02}", xys[8])
	}
}

func TestPointsLengthMismatch(t *testing.T) {
	c := spp.Default()
	c.Seconds = append(c.Seconds, 800)
	if _, err := Points(c); !errors.Is(err, spp.ErrLengthMismatch) {
		t.Errorf("Points = %v, want ErrLengthMismatch", err)
	}
}

func TestSeriesStyle(t *testing.T) {
	l, s, err := series(spp.Default())
	if err != nil {
		t.Fatal(err)
	}
	if len(s.XYs) != 9 || len(l.XYs) != 9 {
		t.Errorf("line has %d points and scatter %d, want 9 each", len(l.XYs), len(s.XYs))
	}
	if _, ok := s.GlyphStyle.Shape.(draw.CircleGlyph); !ok {
		t.Errorf("glyph shape = %T, want draw.CircleGlyph", s.GlyphStyle.Shape)
	}
	if len(l.LineStyle.Dashes) != 0 {
		t.Errorf("line dashes = %v, want solid", l.LineStyle.Dashes)
	}
}

func TestNewLabels(t *testing.T) {
	pl, err := New(spp.Default())
	if err != nil {
		t.Fatal(err)
	}
	if pl.Title.Text != "CPU rendering time vs. samples per pixel" {
		t.Errorf("title = %q", pl.Title.Text)
	}
	if pl.X.Label.Text != "Samples per pixel" {
		t.Errorf("x label = %q", pl.X.Label.Text)
	}
	if pl.Y.Label.Text != "Seconds" {
		t.Errorf("y label = %q", pl.Y.Label.Text)
	}
	if pl.X.Min != 1 || pl.X.Max != 10000 {
		t.Errorf("x range = [%v, %v], want [1, 10000]", pl.X.Min, pl.X.Max)
	}
}

func TestNewLogScale(t *testing.T) {
	c := spp.Default()
	c.LogScale = true
	if _, err := New(c); err != nil {
		t.Errorf("New with log scale: %v", err)
	}
	c.Seconds[0] = 0
	if _, err := New(c); err == nil {
		t.Errorf("New with log scale and zero seconds succeeded")
	}
}

func TestNewErrorBars(t *testing.T) {
	c := spp.Default()
	c.Errors = make([]float64, len(c.Samples))
	for i := range c.Errors {
		c.Errors[i] = c.Seconds[i] / 10
	}
	if _, err := New(c); err != nil {
		t.Errorf("New with error bars: %v", err)
	}
}

func TestLogScaleWideErrorBars(t *testing.T) {
	c := spp.Default()
	c.Samples = []int{1, 5, 10}
	c.Seconds = []float64{0.05, 0.27, 0.52}
	c.Errors = []float64{0.1, 0.01, 0.01}
	c.LogScale = true

	errs := yErrors(c)
	for i, e := range errs {
		if low := c.Seconds[i] - e.Low; !(low > 0) {
			t.Errorf("bar %d reaches %v on a log scale, want > 0", i, low)
		}
		if e.High != c.Errors[i] {
			t.Errorf("bar %d high = %v, want %v", i, e.High, c.Errors[i])
		}
	}
	if errs[1].Low != 0.01 {
		t.Errorf("bar 1 low = %v, want unclipped 0.01", errs[1].Low)
	}

	var buf bytes.Buffer
	if err := Write(&buf, c, DefaultOptions); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := png.Decode(&buf); err != nil {
		t.Errorf("decoding chart: %v", err)
	}

	c.LogScale = false
	if errs := yErrors(c); errs[0].Low != 0.1 {
		t.Errorf("linear bar 0 low = %v, want 0.1", errs[0].Low)
	}
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, spp.Default(), DefaultOptions); err != nil {
		t.Fatalf("Write: %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("decoding chart: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 576 || b.Dy() != 384 {
		t.Errorf("chart size = %dx%d, want 576x384", b.Dx(), b.Dy())
	}
}

func TestRenderEndToEnd(t *testing.T) {
	dir := t.TempDir()
	c := spp.Default()
	c.Dir = dir
	c.Samples = []int{1, 5, 10}
	c.Seconds = []float64{0.05, 0.27, 0.52}

	if err := os.WriteFile(c.ChartPath(), []byte("stale"), 0666); err != nil {
		t.Fatal(err)
	}
	if err := Render(c, DefaultOptions); err != nil {
		t.Fatalf("Render: %v", err)
	}
	first, err := os.ReadFile(c.ChartPath())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := png.Decode(bytes.NewReader(first)); err != nil {
		t.Fatalf("chart is not a PNG: %v", err)
	}

	if err := Render(c, DefaultOptions); err != nil {
		t.Fatalf("second Render: %v", err)
	}
	second, err := os.ReadFile(c.ChartPath())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Errorf("rendering twice produced different charts")
	}
}

func TestRenderInvalidLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	c := spp.Default()
	c.Dir = dir
	c.Seconds = c.Seconds[:3]
	if err := Render(c, DefaultOptions); !errors.Is(err, spp.ErrLengthMismatch) {
		t.Fatalf("Render = %v, want ErrLengthMismatch", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "graph.png")); !os.IsNotExist(err) {
		t.Errorf("chart exists after failed Render (stat err %v)", err)
	}
}
