// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pathtracer/sppreport/animate"
	"github.com/pathtracer/sppreport/spp"
	"github.com/pathtracer/sppreport/storage/db"
)

// writeFrames writes a blank 10x10 frame for each sample value.
func writeFrames(t *testing.T, dir string, samples ...int) {
	t.Helper()
	c := spp.Default()
	c.Dir = dir
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	img.Set(0, 0, color.Black)
	for _, v := range samples {
		f, err := os.Create(c.FramePath(v))
		if err != nil {
			t.Fatal(err)
		}
		if err := png.Encode(f, img); err != nil {
			f.Close()
			t.Fatal(err)
		}
		if err := f.Close(); err != nil {
			t.Fatal(err)
		}
	}
}

func writeResults(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "results.txt")
	err := os.WriteFile(path, []byte(`goos: linux
BenchmarkRender/spp=1-8    1    50000000 ns/op
BenchmarkRender/spp=5-8    1   270000000 ns/op
BenchmarkRender/spp=10-8   1   520000000 ns/op
`), 0666)
	if err != nil {
		t.Fatal(err)
	}
	return path
}

func defaultOptions(dir string) *options {
	def := spp.Default()
	return &options{
		dir:       dir,
		key:       "spp",
		delay:     def.FrameDelay,
		loop:      def.LoopCount,
		benchName: "Render",
		dbDriver:  "sqlite3",
	}
}

func countFrames(t *testing.T, path string) int {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	n, err := animate.Count(f)
	if err != nil {
		t.Fatal(err)
	}
	return n
}

func TestRunEndToEnd(t *testing.T) {
	dir := t.TempDir()
	writeFrames(t, dir, 1, 5, 10)

	o := defaultOptions(dir)
	o.results = writeResults(t, dir)
	o.benchOut = filepath.Join(dir, "series.txt")
	o.html = filepath.Join(dir, "index.html")
	o.dsn = filepath.Join(dir, "history.db")

	if err := run(context.Background(), o); err != nil {
		t.Fatalf("run: %v", err)
	}

	chart, err := os.Open(filepath.Join(dir, "graph.png"))
	if err != nil {
		t.Fatal(err)
	}
	defer chart.Close()
	if _, err := png.Decode(chart); err != nil {
		t.Errorf("graph.png: %v", err)
	}
	if n := countFrames(t, filepath.Join(dir, "spp.gif")); n != 3 {
		t.Errorf("spp.gif has %d frames, want 3", n)
	}

	series, err := os.ReadFile(o.benchOut)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(series), "BenchmarkRender/spp=10 1 0.52 sec/op") {
		t.Errorf("series.txt = %q", series)
	}

	html, err := os.ReadFile(o.html)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(html), `<img src="spp.gif"`) {
		t.Errorf("index.html does not link spp.gif")
	}

	d, err := db.OpenSQL("sqlite3", o.dsn)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()
	r, err := d.LatestRun(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if r.Frames != 3 || len(r.Samples) != 3 || r.Samples[2] != 10 {
		t.Errorf("recorded run = %+v", r)
	}
}

func TestRunMissingFrame(t *testing.T) {
	dir := t.TempDir()
	c := spp.Default()
	var present []int
	for _, v := range c.Samples {
		if v != 5000 {
			present = append(present, v)
		}
	}
	writeFrames(t, dir, present...)

	err := run(context.Background(), defaultOptions(dir))
	if !errors.Is(err, animate.ErrFrameNotFound) {
		t.Fatalf("run = %v, want ErrFrameNotFound", err)
	}
	if !strings.Contains(err.Error(), "spp5000.png") {
		t.Errorf("error %q does not name spp5000.png", err)
	}
	// The chart stage finished before the failure and stays.
	if _, err := os.Stat(filepath.Join(dir, "graph.png")); err != nil {
		t.Errorf("graph.png: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "spp.gif")); !os.IsNotExist(err) {
		t.Errorf("spp.gif exists after failed run (stat err %v)", err)
	}
}

func TestRunSkipGIF(t *testing.T) {
	dir := t.TempDir()
	o := defaultOptions(dir)
	o.skipGIF = true
	if err := run(context.Background(), o); err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "graph.png")); err != nil {
		t.Errorf("graph.png: %v", err)
	}
}

func TestRunBadDelay(t *testing.T) {
	o := defaultOptions(t.TempDir())
	o.delay = 0
	if err := run(context.Background(), o); err == nil {
		t.Errorf("run with zero delay succeeded")
	}
}
