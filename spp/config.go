// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package spp describes a samples-per-pixel rendering benchmark report:
// the measured series, where the pre-rendered frames live, and where
// the chart and animation artifacts are written.
//
// A Config is built once (usually from Default) and then passed, read
// only, to the chart and animate packages.
package spp

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"
)

// A Config is the complete input of one report run.
type Config struct {
	// Samples is the samples-per-pixel series. Its order is the
	// plotted line order and the animation frame order.
	Samples []int

	// Seconds is the rendering time for each entry of Samples.
	// It must have the same length as Samples.
	Seconds []float64

	// Errors optionally gives the half-width of a confidence
	// interval around each entry of Seconds. If non-empty, it must
	// have the same length as Samples.
	Errors []float64

	// Dir is the benchmark directory holding the frames and the
	// output artifacts.
	Dir string

	// FramePattern is a fmt pattern with exactly one %d verb that
	// names the frame rendered at a given samples-per-pixel value,
	// relative to Dir.
	FramePattern string

	// ChartName and GIFName are the artifact file names, relative
	// to Dir.
	ChartName string
	GIFName   string

	// FrameDelay is how long each frame is shown. GIF stores delays
	// in hundredths of a second, so this is rounded to the nearest
	// 10ms.
	FrameDelay time.Duration

	// LoopCount is the number of times the animation repeats.
	// 0 loops forever and -1 plays it once.
	LoopCount int

	// FrameWidth, if positive, scales every frame to this width,
	// keeping the aspect ratio of the first frame.
	FrameWidth int

	Title  string
	XLabel string
	YLabel string

	// LogScale plots both axes on a log scale.
	LogScale bool
}

// MinFrameDelay is the smallest delay a GIF frame can carry.
const MinFrameDelay = 10 * time.Millisecond

// Default returns the configuration of the CPU path tracer benchmark.
func Default() *Config {
	return &Config{
		Samples:      []int{1, 5, 10, 50, 100, 500, 1000, 5000, 10000},
		Seconds:      []float64{0.05, 0.27, 0.52, 2.49, 4.87, 21.61, 42.03, 205.49, 410.02},
		Dir:          filepath.Join("benchmark", "spp"),
		FramePattern: "spp%d.png",
		ChartName:    "graph.png",
		GIFName:      "spp.gif",
		FrameDelay:   200 * time.Millisecond,
		LoopCount:    0,
		Title:        "CPU rendering time vs. samples per pixel",
		XLabel:       "Samples per pixel",
		YLabel:       "Seconds",
	}
}

// ErrLengthMismatch is matched by errors reporting series of
// different lengths.
var ErrLengthMismatch = errors.New("series length mismatch")

// A LengthError reports that a series does not line up with Samples.
type LengthError struct {
	Series  string // "seconds" or "errors"
	Len     int
	Samples int
}

func (e *LengthError) Error() string {
	return fmt.Sprintf("%s series has %d values, samples series has %d", e.Series, e.Len, e.Samples)
}

func (e *LengthError) Unwrap() error { return ErrLengthMismatch }

// Validate checks c for internal consistency. It never truncates or
// pads a series.
func (c *Config) Validate() error {
	if len(c.Seconds) != len(c.Samples) {
		return &LengthError{"seconds", len(c.Seconds), len(c.Samples)}
	}
	if len(c.Errors) != 0 && len(c.Errors) != len(c.Samples) {
		return &LengthError{"errors", len(c.Errors), len(c.Samples)}
	}
	if len(c.Samples) == 0 {
		return errors.New("empty samples series")
	}
	for i, s := range c.Samples {
		if s <= 0 {
			return fmt.Errorf("samples[%d] = %d, want > 0", i, s)
		}
		if sec := c.Seconds[i]; math.IsNaN(sec) || math.IsInf(sec, 0) || sec < 0 {
			return fmt.Errorf("seconds[%d] = %v, want a finite value >= 0", i, sec)
		}
	}
	for i, e := range c.Errors {
		if math.IsNaN(e) || e < 0 {
			return fmt.Errorf("errors[%d] = %v, want >= 0", i, e)
		}
	}
	if n := strings.Count(c.FramePattern, "%"); n != 1 || !strings.Contains(c.FramePattern, "%d") {
		return fmt.Errorf("frame pattern %q must contain exactly one %%d", c.FramePattern)
	}
	if c.FrameDelay < MinFrameDelay {
		return fmt.Errorf("frame delay %v is below the GIF minimum of %v", c.FrameDelay, MinFrameDelay)
	}
	if c.LoopCount < -1 {
		return fmt.Errorf("loop count %d, want >= -1", c.LoopCount)
	}
	if c.FrameWidth < 0 {
		return fmt.Errorf("frame width %d, want >= 0", c.FrameWidth)
	}
	return nil
}

// FramePath returns the path of the frame rendered with v samples per
// pixel.
func (c *Config) FramePath(v int) string {
	return filepath.Join(c.Dir, fmt.Sprintf(c.FramePattern, v))
}

// FramePaths returns the frame path of every sample value, in series
// order.
func (c *Config) FramePaths() []string {
	paths := make([]string, len(c.Samples))
	for i, v := range c.Samples {
		paths[i] = c.FramePath(v)
	}
	return paths
}

// ChartPath returns the path of the chart artifact.
func (c *Config) ChartPath() string { return filepath.Join(c.Dir, c.ChartName) }

// GIFPath returns the path of the animation artifact.
func (c *Config) GIFPath() string { return filepath.Join(c.Dir, c.GIFName) }

// Monotonic reports whether both series are strictly increasing.
func (c *Config) Monotonic() bool {
	for i := 1; i < len(c.Samples) && i < len(c.Seconds); i++ {
		if c.Samples[i] <= c.Samples[i-1] || c.Seconds[i] <= c.Seconds[i-1] {
			return false
		}
	}
	return true
}

// DelayCentiseconds returns FrameDelay in the GIF's unit of 1/100s.
func (c *Config) DelayCentiseconds() int {
	return int((c.FrameDelay + 5*time.Millisecond) / (10 * time.Millisecond))
}
