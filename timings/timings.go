// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package timings moves rendering-time series in and out of the Go
// benchmark format.
//
// A renderer benchmark reports one result per samples-per-pixel value,
// keyed by a sub-benchmark name part:
//
//	BenchmarkRender/spp=10-8    1    520000000 ns/op
//
// Read collects these into a Series, summarising repeated runs of the
// same value, and Write emits a Config's series in the same format.
package timings

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/aclements/go-moremath/stats"
	"golang.org/x/perf/benchfmt"
	"golang.org/x/perf/benchmath"

	"github.com/pathtracer/sppreport/spp"
)

// TimeUnit is the tidied unit timings are read in.
const TimeUnit = "sec/op"

// Confidence is the confidence level of the error bars computed by
// Read.
const Confidence = 0.95

// A Series is a samples-per-pixel timing series, ordered by ascending
// sample count.
type Series struct {
	Samples []int
	Seconds []float64
	// Errors is the half-width of the confidence interval around
	// each Seconds value, or nil if no value has a finite interval.
	Errors []float64
}

// Apply replaces the timing data of c with s.
func (s *Series) Apply(c *spp.Config) {
	c.Samples = append([]int(nil), s.Samples...)
	c.Seconds = append([]float64(nil), s.Seconds...)
	c.Errors = append([]float64(nil), s.Errors...)
	if len(s.Errors) == 0 {
		c.Errors = nil
	}
}

// Read reads benchmark results from files and builds a Series from
// every result whose name has a /key=N part and that reports time per
// operation. Problems that do not stop reading, like syntax errors or
// results without a sample count, are passed to warn if it is not nil.
func Read(files *benchfmt.Files, key string, warn func(format string, args ...interface{})) (*Series, error) {
	if warn == nil {
		warn = func(string, ...interface{}) {}
	}
	prefix := []byte("/" + key + "=")

	values := make(map[int][]float64)
	for files.Scan() {
		switch rec := files.Result(); rec := rec.(type) {
		case *benchfmt.SyntaxError:
			warn("%v", rec)
		case *benchfmt.Result:
			n, ok := sampleCount(rec.Name, prefix)
			if !ok {
				file, line := rec.Pos()
				warn("%s:%d: %s has no %s= part, skipping", file, line, rec.Name, key)
				continue
			}
			sec, ok := rec.Value(TimeUnit)
			if !ok {
				file, line := rec.Pos()
				warn("%s:%d: %s has no time per op, skipping", file, line, rec.Name)
				continue
			}
			values[n] = append(values[n], sec)
		}
	}
	if err := files.Err(); err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("no benchmark results with a %s= name part", key)
	}

	assumption := benchfmt.UnitMetadataMap(files.Units()).GetAssumption(TimeUnit)
	s := new(Series)
	for n := range values {
		s.Samples = append(s.Samples, n)
	}
	sort.Ints(s.Samples)
	finite := false
	for _, n := range s.Samples {
		sample := benchmath.NewSample(values[n], &benchmath.DefaultThresholds)
		sum := assumption.Summary(sample, Confidence)
		for _, w := range sum.Warnings {
			warn("%s=%d: %v", key, n, w)
		}
		e := math.Max(sum.Center-sum.Lo, sum.Hi-sum.Center)
		if math.IsInf(e, 0) || math.IsNaN(e) {
			e = 0
		} else if e > 0 {
			finite = true
		}
		s.Seconds = append(s.Seconds, sum.Center)
		s.Errors = append(s.Errors, e)
	}
	if !finite {
		s.Errors = nil
	}
	return s, nil
}

// sampleCount returns the value of the first name part that starts with prefix.
func sampleCount(name benchfmt.Name, prefix []byte) (int, bool) {
	_, parts := name.Parts()
	for _, part := range parts {
		if len(part) <= len(prefix) || string(part[:len(prefix)]) != string(prefix) {
			continue
		}
		n, err := strconv.Atoi(string(part[len(prefix):]))
		if err != nil || n <= 0 {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// Write writes the series of c to w in the Go benchmark format, one
// result per sample value, named Benchmark<name>/<key>=<N>. Read with
// the same key reads it back.
func Write(w io.Writer, c *spp.Config, name, key string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if name == "" || strings.ContainsAny(name, " \t\n/") {
		return fmt.Errorf("bad benchmark name %q", name)
	}
	if key == "" || strings.ContainsAny(key, " \t\n/=") {
		return fmt.Errorf("bad sample key %q", key)
	}
	bw := benchfmt.NewWriter(w)
	for i, n := range c.Samples {
		res := &benchfmt.Result{
			Name:  benchfmt.Name(fmt.Sprintf("%s/%s=%d", name, key, n)),
			Iters: 1,
			Values: []benchfmt.Value{
				{Value: c.Seconds[i], Unit: TimeUnit},
			},
		}
		if err := bw.Write(res); err != nil {
			return err
		}
	}
	return nil
}

// A CostSummary describes the rendering time per sample per pixel.
type CostSummary struct {
	Mean, StdDev float64
	Min, Max     float64
}

// Cost summarises seconds/samples over every point of c.
func Cost(c *spp.Config) (CostSummary, error) {
	if err := c.Validate(); err != nil {
		return CostSummary{}, err
	}
	xs := make([]float64, len(c.Samples))
	for i, n := range c.Samples {
		xs[i] = c.Seconds[i] / float64(n)
	}
	sample := stats.Sample{Xs: xs}
	var sum CostSummary
	sum.Mean = sample.Mean()
	if len(xs) > 1 {
		sum.StdDev = sample.StdDev()
	}
	sum.Min, sum.Max = sample.Bounds()
	return sum, nil
}
