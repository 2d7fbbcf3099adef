// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package htmlreport renders an index page for a samples-per-pixel
// report: the chart, the animation and the timing table.
package htmlreport

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/google/safehtml/template"
	"golang.org/x/perf/benchunit"

	"github.com/pathtracer/sppreport/internal/atomicfile"
	"github.com/pathtracer/sppreport/spp"
	"github.com/pathtracer/sppreport/timings"
)

var htmlTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
</head>
<body>
<h1>{{.Title}}</h1>
{{if .Chart}}<p><img src="{{.Chart}}" alt="{{.Title}}"></p>{{end}}
{{if .GIF}}<p><img src="{{.GIF}}" alt="frames by samples per pixel"></p>{{end}}
<table class='spp'>
<tr><th>{{.XLabel}}<th>time<th>time/spp
{{range .Rows -}}
<tr><td>{{.Samples}}<td>{{.Time}}<td>{{.PerSample}}
{{end -}}
</table>
<p class='cost'>time per sample per pixel: mean {{.Cost.Mean}}, stddev {{.Cost.StdDev}}, range [{{.Cost.Min}}, {{.Cost.Max}}]</p>
</body>
</html>
`))

type row struct {
	Samples   int
	Time      string
	PerSample string
}

type cost struct {
	Mean, StdDev, Min, Max string
}

type page struct {
	Title  string
	XLabel string
	Chart  string
	GIF    string
	Rows   []row
	Cost   cost
}

// Options selects what the page links to.
type Options struct {
	// Dir is the directory the page is written to. Artifact links
	// are made relative to it.
	Dir string
	// NoChart and NoGIF omit the corresponding image.
	NoChart, NoGIF bool
}

func seconds(v float64) string {
	return benchunit.Scale(v, benchunit.Decimal) + "s"
}

// relLink returns the slash-separated path of target relative to dir.
// Either may be relative to the working directory.
func relLink(dir, target string) (string, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	absTarget, err := filepath.Abs(target)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(absDir, absTarget)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// Write renders the report page for c to w.
func Write(w io.Writer, c *spp.Config, opts Options) error {
	sum, err := timings.Cost(c)
	if err != nil {
		return err
	}
	p := page{
		Title:  c.Title,
		XLabel: c.XLabel,
		Cost: cost{
			Mean:   seconds(sum.Mean),
			StdDev: seconds(sum.StdDev),
			Min:    seconds(sum.Min),
			Max:    seconds(sum.Max),
		},
	}
	if !opts.NoChart {
		if p.Chart, err = relLink(opts.Dir, c.ChartPath()); err != nil {
			return err
		}
	}
	if !opts.NoGIF {
		if p.GIF, err = relLink(opts.Dir, c.GIFPath()); err != nil {
			return err
		}
	}
	for i, n := range c.Samples {
		p.Rows = append(p.Rows, row{
			Samples:   n,
			Time:      seconds(c.Seconds[i]),
			PerSample: seconds(c.Seconds[i] / float64(n)),
		})
	}
	return htmlTemplate.Execute(w, p)
}

// WriteFile renders the report page for c to path.
func WriteFile(path string, c *spp.Config, opts Options) error {
	opts.Dir = filepath.Dir(path)
	err := atomicfile.WriteFile(path, func(w io.Writer) error {
		return Write(w, c, opts)
	})
	if err != nil {
		return fmt.Errorf("write html report: %w", err)
	}
	return nil
}
