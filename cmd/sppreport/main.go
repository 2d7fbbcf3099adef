// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Sppreport plots path tracer rendering time against samples per
// pixel and combines the frames rendered at each sample count into an
// animated GIF.
//
// Usage:
//
//	sppreport [flags]
//
// With no flags, sppreport reads benchmark/spp/spp{N}.png for each
// recorded sample count N and writes benchmark/spp/graph.png and
// benchmark/spp/spp.gif.
//
// The -results flag replaces the recorded timings with results in the
// Go benchmark format, such as the output of ``go test -bench''.
// Each result must have a /spp=N sub-benchmark name part. Repeated
// results for the same N are summarised by their median.
//
// The remaining flags optionally save the series in the benchmark
// format (-bench-out), write an HTML index page (-html), record the run
// in a SQL history database (-dsn), and upload the artifacts to a
// Google Cloud Storage bucket (-gcs-bucket).
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	_ "github.com/GoogleCloudPlatform/cloudsql-proxy/proxy/dialers/mysql"
	_ "github.com/go-sql-driver/mysql"
	"golang.org/x/perf/benchfmt"

	"github.com/pathtracer/sppreport/animate"
	"github.com/pathtracer/sppreport/chart"
	"github.com/pathtracer/sppreport/htmlreport"
	"github.com/pathtracer/sppreport/internal/atomicfile"
	"github.com/pathtracer/sppreport/spp"
	"github.com/pathtracer/sppreport/storage/db"
	_ "github.com/pathtracer/sppreport/storage/db/sqlite3"
	"github.com/pathtracer/sppreport/storage/fs"
	"github.com/pathtracer/sppreport/storage/fs/gcs"
	"github.com/pathtracer/sppreport/timings"
)

type options struct {
	dir        string
	results    string
	key        string
	logScale   bool
	delay      time.Duration
	loop       int
	frameWidth int
	skipChart  bool
	skipGIF    bool

	benchOut  string
	benchName string
	html      string

	dbDriver string
	dsn      string

	gcsBucket   string
	gcsPrefix   string
	credentials string

	verbose bool
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage of sppreport:
	sppreport [flags]
`)
	flag.PrintDefaults()
	os.Exit(2)
}

func main() {
	log.SetPrefix("sppreport: ")
	log.SetFlags(0)

	def := spp.Default()
	var o options
	flag.StringVar(&o.dir, "dir", def.Dir, "benchmark `directory` holding the frames and the output")
	flag.StringVar(&o.results, "results", "", "comma-separated benchmark result `files` to take timings from (label=path allowed, - is stdin)")
	flag.StringVar(&o.key, "key", "spp", "sub-benchmark name `key` holding the samples per pixel")
	flag.BoolVar(&o.logScale, "log", def.LogScale, "use log scales in the chart")
	flag.DurationVar(&o.delay, "delay", def.FrameDelay, "display time of each GIF frame")
	flag.IntVar(&o.loop, "loop", def.LoopCount, "GIF loop count (0 loops forever, -1 plays once)")
	flag.IntVar(&o.frameWidth, "frame-width", def.FrameWidth, "scale frames to this `width` in pixels (0 keeps the native size)")
	flag.BoolVar(&o.skipChart, "skip-chart", false, "do not write the chart")
	flag.BoolVar(&o.skipGIF, "skip-gif", false, "do not write the GIF")
	flag.StringVar(&o.benchOut, "bench-out", "", "write the timing series to `file` in the Go benchmark format")
	flag.StringVar(&o.benchName, "bench-name", "Render", "benchmark `name` used by -bench-out")
	flag.StringVar(&o.html, "html", "", "write an HTML index page to `file`")
	flag.StringVar(&o.dbDriver, "db-driver", "sqlite3", "history database `driver` (sqlite3 or mysql)")
	flag.StringVar(&o.dsn, "dsn", "", "record the run in the history database at `dsn`")
	flag.StringVar(&o.gcsBucket, "gcs-bucket", "", "upload the artifacts to this Cloud Storage `bucket`")
	flag.StringVar(&o.gcsPrefix, "gcs-prefix", "", "object name `prefix` for uploaded artifacts")
	flag.StringVar(&o.credentials, "credentials", "", "service account credentials `file` for -gcs-bucket")
	flag.BoolVar(&o.verbose, "v", false, "print verbose log messages")
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() != 0 {
		usage()
	}

	if err := run(context.Background(), &o); err != nil {
		log.Fatal(err)
	}
}

func (o *options) vlogf(format string, args ...interface{}) {
	if o.verbose {
		log.Printf(format, args...)
	}
}

func warn(format string, args ...interface{}) {
	log.Printf("warning: "+format, args...)
}

// config applies the flags to the default configuration.
func (o *options) config() (*spp.Config, error) {
	c := spp.Default()
	c.Dir = o.dir
	c.LogScale = o.logScale
	c.FrameDelay = o.delay
	c.LoopCount = o.loop
	c.FrameWidth = o.frameWidth

	if o.results != "" {
		files := &benchfmt.Files{
			Paths:       strings.Split(o.results, ","),
			AllowStdin:  true,
			AllowLabels: true,
		}
		s, err := timings.Read(files, o.key, warn)
		if err != nil {
			return nil, fmt.Errorf("reading results: %w", err)
		}
		s.Apply(c)
		o.vlogf("read %d timings from %s", len(s.Samples), o.results)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func run(ctx context.Context, o *options) error {
	c, err := o.config()
	if err != nil {
		return err
	}
	if !c.Monotonic() {
		warn("timings do not increase with samples per pixel")
	}

	rec := &db.Run{Samples: c.Samples, Seconds: c.Seconds}
	var artifacts []string

	if !o.skipChart {
		if err := chart.Render(c, chart.DefaultOptions); err != nil {
			return err
		}
		o.vlogf("wrote %s (%d points)", c.ChartPath(), len(c.Samples))
		rec.ChartPath = c.ChartPath()
		artifacts = append(artifacts, c.ChartPath())
	}

	if !o.skipGIF {
		if err := animate.Assemble(c); err != nil {
			return err
		}
		o.vlogf("wrote %s (%d frames, %v each)", c.GIFPath(), len(c.Samples), c.FrameDelay)
		rec.GIFPath = c.GIFPath()
		rec.Frames = len(c.Samples)
		artifacts = append(artifacts, c.GIFPath())
	}

	if o.benchOut != "" {
		err := atomicfile.WriteFile(o.benchOut, func(w io.Writer) error {
			return timings.Write(w, c, o.benchName, o.key)
		})
		if err != nil {
			return fmt.Errorf("writing %s: %w", o.benchOut, err)
		}
		o.vlogf("wrote %s", o.benchOut)
	}

	if o.html != "" {
		err := htmlreport.WriteFile(o.html, c, htmlreport.Options{NoChart: o.skipChart, NoGIF: o.skipGIF})
		if err != nil {
			return err
		}
		o.vlogf("wrote %s", o.html)
		artifacts = append(artifacts, o.html)
	}

	if o.dsn != "" {
		if err := record(ctx, o.dbDriver, o.dsn, rec); err != nil {
			return err
		}
		o.vlogf("recorded run %d", rec.ID)
	}

	if o.gcsBucket != "" && len(artifacts) > 0 {
		names, err := publish(ctx, o, artifacts)
		if err != nil {
			return err
		}
		for _, name := range names {
			o.vlogf("uploaded gs://%s/%s", o.gcsBucket, name)
		}
	}
	return nil
}

func record(ctx context.Context, driver, dsn string, run *db.Run) error {
	d, err := db.OpenSQL(driver, dsn)
	if err != nil {
		return fmt.Errorf("open history database: %w", err)
	}
	defer d.Close()
	if err := d.RecordRun(ctx, run); err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

func publish(ctx context.Context, o *options, artifacts []string) ([]string, error) {
	bucket, err := gcs.NewFS(ctx, o.gcsBucket, o.credentials)
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", o.gcsBucket, err)
	}
	defer bucket.Close()
	return fs.Publish(ctx, bucket, o.gcsPrefix, artifacts...)
}
