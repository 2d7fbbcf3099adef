// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package animate combines the frames rendered at each
// samples-per-pixel value into a looping GIF.
package animate

import (
	"errors"
	"fmt"
	"image"
	"image/color/palette"
	"image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"io/fs"
	"os"

	"golang.org/x/image/draw"

	"github.com/pathtracer/sppreport/internal/atomicfile"
	"github.com/pathtracer/sppreport/spp"
)

var (
	// ErrFrameNotFound is matched by errors for frames missing on disk.
	ErrFrameNotFound = errors.New("frame not found")

	// ErrFrameSize is matched by errors for frames whose bounds differ
	// from the first frame.
	ErrFrameSize = errors.New("frame size differs from first frame")
)

// A FrameError records a failure to load or convert one frame.
type FrameError struct {
	Index int
	Path  string
	Err   error
}

func (e *FrameError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("frame %d: %v", e.Index, e.Err)
	}
	return fmt.Sprintf("frame %d (%s): %v", e.Index, e.Path, e.Err)
}

func (e *FrameError) Unwrap() error { return e.Err }

// notFound wraps an fs.ErrNotExist error so that it matches both
// ErrFrameNotFound and fs.ErrNotExist.
type notFound struct{ err error }

func (e notFound) Error() string { return ErrFrameNotFound.Error() + ": " + e.err.Error() }

func (e notFound) Is(target error) bool { return target == ErrFrameNotFound }

func (e notFound) Unwrap() error { return e.err }

// Options controls the encoded animation.
type Options struct {
	// Delay is the per-frame delay in hundredths of a second.
	Delay int
	// LoopCount is passed through to gif.GIF: 0 loops forever.
	LoopCount int
	// Width, if positive, scales every frame to this width.
	Width int
}

// OptionsFor returns the encoding options described by c.
func OptionsFor(c *spp.Config) Options {
	return Options{
		Delay:     c.DelayCentiseconds(),
		LoopCount: c.LoopCount,
		Width:     c.FrameWidth,
	}
}

// LoadFrames decodes every file in paths, in order. All frames are
// read fully before LoadFrames returns; the first failure aborts the
// load.
func LoadFrames(paths []string) ([]image.Image, error) {
	frames := make([]image.Image, 0, len(paths))
	for i, path := range paths {
		img, err := loadFrame(path)
		if err != nil {
			return nil, &FrameError{Index: i, Path: path, Err: err}
		}
		frames = append(frames, img)
	}
	return frames, nil
}

func loadFrame(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, notFound{err}
		}
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return img, nil
}

// Build converts frames to a paletted animation. Frames are dithered
// onto the Plan 9 palette, so the same input always produces the same
// animation.
func Build(frames []image.Image, opts Options) (*gif.GIF, error) {
	if len(frames) == 0 {
		return nil, errors.New("no frames")
	}
	if opts.Delay < 1 {
		return nil, fmt.Errorf("delay %d, want >= 1", opts.Delay)
	}

	bounds := frames[0].Bounds()
	if opts.Width > 0 {
		h := bounds.Dy() * opts.Width / bounds.Dx()
		if h < 1 {
			h = 1
		}
		bounds = image.Rect(0, 0, opts.Width, h)
	}

	g := &gif.GIF{
		Image:     make([]*image.Paletted, len(frames)),
		Delay:     make([]int, len(frames)),
		LoopCount: opts.LoopCount,
	}
	for i, src := range frames {
		if opts.Width > 0 {
			src = scale(src, bounds)
		} else if src.Bounds().Size() != bounds.Size() {
			return nil, &FrameError{Index: i, Err: fmt.Errorf("%w: %v, first is %v", ErrFrameSize, src.Bounds().Size(), bounds.Size())}
		}
		dst := image.NewPaletted(image.Rect(0, 0, bounds.Dx(), bounds.Dy()), palette.Plan9)
		draw.FloydSteinberg.Draw(dst, dst.Bounds(), src, src.Bounds().Min)
		g.Image[i] = dst
		g.Delay[i] = opts.Delay
	}
	return g, nil
}

func scale(src image.Image, bounds image.Rectangle) image.Image {
	dst := image.NewRGBA(bounds)
	draw.CatmullRom.Scale(dst, bounds, src, src.Bounds(), draw.Src, nil)
	return dst
}

// Encode writes frames to w as a GIF.
func Encode(w io.Writer, frames []image.Image, opts Options) error {
	g, err := Build(frames, opts)
	if err != nil {
		return err
	}
	return gif.EncodeAll(w, g)
}

// Assemble loads the frame of every sample value in c and writes the
// animation to c.GIFPath(). Nothing is written unless every frame
// loads; a failed write leaves any previous animation in place.
func Assemble(c *spp.Config) error {
	if err := c.Validate(); err != nil {
		return err
	}
	frames, err := LoadFrames(c.FramePaths())
	if err != nil {
		return err
	}
	g, err := Build(frames, OptionsFor(c))
	if err != nil {
		return err
	}
	err = atomicfile.WriteFile(c.GIFPath(), func(w io.Writer) error {
		return gif.EncodeAll(w, g)
	})
	if err != nil {
		return fmt.Errorf("write animation: %w", err)
	}
	return nil
}

// Count returns the number of frames in the GIF read from r.
func Count(r io.Reader) (int, error) {
	g, err := gif.DecodeAll(r)
	if err != nil {
		return 0, err
	}
	return len(g.Image), nil
}
