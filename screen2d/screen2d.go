// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package screen2d implements a display.Drawer that emulates an RGB LED
// matrix panel on the terminal (stdout) using ANSI color codes.
//
// Useful to develop animations without panels attached, or on a machine
// without the GPIO header; it accepts the same draw calls as the real
// matrix.
package screen2d

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/maruel/ansi256"
	"github.com/mattn/go-colorable"
	"periph.io/x/conn/v3/display"
)

// Opts represents the options available for this display.
type Opts struct {
	X       int
	Y       int
	Palette *ansi256.Palette

	_ struct{}
}

// Dev is a 2D LED matrix emulator that outputs to the console.
type Dev struct {
	w       io.Writer
	width   int
	height  int
	palette ansi256.Palette

	pixels []byte
	drawn  bool
	buf    bytes.Buffer
}

// New returns a Dev that displays at the console.
func New(opts *Opts) *Dev {
	p := opts.Palette
	if p == nil {
		p = ansi256.Default
	}
	return &Dev{
		w:       colorable.NewColorableStdout(),
		width:   opts.X,
		height:  opts.Y,
		palette: *p,
		pixels:  make([]byte, 3*opts.X*opts.Y),
	}
}

func (d *Dev) String() string {
	return "Screen2D"
}

// Halt implements conn.Resource.
//
// It resets the terminal attributes so the shell is not corrupted.
func (d *Dev) Halt() error {
	_, err := d.w.Write([]byte("\n\033[0m"))
	return err
}

// ColorModel implements display.Drawer.
func (d *Dev) ColorModel() color.Model {
	return color.NRGBAModel
}

// Bounds implements display.Drawer.
func (d *Dev) Bounds() image.Rectangle {
	return image.Rect(0, 0, d.width, d.height)
}

// Draw implements display.Drawer.
func (d *Dev) Draw(r image.Rectangle, src image.Image, sp image.Point) error {
	r = r.Intersect(d.Bounds())
	srcR := src.Bounds()
	srcR.Min = srcR.Min.Add(sp)
	if dX := r.Dx(); dX < srcR.Dx() {
		srcR.Max.X = srcR.Min.X + dX
	}
	if dY := r.Dy(); dY < srcR.Dy() {
		srcR.Max.Y = srcR.Min.Y + dY
	}
	for sY := srcR.Min.Y; sY < srcR.Max.Y; sY++ {
		dY := r.Min.Y + sY - srcR.Min.Y
		for sX := srcR.Min.X; sX < srcR.Max.X; sX++ {
			r16, g16, b16, _ := src.At(sX, sY).RGBA()
			i := 3 * (dY*d.width + r.Min.X + sX - srcR.Min.X)
			d.pixels[i] = byte(r16 >> 8)
			d.pixels[i+1] = byte(g16 >> 8)
			d.pixels[i+2] = byte(b16 >> 8)
		}
	}
	return d.refresh()
}

func (d *Dev) refresh() error {
	// This code is designed to minimize the amount of memory allocated per
	// call. After the first frame the cursor is moved back up so repeated
	// draws animate in place.
	d.buf.Reset()
	if d.drawn {
		fmt.Fprintf(&d.buf, "\033[%dA", d.height)
	}
	d.drawn = true
	for y := 0; y < d.height; y++ {
		_, _ = d.buf.WriteString("\033[0m")
		for x := 0; x < d.width; x++ {
			i := 3 * (y*d.width + x)
			c := color.NRGBA{d.pixels[i], d.pixels[i+1], d.pixels[i+2], 255}
			_, _ = io.WriteString(&d.buf, d.palette.Block(c))
		}
		_, _ = d.buf.WriteString("\033[0m\n")
	}
	_, err := d.buf.WriteTo(d.w)
	return err
}

var _ display.Drawer = &Dev{}
var _ fmt.Stringer = &Dev{}
