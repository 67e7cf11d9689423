// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package rgbmatrix

import (
	"image"
	"image/color"
	"image/draw"
)

// Canvas is one frame buffer of the matrix. The Dev owns a pair of them:
// at any instant one is being scanned to the panel and the other is handed
// to the client for drawing. SwapOnVSync exchanges the two.
//
// Out-of-bounds access follows the image package convention: writes are
// silently dropped and reads return opaque black.
type Canvas struct {
	w, h int
	// pix holds 3 bytes (R, G, B) per pixel in row-major order.
	pix []uint8
}

func newCanvas(w, h int) *Canvas {
	return &Canvas{w: w, h: h, pix: make([]uint8, 3*w*h)}
}

// ColorModel implements draw.Image.
func (c *Canvas) ColorModel() color.Model {
	return color.NRGBAModel
}

// Bounds implements draw.Image.
func (c *Canvas) Bounds() image.Rectangle {
	return image.Rect(0, 0, c.w, c.h)
}

// At implements draw.Image.
func (c *Canvas) At(x, y int) color.Color {
	r, g, b := c.GetPixel(x, y)
	return color.NRGBA{R: r, G: g, B: b, A: 255}
}

// Set implements draw.Image.
func (c *Canvas) Set(x, y int, col color.Color) {
	r16, g16, b16, _ := col.RGBA()
	c.SetPixel(x, y, uint8(r16>>8), uint8(g16>>8), uint8(b16>>8))
}

// SetPixel sets one pixel. Out-of-bounds coordinates are ignored.
func (c *Canvas) SetPixel(x, y int, r, g, b uint8) {
	if x < 0 || x >= c.w || y < 0 || y >= c.h {
		return
	}
	i := 3 * (y*c.w + x)
	c.pix[i] = r
	c.pix[i+1] = g
	c.pix[i+2] = b
}

// GetPixel returns one pixel. Out-of-bounds coordinates read as black.
func (c *Canvas) GetPixel(x, y int) (r, g, b uint8) {
	if x < 0 || x >= c.w || y < 0 || y >= c.h {
		return 0, 0, 0
	}
	i := 3 * (y*c.w + x)
	return c.pix[i], c.pix[i+1], c.pix[i+2]
}

// Fill sets every pixel to the same color.
func (c *Canvas) Fill(r, g, b uint8) {
	for i := 0; i < len(c.pix); i += 3 {
		c.pix[i] = r
		c.pix[i+1] = g
		c.pix[i+2] = b
	}
}

var _ draw.Image = &Canvas{}
