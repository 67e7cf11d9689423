// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package rgbmatrix

import (
	"math"
	"time"
)

// chainMasks caches the per-chain data line masks so the encoder never
// shifts pin numbers in the hot path.
type chainMasks struct {
	r1, g1, b1 uint32
	r2, g2, b2 uint32
}

// frameBuffer converts canvas pixels into binary code modulation bit-planes.
//
// The planes are stored as one flat, pre-allocated slice of GPIO words: for
// every (plane, scan row, column) one word holding the data line bits of
// all parallel chains. The slice is reused frame after frame; encoding
// never allocates.
type frameBuffer struct {
	scanRows int
	physCols int
	pwmBits  int
	rows     int

	chains []chainMasks
	lut    [256]uint16

	planes []uint32
}

func newFrameBuffer(m *HardwareMapping, o *Opts) *frameBuffer {
	f := &frameBuffer{
		scanRows: o.Rows / 2,
		physCols: o.Cols * o.ChainLength,
		pwmBits:  o.PWMBits,
		rows:     o.Rows,
		chains:   make([]chainMasks, o.Parallel),
	}
	for i, c := range m.Chains[:o.Parallel] {
		f.chains[i] = chainMasks{
			r1: 1 << uint(c.R1), g1: 1 << uint(c.G1), b1: 1 << uint(c.B1),
			r2: 1 << uint(c.R2), g2: 1 << uint(c.G2), b2: 1 << uint(c.B2),
		}
	}
	if o.BrightnessCurve != nil {
		copy(f.lut[:], o.BrightnessCurve)
	} else {
		maxDuty := float64(int(1)<<uint(o.PWMBits) - 1)
		for i := range f.lut {
			f.lut[i] = cie1931(uint8(i), o.Brightness, maxDuty)
		}
	}
	f.planes = make([]uint32, o.PWMBits*f.scanRows*f.physCols)
	return f
}

// cie1931 maps an 8-bit channel value through the CIE 1931 lightness curve,
// scaled by brightness in percent, to a duty value in [0, maxDuty]. The
// mapping keeps perceived luminance approximately linear in the input.
func cie1931(c uint8, brightness int, maxDuty float64) uint16 {
	l := float64(c) / 255.0 * float64(brightness) // 0..100
	var out float64
	if l <= 8 {
		out = l / 902.3
	} else {
		out = math.Pow((l+16.0)/116.0, 3)
	}
	return uint16(math.Round(out * maxDuty))
}

// planeRow returns the GPIO words of one plane for one scan row.
func (f *frameBuffer) planeRow(plane, row int) []uint32 {
	off := (plane*f.scanRows + row) * f.physCols
	return f.planes[off : off+f.physCols]
}

// encode regenerates every bit-plane from the canvas. The canvas must not
// be mutated while encode runs; the engine guarantees that by only encoding
// buffers it owns.
func (f *frameBuffer) encode(c *Canvas) {
	for sr := 0; sr < f.scanRows; sr++ {
		for x := 0; x < f.physCols; x++ {
			for p, masks := range f.chains {
				top := 3 * ((p*f.rows+sr)*c.w + x)
				bot := 3 * ((p*f.rows+sr+f.scanRows)*c.w + x)
				r1 := f.lut[c.pix[top]]
				g1 := f.lut[c.pix[top+1]]
				b1 := f.lut[c.pix[top+2]]
				r2 := f.lut[c.pix[bot]]
				g2 := f.lut[c.pix[bot+1]]
				b2 := f.lut[c.pix[bot+2]]
				for plane := 0; plane < f.pwmBits; plane++ {
					w := &f.planes[(plane*f.scanRows+sr)*f.physCols+x]
					if p == 0 {
						*w = 0
					}
					b := uint16(1) << uint(plane)
					if r1&b != 0 {
						*w |= masks.r1
					}
					if g1&b != 0 {
						*w |= masks.g1
					}
					if b1&b != 0 {
						*w |= masks.b1
					}
					if r2&b != 0 {
						*w |= masks.r2
					}
					if g2&b != 0 {
						*w |= masks.g2
					}
					if b2&b != 0 {
						*w |= masks.b2
					}
				}
			}
		}
	}
}

// bitplaneTimings returns the output-enable duration of each plane, LSB
// first, each twice the previous.
func bitplaneTimings(pwmBits, lsbNanos int) []time.Duration {
	t := make([]time.Duration, pwmBits)
	for i := range t {
		t[i] = time.Duration(lsbNanos<<uint(i)) * time.Nanosecond
	}
	return t
}
