// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package rgbmatrix

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func testFrameBuffer(t *testing.T, opts *Opts) *frameBuffer {
	t.Helper()
	m, err := opts.validate()
	if err != nil {
		t.Fatal(err)
	}
	return newFrameBuffer(m, opts)
}

func TestLutMonotonic(t *testing.T) {
	for _, brightness := range []int{1, 40, 100} {
		opts := DefaultOpts
		opts.Brightness = brightness
		f := testFrameBuffer(t, &opts)
		for i := 1; i < 256; i++ {
			if f.lut[i] < f.lut[i-1] {
				t.Fatalf("brightness %d: lut[%d]=%d < lut[%d]=%d", brightness, i, f.lut[i], i-1, f.lut[i-1])
			}
		}
		if f.lut[0] != 0 {
			t.Errorf("brightness %d: lut[0] = %d, want 0", brightness, f.lut[0])
		}
	}
}

func TestLutFullScale(t *testing.T) {
	opts := DefaultOpts
	f := testFrameBuffer(t, &opts)
	if want := uint16(1<<11 - 1); f.lut[255] != want {
		t.Errorf("lut[255] = %d, want full duty %d", f.lut[255], want)
	}
}

func TestPlaneCountMatchesDepth(t *testing.T) {
	for _, bits := range []int{1, 4, 8, 11} {
		opts := DefaultOpts
		opts.PWMBits = bits
		f := testFrameBuffer(t, &opts)
		if got := len(f.planes) / (f.scanRows * f.physCols); got != bits {
			t.Errorf("pwmBits=%d: %d planes", bits, got)
		}
	}
}

// The red drive bit of pixel (0,0) must be set in the most significant
// plane and the green/blue bits clear everywhere, for the reference 32x64
// configuration.
func TestEncodeRedPixel(t *testing.T) {
	opts := DefaultOpts // 32x64, chain 1, parallel 1, 11 PWM bits
	f := testFrameBuffer(t, &opts)
	c := newCanvas(64, 32)
	c.SetPixel(0, 0, 255, 0, 0)
	f.encode(c)

	chain := f.chains[0]
	msb := f.planeRow(f.pwmBits-1, 0)
	if msb[0]&chain.r1 == 0 {
		t.Error("red bit clear in MSB plane at scan position (0,0)")
	}
	for plane := 0; plane < f.pwmBits; plane++ {
		row := f.planeRow(plane, 0)
		if row[0]&(chain.g1|chain.b1) != 0 {
			t.Errorf("green/blue bit set in plane %d", plane)
		}
		if row[0]&(chain.r2|chain.g2|chain.b2) != 0 {
			t.Errorf("bottom-half bit set in plane %d", plane)
		}
	}
	// Every other scan position stays dark.
	for sr := 0; sr < f.scanRows; sr++ {
		for plane := 0; plane < f.pwmBits; plane++ {
			row := f.planeRow(plane, sr)
			for x, w := range row {
				if sr == 0 && x == 0 {
					continue
				}
				if w != 0 {
					t.Fatalf("unexpected drive bits %#x at plane %d row %d col %d", w, plane, sr, x)
				}
			}
		}
	}
}

// The bottom half of the row pair must land on the R2/G2/B2 lines, and
// parallel chains on their own line set.
func TestEncodeHalvesAndParallel(t *testing.T) {
	opts := DefaultOpts
	opts.Rows = 16
	opts.Cols = 8
	opts.Parallel = 2
	opts.PWMBits = 1
	f := testFrameBuffer(t, &opts)
	c := newCanvas(8, 32)
	c.SetPixel(2, 11, 255, 255, 255) // chain 0, bottom half, scan row 3
	c.SetPixel(5, 16, 0, 255, 0)     // chain 1, top half, scan row 0
	f.encode(c)

	row := f.planeRow(0, 3)
	want := f.chains[0].r2 | f.chains[0].g2 | f.chains[0].b2
	if row[2] != want {
		t.Errorf("bottom-half pixel encoded as %#x, want %#x", row[2], want)
	}
	row = f.planeRow(0, 0)
	if row[5] != f.chains[1].g1 {
		t.Errorf("parallel chain pixel encoded as %#x, want %#x", row[5], f.chains[1].g1)
	}
}

// Encoding the same canvas twice must produce identical planes.
func TestEncodeIdempotent(t *testing.T) {
	opts := DefaultOpts
	opts.Rows = 16
	opts.Cols = 16
	f := testFrameBuffer(t, &opts)
	c := newCanvas(16, 16)
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			c.SetPixel(x, y, uint8(17*x), uint8(13*y), uint8(x*y))
		}
	}
	f.encode(c)
	first := append([]uint32(nil), f.planes...)
	f.encode(c)
	if diff := cmp.Diff(first, f.planes); diff != "" {
		t.Errorf("re-encoding differs (-first +second):\n%s", diff)
	}
}

func TestCustomBrightnessCurve(t *testing.T) {
	curve := make([]uint16, 256)
	for i := range curve {
		curve[i] = uint16(i) // linear, well within 11 bits
	}
	opts := DefaultOpts
	opts.BrightnessCurve = curve
	f := testFrameBuffer(t, &opts)
	if f.lut[128] != 128 {
		t.Errorf("custom curve ignored: lut[128] = %d", f.lut[128])
	}
}

func TestBitplaneTimings(t *testing.T) {
	timings := bitplaneTimings(4, 130)
	want := []time.Duration{130, 260, 520, 1040}
	for i, w := range want {
		if timings[i] != w*time.Nanosecond {
			t.Errorf("timings[%d] = %v, want %vns", i, timings[i], w)
		}
	}
}
