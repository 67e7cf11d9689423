// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package screen2d_test

import (
	"image"
	"image/color"
	"log"

	"github.com/GermanBionicSystems/rgbmatrix/screen2d"
)

func Example() {
	dev := screen2d.New(&screen2d.Opts{X: 64, Y: 32})
	defer dev.Halt()

	// A diagonal gradient, the same draw calls work on the real panel.
	img := image.NewNRGBA(dev.Bounds())
	for y := 0; y < 32; y++ {
		for x := 0; x < 64; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(4 * x), G: uint8(8 * y), A: 255})
		}
	}
	if err := dev.Draw(dev.Bounds(), img, image.Point{}); err != nil {
		log.Fatal(err)
	}
}
