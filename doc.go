// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package rgbmatrix drives HUB75 RGB LED matrix panels connected to the
// Raspberry Pi GPIO header.
//
// These panels have no frame memory and no brightness control of their own:
// the host must continuously shift each row's pixel bits into the panel's
// shift registers, strobe the latch, select the row address and gate the
// output-enable line, fast enough that persistence of vision produces a
// stable image. Color depth is synthesized with binary code modulation: the
// image is decomposed into per-bit planes whose display durations are
// weighted by powers of two.
//
// The driver runs the scan loop on a dedicated OS thread that talks to the
// memory-mapped GPIO registers (package bcmregs). Clients draw into a
// double-buffered Canvas and hand frames over with SwapOnVSync, or use the
// display.Drawer interface like any other periph display.
//
// # Wiring
//
// Several common wirings are supported, selected by name through
// Opts.HardwareMapping; "regular" matches the classic active-3 breakout,
// "adafruit-hat" the Adafruit RGB Matrix HAT/Bonnet.
package rgbmatrix
