// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package bcmregs gives the rgbmatrix scan loop raw access to the BCM283x
// GPIO block, the free-running system timer and the PWM peripheral through
// a physical memory mapping.
//
// Mapping device registers is inherently unsafe pointer territory; this
// package is the single place that deals with raw addresses and exposes
// only typed set/clear/read/delay operations over the validated layout.
// Everything above it, including the refresh engine, stays safe Go.
//
// Exactly one Dev may exist per process: concurrent independent mappings of
// the same register block would fight over pin state.
package bcmregs
