// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package rgbmatrix

import "time"

// Registers is the register-level surface of the GPIO peripheral the
// refresh engine drives. The real implementation is bcmregs.Dev; tests
// substitute a recording fake so nothing touches hardware.
//
// The handle passed to New is owned by the Dev from then on and is closed
// exactly once when the engine stops.
type Registers interface {
	// SetBits drives every pin in mask high.
	SetBits(mask uint32)
	// ClearBits drives every pin in mask low.
	ClearBits(mask uint32)
	// Read returns the current level of a pin.
	Read(pin uint8) bool
	// SelectOutput configures a pin as a GPIO output.
	SelectOutput(pin uint8)
	// SleepAtLeast busy-waits for at least d with sub-microsecond
	// resolution.
	SleepAtLeast(d time.Duration)
	// Err reports whether the register mapping is still usable. A non-nil
	// value is fatal to the engine; it stops rather than write through an
	// invalid mapping.
	Err() error
	// Close releases the mapping.
	Close() error
}

// Pulser emits one output-enable pulse per bit-plane, its width encoding
// the plane's brightness weight.
type Pulser interface {
	// SendPulse starts the pulse for the given plane index (0 = LSB).
	SendPulse(plane int)
	// WaitPulseFinished blocks until the pulse has ended.
	WaitPulseFinished()
}

// HardwarePulseSource is implemented by register backends that can generate
// output-enable pulses with a hardware peripheral (the PWM FIFO on the Pi).
// The engine prefers it over software timing when the wiring allows.
type HardwarePulseSource interface {
	Pulser(mask uint32, timings []time.Duration) (Pulser, error)
}

// timerPulser synthesizes pulses in software: drive the (active low) pins
// low, busy-wait the plane's duration, drive them high again.
type timerPulser struct {
	regs    Registers
	mask    uint32
	timings []time.Duration
}

func (t *timerPulser) SendPulse(plane int) {
	t.regs.ClearBits(t.mask)
	t.regs.SleepAtLeast(t.timings[plane])
	t.regs.SetBits(t.mask)
}

func (t *timerPulser) WaitPulseFinished() {}
