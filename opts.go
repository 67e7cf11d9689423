// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package rgbmatrix

import (
	"fmt"

	"periph.io/x/conn/v3/physic"
)

// RowAddressType selects how the row address lines are driven.
type RowAddressType int

const (
	// Direct puts the binary scan row index on the A..E lines. This is what
	// nearly all indoor panels use.
	Direct RowAddressType = iota
	// ABShiftRegister shifts the row selection through an address shift
	// register, clock on line A and data on line B. Used by some AB-addressed
	// outdoor panels.
	ABShiftRegister
)

// DefaultOpts is the recommended default options: a single 32x64 panel on
// the classic wiring.
var DefaultOpts = Opts{
	Rows:              32,
	Cols:              64,
	ChainLength:       1,
	Parallel:          1,
	PWMBits:           11,
	Brightness:        100,
	HardwareMapping:   "regular",
	PWMLSBNanoseconds: 130,
}

// Opts defines the panel configuration. It is validated by New and never
// mutated afterwards.
type Opts struct {
	// Rows and Cols are the dimensions of a single panel. Rows must be even;
	// common panels are 16, 32 or 64 rows high.
	Rows int
	Cols int

	// ChainLength is the number of daisy-chained panels on each chain.
	ChainLength int

	// Parallel is the number of chains driven in parallel (1..3, limited by
	// the wiring variant).
	Parallel int

	// PWMBits is the binary code modulation depth, 1..11. Lower values trade
	// color resolution for refresh rate.
	PWMBits int

	// Brightness scales the overall luminance, 1..100.
	Brightness int

	// HardwareMapping names the wiring variant, see MappingNames.
	HardwareMapping string

	// AddressType selects the row addressing scheme.
	AddressType RowAddressType

	// PWMLSBNanoseconds is the output-enable duration of the least
	// significant bit-plane. Larger values give a more linear color ramp on
	// panels with slow drivers at the cost of refresh rate. 0 means the
	// default of 130ns.
	PWMLSBNanoseconds int

	// DitherBits time-dithers the lowest bit-planes across consecutive
	// frames instead of displaying them every frame, raising the refresh
	// rate at the cost of some effective color depth. 0 disables dithering.
	DitherBits int

	// LimitRefresh caps the refresh rate when non-zero. Useful to get a
	// constant rate independent of image content, avoiding visible
	// brightness fluctuations.
	LimitRefresh physic.Frequency

	// BrightnessCurve optionally replaces the built-in CIE 1931 luminance
	// correction. It must have 256 entries mapping an 8-bit channel value to
	// a duty value in [0, 1<<PWMBits-1].
	BrightnessCurve []uint16

	// DisableHardwarePulsing forces the timer-based output-enable pulser
	// even when the wiring would allow the PWM peripheral to generate the
	// pulses.
	DisableHardwarePulsing bool
}

// validate checks the options and resolves the hardware mapping.
func (o *Opts) validate() (*HardwareMapping, error) {
	if o.Rows < 8 || o.Rows > 64 || o.Rows%2 != 0 {
		return nil, fmt.Errorf("rgbmatrix: rows must be even and within 8..64, got %d: %w", o.Rows, ErrInvalidConfig)
	}
	if o.Cols < 8 || o.Cols%8 != 0 {
		return nil, fmt.Errorf("rgbmatrix: cols must be a positive multiple of 8, got %d: %w", o.Cols, ErrInvalidConfig)
	}
	if o.ChainLength < 1 {
		return nil, fmt.Errorf("rgbmatrix: chain length must be at least 1, got %d: %w", o.ChainLength, ErrInvalidConfig)
	}
	if o.PWMBits < 1 || o.PWMBits > 11 {
		return nil, fmt.Errorf("rgbmatrix: PWM bits must be within 1..11, got %d: %w", o.PWMBits, ErrInvalidConfig)
	}
	if o.Brightness < 1 || o.Brightness > 100 {
		return nil, fmt.Errorf("rgbmatrix: brightness must be within 1..100, got %d: %w", o.Brightness, ErrInvalidConfig)
	}
	if o.DitherBits < 0 || o.DitherBits >= o.PWMBits {
		return nil, fmt.Errorf("rgbmatrix: dither bits must be within 0..%d, got %d: %w", o.PWMBits-1, o.DitherBits, ErrInvalidConfig)
	}
	if o.PWMLSBNanoseconds < 0 {
		return nil, fmt.Errorf("rgbmatrix: PWM LSB nanoseconds cannot be negative: %w", ErrInvalidConfig)
	}
	m, err := MappingByName(o.HardwareMapping)
	if err != nil {
		return nil, err
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	if o.Parallel < 1 || o.Parallel > len(m.Chains) {
		return nil, fmt.Errorf("rgbmatrix: mapping %q supports 1..%d parallel chains, got %d: %w", m.Name, len(m.Chains), o.Parallel, ErrInvalidConfig)
	}
	scan := o.Rows / 2
	switch o.AddressType {
	case Direct:
		if scan > 1<<uint(m.addrLines()) {
			return nil, fmt.Errorf("rgbmatrix: mapping %q has %d address lines, cannot select %d scan rows: %w", m.Name, m.addrLines(), scan, ErrInvalidConfig)
		}
	case ABShiftRegister:
		if m.addrLines() < 2 {
			return nil, fmt.Errorf("rgbmatrix: AB addressing needs the A and B lines: %w", ErrInvalidConfig)
		}
	default:
		return nil, fmt.Errorf("rgbmatrix: unknown address type %d: %w", o.AddressType, ErrInvalidConfig)
	}
	if o.BrightnessCurve != nil {
		if len(o.BrightnessCurve) != 256 {
			return nil, fmt.Errorf("rgbmatrix: brightness curve must have 256 entries, got %d: %w", len(o.BrightnessCurve), ErrInvalidConfig)
		}
		max := uint16(1<<uint(o.PWMBits) - 1)
		for i, v := range o.BrightnessCurve {
			if v > max {
				return nil, fmt.Errorf("rgbmatrix: brightness curve entry %d is %d, exceeds %d-bit duty range: %w", i, v, o.PWMBits, ErrInvalidConfig)
			}
		}
	}
	return m, nil
}

// lsbNanos returns the configured LSB pulse width with the default applied.
func (o *Opts) lsbNanos() int {
	if o.PWMLSBNanoseconds == 0 {
		return DefaultOpts.PWMLSBNanoseconds
	}
	return o.PWMLSBNanoseconds
}
