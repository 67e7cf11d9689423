// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package rgbmatrix

import "fmt"

// ChainPins holds the six color data lines feeding one parallel chain of
// panels: the top half (R1/G1/B1) and bottom half (R2/G2/B2) of the scanned
// row pair.
type ChainPins struct {
	R1, G1, B1 uint8
	R2, G2, B2 uint8
}

// HardwareMapping describes how one wiring variant connects the HUB75
// control lines to BCM GPIO numbers. Address lines that the wiring does not
// provide are set to -1.
//
// A mapping is a pure data table; adding support for a new breakout or HAT
// means adding a table entry, not code.
type HardwareMapping struct {
	Name string

	Clock        uint8
	Latch        uint8
	OutputEnable uint8

	// Addr are the row address lines A..E, -1 when absent.
	Addr [5]int8

	// Chains lists the data lines of each supported parallel chain.
	Chains []ChainPins
}

// mappings is the registry of known wiring variants. Pin assignments match
// the classic active-3 breakout boards and the Adafruit HAT/Bonnet.
var mappings = map[string]*HardwareMapping{
	"regular": {
		Name:         "regular",
		Clock:        17,
		Latch:        4,
		OutputEnable: 18,
		Addr:         [5]int8{22, 23, 24, 25, 15},
		Chains: []ChainPins{
			{R1: 11, G1: 27, B1: 7, R2: 8, G2: 9, B2: 10},
			{R1: 12, G1: 5, B1: 6, R2: 19, G2: 13, B2: 20},
			{R1: 14, G1: 2, B1: 3, R2: 26, G2: 16, B2: 21},
		},
	},
	// Like "regular" but without the E address line and the third chain,
	// whose pins are taken by I²C/UART on the 26-pin header.
	"regular-pi1": {
		Name:         "regular-pi1",
		Clock:        17,
		Latch:        4,
		OutputEnable: 18,
		Addr:         [5]int8{22, 23, 24, 25, -1},
		Chains: []ChainPins{
			{R1: 11, G1: 27, B1: 7, R2: 8, G2: 9, B2: 10},
			{R1: 12, G1: 5, B1: 6, R2: 19, G2: 13, B2: 20},
		},
	},
	// The original 26-pin header wiring, predating the active-3 breakouts.
	// Single chain, no E line.
	"classic": {
		Name:         "classic",
		Clock:        11,
		Latch:        4,
		OutputEnable: 27,
		Addr:         [5]int8{7, 8, 9, 10, -1},
		Chains: []ChainPins{
			{R1: 17, G1: 18, B1: 22, R2: 23, G2: 24, B2: 25},
		},
	},
	// Rev 1 boards route GPIO27's position to GPIO0.
	"classic-pi1": {
		Name:         "classic-pi1",
		Clock:        11,
		Latch:        4,
		OutputEnable: 0,
		Addr:         [5]int8{7, 8, 9, 10, -1},
		Chains: []ChainPins{
			{R1: 17, G1: 18, B1: 22, R2: 23, G2: 24, B2: 25},
		},
	},
	"adafruit-hat": {
		Name:         "adafruit-hat",
		Clock:        17,
		Latch:        21,
		OutputEnable: 4,
		Addr:         [5]int8{22, 26, 27, 20, 24},
		Chains: []ChainPins{
			{R1: 5, G1: 13, B1: 6, R2: 12, G2: 16, B2: 23},
		},
	},
	// The HAT with the jumper mod that moves output-enable to GPIO18 so the
	// hardware PWM pulser can generate the brightness pulses.
	"adafruit-hat-pwm": {
		Name:         "adafruit-hat-pwm",
		Clock:        17,
		Latch:        21,
		OutputEnable: 18,
		Addr:         [5]int8{22, 26, 27, 20, 24},
		Chains: []ChainPins{
			{R1: 5, G1: 13, B1: 6, R2: 12, G2: 16, B2: 23},
		},
	},
}

// MappingByName returns the named wiring variant.
func MappingByName(name string) (*HardwareMapping, error) {
	m, ok := mappings[name]
	if !ok {
		return nil, fmt.Errorf("rgbmatrix: unknown hardware mapping %q: %w", name, ErrInvalidConfig)
	}
	return m, nil
}

// MappingNames returns the names of all known wiring variants.
func MappingNames() []string {
	names := make([]string, 0, len(mappings))
	for n := range mappings {
		names = append(names, n)
	}
	return names
}

func bit(pin int8) uint32 {
	if pin < 0 {
		return 0
	}
	return 1 << uint(pin)
}

func (m *HardwareMapping) clockMask() uint32 { return 1 << uint(m.Clock) }
func (m *HardwareMapping) latchMask() uint32 { return 1 << uint(m.Latch) }
func (m *HardwareMapping) oeMask() uint32    { return 1 << uint(m.OutputEnable) }

func (m *HardwareMapping) addrMask() uint32 {
	var mask uint32
	for _, a := range m.Addr {
		mask |= bit(a)
	}
	return mask
}

// addrBits returns the address line levels selecting the given scan row.
func (m *HardwareMapping) addrBits(row int) uint32 {
	var mask uint32
	for i, a := range m.Addr {
		if row&(1<<uint(i)) != 0 {
			mask |= bit(a)
		}
	}
	return mask
}

// addrLines returns how many address lines the wiring provides.
func (m *HardwareMapping) addrLines() int {
	n := 0
	for _, a := range m.Addr {
		if a >= 0 {
			n++
		}
	}
	return n
}

// dataMask returns the combined mask of the data lines of the first
// `parallel` chains.
func (m *HardwareMapping) dataMask(parallel int) uint32 {
	var mask uint32
	for _, c := range m.Chains[:parallel] {
		mask |= 1<<uint(c.R1) | 1<<uint(c.G1) | 1<<uint(c.B1)
		mask |= 1<<uint(c.R2) | 1<<uint(c.G2) | 1<<uint(c.B2)
	}
	return mask
}

// usedMask returns the mask of every pin the mapping drives with `parallel`
// chains attached.
func (m *HardwareMapping) usedMask(parallel int) uint32 {
	return m.clockMask() | m.latchMask() | m.oeMask() | m.addrMask() | m.dataMask(parallel)
}

// validate checks that no two roles share a pin.
func (m *HardwareMapping) validate() error {
	roles := map[uint8]string{}
	claim := func(pin int8, role string) error {
		if pin < 0 {
			return nil
		}
		p := uint8(pin)
		if prev, ok := roles[p]; ok {
			return fmt.Errorf("rgbmatrix: mapping %q: pin %d assigned to both %s and %s: %w", m.Name, p, prev, role, ErrInvalidConfig)
		}
		roles[p] = role
		return nil
	}
	if err := claim(int8(m.Clock), "clock"); err != nil {
		return err
	}
	if err := claim(int8(m.Latch), "latch"); err != nil {
		return err
	}
	if err := claim(int8(m.OutputEnable), "output-enable"); err != nil {
		return err
	}
	for i, a := range m.Addr {
		if err := claim(a, fmt.Sprintf("address %c", 'A'+i)); err != nil {
			return err
		}
	}
	for i, c := range m.Chains {
		for _, dp := range []struct {
			pin  uint8
			name string
		}{
			{c.R1, "R1"}, {c.G1, "G1"}, {c.B1, "B1"},
			{c.R2, "R2"}, {c.G2, "G2"}, {c.B2, "B2"},
		} {
			if err := claim(int8(dp.pin), fmt.Sprintf("chain %d %s", i, dp.name)); err != nil {
				return err
			}
		}
	}
	return nil
}
