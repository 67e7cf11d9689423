// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package rgbmatrix

import (
	"errors"
	"strings"
	"testing"
)

func TestMappingsValid(t *testing.T) {
	for name, m := range mappings {
		if err := m.validate(); err != nil {
			t.Errorf("mapping %q does not validate: %v", name, err)
		}
		if m.Name != name {
			t.Errorf("mapping registered as %q names itself %q", name, m.Name)
		}
		if len(m.Chains) == 0 {
			t.Errorf("mapping %q has no data chains", name)
		}
	}
}

func TestMappingByName(t *testing.T) {
	m, err := MappingByName("adafruit-hat")
	if err != nil {
		t.Fatal(err)
	}
	if m.OutputEnable != 4 {
		t.Errorf("adafruit-hat output-enable = %d, want 4", m.OutputEnable)
	}
	if _, err := MappingByName("no-such-board"); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("unknown mapping returned %v, want ErrInvalidConfig", err)
	}
}

func TestMappingValidateCollision(t *testing.T) {
	m := &HardwareMapping{
		Name:         "colliding",
		Clock:        17,
		Latch:        17, // same as clock
		OutputEnable: 18,
		Addr:         [5]int8{22, 23, -1, -1, -1},
		Chains:       []ChainPins{{R1: 5, G1: 13, B1: 6, R2: 12, G2: 16, B2: 23}},
	}
	err := m.validate()
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("colliding mapping returned %v, want ErrInvalidConfig", err)
	}
	if !strings.Contains(err.Error(), "pin 17") {
		t.Errorf("error does not name the colliding pin: %v", err)
	}
}

func TestMappingMasks(t *testing.T) {
	m := mappings["adafruit-hat"]
	if got, want := m.clockMask(), uint32(1<<17); got != want {
		t.Errorf("clockMask = %#x, want %#x", got, want)
	}
	if got, want := m.addrMask(), uint32(1<<22|1<<26|1<<27|1<<20|1<<24); got != want {
		t.Errorf("addrMask = %#x, want %#x", got, want)
	}
	// Row 5 = 0b101 selects lines A and C.
	if got, want := m.addrBits(5), uint32(1<<22|1<<27); got != want {
		t.Errorf("addrBits(5) = %#x, want %#x", got, want)
	}
	if got, want := m.addrLines(), 5; got != want {
		t.Errorf("addrLines = %d, want %d", got, want)
	}
	data := m.dataMask(1)
	for _, pin := range []uint8{5, 13, 6, 12, 16, 23} {
		if data&(1<<uint(pin)) == 0 {
			t.Errorf("dataMask missing pin %d", pin)
		}
	}
	used := m.usedMask(1)
	if used&data != data || used&m.clockMask() == 0 || used&m.oeMask() == 0 {
		t.Errorf("usedMask = %#x does not cover all roles", used)
	}
}

func TestMappingNames(t *testing.T) {
	names := MappingNames()
	if len(names) != len(mappings) {
		t.Fatalf("MappingNames returned %d entries, want %d", len(names), len(mappings))
	}
}
