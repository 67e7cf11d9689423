// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package bcmregs

import (
	"encoding/binary"
	"errors"
	"testing"
	"time"
)

func rangesBytes(cells ...uint32) []byte {
	b := make([]byte, 4*len(cells))
	for i, c := range cells {
		binary.BigEndian.PutUint32(b[4*i:], c)
	}
	return b
}

func TestParseSoCRanges(t *testing.T) {
	for _, tc := range []struct {
		name   string
		ranges []byte
		base   int64
		ok     bool
	}{
		{
			name:   "pi1 three cells",
			ranges: rangesBytes(0x7E000000, 0x20000000, 0x01000000),
			base:   0x20000000,
			ok:     true,
		},
		{
			name:   "pi3 three cells",
			ranges: rangesBytes(0x7E000000, 0x3F000000, 0x01000000),
			base:   0x3F000000,
			ok:     true,
		},
		{
			name:   "pi4 64-bit parent",
			ranges: rangesBytes(0x7E000000, 0x0, 0xFE000000, 0x01800000),
			base:   0xFE000000,
			ok:     true,
		},
		{name: "zeros", ranges: rangesBytes(0, 0, 0), ok: false},
		{name: "short", ranges: []byte{1, 2, 3}, ok: false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			base, ok := parseSoCRanges(tc.ranges)
			if ok != tc.ok {
				t.Fatalf("ok = %v, want %v", ok, tc.ok)
			}
			if ok && base != tc.base {
				t.Errorf("base = %#x, want %#x", base, tc.base)
			}
		})
	}
}

func TestBaseForModel(t *testing.T) {
	for _, tc := range []struct {
		model string
		base  int64
		ok    bool
	}{
		{"Raspberry Pi 4 Model B Rev 1.4", 0xFE000000, true},
		{"Raspberry Pi 400 Rev 1.0", 0xFE000000, true},
		{"Raspberry Pi 3 Model B Plus Rev 1.3", 0x3F000000, true},
		{"Raspberry Pi 2 Model B Rev 1.1", 0x3F000000, true},
		{"Raspberry Pi Model B Rev 2", 0x20000000, true},
		{"Raspberry Pi Zero W Rev 1.1", 0x20000000, true},
		{"Banana Pi", 0, false},
		{"", 0, false},
	} {
		base, err := baseForModel(tc.model)
		if tc.ok {
			if err != nil || base != tc.base {
				t.Errorf("baseForModel(%q) = %#x, %v; want %#x", tc.model, base, err, tc.base)
			}
		} else if !errors.Is(err, ErrUnsupported) {
			t.Errorf("baseForModel(%q) = %v, want ErrUnsupported", tc.model, err)
		}
	}
}

// synthetic returns a Dev backed by plain memory instead of mapped
// registers.
func synthetic() *Dev {
	return &Dev{
		gpioMem:  make([]uint32, pageSize/4),
		timerMem: make([]uint32, pageSize/4),
		pwmMem:   make([]uint32, pageSize/4),
		clkMem:   make([]uint32, pageSize/4),
		slowdown: 1,
	}
}

func TestSetClearRead(t *testing.T) {
	d := synthetic()
	d.SetBits(1<<17 | 1<<4)
	if d.gpioMem[gpioSet0] != 1<<17|1<<4 {
		t.Errorf("GPSET0 = %#x", d.gpioMem[gpioSet0])
	}
	d.ClearBits(1 << 17)
	if d.gpioMem[gpioClr0] != 1<<17 {
		t.Errorf("GPCLR0 = %#x", d.gpioMem[gpioClr0])
	}
	d.gpioMem[gpioLev0] = 1 << 22
	if !d.Read(22) || d.Read(23) {
		t.Error("Read does not reflect GPLEV0")
	}
}

func TestSelectFunctions(t *testing.T) {
	d := synthetic()
	d.SelectOutput(17)
	// Pin 17 lives in GPFSEL1, bits 23:21.
	if got, want := d.gpioMem[1], uint32(fselOutput<<21); got != want {
		t.Errorf("GPFSEL1 = %#x, want %#x", got, want)
	}
	d.selectFunction(18, fselAlt5)
	if got, want := d.gpioMem[1], uint32(fselOutput<<21|fselAlt5<<24); got != want {
		t.Errorf("GPFSEL1 = %#x, want %#x", got, want)
	}
	// Re-selecting clears the old function bits first.
	d.selectFunction(18, fselOutput)
	if got, want := d.gpioMem[1], uint32(fselOutput<<21|fselOutput<<24); got != want {
		t.Errorf("GPFSEL1 = %#x, want %#x", got, want)
	}
}

func TestCounter(t *testing.T) {
	d := synthetic()
	d.timerMem[timerLo] = 5
	d.timerMem[timerHi] = 1
	if got, want := d.counter(), uint64(1)<<32|5; got != want {
		t.Errorf("counter() = %d, want %d", got, want)
	}
}

func TestSleepAtLeastSubMicrosecond(t *testing.T) {
	d := synthetic()
	start := time.Now()
	d.SleepAtLeast(500 * time.Nanosecond)
	if time.Since(start) > 100*time.Millisecond {
		t.Error("sub-microsecond sleep took unreasonably long")
	}
	// Without the timer block the call degrades to time.Sleep.
	d.timerMem = nil
	d.SleepAtLeast(time.Microsecond)
}

func TestPulserRejectsWrongPin(t *testing.T) {
	d := synthetic()
	if _, err := d.Pulser(1<<5, []time.Duration{100 * time.Nanosecond}); err == nil {
		t.Error("pulser accepted a pin without PWM routing")
	}
	if _, err := d.Pulser(1<<18, nil); err == nil {
		t.Error("pulser accepted empty timings")
	}
	d.pwmMem = nil
	if _, err := d.Pulser(1<<18, []time.Duration{100 * time.Nanosecond}); err == nil {
		t.Error("pulser worked without the PWM block mapped")
	}
}

func TestPulserProgramsPWM(t *testing.T) {
	d := synthetic()
	d.pwmMem[pwmSta] = pwmStaEmpt1
	timings := []time.Duration{100 * time.Nanosecond, 200 * time.Nanosecond}
	p, err := d.Pulser(1<<18, timings)
	if err != nil {
		t.Fatal(err)
	}
	// GPIO 18 routed to PWM0 via Alt5.
	if got := d.gpioMem[1] >> 24 & 7; got != fselAlt5 {
		t.Errorf("pin 18 function = %#o, want alt5", got)
	}
	// 100ns LSB over a 2ns serializer tick: divider 25.
	if got, want := d.clkMem[clkPwmDiv], uint32(clkPassword|25<<12); got != want {
		t.Errorf("PWM divider = %#x, want %#x", got, want)
	}

	pp := p.(*pwmPulser)
	if pp.periods[0] != 2 || pp.periods[1] != 4 {
		t.Errorf("pulse periods = %v, want [2 4]", pp.periods)
	}

	p.SendPulse(1)
	if d.pwmMem[pwmRng1] != 4 {
		t.Errorf("RNG1 = %d, want 4", d.pwmMem[pwmRng1])
	}
	if got, want := d.pwmMem[pwmCtl], uint32(pwmCtlUsef1|pwmCtlPola1|pwmCtlPwen1); got != want {
		t.Errorf("CTL = %#x, want %#x", got, want)
	}
	p.WaitPulseFinished()
	if got, want := d.pwmMem[pwmCtl], uint32(pwmCtlClrf1); got != want {
		t.Errorf("CTL after pulse = %#x, want FIFO clear %#x", got, want)
	}
}

func TestCloseIdempotent(t *testing.T) {
	d := synthetic()
	if err := d.Err(); err != nil {
		t.Fatalf("fresh Dev reports %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
	if !errors.Is(d.Err(), ErrClosed) {
		t.Error("Err() after Close is not ErrClosed")
	}
	if err := d.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
	// The register views must not outlive the mapping.
	if d.gpioMem != nil || d.timerMem != nil || d.pwmMem != nil || d.clkMem != nil {
		t.Error("register views still set after Close")
	}
	// SleepAtLeast after Close degrades to time.Sleep instead of reading
	// through the released timer mapping.
	d.SleepAtLeast(time.Microsecond)
}
