// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package bcmregs

import (
	"fmt"
	"time"

	rgbmatrix "github.com/GermanBionicSystems/rgbmatrix"
)

// The PWM serializer is clocked from PLLD at 500 MHz, 2ns per tick.
const pwmBaseTimeNs = 2

// Pulser returns an output-enable pulse generator backed by the PWM
// peripheral: the pulse length is loaded into the FIFO and the hardware
// strobes the pin, which is immune to scheduling jitter. Only GPIO 18
// (PWM0 on Alt5) and GPIO 12 (PWM0 on Alt0) can be driven this way.
//
// Requires the full /dev/mem mapping; with /dev/gpiomem only, an error is
// returned and the caller falls back to software timing.
func (d *Dev) Pulser(mask uint32, timings []time.Duration) (rgbmatrix.Pulser, error) {
	if d.pwmMem == nil || d.clkMem == nil || d.timerMem == nil {
		return nil, fmt.Errorf("bcmregs: PWM, clock and timer blocks not mapped, hardware pulsing unavailable")
	}
	if len(timings) == 0 {
		return nil, fmt.Errorf("bcmregs: no bit-plane timings")
	}
	switch mask {
	case 1 << 18:
		d.selectFunction(18, fselAlt5)
	case 1 << 12:
		d.selectFunction(12, fselAlt0)
	default:
		return nil, fmt.Errorf("bcmregs: hardware pulsing is limited to GPIO 12 or 18, got mask %#x", mask)
	}

	p := &pwmPulser{
		d:          d,
		periods:    make([]uint32, len(timings)),
		sleepHints: make([]time.Duration, len(timings)),
	}
	baseNs := timings[0].Nanoseconds()
	for i, t := range timings {
		p.periods[i] = uint32(2 * t.Nanoseconds() / baseNs)
		p.sleepHints[i] = t
	}
	p.resetPWM()
	d.initPWMDivider(uint32(baseNs / 2 / pwmBaseTimeNs))
	return p, nil
}

// pwmPulser drives PWM0 in FIFO mode with inverted polarity: while the
// FIFO serializes, the (active low) output-enable line is held low for the
// loaded number of ticks, then idles high again.
type pwmPulser struct {
	d          *Dev
	periods    []uint32
	sleepHints []time.Duration

	start   uint64
	hint    time.Duration
	pending bool
}

func (p *pwmPulser) SendPulse(plane int) {
	period := p.periods[plane]
	if period < 16 {
		p.d.pwmMem[pwmRng1] = period
		p.d.pwmMem[pwmFif1] = period
	} else {
		// The FIFO is 16 words deep; split long pulses over 8 entries so a
		// single send never overflows it.
		frac := period / 8
		p.d.pwmMem[pwmRng1] = frac
		for i := 0; i < 8; i++ {
			p.d.pwmMem[pwmFif1] = frac
		}
	}
	// Sentinel zeros so the serializer idles once the pulse is out.
	p.d.pwmMem[pwmFif1] = 0
	p.d.pwmMem[pwmFif1] = 0

	p.start = p.d.counter()
	p.hint = p.sleepHints[plane]
	p.pending = true
	p.d.pwmMem[pwmCtl] = pwmCtlUsef1 | pwmCtlPola1 | pwmCtlPwen1
}

func (p *pwmPulser) WaitPulseFinished() {
	if !p.pending {
		return
	}
	p.pending = false
	elapsed := time.Duration(p.d.counter()-p.start) * time.Microsecond
	if rem := p.hint - elapsed; rem > 0 {
		p.d.SleepAtLeast(rem)
	}
	for p.d.pwmMem[pwmSta]&pwmStaEmpt1 == 0 {
	}
	p.resetPWM()
}

func (p *pwmPulser) resetPWM() {
	p.d.pwmMem[pwmCtl] = 0
	p.d.pwmMem[pwmCtl] = pwmCtlClrf1
}

// initPWMDivider programs the PWM clock divider off the 500 MHz PLLD
// source.
func (d *Dev) initPWMDivider(divider uint32) {
	if divider < 2 {
		divider = 2
	}
	if divider > 4095 {
		divider = 4095
	}
	d.clkMem[clkPwmCtl] = clkPassword | clkCtlKill
	for d.clkMem[clkPwmCtl]&clkCtlBusy != 0 {
	}
	d.clkMem[clkPwmDiv] = clkPassword | divider<<12
	d.clkMem[clkPwmCtl] = clkPassword | clkSrcPLLD
	d.clkMem[clkPwmCtl] = clkPassword | clkSrcPLLD | clkCtlEnab
}
