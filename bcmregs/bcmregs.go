// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package bcmregs

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"periph.io/x/host/v3/distro"
)

// Register block offsets from the peripheral base and register indexes
// within each mapped []uint32 block.
const (
	gpioOffset  = 0x200000
	timerOffset = 0x003000
	pwmOffset   = 0x20C000
	clkOffset   = 0x101000

	pageSize = 4096

	// GPIO block.
	gpioSet0 = 0x1C / 4
	gpioClr0 = 0x28 / 4
	gpioLev0 = 0x34 / 4

	// System timer block: free-running 1 MHz counter.
	timerLo = 0x04 / 4
	timerHi = 0x08 / 4

	// PWM block.
	pwmCtl  = 0x00 / 4
	pwmSta  = 0x04 / 4
	pwmRng1 = 0x10 / 4
	pwmFif1 = 0x18 / 4

	pwmCtlPwen1 = 1 << 0
	pwmCtlPola1 = 1 << 4
	pwmCtlUsef1 = 1 << 5
	pwmCtlClrf1 = 1 << 6

	pwmStaFull1 = 1 << 0
	pwmStaEmpt1 = 1 << 1

	// Clock manager block, PWM clock only.
	clkPwmCtl = 0xA0 / 4
	clkPwmDiv = 0xA4 / 4

	clkPassword = 0x5A000000
	clkCtlEnab  = 1 << 4
	clkCtlKill  = 1 << 5
	clkCtlBusy  = 1 << 7
	clkSrcPLLD  = 6 // 500 MHz
)

// GPIO alternate functions, 3-bit field per pin in the GPFSEL registers.
const (
	fselOutput = 0b001
	fselAlt0   = 0b100
	fselAlt5   = 0b010
)

var (
	// ErrUnsupported means the running platform is not a recognized
	// Raspberry Pi, so the peripheral base address is unknown.
	ErrUnsupported = errors.New("bcmregs: unsupported platform")

	// ErrClosed reports use of a Dev whose mapping has been released.
	ErrClosed = errors.New("bcmregs: register mapping released")
)

// DefaultOpts is the recommended default options.
var DefaultOpts = Opts{Slowdown: 1}

// Opts configures the register access.
type Opts struct {
	// Slowdown repeats every set/clear write this many times. Fast Pis
	// outrun the panels' shift registers; 2 or 3 is common on a Pi 4.
	// 0 is treated as 1.
	Slowdown int
}

// Dev is the memory-mapped register access. It implements the Registers
// interface of the rgbmatrix package.
type Dev struct {
	file *os.File

	gpioMem8  []byte
	gpioMem   []uint32
	timerMem8 []byte
	timerMem  []uint32
	pwmMem8   []byte
	pwmMem    []uint32
	clkMem8   []byte
	clkMem    []uint32

	slowdown int

	mu        sync.Mutex
	err       error
	closeOnce sync.Once
}

// SetBits drives every pin in mask high.
func (d *Dev) SetBits(mask uint32) {
	for i := 0; i < d.slowdown; i++ {
		d.gpioMem[gpioSet0] = mask
	}
}

// ClearBits drives every pin in mask low.
func (d *Dev) ClearBits(mask uint32) {
	for i := 0; i < d.slowdown; i++ {
		d.gpioMem[gpioClr0] = mask
	}
}

// Read returns the current level of a pin.
func (d *Dev) Read(pin uint8) bool {
	return d.gpioMem[gpioLev0]&(1<<uint(pin)) != 0
}

// SelectOutput configures a pin as a GPIO output.
func (d *Dev) SelectOutput(pin uint8) {
	d.selectFunction(pin, fselOutput)
}

func (d *Dev) selectFunction(pin uint8, fsel uint32) {
	reg := int(pin) / 10
	shift := uint(pin%10) * 3
	v := d.gpioMem[reg]
	v &^= 7 << shift
	v |= fsel << shift
	d.gpioMem[reg] = v
}

// counter reads the free-running 1 MHz system timer.
func (d *Dev) counter() uint64 {
	// CHI can roll over between the two reads; re-read until stable.
	for {
		hi := d.timerMem[timerHi]
		lo := d.timerMem[timerLo]
		if d.timerMem[timerHi] == hi {
			return uint64(hi)<<32 | uint64(lo)
		}
	}
}

// Timings calibrated against the kernel's wakeup latency: sleeping the full
// duration overshoots by the scheduler's wakeup cost, so sleep short and
// spin out the remainder on the hardware counter.
const (
	sleepOverhead  = 12 * time.Microsecond
	minKernelSleep = 20 * time.Microsecond
)

// SleepAtLeast busy-waits for at least dur. For long waits the bulk is
// delegated to the kernel to save power; the tail is always spun on the
// system timer for sub-microsecond accuracy.
func (d *Dev) SleepAtLeast(dur time.Duration) {
	if d.timerMem == nil {
		// /dev/gpiomem mapping without the timer block; best effort.
		time.Sleep(dur)
		return
	}
	start := d.counter()
	if dur >= minKernelSleep+sleepOverhead {
		time.Sleep(dur - sleepOverhead)
	}
	ticks := uint64(dur / time.Microsecond)
	if ticks == 0 {
		// Sub-microsecond wait: an uncached AXI register read costs on the
		// order of a hundred nanoseconds, so spin a proportional number of
		// reads instead of watching a counter that won't tick.
		for n := int(dur/(100*time.Nanosecond)) + 1; n > 0; n-- {
			_ = d.timerMem[timerLo]
		}
		return
	}
	for d.counter()-start < ticks {
	}
}

// Err reports whether the mapping is still usable. The refresh engine
// checks it once per frame and treats non-nil as fatal.
func (d *Dev) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

// Close releases the mapping. Only the first call has any effect.
func (d *Dev) Close() error {
	var err error
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.err = ErrClosed
		d.mu.Unlock()
		for _, m := range [][]byte{d.gpioMem8, d.timerMem8, d.pwmMem8, d.clkMem8} {
			if m != nil {
				if e := munmap(m); e != nil && err == nil {
					err = e
				}
			}
		}
		d.gpioMem8, d.timerMem8, d.pwmMem8, d.clkMem8 = nil, nil, nil, nil
		// Drop the typed views too so nothing can write through the released
		// mapping.
		d.gpioMem, d.timerMem, d.pwmMem, d.clkMem = nil, nil, nil, nil
		if d.file != nil {
			if e := d.file.Close(); e != nil && err == nil {
				err = e
			}
		}
	})
	return err
}

func (d *Dev) String() string {
	return "bcmregs"
}

// periphBase resolves the physical base address of the peripheral block,
// from the device tree when available, else from the model string.
func periphBase() (int64, error) {
	if ranges, err := os.ReadFile("/proc/device-tree/soc/ranges"); err == nil {
		if base, ok := parseSoCRanges(ranges); ok {
			return base, nil
		}
	}
	return baseForModel(distro.DTModel())
}

// parseSoCRanges extracts the parent bus address from the soc node's ranges
// property. Older Pis encode (child, parent, size) as three 32-bit cells;
// the Pi 4 uses a 64-bit parent address whose upper cell is zero for the
// legacy peripherals, shifting the interesting cell by one.
func parseSoCRanges(ranges []byte) (int64, bool) {
	if len(ranges) < 12 {
		return 0, false
	}
	base := binary.BigEndian.Uint32(ranges[4:8])
	if base == 0 && len(ranges) >= 16 {
		base = binary.BigEndian.Uint32(ranges[8:12])
	}
	if base == 0 {
		return 0, false
	}
	return int64(base), true
}

// baseForModel maps a device-tree model string to the peripheral base.
func baseForModel(model string) (int64, error) {
	switch {
	case model == "":
		return 0, fmt.Errorf("%w: not a device-tree platform", ErrUnsupported)
	case strings.Contains(model, "Raspberry Pi 4"),
		strings.Contains(model, "Raspberry Pi Compute Module 4"),
		strings.Contains(model, "Raspberry Pi 400"):
		return 0xFE000000, nil
	case strings.Contains(model, "Raspberry Pi 2"),
		strings.Contains(model, "Raspberry Pi 3"),
		strings.Contains(model, "Raspberry Pi Compute Module 3"):
		return 0x3F000000, nil
	case strings.Contains(model, "Raspberry Pi"):
		// Pi 1 and Zero families.
		return 0x20000000, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupported, model)
}
