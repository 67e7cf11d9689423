// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package bcmregs

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Open maps the BCM283x peripheral registers into the process.
//
// It prefers /dev/mem, which covers the GPIO, system timer, PWM and clock
// blocks. Without root it falls back to /dev/gpiomem: GPIO works, but
// delays degrade to kernel sleeps and the hardware output-enable pulser is
// unavailable.
func Open(opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	base, err := periphBase()
	if err != nil {
		return nil, err
	}

	d := &Dev{slowdown: opts.Slowdown}
	if d.slowdown < 1 {
		d.slowdown = 1
	}

	f, err := os.OpenFile("/dev/mem", os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return openGpioMem(d, err)
	}
	d.file = f

	if d.gpioMem8, d.gpioMem, err = mmapBlock(f, base+gpioOffset); err != nil {
		f.Close()
		return nil, fmt.Errorf("bcmregs: mapping GPIO registers at %#x: %w", base+gpioOffset, err)
	}
	// The remaining blocks are conveniences; GPIO alone is enough to scan.
	if d.timerMem8, d.timerMem, err = mmapBlock(f, base+timerOffset); err != nil {
		d.timerMem8, d.timerMem = nil, nil
	}
	if d.pwmMem8, d.pwmMem, err = mmapBlock(f, base+pwmOffset); err != nil {
		d.pwmMem8, d.pwmMem = nil, nil
	}
	if d.clkMem8, d.clkMem, err = mmapBlock(f, base+clkOffset); err != nil {
		d.clkMem8, d.clkMem = nil, nil
	}
	return d, nil
}

// openGpioMem is the unprivileged fallback. memErr is the original
// /dev/mem failure, kept for the error message when both fail.
func openGpioMem(d *Dev, memErr error) (*Dev, error) {
	f, err := os.OpenFile("/dev/gpiomem", os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("bcmregs: cannot open /dev/mem (%v) nor /dev/gpiomem: %w", memErr, err)
	}
	d.file = f
	// gpiomem exposes exactly the GPIO page, at offset 0.
	if d.gpioMem8, d.gpioMem, err = mmapBlock(f, 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("bcmregs: mapping /dev/gpiomem: %w", err)
	}
	return d, nil
}

func mmapBlock(f *os.File, physAddr int64) ([]byte, []uint32, error) {
	mem8, err := unix.Mmap(int(f.Fd()), physAddr, pageSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, nil, err
	}
	mem := unsafe.Slice((*uint32)(unsafe.Pointer(&mem8[0])), len(mem8)/4)
	return mem8, mem, nil
}

func munmap(b []byte) error {
	return unix.Munmap(b)
}
