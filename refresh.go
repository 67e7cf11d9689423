// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package rgbmatrix

import (
	"runtime"
	"time"
)

// Refresh engine states.
const (
	stateIdle int32 = iota
	stateScanning
	stateSwapPending
	stateStopped
)

// run is the scan loop. It owns the GPIO writes for the lifetime of the
// engine: no other goroutine may touch the registers while it runs. Apart
// from the calibrated output-enable delays it never blocks, allocates or
// takes a lock; the only cross-goroutine coordination is the single-slot
// swap handoff at the frame boundary.
func (d *Dev) run(started chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	started <- raiseScanPriority()

	d.fb.encode(d.active)
	d.state.Store(stateScanning)

	period := time.Duration(0)
	if d.opts.LimitRefresh > 0 {
		period = d.opts.LimitRefresh.Period()
	}

	var frame uint64
	for {
		select {
		case <-d.stop:
			d.shutdown(nil)
			return
		default:
		}
		if err := d.regs.Err(); err != nil {
			d.shutdown(err)
			return
		}

		start := time.Now()
		d.scanFrame(frame)
		frame++
		if period > 0 {
			if rem := period - time.Since(start); rem > 0 {
				d.regs.SleepAtLeast(rem)
			}
		}

		// Adopt a pending swap at the frame boundary, releasing the retired
		// buffer back to the producer.
		select {
		case nb := <-d.swapReq:
			d.state.Store(stateSwapPending)
			old := d.active
			d.active = nb
			d.fb.encode(d.active)
			d.swapAck <- old
			d.state.Store(stateScanning)
		default:
		}
	}
}

// scanFrame scans every row once, walking the bit-planes MSB first so the
// heaviest weight gets the longest output-enable pulse.
func (d *Dev) scanFrame(frame uint64) {
	shiftMask := d.dataMask | d.clockMask
	for sr := 0; sr < d.fb.scanRows; sr++ {
		d.selectRow(sr)
		for plane := d.fb.pwmBits - 1; plane >= 0; plane-- {
			if plane < d.opts.DitherBits {
				// Time-dithered plane: emitted every 2^(DitherBits-plane)
				// frames only.
				if frame&(1<<uint(d.opts.DitherBits-plane)-1) != 0 {
					continue
				}
			}
			row := d.fb.planeRow(plane, sr)
			for _, w := range row {
				d.regs.ClearBits(shiftMask)
				if w != 0 {
					d.regs.SetBits(w)
				}
				// Rising edge shifts the data bits into the panel.
				d.regs.SetBits(d.clockMask)
			}
			d.regs.ClearBits(shiftMask)
			d.regs.SetBits(d.latchMask)
			d.regs.ClearBits(d.latchMask)

			d.pulser.SendPulse(plane)
			d.pulser.WaitPulseFinished()
		}
	}
}

// selectRow drives the address lines for one scan row.
func (d *Dev) selectRow(sr int) {
	m := d.mapping
	switch d.opts.AddressType {
	case ABShiftRegister:
		// The address shift register advances one row per clock on line A;
		// line B injects the start-of-frame marker at row 0.
		if sr == 0 {
			d.regs.SetBits(bit(m.Addr[1]))
		} else {
			d.regs.ClearBits(bit(m.Addr[1]))
		}
		d.regs.SetBits(bit(m.Addr[0]))
		d.regs.ClearBits(bit(m.Addr[0]))
	default:
		d.regs.ClearBits(d.addrMask)
		if bits := m.addrBits(sr); bits != 0 {
			d.regs.SetBits(bits)
		}
	}
}

// shutdown blanks the panel, records the failure (if any) and releases the
// register mapping. Called exactly once, from the scan goroutine.
func (d *Dev) shutdown(err error) {
	// Output-enable is active low: drive it high before anything else so
	// the panel goes dark, then drop the remaining lines.
	d.regs.SetBits(d.oeMask)
	d.regs.ClearBits(d.dataMask | d.clockMask | d.latchMask | d.addrMask)

	d.mu.Lock()
	d.runErr = err
	d.mu.Unlock()
	d.state.Store(stateStopped)

	closeErr := d.regs.Close()
	if closeErr != nil && err == nil {
		d.mu.Lock()
		d.runErr = closeErr
		d.mu.Unlock()
	}
	close(d.done)
}
