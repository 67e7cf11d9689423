// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package rgbmatrix

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"
	"sync/atomic"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/display"
)

// Dev is the handle to a chain of RGB matrix panels.
//
// A Dev owns a pair of canvases. Canvas returns the one currently open for
// drawing; SwapOnVSync hands it to the refresh engine at the next frame
// boundary and returns the retired buffer as the new drawing canvas. The
// engine is the only goroutine that ever writes to the GPIO registers.
type Dev struct {
	opts    Opts
	mapping *HardwareMapping
	regs    Registers
	fb      *frameBuffer
	pulser  Pulser

	// Pre-computed masks for the scan loop.
	clockMask uint32
	latchMask uint32
	oeMask    uint32
	addrMask  uint32
	dataMask  uint32

	active   *Canvas
	building *Canvas

	swapReq chan *Canvas
	swapAck chan *Canvas
	stop    chan struct{}
	done    chan struct{}

	state    atomic.Int32
	stopOnce sync.Once

	mu        sync.Mutex
	runErr    error
	schedWarn error
}

// New validates the panel configuration and prepares a Dev driving the
// given register handle. Ownership of regs transfers to the Dev; it is
// closed exactly once when the engine stops. No hardware is touched until
// Start.
func New(regs Registers, opts *Opts) (*Dev, error) {
	m, err := opts.validate()
	if err != nil {
		return nil, err
	}
	w := opts.Cols * opts.ChainLength
	h := opts.Rows * opts.Parallel
	d := &Dev{
		opts:      *opts,
		mapping:   m,
		regs:      regs,
		fb:        newFrameBuffer(m, opts),
		clockMask: m.clockMask(),
		latchMask: m.latchMask(),
		oeMask:    m.oeMask(),
		addrMask:  m.addrMask(),
		dataMask:  m.dataMask(opts.Parallel),
		active:    newCanvas(w, h),
		building:  newCanvas(w, h),
		swapReq:   make(chan *Canvas, 1),
		swapAck:   make(chan *Canvas, 1),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	if opts.BrightnessCurve != nil {
		d.opts.BrightnessCurve = append([]uint16(nil), opts.BrightnessCurve...)
	}
	return d, nil
}

// Start initializes the control lines and launches the scan loop on its own
// OS thread. A failure to enter the real-time scheduling class is recorded
// as a warning (see SchedulingWarning), not an error.
func (d *Dev) Start() error {
	if !d.state.CompareAndSwap(stateIdle, stateScanning) {
		return fmt.Errorf("rgbmatrix: engine already started or stopped")
	}
	if err := d.regs.Err(); err != nil {
		// The engine never ran, so release the mapping here and unblock any
		// later Halt.
		d.state.Store(stateStopped)
		d.regs.Close()
		d.mu.Lock()
		d.runErr = err
		d.mu.Unlock()
		close(d.done)
		return err
	}

	mask := d.mapping.usedMask(d.opts.Parallel)
	for pin := uint8(0); pin < 32; pin++ {
		if mask&(1<<uint(pin)) != 0 {
			d.regs.SelectOutput(pin)
		}
	}
	// Everything low, output-enable high (it is active low, so the panel
	// stays dark until the first pulse).
	d.regs.ClearBits(mask)
	d.regs.SetBits(d.oeMask)

	timings := bitplaneTimings(d.opts.PWMBits, d.opts.lsbNanos())
	d.pulser = &timerPulser{regs: d.regs, mask: d.oeMask, timings: timings}
	if !d.opts.DisableHardwarePulsing {
		if src, ok := d.regs.(HardwarePulseSource); ok {
			if p, err := src.Pulser(d.oeMask, timings); err == nil {
				d.pulser = p
			}
		}
	}

	started := make(chan error, 1)
	go d.run(started)
	warn := <-started
	d.mu.Lock()
	d.schedWarn = warn
	d.mu.Unlock()
	return nil
}

// Canvas returns the canvas currently open for drawing. The returned
// canvas stays valid until the next SwapOnVSync.
func (d *Dev) Canvas() *Canvas {
	return d.building
}

// SwapOnVSync submits the drawing canvas for display at the next frame
// boundary, blocks until the engine has adopted it, and returns the retired
// canvas as the new drawing canvas.
//
// Before Start the exchange happens immediately. After the engine has
// stopped the drawing canvas is returned unchanged along with the failure
// that stopped the engine, or ErrStopped after a clean Halt.
func (d *Dev) SwapOnVSync() (*Canvas, error) {
	switch d.state.Load() {
	case stateIdle:
		d.active, d.building = d.building, d.active
		return d.building, nil
	case stateStopped:
		return d.building, d.haltErr()
	}
	d.swapReq <- d.building
	select {
	case old := <-d.swapAck:
		d.building = old
		return old, nil
	case <-d.done:
		// The engine may have completed the swap right before stopping.
		select {
		case old := <-d.swapAck:
			d.building = old
			return old, nil
		default:
		}
		// Reclaim the buffer the engine never adopted.
		select {
		case <-d.swapReq:
		default:
		}
		return d.building, d.haltErr()
	}
}

// Halt stops the refresh engine, letting the current frame finish, blanks
// the panel and releases the register mapping. It implements conn.Resource
// and is idempotent.
func (d *Dev) Halt() error {
	if d.state.CompareAndSwap(stateIdle, stateStopped) {
		// Never started; release the mapping here since the engine won't.
		err := d.regs.Close()
		d.mu.Lock()
		d.runErr = err
		d.mu.Unlock()
		close(d.done)
		return err
	}
	d.stopOnce.Do(func() { close(d.stop) })
	<-d.done
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.runErr
}

// SchedulingWarning returns the non-fatal warning recorded when the scan
// thread could not be moved to a real-time scheduling class, or nil.
func (d *Dev) SchedulingWarning() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.schedWarn
}

// haltErr returns the error that stopped the engine, or ErrStopped after a
// clean shutdown.
func (d *Dev) haltErr() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.runErr != nil {
		return d.runErr
	}
	return ErrStopped
}

func (d *Dev) String() string {
	return fmt.Sprintf("rgbmatrix{%s, %dx%d, chain=%d, parallel=%d, pwm=%d}",
		d.opts.HardwareMapping, d.opts.Cols, d.opts.Rows, d.opts.ChainLength, d.opts.Parallel, d.opts.PWMBits)
}

// ColorModel implements display.Drawer.
func (d *Dev) ColorModel() color.Model {
	return color.NRGBAModel
}

// Bounds implements display.Drawer.
func (d *Dev) Bounds() image.Rectangle {
	return d.building.Bounds()
}

// Draw implements display.Drawer: it paints src into the drawing canvas and
// swaps it in at the next frame boundary.
func (d *Dev) Draw(r image.Rectangle, src image.Image, sp image.Point) error {
	draw.Draw(d.building, r, src, sp, draw.Src)
	_, err := d.SwapOnVSync()
	return err
}

var _ display.Drawer = &Dev{}
var _ conn.Resource = &Dev{}
