// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package rgbmatrix

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

const schedFIFO = 1

// raiseScanPriority moves the calling thread into the SCHED_FIFO real-time
// class and pins its pages in RAM. The caller must have locked the OS
// thread. Failure degrades timing accuracy only, so it is reported as a
// warning, never as a fatal error.
func raiseScanPriority() error {
	// Best effort; a page fault mid-scan is visible as flicker.
	_ = unix.Mlockall(unix.MCL_CURRENT | unix.MCL_FUTURE)

	param := struct{ priority int32 }{priority: 99}
	_, _, errno := unix.Syscall(unix.SYS_SCHED_SETSCHEDULER, 0, schedFIFO, uintptr(unsafe.Pointer(&param)))
	if errno == 0 {
		return nil
	}
	// No CAP_SYS_NICE; settle for the highest niceness we can get.
	if err := unix.Setpriority(unix.PRIO_PROCESS, 0, -20); err != nil {
		return fmt.Errorf("rgbmatrix: %w: SCHED_FIFO: %v, niceness: %v", ErrScheduling, errno, err)
	}
	return fmt.Errorf("rgbmatrix: %w: SCHED_FIFO: %v, running at niceness -20", ErrScheduling, errno)
}
