// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package rgbmatrix

import "errors"

var (
	// ErrInvalidConfig wraps every configuration validation failure. It is
	// always returned before any hardware is touched.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrStopped is returned by operations on a Dev whose refresh engine has
	// halted, either through Halt or a fatal hardware failure.
	ErrStopped = errors.New("refresh engine stopped")

	// ErrScheduling reports that the scan thread could not be moved to a
	// real-time scheduling class. Refresh continues with best-effort timing;
	// the only consequence is added jitter.
	ErrScheduling = errors.New("could not raise scan thread priority")
)
