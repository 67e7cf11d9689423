// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

//go:build !linux

package rgbmatrix

import "fmt"

func raiseScanPriority() error {
	return fmt.Errorf("rgbmatrix: %w: real-time scheduling not available on this platform", ErrScheduling)
}
