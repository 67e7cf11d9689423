// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

//go:build !linux

package bcmregs

import "fmt"

// Open fails on platforms without physical memory mapping of the BCM283x
// peripherals.
func Open(opts *Opts) (*Dev, error) {
	return nil, fmt.Errorf("%w: physical memory mapping requires linux", ErrUnsupported)
}

func munmap(b []byte) error {
	return nil
}
