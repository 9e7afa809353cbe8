// Copyright 2026 The Tracewire Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package peercred

import (
	"fmt"
	"net"
)

// Get reports that peer credentials are unavailable. SO_PEERCRED is
// Linux-only; callers degrade to the unknown-credentials sentinel.
func Get(net.Conn) (Credentials, error) {
	return Credentials{}, fmt.Errorf("peer credentials not supported on this platform")
}
