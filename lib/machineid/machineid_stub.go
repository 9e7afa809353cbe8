// Copyright 2026 The Tracewire Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package machineid

// fallbackHint requires statx(2) birth times and is Linux-only. Other
// platforms report no machine identity and the frame omits the hint.
func fallbackHint(string) string {
	return ""
}
