// Copyright 2026 The Tracewire Authors
// SPDX-License-Identifier: Apache-2.0

// Package machineid derives a stable, best-effort identifier for the
// machine a tracewire daemon runs on.
//
// The collector uses the identifier to group trace sessions from
// producers on the same machine when their connections arrive through
// a relay. It is a hint, not an authenticated identity: the derivation
// prefers the kernel boot id and degrades to a hashed fingerprint of
// filesystem birth time and uname output, or to no identifier at all,
// rather than failing.
package machineid

import (
	"os"
	"strings"
	"sync"
)

var (
	hintOnce   sync.Once
	cachedHint string
)

// Hint returns the machine identifier hint, computing it on first use
// and caching it for the life of the process. Later calls return the
// cached value without touching the filesystem.
//
// Sources, in order:
//
//  1. /proc/sys/kernel/random/boot_id with its trailing newline
//     stripped. Unique per machine per boot.
//  2. A BLAKE3 digest, rendered as lowercase hex, over the birth
//     timestamp of /dev and the uname(2) identity of the kernel.
//     Covers kernels that expose no boot id; stable within a boot
//     because /dev is recreated at every boot on modern systems.
//  3. The empty string when neither source is available. Callers omit
//     the hint from the identity frame rather than sending a
//     placeholder.
func Hint() string {
	hintOnce.Do(func() {
		cachedHint = derive("/proc/sys/kernel/random/boot_id", "/dev", false)
	})
	return cachedHint
}

// derive is the testable implementation of Hint. It accepts the boot
// id and birth-time source paths so tests can point at synthetic
// files, and forceFallback to exercise the fingerprint path on
// machines that do have a boot id.
func derive(bootIDPath, birthTimePath string, forceFallback bool) string {
	if !forceFallback {
		if raw, err := os.ReadFile(bootIDPath); err == nil {
			return strings.TrimSuffix(string(raw), "\n")
		}
	}
	return fallbackHint(birthTimePath)
}
