// Copyright 2026 The Tracewire Authors
// SPDX-License-Identifier: Apache-2.0

package machineid

import (
	"encoding/hex"
	"strconv"

	"github.com/zeebo/blake3"
	"golang.org/x/sys/unix"
)

// fallbackHint fingerprints the machine from the birth timestamp of
// birthTimePath (normally /dev) and the uname(2) identity. Returns the
// BLAKE3 digest of the combined material as lowercase hex, or the
// empty string when either source is unavailable.
func fallbackHint(birthTimePath string) string {
	var statxBuffer unix.Statx_t
	if err := unix.Statx(unix.AT_FDCWD, birthTimePath, 0, unix.STATX_BTIME, &statxBuffer); err != nil {
		return ""
	}
	// Not every filesystem records birth times; the kernel reports
	// which fields it filled in via the mask.
	if statxBuffer.Mask&unix.STATX_BTIME == 0 {
		return ""
	}

	var utsname unix.Utsname
	if err := unix.Uname(&utsname); err != nil {
		return ""
	}

	var fingerprint []byte
	fingerprint = strconv.AppendInt(fingerprint, statxBuffer.Btime.Sec, 10)
	fingerprint = append(fingerprint, '.')
	fingerprint = strconv.AppendUint(fingerprint, uint64(statxBuffer.Btime.Nsec), 10)
	fingerprint = append(fingerprint, utsField(utsname.Sysname)...)
	fingerprint = append(fingerprint, utsField(utsname.Nodename)...)
	fingerprint = append(fingerprint, utsField(utsname.Release)...)
	fingerprint = append(fingerprint, utsField(utsname.Version)...)
	fingerprint = append(fingerprint, utsField(utsname.Machine)...)

	digest := blake3.Sum256(fingerprint)
	return hex.EncodeToString(digest[:])
}

// utsField trims a fixed-size utsname field to its null terminator.
func utsField(field [65]byte) []byte {
	for index, value := range field {
		if value == 0 {
			return field[:index]
		}
	}
	return field[:]
}
