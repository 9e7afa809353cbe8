// Copyright 2026 The Tracewire Authors
// SPDX-License-Identifier: Apache-2.0

// Package peercred retrieves the operating system credentials of the
// process on the far end of a Unix domain socket. The relay records
// these in the identity frame it forges for the collector, so relayed
// producers keep their original uid and pid.
package peercred

// Credentials identifies the peer process of a Unix socket connection.
type Credentials struct {
	// UID is the peer's effective user id.
	UID int32

	// PID is the peer's process id.
	PID int32
}
