// Copyright 2026 The Tracewire Authors
// SPDX-License-Identifier: Apache-2.0

// Package wire defines the control frames of the tracewire collector
// protocol and their on-wire encoding.
//
// The package is organized around the two halves of the contract:
//
//   - frame.go: frame and peer identity models
//   - codec.go: length-prefixed CBOR encoding (framed binary messages)
//
// The first frame on every producer connection that reaches the
// collector through a relay is a set-peer-identity frame: the relay
// forges it so the collector sees the producer's original credentials
// rather than the relay's own.
package wire

// IdentityRequestID is the request id carried by every forged identity
// frame. Identity frames are relay-initiated, not responses to a
// collector request, so the id is fixed rather than allocated from a
// request counter.
const IdentityRequestID = 0

// UnknownUID is the uid recorded when the platform does not expose
// peer credentials for a connection.
const UnknownUID = -1

// Frame is a single collector protocol message.
type Frame struct {
	// RequestID correlates requests and responses. Identity frames
	// always carry IdentityRequestID.
	RequestID uint64 `cbor:"request_id"`

	// Identity is set on set-peer-identity frames and nil otherwise.
	Identity *PeerIdentity `cbor:"set_peer_identity,omitempty"`
}

// PeerIdentity carries the credentials of the producer behind a relayed
// connection.
type PeerIdentity struct {
	// UID is the producer's numeric user id, or UnknownUID when the
	// platform does not expose it. Always encoded: uid 0 is root, not
	// an absent value.
	UID int32 `cbor:"uid"`

	// PID is the producer's process id. Zero means the platform does
	// not expose peer pids and the field is omitted from the payload.
	PID int32 `cbor:"pid,omitempty"`

	// MachineIDHint identifies the machine the producer runs on. Empty
	// when no identity source is available, in which case the field is
	// omitted and the collector falls back to per-connection
	// identification. Best effort: never used for security decisions.
	MachineIDHint string `cbor:"machine_id_hint,omitempty"`
}

// NewIdentityFrame builds the set-peer-identity frame the relay sends
// as the first bytes of every upstream connection.
func NewIdentityFrame(uid, pid int32, machineIDHint string) Frame {
	return Frame{
		RequestID: IdentityRequestID,
		Identity: &PeerIdentity{
			UID:           uid,
			PID:           pid,
			MachineIDHint: machineIDHint,
		},
	}
}
