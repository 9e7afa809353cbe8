// Copyright 2026 The Tracewire Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import "fmt"

// StageBufferCapacity is the fixed size of a StageBuffer. An identity
// frame is a few dozen bytes; the capacity bounds how much can ever be
// queued for a connection that is still being paired.
const StageBufferCapacity = 4096

// StageBuffer holds bytes destined for the opposite side of a socket
// pair that cannot be written yet because the pair is not established.
// The capacity is fixed: staging is for small control frames, not flow
// control, and overflowing it means a frame grew past its design size.
type StageBuffer struct {
	data [StageBufferCapacity]byte
	used int
}

// Available returns the number of bytes that can still be staged.
func (b *StageBuffer) Available() int {
	return StageBufferCapacity - b.used
}

// Writable returns the free region of the buffer. Fill a prefix of it,
// then record the length with Commit.
func (b *StageBuffer) Writable() []byte {
	return b.data[b.used:]
}

// Commit records that n bytes of the writable region were filled.
// Committing more than Available panics: the caller wrote past the
// region Writable handed out.
func (b *StageBuffer) Commit(n int) {
	if n < 0 || n > b.Available() {
		panic(fmt.Sprintf("relay: staging commit of %d bytes with %d available", n, b.Available()))
	}
	b.used += n
}

// Bytes returns the staged bytes in the order they were committed.
func (b *StageBuffer) Bytes() []byte {
	return b.data[:b.used]
}

// Len returns the number of staged bytes.
func (b *StageBuffer) Len() int {
	return b.used
}
