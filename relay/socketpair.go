// Copyright 2026 The Tracewire Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import "net"

// StagedConn is one side of a socket pair: a raw connection plus the
// bytes staged for delivery to the opposite side. The connection is
// detached in the sense that nothing reads from it between accept and
// handoff; whatever the peer sends sits in the kernel buffer until the
// forwarder takes over.
type StagedConn struct {
	// Conn is the raw connection. Nil on the upstream side until the
	// dial resolves.
	Conn net.Conn

	// Buffer holds bytes queued for the opposite side before the pair
	// was established. On the producer side this is the forged
	// identity frame; the upstream side is empty at handoff.
	Buffer StageBuffer
}

// SocketPair is a fully or partially established producer/upstream
// connection pair. The pairing engine owns it until the upstream dial
// resolves; on success ownership transfers to the forwarding handler
// in a single handoff, on failure the pair is discarded.
type SocketPair struct {
	// Producer is the inbound side: the local process that connected
	// to the relay to deliver trace data.
	Producer StagedConn

	// Upstream is the outbound side: the relay's own connection to the
	// collector.
	Upstream StagedConn
}

// Close closes both connections. Nil sides and already-closed
// connections are ignored, so Close is safe to call from any teardown
// path.
func (p *SocketPair) Close() {
	if p.Producer.Conn != nil {
		p.Producer.Conn.Close()
	}
	if p.Upstream.Conn != nil {
		p.Upstream.Conn.Close()
	}
}
