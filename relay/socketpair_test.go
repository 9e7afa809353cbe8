// Copyright 2026 The Tracewire Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"net"
	"testing"
)

func TestSocketPairCloseBothSides(t *testing.T) {
	t.Parallel()
	producerClient, producerServer := net.Pipe()
	upstreamClient, upstreamServer := net.Pipe()
	t.Cleanup(func() {
		producerClient.Close()
		upstreamClient.Close()
	})

	pair := &SocketPair{
		Producer: StagedConn{Conn: producerServer},
		Upstream: StagedConn{Conn: upstreamServer},
	}
	pair.Close()

	buffer := make([]byte, 1)
	if _, err := producerClient.Read(buffer); err == nil {
		t.Error("producer side still readable after Close")
	}
	if _, err := upstreamClient.Read(buffer); err == nil {
		t.Error("upstream side still readable after Close")
	}

	// Closing again must not panic, including on half-built pairs.
	pair.Close()
	partial := &SocketPair{Producer: StagedConn{Conn: producerServer}}
	partial.Close()
}
