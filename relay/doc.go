// Copyright 2026 The Tracewire Authors
// SPDX-License-Identifier: Apache-2.0

// Package relay implements the tracewire relay: a transparent forwarder
// that lets local trace producers reach a collector running on another
// machine or in another namespace. The relay accepts producer
// connections, opens a matching connection to the collector for each,
// and splices the two byte streams. Before any producer bytes flow it
// forges a set-peer-identity frame carrying the producer's uid, pid,
// and machine identifier, so credentials survive the hop that would
// otherwise erase them.
//
// The package is organized around the relay data flow:
//
//   - config.go: daemon configuration
//   - buffer.go: fixed staging buffer for bytes queued before pairing
//   - socketpair.go: paired producer/upstream connection model
//   - service.go: producer listener and connection pairing engine
//   - forwarder.go: bidirectional byte forwarding between paired sockets
//   - telemetry.go: prometheus instrumentation
package relay
