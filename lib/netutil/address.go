// Copyright 2026 The Tracewire Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil provides network utilities shared by the tracewire
// daemons: endpoint address parsing and close-error classification.
package netutil

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Endpoint is a parsed socket address ready for net.Listen or net.Dial.
type Endpoint struct {
	// Network is the stdlib network name: "unix" or "tcp".
	Network string
	// Address is the socket path (unix) or host:port (tcp).
	Address string
}

// String renders the endpoint in scheme://address form for logs.
func (e Endpoint) String() string {
	return e.Network + "://" + e.Address
}

// ParseAddress resolves an endpoint string into a network/address pair.
//
// Accepted forms:
//
//	unix:///run/tracewire/producer.sock   explicit scheme, filesystem path
//	tcp://collector.internal:9331         explicit scheme, host and port
//	/run/tracewire/producer.sock          bare absolute path
//	@tracewire-producer                   abstract socket namespace (Linux)
//	collector.internal:9331               bare host:port
//
// Producers address the relay the same way they would address a local
// collector, as a filesystem or abstract socket. The upstream collector
// is usually a TCP endpoint on another machine, so both families parse
// from plain strings without the caller knowing which it will get.
func ParseAddress(address string) (Endpoint, error) {
	if address == "" {
		return Endpoint{}, fmt.Errorf("empty address")
	}
	if path, ok := strings.CutPrefix(address, "unix://"); ok {
		if path == "" {
			return Endpoint{}, fmt.Errorf("unix address %q has no path", address)
		}
		return Endpoint{Network: "unix", Address: path}, nil
	}
	if hostPort, ok := strings.CutPrefix(address, "tcp://"); ok {
		if err := validateHostPort(hostPort); err != nil {
			return Endpoint{}, fmt.Errorf("tcp address %q: %w", address, err)
		}
		return Endpoint{Network: "tcp", Address: hostPort}, nil
	}
	if strings.Contains(address, "://") {
		return Endpoint{}, fmt.Errorf("unsupported scheme in address %q", address)
	}
	if address[0] == '@' || address[0] == '/' || strings.HasPrefix(address, "./") {
		return Endpoint{Network: "unix", Address: address}, nil
	}
	if err := validateHostPort(address); err != nil {
		return Endpoint{}, fmt.Errorf("address %q is neither a socket path nor host:port: %w", address, err)
	}
	return Endpoint{Network: "tcp", Address: address}, nil
}

// validateHostPort checks that hostPort splits cleanly and carries a
// numeric port. An empty host binds all interfaces and port 0 binds an
// ephemeral port, so both are allowed.
func validateHostPort(hostPort string) error {
	_, port, err := net.SplitHostPort(hostPort)
	if err != nil {
		return err
	}
	number, err := strconv.Atoi(port)
	if err != nil || number < 0 || number > 65535 {
		return fmt.Errorf("invalid port %q", port)
	}
	return nil
}
