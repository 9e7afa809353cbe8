// Copyright 2026 The Tracewire Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"testing"
)

func TestParseAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		address string
		want    Endpoint
	}{
		{
			name:    "unix scheme",
			address: "unix:///run/tracewire/producer.sock",
			want:    Endpoint{Network: "unix", Address: "/run/tracewire/producer.sock"},
		},
		{
			name:    "tcp scheme",
			address: "tcp://collector.internal:9331",
			want:    Endpoint{Network: "tcp", Address: "collector.internal:9331"},
		},
		{
			name:    "bare absolute path",
			address: "/run/tracewire/producer.sock",
			want:    Endpoint{Network: "unix", Address: "/run/tracewire/producer.sock"},
		},
		{
			name:    "relative path",
			address: "./producer.sock",
			want:    Endpoint{Network: "unix", Address: "./producer.sock"},
		},
		{
			name:    "abstract socket",
			address: "@tracewire-producer",
			want:    Endpoint{Network: "unix", Address: "@tracewire-producer"},
		},
		{
			name:    "bare host and port",
			address: "collector.internal:9331",
			want:    Endpoint{Network: "tcp", Address: "collector.internal:9331"},
		},
		{
			name:    "all interfaces",
			address: "tcp://:9090",
			want:    Endpoint{Network: "tcp", Address: ":9090"},
		},
		{
			name:    "ipv6 host and port",
			address: "tcp://[::1]:9331",
			want:    Endpoint{Network: "tcp", Address: "[::1]:9331"},
		},
		{
			name:    "ephemeral port",
			address: "tcp://127.0.0.1:0",
			want:    Endpoint{Network: "tcp", Address: "127.0.0.1:0"},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseAddress(test.address)
			if err != nil {
				t.Fatalf("ParseAddress(%q): %v", test.address, err)
			}
			if got != test.want {
				t.Errorf("ParseAddress(%q) = %v, want %v", test.address, got, test.want)
			}
		})
	}
}

func TestParseAddressRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		address string
	}{
		{name: "empty", address: ""},
		{name: "unknown scheme", address: "vsock://2:9331"},
		{name: "unix scheme without path", address: "unix://"},
		{name: "tcp scheme without port", address: "tcp://collector.internal"},
		{name: "non-numeric port", address: "collector.internal:trace"},
		{name: "port out of range", address: "collector.internal:70000"},
		{name: "bare hostname", address: "collector.internal"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			if _, err := ParseAddress(test.address); err == nil {
				t.Errorf("ParseAddress(%q) succeeded, want error", test.address)
			}
		})
	}
}

func TestEndpointString(t *testing.T) {
	t.Parallel()

	endpoint := Endpoint{Network: "unix", Address: "/tmp/relay.sock"}
	if got, want := endpoint.String(), "unix:///tmp/relay.sock"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestIsExpectedCloseError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "eof", err: io.EOF, want: true},
		{name: "wrapped eof", err: fmt.Errorf("copy: %w", io.EOF), want: true},
		{name: "closed connection", err: net.ErrClosed, want: true},
		{name: "broken pipe", err: &net.OpError{Op: "write", Err: syscall.EPIPE}, want: true},
		{name: "connection reset", err: &net.OpError{Op: "read", Err: syscall.ECONNRESET}, want: true},
		{name: "refused", err: &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, want: false},
		{name: "unrelated", err: errors.New("disk full"), want: false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			if got := IsExpectedCloseError(test.err); got != test.want {
				t.Errorf("IsExpectedCloseError(%v) = %v, want %v", test.err, got, test.want)
			}
		})
	}
}
