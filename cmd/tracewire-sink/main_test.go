// Copyright 2026 The Tracewire Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tracewire/tracewire/lib/testutil"
	"github.com/tracewire/tracewire/wire"
)

func TestServeShutdownClosesActiveConnections(t *testing.T) {
	socketPath := filepath.Join(testutil.SocketDir(t), "sink.sock")
	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var serveErr error
	serveDone := make(chan struct{})
	go func() {
		defer close(serveDone)
		serveErr = serve(ctx, listener, logger)
	}()

	producer, err := net.Dial("unix", socketPath)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer producer.Close()

	frameBytes, err := wire.Serialize(wire.NewIdentityFrame(1000, 4242, "hint"))
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if _, err := producer.Write(frameBytes); err != nil {
		t.Fatalf("write: %v", err)
	}

	// The producer never hangs up on its own; shutdown must not wait
	// for it.
	cancel()
	testutil.RequireClosed(t, serveDone, 5*time.Second, "serve did not return after cancellation")
	if serveErr != nil {
		t.Errorf("serve: %v", serveErr)
	}

	producer.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, err := producer.Read(make([]byte, 1)); err == nil || os.IsTimeout(err) {
		t.Error("producer connection was not closed at shutdown")
	}
}

func TestReadIdentity(t *testing.T) {
	t.Parallel()

	identityFrame, err := wire.Serialize(wire.NewIdentityFrame(1000, 4242, "hint"))
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	nonIdentityFrame, err := wire.Serialize(wire.Frame{RequestID: 7})
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	bareFrame, err := wire.Serialize(wire.Frame{})
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	tests := []struct {
		name    string
		input   []byte
		wantErr bool
	}{
		{name: "identity frame", input: identityFrame},
		{name: "wrong request id", input: nonIdentityFrame, wantErr: true},
		{name: "no identity payload", input: bareFrame, wantErr: true},
		{name: "garbage", input: []byte{0xff, 0xff}, wantErr: true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			frame, err := readIdentity(bytes.NewReader(test.input))
			if test.wantErr {
				if err == nil {
					t.Error("readIdentity succeeded, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("readIdentity: %v", err)
			}
			if frame.Identity.UID != 1000 {
				t.Errorf("uid = %d, want 1000", frame.Identity.UID)
			}
			if frame.Identity.PID != 4242 {
				t.Errorf("pid = %d, want 4242", frame.Identity.PID)
			}
			if frame.Identity.MachineIDHint != "hint" {
				t.Errorf("machine id hint = %q, want %q", frame.Identity.MachineIDHint, "hint")
			}
		})
	}
}
