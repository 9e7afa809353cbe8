// Copyright 2026 The Tracewire Authors
// SPDX-License-Identifier: Apache-2.0

// Tracewire-sink is a development stand-in for a trace collector. It
// accepts relayed connections, logs the identity frame each stream
// opens with, and drains the remaining bytes, reporting the count on
// disconnect. It lets a relay be exercised end to end without a real
// collector:
//
//	tracewire-sink --listen /tmp/collector.sock &
//	tracewire-relay --listen /tmp/producer.sock --upstream /tmp/collector.sock
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/tracewire/tracewire/lib/netutil"
	"github.com/tracewire/tracewire/lib/process"
	"github.com/tracewire/tracewire/lib/version"
	"github.com/tracewire/tracewire/wire"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var listenAddress string
	var showVersion bool

	flagSet := pflag.NewFlagSet("tracewire-sink", pflag.ContinueOnError)
	flagSet.StringVar(&listenAddress, "listen", "/tmp/tracewire-sink.sock", "endpoint to accept relayed connections on")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if showVersion {
		version.Print("tracewire-sink")
		return nil
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	endpoint, err := netutil.ParseAddress(listenAddress)
	if err != nil {
		return fmt.Errorf("listen address: %w", err)
	}
	if endpoint.Network == "unix" && !strings.HasPrefix(endpoint.Address, "@") {
		if err := os.Remove(endpoint.Address); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove existing socket: %w", err)
		}
	}

	listener, err := net.Listen(endpoint.Network, endpoint.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", endpoint, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serve(ctx, listener, logger)
}

// serve accepts relayed connections until ctx is cancelled, then
// force-closes the active ones and waits for their handlers. Producers
// relayed here stay connected for as long as their traces flow, so
// shutdown cannot wait for them to hang up on their own.
func serve(ctx context.Context, listener net.Listener, logger *slog.Logger) error {
	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	logger.Info("sink listening", "address", listener.Addr().String())

	var handlers sync.WaitGroup
	var mutex sync.Mutex
	activeConnections := make(map[uint64]net.Conn)
	closeActive := func() {
		mutex.Lock()
		defer mutex.Unlock()
		for _, connection := range activeConnections {
			connection.Close()
		}
	}

	var connectionCount uint64
	for {
		connection, acceptErr := listener.Accept()
		if acceptErr != nil {
			if ctx.Err() == nil {
				closeActive()
				handlers.Wait()
				return fmt.Errorf("accept failed: %w", acceptErr)
			}
			break
		}

		connectionCount++
		connectionID := connectionCount
		mutex.Lock()
		activeConnections[connectionID] = connection
		mutex.Unlock()

		connectionLogger := logger.With("connection_id", connectionID)
		handlers.Add(1)
		go func() {
			defer handlers.Done()
			defer func() {
				mutex.Lock()
				delete(activeConnections, connectionID)
				mutex.Unlock()
				connection.Close()
			}()
			handleConnection(connectionLogger, connection)
		}()
	}

	logger.Info("shutting down")
	closeActive()
	handlers.Wait()
	logger.Info("sink stopped", "connections", connectionCount)
	return nil
}

// handleConnection logs the stream's identity frame, then drains the
// producer's bytes until the relay closes the connection.
func handleConnection(logger *slog.Logger, conn net.Conn) {
	frame, err := readIdentity(conn)
	if err != nil {
		logger.Warn("rejecting stream", "error", err)
		return
	}
	logger.Info("producer connected",
		"uid", frame.Identity.UID,
		"pid", frame.Identity.PID,
		"machine_id_hint", frame.Identity.MachineIDHint,
	)

	drained, err := io.Copy(io.Discard, conn)
	if err != nil && !netutil.IsExpectedCloseError(err) {
		logger.Warn("drain failed", "bytes", drained, "error", err)
		return
	}
	logger.Info("producer disconnected", "bytes", drained)
}

// readIdentity reads and validates the identity frame the relay
// prefixes to every stream.
func readIdentity(r io.Reader) (wire.Frame, error) {
	frame, err := wire.ReadFrame(r)
	if err != nil {
		return wire.Frame{}, err
	}
	if frame.RequestID != wire.IdentityRequestID {
		return wire.Frame{}, fmt.Errorf("first frame has request id %d, want %d", frame.RequestID, wire.IdentityRequestID)
	}
	if frame.Identity == nil {
		return wire.Frame{}, fmt.Errorf("first frame carries no identity")
	}
	return frame, nil
}
