// Copyright 2026 The Tracewire Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/tracewire/tracewire/lib/machineid"
	"github.com/tracewire/tracewire/lib/netutil"
	"github.com/tracewire/tracewire/lib/peercred"
	"github.com/tracewire/tracewire/wire"
)

// Handler receives completed socket pairs from the Service. AddPair
// transfers ownership: the handler forwards the pair's bytes and
// finally closes both connections.
type Handler interface {
	AddPair(pair *SocketPair)
}

// ServiceConfig configures a Service.
type ServiceConfig struct {
	// ListenAddress is the producer-facing endpoint, in any form
	// netutil.ParseAddress accepts.
	ListenAddress string

	// UpstreamAddress is the collector endpoint dialed once per
	// accepted producer.
	UpstreamAddress string

	// DialTimeout bounds each upstream dial. Defaults to
	// DefaultDialTimeout.
	DialTimeout time.Duration

	// MachineIDHint overrides the identifier recorded in forged
	// identity frames. Empty means derive it with machineid.Hint.
	MachineIDHint string

	// Handler receives completed pairs. Required.
	Handler Handler

	// Logger receives structured log output. If nil, slog.Default()
	// is used. Per-connection events are logged at Debug level;
	// lifecycle events and failures at Info/Warn.
	Logger *slog.Logger

	// Metrics instruments the service. If nil, values are collected
	// but not exported anywhere.
	Metrics *Metrics
}

// Service accepts producer connections and pairs each one with its own
// upstream connection to the collector.
//
// For every accepted producer the service forges an identity frame
// from the producer's socket credentials, stages it on the producer
// side of a new SocketPair, and dials the collector in the background.
// Staging always happens before the dial starts, so a resolved dial
// can rely on the frame being in place. On success the pair goes to
// the handler with the frame as its first upstream-bound bytes; on
// failure both sides are discarded. The relay never writes to producer
// sockets on its own behalf, so producers cannot tell they are talking
// to a relay rather than a collector.
type Service struct {
	listenEndpoint   netutil.Endpoint
	upstreamEndpoint netutil.Endpoint
	dialTimeout      time.Duration
	machineIDHint    string
	handler          Handler
	logger           *slog.Logger
	metrics          *Metrics

	listener   net.Listener
	runContext context.Context
	cancel     context.CancelFunc
	done       chan struct{}
	dials      sync.WaitGroup

	mutex   sync.Mutex
	pending map[uint64]*SocketPair
	stopped bool
}

// NewService validates config and creates a Service. The machine
// identifier is resolved here, once, so every frame the service forges
// carries the same hint.
func NewService(config ServiceConfig) (*Service, error) {
	if config.Handler == nil {
		return nil, fmt.Errorf("relay: handler is required")
	}
	listenEndpoint, err := netutil.ParseAddress(config.ListenAddress)
	if err != nil {
		return nil, fmt.Errorf("relay: listen address: %w", err)
	}
	upstreamEndpoint, err := netutil.ParseAddress(config.UpstreamAddress)
	if err != nil {
		return nil, fmt.Errorf("relay: upstream address: %w", err)
	}
	if config.DialTimeout <= 0 {
		config.DialTimeout = DefaultDialTimeout
	}
	if config.MachineIDHint == "" {
		config.MachineIDHint = machineid.Hint()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Metrics == nil {
		config.Metrics = discardMetrics
	}
	return &Service{
		listenEndpoint:   listenEndpoint,
		upstreamEndpoint: upstreamEndpoint,
		dialTimeout:      config.DialTimeout,
		machineIDHint:    config.MachineIDHint,
		handler:          config.Handler,
		logger:           config.Logger,
		metrics:          config.Metrics,
		pending:          make(map[uint64]*SocketPair),
	}, nil
}

// Start binds the producer-facing listener and begins accepting. It
// returns once the listener is bound, or an error if binding fails. A
// relay that cannot offer its producer endpoint has no reason to run,
// so callers treat this as fatal. The service runs in the background
// until Stop is called.
func (s *Service) Start(ctx context.Context) error {
	if s.isFileSocket() {
		// Remove a stale socket file from a previous run.
		if err := os.Remove(s.listenEndpoint.Address); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("relay: failed to remove existing socket: %w", err)
		}
	}

	listener, err := net.Listen(s.listenEndpoint.Network, s.listenEndpoint.Address)
	if err != nil {
		return fmt.Errorf("relay: failed to listen on %s: %w", s.listenEndpoint, err)
	}
	s.listener = listener

	if s.isFileSocket() {
		// Producers run under arbitrary uids; all of them must be able
		// to connect.
		if err := os.Chmod(s.listenEndpoint.Address, 0666); err != nil {
			listener.Close()
			return fmt.Errorf("relay: failed to chmod socket: %w", err)
		}
	}

	s.runContext, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		s.acceptLoop()
	}()

	s.logger.Info("relay started",
		"listen", s.listenEndpoint.String(),
		"upstream", s.upstreamEndpoint.String(),
		"machine_id_hint", s.machineIDHint,
	)
	return nil
}

// isFileSocket reports whether the producer endpoint is a filesystem
// Unix socket (as opposed to an abstract name or a TCP address).
func (s *Service) isFileSocket() bool {
	return s.listenEndpoint.Network == "unix" && !strings.HasPrefix(s.listenEndpoint.Address, "@")
}

// Addr returns the producer listener's address, useful when binding
// port 0. Returns nil before Start.
func (s *Service) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// PendingConnections returns the number of producers whose upstream
// dial has not resolved yet.
func (s *Service) PendingConnections() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.pending)
}

// Stop closes the listener, cancels in-flight dials, and waits for the
// accept loop to drain. Pending producers are dropped: their dials
// resolve as cancelled and the discard path closes them. Idempotent.
func (s *Service) Stop() {
	s.mutex.Lock()
	alreadyStopped := s.stopped
	s.stopped = true
	s.mutex.Unlock()

	if !alreadyStopped {
		if s.cancel != nil {
			s.cancel()
		}
		if s.listener != nil {
			s.listener.Close()
		}
	}
	if s.done != nil {
		<-s.done
	}
	if !alreadyStopped {
		s.logger.Info("relay stopped")
	}
}

// acceptLoop accepts producers until the listener closes. It waits for
// all in-flight dials to finish before returning, so that closing the
// done channel signals full quiescence.
func (s *Service) acceptLoop() {
	var connectionCount uint64

	for {
		producerConn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.runContext.Done():
			default:
				if !errors.Is(err, net.ErrClosed) {
					s.logger.Error("accept failed", "error", err)
					continue
				}
			}
			s.dials.Wait()
			return
		}

		connectionCount++
		s.pairProducer(producerConn, connectionCount)
	}
}

// pairProducer forges and stages the identity frame for an accepted
// producer, registers the pending pair, and starts the upstream dial.
// It runs on the accept goroutine: the frame is staged before the dial
// goroutine exists, so no resolution can observe a pair without its
// frame.
func (s *Service) pairProducer(producerConn net.Conn, connectionID uint64) {
	s.metrics.Accepted.Inc()
	logger := s.logger.With("connection_id", connectionID)

	credentials, err := peercred.Get(producerConn)
	if err != nil {
		// TCP producers and non-Linux platforms carry no socket
		// credentials. The collector still gets a frame, with the
		// unknown-uid sentinel and no pid.
		credentials = peercred.Credentials{UID: wire.UnknownUID}
	}

	frameBytes, err := wire.Serialize(wire.NewIdentityFrame(credentials.UID, credentials.PID, s.machineIDHint))
	if err != nil {
		panic(fmt.Sprintf("relay: serializing identity frame: %v", err))
	}

	pair := &SocketPair{Producer: StagedConn{Conn: producerConn}}
	writable := pair.Producer.Buffer.Writable()
	if len(frameBytes) > len(writable) {
		panic(fmt.Sprintf("relay: identity frame of %d bytes exceeds staging capacity %d", len(frameBytes), StageBufferCapacity))
	}
	copy(writable, frameBytes)
	pair.Producer.Buffer.Commit(len(frameBytes))

	logger.Debug("producer accepted",
		"uid", credentials.UID,
		"pid", credentials.PID,
		"staged_bytes", pair.Producer.Buffer.Len(),
	)

	s.mutex.Lock()
	if s.stopped {
		s.mutex.Unlock()
		producerConn.Close()
		return
	}
	s.pending[connectionID] = pair
	s.mutex.Unlock()
	s.metrics.PendingConnections.Inc()

	s.dials.Add(1)
	go func() {
		defer s.dials.Done()
		dialer := net.Dialer{Timeout: s.dialTimeout}
		upstreamConn, dialErr := dialer.DialContext(s.runContext, s.upstreamEndpoint.Network, s.upstreamEndpoint.Address)
		s.resolveUpstream(connectionID, upstreamConn, dialErr)
	}()
}

// resolveUpstream completes the pairing attempt for connectionID. It
// runs exactly once per registered producer, on the dial goroutine.
// The pending entry must exist: nothing else removes entries, and a
// missing one means the single-resolution rule was broken somewhere.
func (s *Service) resolveUpstream(connectionID uint64, upstreamConn net.Conn, dialErr error) {
	s.mutex.Lock()
	pair, ok := s.pending[connectionID]
	if !ok {
		s.mutex.Unlock()
		panic(fmt.Sprintf("relay: dial resolved for unknown connection %d", connectionID))
	}
	delete(s.pending, connectionID)
	stopped := s.stopped
	s.mutex.Unlock()
	s.metrics.PendingConnections.Dec()

	logger := s.logger.With("connection_id", connectionID)

	if dialErr != nil {
		s.metrics.DialFailures.Inc()
		logger.Warn("upstream dial failed, dropping producer",
			"upstream", s.upstreamEndpoint.String(),
			"error", dialErr,
		)
		pair.Producer.Conn.Close()
		return
	}

	pair.Upstream.Conn = upstreamConn
	if stopped {
		logger.Debug("relay stopped during dial, discarding pair")
		pair.Close()
		return
	}

	s.metrics.Paired.Inc()
	logger.Debug("paired with upstream", "upstream", s.upstreamEndpoint.String())
	s.handler.AddPair(pair)
}
