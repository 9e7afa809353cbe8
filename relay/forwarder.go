// Copyright 2026 The Tracewire Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/tracewire/tracewire/lib/netutil"
)

// Forwarder is the production Handler: it owns completed pairs and
// splices their byte streams until both directions finish.
//
// Each direction flushes the bytes staged during pair establishment
// before copying the live socket stream, so the forged identity frame
// reaches the collector ahead of any producer bytes. EOF on one
// direction half-closes the other side, letting the remaining
// direction keep flowing.
type Forwarder struct {
	// Logger receives structured log output. If nil, slog.Default()
	// is used. Per-pair events are logged at Debug level.
	Logger *slog.Logger

	// Metrics instruments forwarding. If nil, values are collected
	// but not exported anywhere.
	Metrics *Metrics

	pairs     sync.WaitGroup
	mutex     sync.Mutex
	pairCount uint64
	active    map[*SocketPair]struct{}
	stopped   bool
}

var _ Handler = (*Forwarder)(nil)

// logger returns the configured logger or the default.
func (f *Forwarder) logger() *slog.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return slog.Default()
}

// metrics returns the configured metric set or the discard set.
func (f *Forwarder) metrics() *Metrics {
	if f.Metrics != nil {
		return f.Metrics
	}
	return discardMetrics
}

// AddPair takes ownership of a completed pair and forwards it in the
// background. Pairs arriving after Stop are closed on arrival.
func (f *Forwarder) AddPair(pair *SocketPair) {
	f.mutex.Lock()
	if f.stopped {
		f.mutex.Unlock()
		pair.Close()
		return
	}
	if f.active == nil {
		f.active = make(map[*SocketPair]struct{})
	}
	f.active[pair] = struct{}{}
	f.pairCount++
	pairID := f.pairCount
	f.pairs.Add(1)
	f.mutex.Unlock()

	f.metrics().ActivePairs.Inc()
	go func() {
		defer f.pairs.Done()
		started := time.Now()
		f.forward(pair, pairID)

		f.mutex.Lock()
		delete(f.active, pair)
		f.mutex.Unlock()
		f.metrics().ActivePairs.Dec()
		f.metrics().PairDuration.Observe(time.Since(started).Seconds())
	}()
}

// ActivePairs returns the number of pairs currently being forwarded.
func (f *Forwarder) ActivePairs() int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return len(f.active)
}

// Stop closes all active pairs and waits for their goroutines to
// drain. Idempotent.
func (f *Forwarder) Stop() {
	f.mutex.Lock()
	f.stopped = true
	activePairs := make([]*SocketPair, 0, len(f.active))
	for pair := range f.active {
		activePairs = append(activePairs, pair)
	}
	f.mutex.Unlock()

	for _, pair := range activePairs {
		pair.Close()
	}
	f.pairs.Wait()
}

// forward splices the pair until both directions finish, then closes
// both sides.
func (f *Forwarder) forward(pair *SocketPair, pairID uint64) {
	logger := f.logger().With("pair_id", pairID)
	logger.Debug("forwarding pair",
		"producer_staged", pair.Producer.Buffer.Len(),
		"upstream_staged", pair.Upstream.Buffer.Len(),
	)

	var waitGroup sync.WaitGroup
	waitGroup.Add(2)

	go func() {
		defer waitGroup.Done()
		f.forwardDirection(logger, &pair.Producer, &pair.Upstream, DirectionProduced)
	}()
	go func() {
		defer waitGroup.Done()
		f.forwardDirection(logger, &pair.Upstream, &pair.Producer, DirectionReturned)
	}()

	waitGroup.Wait()
	pair.Close()
	logger.Debug("pair closed")
}

// forwardDirection drains one side's staged bytes into the other, then
// copies the live stream. On EOF the destination is half-closed so its
// peer sees end-of-stream while the reverse direction keeps flowing.
func (f *Forwarder) forwardDirection(logger *slog.Logger, from, to *StagedConn, direction string) {
	if staged := from.Buffer.Bytes(); len(staged) > 0 {
		if _, err := to.Conn.Write(staged); err != nil {
			if !netutil.IsExpectedCloseError(err) {
				logger.Debug("staged flush failed", "direction", direction, "error", err)
			}
			closeWrite(to.Conn)
			return
		}
		f.metrics().ForwardedBytes.WithLabelValues(direction).Add(float64(len(staged)))
	}

	bytesCopied, err := io.Copy(to.Conn, from.Conn)
	if err != nil && !netutil.IsExpectedCloseError(err) {
		logger.Debug("copy error",
			"direction", direction,
			"bytes_copied", bytesCopied,
			"error", err,
		)
	}
	f.metrics().ForwardedBytes.WithLabelValues(direction).Add(float64(bytesCopied))
	closeWrite(to.Conn)
}

// closeWrite half-closes the write side of conn when the transport
// supports it. Unix and TCP connections both do; for anything else the
// full close at pair teardown is the only end-of-stream signal.
func closeWrite(conn net.Conn) {
	type writeCloser interface{ CloseWrite() error }
	if halfCloser, ok := conn.(writeCloser); ok {
		halfCloser.CloseWrite()
	}
}
