// Copyright 2026 The Tracewire Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Forwarding direction labels for the byte counter.
const (
	// DirectionProduced counts bytes flowing producer → collector.
	DirectionProduced = "produced"

	// DirectionReturned counts bytes flowing collector → producer.
	DirectionReturned = "returned"
)

// Metrics instruments the relay. Create one per registry with
// NewMetrics and share it between the Service and the Forwarder.
type Metrics struct {
	// Accepted counts producer connections accepted by the listener.
	Accepted prometheus.Counter

	// Paired counts pairs handed to the forwarding handler.
	Paired prometheus.Counter

	// DialFailures counts upstream dials that failed, each of which
	// drops the corresponding producer connection.
	DialFailures prometheus.Counter

	// PendingConnections tracks producers waiting for their upstream
	// dial to resolve.
	PendingConnections prometheus.Gauge

	// ActivePairs tracks pairs currently being forwarded.
	ActivePairs prometheus.Gauge

	// ForwardedBytes counts relayed bytes by direction, including the
	// staged identity frames flushed at handoff.
	ForwardedBytes *prometheus.CounterVec

	// PairDuration observes the lifetime of completed pairs.
	PairDuration prometheus.Histogram
}

// NewMetrics creates the relay metric set, registered with registry.
// A nil registry yields working but unregistered metrics, which keeps
// instrumentation code unconditional for callers that do not export
// metrics.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)
	return &Metrics{
		Accepted: factory.NewCounter(prometheus.CounterOpts{
			Name: "tracewire_relay_accepted_total",
			Help: "Producer connections accepted",
		}),
		Paired: factory.NewCounter(prometheus.CounterOpts{
			Name: "tracewire_relay_paired_total",
			Help: "Connection pairs handed to the forwarder",
		}),
		DialFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "tracewire_relay_dial_failures_total",
			Help: "Upstream dials that failed",
		}),
		PendingConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tracewire_relay_pending_connections",
			Help: "Producers waiting for their upstream dial",
		}),
		ActivePairs: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tracewire_relay_active_pairs",
			Help: "Connection pairs currently forwarding",
		}),
		ForwardedBytes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tracewire_relay_forwarded_bytes_total",
			Help: "Bytes forwarded by direction",
		}, []string{"direction"}),
		PairDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "tracewire_relay_pair_duration_seconds",
			Help:    "Lifetime of completed pairs",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 16),
		}),
	}
}

// discardMetrics receives values from services and forwarders created
// without a Metrics; nothing exposes them.
var discardMetrics = NewMetrics(nil)
