// Copyright 2026 The Tracewire Authors
// SPDX-License-Identifier: Apache-2.0

// Tracewire-relay accepts local trace producer connections and relays
// each one to a central collector over its own upstream connection.
// Every relayed stream starts with a forged identity frame carrying the
// producer's socket credentials and a machine identifier, so the
// collector can attribute traffic that no longer arrives over a local
// socket.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"

	"github.com/tracewire/tracewire/lib/netutil"
	"github.com/tracewire/tracewire/lib/process"
	"github.com/tracewire/tracewire/lib/version"
	"github.com/tracewire/tracewire/relay"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var configPath string
	var listenAddress string
	var upstreamAddress string
	var metricsAddress string
	var logLevel string
	var showVersion bool

	flagSet := pflag.NewFlagSet("tracewire-relay", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to YAML config file")
	flagSet.StringVar(&listenAddress, "listen", "", "producer-facing endpoint (overrides config)")
	flagSet.StringVar(&upstreamAddress, "upstream", "", "collector endpoint (overrides config)")
	flagSet.StringVar(&metricsAddress, "metrics", "", "prometheus/health endpoint, tcp only (overrides config)")
	flagSet.StringVar(&logLevel, "log-level", "", "debug, info, warn, or error (overrides config)")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if showVersion {
		version.Print("tracewire-relay")
		return nil
	}

	config, err := resolveConfig(configPath, relay.Config{
		ListenAddress:   listenAddress,
		UpstreamAddress: upstreamAddress,
		MetricsAddress:  metricsAddress,
		LogLevel:        logLevel,
	})
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: config.SlogLevel(),
	}))
	slog.SetDefault(logger)

	logger.Info("starting tracewire-relay", "version", version.Info())

	metrics := relay.NewMetrics(prometheus.DefaultRegisterer)
	forwarder := &relay.Forwarder{
		Logger:  logger,
		Metrics: metrics,
	}

	service, err := relay.NewService(relay.ServiceConfig{
		ListenAddress:   config.ListenAddress,
		UpstreamAddress: config.UpstreamAddress,
		DialTimeout:     time.Duration(config.DialTimeout),
		Handler:         forwarder,
		Logger:          logger,
		Metrics:         metrics,
	})
	if err != nil {
		return fmt.Errorf("failed to create relay: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := service.Start(ctx); err != nil {
		return fmt.Errorf("failed to start relay: %w", err)
	}

	var ready atomic.Bool
	var metricsServer *http.Server
	if config.MetricsAddress != "" {
		endpoint, err := netutil.ParseAddress(config.MetricsAddress)
		if err != nil {
			return fmt.Errorf("metrics address: %w", err)
		}
		metricsServer = newMetricsServer(endpoint.Address, &ready)
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server error", "error", err)
			}
		}()
		logger.Info("metrics server listening", "address", endpoint.Address)
	}

	ready.Store(true)

	<-ctx.Done()
	logger.Info("received shutdown signal")
	ready.Store(false)

	// Stop accepting producers and cancel in-flight dials first, then
	// tear down the active pairs the forwarder owns.
	service.Stop()
	forwarder.Stop()

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return nil
}

// resolveConfig merges the configuration sources: flag values override
// file values, and file values override defaults. Fields the flags
// leave empty fall through to the file, then to the defaults.
func resolveConfig(configPath string, overrides relay.Config) (relay.Config, error) {
	var config relay.Config
	if configPath != "" {
		loaded, err := relay.LoadConfig(configPath)
		if err != nil {
			return relay.Config{}, fmt.Errorf("failed to load config: %w", err)
		}
		config = *loaded
	}
	if overrides.ListenAddress != "" {
		config.ListenAddress = overrides.ListenAddress
	}
	if overrides.UpstreamAddress != "" {
		config.UpstreamAddress = overrides.UpstreamAddress
	}
	if overrides.MetricsAddress != "" {
		config.MetricsAddress = overrides.MetricsAddress
	}
	if overrides.LogLevel != "" {
		config.LogLevel = overrides.LogLevel
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return relay.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return config, nil
}
