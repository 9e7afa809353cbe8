// Copyright 2026 The Tracewire Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tracewire/tracewire/relay"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "relay.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestResolveConfig(t *testing.T) {
	t.Parallel()

	configFile := writeConfigFile(t, `
listen_address: /run/tracewire/file.sock
upstream_address: file-collector.internal:9331
log_level: warn
`)
	missingFile := filepath.Join(t.TempDir(), "absent.yaml")

	tests := []struct {
		name         string
		configPath   string
		overrides    relay.Config
		wantListen   string
		wantUpstream string
		wantLevel    string
		wantErr      bool
	}{
		{
			name:         "defaults only",
			overrides:    relay.Config{UpstreamAddress: "collector.internal:9331"},
			wantListen:   relay.DefaultListenAddress,
			wantUpstream: "collector.internal:9331",
			wantLevel:    "info",
		},
		{
			name:         "file wins over defaults",
			configPath:   configFile,
			wantListen:   "/run/tracewire/file.sock",
			wantUpstream: "file-collector.internal:9331",
			wantLevel:    "warn",
		},
		{
			name:       "flags win over file",
			configPath: configFile,
			overrides: relay.Config{
				ListenAddress: "/run/tracewire/flag.sock",
				LogLevel:      "debug",
			},
			wantListen:   "/run/tracewire/flag.sock",
			wantUpstream: "file-collector.internal:9331",
			wantLevel:    "debug",
		},
		{
			name:    "missing upstream rejected",
			wantErr: true,
		},
		{
			name:       "unreadable config file",
			configPath: missingFile,
			overrides:  relay.Config{UpstreamAddress: "collector.internal:9331"},
			wantErr:    true,
		},
		{
			name: "invalid flag value rejected",
			overrides: relay.Config{
				UpstreamAddress: "collector.internal:9331",
				LogLevel:        "verbose",
			},
			wantErr: true,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			config, err := resolveConfig(test.configPath, test.overrides)
			if test.wantErr {
				if err == nil {
					t.Error("resolveConfig succeeded, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("resolveConfig: %v", err)
			}
			if config.ListenAddress != test.wantListen {
				t.Errorf("ListenAddress = %q, want %q", config.ListenAddress, test.wantListen)
			}
			if config.UpstreamAddress != test.wantUpstream {
				t.Errorf("UpstreamAddress = %q, want %q", config.UpstreamAddress, test.wantUpstream)
			}
			if config.LogLevel != test.wantLevel {
				t.Errorf("LogLevel = %q, want %q", config.LogLevel, test.wantLevel)
			}
			// No flag sets the dial timeout, so it always defaults.
			if time.Duration(config.DialTimeout) != relay.DefaultDialTimeout {
				t.Errorf("DialTimeout = %v, want %v", time.Duration(config.DialTimeout), relay.DefaultDialTimeout)
			}
		})
	}
}
