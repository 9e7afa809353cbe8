// Copyright 2026 The Tracewire Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"runtime"
	"strings"
	"testing"
)

func TestInfo(t *testing.T) {
	got := Info()
	if !strings.Contains(got, Version) {
		t.Errorf("Info() = %q, want it to contain version %q", got, Version)
	}
	if !strings.Contains(got, GitCommit) {
		t.Errorf("Info() = %q, want it to contain commit %q", got, GitCommit)
	}
}

func TestInfoDirtySuffix(t *testing.T) {
	defer func(previous string) { GitDirty = previous }(GitDirty)

	GitDirty = "true"
	if got := Info(); !strings.Contains(got, "-dirty") {
		t.Errorf("Info() = %q, want a -dirty suffix", got)
	}
	GitDirty = "false"
	if got := Info(); strings.Contains(got, "-dirty") {
		t.Errorf("Info() = %q, want no -dirty suffix", got)
	}
}

func TestFull(t *testing.T) {
	got := Full()
	if !strings.HasPrefix(got, Info()) {
		t.Errorf("Full() = %q, want the Info line first", got)
	}
	if !strings.Contains(got, runtime.Version()) {
		t.Errorf("Full() = %q, want the Go toolchain version", got)
	}
	platform := runtime.GOOS + "/" + runtime.GOARCH
	if !strings.Contains(got, platform) {
		t.Errorf("Full() = %q, want platform %q", got, platform)
	}
}
