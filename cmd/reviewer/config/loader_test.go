// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{EnvRulesPath, EnvPort, EnvFeedbackDir, EnvLogLevel} {
		t.Setenv(key, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Empty(t, cfg.Rules.Path)
	assert.True(t, cfg.Rules.Watch)
	assert.True(t, cfg.Feedback.Enabled)
	assert.Equal(t, 1<<20, cfg.Detector.MaxSourceBytes)
	assert.NoError(t, Validate(cfg))
}

func TestLoad_NoFile(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Server, cfg.Server)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "review.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
  rate_limit: 5
rules:
  path: /etc/review/rules.yaml
  debounce: 250ms
logging:
  level: debug
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5.0, cfg.Server.RateLimit)
	assert.Equal(t, 100, cfg.Server.RateBurst)
	assert.Equal(t, "/etc/review/rules.yaml", cfg.Rules.Path)
	assert.Equal(t, 250*time.Millisecond, cfg.Rules.Debounce)
	assert.True(t, cfg.Rules.Watch)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "review.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0644))
	t.Setenv(EnvPort, "7000")
	t.Setenv(EnvRulesPath, "/tmp/rules.json")
	t.Setenv(EnvFeedbackDir, "/var/lib/review")
	t.Setenv(EnvLogLevel, "warn")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "/tmp/rules.json", cfg.Rules.Path)
	assert.Equal(t, "/var/lib/review", cfg.Feedback.Dir)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0644))
		return p
	}

	tests := []struct {
		name    string
		path    string
		env     map[string]string
		wantErr error
	}{
		{name: "unknown key", path: write("unknown.yaml", "server:\n  prot: 1\n"), wantErr: ErrInvalidConfig},
		{name: "bad yaml", path: write("bad.yaml", "server: [\n"), wantErr: ErrInvalidConfig},
		{name: "port out of range", path: write("range.yaml", "server:\n  port: 70000\n"), wantErr: ErrInvalidConfig},
		{name: "bad log level", path: write("level.yaml", "logging:\n  level: loud\n"), wantErr: ErrInvalidConfig},
		{name: "bad env port", env: map[string]string{EnvPort: "http"}, wantErr: ErrInvalidConfig},
		{name: "missing file", path: filepath.Join(dir, "absent.yaml"), wantErr: os.ErrNotExist},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(tt.path)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLoad_EmptyFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Server, cfg.Server)
}

func TestWriteDefault_RoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "review.yaml")
	require.NoError(t, WriteDefault(path))
	assert.ErrorIs(t, WriteDefault(path), os.ErrExist)

	cfg, err := Load(path)
	require.NoError(t, err)
	want := DefaultConfig()
	assert.Equal(t, want.Server, cfg.Server)
	assert.Equal(t, want.Rules, cfg.Rules)
	assert.Equal(t, want.Feedback, cfg.Feedback)
}
