package config

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig_IsValid(t *testing.T) {
	cfg := NewDefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ProviderOllama, cfg.Model.Provider)
	assert.Equal(t, "qwen2.5-coder:7b", cfg.Model.Name)
	assert.Equal(t, 60*time.Second, cfg.Model.Timeout.Duration())
	assert.Equal(t, 100, cfg.Orchestrator.MaxCycles)
	assert.Equal(t, 1, cfg.Orchestrator.Parallelism)
	assert.Equal(t, "./generated_app", cfg.Output.Dir)
	assert.True(t, cfg.Output.Git)
	assert.Equal(t, 9191, cfg.Server.Port)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{"unknown provider", func(c *Config) { c.Model.Provider = "bard" }, "model.provider"},
		{"missing model name", func(c *Config) { c.Model.Name = "" }, "model.name"},
		{"offline needs no model name", func(c *Config) {
			c.Model.Provider = ProviderOffline
			c.Model.Name = ""
		}, ""},
		{"bad base url", func(c *Config) { c.Model.BaseURL = "not a url" }, "model.base_url"},
		{"zero timeout", func(c *Config) { c.Model.Timeout = 0 }, "model.timeout"},
		{"temperature too high", func(c *Config) { c.Model.Temperature = 3 }, "model.temperature"},
		{"burst without rate", func(c *Config) { c.Model.Burst = 0 }, "model.burst"},
		{"zero cycles", func(c *Config) { c.Orchestrator.MaxCycles = 0 }, "max_cycles"},
		{"zero parallelism", func(c *Config) { c.Orchestrator.Parallelism = 0 }, "parallelism"},
		{"publish without token", func(c *Config) { c.Publish.Enabled = true }, "publish.token"},
		{"publish without git", func(c *Config) {
			c.Publish.Enabled = true
			c.Publish.Token = "ghp_x"
			c.Output.Git = false
		}, "output.git"},
		{"checkpoint without path", func(c *Config) {
			c.Checkpoint.Enabled = true
			c.Checkpoint.Path = ""
		}, "checkpoint.path"},
		{"external events without url", func(c *Config) {
			c.Events.Enabled = true
			c.Events.Embedded = false
			c.Events.URL = ""
		}, "events.url"},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"bad telemetry protocol", func(c *Config) { c.Telemetry.Protocol = "udp" }, "telemetry.protocol"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_Validate_JoinsErrors(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Orchestrator.MaxCycles = 0
	cfg.Server.Port = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_cycles")
	assert.Contains(t, err.Error(), "server.port")
}

func TestSecret_NeverPrints(t *testing.T) {
	s := Secret("sk-live-abcdef")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", s))
	assert.NotContains(t, fmt.Sprintf("%#v", s), "abcdef")
	assert.Equal(t, "sk-live-abcdef", s.Value())
	assert.True(t, s.IsSet())
	assert.Equal(t, "", Secret("").String())
	assert.False(t, Secret("").IsSet())

	data, err := json.Marshal(struct {
		Key Secret `json:"key"`
	}{s})
	require.NoError(t, err)
	assert.JSONEq(t, `{"key":"[REDACTED]"}`, string(data))
}

func TestDuration_UnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("90s")))
	assert.Equal(t, 90*time.Second, d.Duration())

	text, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", string(text))

	assert.Error(t, d.UnmarshalText([]byte("soon")))
	assert.Error(t, d.UnmarshalText([]byte("-5s")))
}
