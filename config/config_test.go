package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Recycler.PollInterval != 60*time.Second {
		t.Errorf("PollInterval = %v, want 60s", cfg.Recycler.PollInterval)
	}
	if cfg.Recycler.ActionOrder != OrderDispatchThenRelease {
		t.Errorf("ActionOrder = %q, want %q", cfg.Recycler.ActionOrder, OrderDispatchThenRelease)
	}
	if !cfg.Recycler.SkipSystemSlots {
		t.Error("SkipSystemSlots should default to true")
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slotrecycler.yaml")
	data := `
recycler:
  poll_interval: 30s
  idle_timeout: 10m
  action_order: release_only
  include_handheld_throttles: false
  allowed_throttle_ids: [18, 19]
  dry_run: true
loconet:
  transport: mqtt
  mqtt:
    broker: bridge.local
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	r := cfg.Recycler
	if r.PollInterval != 30*time.Second {
		t.Errorf("PollInterval = %v, want 30s", r.PollInterval)
	}
	if r.IdleTimeout != 10*time.Minute {
		t.Errorf("IdleTimeout = %v, want 10m", r.IdleTimeout)
	}
	if r.ConsistIdleTimeout != 300*time.Second {
		t.Errorf("ConsistIdleTimeout = %v, want default 300s", r.ConsistIdleTimeout)
	}
	if r.ActionOrder != OrderReleaseOnly {
		t.Errorf("ActionOrder = %q", r.ActionOrder)
	}
	if r.IncludeHandheld {
		t.Error("IncludeHandheld should be false")
	}
	if len(r.AllowedThrottleIDs) != 2 || r.AllowedThrottleIDs[0] != 18 {
		t.Errorf("AllowedThrottleIDs = %v", r.AllowedThrottleIDs)
	}
	if !r.DryRun {
		t.Error("DryRun should be true")
	}
	if cfg.LocoNet.Transport != "mqtt" || cfg.LocoNet.MQTT.Broker != "bridge.local" {
		t.Errorf("LocoNet = %+v", cfg.LocoNet)
	}
	if cfg.LocoNet.MQTT.Port != 1883 {
		t.Errorf("MQTT.Port = %d, want default 1883", cfg.LocoNet.MQTT.Port)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"zero poll interval", func(c *Config) { c.Recycler.PollInterval = 0 }},
		{"negative idle timeout", func(c *Config) { c.Recycler.IdleTimeout = -time.Second }},
		{"zero consist idle timeout", func(c *Config) { c.Recycler.ConsistIdleTimeout = 0 }},
		{"unknown ordering", func(c *Config) { c.Recycler.ActionOrder = "release_then_dispatch" }},
		{"unknown transport", func(c *Config) { c.LocoNet.Transport = "serial" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}

	if err := Defaults().Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := Defaults()
	cfg.Recycler.DryRun = true
	if err := cfg.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !got.Recycler.DryRun {
		t.Error("DryRun lost across save/load")
	}
}
