package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Spawn.Interval != 6*time.Second || cfg.Proximity.Interval != 1500*time.Millisecond {
		t.Errorf("unexpected intervals %v/%v", cfg.Spawn.Interval, cfg.Proximity.Interval)
	}
}

func TestParseConfigOverridesDefaults(t *testing.T) {
	data := []byte(`
room:
  width: 8
  height: 6
  cols: 4
  rows: 3
spawn:
  maxSimultaneous: 12
  interval: 3s
proximity:
  discoveryRange: 2.5
  hideRange: 3.5
capture:
  streakWindow: 4s
`)
	cfg, err := ParseConfig(data)
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if cfg.Room.Width != 8 || cfg.Room.Cols != 4 || cfg.Room.Rows != 3 {
		t.Errorf("room not applied: %+v", cfg.Room)
	}
	if cfg.Spawn.MaxSimultaneous != 12 || cfg.Spawn.Interval != 3*time.Second {
		t.Errorf("spawn not applied: %+v", cfg.Spawn)
	}
	if cfg.Spawn.MinDistance != 1.8 {
		t.Errorf("unset fields keep defaults, got min distance %v", cfg.Spawn.MinDistance)
	}
	if cfg.Capture.StreakWindow != 4*time.Second {
		t.Errorf("expected 4s streak window, got %v", cfg.Capture.StreakWindow)
	}
	if len(cfg.Rarities) != 3 {
		t.Errorf("expected default rarities, got %d", len(cfg.Rarities))
	}
}

func TestParseConfigRarities(t *testing.T) {
	data := []byte(`
rarities:
  - name: shiny
    weight: 1
    points: 5
    despawn: 10s
    captureRange: 1.5
    color: "#ffffff"
    objects:
      - id: coin
        name: Coin
        image: shiny/coin.png
`)
	cfg, err := ParseConfig(data)
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if len(cfg.Rarities) != 1 || cfg.Rarities[0].Despawn != 10*time.Second {
		t.Errorf("unexpected rarities %+v", cfg.Rarities)
	}
}

func TestValidateClamps(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Room.Cols = 0
	cfg.Spawn.MaxAttempts = -3
	cfg.Spawn.MinActive = 99
	cfg.Spawn.Interval = time.Millisecond
	cfg.Capture.MaxMultiplier = 0.5

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Room.Cols != 1 {
		t.Errorf("cols clamp: got %d", cfg.Room.Cols)
	}
	if cfg.Spawn.MaxAttempts != 1 {
		t.Errorf("attempts clamp: got %d", cfg.Spawn.MaxAttempts)
	}
	if cfg.Spawn.MinActive != cfg.Spawn.MaxSimultaneous {
		t.Errorf("min active should not exceed the cap, got %d", cfg.Spawn.MinActive)
	}
	if cfg.Spawn.Interval != 100*time.Millisecond {
		t.Errorf("interval clamp: got %v", cfg.Spawn.Interval)
	}
	if cfg.Capture.MaxMultiplier != 1 {
		t.Errorf("multiplier clamp: got %v", cfg.Capture.MaxMultiplier)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero room", func(c *Config) { c.Room.Width = 0 }},
		{"inverted band", func(c *Config) { c.Proximity.HideRange = c.Proximity.DiscoveryRange }},
		{"no objects", func(c *Config) { c.Rarities[0].Objects = nil }},
	}
	for _, tt := range tests {
		cfg := DefaultConfig()
		tt.mutate(&cfg)
		if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("%s: expected ErrInvalidConfig, got %v", tt.name, err)
		}
	}
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil || cfg.Room.Width != 5 {
		t.Fatalf("empty path should give defaults, got %v / %+v", err, cfg.Room)
	}

	path := filepath.Join(t.TempDir(), "room.yaml")
	if err := os.WriteFile(path, []byte("room:\n  width: 7\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err = LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Room.Width != 7 {
		t.Errorf("expected width 7, got %v", cfg.Room.Width)
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := ParseConfig([]byte("room: [")); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("ROOM_TEST_DUR", "250ms")
	t.Setenv("ROOM_TEST_INT", "nope")
	t.Setenv("ROOM_TEST_LIST", " a:9092 , ,b:9092")

	if got := getEnvDuration("ROOM_TEST_DUR", time.Second); got != 250*time.Millisecond {
		t.Errorf("duration: got %v", got)
	}
	if got := getEnvInt("ROOM_TEST_INT", 7); got != 7 {
		t.Errorf("bad int should fall back, got %d", got)
	}
	list := getEnvList("ROOM_TEST_LIST", nil)
	if len(list) != 2 || list[0] != "a:9092" || list[1] != "b:9092" {
		t.Errorf("list: got %v", list)
	}
	if got := getEnv("ROOM_TEST_UNSET", "x"); got != "x" {
		t.Errorf("unset: got %q", got)
	}
}
