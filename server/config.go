package main

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned when a config cannot describe a playable room.
var ErrInvalidConfig = errors.New("invalid config")

// RoomSettings describes the physical room and its zone grid.
type RoomSettings struct {
	Width        float64 `yaml:"width"`
	Height       float64 `yaml:"height"`
	Cols         int     `yaml:"cols"`
	Rows         int     `yaml:"rows"`
	PlayerMargin float64 `yaml:"playerMargin"`
}

// SpawnSettings tunes the zone-balanced spawner.
type SpawnSettings struct {
	PerZone         int           `yaml:"perZone"`
	MaxSimultaneous int           `yaml:"maxSimultaneous"`
	MinActive       int           `yaml:"minActive"`
	Interval        time.Duration `yaml:"interval"`
	ZoneMargin      float64       `yaml:"zoneMargin"`
	MinDistance     float64       `yaml:"minDistance"`
	MaxAttempts     int           `yaml:"maxAttempts"`
	ReplenishDelay  time.Duration `yaml:"replenishDelay"`
}

// ProximitySettings holds the visibility hysteresis band.
type ProximitySettings struct {
	DiscoveryRange float64       `yaml:"discoveryRange"`
	HideRange      float64       `yaml:"hideRange"`
	Interval       time.Duration `yaml:"interval"`
}

// CaptureSettings holds the streak scoring rules.
type CaptureSettings struct {
	StreakWindow  time.Duration `yaml:"streakWindow"`
	StreakStep    float64       `yaml:"streakStep"`
	MaxMultiplier float64       `yaml:"maxMultiplier"`
}

// Config is the full game configuration, loadable from YAML.
type Config struct {
	Room      RoomSettings      `yaml:"room"`
	Spawn     SpawnSettings     `yaml:"spawn"`
	Proximity ProximitySettings `yaml:"proximity"`
	Capture   CaptureSettings   `yaml:"capture"`
	Rarities  []RarityDef       `yaml:"rarities"`

	StatsInterval      time.Duration `yaml:"statsInterval"`
	ScoreboardInterval time.Duration `yaml:"scoreboardInterval"`
	MaxPlayers         int           `yaml:"maxPlayers"`
}

// DefaultConfig returns the 5x5 m living-room setup.
func DefaultConfig() Config {
	return Config{
		Room: RoomSettings{Width: 5, Height: 5, Cols: 2, Rows: 2},
		Spawn: SpawnSettings{
			PerZone:         1,
			MaxSimultaneous: 6,
			MinActive:       3,
			Interval:        6 * time.Second,
			ZoneMargin:      0.3,
			MinDistance:     1.8,
			MaxAttempts:     5,
			ReplenishDelay:  2 * time.Second,
		},
		Proximity: ProximitySettings{
			DiscoveryRange: 3.0,
			HideRange:      4.0,
			Interval:       1500 * time.Millisecond,
		},
		Capture: CaptureSettings{
			StreakWindow:  5 * time.Second,
			StreakStep:    0.2,
			MaxMultiplier: 2.0,
		},
		Rarities:           DefaultRarities(),
		StatsInterval:      15 * time.Second,
		ScoreboardInterval: 2 * time.Second,
		MaxPlayers:         50,
	}
}

// LoadConfig reads a YAML file over the defaults. An empty path returns the
// defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, cfg.Validate()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML over the defaults and validates the result.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("invalid YAML: %w", err)
	}
	if len(cfg.Rarities) == 0 {
		cfg.Rarities = DefaultRarities()
	}
	return cfg, cfg.Validate()
}

// Validate clamps tunables into safe bounds in place and rejects configs
// that cannot be clamped into something playable.
func (c *Config) Validate() error {
	if !(c.Room.Width > 0) || !(c.Room.Height > 0) {
		return fmt.Errorf("%w: room must have positive size, got %vx%v", ErrInvalidConfig, c.Room.Width, c.Room.Height)
	}
	c.Room.Width = clampFloat(c.Room.Width, 1, 100)
	c.Room.Height = clampFloat(c.Room.Height, 1, 100)
	c.Room.Cols = clampInt(c.Room.Cols, 1, 16)
	c.Room.Rows = clampInt(c.Room.Rows, 1, 16)
	c.Room.PlayerMargin = clampFloat(c.Room.PlayerMargin, 0, math.Min(c.Room.Width, c.Room.Height)/2)

	c.Spawn.PerZone = clampInt(c.Spawn.PerZone, 1, 16)
	c.Spawn.MaxSimultaneous = clampInt(c.Spawn.MaxSimultaneous, 1, 256)
	c.Spawn.MinActive = clampInt(c.Spawn.MinActive, 0, c.Spawn.MaxSimultaneous)
	c.Spawn.Interval = clampDuration(c.Spawn.Interval, 100*time.Millisecond, time.Hour)
	c.Spawn.MinDistance = clampFloat(c.Spawn.MinDistance, 0, math.Max(c.Room.Width, c.Room.Height))
	c.Spawn.MaxAttempts = clampInt(c.Spawn.MaxAttempts, 1, 1000)
	c.Spawn.ReplenishDelay = clampDuration(c.Spawn.ReplenishDelay, 0, time.Minute)
	zoneW := c.Room.Width / float64(c.Room.Cols)
	zoneH := c.Room.Height / float64(c.Room.Rows)
	c.Spawn.ZoneMargin = clampFloat(c.Spawn.ZoneMargin, 0, math.Min(zoneW, zoneH)/2)

	c.Proximity.DiscoveryRange = clampFloat(c.Proximity.DiscoveryRange, 0.1, 100)
	c.Proximity.HideRange = clampFloat(c.Proximity.HideRange, 0.1, 100)
	if c.Proximity.HideRange <= c.Proximity.DiscoveryRange {
		return fmt.Errorf("%w: hide range %.2f must exceed discovery range %.2f",
			ErrInvalidConfig, c.Proximity.HideRange, c.Proximity.DiscoveryRange)
	}
	c.Proximity.Interval = clampDuration(c.Proximity.Interval, 50*time.Millisecond, time.Minute)

	c.Capture.StreakWindow = clampDuration(c.Capture.StreakWindow, 0, time.Hour)
	c.Capture.StreakStep = clampFloat(c.Capture.StreakStep, 0, 10)
	c.Capture.MaxMultiplier = clampFloat(c.Capture.MaxMultiplier, 1, 100)

	c.StatsInterval = clampDuration(c.StatsInterval, time.Second, time.Hour)
	c.ScoreboardInterval = clampDuration(c.ScoreboardInterval, 100*time.Millisecond, time.Hour)
	c.MaxPlayers = clampInt(c.MaxPlayers, 1, 1000)

	if _, err := NewRarityTable(c.Rarities); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

func clampInt(v, minV, maxV int) int {
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}

func clampFloat(v, minV, maxV float64) float64 {
	if math.IsNaN(v) {
		return minV
	}
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}

func clampDuration(v, minV, maxV time.Duration) time.Duration {
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
