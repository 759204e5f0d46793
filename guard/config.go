package guard

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ValidationLevel selects how much of the pipeline runs per click.
type ValidationLevel string

const (
	// LevelBasic runs no validation; the engine's native event
	// cancellation is the only protection.
	LevelBasic ValidationLevel = "BASIC"
	// LevelPacket adds timing, rate, bounds and state checks. Recommended
	// default.
	LevelPacket ValidationLevel = "PACKET"
	// LevelAdvanced adds metadata-hash verification plus shift-click loop
	// and transaction-state checks.
	LevelAdvanced ValidationLevel = "ADVANCED"
)

// Config carries every tunable the guard consults. The numeric defaults
// (50ms delay floor, 20 clicks/sec, 100ms shift-click window) are policy
// choices, not derived constants; treat them as starting points.
type Config struct {
	ValidationLevel ValidationLevel `yaml:"validation_level"`

	MinClickDelayMs    int `yaml:"min_click_delay_ms"`
	MaxClicksPerSecond int `yaml:"max_clicks_per_second"`

	SessionTimeoutMs          int  `yaml:"session_timeout_ms"`
	InactivityCheckIntervalMs int  `yaml:"inactivity_check_interval_ms"`
	DetectStaleSession        bool `yaml:"detect_stale_session"`
	ForceCloseOnTimeout       bool `yaml:"force_close_on_timeout"`

	AutoRollbackOnViolation bool `yaml:"auto_rollback_on_violation"`
	LogViolations           bool `yaml:"log_violations"`
	KickOnViolation         bool `yaml:"kick_on_violation"`
	ViolationKickThreshold  int  `yaml:"violation_kick_threshold"`

	// Shift-click loop window. Two server ticks (~100ms) distinguishes a
	// legitimate batch of distinct items from the same stack re-submitted
	// before state caught up.
	ShiftClickWindowMs    int `yaml:"shift_click_window_ms"`
	MaxPendingShiftClicks int `yaml:"max_pending_shift_clicks"`
}

// Normal is the recommended preset: PACKET-level checks, rollback on, kick
// off.
func Normal() Config {
	c := Config{
		ValidationLevel:         LevelPacket,
		DetectStaleSession:      true,
		ForceCloseOnTimeout:     true,
		AutoRollbackOnViolation: true,
		LogViolations:           true,
	}
	c.applyDefaults()
	return c
}

// Lenient keeps PACKET checks but with looser timing and longer sessions.
func Lenient() Config {
	c := Normal()
	c.MinClickDelayMs = 25
	c.MaxClicksPerSecond = 30
	c.SessionTimeoutMs = 600_000
	return c
}

// Strict enables the full ADVANCED pipeline and kicks repeat offenders.
func Strict() Config {
	c := Normal()
	c.ValidationLevel = LevelAdvanced
	c.MinClickDelayMs = 75
	c.MaxClicksPerSecond = 12
	c.SessionTimeoutMs = 120_000
	c.KickOnViolation = true
	c.ViolationKickThreshold = 3
	return c
}

func (c *Config) applyDefaults() {
	if c.ValidationLevel == "" {
		c.ValidationLevel = LevelPacket
	}
	if c.MinClickDelayMs <= 0 {
		c.MinClickDelayMs = 50
	}
	if c.MaxClicksPerSecond <= 0 {
		c.MaxClicksPerSecond = 20
	}
	if c.SessionTimeoutMs <= 0 {
		c.SessionTimeoutMs = 300_000
	}
	if c.InactivityCheckIntervalMs <= 0 {
		c.InactivityCheckIntervalMs = 10_000
	}
	if c.ViolationKickThreshold <= 0 {
		c.ViolationKickThreshold = 5
	}
	if c.ShiftClickWindowMs <= 0 {
		c.ShiftClickWindowMs = 100
	}
	if c.MaxPendingShiftClicks <= 0 {
		c.MaxPendingShiftClicks = 10
	}
}

// LoadConfig reads a YAML guard config, filling unset fields with defaults.
func LoadConfig(path string) (Config, error) {
	var c Config
	raw, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return c, fmt.Errorf("guard config %s: %w", path, err)
	}
	if c.ValidationLevel != "" && c.ValidationLevel != LevelBasic &&
		c.ValidationLevel != LevelPacket && c.ValidationLevel != LevelAdvanced {
		return c, fmt.Errorf("guard config %s: unknown validation_level %q", path, c.ValidationLevel)
	}
	c.applyDefaults()
	return c, nil
}

func (c Config) MinClickDelay() time.Duration { return time.Duration(c.MinClickDelayMs) * time.Millisecond }
func (c Config) SessionTimeout() time.Duration {
	return time.Duration(c.SessionTimeoutMs) * time.Millisecond
}
func (c Config) InactivityCheckInterval() time.Duration {
	return time.Duration(c.InactivityCheckIntervalMs) * time.Millisecond
}
func (c Config) ShiftClickWindow() time.Duration {
	return time.Duration(c.ShiftClickWindowMs) * time.Millisecond
}
