// Package config loads and validates simulation settings from YAML or JSON
// files and builds the process logger.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cxd309/intersection-sim/internal/challan"
	"github.com/cxd309/intersection-sim/internal/simclock"
	"github.com/cxd309/intersection-sim/internal/spawner"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the full set of tunables for a simulation run and its
// collaborators.
type Config struct {
	RunID          string  `yaml:"run_id" json:"run_id"`
	StartTime      string  `yaml:"start_time" json:"start_time"` // HH:MM simulated time of day
	Duration       float64 `yaml:"duration" json:"duration"`     // simulation seconds
	TickRate       float64 `yaml:"tick_rate" json:"tick_rate"`   // ticks per second per worker
	TimeScale      float64 `yaml:"time_scale" json:"time_scale"` // simulated seconds per simulation second
	Speed          float64 `yaml:"speed" json:"speed"`           // simulation seconds per wall second
	LaneCapacity   int     `yaml:"lane_capacity" json:"lane_capacity"`
	QueueCapacity  int     `yaml:"queue_capacity" json:"queue_capacity"`
	Seed           int64   `yaml:"seed" json:"seed"` // 0 seeds from the wall clock
	RepeatChallans bool    `yaml:"repeat_challans" json:"repeat_challans"`

	NATS   NATSConfig   `yaml:"nats" json:"nats"`
	Stream StreamConfig `yaml:"stream" json:"stream"`
	Log    LogConfig    `yaml:"log" json:"log"`
}

// NATSConfig names the server and subjects carrying challan traffic.
// An empty URL keeps notifications in-process.
type NATSConfig struct {
	URL            string `yaml:"url" json:"url"`
	Subject        string `yaml:"subject" json:"subject"`
	PaymentSubject string `yaml:"payment_subject" json:"payment_subject"`
	PortalSubject  string `yaml:"portal_subject" json:"portal_subject"`
}

// StreamConfig controls the snapshot feed for presentation clients.
type StreamConfig struct {
	Listen   string  `yaml:"listen" json:"listen"`     // empty disables the feed
	Interval float64 `yaml:"interval" json:"interval"` // seconds between pushes
}

// LogConfig selects the logger level and output format.
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"` // text or json
}

// Default returns the settings of the reference intersection.
func Default() Config {
	return Config{
		StartTime:     "08:00",
		Duration:      300,
		TickRate:      60,
		TimeScale:     simclock.DefaultScale,
		Speed:         1,
		LaneCapacity:  spawner.DefaultLaneCapacity,
		QueueCapacity: spawner.DefaultQueueCapacity,
		NATS: NATSConfig{
			Subject:        challan.DefaultSubject,
			PaymentSubject: challan.DefaultPaymentSubject,
			PortalSubject:  challan.DefaultPortalSubject,
		},
		Stream: StreamConfig{Interval: 0.1},
		Log:    LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path over the defaults. Files ending in .json are decoded as
// JSON; everything else as YAML.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	if err := Parse(data, strings.EqualFold(filepath.Ext(path), ".json"), &cfg); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes data into cfg, leaving fields absent from data untouched.
func Parse(data []byte, isJSON bool, cfg *Config) error {
	if isJSON {
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parsing json: %w", err)
		}
		return nil
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing yaml: %w", err)
	}
	return nil
}

// StartOfDay parses StartTime.
func (c Config) StartOfDay() (time.Duration, error) {
	return simclock.ParseTimeOfDay(c.StartTime)
}

// Validate reports the first setting that cannot drive a simulation.
func (c Config) Validate() error {
	if _, err := c.StartOfDay(); err != nil {
		return fmt.Errorf("%w: start_time: %v", ErrInvalidConfig, err)
	}
	checks := []struct {
		ok   bool
		name string
	}{
		{c.Duration > 0, "duration must be positive"},
		{c.TickRate > 0 && c.TickRate <= 1000, "tick_rate must be in (0, 1000]"},
		{c.TimeScale > 0, "time_scale must be positive"},
		{c.Speed > 0, "speed must be positive"},
		{c.LaneCapacity > 0, "lane_capacity must be positive"},
		{c.QueueCapacity > 0, "queue_capacity must be positive"},
		{c.Stream.Interval > 0, "stream.interval must be positive"},
		{c.Log.Format == "" || c.Log.Format == "text" || c.Log.Format == "json", "log.format must be text or json"},
	}
	for _, chk := range checks {
		if !chk.ok {
			return fmt.Errorf("%w: %s", ErrInvalidConfig, chk.name)
		}
	}
	return nil
}
