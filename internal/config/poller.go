package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// PollerConfig is the executor-side configuration, read from poller.yaml
// on the robot host.
type PollerConfig struct {
	ServerURL string `yaml:"server_url"`
	APIKey    string `yaml:"api_key"`
	// Owner identifies this executor in request logs.
	Owner string `yaml:"owner"`

	IntervalSec    float64 `yaml:"interval_sec"`
	ClaimLimit     int     `yaml:"claim_limit"`
	StaleAfterSec  int     `yaml:"stale_after_sec"`
	ExecTimeoutSec int     `yaml:"exec_timeout_sec"`

	Actuator ActuatorConfig `yaml:"actuator"`
}

// ActuatorConfig selects the motor driver.
type ActuatorConfig struct {
	// Command is the motor control program; empty means dry-run.
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

// DefaultPollerConfig returns the config used when poller.yaml is absent.
func DefaultPollerConfig() PollerConfig {
	return PollerConfig{
		ServerURL:      "http://127.0.0.1:8787",
		IntervalSec:    2,
		ClaimLimit:     10,
		StaleAfterSec:  300,
		ExecTimeoutSec: 30,
	}
}

// LoadPollerConfig reads poller.yaml from path. A missing file yields the
// defaults; a malformed file is an error.
func LoadPollerConfig(path string) (PollerConfig, error) {
	cfg := DefaultPollerConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.ServerURL == "" {
		return cfg, fmt.Errorf("%s: server_url required", path)
	}
	return cfg, nil
}

// Interval returns the configured poll interval.
func (c PollerConfig) Interval() time.Duration {
	if c.IntervalSec <= 0 {
		return 2 * time.Second
	}
	return time.Duration(c.IntervalSec * float64(time.Second))
}

// StaleAfter returns the reclaim window for stale processing rows.
func (c PollerConfig) StaleAfter() time.Duration {
	if c.StaleAfterSec <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.StaleAfterSec) * time.Second
}

// ExecTimeout bounds a single actuator run.
func (c PollerConfig) ExecTimeout() time.Duration {
	if c.ExecTimeoutSec <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.ExecTimeoutSec) * time.Second
}
