package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config carries every tunable of the resilience engine. Both background
// components receive it at construction so tests can override thresholds
// deterministically.
type Config struct {
	// HTTP listen port for the operator API.
	Port string `yaml:"port"`
	// SQLite database path; ":memory:" for ephemeral storage.
	DBPath string `yaml:"db_path"`
	// Optional Redis address for event publication. Empty disables Redis and
	// falls back to log-only publishing.
	RedisAddr string `yaml:"redis_addr"`

	// Health monitor.
	HealthInterval  time.Duration `yaml:"health_interval"`
	ProbeTimeout    time.Duration `yaml:"probe_timeout"`
	SlowLatency     time.Duration `yaml:"slow_latency"`
	RollingWindow   time.Duration `yaml:"rolling_window"`
	RiskDecayStep   float64       `yaml:"risk_decay_step"`
	RiskSlowStep    float64       `yaml:"risk_slow_step"`
	RiskTimeoutStep float64       `yaml:"risk_timeout_step"`
	RiskFailureStep float64       `yaml:"risk_failure_step"`
	FailoverRisk    float64       `yaml:"failover_risk_threshold"`
	FailoverSuccess float64       `yaml:"failover_success_threshold"`
	DegradedRisk    float64       `yaml:"degraded_risk_threshold"`
	DegradedSuccess float64       `yaml:"degraded_success_threshold"`

	// Failover sweeper.
	SweepInterval time.Duration `yaml:"sweep_interval"`
	StuckTimeout  time.Duration `yaml:"stuck_timeout"`
	SweepBatch    int           `yaml:"sweep_batch"`
}

// Default returns the production defaults.
func Default() Config {
	return Config{
		Port:            "8080",
		DBPath:          "bankrouter.db",
		HealthInterval:  30 * time.Second,
		ProbeTimeout:    5 * time.Second,
		SlowLatency:     2 * time.Second,
		RollingWindow:   15 * time.Minute,
		RiskDecayStep:   0.01,
		RiskSlowStep:    0.05,
		RiskTimeoutStep: 0.05,
		RiskFailureStep: 0.10,
		FailoverRisk:    0.8,
		FailoverSuccess: 0.75,
		DegradedRisk:    0.5,
		DegradedSuccess: 0.95,
		SweepInterval:   60 * time.Second,
		StuckTimeout:    30 * time.Minute,
		SweepBatch:      50,
	}
}

// Load builds a Config from defaults, an optional YAML file, and environment
// overrides, then validates it.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		c.Port = v
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.RedisAddr = v
	}
	envDuration("HEALTH_INTERVAL", &c.HealthInterval)
	envDuration("PROBE_TIMEOUT", &c.ProbeTimeout)
	envDuration("ROLLING_WINDOW", &c.RollingWindow)
	envDuration("SWEEP_INTERVAL", &c.SweepInterval)
	envDuration("STUCK_TIMEOUT", &c.StuckTimeout)
	envFloat("FAILOVER_RISK_THRESHOLD", &c.FailoverRisk)
	envFloat("FAILOVER_SUCCESS_THRESHOLD", &c.FailoverSuccess)
	envFloat("DEGRADED_RISK_THRESHOLD", &c.DegradedRisk)
	envFloat("DEGRADED_SUCCESS_THRESHOLD", &c.DegradedSuccess)
	envInt("SWEEP_BATCH", &c.SweepBatch)
}

func envDuration(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			*dst = d
		}
	}
}

func envFloat(key string, dst *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*dst = n
		}
	}
}

// Validate checks ranges and relative ordering of the thresholds.
func (c *Config) Validate() error {
	if c.ProbeTimeout <= 0 {
		return fmt.Errorf("probe_timeout must be positive")
	}
	if c.RollingWindow <= 0 {
		return fmt.Errorf("rolling_window must be positive")
	}
	if c.StuckTimeout <= 0 {
		return fmt.Errorf("stuck_timeout must be positive")
	}
	if c.SweepBatch <= 0 {
		return fmt.Errorf("sweep_batch must be positive")
	}
	for name, v := range map[string]float64{
		"failover_risk_threshold":    c.FailoverRisk,
		"failover_success_threshold": c.FailoverSuccess,
		"degraded_risk_threshold":    c.DegradedRisk,
		"degraded_success_threshold": c.DegradedSuccess,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be in [0,1], got %v", name, v)
		}
	}
	if c.DegradedRisk > c.FailoverRisk {
		return fmt.Errorf("degraded_risk_threshold (%v) must not exceed failover_risk_threshold (%v)",
			c.DegradedRisk, c.FailoverRisk)
	}
	if c.FailoverSuccess > c.DegradedSuccess {
		return fmt.Errorf("failover_success_threshold (%v) must not exceed degraded_success_threshold (%v)",
			c.FailoverSuccess, c.DegradedSuccess)
	}
	for name, v := range map[string]float64{
		"risk_decay_step":   c.RiskDecayStep,
		"risk_slow_step":    c.RiskSlowStep,
		"risk_timeout_step": c.RiskTimeoutStep,
		"risk_failure_step": c.RiskFailureStep,
	} {
		if v <= 0 || v > 1 {
			return fmt.Errorf("%s must be in (0,1], got %v", name, v)
		}
	}
	return nil
}
