package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// SettingsFile holds schedule, notifier, recovery and API settings.
	SettingsFile = "alertbatch.yaml"
	// PoliciesFile holds the recipient routing policy.
	PoliciesFile = "policies.yaml"
)

// Defaults applied before validation.
const (
	DefaultSuspendMinutes = 30
	DefaultInitialDelay   = time.Minute
	DefaultSendTimeout    = 30 * time.Second
	DefaultNotifyTimeout  = 10 * time.Second
	DefaultRatePerMinute  = 60
	DefaultBurst          = 10
	DefaultRecoveryWindow = 24 * time.Hour
	DefaultAPIPort        = "8088"
)

// ErrNoDefaultRoute is returned when policies.yaml has no usable default receivers.
var ErrNoDefaultRoute = errors.New("default receivers are required")

// LoadConfig loads configuration from a file inside the config directory
func LoadConfig(path string) (*Config, error) {
	return LoadConfigDir(filepath.Dir(path))
}

// LoadConfigDir loads all configuration files from a directory
func LoadConfigDir(dir string) (*Config, error) {
	cfg := &Config{}

	// Load alertbatch.yaml (optional)
	settingsPath := filepath.Join(dir, SettingsFile)
	if _, err := os.Stat(settingsPath); err == nil {
		if err := loadYAML(settingsPath, &cfg.Settings); err != nil {
			return nil, fmt.Errorf("loading %s: %w", SettingsFile, err)
		}
	}

	policies, err := LoadPolicies(filepath.Join(dir, PoliciesFile))
	if err != nil {
		return nil, err
	}
	cfg.Policies = *policies

	applyDefaults(&cfg.Settings)

	if err := applyEnv(cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadPolicies loads and validates policies.yaml on its own. Used on hot reload.
func LoadPolicies(path string) (*PolicyConfig, error) {
	policies := &PolicyConfig{}
	if err := loadYAML(path, policies); err != nil {
		return nil, fmt.Errorf("loading %s: %w", filepath.Base(path), err)
	}
	if err := ValidatePolicies(policies); err != nil {
		return nil, fmt.Errorf("policy validation failed: %w", err)
	}
	return policies, nil
}

// loadYAML loads a YAML file into a struct
func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, out)
}

func applyDefaults(s *Settings) {
	if s.Schedule.SuspendMinutes == 0 {
		s.Schedule.SuspendMinutes = DefaultSuspendMinutes
	}
	if s.Schedule.InitialDelay == 0 {
		s.Schedule.InitialDelay = DefaultInitialDelay
	}
	if s.Schedule.SendTimeout == 0 {
		s.Schedule.SendTimeout = DefaultSendTimeout
	}
	if s.Notifier.Format == "" {
		s.Notifier.Format = "text"
	}
	if s.Notifier.Timeout == 0 {
		s.Notifier.Timeout = DefaultNotifyTimeout
	}
	if s.Notifier.RatePerMinute == 0 {
		s.Notifier.RatePerMinute = DefaultRatePerMinute
	}
	if s.Notifier.Burst == 0 {
		s.Notifier.Burst = DefaultBurst
	}
	if s.Recovery.Backend == "" {
		s.Recovery.Backend = "memory"
	}
	if s.Recovery.Window == 0 {
		s.Recovery.Window = DefaultRecoveryWindow
	}
	if s.API.Port == "" {
		s.API.Port = DefaultAPIPort
	}
}

// ValidateConfig validates the configuration
func ValidateConfig(cfg *Config) error {
	s := cfg.Settings

	if s.Schedule.SuspendMinutes < 1 {
		return fmt.Errorf("schedule.suspend_minutes must be at least 1, got %d", s.Schedule.SuspendMinutes)
	}
	if s.Schedule.InitialDelay < time.Second {
		return fmt.Errorf("schedule.initial_delay must be at least 1s, got %s", s.Schedule.InitialDelay)
	}
	if s.Schedule.SendTimeout < 0 {
		return fmt.Errorf("schedule.send_timeout must not be negative")
	}

	switch s.Notifier.Format {
	case "text", "html", "markdown":
	default:
		return fmt.Errorf("notifier.format %q unknown: want text|html|markdown", s.Notifier.Format)
	}
	if s.Notifier.RatePerMinute < 0 || s.Notifier.Burst < 0 {
		return fmt.Errorf("notifier.rate_per_minute and notifier.burst must not be negative")
	}

	switch s.Recovery.Backend {
	case "memory":
	case "redis":
		if s.Recovery.Redis.Addr == "" {
			return fmt.Errorf("recovery.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("recovery.backend %q unknown: want memory|redis", s.Recovery.Backend)
	}
	if s.Recovery.Window <= 0 {
		return fmt.Errorf("recovery.window must be positive")
	}

	return ValidatePolicies(&cfg.Policies)
}

// ValidatePolicies validates routing policies
func ValidatePolicies(p *PolicyConfig) error {
	if p.Default == nil || len(p.Default.To) == 0 {
		return ErrNoDefaultRoute
	}

	names := make(map[string]struct{}, len(p.Routes))
	for i, route := range p.Routes {
		if route.Name == "" {
			return fmt.Errorf("route %d: name is required", i)
		}
		if _, dup := names[route.Name]; dup {
			return fmt.Errorf("route %s: duplicate name", route.Name)
		}
		names[route.Name] = struct{}{}

		if len(route.To) == 0 {
			return fmt.Errorf("route %s: at least one recipient in 'to' is required", route.Name)
		}
		if len(route.Types) == 0 && len(route.Severities) == 0 {
			return fmt.Errorf("route %s: must match on types or severities", route.Name)
		}
	}

	return nil
}
