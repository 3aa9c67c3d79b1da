package config

import (
	"os"
	"time"

	"github.com/netspec/alertbatch/internal/types"
)

// Config represents the complete alertbatch configuration
type Config struct {
	Settings Settings
	Policies PolicyConfig
}

// Settings is the content of alertbatch.yaml
type Settings struct {
	Schedule ScheduleConfig `yaml:"schedule"`
	Notifier NotifierConfig `yaml:"notifier"`
	Recovery RecoveryConfig `yaml:"recovery"`
	API      APIConfig      `yaml:"api"`
}

// ScheduleConfig controls the flush cadence
type ScheduleConfig struct {
	SuspendMinutes int           `yaml:"suspend_minutes"`
	InitialDelay   time.Duration `yaml:"initial_delay"`
	SendTimeout    time.Duration `yaml:"send_timeout"`
}

// Interval returns the delay between flush cycles.
func (s ScheduleConfig) Interval() time.Duration {
	return time.Duration(s.SuspendMinutes) * time.Minute
}

// NotifierConfig defines how messages reach Apprise
type NotifierConfig struct {
	APIURL        string        `yaml:"api_url"`
	MailURLEnv    string        `yaml:"mail_url_env"`
	Format        string        `yaml:"format"` // "text", "html" or "markdown"
	Timeout       time.Duration `yaml:"timeout"`
	RatePerMinute float64       `yaml:"rate_per_minute"`
	Burst         int           `yaml:"burst"`
}

// MailURL returns the Apprise mail URL resolved from the environment.
func (n NotifierConfig) MailURL() string {
	if n.MailURLEnv == "" {
		return ""
	}
	return os.Getenv(n.MailURLEnv)
}

// RecoveryConfig selects where recovery markers live
type RecoveryConfig struct {
	Backend string        `yaml:"backend"` // "memory" or "redis"
	Window  time.Duration `yaml:"window"`
	Redis   RedisConfig   `yaml:"redis,omitempty"`
}

// RedisConfig defines the shared recovery store
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix,omitempty"`
	Password  string `yaml:"-"`
}

// APIConfig defines the HTTP API listener
type APIConfig struct {
	Port string `yaml:"port"`
}

// PolicyConfig is the content of policies.yaml
type PolicyConfig struct {
	Routes  []Route          `yaml:"routes"`
	Default *types.Receivers `yaml:"default"`
}

// Route sends alerts matching its types or severities to its receivers
type Route struct {
	Name       string   `yaml:"name"`
	Types      []string `yaml:"types,omitempty"`
	Severities []string `yaml:"severities,omitempty"`
	To         []string `yaml:"to"`
	CC         []string `yaml:"cc,omitempty"`
}

// Receivers returns the route's recipient lists.
func (r Route) Receivers() types.Receivers {
	return types.Receivers{To: r.To, CC: r.CC}
}
