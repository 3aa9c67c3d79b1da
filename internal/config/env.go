package config

import (
	"github.com/caarlos0/env/v11"
)

// envOverrides are settings that may come from the environment. Non-empty
// values win over the YAML files.
type envOverrides struct {
	AppriseAPIURL  string `env:"APPRISE_API_URL"`
	APIPort        string `env:"API_PORT"`
	RedisAddr      string `env:"REDIS_ADDR"`
	RedisPassword  string `env:"REDIS_PASSWORD"`
	SuspendMinutes int    `env:"ALERTBATCH_SUSPEND_MINUTES"`
}

func applyEnv(cfg *Config) error {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return err
	}

	s := &cfg.Settings
	if o.AppriseAPIURL != "" {
		s.Notifier.APIURL = o.AppriseAPIURL
	}
	if o.APIPort != "" {
		s.API.Port = o.APIPort
	}
	if o.RedisAddr != "" {
		s.Recovery.Redis.Addr = o.RedisAddr
	}
	s.Recovery.Redis.Password = o.RedisPassword
	if o.SuspendMinutes != 0 {
		s.Schedule.SuspendMinutes = o.SuspendMinutes
	}
	return nil
}
