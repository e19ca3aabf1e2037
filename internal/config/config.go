package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Users struct {
		TTL string `yaml:"ttl"`
	} `yaml:"users"`
	Live struct {
		MaxParticipants    int    `yaml:"maxParticipants"`
		AdvanceDelay       string `yaml:"advanceDelay"`
		CancelGrace        string `yaml:"cancelGrace"`
		DefaultQuestionSec int    `yaml:"defaultQuestionSec"`
	} `yaml:"live"`
}

// Load reads YAML config from path. A missing file yields the zero config so
// the server can come up in demo mode on defaults.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
