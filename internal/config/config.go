// Package config loads Televent's YAML configuration, grounded on the
// teacher's config/config.go: os.ExpandEnv pre-pass for ${VAR}
// interpolation, hard defaults applied before parse, and a flat
// gopkg.in/yaml.v3 struct. Unlike the teacher's copy (whose main.go
// referenced cfg.SMTP/cfg.Notifications while config.go only defined
// cfg.Notification), every field referenced elsewhere in this module is
// defined here under one name.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	SMTP         SMTPConfig         `yaml:"smtp"`
	ChatGateway  ChatGatewayConfig  `yaml:"chat_gateway"`
	Auth         AuthConfig         `yaml:"auth"`
	Outbox       OutboxConfig       `yaml:"outbox"`
	Logging      LoggingConfig      `yaml:"logging"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type DatabaseConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"max_conns"`
	MinConns int32  `yaml:"min_conns"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

type ChatGatewayConfig struct {
	BaseURL string `yaml:"base_url"`
}

type AuthConfig struct {
	ServiceURL string `yaml:"service_url"`
}

type OutboxConfig struct {
	PollIntervalSeconds       int `yaml:"poll_interval_seconds"`
	StatusLogIntervalSeconds  int `yaml:"status_log_interval_seconds"`
	BatchSize                 int `yaml:"batch_size"`
	MaxRetryCount             int `yaml:"max_retry_count"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

func defaults() Config {
	return Config{
		Server:   ServerConfig{Addr: ":8082"},
		Database: DatabaseConfig{MaxConns: 50, MinConns: 2},
		Outbox: OutboxConfig{
			PollIntervalSeconds:      10,
			StatusLogIntervalSeconds: 60,
			BatchSize:                20,
			MaxRetryCount:            5,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads and parses the YAML file at path, expanding ${VAR}
// references against the process environment before parsing, and
// applying hard defaults for anything the file leaves unset.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	expanded := os.ExpandEnv(string(raw))

	cfg := defaults()
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &cfg, nil
}
