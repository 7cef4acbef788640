// Package config handles YAML configuration file loading for governor run.
// All values are optional and act as defaults for CLI flags; CLI flags
// always override config file values.
package config

import (
	"fmt"
	"time"
)

// Config represents a governor.yaml configuration file.
type Config struct {
	MaxActions             int             `yaml:"max_actions"`
	GovernanceEfficiencyMode string        `yaml:"governance_efficiency_mode"`
	WriteContentMaxBytes    int             `yaml:"write_content_max_bytes"`
	LogLevel                string          `yaml:"log_level"`
	Notifier                NotifierConfig  `yaml:"notifier"`
	Archive                 ArchiveConfig   `yaml:"archive"`
}

// NotifierConfig configures the optional best-effort post-run notifiers.
// At most one of Redis/Webhook need be set; both may be set to fire both.
type NotifierConfig struct {
	Redis   *RedisNotifierConfig   `yaml:"redis,omitempty"`
	Webhook *WebhookNotifierConfig `yaml:"webhook,omitempty"`
}

// RedisNotifierConfig configures the notify/redis publisher.
type RedisNotifierConfig struct {
	Addr    string   `yaml:"addr"`
	Channel string   `yaml:"channel"`
	Timeout Duration `yaml:"timeout,omitempty"`
	Retries int      `yaml:"retries,omitempty"`
}

// WebhookNotifierConfig configures the notify/webhook publisher.
type WebhookNotifierConfig struct {
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries int               `yaml:"retries,omitempty"`
}

// ArchiveConfig configures the optional post-run S3 artifact mirror.
type ArchiveConfig struct {
	S3 *S3ArchiveConfig `yaml:"s3,omitempty"`
}

// S3ArchiveConfig configures archive/s3archive.
type S3ArchiveConfig struct {
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
	Region string `yaml:"region"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}
