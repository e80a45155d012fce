package config

import (
	"net"
	"strconv"
	"time"
)

// Config represents the complete issuegate configuration.
type Config struct {
	Service ServiceConfig `yaml:"service"`
	Server  ServerConfig  `yaml:"server"`
	GitHub  GitHubConfig  `yaml:"github"`
	Webhook WebhookConfig `yaml:"webhook"`
	Dedupe  DedupeConfig  `yaml:"dedupe"`
	State   StateConfig   `yaml:"state"`
	API     APIConfig     `yaml:"api,omitempty"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name      string `yaml:"name"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// ServerConfig defines the HTTP listener.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// GitHubConfig identifies the single upstream repository and how to reach it.
type GitHubConfig struct {
	Token      string        `yaml:"token"`
	Owner      string        `yaml:"owner"`
	Repo       string        `yaml:"repo"`
	BaseURL    string        `yaml:"base_url,omitempty"` // GitHub Enterprise API root, empty for api.github.com
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// WebhookConfig defines the inbound webhook endpoint.
type WebhookConfig struct {
	Path        string `yaml:"path"`
	Secret      string `yaml:"secret"`
	MaxBodySize string `yaml:"max_body_size"` // e.g. "1MB", "2048576"
}

// DedupeConfig selects and tunes the delivery deduplication store.
type DedupeConfig struct {
	Backend       string        `yaml:"backend"` // memory, sqlite, redis
	Retention     time.Duration `yaml:"retention"`
	ClaimLease    time.Duration `yaml:"claim_lease"`
	MaxEntries    int           `yaml:"max_entries"`
	PruneInterval time.Duration `yaml:"prune_interval"`
	RedisURL      string        `yaml:"redis_url,omitempty"`
	RedisPrefix   string        `yaml:"redis_prefix,omitempty"`
}

// StateConfig defines local state storage settings.
type StateConfig struct {
	Path string `yaml:"path"`
}

// APIConfig defines HTTP API settings.
type APIConfig struct {
	// APIKey protects passthrough and event routes when set.
	APIKey       string `yaml:"api_key,omitempty"`
	EventsBuffer int    `yaml:"events_buffer"`
}

// Dedupe backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:      "issuegate",
			LogLevel:  "info",
			LogFormat: "json",
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		GitHub: GitHubConfig{
			Timeout:    10 * time.Second,
			MaxRetries: 3,
		},
		Webhook: WebhookConfig{
			Path:        "/webhook",
			MaxBodySize: "1MB",
		},
		Dedupe: DedupeConfig{
			Backend:       BackendMemory,
			Retention:     24 * time.Hour,
			ClaimLease:    30 * time.Second,
			MaxEntries:    100000,
			PruneInterval: 10 * time.Minute,
			RedisPrefix:   "issuegate:delivery:",
		},
		State: StateConfig{
			Path: "./data/issuegate.db",
		},
		API: APIConfig{
			EventsBuffer: 256,
		},
	}
}
