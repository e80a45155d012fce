package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// LookupFunc resolves an environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment. Missing files are skipped and real environment variables win.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load builds the configuration from defaults, an optional YAML file and the
// process environment, then validates it. An empty configPath skips the file.
func Load(configPath string) (*Config, error) {
	return load(configPath, os.LookupEnv)
}

func load(configPath string, lookup LookupFunc) (*Config, error) {
	cfg := Defaults()

	if configPath != "" {
		if err := loadConfigFile(cfg, configPath, lookup); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg, lookup); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func loadConfigFile(cfg *Config, configPath string, lookup LookupFunc) error {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}

	interpolated := interpolateEnv(string(data), lookup)
	if err := yaml.Unmarshal([]byte(interpolated), cfg); err != nil {
		return fmt.Errorf("failed to parse %s: %w", absPath, err)
	}
	return nil
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Undefined variables are left as-is (not expanded).
func interpolateEnv(input string, lookup LookupFunc) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := lookup(varName); exists {
			return value
		}
		// If not found, leave the placeholder (will fail validation if required)
		return match
	})
}

// applyEnv overlays the well-known environment variables on cfg.
func applyEnv(cfg *Config, lookup LookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	str("GITHUB_TOKEN", &cfg.GitHub.Token)
	str("GITHUB_OWNER", &cfg.GitHub.Owner)
	str("GITHUB_REPO", &cfg.GitHub.Repo)
	str("GITHUB_API_URL", &cfg.GitHub.BaseURL)
	str("WEBHOOK_SECRET", &cfg.Webhook.Secret)
	str("LOG_LEVEL", &cfg.Service.LogLevel)
	str("LOG_FORMAT", &cfg.Service.LogFormat)
	str("DEDUPE_BACKEND", &cfg.Dedupe.Backend)
	str("REDIS_URL", &cfg.Dedupe.RedisURL)
	str("STATE_PATH", &cfg.State.Path)
	str("API_KEY", &cfg.API.APIKey)

	if v, ok := lookup("PORT"); ok && strings.TrimSpace(v) != "" {
		port, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("PORT must be an integer (got %q)", v)
		}
		cfg.Server.Port = port
	}
	if v, ok := lookup("DEDUPE_RETENTION"); ok && strings.TrimSpace(v) != "" {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("DEDUPE_RETENTION: %w", err)
		}
		cfg.Dedupe.Retention = d
	}

	cfg.Service.LogLevel = strings.ToLower(cfg.Service.LogLevel)
	cfg.Dedupe.Backend = strings.ToLower(cfg.Dedupe.Backend)
	return nil
}

// Validate performs basic validation on the configuration. Missing required
// values are reported together so a single startup attempt shows all of them.
func Validate(cfg *Config) error {
	var missing []string
	if cfg.GitHub.Token == "" || hasPlaceholder(cfg.GitHub.Token) {
		missing = append(missing, "github.token (GITHUB_TOKEN)")
	}
	if cfg.GitHub.Owner == "" || hasPlaceholder(cfg.GitHub.Owner) {
		missing = append(missing, "github.owner (GITHUB_OWNER)")
	}
	if cfg.GitHub.Repo == "" || hasPlaceholder(cfg.GitHub.Repo) {
		missing = append(missing, "github.repo (GITHUB_REPO)")
	}
	if cfg.Webhook.Secret == "" || hasPlaceholder(cfg.Webhook.Secret) {
		missing = append(missing, "webhook.secret (WEBHOOK_SECRET)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required values: %s", strings.Join(missing, ", "))
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.Service.LogLevel] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel)
	}
	if cfg.Service.LogFormat != "json" && cfg.Service.LogFormat != "text" {
		return fmt.Errorf("service.log_format must be json or text (got %q)", cfg.Service.LogFormat)
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535 (got %d)", cfg.Server.Port)
	}
	if cfg.GitHub.Timeout <= 0 {
		return fmt.Errorf("github.timeout must be positive")
	}
	if cfg.GitHub.MaxRetries < 0 {
		return fmt.Errorf("github.max_retries must not be negative")
	}
	if !strings.HasPrefix(cfg.Webhook.Path, "/") {
		return fmt.Errorf("webhook.path must start with / (got %q)", cfg.Webhook.Path)
	}

	switch cfg.Dedupe.Backend {
	case BackendMemory:
		if cfg.Dedupe.MaxEntries <= 0 {
			return fmt.Errorf("dedupe.max_entries must be positive")
		}
	case BackendSQLite:
		if cfg.State.Path == "" {
			return fmt.Errorf("state.path is required for the sqlite dedupe backend")
		}
	case BackendRedis:
		if cfg.Dedupe.RedisURL == "" {
			return fmt.Errorf("dedupe.redis_url (REDIS_URL) is required for the redis dedupe backend")
		}
	default:
		return fmt.Errorf("dedupe.backend must be one of: memory, sqlite, redis (got %q)", cfg.Dedupe.Backend)
	}
	if cfg.Dedupe.Retention <= 0 {
		return fmt.Errorf("dedupe.retention must be positive")
	}
	if cfg.Dedupe.ClaimLease <= 0 {
		return fmt.Errorf("dedupe.claim_lease must be positive")
	}
	if cfg.API.EventsBuffer <= 0 {
		return fmt.Errorf("api.events_buffer must be positive")
	}
	return nil
}

func hasPlaceholder(v string) bool {
	return envVarPattern.MatchString(v)
}
