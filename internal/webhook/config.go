package webhook

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mattjoyce/issuegate/internal/config"
)

// FromGlobalConfig converts the service configuration to webhook.Config.
// The secret is not part of the result; it goes to NewDispatcher, which
// verifies signatures. FromGlobalConfig still refuses a config without one.
func FromGlobalConfig(cfg *config.Config) (Config, error) {
	if cfg == nil {
		return Config{}, fmt.Errorf("config is nil")
	}
	if cfg.Webhook.Secret == "" {
		return Config{}, fmt.Errorf("webhook secret is not configured")
	}

	maxBodySize, err := parseMaxBodySize(cfg.Webhook.MaxBodySize)
	if err != nil {
		return Config{}, fmt.Errorf("invalid webhook max_body_size %q: %w", cfg.Webhook.MaxBodySize, err)
	}

	path := cfg.Webhook.Path
	if path == "" {
		path = DefaultPath
	}

	return Config{
		Path:        path,
		MaxBodySize: maxBodySize,
	}, nil
}

// parseMaxBodySize parses size strings like "1MB", "512KB", "2048576" to bytes.
// Returns DefaultMaxBodySize if empty.
func parseMaxBodySize(size string) (int64, error) {
	if size == "" {
		return DefaultMaxBodySize, nil
	}

	upper := strings.ToUpper(strings.TrimSpace(size))
	multiplier := int64(1)
	for _, unit := range []struct {
		suffix string
		mult   int64
	}{
		{"KB", 1 << 10},
		{"MB", 1 << 20},
		{"GB", 1 << 30},
	} {
		if strings.HasSuffix(upper, unit.suffix) {
			multiplier = unit.mult
			upper = strings.TrimSuffix(upper, unit.suffix)
			break
		}
	}

	value, err := strconv.ParseInt(strings.TrimSpace(upper), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size value: %w", err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("size must be positive")
	}
	if value > (1<<63-1)/multiplier {
		return 0, fmt.Errorf("size too large")
	}

	return value * multiplier, nil
}
