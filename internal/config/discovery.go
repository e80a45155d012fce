package config

import (
	"os"
	"path/filepath"
)

// EnvConfigPath names the environment variable that points at a config file.
const EnvConfigPath = "ISSUEGATE_CONFIG"

// DiscoverConfigFile returns the first config file found in the standard
// locations, or "" when there is none. A config file is optional: the
// environment alone can configure the gateway.
//
// Search order:
//  1. $ISSUEGATE_CONFIG
//  2. ./issuegate.yaml
//  3. $XDG_CONFIG_HOME/issuegate/config.yaml
//  4. ~/.config/issuegate/config.yaml
//  5. /etc/issuegate/config.yaml
func DiscoverConfigFile() string {
	return discoverConfigFile(os.LookupEnv, os.UserHomeDir)
}

func discoverConfigFile(lookup LookupFunc, home func() (string, error)) string {
	if p, ok := lookup(EnvConfigPath); ok && p != "" {
		return p
	}

	candidates := []string{"issuegate.yaml"}
	if xdg, ok := lookup("XDG_CONFIG_HOME"); ok && xdg != "" {
		candidates = append(candidates, filepath.Join(xdg, "issuegate", "config.yaml"))
	}
	if h, err := home(); err == nil && h != "" {
		candidates = append(candidates, filepath.Join(h, ".config", "issuegate", "config.yaml"))
	}
	candidates = append(candidates, "/etc/issuegate/config.yaml")

	for _, c := range candidates {
		if fileExists(c) {
			return c
		}
	}
	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
