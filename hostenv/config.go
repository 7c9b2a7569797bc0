package hostenv

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// runtimeConfigSuffix replaces the executable extension to name the
// optional per-application configuration file: foo.exe reads
// foo.runtimeconfig.toml if it exists.
const runtimeConfigSuffix = ".runtimeconfig.toml"

type runtimeConfig struct {
	Runtime struct {
		Root      string `toml:"root"`
		Libraries string `toml:"libraries"`
		Verbose   bool   `toml:"verbose"`
	} `toml:"runtime"`
}

// loadRuntimeConfig reads the runtimeconfig file beside the executable.
// A missing or unreadable file yields zero settings; a present but
// malformed file is ignored the same way since configuration defaults
// must never fail a run.
func loadRuntimeConfig(exePath string) (Settings, bool) {
	path := runtimeConfigPath(exePath)
	if path == "" {
		return Settings{}, false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, false
	}

	var cfg runtimeConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Settings{}, false
	}
	return Settings{
		RuntimeRoot: cfg.Runtime.Root,
		Libraries:   cfg.Runtime.Libraries,
		Verbose:     cfg.Runtime.Verbose,
	}, true
}

func runtimeConfigPath(exePath string) string {
	ext := filepath.Ext(exePath)
	if ext == "" {
		return ""
	}
	return strings.TrimSuffix(exePath, ext) + runtimeConfigSuffix
}
