package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/teranos/kcore-analytics/errors"
)

const envPrefix = "KCORE"

// Load reads configuration from (in ascending precedence) code defaults,
// a project-local kcore.toml/kcore.yaml found by walking up from the
// working directory, and KCORE_-prefixed environment variables.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path := findProjectConfig(); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	return &cfg, nil
}

// setDefaults matches SPEC_FULL.md §6.1's configuration schema.
func setDefaults(v *viper.Viper) {
	v.SetDefault("archive.root", "./archive")

	v.SetDefault("server.port", 1137)
	v.SetDefault("server.slow_query_ms", 60000)

	v.SetDefault("credentials.file", "temp_tokens.json")
	v.SetDefault("credentials.dir", ".")

	v.SetDefault("upstream.base_url", "https://bsky.social")
	v.SetDefault("upstream.lang", "en")

	v.SetDefault("dispatcher.workers", 0) // 0 resolves to runtime.NumCPU() at wiring time
	v.SetDefault("dispatcher.blackbox_ms", 900000)
	v.SetDefault("dispatcher.radius", 2)

	v.SetDefault("topictracker.evenness", 1.0)

	v.SetDefault("audit.sqlite_path", "")
	v.SetDefault("audit.log_path", "logs/query_events.log")
}

// findProjectConfig walks up from the working directory looking for
// kcore.toml or kcore.yaml.
func findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	candidates := []string{"kcore.toml", "kcore.yaml"}
	for {
		for _, name := range candidates {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
