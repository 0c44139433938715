// Package config loads kcore-analytics's configuration via viper, binding
// the KCORE_ env prefix over sensible code-level defaults, per
// SPEC_FULL.md §6.1.
package config

// Config is the full configuration schema.
type Config struct {
	Archive      ArchiveConfig      `mapstructure:"archive"`
	Server       ServerConfig       `mapstructure:"server"`
	Credentials  CredentialsConfig  `mapstructure:"credentials"`
	Upstream     UpstreamConfig     `mapstructure:"upstream"`
	Dispatcher   DispatcherConfig   `mapstructure:"dispatcher"`
	TopicTracker TopicTrackerConfig `mapstructure:"topictracker"`
	Audit        AuditConfig        `mapstructure:"audit"`
}

// ArchiveConfig configures the on-disk segment store.
type ArchiveConfig struct {
	Root string `mapstructure:"root"`
}

// ServerConfig configures the HTTP front door.
type ServerConfig struct {
	Port        int `mapstructure:"port"`
	SlowQueryMS int `mapstructure:"slow_query_ms"`
}

// CredentialsConfig locates the credential pool's token file.
type CredentialsConfig struct {
	File string `mapstructure:"file"`
	Dir  string `mapstructure:"dir"`
}

// UpstreamConfig configures the AT Protocol binding.
type UpstreamConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Lang    string `mapstructure:"lang"`
}

// DispatcherConfig configures the coalescing worker pool.
type DispatcherConfig struct {
	Workers     int `mapstructure:"workers"`
	BlackboxMS  int `mapstructure:"blackbox_ms"`
	Radius      int `mapstructure:"radius"`
}

// TopicTrackerConfig configures the long-running fair collector.
type TopicTrackerConfig struct {
	Evenness float64 `mapstructure:"evenness"`
}

// AuditConfig configures the slow/failed query audit trail.
type AuditConfig struct {
	SQLitePath string `mapstructure:"sqlite_path"`
	LogPath    string `mapstructure:"log_path"`
}
