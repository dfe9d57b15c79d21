// Package config provides configuration management for sandboxgraph using
// Viper for flexible loading from files, environment variables (prefixed
// SANDBOXGRAPH_), and command-line flags, plus godotenv for local .env
// files. Adapted from templar/internal/config's Viper-backed Load/default
// pattern.
package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the root configuration record for a sandboxgraph server or
// local dev run.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Storage     StorageConfig     `yaml:"storage"`
	Development DevelopmentConfig `yaml:"development"`
	Sandbox     SandboxConfig     `yaml:"sandbox"`
}

// ServerConfig configures the host HTTP/WebSocket server.
type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// StorageConfig selects and configures the graph-blob storage backend.
type StorageConfig struct {
	Backend       string `yaml:"backend"` // "memory", "postgres", "minio"
	PostgresURL   string `yaml:"postgres_url"`
	MinioEndpoint string `yaml:"minio_endpoint"`
	MinioBucket   string `yaml:"minio_bucket"`
	MinioAccess   string `yaml:"minio_access"`
	MinioSecret   string `yaml:"minio_secret"`
	MinioSecure   bool   `yaml:"minio_secure"`
	MemoryEntries int    `yaml:"memory_entries"`
}

// DevelopmentConfig toggles dev-mode-only behavior.
type DevelopmentConfig struct {
	HotReload bool   `yaml:"hot_reload"`
	WatchRoot string `yaml:"watch_root"`
}

// SandboxConfig carries the default identity/template used when none is
// supplied on a compile request (e.g. for the local `watch` CLI mode).
type SandboxConfig struct {
	ID       string `yaml:"id"`
	Entry    string `yaml:"entry"`
	Template string `yaml:"template"`
}

// Load reads .env (if present), then reads Viper's bound configuration
// into a Config, applying sandboxgraph's defaults for unset fields.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"*"}
	}

	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "memory"
	}
	if cfg.Storage.MemoryEntries == 0 {
		cfg.Storage.MemoryEntries = 256
	}

	if cfg.Sandbox.Template == "" {
		cfg.Sandbox.Template = "vanilla"
	}

	return &cfg, nil
}

// BindDefaults registers sandboxgraph's defaults with viper and sets the
// SANDBOXGRAPH_ environment variable prefix, mirroring
// templar/internal/config's environment-override wiring.
func BindDefaults() {
	viper.SetEnvPrefix("SANDBOXGRAPH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("storage.backend", "memory")
	viper.SetDefault("storage.memory_entries", 256)
	viper.SetDefault("sandbox.template", "vanilla")
}
