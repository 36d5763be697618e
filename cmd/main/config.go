package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/CTAG07/stache/pkg/mustache"
	"github.com/natefinch/atomic"
)

// ServerConfig holds the configuration for the HTTP server and its storage.
type ServerConfig struct {
	ApiAddr         string   `json:"api_addr"`
	LogLevel        string   `json:"log_level"`
	DataDir         string   `json:"data_dir"`
	DatabasePath    string   `json:"database_path"`
	SnapshotDir     string   `json:"snapshot_dir"`
	BootSnapshot    string   `json:"boot_snapshot"`
	EnabledPragmas  []string `json:"enabled_pragmas"`
	MetricsEnabled  bool     `json:"metrics_enabled"`
	MaxRequestBytes int64    `json:"max_request_bytes"`
}

// Config is the top-level configuration struct that aggregates all other configs.
type Config struct {
	Server    *ServerConfig    `json:"server_config"`
	Templates *mustache.Config `json:"template_config"`
}

// DefaultServerConfig creates a server configuration with default values.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		ApiAddr:         ":7278",
		LogLevel:        "info",
		DataDir:         "./data",
		DatabasePath:    "./data/stache.db?_journal_mode=WAL&_busy_timeout=5000",
		SnapshotDir:     "./data/snapshots",
		BootSnapshot:    "",
		EnabledPragmas:  []string{"SUB-VIEWS", "IMPLICIT-ITERATOR", "MARKDOWN"},
		MetricsEnabled:  true,
		MaxRequestBytes: 1 << 20,
	}
}

// DefaultConfig returns the full default configuration.
func DefaultConfig() *Config {
	templates := mustache.DefaultConfig()
	templates.TemplatePaths = []string{"./data/templates"}
	return &Config{
		Server:    DefaultServerConfig(),
		Templates: templates,
	}
}

// LoadConfig reads the configuration from a JSON file at the given path.
// If the file doesn't exist, it creates one with default values.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	file, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			var data []byte
			data, err = json.MarshalIndent(config, "", "  ")
			if err != nil {
				return nil, fmt.Errorf("failed to marshal default config: %w", err)
			}
			if err = atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
				// The defaults are still usable.
				fmt.Fprintf(os.Stderr, "warning: failed to write default config file: %v\n", err)
			}
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err = json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if config.Server == nil {
		config.Server = DefaultServerConfig()
	}
	if config.Templates == nil {
		config.Templates = mustache.DefaultConfig()
	}
	return config, nil
}

// parseLogLevel maps a config log level to a slog level, defaulting to info.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ConfigManager handles thread-safe access to the configuration and keeps
// the file on disk in sync with it.
type ConfigManager struct {
	config     *Config
	mu         sync.RWMutex
	configPath string
	logger     *slog.Logger
	engine     *mustache.Mustache
}

// NewConfigManager loads the config and initializes the manager.
func NewConfigManager(path string) (*ConfigManager, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return &ConfigManager{
		config:     cfg,
		configPath: path,
		logger:     slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{})),
	}, nil
}

// SetEngine registers the coordinator that template path changes apply to.
func (cm *ConfigManager) SetEngine(m *mustache.Mustache) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.engine = m
}

// SetLogger sets the logger.
func (cm *ConfigManager) SetLogger(logger *slog.Logger) {
	cm.logger = logger
}

// Get returns a copy of the current configuration.
func (cm *ConfigManager) Get() Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return *cm.config
}

// Update validates and applies newConfig, then saves it to disk. Template
// paths added by the update are pushed onto the engine's search stack right
// away; every other change takes effect on restart.
func (cm *ConfigManager) Update(newConfig Config) error {
	if newConfig.Server == nil || newConfig.Templates == nil {
		return fmt.Errorf("server_config and template_config are required")
	}
	if newConfig.Templates.MaxDepth < 0 {
		return fmt.Errorf("max_depth must not be negative")
	}

	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.engine != nil {
		known := make(map[string]bool, len(cm.config.Templates.TemplatePaths))
		for _, p := range cm.config.Templates.TemplatePaths {
			known[p] = true
		}
		for _, p := range newConfig.Templates.TemplatePaths {
			if known[p] {
				continue
			}
			if err := cm.engine.AddTemplatePath(p); err != nil {
				cm.logger.Warn("Template path not applied", "path", p, "error", err)
			}
		}
	}

	*cm.config = newConfig

	data, err := json.MarshalIndent(cm.config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err = atomic.WriteFile(cm.configPath, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
