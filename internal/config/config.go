// Package config provides configuration management for Wisp.
package config

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Activity  ActivityConfig  `mapstructure:"activity"`
	Model     ModelConfig     `mapstructure:"model"`
	Proactive ProactiveConfig `mapstructure:"proactive"`
	Memory    MemoryConfig    `mapstructure:"memory"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	AutoStart bool            `mapstructure:"auto_start"`
}

// ActivityConfig configures activity sampling consumption.
type ActivityConfig struct {
	LoggingEnabled    bool          `mapstructure:"logging_enabled"`
	SampleInterval    time.Duration `mapstructure:"sample_interval"`
	SummarizeInterval time.Duration `mapstructure:"summarize_interval"`
	RetentionDays     int           `mapstructure:"retention_days"`
	WindowSize        int           `mapstructure:"window_size"`
}

// ModelConfig configures the model backend.
type ModelConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	Name        string        `mapstructure:"name"`
	UseGPU      bool          `mapstructure:"use_gpu"`
	NumPredict  int           `mapstructure:"num_predict"`
	NumCtx      int           `mapstructure:"num_ctx"`
	Temperature float64       `mapstructure:"temperature"`
	TopP        float64       `mapstructure:"top_p"`
	TopK        int           `mapstructure:"top_k"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// ProactiveConfig configures unprompted companion messages.
type ProactiveConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}

// MemoryConfig configures the memory store and cache.
type MemoryConfig struct {
	DBPath        string        `mapstructure:"db_path"`
	CacheEntries  int           `mapstructure:"cache_entries"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
	HistoryTurns  int           `mapstructure:"history_turns"`
	MaxTurns      int           `mapstructure:"max_turns"`
	CompressAbove int           `mapstructure:"compress_above"`
	KeepRecent    int           `mapstructure:"keep_recent"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() *Config {
	dir, _ := Dir()
	return &Config{
		Activity: ActivityConfig{
			LoggingEnabled:    true,
			SampleInterval:    5 * time.Minute,
			SummarizeInterval: time.Hour,
			RetentionDays:     30,
			WindowSize:        12,
		},
		Model: ModelConfig{
			BaseURL:     "http://localhost:11434",
			Name:        "llama3.2",
			NumPredict:  200,
			NumCtx:      4096,
			Temperature: 0.8,
			TopP:        0.9,
			TopK:        40,
			Timeout:     120 * time.Second,
		},
		Proactive: ProactiveConfig{
			Enabled:  true,
			Interval: 5 * time.Minute,
		},
		Memory: MemoryConfig{
			DBPath:        filepath.Join(dir, "memory.db"),
			CacheEntries:  64,
			CacheTTL:      30 * time.Minute,
			HistoryTurns:  4,
			MaxTurns:      20,
			CompressAbove: 16,
			KeepRecent:    6,
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
		},
	}
}

// Dir returns the Wisp configuration directory, creating it if needed.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".wisp")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return dir, err
	}
	return dir, nil
}

// Load reads configuration from file and environment. A missing file is
// replaced with defaults, which are written out for the next run.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	dir, err := Dir()
	if err != nil {
		return cfg, err
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(dir)
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("WISP")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return cfg, err
		}
		if err := Save(cfg); err != nil {
			return cfg, err
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes the configuration to file.
func Save(cfg *Config) error {
	dir, err := Dir()
	if err != nil {
		return err
	}

	viper.Set("activity", cfg.Activity)
	viper.Set("model", cfg.Model)
	viper.Set("proactive", cfg.Proactive)
	viper.Set("memory", cfg.Memory)
	viper.Set("logging", cfg.Logging)
	viper.Set("auto_start", cfg.AutoStart)

	return viper.WriteConfigAs(filepath.Join(dir, "config.yaml"))
}

var watchMu sync.Mutex

// Watch re-reads the config file when it changes on disk and hands the
// fresh config to the callback. Reload failures keep the old config.
func Watch(onChange func(*Config)) {
	viper.OnConfigChange(func(_ fsnotify.Event) {
		watchMu.Lock()
		defer watchMu.Unlock()

		cfg := DefaultConfig()
		if err := viper.Unmarshal(cfg); err != nil {
			return
		}
		onChange(cfg)
	})
	viper.WatchConfig()
}
