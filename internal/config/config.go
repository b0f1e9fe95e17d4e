package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/jchantrell/gmdata/internal/utils"
)

type Config struct {
	Archive         string   `mapstructure:"archive"`
	AssetsDir       string   `mapstructure:"assets_dir"`
	Output          string   `mapstructure:"output"`
	Database        string   `mapstructure:"database"`
	Kinds           []string `mapstructure:"kinds"`
	AudioFiles      []string `mapstructure:"audio_files"`
	AutoAudioSearch bool     `mapstructure:"auto_audio_search"`
	ForceVersion    string   `mapstructure:"force_version"`
	CacheSize       int      `mapstructure:"cache_size"`
	LogLevel        string   `mapstructure:"log_level"`
	LogFormat       string   `mapstructure:"log_format"`
}

// Load initializes and loads configuration from file
func Load(cfgFile string) (*Config, error) {
	return load(viper.GetViper(), cfgFile)
}

func load(v *viper.Viper, cfgFile string) (*Config, error) {
	// Set defaults
	v.SetDefault("archive", "data.win")
	v.SetDefault("output", "out")
	v.SetDefault("database", "gmdata.db")
	v.SetDefault("kinds", AllKinds)
	v.SetDefault("cache_size", 256)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	// Config file handling
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}

		v.AddConfigPath(home)
		v.AddConfigPath(".")
		v.SetConfigName("gmdata")
		v.SetConfigType("yaml")
	}

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that can also be overridden by flags after Load.
func (c *Config) Validate() error {
	if err := validateKinds(c.Kinds); err != nil {
		return fmt.Errorf("invalid kinds configuration: %w", err)
	}
	if err := validateLogging(c.LogLevel, c.LogFormat); err != nil {
		return fmt.Errorf("invalid logging configuration: %w", err)
	}
	if _, err := c.ForcedMajor(); err != nil {
		return fmt.Errorf("invalid force_version: %w", err)
	}
	if c.CacheSize <= 0 {
		return fmt.Errorf("cache_size must be positive, got %d", c.CacheSize)
	}
	return nil
}

// ForcedMajor returns the major version to force, or 0 when unset.
func (c *Config) ForcedMajor() (int, error) {
	if c.ForceVersion == "" {
		return 0, nil
	}
	info, err := utils.ParseVersion(c.ForceVersion)
	if err != nil {
		return 0, err
	}
	return info.Major, nil
}
