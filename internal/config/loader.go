package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Loader handles configuration loading
type Loader struct {
	configPath string
}

// NewLoader creates a new config loader
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
	}
}

// Load loads the configuration from file
func (l *Loader) Load() (*Config, error) {
	configPath := l.configPath
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, ".study-coach", "config.json")
	}

	cfg := DefaultConfig()

	v := viper.New()
	v.SetEnvPrefix("STUDYCOACH")
	v.AutomaticEnv()

	// Config file is optional; env and defaults carry a fresh install.
	if _, err := os.Stat(configPath); err == nil {
		v.SetConfigFile(configPath)
		v.SetConfigType("json")

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := v.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	applyEnvOverrides(cfg, v)

	// Set data directory if not specified
	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		cfg.DataDir = filepath.Join(home, ".study-coach")
	}

	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(cfg.DataDir, "study-coach.db")
	}

	if cfg.Logging.File == "" {
		cfg.Logging.File = filepath.Join(cfg.DataDir, "study-coach.log")
	}

	return cfg, nil
}

// applyEnvOverrides maps flat environment variables onto the config.
// Secrets are expected to arrive this way rather than via the config file.
func applyEnvOverrides(cfg *Config, v *viper.Viper) {
	if key := v.GetString("PLANNER_API_KEY"); key != "" {
		cfg.Planner.APIKey = key
	}
	if provider := v.GetString("PLANNER_PROVIDER"); provider != "" {
		cfg.Planner.Provider = provider
	}
	if model := v.GetString("PLANNER_MODEL"); model != "" {
		cfg.Planner.Model = model
	}
	if pw := v.GetString("MAIL_PASSWORD"); pw != "" {
		cfg.Mail.Password = pw
	}
	if user := v.GetString("MAIL_USERNAME"); user != "" {
		cfg.Mail.Username = user
	}
	if host := v.GetString("MAIL_HOST"); host != "" {
		cfg.Mail.Host = host
	}
	if token := v.GetString("TELEGRAM_BOT_TOKEN"); token != "" {
		cfg.Telegram.BotToken = token
		cfg.Telegram.Enabled = true
	}
	if db := v.GetString("DB_PATH"); db != "" {
		cfg.DBPath = db
	}
}

// GetConfigPath returns the config file path
func (l *Loader) GetConfigPath() string {
	if l.configPath != "" {
		return l.configPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".study-coach", "config.json")
}

// Load is a convenience function that creates a loader and loads the config
func Load(configPath string) (*Config, error) {
	loader := NewLoader(configPath)
	return loader.Load()
}
