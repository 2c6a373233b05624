package config

import (
	"fmt"
	"strings"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAPIKey validates an API key format
func (v *Validator) ValidateAPIKey(key string, provider string) error {
	if key == "" {
		return fmt.Errorf("%s API key cannot be empty", provider)
	}

	switch provider {
	case "anthropic":
		if !strings.HasPrefix(key, "sk-ant-") {
			return fmt.Errorf("invalid Anthropic API key format (should start with sk-ant-)")
		}
	case "openai":
		if !strings.HasPrefix(key, "sk-") {
			return fmt.Errorf("invalid OpenAI API key format (should start with sk-)")
		}
	}

	return nil
}

// ValidateProvider validates a planner provider name
func (v *Validator) ValidateProvider(provider string) error {
	validProviders := []string{"anthropic", "openai", "rule"}
	for _, valid := range validProviders {
		if provider == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid planner provider: %s (must be one of: %s)", provider, strings.Join(validProviders, ", "))
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateConfig performs comprehensive validation
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errors []error

	if err := v.ValidateProvider(cfg.Planner.Provider); err != nil {
		errors = append(errors, err)
	}
	if cfg.Planner.APIKey != "" {
		if err := v.ValidateAPIKey(cfg.Planner.APIKey, cfg.Planner.Provider); err != nil {
			errors = append(errors, err)
		}
	}
	if cfg.Planner.Model == "" {
		errors = append(errors, fmt.Errorf("planner model cannot be empty"))
	}
	if cfg.Planner.Temperature < 0 || cfg.Planner.Temperature > 1 {
		errors = append(errors, fmt.Errorf("planner temperature must be between 0 and 1, got %f", cfg.Planner.Temperature))
	}
	if cfg.Planner.MaxTokens <= 0 {
		errors = append(errors, fmt.Errorf("planner max_tokens must be positive, got %d", cfg.Planner.MaxTokens))
	}

	if cfg.Agent.MaxIterations <= 0 {
		errors = append(errors, fmt.Errorf("agent max_iterations must be positive, got %d", cfg.Agent.MaxIterations))
	}
	if cfg.Agent.DefaultRemindAfterMinutes <= 0 {
		errors = append(errors, fmt.Errorf("agent default_remind_after_minutes must be positive, got %d", cfg.Agent.DefaultRemindAfterMinutes))
	}
	if cfg.Agent.ContinueDelaySeconds < 0 {
		errors = append(errors, fmt.Errorf("agent continue_delay_seconds must be >= 0"))
	}
	if cfg.Agent.Retry.MaxAttempts < 0 {
		errors = append(errors, fmt.Errorf("agent retry.max_attempts must be >= 0"))
	}
	if cfg.Agent.Retry.InitialBackoffMs < 0 {
		errors = append(errors, fmt.Errorf("agent retry.initial_backoff_ms must be >= 0"))
	}
	if cfg.Agent.Retry.MaxBackoffMs < 0 {
		errors = append(errors, fmt.Errorf("agent retry.max_backoff_ms must be >= 0"))
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errors = append(errors, fmt.Errorf("server port must be between 1 and 65535, got %d", cfg.Server.Port))
	}

	if cfg.Telegram.Enabled && cfg.Telegram.BotToken == "" {
		errors = append(errors, fmt.Errorf("telegram bot token is required when telegram is enabled"))
	}

	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errors = append(errors, err)
	}

	return errors
}
