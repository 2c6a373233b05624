package config

// Config represents the main study-coach configuration
type Config struct {
	// Data directory (database, logs)
	DataDir string `json:"data_dir" mapstructure:"data_dir"`

	// Database file path
	DBPath string `json:"db_path" mapstructure:"db_path"`

	// HTTP ingress
	Server ServerConfig `json:"server" mapstructure:"server"`

	// Planner (LLM) configuration
	Planner PlannerConfig `json:"planner" mapstructure:"planner"`

	// Agent run orchestration
	Agent AgentConfig `json:"agent" mapstructure:"agent"`

	// Outbound notifications
	Mail     MailConfig     `json:"mail" mapstructure:"mail"`
	Telegram TelegramConfig `json:"telegram" mapstructure:"telegram"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `json:"host" mapstructure:"host"`
	Port int    `json:"port" mapstructure:"port"`
}

// PlannerConfig holds planner client configuration
type PlannerConfig struct {
	Provider    string  `json:"provider" mapstructure:"provider"` // anthropic, openai
	Model       string  `json:"model" mapstructure:"model"`
	APIKey      string  `json:"api_key" mapstructure:"api_key"`
	Temperature float64 `json:"temperature" mapstructure:"temperature"`
	MaxTokens   int     `json:"max_tokens" mapstructure:"max_tokens"`
}

// AgentConfig holds run orchestration settings
type AgentConfig struct {
	// MaxIterations is the ceiling after which a run is forcibly failed.
	MaxIterations int `json:"max_iterations" mapstructure:"max_iterations"`

	// DefaultRemindAfterMinutes is used when a run carries no reminder delay.
	DefaultRemindAfterMinutes int `json:"default_remind_after_minutes" mapstructure:"default_remind_after_minutes"`

	// ContinueDelaySeconds is the pause between iterations of a run.
	ContinueDelaySeconds int `json:"continue_delay_seconds" mapstructure:"continue_delay_seconds"`

	// Retry settings for transient step and trigger failures.
	Retry RetryConfig `json:"retry" mapstructure:"retry"`
}

// RetryConfig bounds retries of transient failures
type RetryConfig struct {
	MaxAttempts      int `json:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `json:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `json:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// MailConfig holds SMTP settings for reminder delivery.
// With an empty host or username the mailer runs in log-only mode.
type MailConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     int    `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	From     string `json:"from" mapstructure:"from"`
	FromName string `json:"from_name" mapstructure:"from_name"`
	BaseURL  string `json:"base_url" mapstructure:"base_url"` // link target in reminder bodies
}

// TelegramConfig holds the optional Telegram reminder channel
type TelegramConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	BotToken string `json:"bot_token" mapstructure:"bot_token"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `json:"level" mapstructure:"level"`
	File    string `json:"file" mapstructure:"file"`
	Console bool   `json:"console" mapstructure:"console"`
	Pretty  bool   `json:"pretty" mapstructure:"pretty"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Planner: PlannerConfig{
			Provider:    "anthropic",
			Model:       "claude-sonnet-4",
			Temperature: 0.2,
			MaxTokens:   1024,
		},
		Agent: AgentConfig{
			MaxIterations:             10,
			DefaultRemindAfterMinutes: 45,
			ContinueDelaySeconds:      2,
			Retry: RetryConfig{
				MaxAttempts:      3,
				InitialBackoffMs: 500,
				MaxBackoffMs:     5000,
			},
		},
		Mail: MailConfig{
			Port:     587,
			FromName: "Study Coach",
			BaseURL:  "http://localhost:8080",
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
			Pretty:  true,
		},
	}
}
