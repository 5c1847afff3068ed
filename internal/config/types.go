package config

import "time"

// Config represents the main configuration structure
type Config struct {
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Privacy    PrivacyConfig    `yaml:"privacy" mapstructure:"privacy"`
	Completion CompletionConfig `yaml:"completion" mapstructure:"completion"`
	Prompt     PromptConfig     `yaml:"prompt" mapstructure:"prompt"`
	Audit      AuditConfig      `yaml:"audit" mapstructure:"audit"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Security   SecurityConfig   `yaml:"security" mapstructure:"security"`
	Logging    LoggingConfig    `yaml:"logging" mapstructure:"logging"`
	WebSocket  WebSocketConfig  `yaml:"websocket" mapstructure:"websocket"`
	Metrics    MetricsConfig    `yaml:"metrics" mapstructure:"metrics"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port         int           `yaml:"port" mapstructure:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
}

// PrivacyConfig contains PII detection and masking configuration.
// Enabled is the default position of the per-request privacy toggle.
type PrivacyConfig struct {
	Enabled     bool     `yaml:"enabled" mapstructure:"enabled"`
	Detectors   []string `yaml:"detectors" mapstructure:"detectors"`
	ShowPreview bool     `yaml:"show_preview" mapstructure:"show_preview"`
}

// CompletionConfig describes the chat-completion endpoint
type CompletionConfig struct {
	BaseURL      string        `yaml:"base_url" mapstructure:"base_url"`
	APIKeyName   string        `yaml:"api_key_name" mapstructure:"api_key_name"`
	SecretsFile  string        `yaml:"secrets_file" mapstructure:"secrets_file"`
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
	Temperature  float32       `yaml:"temperature" mapstructure:"temperature"`
	MaxTokens    int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	MinInterval  time.Duration `yaml:"min_interval" mapstructure:"min_interval"`
	DefaultModel string        `yaml:"default_model" mapstructure:"default_model"`
	Models       ModelsConfig  `yaml:"models" mapstructure:"models"`
}

// ModelsConfig maps the two user-facing choices to model identifiers
type ModelsConfig struct {
	Fast     string `yaml:"fast" mapstructure:"fast"`
	Accurate string `yaml:"accurate" mapstructure:"accurate"`
}

// PromptConfig selects the prompt template and default detail level
type PromptConfig struct {
	Format       string `yaml:"format" mapstructure:"format"` // json or sections
	DefaultLevel string `yaml:"default_level" mapstructure:"default_level"`
}

// AuditConfig selects and configures the audit log backend
type AuditConfig struct {
	Backend  string              `yaml:"backend" mapstructure:"backend"` // csv, redis or postgres
	Path     string              `yaml:"path" mapstructure:"path"`
	TailSize int                 `yaml:"tail_size" mapstructure:"tail_size"`
	Redis    AuditRedisConfig    `yaml:"redis" mapstructure:"redis"`
	Postgres AuditPostgresConfig `yaml:"postgres" mapstructure:"postgres"`
}

// AuditRedisConfig configures the Redis list backend
type AuditRedisConfig struct {
	URL     string `yaml:"url" mapstructure:"url"`
	Key     string `yaml:"key" mapstructure:"key"`
	MaxRows int    `yaml:"max_rows" mapstructure:"max_rows"`
}

// AuditPostgresConfig configures the Postgres backend
type AuditPostgresConfig struct {
	DatabaseURL     string        `yaml:"database_url" mapstructure:"database_url"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
}

// CacheConfig configures the optional Redis response cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	RedisURL  string        `yaml:"redis_url" mapstructure:"redis_url"`
	TTL       time.Duration `yaml:"ttl" mapstructure:"ttl"`
	KeyPrefix string        `yaml:"key_prefix" mapstructure:"key_prefix"`
}

// SecurityConfig contains request guardrails for the HTTP API
type SecurityConfig struct {
	RateLimit struct {
		Enabled        bool `yaml:"enabled" mapstructure:"enabled"`
		RequestsPerMin int  `yaml:"requests_per_min" mapstructure:"requests_per_min"`
		Burst          int  `yaml:"burst" mapstructure:"burst"`
	} `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // json or console
	File   struct {
		Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
		Path    string `yaml:"path" mapstructure:"path"`
	} `yaml:"file" mapstructure:"file"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	Enabled        bool          `yaml:"enabled" mapstructure:"enabled"`
	Path           string        `yaml:"path" mapstructure:"path"`
	MaxConnections int           `yaml:"max_connections" mapstructure:"max_connections"`
	PingInterval   time.Duration `yaml:"ping_interval" mapstructure:"ping_interval"`
	PongTimeout    time.Duration `yaml:"pong_timeout" mapstructure:"pong_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	Username       string        `yaml:"username" mapstructure:"username"`
	Password       string        `yaml:"password" mapstructure:"password"`
	Events         struct {
		BroadcastExplanations bool `yaml:"broadcast_explanations" mapstructure:"broadcast_explanations"`
		BroadcastDetections   bool `yaml:"broadcast_detections" mapstructure:"broadcast_detections"`
		BroadcastConnections  bool `yaml:"broadcast_connections" mapstructure:"broadcast_connections"`
	} `yaml:"events" mapstructure:"events"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// GetDefaults returns a configuration with sensible defaults
func GetDefaults() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 45 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Privacy: PrivacyConfig{
			Enabled:     true,
			Detectors:   []string{"all"},
			ShowPreview: false,
		},
		Completion: CompletionConfig{
			BaseURL:      "https://api.groq.com/openai/v1",
			APIKeyName:   "GROQ_API_KEY",
			SecretsFile:  ".codesense/secrets.toml",
			Timeout:      30 * time.Second,
			Temperature:  0.5,
			MaxTokens:    500,
			DefaultModel: "fast",
			Models: ModelsConfig{
				Fast:     "llama-3.1-8b-instant",
				Accurate: "openai/gpt-oss-20b",
			},
		},
		Prompt: PromptConfig{
			Format:       "json",
			DefaultLevel: "Beginner",
		},
		Audit: AuditConfig{
			Backend:  "csv",
			Path:     "history.csv",
			TailSize: 10,
			Redis: AuditRedisConfig{
				URL:     "redis://localhost:6379/0",
				Key:     "codesense:audit",
				MaxRows: 10000,
			},
			Postgres: AuditPostgresConfig{
				MaxOpenConns:    5,
				MaxIdleConns:    2,
				ConnMaxLifetime: 30 * time.Minute,
			},
		},
		Cache: CacheConfig{
			Enabled:   false,
			RedisURL:  "redis://localhost:6379/0",
			TTL:       24 * time.Hour,
			KeyPrefix: "codesense",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		WebSocket: WebSocketConfig{
			Enabled:        true,
			Path:           "/ws",
			MaxConnections: 100,
			PingInterval:   54 * time.Second,
			PongTimeout:    60 * time.Second,
			WriteTimeout:   10 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}

	cfg.Security.RateLimit.Enabled = true
	cfg.Security.RateLimit.RequestsPerMin = 30
	cfg.Security.RateLimit.Burst = 5
	cfg.Logging.File.Path = "logs/codesense.log"
	cfg.WebSocket.Events.BroadcastExplanations = true
	cfg.WebSocket.Events.BroadcastDetections = true
	cfg.WebSocket.Events.BroadcastConnections = false

	return cfg
}

// ModelID resolves "fast" / "accurate" to a model identifier. Any other
// value is taken as a literal model identifier.
func (c CompletionConfig) ModelID(choice string) string {
	if choice == "" {
		choice = c.DefaultModel
	}

	switch choice {
	case "", "fast":
		return c.Models.Fast
	case "accurate":
		return c.Models.Accurate
	default:
		return choice
	}
}
