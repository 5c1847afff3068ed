package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	setDefaults(GetDefaults())

	// Configure viper
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("$HOME/.codesense/")

	// Environment variable overrides
	viper.SetEnvPrefix("CODESENSE")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Use specific config file if provided
	if configPath != "" {
		viper.SetConfigFile(configPath)
	}

	if err := viper.ReadInConfig(); err != nil {
		// Config file not found is not an error - we'll use defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return decode()
}

// decode builds a validated Config from viper's current state.
func decode() (*Config, error) {
	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// setDefaults registers every leaf key so AutomaticEnv can override it.
func setDefaults(d *Config) {
	defaults := map[string]interface{}{
		"server.port":          d.Server.Port,
		"server.read_timeout":  d.Server.ReadTimeout,
		"server.write_timeout": d.Server.WriteTimeout,
		"server.idle_timeout":  d.Server.IdleTimeout,

		"privacy.enabled":      d.Privacy.Enabled,
		"privacy.detectors":    d.Privacy.Detectors,
		"privacy.show_preview": d.Privacy.ShowPreview,

		"completion.base_url":        d.Completion.BaseURL,
		"completion.api_key_name":    d.Completion.APIKeyName,
		"completion.secrets_file":    d.Completion.SecretsFile,
		"completion.timeout":         d.Completion.Timeout,
		"completion.temperature":     d.Completion.Temperature,
		"completion.max_tokens":      d.Completion.MaxTokens,
		"completion.min_interval":    d.Completion.MinInterval,
		"completion.default_model":   d.Completion.DefaultModel,
		"completion.models.fast":     d.Completion.Models.Fast,
		"completion.models.accurate": d.Completion.Models.Accurate,

		"prompt.format":        d.Prompt.Format,
		"prompt.default_level": d.Prompt.DefaultLevel,

		"audit.backend":                    d.Audit.Backend,
		"audit.path":                       d.Audit.Path,
		"audit.tail_size":                  d.Audit.TailSize,
		"audit.redis.url":                  d.Audit.Redis.URL,
		"audit.redis.key":                  d.Audit.Redis.Key,
		"audit.redis.max_rows":             d.Audit.Redis.MaxRows,
		"audit.postgres.database_url":      d.Audit.Postgres.DatabaseURL,
		"audit.postgres.max_open_conns":    d.Audit.Postgres.MaxOpenConns,
		"audit.postgres.max_idle_conns":    d.Audit.Postgres.MaxIdleConns,
		"audit.postgres.conn_max_lifetime": d.Audit.Postgres.ConnMaxLifetime,

		"cache.enabled":    d.Cache.Enabled,
		"cache.redis_url":  d.Cache.RedisURL,
		"cache.ttl":        d.Cache.TTL,
		"cache.key_prefix": d.Cache.KeyPrefix,

		"security.rate_limit.enabled":          d.Security.RateLimit.Enabled,
		"security.rate_limit.requests_per_min": d.Security.RateLimit.RequestsPerMin,
		"security.rate_limit.burst":            d.Security.RateLimit.Burst,

		"logging.level":        d.Logging.Level,
		"logging.format":       d.Logging.Format,
		"logging.file.enabled": d.Logging.File.Enabled,
		"logging.file.path":    d.Logging.File.Path,

		"websocket.enabled":                       d.WebSocket.Enabled,
		"websocket.path":                          d.WebSocket.Path,
		"websocket.max_connections":               d.WebSocket.MaxConnections,
		"websocket.ping_interval":                 d.WebSocket.PingInterval,
		"websocket.pong_timeout":                  d.WebSocket.PongTimeout,
		"websocket.write_timeout":                 d.WebSocket.WriteTimeout,
		"websocket.username":                      d.WebSocket.Username,
		"websocket.password":                      d.WebSocket.Password,
		"websocket.events.broadcast_explanations": d.WebSocket.Events.BroadcastExplanations,
		"websocket.events.broadcast_detections":   d.WebSocket.Events.BroadcastDetections,
		"websocket.events.broadcast_connections":  d.WebSocket.Events.BroadcastConnections,

		"metrics.enabled": d.Metrics.Enabled,
		"metrics.path":    d.Metrics.Path,
	}

	for key, value := range defaults {
		viper.SetDefault(key, value)
	}
}

// validateConfig validates the loaded configuration
func validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Logging.Level != "debug" && config.Logging.Level != "info" && config.Logging.Level != "warn" && config.Logging.Level != "error" {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.Logging.Level)
	}

	if config.Logging.Format != "json" && config.Logging.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", config.Logging.Format)
	}

	if config.Prompt.Format != "json" && config.Prompt.Format != "sections" {
		return fmt.Errorf("invalid prompt format: %s (must be json or sections)", config.Prompt.Format)
	}

	switch strings.ToLower(config.Prompt.DefaultLevel) {
	case "beginner", "intermediate", "advanced":
	default:
		return fmt.Errorf("invalid default level: %s (must be Beginner, Intermediate, or Advanced)", config.Prompt.DefaultLevel)
	}

	if config.Completion.BaseURL == "" {
		return fmt.Errorf("completion base_url is required")
	}
	if config.Completion.APIKeyName == "" {
		return fmt.Errorf("completion api_key_name is required")
	}
	if config.Completion.Timeout <= 0 {
		return fmt.Errorf("invalid completion timeout: %s", config.Completion.Timeout)
	}
	if config.Completion.MaxTokens <= 0 {
		return fmt.Errorf("invalid completion max_tokens: %d", config.Completion.MaxTokens)
	}
	if config.Completion.Models.Fast == "" || config.Completion.Models.Accurate == "" {
		return fmt.Errorf("both completion models (fast, accurate) must be set")
	}

	switch config.Audit.Backend {
	case "csv":
		if config.Audit.Path == "" {
			return fmt.Errorf("audit path is required for the csv backend")
		}
	case "redis":
		if config.Audit.Redis.URL == "" {
			return fmt.Errorf("audit redis url is required for the redis backend")
		}
	case "postgres":
		if config.Audit.Postgres.DatabaseURL == "" {
			return fmt.Errorf("audit postgres database_url is required for the postgres backend")
		}
	default:
		return fmt.Errorf("invalid audit backend: %s (must be csv, redis, or postgres)", config.Audit.Backend)
	}

	if config.Cache.Enabled && config.Cache.RedisURL == "" {
		return fmt.Errorf("cache redis_url is required when the cache is enabled")
	}

	return nil
}

// ErrNoConfigFile is returned by Watch when defaults and environment
// variables are the only configuration source.
var ErrNoConfigFile = errors.New("no configuration file loaded")

// Watch calls onChange with every valid reload of the configuration file.
// A reload that fails to decode or validate is passed to onReject and the
// running configuration stays in place.
func Watch(onChange func(*Config), onReject func(error)) error {
	if viper.ConfigFileUsed() == "" {
		return ErrNoConfigFile
	}

	viper.OnConfigChange(func(e fsnotify.Event) {
		next, err := decode()
		if err != nil {
			if onReject != nil {
				onReject(fmt.Errorf("%s: %w", e.Name, err))
			}
			return
		}
		onChange(next)
	})
	viper.WatchConfig()

	return nil
}
