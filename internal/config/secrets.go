package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrMissingAPIKey is returned when no API key can be found in any source.
var ErrMissingAPIKey = errors.New("API key not found")

// LoadDotEnv loads .env style files into the process environment. Missing
// files are skipped and variables that are already set are left alone.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}

	for _, path := range paths {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}

// ResolveAPIKey looks the key up in the secrets file first and the process
// environment second.
func ResolveAPIKey(cfg CompletionConfig) (string, error) {
	key, err := readSecretsFile(cfg.SecretsFile, cfg.APIKeyName)
	if err != nil {
		return "", err
	}
	if key != "" {
		return key, nil
	}

	if key := strings.TrimSpace(os.Getenv(cfg.APIKeyName)); key != "" {
		return key, nil
	}

	return "", fmt.Errorf("%w: set %s in %s or in the environment", ErrMissingAPIKey, cfg.APIKeyName, cfg.SecretsFile)
}

func readSecretsFile(path, name string) (string, error) {
	if path == "" {
		return "", nil
	}

	path = expandHome(path)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return "", nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return "", fmt.Errorf("failed to read secrets file: %w", err)
	}

	return strings.TrimSpace(v.GetString(name)), nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
