/*
Package config loads the service configuration.

PURPOSE:
  Configuration comes from three layers, lowest priority first:
  1. Built-in defaults
  2. An optional YAML file (-config flag)
  3. Environment variables (a .env file is loaded when present)

  Every field has a working default so the server runs with no file
  and no environment at all.

ENVIRONMENT VARIABLES:
  ABSENCE_PORT          HTTP port
  ABSENCE_DB            SQLite path (":memory:" for in-memory)
  ABSENCE_LOG_LEVEL     logrus level (debug|info|warn|error)
  ABSENCE_CORS_ORIGINS  comma-separated allowed origins

SEE ALSO:
  - cmd/server/main.go: consumption
*/
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// CONFIG STRUCTURE
// =============================================================================

// Config is the main configuration structure for the service.
type Config struct {
	Server ServerConfig `yaml:"server"` // HTTP server settings.
	Log    LogConfig    `yaml:"log"`    // Logging settings.
}

// ServerConfig contains HTTP and storage settings.
type ServerConfig struct {
	Port        int      `yaml:"port"`         // HTTP server port.
	DBPath      string   `yaml:"db_path"`      // SQLite database path.
	CORSOrigins []string `yaml:"cors_origins"` // Allowed CORS origins.
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `yaml:"level"` // Logging level.
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:        8080,
			DBPath:      "absences.db",
			CORSOrigins: []string{"http://localhost:5173", "http://localhost:8080"},
		},
		Log: LogConfig{Level: "info"},
	}
}

// =============================================================================
// LOADING
// =============================================================================

// Load builds the configuration from defaults, an optional YAML file
// and environment overrides. path may be empty.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config file: %w", err)
		}
	}

	// A missing .env file is fine; env vars may come from the shell.
	_ = godotenv.Load()

	cfg.Server.Port = getEnvAsInt("ABSENCE_PORT", cfg.Server.Port)
	cfg.Server.DBPath = getEnv("ABSENCE_DB", cfg.Server.DBPath)
	cfg.Log.Level = getEnv("ABSENCE_LOG_LEVEL", cfg.Log.Level)
	if origins := getEnv("ABSENCE_CORS_ORIGINS", ""); origins != "" {
		cfg.Server.CORSOrigins = splitAndTrim(origins)
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return Config{}, fmt.Errorf("invalid port %d", cfg.Server.Port)
	}
	if _, err := logrus.ParseLevel(cfg.Log.Level); err != nil {
		return Config{}, fmt.Errorf("invalid log level %q: %w", cfg.Log.Level, err)
	}

	return cfg, nil
}

// LogLevel returns the parsed logrus level.
func (c Config) LogLevel() logrus.Level {
	level, err := logrus.ParseLevel(c.Log.Level)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

// =============================================================================
// ENV HELPERS
// =============================================================================

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return val
	}
	return defaultVal
}

func splitAndTrim(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
