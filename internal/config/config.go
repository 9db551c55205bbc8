package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	DefaultAPIURL  = "http://localhost:3000/api"
	DefaultTimeout = 30 * time.Second
)

type Config struct {
	APIURL      string
	DataDir     string
	HTTPTimeout time.Duration
	LogLevel    slog.Level
}

// Load reads the environment. Unset or unparsable values fall back to defaults.
func Load() Config {
	return Config{
		APIURL:      strings.TrimRight(getenv("SHOPDROP_API_URL", DefaultAPIURL), "/"),
		DataDir:     getenv("SHOPDROP_DATA_DIR", defaultDataDir()),
		HTTPTimeout: parseDuration(getenv("SHOPDROP_HTTP_TIMEOUT", "30s"), DefaultTimeout),
		LogLevel:    parseLevel(getenv("SHOPDROP_LOG_LEVEL", "info")),
	}
}

// SessionPath is the bbolt file holding the persisted session.
func (c Config) SessionPath() string {
	return filepath.Join(c.DataDir, "session.db")
}

// LogPath is where the JSON log is written.
func (c Config) LogPath() string {
	return filepath.Join(c.DataDir, "shopdrop.log")
}

// defaultDataDir returns ~/.shopdrop, or .shopdrop when there is no home.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".shopdrop"
	}
	return filepath.Join(home, ".shopdrop")
}

func getenv(k, def string) string {
	if v := os.Getenv(k); strings.TrimSpace(v) != "" {
		return v
	}
	return def
}

func parseDuration(v string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func parseLevel(v string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(v))); err != nil {
		return slog.LevelInfo
	}
	return l
}
