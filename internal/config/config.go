// Package config loads runtime configuration for hlsync.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hlsync/hlsync/internal/readwise"
	"github.com/spf13/viper"
)

const (
	envPrefix = "HLSYNC"

	defaultStatePath = "last_sync.txt"
	defaultLogLevel  = "info"
	defaultTimeout   = 30 * time.Second

	// tokenEnvVar is the environment variable earlier tooling used for the
	// Readwise credential; it is honored when no HLSYNC-prefixed value is set.
	tokenEnvVar = "READWISE_API_TOKEN"
)

// AppConfig captures runtime configuration for a sync invocation.
type AppConfig struct {
	DatabasePath   string
	StatePath      string
	ReadwiseURL    string
	ReadwiseToken  string
	RequestTimeout time.Duration
	LogLevel       string
	LogFile        string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	v := viper.New()
	ApplyDefaults(v)
	return v
}

// ApplyDefaults configures defaults and env bindings on the provided viper
// instance.
func ApplyDefaults(v *viper.Viper) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("database.path", DefaultDatabasePath())
	v.SetDefault("state.path", defaultStatePath)
	v.SetDefault("readwise.url", readwise.DefaultURL)
	v.SetDefault("readwise.timeout", defaultTimeout)
	v.SetDefault("log.level", defaultLogLevel)
	v.SetDefault("log.file", "")
}

// DefaultDatabasePath returns the GoodLinks database location inside the
// app's group container under the user's home directory.
func DefaultDatabasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "data.sqlite"
	}
	return filepath.Join(home,
		"Library", "Group Containers", "group.com.ngocluu.goodlinks",
		"Data", "data.sqlite")
}

// Load parses runtime configuration from viper.
//
// The token is resolved from HLSYNC_READWISE_TOKEN, falling back to the
// READWISE_API_TOKEN environment variable. An empty token is NOT an error
// here: preview mode runs without one, and the sync runner rejects a
// token-less real run before any I/O.
func Load(v *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		DatabasePath:   v.GetString("database.path"),
		StatePath:      v.GetString("state.path"),
		ReadwiseURL:    v.GetString("readwise.url"),
		ReadwiseToken:  v.GetString("readwise.token"),
		RequestTimeout: v.GetDuration("readwise.timeout"),
		LogLevel:       v.GetString("log.level"),
		LogFile:        v.GetString("log.file"),
	}

	if cfg.ReadwiseToken == "" {
		cfg.ReadwiseToken = os.Getenv(tokenEnvVar)
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.StatePath) == "" {
		return fmt.Errorf("state.path is required")
	}
	if strings.TrimSpace(c.ReadwiseURL) == "" {
		return fmt.Errorf("readwise.url is required")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("readwise.timeout must be positive")
	}
	return nil
}
