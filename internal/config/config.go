// Package config provides configuration management for go-redsocial.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

var AppVersion = "-unset-" // will be set at build time

const (
	// EnvPrefix is prepended to every environment variable read by Load
	EnvPrefix = "REDSOCIAL_"

	DefaultListenPort = 8081
	DefaultMainDB     = "data/redsocial.sq3"
)

// MainConfig holds the main configuration for go-redsocial
type MainConfig struct {
	// Web interface settings
	Web WebConfig `json:"web"`

	// Database settings
	Database DatabaseConfig `json:"database"`

	AppVersion string `json:"app_version"` // Application version, set at build time
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	MainDB string `json:"main_db"` // Path to main database
}

// WebConfig holds web interface configuration
type WebConfig struct {
	ListenPort int    `json:"listen_port"`
	SSL        bool   `json:"ssl"`
	CertFile   string `json:"cert_file,omitempty"`
	KeyFile    string `json:"key_file,omitempty"`
	Debug      bool   `json:"debug"` // Enable debug logging for sessions/auth

	// Secret keys the password digest and the session cookie.
	// Never serialized.
	Secret string `json:"-"`
}

// NewDefaultConfig returns a configuration with sensible defaults
func NewDefaultConfig() *MainConfig {
	return &MainConfig{
		AppVersion: AppVersion,
		Web: WebConfig{
			ListenPort: DefaultListenPort,
		},
		Database: DatabaseConfig{
			MainDB: DefaultMainDB,
		},
	}
}

// Load builds a configuration from defaults, an optional dotenv file and the
// REDSOCIAL_* environment. Command-line flags are applied by the caller.
// A missing envFile is not an error.
func Load(envFile string) (*MainConfig, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	}
	cfg := NewDefaultConfig()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *MainConfig) applyEnv() error {
	if v, ok := lookupEnv("SECRET"); ok {
		c.Web.Secret = v
	}
	if v, ok := lookupEnv("PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sPORT %q: %w", EnvPrefix, v, err)
		}
		c.Web.ListenPort = port
	}
	if v, ok := lookupEnv("SSL"); ok {
		ssl, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %sSSL %q: %w", EnvPrefix, v, err)
		}
		c.Web.SSL = ssl
	}
	if v, ok := lookupEnv("CERT_FILE"); ok {
		c.Web.CertFile = v
	}
	if v, ok := lookupEnv("KEY_FILE"); ok {
		c.Web.KeyFile = v
	}
	if v, ok := lookupEnv("DEBUG"); ok {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %sDEBUG %q: %w", EnvPrefix, v, err)
		}
		c.Web.Debug = debug
	}
	if v, ok := lookupEnv("MAIN_DB"); ok {
		c.Database.MainDB = v
	}
	return nil
}

// Validate checks the configuration before the server starts
func (c *MainConfig) Validate() error {
	if strings.TrimSpace(c.Web.Secret) == "" {
		return fmt.Errorf("server secret is not set (use -secret or %sSECRET)", EnvPrefix)
	}
	if c.Web.ListenPort <= 0 || c.Web.ListenPort > 65535 {
		return fmt.Errorf("invalid listen port %d", c.Web.ListenPort)
	}
	if c.Web.SSL && (c.Web.CertFile == "" || c.Web.KeyFile == "") {
		return errors.New("SSL enabled but cert_file or key_file not specified in config")
	}
	if c.Database.MainDB == "" {
		return errors.New("main database path is empty")
	}
	return nil
}

func lookupEnv(key string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
