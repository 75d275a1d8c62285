package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds all configuration settings for the plugin
type Config struct {
	// DatabasePath is the path to the SQLite file holding the project table
	DatabasePath string `toml:"database_path"`

	// LogDir enables file logging when set
	LogDir string `toml:"log_dir"`

	MetadataServer MetadataServerConfig `toml:"metadata_server"`
	Metadata       MetadataConfig       `toml:"metadata"`
	Aria           AriaConfig           `toml:"aria"`
}

// MetadataServerConfig describes the instrument backend that produces exports.
type MetadataServerConfig struct {
	BaseURL            string `toml:"base_url"`
	Username           string `toml:"username"`
	Password           string `toml:"password"`
	JWTSecret          string `toml:"jwt_secret"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify"`
}

// MetadataConfig controls where exports are written.
type MetadataConfig struct {
	OutputPath string `toml:"output_path"`
}

// AriaConfig describes the registry endpoint and its OAuth2 client.
type AriaConfig struct {
	BaseURL      string        `toml:"base_url"`
	TokenURL     string        `toml:"token_url"`
	ClientID     string        `toml:"client_id"`
	ClientSecret string        `toml:"client_secret"`
	RateLimit    float64       `toml:"rate_limit"`
	RateBurst    int           `toml:"rate_burst"`
	Timeout      time.Duration `toml:"timeout"`
}

// DefaultAriaURL is the public registry instance
const DefaultAriaURL = "https://aria.structuralbiology.eu"

// defaultConfig returns the default configuration
func defaultConfig() *Config {
	return &Config{
		DatabasePath: "fandango.db",
		Metadata: MetadataConfig{
			OutputPath: "metadata",
		},
		Aria: AriaConfig{
			BaseURL:   DefaultAriaURL,
			RateLimit: 10,
			RateBurst: 5,
			Timeout:   30 * time.Second,
		},
	}
}

// Load loads the configuration from file and environment variables
func Load() (*Config, error) {
	config := defaultConfig()

	configPath := "config.toml"
	if p := os.Getenv("NMRCERM_CONFIG_PATH"); p != "" {
		configPath = p
	}
	if _, err := os.Stat(configPath); err == nil {
		if _, err := toml.DecodeFile(configPath, config); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
	}

	if err := applyEnv(config); err != nil {
		return nil, err
	}

	if config.Aria.TokenURL == "" {
		config.Aria.TokenURL = strings.TrimSuffix(config.Aria.BaseURL, "/") + "/oauth2/token"
	}

	return config, nil
}

func applyEnv(config *Config) error {
	setString(&config.DatabasePath, "DATABASE_PATH")
	setString(&config.LogDir, "LOG_DIR")

	setString(&config.MetadataServer.BaseURL, "BASE_URL")
	setString(&config.MetadataServer.Username, "USERNAME")
	setString(&config.MetadataServer.Password, "PASSWORD")
	setString(&config.MetadataServer.JWTSecret, "JWT_SECRET")
	if v := os.Getenv("INSECURE_SKIP_VERIFY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid INSECURE_SKIP_VERIFY %q: %w", v, err)
		}
		config.MetadataServer.InsecureSkipVerify = b
	}

	setString(&config.Metadata.OutputPath, "METADATA_OUTPUT_PATH")

	setString(&config.Aria.BaseURL, "ARIA_URL")
	setString(&config.Aria.TokenURL, "ARIA_TOKEN_URL")
	setString(&config.Aria.ClientID, "ARIA_CLIENT_ID")
	setString(&config.Aria.ClientSecret, "ARIA_CLIENT_SECRET")
	if v := os.Getenv("ARIA_RATE_LIMIT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid ARIA_RATE_LIMIT %q: %w", v, err)
		}
		config.Aria.RateLimit = f
	}

	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// ValidateMetadataServer reports missing settings needed by generate-metadata.
func (c *Config) ValidateMetadataServer() error {
	var missing []string
	if c.MetadataServer.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}
	if c.MetadataServer.Username == "" {
		missing = append(missing, "USERNAME")
	}
	if c.MetadataServer.Password == "" {
		missing = append(missing, "PASSWORD")
	}
	if len(missing) > 0 {
		return fmt.Errorf("metadata server not configured, missing: %s", strings.Join(missing, ", "))
	}
	return nil
}

// ValidateAria reports missing settings needed by send-metadata.
func (c *Config) ValidateAria() error {
	if c.Aria.BaseURL == "" {
		return errors.New("registry not configured, missing: ARIA_URL")
	}
	if c.Aria.ClientID == "" || c.Aria.ClientSecret == "" {
		return errors.New("registry not configured, missing: ARIA_CLIENT_ID, ARIA_CLIENT_SECRET")
	}
	return nil
}

// String returns a string representation of the configuration without secrets
func (c *Config) String() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("DatabasePath: %s", c.DatabasePath))
	parts = append(parts, fmt.Sprintf("MetadataServer: %s", c.MetadataServer.BaseURL))
	parts = append(parts, fmt.Sprintf("OutputPath: %s", c.Metadata.OutputPath))
	parts = append(parts, fmt.Sprintf("Aria: %s", c.Aria.BaseURL))
	return strings.Join(parts, ", ")
}
