package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds runtime settings for the farmmarket client.
//
// Durations are time.Duration values; the JSON file accepts "3s" strings or
// integer nanoseconds, the environment accepts "3s" strings.
type Config struct {
	GatewayURL     string `env:"FARMMARKET_GATEWAY_URL"`
	GatewayAnonKey string `env:"FARMMARKET_ANON_KEY"`

	// DatabaseDSN switches table access to a direct PostgreSQL connection.
	DatabaseDSN string `env:"FARMMARKET_DATABASE_DSN"`

	StatePath    string `env:"FARMMARKET_STATE_PATH"`
	DeviceSecret string `env:"FARMMARKET_DEVICE_SECRET"`

	S3Endpoint       string `env:"FARMMARKET_S3_ENDPOINT"`
	S3Region         string `env:"FARMMARKET_S3_REGION"`
	S3AccessKey      string `env:"FARMMARKET_S3_ACCESS_KEY"`
	S3SecretKey      string `env:"FARMMARKET_S3_SECRET_KEY"`
	StoragePublicURL string `env:"FARMMARKET_STORAGE_PUBLIC_URL"`

	RequestTimeout      time.Duration `env:"FARMMARKET_REQUEST_TIMEOUT"`
	OnlineCheckInterval time.Duration `env:"FARMMARKET_ONLINE_CHECK_INTERVAL"`
	LogLevel            string        `env:"FARMMARKET_LOG_LEVEL"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.GatewayURL = "http://127.0.0.1:54321"
	c.StatePath = defaultStatePath()
	c.S3Region = "us-east-1"
	c.RequestTimeout = 15 * time.Second
	c.OnlineCheckInterval = 3 * time.Second
	c.LogLevel = "warn"
}

func defaultStatePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "farmmarket.db"
	}
	return filepath.Join(home, ".farmmarket", "state.db")
}

// deriveStorage fills the storage endpoints from the gateway URL when they
// are not set. Supabase serves the S3 API and public objects under it.
func (c *Config) deriveStorage() {
	base := strings.TrimRight(c.GatewayURL, "/")
	if base == "" {
		return
	}
	if c.S3Endpoint == "" && c.S3AccessKey != "" {
		c.S3Endpoint = base + "/storage/v1/s3"
	}
	if c.StoragePublicURL == "" {
		c.StoragePublicURL = base + "/storage/v1/object/public"
	}
}

// LoadConfig applies defaults, then the JSON file, the environment and the
// command-line flags. Later sources take precedence over earlier ones.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseJson(cfg); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg); err != nil {
		return nil, err
	}

	cfg.deriveStorage()
	return cfg, nil
}
