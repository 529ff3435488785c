package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/farmmarket/internal/flagx"
)

// duration unmarshals from "3s" or from integer nanoseconds.
type duration time.Duration

func (d *duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch val := v.(type) {
	case float64:
		*d = duration(time.Duration(val))
	case string:
		p, err := time.ParseDuration(val)
		if err != nil {
			return err
		}
		*d = duration(p)
	default:
		return errors.New("invalid duration")
	}
	return nil
}

// JsonConfig is the on-disk shape. Absent keys leave the current value.
type JsonConfig struct {
	GatewayURL          *string   `json:"gateway_url"`
	GatewayAnonKey      *string   `json:"gateway_anon_key"`
	DatabaseDSN         *string   `json:"database_dsn"`
	StatePath           *string   `json:"state_path"`
	DeviceSecret        *string   `json:"device_secret"`
	S3Endpoint          *string   `json:"s3_endpoint"`
	S3Region            *string   `json:"s3_region"`
	S3AccessKey         *string   `json:"s3_access_key"`
	S3SecretKey         *string   `json:"s3_secret_key"`
	StoragePublicURL    *string   `json:"storage_public_url"`
	RequestTimeout      *duration `json:"request_timeout"`
	OnlineCheckInterval *duration `json:"online_check_interval"`
	LogLevel            *string   `json:"log_level"`
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func setDuration(dst *time.Duration, src *duration) {
	if src != nil {
		*dst = time.Duration(*src)
	}
}

// parseJson overlays cfg with the file named by -c or -config. Without the
// flag nothing is loaded.
func parseJson(cfg *Config) error {
	path := flagx.ConfigPath()
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	set(&cfg.GatewayURL, jc.GatewayURL)
	set(&cfg.GatewayAnonKey, jc.GatewayAnonKey)
	set(&cfg.DatabaseDSN, jc.DatabaseDSN)
	set(&cfg.StatePath, jc.StatePath)
	set(&cfg.DeviceSecret, jc.DeviceSecret)
	set(&cfg.S3Endpoint, jc.S3Endpoint)
	set(&cfg.S3Region, jc.S3Region)
	set(&cfg.S3AccessKey, jc.S3AccessKey)
	set(&cfg.S3SecretKey, jc.S3SecretKey)
	set(&cfg.StoragePublicURL, jc.StoragePublicURL)
	setDuration(&cfg.RequestTimeout, jc.RequestTimeout)
	setDuration(&cfg.OnlineCheckInterval, jc.OnlineCheckInterval)
	set(&cfg.LogLevel, jc.LogLevel)
	return nil
}
