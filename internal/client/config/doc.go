// Package config loads runtime configuration for the farmmarket client.
//
// Sources, in order of precedence (later wins):
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with -c or -config.
//  3. FARMMARKET_* environment variables.
//  4. Command-line flags.
//
// Example JSON file:
//
//	{
//	  "gateway_url": "https://xyz.supabase.co",
//	  "gateway_anon_key": "eyJ...",
//	  "request_timeout": "10s",
//	  "online_check_interval": 3000000000
//	}
//
// When S3 credentials are given without an endpoint, the endpoint and the
// public object URL are derived from the gateway URL.
package config
