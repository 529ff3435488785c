package config

import (
	"flag"
	"io"
	"os"
	"time"

	"github.com/dmitrijs2005/farmmarket/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
//	-u string   gateway base URL
//	-k string   gateway anon key
//	-d string   PostgreSQL DSN for direct table access
//	-s string   local state database path
//	-l string   log level
//	-t int      request timeout (seconds)
//	-i int      online check interval (seconds)
//
// os.Args is filtered with flagx.FilterArgs so flags owned by other stages
// (-c) do not fail the parse.
func parseFlags(cfg *Config) error {
	args := flagx.FilterArgs(os.Args[1:], []string{"-u", "-k", "-d", "-s", "-l", "-t", "-i"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.GatewayURL, "u", cfg.GatewayURL, "gateway base URL")
	fs.StringVar(&cfg.GatewayAnonKey, "k", cfg.GatewayAnonKey, "gateway anon key")
	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "PostgreSQL DSN for direct table access")
	fs.StringVar(&cfg.StatePath, "s", cfg.StatePath, "local state database path")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level (debug, info, warn, error)")
	requestTimeout := fs.Int("t", int(cfg.RequestTimeout.Seconds()), "request timeout (in seconds)")
	onlineCheckInterval := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	// only explicit flags touch durations; sub-second values survive otherwise
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t":
			cfg.RequestTimeout = time.Duration(*requestTimeout) * time.Second
		case "i":
			cfg.OnlineCheckInterval = time.Duration(*onlineCheckInterval) * time.Second
		}
	})
	return nil
}
