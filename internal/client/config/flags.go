package config

import (
	"flag"
	"io"
	"time"

	"github.com/dmitrijs2005/useraccounts/internal/flagx"
)

func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-i", "-s", "-t", "-l", "-db", "-v"})

	fs := flag.NewFlagSet("client", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "address and port of the server")
	checkInterval := fs.Int("i", int(cfg.SessionCheckInterval.Seconds()), "session check interval (in seconds)")
	splash := fs.Int("s", int(cfg.SplashDuration.Milliseconds()), "minimum splash duration (in milliseconds)")
	fetchTimeout := fs.Int("t", int(cfg.FetchTimeout.Seconds()), "profile fetch timeout (in seconds)")
	fs.BoolVar(&cfg.AlwaysRequireLogin, "l", cfg.AlwaysRequireLogin, "sign out on start")
	fs.StringVar(&cfg.DatabasePath, "db", cfg.DatabasePath, "local database path")
	fs.StringVar(&cfg.LogLevel, "v", cfg.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg.SessionCheckInterval = time.Duration(*checkInterval) * time.Second
	cfg.SplashDuration = time.Duration(*splash) * time.Millisecond
	cfg.FetchTimeout = time.Duration(*fetchTimeout) * time.Second
	return nil
}
