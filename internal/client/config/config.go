package config

import (
	"os"
	"time"
)

// Config holds runtime settings for the client.
type Config struct {
	ServerEndpointAddr   string
	SessionCheckInterval time.Duration
	SplashDuration       time.Duration
	FetchTimeout         time.Duration
	AlwaysRequireLogin   bool
	DatabasePath         string
	LogLevel             string
}

// LoadDefaults populates c with the stock values.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.SessionCheckInterval = 30 * time.Second
	c.SplashDuration = 3000 * time.Millisecond
	c.FetchTimeout = 5 * time.Second
	c.AlwaysRequireLogin = false
	c.DatabasePath = "useraccounts.db"
	c.LogLevel = "info"
}

// Load applies defaults, the JSON file named in args (if any) and then the
// flags in args.
func Load(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfig is Load over os.Args. It panics on malformed input.
func LoadConfig() *Config {
	cfg, err := Load(os.Args[1:])
	if err != nil {
		panic(err)
	}
	return cfg
}
