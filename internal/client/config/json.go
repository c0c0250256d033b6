package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/useraccounts/internal/flagx"
	"github.com/dmitrijs2005/useraccounts/internal/timex"
)

// JsonConfig is the on-disk shape of the client configuration. Absent keys
// leave the current value untouched.
type JsonConfig struct {
	ServerEndpointAddr   string          `json:"server_endpoint_addr"`
	SessionCheckInterval *timex.Duration `json:"session_check_interval"`
	SplashDuration       *timex.Duration `json:"splash_duration"`
	FetchTimeout         *timex.Duration `json:"fetch_timeout"`
	AlwaysRequireLogin   *bool           `json:"always_require_login"`
	DatabasePath         string          `json:"database_path"`
	LogLevel             string          `json:"log_level"`
}

func parseJson(cfg *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return err
	}

	if jc.ServerEndpointAddr != "" {
		cfg.ServerEndpointAddr = jc.ServerEndpointAddr
	}
	if jc.SessionCheckInterval != nil {
		cfg.SessionCheckInterval = jc.SessionCheckInterval.Duration
	}
	if jc.SplashDuration != nil {
		cfg.SplashDuration = jc.SplashDuration.Duration
	}
	if jc.FetchTimeout != nil {
		cfg.FetchTimeout = jc.FetchTimeout.Duration
	}
	if jc.AlwaysRequireLogin != nil {
		cfg.AlwaysRequireLogin = *jc.AlwaysRequireLogin
	}
	if jc.DatabasePath != "" {
		cfg.DatabasePath = jc.DatabasePath
	}
	if jc.LogLevel != "" {
		cfg.LogLevel = jc.LogLevel
	}
	return nil
}
