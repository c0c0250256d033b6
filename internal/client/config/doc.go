// Package config loads runtime configuration for the useraccounts client.
//
// Sources are applied in order, each overriding the previous one:
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with -c or -config.
//  3. Command-line flags.
//
// Supported flags
//
//	-a string   address:port of the backend gRPC endpoint
//	-i int      session re-validation interval (seconds)
//	-s int      minimum splash duration (milliseconds)
//	-t int      profile fetch timeout (seconds)
//	-l          always require login on start
//	-db string  path of the local SQLite database
//	-v string   log level (debug, info, warn, error)
//
// JSON durations accept Go duration strings or integer nanoseconds:
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "session_check_interval": "30s",
//	  "splash_duration": "3s",
//	  "fetch_timeout": "5s",
//	  "always_require_login": false,
//	  "database_path": "useraccounts.db",
//	  "log_level": "info"
//	}
package config
