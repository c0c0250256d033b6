package config

import (
	"flag"
	"io"
	"time"

	"github.com/dmitrijs2005/useraccounts/internal/flagx"
)

// parseFlags overlays config with command-line flags:
//
//	-a string   gRPC bind address (e.g., ":50051")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-v string   log level
//	-t int      access token validity, minutes
//	-r int      refresh token validity, minutes
//	-w int      recent-auth window, minutes
//	-m int      failed sign-ins before lockout
//	-k int      lockout duration, minutes
//	-u -p -b -g -e  S3 user, password, bucket, region, endpoint
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-d", "-s", "-v", "-t", "-r", "-w", "-m", "-k", "-u", "-p", "-b", "-g", "-e"})

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.LogLevel, "v", config.LogLevel, "log level")

	access := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access token validity (in minutes)")
	refresh := fs.Int("r", int(config.RefreshTokenValidityDuration.Minutes()), "refresh token validity (in minutes)")
	recent := fs.Int("w", int(config.RecentAuthWindow.Minutes()), "recent authentication window (in minutes)")
	fs.IntVar(&config.MaxFailedLogins, "m", config.MaxFailedLogins, "failed sign-ins before lockout")
	lockout := fs.Int("k", int(config.LockoutDuration.Minutes()), "lockout duration (in minutes)")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(args); err != nil {
		return err
	}

	config.AccessTokenValidityDuration = time.Duration(*access) * time.Minute
	config.RefreshTokenValidityDuration = time.Duration(*refresh) * time.Minute
	config.RecentAuthWindow = time.Duration(*recent) * time.Minute
	config.LockoutDuration = time.Duration(*lockout) * time.Minute
	return nil
}
