package models

import "time"

// RefreshToken is an opaque, server-stored token. AuthTime is when the
// credential was last checked and survives rotation.
type RefreshToken struct {
	AccountID string
	Token     string
	AuthTime  time.Time
	Expires   time.Time
}
