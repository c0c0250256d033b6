// Package models defines server-side data models persisted in the database.
package models

import "time"

// Account is a registered identity. Email is stored lower-cased; the server
// only ever sees the salt and verifier derived on the client.
type Account struct {
	ID           string
	Email        string
	DisplayName  string
	Salt         []byte
	Verifier     []byte
	Disabled     bool
	FailedLogins int
	LockedUntil  *time.Time
	CreatedAt    time.Time
}

// Locked reports whether sign-ins are refused at now.
func (a *Account) Locked(now time.Time) bool {
	return a.LockedUntil != nil && now.Before(*a.LockedUntil)
}
