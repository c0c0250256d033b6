// Package common contains shared constants, wire error codes and sentinel
// errors used by both the useraccounts client and server.
package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on outbound requests.
const AccessTokenHeaderName = "access_token"

// Collection names of the document store.
const (
	CollectionProfiles  = "usuarios"
	CollectionEmployees = "empleados"
)

// MinPasswordLength is the shortest credential accepted anywhere in the system.
const MinPasswordLength = 6
