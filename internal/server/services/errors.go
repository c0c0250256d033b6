// Package services contains the server-side business logic: account
// identity and tokens, the document store with its access policy, and
// presigned avatar transfers.
package services

import "errors"

var (
	ErrInvalidEmail       = errors.New("invalid email")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrEmailInUse         = errors.New("email already in use")
	ErrUserNotFound       = errors.New("user not found")
	ErrWrongPassword      = errors.New("wrong password")
	ErrUserDisabled       = errors.New("user disabled")
	ErrTooManyRequests    = errors.New("too many failed sign-ins")
	ErrRequiresRecentAuth = errors.New("requires recent authentication")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrPermissionDenied   = errors.New("permission denied")
)
