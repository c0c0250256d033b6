package backend

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/useraccounts/internal/common"
	"github.com/dmitrijs2005/useraccounts/internal/rpc"
	"google.golang.org/grpc/codes"
)

var (
	ErrEmailInUse         = errors.New("email already in use")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrWeakPassword       = errors.New("weak password")
	ErrWeakCredential     = errors.New("weak credential")
	ErrUserNotFound       = errors.New("user not found")
	ErrWrongCredential    = errors.New("wrong credential")
	ErrUserDisabled       = errors.New("user disabled")
	ErrTooManyAttempts    = errors.New("too many attempts")
	ErrRequiresRecentAuth = errors.New("requires recent authentication")
	ErrUnauthenticated    = errors.New("not signed in")

	ErrNotFound         = errors.New("document not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidArgument  = errors.New("invalid argument")

	// ErrNetwork wraps every transport failure; ErrUnavailable and
	// ErrDeadlineExceeded narrow it down.
	ErrNetwork          = errors.New("network failure")
	ErrUnavailable      = errors.New("backend unavailable")
	ErrDeadlineExceeded = errors.New("deadline exceeded")
)

var appCodes = map[string]error{
	common.CodeEmailInUse:         ErrEmailInUse,
	common.CodeInvalidEmail:       ErrInvalidEmail,
	common.CodeWeakPassword:       ErrWeakPassword,
	common.CodeWrongPassword:      ErrWrongCredential,
	common.CodeUserNotFound:       ErrUserNotFound,
	common.CodeUserDisabled:       ErrUserDisabled,
	common.CodeTooManyRequests:    ErrTooManyAttempts,
	common.CodeRequiresRecentAuth: ErrRequiresRecentAuth,
	common.CodePermissionDenied:   ErrPermissionDenied,
	common.CodeNotFound:           ErrNotFound,
	common.CodeInvalidArgument:    ErrInvalidArgument,
	common.CodeTokenExpired:       ErrUnauthenticated,
	common.CodeUnauthenticated:    ErrUnauthenticated,
}

// mapError turns a gRPC status error into one of the package sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	code, app, ok := rpc.AppCode(err)
	if !ok {
		return err
	}
	if sentinel, known := appCodes[app]; known {
		return sentinel
	}
	switch code {
	case codes.Unavailable, codes.Canceled:
		return fmt.Errorf("%w: %w", ErrNetwork, ErrUnavailable)
	case codes.DeadlineExceeded:
		return fmt.Errorf("%w: %w", ErrNetwork, ErrDeadlineExceeded)
	case codes.Unauthenticated:
		return ErrUnauthenticated
	case codes.PermissionDenied:
		return ErrPermissionDenied
	case codes.NotFound:
		return ErrNotFound
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
