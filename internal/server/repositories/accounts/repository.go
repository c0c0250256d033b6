// Package accounts declares the server-side repository contract for
// registered identities.
package accounts

import (
	"context"
	"time"

	"github.com/dmitrijs2005/useraccounts/internal/server/models"
)

// Repository stores accounts. Lookups that match nothing return
// common.ErrorNotFound; an email taken by another account yields
// common.ErrorAlreadyExists.
type Repository interface {
	Create(ctx context.Context, account *models.Account) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	GetByID(ctx context.Context, id string) (*models.Account, error)

	// RecordFailedLogin counts a failed sign-in. Reaching maxFailed locks the
	// account until lockUntil and restarts the count.
	RecordFailedLogin(ctx context.Context, id string, maxFailed int, lockUntil time.Time) error
	ResetFailedLogins(ctx context.Context, id string) error

	UpdateDisplayName(ctx context.Context, id, name string) error
	UpdateEmail(ctx context.Context, id, email string) error
	UpdateCredential(ctx context.Context, id string, salt, verifier []byte) error
}
