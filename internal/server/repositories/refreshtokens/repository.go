// Package refreshtokens declares the server-side repository contract for
// managing refresh tokens in persistent storage.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/useraccounts/internal/server/models"
)

// Repository defines operations for issuing, retrieving, and revoking refresh tokens.
type Repository interface {
	// Create stores a new refresh token for accountID with an expiry of
	// now+validity. authTime is carried over on rotation.
	Create(ctx context.Context, accountID, token string, authTime time.Time, validity time.Duration) error

	// Find looks up a refresh token by its opaque token string and returns its
	// metadata, or common.ErrorNotFound.
	Find(ctx context.Context, token string) (*models.RefreshToken, error)

	// Delete removes a refresh token. Deleting a non-existent token is not an error.
	Delete(ctx context.Context, token string) error

	// DeleteForAccount removes every token of accountID except keep.
	DeleteForAccount(ctx context.Context, accountID, keep string) error
}
