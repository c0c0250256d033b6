// Package documents stores keyed JSON documents grouped in collections.
package documents

import (
	"context"

	"github.com/dmitrijs2005/useraccounts/internal/server/models"
)

type Repository interface {
	// Get returns the document or common.ErrorNotFound.
	Get(ctx context.Context, collection, key string) (*models.Document, error)
	// Set creates or replaces the document. With merge, the given fields are
	// shallow-merged into an existing document instead.
	Set(ctx context.Context, collection, key string, fields map[string]any, merge bool) error
	// Update shallow-merges fields into an existing document, or returns
	// common.ErrorNotFound.
	Update(ctx context.Context, collection, key string, fields map[string]any) error
	Delete(ctx context.Context, collection, key string) error
	// List returns every document of collection ordered by key.
	List(ctx context.Context, collection string) ([]*models.Document, error)
}
