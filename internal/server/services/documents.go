package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/useraccounts/internal/common"
	"github.com/dmitrijs2005/useraccounts/internal/server/models"
	"github.com/dmitrijs2005/useraccounts/internal/server/repositories/repomanager"
)

// DocumentService fronts the document repository with the access policy:
// a profile document may only be touched by its owner, employee documents by
// any signed-in account, and every other collection by nobody.
type DocumentService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewDocumentService(db *sql.DB, m repomanager.RepositoryManager) *DocumentService {
	return &DocumentService{db: db, repomanager: m}
}

func authorize(caller, collection, key string) error {
	if caller == "" {
		return ErrUnauthenticated
	}
	switch collection {
	case common.CollectionProfiles:
		if key != caller {
			return ErrPermissionDenied
		}
		return nil
	case common.CollectionEmployees:
		if key == "" {
			return ErrInvalidArgument
		}
		return nil
	default:
		return ErrPermissionDenied
	}
}

func (s *DocumentService) Get(ctx context.Context, caller, collection, key string) (*models.Document, error) {
	if err := authorize(caller, collection, key); err != nil {
		return nil, err
	}
	return s.repomanager.Documents(s.db).Get(ctx, collection, key)
}

func (s *DocumentService) Set(ctx context.Context, caller, collection, key string, fields map[string]any, merge bool) error {
	if err := authorize(caller, collection, key); err != nil {
		return err
	}
	return s.repomanager.Documents(s.db).Set(ctx, collection, key, fields, merge)
}

func (s *DocumentService) Update(ctx context.Context, caller, collection, key string, fields map[string]any) error {
	if err := authorize(caller, collection, key); err != nil {
		return err
	}
	return s.repomanager.Documents(s.db).Update(ctx, collection, key, fields)
}

func (s *DocumentService) Delete(ctx context.Context, caller, collection, key string) error {
	if err := authorize(caller, collection, key); err != nil {
		return err
	}
	return s.repomanager.Documents(s.db).Delete(ctx, collection, key)
}

// List is only allowed on collections readable as a whole, which excludes
// profiles.
func (s *DocumentService) List(ctx context.Context, caller, collection string) ([]*models.Document, error) {
	if caller == "" {
		return nil, ErrUnauthenticated
	}
	if collection != common.CollectionEmployees {
		return nil, ErrPermissionDenied
	}
	docs, err := s.repomanager.Documents(s.db).List(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("error listing %s: %w", collection, err)
	}
	return docs, nil
}
