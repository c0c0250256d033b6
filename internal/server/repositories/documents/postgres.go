package documents

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/useraccounts/internal/common"
	"github.com/dmitrijs2005/useraccounts/internal/dbx"
	"github.com/dmitrijs2005/useraccounts/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func encode(fields map[string]any) (string, error) {
	if fields == nil {
		fields = map[string]any{}
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("encode fields: %w", err)
	}
	return string(b), nil
}

func decode(raw []byte) (map[string]any, error) {
	fields := map[string]any{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode fields: %w", err)
	}
	return fields, nil
}

func (r *PostgresRepository) Get(ctx context.Context, collection, key string) (*models.Document, error) {
	query :=
		`SELECT fields, updated_at FROM documents
		 WHERE collection = $1 AND key = $2
		 `

	d := &models.Document{Collection: collection, Key: key}
	var raw []byte
	err := r.db.QueryRowContext(ctx, query, collection, key).Scan(&raw, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if d.Fields, err = decode(raw); err != nil {
		return nil, err
	}
	return d, nil
}

const (
	replaceQuery = `INSERT INTO documents (collection, key, fields, updated_at)
		 VALUES ($1, $2, $3::jsonb, now())
		 ON CONFLICT (collection, key) DO UPDATE SET fields = EXCLUDED.fields, updated_at = now()
		 `
	mergeQuery = `INSERT INTO documents (collection, key, fields, updated_at)
		 VALUES ($1, $2, $3::jsonb, now())
		 ON CONFLICT (collection, key) DO UPDATE SET fields = documents.fields || EXCLUDED.fields, updated_at = now()
		 `
)

func (r *PostgresRepository) Set(ctx context.Context, collection, key string, fields map[string]any, merge bool) error {
	raw, err := encode(fields)
	if err != nil {
		return err
	}
	query := replaceQuery
	if merge {
		query = mergeQuery
	}
	if _, err := r.db.ExecContext(ctx, query, collection, key, raw); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Update(ctx context.Context, collection, key string, fields map[string]any) error {
	raw, err := encode(fields)
	if err != nil {
		return err
	}
	query :=
		`UPDATE documents SET fields = fields || $3::jsonb, updated_at = now()
		 WHERE collection = $1 AND key = $2
		 `
	res, err := r.db.ExecContext(ctx, query, collection, key, raw)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, collection, key string) error {
	query :=
		`DELETE FROM documents
		 WHERE collection = $1 AND key = $2
		 `
	if _, err := r.db.ExecContext(ctx, query, collection, key); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) List(ctx context.Context, collection string) ([]*models.Document, error) {
	query :=
		`SELECT key, fields, updated_at FROM documents
		 WHERE collection = $1
		 ORDER BY key
		 `

	rows, err := r.db.QueryContext(ctx, query, collection)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.Document
	for rows.Next() {
		d := &models.Document{Collection: collection}
		var raw []byte
		if err := rows.Scan(&d.Key, &raw, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if d.Fields, err = decode(raw); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}
