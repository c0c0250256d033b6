package services

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/useraccounts/internal/common"
	"github.com/dmitrijs2005/useraccounts/internal/dbx"
	"github.com/dmitrijs2005/useraccounts/internal/server/models"
	"github.com/dmitrijs2005/useraccounts/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/useraccounts/internal/server/repositories/documents"
	"github.com/dmitrijs2005/useraccounts/internal/server/repositories/refreshtokens"
	"github.com/stretchr/testify/require"
)

// memStore backs every repository with maps. It ignores the DBTX it is bound
// to, so transactions are only visible through the sqlmock expectations.
type memStore struct {
	mu       sync.Mutex
	seq      int
	accounts map[string]*models.Account
	tokens   map[string]*models.RefreshToken
	docs     map[string]map[string]map[string]any

	createErr error
	findErr   error
}

func newMemStore() *memStore {
	return &memStore{
		accounts: map[string]*models.Account{},
		tokens:   map[string]*models.RefreshToken{},
		docs:     map[string]map[string]map[string]any{},
	}
}

func (m *memStore) RunMigrations(context.Context, *sql.DB) error {
	return nil
}

func (m *memStore) Accounts(dbx.DBTX) accounts.Repository {
	return memAccounts{m}
}

func (m *memStore) RefreshTokens(dbx.DBTX) refreshtokens.Repository {
	return memTokens{m}
}

func (m *memStore) Documents(dbx.DBTX) documents.Repository {
	return memDocs{m}
}

func (m *memStore) account(id string) *models.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := *m.accounts[id]
	return &a
}

func (m *memStore) tokensOf(id string) []*models.RefreshToken {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.RefreshToken
	for _, t := range m.tokens {
		if t.AccountID == id {
			c := *t
			out = append(out, &c)
		}
	}
	return out
}

type memAccounts struct{ m *memStore }

func (r memAccounts) Create(_ context.Context, a *models.Account) (*models.Account, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.createErr != nil {
		return nil, r.m.createErr
	}
	for _, x := range r.m.accounts {
		if x.Email == a.Email {
			return nil, common.ErrorAlreadyExists
		}
	}
	r.m.seq++
	a.ID = fmt.Sprintf("acc-%d", r.m.seq)
	a.CreatedAt = time.Now()
	c := *a
	r.m.accounts[a.ID] = &c
	return a, nil
}

func (r memAccounts) GetByEmail(_ context.Context, email string) (*models.Account, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, a := range r.m.accounts {
		if a.Email == email {
			c := *a
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r memAccounts) GetByID(_ context.Context, id string) (*models.Account, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	a, ok := r.m.accounts[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *a
	return &c, nil
}

func (r memAccounts) with(id string, fn func(a *models.Account) error) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	a, ok := r.m.accounts[id]
	if !ok {
		return common.ErrorNotFound
	}
	return fn(a)
}

func (r memAccounts) RecordFailedLogin(_ context.Context, id string, maxFailed int, lockUntil time.Time) error {
	return r.with(id, func(a *models.Account) error {
		if a.FailedLogins+1 >= maxFailed {
			a.FailedLogins = 0
			a.LockedUntil = &lockUntil
			return nil
		}
		a.FailedLogins++
		return nil
	})
}

func (r memAccounts) ResetFailedLogins(_ context.Context, id string) error {
	return r.with(id, func(a *models.Account) error {
		a.FailedLogins, a.LockedUntil = 0, nil
		return nil
	})
}

func (r memAccounts) UpdateDisplayName(_ context.Context, id, name string) error {
	return r.with(id, func(a *models.Account) error {
		a.DisplayName = name
		return nil
	})
}

func (r memAccounts) UpdateEmail(_ context.Context, id, email string) error {
	r.m.mu.Lock()
	for _, x := range r.m.accounts {
		if x.Email == email && x.ID != id {
			r.m.mu.Unlock()
			return common.ErrorAlreadyExists
		}
	}
	r.m.mu.Unlock()
	return r.with(id, func(a *models.Account) error {
		a.Email = email
		return nil
	})
}

func (r memAccounts) UpdateCredential(_ context.Context, id string, salt, verifier []byte) error {
	return r.with(id, func(a *models.Account) error {
		a.Salt, a.Verifier = salt, verifier
		return nil
	})
}

type memTokens struct{ m *memStore }

func (r memTokens) Create(_ context.Context, accountID, token string, authTime time.Time, validity time.Duration) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.tokens[token] = &models.RefreshToken{AccountID: accountID, Token: token, AuthTime: authTime, Expires: time.Now().Add(validity)}
	return nil
}

func (r memTokens) Find(_ context.Context, token string) (*models.RefreshToken, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.findErr != nil {
		return nil, r.m.findErr
	}
	t, ok := r.m.tokens[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *t
	return &c, nil
}

func (r memTokens) Delete(_ context.Context, token string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	delete(r.m.tokens, token)
	return nil
}

func (r memTokens) DeleteForAccount(_ context.Context, accountID, keep string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for tok, t := range r.m.tokens {
		if t.AccountID == accountID && tok != keep {
			delete(r.m.tokens, tok)
		}
	}
	return nil
}

type memDocs struct{ m *memStore }

func (r memDocs) Get(_ context.Context, collection, key string) (*models.Document, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	f, ok := r.m.docs[collection][key]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &models.Document{Collection: collection, Key: key, Fields: copyFields(f)}, nil
}

func (r memDocs) Set(_ context.Context, collection, key string, fields map[string]any, merge bool) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.docs[collection] == nil {
		r.m.docs[collection] = map[string]map[string]any{}
	}
	cur, ok := r.m.docs[collection][key]
	if !ok || !merge {
		r.m.docs[collection][key] = copyFields(fields)
		return nil
	}
	for k, v := range fields {
		cur[k] = v
	}
	return nil
}

func (r memDocs) Update(_ context.Context, collection, key string, fields map[string]any) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	cur, ok := r.m.docs[collection][key]
	if !ok {
		return common.ErrorNotFound
	}
	for k, v := range fields {
		cur[k] = v
	}
	return nil
}

func (r memDocs) Delete(_ context.Context, collection, key string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	delete(r.m.docs[collection], key)
	return nil
}

func (r memDocs) List(_ context.Context, collection string) ([]*models.Document, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*models.Document
	for k, f := range r.m.docs[collection] {
		out = append(out, &models.Document{Collection: collection, Key: k, Fields: copyFields(f)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func copyFields(f map[string]any) map[string]any {
	out := make(map[string]any, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}
