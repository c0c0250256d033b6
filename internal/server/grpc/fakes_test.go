package grpc

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/useraccounts/internal/common"
	"github.com/dmitrijs2005/useraccounts/internal/server/auth"
	"github.com/dmitrijs2005/useraccounts/internal/server/models"
	"github.com/dmitrijs2005/useraccounts/internal/server/services"
)

const testSecret = "test-secret"

// fakeIdentity mints real access tokens so the interceptor chain runs
// unchanged.
type fakeIdentity struct {
	mu             sync.Mutex
	seq            int
	accessValidity time.Duration
	accounts       map[string]*models.Account // by email
	refresh        map[string]string          // token -> account id
	calls          []string
	err            error
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{
		accessValidity: time.Hour,
		accounts:       map[string]*models.Account{},
		refresh:        map[string]string{},
	}
}

// caller must hold f.mu
func (f *fakeIdentity) issue(id string) *services.TokenPair {
	f.seq++
	access, _ := auth.GenerateToken(id, time.Now(), []byte(testSecret), f.accessValidity)
	r := fmt.Sprintf("r-%d", f.seq)
	f.refresh[r] = id
	return &services.TokenPair{AccessToken: access, RefreshToken: r}
}

// caller must hold f.mu
func (f *fakeIdentity) byID(id string) *models.Account {
	for _, a := range f.accounts {
		if a.ID == id {
			return a
		}
	}
	return nil
}

func (f *fakeIdentity) record(call string) error {
	f.calls = append(f.calls, call)
	return f.err
}

func (f *fakeIdentity) SignUp(_ context.Context, email string, salt, verifier []byte) (*services.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("SignUp"); err != nil {
		return nil, err
	}
	if _, ok := f.accounts[email]; ok {
		return nil, services.ErrEmailInUse
	}
	f.seq++
	a := &models.Account{ID: fmt.Sprintf("acc-%d", f.seq), Email: email, Salt: salt, Verifier: verifier}
	f.accounts[email] = a
	c := *a
	return &services.Session{Account: &c, Tokens: f.issue(a.ID)}, nil
}

func (f *fakeIdentity) GetSalt(_ context.Context, email string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("GetSalt"); err != nil {
		return nil, err
	}
	if a, ok := f.accounts[email]; ok {
		return a.Salt, nil
	}
	return []byte("random-salt-1234"), nil
}

func (f *fakeIdentity) SignIn(_ context.Context, email string, verifier []byte) (*services.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("SignIn"); err != nil {
		return nil, err
	}
	a, ok := f.accounts[email]
	if !ok {
		return nil, services.ErrUserNotFound
	}
	if !bytes.Equal(a.Verifier, verifier) {
		return nil, services.ErrWrongPassword
	}
	c := *a
	return &services.Session{Account: &c, Tokens: f.issue(a.ID)}, nil
}

func (f *fakeIdentity) RefreshToken(_ context.Context, token string) (*services.TokenPair, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("RefreshToken"); err != nil {
		return nil, err
	}
	id, ok := f.refresh[token]
	if !ok {
		return nil, services.ErrUnauthenticated
	}
	delete(f.refresh, token)
	f.accessValidity = time.Hour
	return f.issue(id), nil
}

func (f *fakeIdentity) SignOut(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.refresh, token)
	return f.record("SignOut")
}

func (f *fakeIdentity) Verify(_ context.Context, id string) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("Verify"); err != nil {
		return nil, err
	}
	a := f.byID(id)
	if a == nil || a.Disabled {
		return nil, services.ErrUnauthenticated
	}
	c := *a
	return &c, nil
}

func (f *fakeIdentity) UpdateDisplayName(_ context.Context, p auth.Principal, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("UpdateDisplayName"); err != nil {
		return err
	}
	a := f.byID(p.AccountID)
	if a == nil {
		return services.ErrUnauthenticated
	}
	a.DisplayName = name
	return nil
}

func (f *fakeIdentity) UpdateEmail(_ context.Context, p auth.Principal, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("UpdateEmail"); err != nil {
		return err
	}
	return services.ErrRequiresRecentAuth
}

func (f *fakeIdentity) UpdateCredential(_ context.Context, p auth.Principal, salt, verifier []byte) (*services.TokenPair, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("UpdateCredential"); err != nil {
		return nil, err
	}
	a := f.byID(p.AccountID)
	a.Salt, a.Verifier = salt, verifier
	f.refresh = map[string]string{}
	return f.issue(a.ID), nil
}

func (f *fakeIdentity) disable(email string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[email].Disabled = true
}

// fakeDocuments applies the profile ownership rule and nothing else.
type fakeDocuments struct {
	mu   sync.Mutex
	docs map[string]map[string]map[string]any
}

func newFakeDocuments() *fakeDocuments {
	return &fakeDocuments{docs: map[string]map[string]map[string]any{}}
}

func (f *fakeDocuments) check(caller, collection, key string) error {
	if collection == common.CollectionProfiles && caller != key {
		return services.ErrPermissionDenied
	}
	return nil
}

func (f *fakeDocuments) Get(_ context.Context, caller, collection, key string) (*models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(caller, collection, key); err != nil {
		return nil, err
	}
	d, ok := f.docs[collection][key]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &models.Document{Collection: collection, Key: key, Fields: d}, nil
}

func (f *fakeDocuments) Set(_ context.Context, caller, collection, key string, fields map[string]any, merge bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(caller, collection, key); err != nil {
		return err
	}
	if f.docs[collection] == nil {
		f.docs[collection] = map[string]map[string]any{}
	}
	cur, ok := f.docs[collection][key]
	if !ok || !merge {
		f.docs[collection][key] = fields
		return nil
	}
	for k, v := range fields {
		cur[k] = v
	}
	return nil
}

func (f *fakeDocuments) Update(_ context.Context, caller, collection, key string, fields map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(caller, collection, key); err != nil {
		return err
	}
	cur, ok := f.docs[collection][key]
	if !ok {
		return common.ErrorNotFound
	}
	for k, v := range fields {
		cur[k] = v
	}
	return nil
}

func (f *fakeDocuments) Delete(_ context.Context, caller, collection, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(caller, collection, key); err != nil {
		return err
	}
	delete(f.docs[collection], key)
	return nil
}

func (f *fakeDocuments) List(_ context.Context, _ string, collection string) ([]*models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Document
	for k, d := range f.docs[collection] {
		out = append(out, &models.Document{Collection: collection, Key: k, Fields: d})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

type fakeAvatars struct{}

func (fakeAvatars) UploadURL(_ context.Context, id string) (string, string, error) {
	return "avatars/" + id + "/1", "http://objects/avatars/" + id + "/1?sig", nil
}

func (fakeAvatars) DownloadURL(_ context.Context, id, key string) (string, error) {
	if key != "avatars/"+id+"/1" {
		return "", services.ErrPermissionDenied
	}
	return "http://objects/" + key + "?sig", nil
}
