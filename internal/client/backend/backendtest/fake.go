// Package backendtest provides an in-memory backend for tests of the
// packages built on top of backend.IdentityService and backend.DocumentStore.
package backendtest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/dmitrijs2005/useraccounts/internal/client/backend"
	"github.com/dmitrijs2005/useraccounts/internal/pubsub"
	"google.golang.org/protobuf/types/known/structpb"
)

type account struct {
	identity backend.Identity
	password string
}

// Fake implements backend.IdentityService, backend.DocumentStore and
// backend.AvatarStore in memory. Errors can be injected per method with
// FailWith and calls can be held back with Gate.
type Fake struct {
	// AvatarBaseURL prefixes the URLs handed out by the avatar methods.
	AvatarBaseURL string

	mu       sync.Mutex
	seq      int
	accounts map[string]*account // by email
	current  *backend.Identity
	known    bool
	held     bool
	last     *backend.Identity
	docs     map[string]map[string]backend.Document
	errs     map[string]error
	gates    map[string]chan struct{}
	calls    []string

	hub pubsub.Hub[*backend.Identity]
}

var (
	_ backend.IdentityService = (*Fake)(nil)
	_ backend.DocumentStore   = (*Fake)(nil)
	_ backend.AvatarStore     = (*Fake)(nil)
)

func New() *Fake {
	return &Fake{
		AvatarBaseURL: "http://storage.local",
		accounts:      map[string]*account{},
		docs:          map[string]map[string]backend.Document{},
		errs:          map[string]error{},
		gates:         map[string]chan struct{}{},
	}
}

// FailWith makes every later call of method return err. A nil err clears it.
func (f *Fake) FailWith(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.errs, method)
		return
	}
	f.errs[method] = err
}

// Gate holds later calls of method until release is called. The calls
// ignore context cancellation while held.
func (f *Fake) Gate(method string) (release func()) {
	ch := make(chan struct{})
	f.mu.Lock()
	f.gates[method] = ch
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			if f.gates[method] == ch {
				delete(f.gates, method)
			}
			f.mu.Unlock()
			close(ch)
		})
	}
}

// Calls lists the calls made so far as "Method arg...".
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// CallCount counts the calls of method.
func (f *Fake) CallCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == method || strings.HasPrefix(c, method+" ") {
			n++
		}
	}
	return n
}

// enter records the call, waits on its gate and returns the injected error.
func (f *Fake) enter(method string, args ...string) error {
	f.mu.Lock()
	f.calls = append(f.calls, strings.Join(append([]string{method}, args...), " "))
	gate := f.gates[method]
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errs[method]
}

// AddAccount registers an account without signing in.
func (f *Fake) AddAccount(email, password, displayName string) backend.Identity {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addAccount(email, password, displayName)
}

// caller must hold f.mu
func (f *Fake) addAccount(email, password, displayName string) backend.Identity {
	f.seq++
	a := &account{
		identity: backend.Identity{UID: fmt.Sprintf("uid-%d", f.seq), Email: email, DisplayName: displayName},
		password: password,
	}
	f.accounts[email] = a
	return a.identity
}

// Current returns the signed-in identity.
func (f *Fake) Current() *backend.Identity {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.currentLocked()
}

// caller must hold f.mu
func (f *Fake) currentLocked() *backend.Identity {
	if f.current == nil {
		return nil
	}
	id := *f.current
	return &id
}

// Revoke ends the session as if the server had revoked it.
func (f *Fake) Revoke() {
	f.mu.Lock()
	f.current = nil
	f.held = false
	f.mu.Unlock()
	f.notify(false)
}

// notify mirrors the real backend: subscribers hear about changes only, and
// nothing while a sign-up is held back.
func (f *Fake) notify(force bool) {
	f.mu.Lock()
	cur := f.currentLocked()
	same := (cur == nil && f.last == nil) || (cur != nil && f.last != nil && *cur == *f.last)
	if !force && (f.held || (f.known && same)) {
		f.mu.Unlock()
		return
	}
	f.known, f.held, f.last = true, false, cur
	f.mu.Unlock()

	var out *backend.Identity
	if cur != nil {
		id := *cur
		out = &id
	}
	f.hub.Publish(out)
}

func (f *Fake) SignUp(ctx context.Context, email, password string) (backend.Identity, error) {
	if err := f.enter("SignUp", email); err != nil {
		return backend.Identity{}, err
	}
	email = strings.ToLower(strings.TrimSpace(email))

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.accounts[email]; ok {
		return backend.Identity{}, backend.ErrEmailInUse
	}
	if len([]rune(password)) < 6 {
		return backend.Identity{}, backend.ErrWeakPassword
	}
	id := f.addAccount(email, password, "")
	f.current = &id
	f.held = true
	return id, nil
}

func (f *Fake) SignIn(ctx context.Context, email, password string) (backend.Identity, error) {
	if err := f.enter("SignIn", email); err != nil {
		return backend.Identity{}, err
	}
	email = strings.ToLower(strings.TrimSpace(email))

	f.mu.Lock()
	a, ok := f.accounts[email]
	switch {
	case !ok:
		f.mu.Unlock()
		return backend.Identity{}, backend.ErrUserNotFound
	case a.password != password:
		f.mu.Unlock()
		return backend.Identity{}, backend.ErrWrongCredential
	}
	id := a.identity
	f.current = &id
	f.mu.Unlock()

	f.Announce()
	return id, nil
}

func (f *Fake) SignOut(ctx context.Context) error {
	err := f.enter("SignOut")
	f.Revoke()
	return err
}

// mutate applies fn to the signed-in account and announces the result.
func (f *Fake) mutate(fn func(a *account) error) error {
	f.mu.Lock()
	if f.current == nil {
		f.mu.Unlock()
		return backend.ErrUnauthenticated
	}
	var a *account
	for _, acc := range f.accounts {
		if acc.identity.UID == f.current.UID {
			a = acc
		}
	}
	if a == nil {
		f.mu.Unlock()
		return backend.ErrUnauthenticated
	}
	if err := fn(a); err != nil {
		f.mu.Unlock()
		return err
	}
	id := a.identity
	f.current = &id
	f.mu.Unlock()

	f.notify(false)
	return nil
}

func (f *Fake) UpdateDisplayName(ctx context.Context, name string) error {
	if err := f.enter("UpdateDisplayName", name); err != nil {
		return err
	}
	return f.mutate(func(a *account) error {
		a.identity.DisplayName = name
		return nil
	})
}

func (f *Fake) UpdateEmail(ctx context.Context, email string) error {
	if err := f.enter("UpdateEmail", email); err != nil {
		return err
	}
	email = strings.ToLower(strings.TrimSpace(email))
	return f.mutate(func(a *account) error {
		if other, ok := f.accounts[email]; ok && other != a {
			return backend.ErrEmailInUse
		}
		delete(f.accounts, a.identity.Email)
		a.identity.Email = email
		a.identity.EmailVerified = false
		f.accounts[email] = a
		return nil
	})
}

func (f *Fake) UpdateCredential(ctx context.Context, password string) error {
	if err := f.enter("UpdateCredential"); err != nil {
		return err
	}
	if len([]rune(password)) < 6 {
		return backend.ErrWeakCredential
	}
	return f.mutate(func(a *account) error {
		a.password = password
		return nil
	})
}

func (f *Fake) Subscribe(fn func(*backend.Identity)) func() {
	f.mu.Lock()
	known := f.known
	var last *backend.Identity
	if f.last != nil {
		id := *f.last
		last = &id
	}
	f.mu.Unlock()
	if known {
		return f.hub.SubscribeWith(fn, last)
	}
	return f.hub.Subscribe(fn)
}

func (f *Fake) Announce() {
	f.notify(true)
}

// wire converts fields the way the gRPC transport does: numbers come back
// as float64 and non-JSON values are rejected.
func wire(fields backend.Document) (backend.Document, error) {
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return backend.Document(s.AsMap()), nil
}

// PutDocument stores a document directly, bypassing call recording.
func (f *Fake) PutDocument(collection, key string, fields backend.Document) {
	doc, err := wire(fields)
	if err != nil {
		panic(err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.docs[collection] == nil {
		f.docs[collection] = map[string]backend.Document{}
	}
	f.docs[collection][key] = doc
}

// Document returns a copy of the stored document.
func (f *Fake) Document(collection, key string) (backend.Document, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[collection][key]
	if !ok {
		return nil, false
	}
	return copyDoc(doc), true
}

func copyDoc(doc backend.Document) backend.Document {
	out := make(backend.Document, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}

func (f *Fake) Get(ctx context.Context, collection, key string) (backend.Document, error) {
	if err := f.enter("Get", collection, key); err != nil {
		return nil, err
	}
	doc, ok := f.Document(collection, key)
	if !ok {
		return nil, backend.ErrNotFound
	}
	return doc, nil
}

func (f *Fake) Set(ctx context.Context, collection, key string, fields backend.Document, merge bool) error {
	if err := f.enter("Set", collection, key); err != nil {
		return err
	}
	doc, err := wire(fields)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.docs[collection] == nil {
		f.docs[collection] = map[string]backend.Document{}
	}
	if cur, ok := f.docs[collection][key]; ok && merge {
		for k, v := range doc {
			cur[k] = v
		}
		return nil
	}
	f.docs[collection][key] = doc
	return nil
}

func (f *Fake) Update(ctx context.Context, collection, key string, fields backend.Document) error {
	if err := f.enter("Update", collection, key); err != nil {
		return err
	}
	doc, err := wire(fields)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.docs[collection][key]
	if !ok {
		return backend.ErrNotFound
	}
	for k, v := range doc {
		cur[k] = v
	}
	return nil
}

func (f *Fake) Delete(ctx context.Context, collection, key string) error {
	if err := f.enter("Delete", collection, key); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.docs[collection], key)
	return nil
}

func (f *Fake) List(ctx context.Context, collection string) ([]backend.Item, error) {
	if err := f.enter("List", collection); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.docs[collection]))
	for k := range f.docs[collection] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	items := make([]backend.Item, 0, len(keys))
	for _, k := range keys {
		items = append(items, backend.Item{Key: k, Fields: copyDoc(f.docs[collection][k])})
	}
	return items, nil
}

func (f *Fake) PresignAvatarUpload(ctx context.Context) (string, string, error) {
	if err := f.enter("PresignAvatarUpload"); err != nil {
		return "", "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == nil {
		return "", "", backend.ErrUnauthenticated
	}
	f.seq++
	key := fmt.Sprintf("avatars/%s/%d", f.current.UID, f.seq)
	return key, f.AvatarBaseURL + "/" + key, nil
}

func (f *Fake) PresignAvatarDownload(ctx context.Context, key string) (string, error) {
	if err := f.enter("PresignAvatarDownload", key); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == nil {
		return "", backend.ErrUnauthenticated
	}
	if !strings.HasPrefix(key, "avatars/"+f.current.UID+"/") {
		return "", backend.ErrPermissionDenied
	}
	return f.AvatarBaseURL + "/" + key, nil
}

// ErrInjected is a convenient error for FailWith.
var ErrInjected = errors.New("injected failure")
