package backend

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/useraccounts/internal/common"
	"github.com/dmitrijs2005/useraccounts/internal/cryptox"
	"github.com/dmitrijs2005/useraccounts/internal/rpc"
	"github.com/dmitrijs2005/useraccounts/internal/validation"
)

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func checkEmail(email string) error {
	if validation.Email(email) != nil {
		return ErrInvalidEmail
	}
	return nil
}

func weak(password string) bool {
	return utf8.RuneCountInString(password) < common.MinPasswordLength
}

// SignUp creates the account and opens a session for it. Subscribers are not
// notified, not even of later profile updates, until Announce.
func (b *GRPCBackend) SignUp(ctx context.Context, email, password string) (Identity, error) {
	email = normalizeEmail(email)
	if err := checkEmail(email); err != nil {
		return Identity{}, err
	}
	if weak(password) {
		return Identity{}, ErrWeakPassword
	}

	salt := cryptox.NewSalt()
	in := rpc.Message(rpc.Fields{
		"email":    rpc.String(email),
		"salt":     rpc.Bytes(salt),
		"verifier": rpc.Bytes(cryptox.Credential(password, salt)),
	})
	out, err := b.invoke(ctx, rpc.MethodSignUp, in)
	if err != nil {
		return Identity{}, err
	}
	s, err := decodeSession(out)
	if err != nil {
		return Identity{}, err
	}

	b.mu.Lock()
	b.current = s
	b.held = true
	b.mu.Unlock()
	b.persist(ctx, s)

	b.logger.Info(ctx, "signed up", "uid", s.identity.UID)
	return s.identity, nil
}

// SignIn authenticates and announces the new session.
func (b *GRPCBackend) SignIn(ctx context.Context, email, password string) (Identity, error) {
	email = normalizeEmail(email)
	if err := checkEmail(email); err != nil {
		return Identity{}, err
	}

	out, err := b.invoke(ctx, rpc.MethodGetSalt, rpc.Message(rpc.Fields{"email": rpc.String(email)}))
	if err != nil {
		return Identity{}, err
	}
	salt, err := rpc.GetBytes(out, "salt")
	if err != nil {
		return Identity{}, err
	}

	in := rpc.Message(rpc.Fields{
		"email":    rpc.String(email),
		"verifier": rpc.Bytes(cryptox.Credential(password, salt)),
	})
	out, err = b.invoke(ctx, rpc.MethodSignIn, in)
	if err != nil {
		return Identity{}, err
	}
	s, err := decodeSession(out)
	if err != nil {
		return Identity{}, err
	}

	b.mu.Lock()
	b.current = s
	b.mu.Unlock()
	b.persist(ctx, s)

	b.logger.Info(ctx, "signed in", "uid", s.identity.UID)
	b.Announce()
	return s.identity, nil
}

// SignOut revokes the refresh token on the server and always ends the local
// session, even when the server cannot be reached. Called before Restore it
// revokes the persisted session.
func (b *GRPCBackend) SignOut(ctx context.Context) error {
	b.adoptPersisted(ctx)
	_, refresh := b.tokens()
	if refresh != "" {
		rctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		_, err := b.invoke(rctx, rpc.MethodSignOut, rpc.Message(rpc.Fields{"refresh_token": rpc.String(refresh)}))
		cancel()
		if err != nil {
			b.logger.Warn(ctx, "remote sign-out failed", "error", err)
		}
	}

	b.mu.Lock()
	b.current = nil
	b.held = false
	b.mu.Unlock()

	if err := b.store.clear(context.WithoutCancel(ctx)); err != nil {
		b.logger.Error(ctx, "clearing persisted session failed", "error", err)
	}
	b.notify(false)
	return nil
}

// adoptPersisted makes the persisted session current when none is loaded
// yet, without notifying subscribers.
func (b *GRPCBackend) adoptPersisted(ctx context.Context) {
	b.mu.Lock()
	loaded := b.current != nil
	b.mu.Unlock()
	if loaded {
		return
	}

	s, err := b.store.load(ctx)
	if err != nil {
		b.logger.Error(ctx, "loading persisted session failed", "error", err)
		return
	}
	if s == nil {
		return
	}

	b.mu.Lock()
	if b.current == nil {
		b.current = s
	}
	b.mu.Unlock()
}

// mutateIdentity applies fn to the current identity, persists and notifies.
func (b *GRPCBackend) mutateIdentity(ctx context.Context, fn func(*Identity)) {
	b.mu.Lock()
	if b.current == nil {
		b.mu.Unlock()
		return
	}
	fn(&b.current.identity)
	snapshot := *b.current
	b.mu.Unlock()

	b.persist(ctx, &snapshot)
	b.notify(false)
}

func (b *GRPCBackend) UpdateDisplayName(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if _, err := b.invoke(ctx, rpc.MethodUpdateDisplayName, rpc.Message(rpc.Fields{"display_name": rpc.String(name)})); err != nil {
		return err
	}
	b.mutateIdentity(ctx, func(id *Identity) { id.DisplayName = name })
	return nil
}

func (b *GRPCBackend) UpdateEmail(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if err := checkEmail(email); err != nil {
		return err
	}
	if _, err := b.invoke(ctx, rpc.MethodUpdateEmail, rpc.Message(rpc.Fields{"email": rpc.String(email)})); err != nil {
		return err
	}
	b.mutateIdentity(ctx, func(id *Identity) {
		id.Email = email
		id.EmailVerified = false
	})
	return nil
}

// UpdateCredential replaces the password. The server revokes every other
// session of the account and returns a fresh token pair for this one.
func (b *GRPCBackend) UpdateCredential(ctx context.Context, password string) error {
	if weak(password) {
		return ErrWeakCredential
	}
	salt := cryptox.NewSalt()
	in := rpc.Message(rpc.Fields{
		"salt":     rpc.Bytes(salt),
		"verifier": rpc.Bytes(cryptox.Credential(password, salt)),
	})
	out, err := b.invoke(ctx, rpc.MethodUpdateCredential, in)
	if err != nil {
		if errors.Is(err, ErrWeakPassword) {
			return ErrWeakCredential
		}
		return err
	}

	tokens := rpc.GetObject(out, "tokens")
	access, refresh := rpc.GetString(tokens, "access_token"), rpc.GetString(tokens, "refresh_token")
	if access == "" || refresh == "" {
		return nil
	}

	b.mu.Lock()
	if b.current == nil {
		b.mu.Unlock()
		return nil
	}
	b.current.accessToken = access
	b.current.refreshToken = refresh
	snapshot := *b.current
	b.mu.Unlock()

	b.persist(ctx, &snapshot)
	return nil
}

// Current returns the signed-in identity, or nil.
func (b *GRPCBackend) Current() *Identity {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil {
		return nil
	}
	id := b.current.identity
	return &id
}

// Subscribe registers fn for session changes. If the session state is
// already known fn receives the last announced identity right away.
func (b *GRPCBackend) Subscribe(fn func(*Identity)) func() {
	b.mu.Lock()
	known := b.known
	var last *Identity
	if b.announced != nil {
		id := *b.announced
		last = &id
	}
	b.mu.Unlock()

	if known {
		return b.hub.SubscribeWith(fn, last)
	}
	return b.hub.Subscribe(fn)
}

// Announce publishes the current session to all subscribers, releasing a
// sign-up held back by SignUp.
func (b *GRPCBackend) Announce() {
	b.notify(true)
}
