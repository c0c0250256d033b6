// Package services orchestrates the client use cases on top of the backend
// interfaces: signing in and up, employee administration and avatars.
package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/useraccounts/internal/client/backend"
	"github.com/dmitrijs2005/useraccounts/internal/client/profile"
	"github.com/dmitrijs2005/useraccounts/internal/common"
	"github.com/dmitrijs2005/useraccounts/internal/logging"
	"github.com/dmitrijs2005/useraccounts/internal/validation"
)

// PartialSignUpError means the account was created but its profile could not
// be written. Signing up again would collide with the existing account.
type PartialSignUpError struct {
	Identity backend.Identity
	Err      error
}

func (e *PartialSignUpError) Error() string {
	return fmt.Sprintf("account %s created, profile incomplete: %v", e.Identity.UID, e.Err)
}

func (e *PartialSignUpError) Unwrap() error { return e.Err }

// AuthService signs users in, up and out.
type AuthService struct {
	ids    backend.IdentityService
	store  backend.DocumentStore
	logger logging.Logger
	now    func() time.Time
}

func NewAuthService(ids backend.IdentityService, store backend.DocumentStore, l logging.Logger) *AuthService {
	return &AuthService{ids: ids, store: store, logger: l.With("module", "auth"), now: time.Now}
}

// SignIn validates the form and signs in. The session transition reaches
// subscribers through the identity service.
func (a *AuthService) SignIn(ctx context.Context, f validation.LoginForm) (backend.Identity, error) {
	if err := validation.Login(f); err != nil {
		return backend.Identity{}, err
	}
	id, err := a.ids.SignIn(ctx, strings.TrimSpace(f.Email), f.Password)
	if err != nil {
		return backend.Identity{}, fmt.Errorf("sign in: %w", err)
	}
	return id, nil
}

// SignUp validates the form, creates the account, names it, writes its
// profile record and only then announces the new session. A failure after
// the account exists is returned as *PartialSignUpError and the session is
// announced anyway.
func (a *AuthService) SignUp(ctx context.Context, f validation.RegistrationForm) (backend.Identity, error) {
	if err := validation.Registration(f); err != nil {
		return backend.Identity{}, err
	}
	age, _ := validation.ParseAge(f.Age)
	name := strings.TrimSpace(f.Name)

	id, err := a.ids.SignUp(ctx, strings.TrimSpace(f.Email), f.Password)
	if err != nil {
		return backend.Identity{}, fmt.Errorf("sign up: %w", err)
	}
	defer a.ids.Announce()

	if err := a.ids.UpdateDisplayName(ctx, name); err != nil {
		a.logger.Warn(ctx, "setting display name failed", "uid", id.UID, "error", err)
		return id, &PartialSignUpError{Identity: id, Err: err}
	}
	id.DisplayName = name

	now := a.now()
	rec := profile.Record{
		AccountID:    id.UID,
		DisplayName:  name,
		Email:        id.Email,
		Age:          age,
		Specialty:    strings.TrimSpace(f.Specialty),
		RegisteredAt: now,
		Active:       true,
		LastModified: now,
	}
	if err := a.store.Set(ctx, common.CollectionProfiles, id.UID, rec.Document(), false); err != nil {
		a.logger.Warn(ctx, "writing profile record failed", "uid", id.UID, "error", err)
		return id, &PartialSignUpError{Identity: id, Err: err}
	}

	a.logger.Info(ctx, "account registered", "uid", id.UID)
	return id, nil
}

func (a *AuthService) SignOut(ctx context.Context) error {
	if err := a.ids.SignOut(ctx); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	return nil
}
