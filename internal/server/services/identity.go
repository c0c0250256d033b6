package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/useraccounts/internal/common"
	"github.com/dmitrijs2005/useraccounts/internal/cryptox"
	"github.com/dmitrijs2005/useraccounts/internal/dbx"
	"github.com/dmitrijs2005/useraccounts/internal/server/auth"
	"github.com/dmitrijs2005/useraccounts/internal/server/config"
	"github.com/dmitrijs2005/useraccounts/internal/server/models"
	"github.com/dmitrijs2005/useraccounts/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/useraccounts/internal/validation"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Session is the result of a successful sign-up or sign-in.
type Session struct {
	Account *models.Account
	Tokens  *TokenPair
}

// IdentityService registers accounts, checks credentials and issues and
// rotates tokens. Passwords never reach it: clients send a salt and a
// verifier derived from the password.
type IdentityService struct {
	db                           *sql.DB
	repomanager                  repomanager.RepositoryManager
	jwtSecret                    []byte
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
	recentAuthWindow             time.Duration
	maxFailedLogins              int
	lockoutDuration              time.Duration
	now                          func() time.Time
}

func NewIdentityService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *IdentityService {
	return &IdentityService{
		db:                           db,
		repomanager:                  m,
		jwtSecret:                    []byte(cfg.SecretKey),
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
		recentAuthWindow:             cfg.RecentAuthWindow,
		maxFailedLogins:              cfg.MaxFailedLogins,
		lockoutDuration:              cfg.LockoutDuration,
		now:                          time.Now,
	}
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if validation.Email(email) != nil {
		return "", ErrInvalidEmail
	}
	return email, nil
}

// SignUp creates an account and opens its first session.
func (s *IdentityService) SignUp(ctx context.Context, email string, salt, verifier []byte) (*Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if len(salt) == 0 || len(verifier) == 0 {
		return nil, ErrInvalidArgument
	}

	var out *Session
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		a, err := s.repomanager.Accounts(tx).Create(ctx, &models.Account{Email: email, Salt: salt, Verifier: verifier})
		if err != nil {
			if errors.Is(err, common.ErrorAlreadyExists) {
				return ErrEmailInUse
			}
			return fmt.Errorf("error creating account: %w", err)
		}
		pair, err := s.generateTokenPair(ctx, a.ID, s.now(), tx)
		if err != nil {
			return err
		}
		out = &Session{Account: a, Tokens: pair}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetSalt returns the account's stored salt or a random salt if the account
// is absent, so that the response does not reveal which emails are registered.
func (s *IdentityService) GetSalt(ctx context.Context, email string) ([]byte, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	a, err := s.repomanager.Accounts(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return cryptox.NewSalt(), nil
		}
		return nil, fmt.Errorf("error loading account: %w", err)
	}
	return a.Salt, nil
}

// SignIn checks verifier against the stored one. Repeated failures lock the
// account for the configured duration.
func (s *IdentityService) SignIn(ctx context.Context, email string, verifier []byte) (*Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	repo := s.repomanager.Accounts(s.db)
	a, err := repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("error loading account: %w", err)
	}

	now := s.now()
	switch {
	case a.Disabled:
		return nil, ErrUserDisabled
	case a.Locked(now):
		return nil, ErrTooManyRequests
	}

	if !cryptox.VerifiersEqual(a.Verifier, verifier) {
		if s.maxFailedLogins > 0 {
			if err := repo.RecordFailedLogin(ctx, a.ID, s.maxFailedLogins, now.Add(s.lockoutDuration)); err != nil {
				return nil, fmt.Errorf("error recording failed sign-in: %w", err)
			}
		}
		return nil, ErrWrongPassword
	}

	if a.FailedLogins > 0 || a.LockedUntil != nil {
		if err := repo.ResetFailedLogins(ctx, a.ID); err != nil {
			return nil, fmt.Errorf("error resetting failed sign-ins: %w", err)
		}
		a.FailedLogins, a.LockedUntil = 0, nil
	}

	pair, err := s.generateTokenPair(ctx, a.ID, now, s.db)
	if err != nil {
		return nil, err
	}
	return &Session{Account: a, Tokens: pair}, nil
}

// RefreshToken rotates refreshToken inside a transaction. Unknown, expired
// or orphaned tokens yield ErrUnauthenticated.
func (s *IdentityService) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	tokens := s.repomanager.RefreshTokens(s.db)
	token, err := tokens.Find(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("error searching refresh token: %w", err)
	}
	if token.Expires.Before(s.now()) {
		if err := tokens.Delete(ctx, refreshToken); err != nil {
			return nil, fmt.Errorf("error deleting refresh token: %w", err)
		}
		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, common.ErrRefreshTokenExpired)
	}
	if _, err := s.Verify(ctx, token.AccountID); err != nil {
		return nil, err
	}

	var pair *TokenPair
	if err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.RefreshTokens(tx).Delete(ctx, refreshToken); err != nil {
			return fmt.Errorf("error deleting refresh token: %w", err)
		}
		var genErr error
		pair, genErr = s.generateTokenPair(ctx, token.AccountID, token.AuthTime, tx)
		return genErr
	}); err != nil {
		return nil, err
	}
	return pair, nil
}

// SignOut revokes refreshToken. Revoking an unknown token succeeds.
func (s *IdentityService) SignOut(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	if err := s.repomanager.RefreshTokens(s.db).Delete(ctx, refreshToken); err != nil {
		return fmt.Errorf("error deleting refresh token: %w", err)
	}
	return nil
}

// Verify returns the account behind a session. Deleted and disabled accounts
// are reported as ErrUnauthenticated.
func (s *IdentityService) Verify(ctx context.Context, accountID string) (*models.Account, error) {
	a, err := s.repomanager.Accounts(s.db).GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("error loading account: %w", err)
	}
	if a.Disabled {
		return nil, ErrUnauthenticated
	}
	return a, nil
}

func (s *IdentityService) UpdateDisplayName(ctx context.Context, p auth.Principal, name string) error {
	err := s.repomanager.Accounts(s.db).UpdateDisplayName(ctx, p.AccountID, strings.TrimSpace(name))
	return accountUpdateError(err)
}

// UpdateEmail changes the sign-in email. The caller must have checked the
// credential within the recent-auth window.
func (s *IdentityService) UpdateEmail(ctx context.Context, p auth.Principal, email string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	if err := s.requireRecentAuth(p); err != nil {
		return err
	}
	err = s.repomanager.Accounts(s.db).UpdateEmail(ctx, p.AccountID, email)
	if errors.Is(err, common.ErrorAlreadyExists) {
		return ErrEmailInUse
	}
	return accountUpdateError(err)
}

// UpdateCredential replaces salt and verifier, revokes every refresh token of
// the account and returns a fresh pair for the caller.
func (s *IdentityService) UpdateCredential(ctx context.Context, p auth.Principal, salt, verifier []byte) (*TokenPair, error) {
	if len(salt) == 0 || len(verifier) == 0 {
		return nil, ErrInvalidArgument
	}
	if err := s.requireRecentAuth(p); err != nil {
		return nil, err
	}

	var pair *TokenPair
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := accountUpdateError(s.repomanager.Accounts(tx).UpdateCredential(ctx, p.AccountID, salt, verifier)); err != nil {
			return err
		}
		if err := s.repomanager.RefreshTokens(tx).DeleteForAccount(ctx, p.AccountID, ""); err != nil {
			return fmt.Errorf("error revoking sessions: %w", err)
		}
		var genErr error
		pair, genErr = s.generateTokenPair(ctx, p.AccountID, s.now(), tx)
		return genErr
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

func (s *IdentityService) requireRecentAuth(p auth.Principal) error {
	if s.now().Sub(p.AuthTime) > s.recentAuthWindow {
		return ErrRequiresRecentAuth
	}
	return nil
}

func accountUpdateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, common.ErrorNotFound):
		return ErrUnauthenticated
	default:
		return fmt.Errorf("error updating account: %w", err)
	}
}

func (s *IdentityService) generateTokenPair(ctx context.Context, accountID string, authTime time.Time, tx dbx.DBTX) (*TokenPair, error) {
	access, err := auth.GenerateToken(accountID, authTime, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, fmt.Errorf("error signing access token: %w", err)
	}
	refresh, err := common.MakeRandHexString(32)
	if err != nil {
		return nil, fmt.Errorf("error generating refresh token: %w", err)
	}
	if err := s.repomanager.RefreshTokens(tx).Create(ctx, accountID, refresh, authTime, s.refreshTokenValidityDuration); err != nil {
		return nil, fmt.Errorf("error storing refresh token: %w", err)
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
