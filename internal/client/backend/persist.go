package backend

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/useraccounts/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/useraccounts/internal/dbx"
)

const (
	keyPrefix        = "session."
	keyUID           = "session.uid"
	keyEmail         = "session.email"
	keyDisplayName   = "session.display_name"
	keyEmailVerified = "session.email_verified"
	keyAccessToken   = "session.access_token"
	keyRefreshToken  = "session.refresh_token"
)

var sessionKeys = []string{keyUID, keyEmail, keyDisplayName, keyEmailVerified, keyAccessToken, keyRefreshToken}

type session struct {
	identity     Identity
	accessToken  string
	refreshToken string
}

// sessionStore keeps the current session in the metadata table. A nil
// *sessionStore is valid and stores nothing.
type sessionStore struct {
	db *sql.DB
}

func (s *sessionStore) save(ctx context.Context, sess *session) error {
	if s == nil {
		return nil
	}
	verified := "0"
	if sess.identity.EmailVerified {
		verified = "1"
	}
	values := map[string][]byte{
		keyUID:           []byte(sess.identity.UID),
		keyEmail:         []byte(sess.identity.Email),
		keyDisplayName:   []byte(sess.identity.DisplayName),
		keyEmailVerified: []byte(verified),
		keyAccessToken:   []byte(sess.accessToken),
		keyRefreshToken:  []byte(sess.refreshToken),
	}
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return metadata.NewSQLiteRepository(tx).Put(ctx, values)
	})
}

// load returns nil when no session is stored.
func (s *sessionStore) load(ctx context.Context) (*session, error) {
	if s == nil {
		return nil, nil
	}
	all, err := metadata.NewSQLiteRepository(s.db).List(ctx, keyPrefix)
	if err != nil {
		return nil, err
	}
	if len(all[keyUID]) == 0 || len(all[keyRefreshToken]) == 0 {
		return nil, nil
	}
	return &session{
		identity: Identity{
			UID:           string(all[keyUID]),
			Email:         string(all[keyEmail]),
			DisplayName:   string(all[keyDisplayName]),
			EmailVerified: string(all[keyEmailVerified]) == "1",
		},
		accessToken:  string(all[keyAccessToken]),
		refreshToken: string(all[keyRefreshToken]),
	}, nil
}

func (s *sessionStore) clear(ctx context.Context) error {
	if s == nil {
		return nil
	}
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return metadata.NewSQLiteRepository(tx).Delete(ctx, sessionKeys...)
	})
}
