package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/useraccounts/internal/dbx"
	"github.com/dmitrijs2005/useraccounts/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/useraccounts/internal/server/repositories/documents"
	"github.com/dmitrijs2005/useraccounts/internal/server/repositories/refreshtokens"
)

// RepositoryManager vends repositories bound to a *sql.DB or a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Accounts(db dbx.DBTX) accounts.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	Documents(db dbx.DBTX) documents.Repository
}
