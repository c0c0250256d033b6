// Package server wires configuration, storage, services and the gRPC
// endpoint of the account server and runs them until shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/useraccounts/internal/logging"
	"github.com/dmitrijs2005/useraccounts/internal/server/config"
	"github.com/dmitrijs2005/useraccounts/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/useraccounts/internal/server/services"
	"golang.org/x/sync/errgroup"

	gs "github.com/dmitrijs2005/useraccounts/internal/server/grpc"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	manager  repomanager.RepositoryManager
	identity *services.IdentityService
	docs     *services.DocumentService
	avatars  *services.AvatarService
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSON(os.Stdout, c.LogLevel)

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	avatars, err := services.NewAvatarService(ctx, c)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	m := repomanager.NewPostgresRepositoryManager()
	return &App{
		config:   c,
		logger:   logger,
		db:       db,
		manager:  m,
		identity: services.NewIdentityService(db, m, c),
		docs:     services.NewDocumentService(db, m),
		avatars:  avatars,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) func() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	done := make(chan struct{})
	go func() {
		select {
		case <-sigs:
			cancelFunc()
		case <-done:
		}
	}()
	return func() {
		signal.Stop(sigs)
		close(done)
	}
}

// Run migrates the schema and serves gRPC until ctx is cancelled, a signal
// arrives or the server fails. The database is closed on return.
func (app *App) Run(ctx context.Context) error {
	defer app.db.Close()

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()
	stop := app.initSignalHandler(cancelFunc)
	defer stop()

	app.logger.Info(ctx, "Starting app...", "address", app.config.EndpointAddrGRPC)

	if err := app.manager.RunMigrations(ctx, app.db); err != nil {
		return fmt.Errorf("migrations failed: %w", err)
	}

	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.identity, app.docs, app.avatars, app.config.SecretKey)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.Run(gctx)
	})

	err := g.Wait()
	app.logger.Info(context.WithoutCancel(ctx), "app stopped")
	return err
}
