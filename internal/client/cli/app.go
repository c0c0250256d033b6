package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/dmitrijs2005/useraccounts/internal/client/backend"
	"github.com/dmitrijs2005/useraccounts/internal/client/config"
	"github.com/dmitrijs2005/useraccounts/internal/client/migrations"
	"github.com/dmitrijs2005/useraccounts/internal/client/profile"
	"github.com/dmitrijs2005/useraccounts/internal/client/services"
	"github.com/dmitrijs2005/useraccounts/internal/client/session"
	"github.com/dmitrijs2005/useraccounts/internal/filex"
	"github.com/dmitrijs2005/useraccounts/internal/logging"
	"golang.org/x/sync/errgroup"

	_ "modernc.org/sqlite"
)

type App struct {
	config    *config.Config
	logger    logging.Logger
	machine   *session.Machine
	profile   *profile.Controller
	auth      *services.AuthService
	employees *services.EmployeeService
	avatars   *services.AvatarService
	reader    *bufio.Reader
	out       io.Writer

	// restore and watch run in the background while the REPL is up; both
	// are nil in tests.
	restore func(ctx context.Context) error
	watch   func(ctx context.Context)
	closers []func() error

	outMu sync.Mutex

	mu       sync.Mutex
	snapshot session.Snapshot
	screen   session.Screen
	listed   []services.Employee
	unsubs   []func()

	ready     chan struct{}
	readyOnce sync.Once
}

// NewApp opens the local database, connects the backend and builds the
// controllers on top of it.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewText(os.Stderr, c.LogLevel)

	if err := filex.EnsureParentDir(c.DatabasePath); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", c.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	if err := migrations.Up(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("error initializing database: %w", err)
	}

	b, err := backend.New(c.ServerEndpointAddr, db, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	app := newApp(c, b, b, b, logger, os.Stdin, os.Stdout)
	app.restore = b.Restore
	app.watch = func(ctx context.Context) { b.WatchSession(ctx, c.SessionCheckInterval) }
	app.closers = append(app.closers, b.Close, db.Close)
	return app, nil
}

func newApp(c *config.Config, ids backend.IdentityService, store backend.DocumentStore, avatars backend.AvatarStore,
	l logging.Logger, in io.Reader, out io.Writer) *App {
	pc := profile.New(store, ids, profile.Options{FetchTimeout: c.FetchTimeout}, l)
	return &App{
		config: c,
		logger: l.With("module", "cli"),
		machine: session.New(ids, session.Options{
			SplashDuration:     c.SplashDuration,
			AlwaysRequireLogin: c.AlwaysRequireLogin,
		}, l),
		profile:   pc,
		auth:      services.NewAuthService(ids, store, l),
		employees: services.NewEmployeeService(store, l),
		avatars:   services.NewAvatarService(avatars, pc, nil),
		reader:    bufio.NewReader(in),
		out:       out,
		screen:    session.Splash,
		ready:     make(chan struct{}),
	}
}

func (a *App) println(args ...any) {
	a.outMu.Lock()
	defer a.outMu.Unlock()
	fmt.Fprintln(a.out, args...)
}

// start subscribes the screens to the controllers and starts the session
// machine.
func (a *App) start(ctx context.Context) {
	a.mu.Lock()
	a.unsubs = append(a.unsubs,
		a.profile.Subscribe(a.onView),
		a.profile.OnIncomplete(a.onIncomplete),
	)
	a.mu.Unlock()

	unsub := a.machine.Subscribe(func(s session.Snapshot) { a.onSnapshot(ctx, s) })
	a.mu.Lock()
	a.unsubs = append(a.unsubs, unsub)
	a.mu.Unlock()

	a.machine.Start(ctx)
}

// Run shows the splash banner until the session state is known and then
// runs the REPL until the user exits or ctx is done.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer a.Close()

	a.println("Bienvenido (escribe 'help' para ver los comandos)")
	a.start(ctx)

	g, gctx := errgroup.WithContext(ctx)
	if a.restore != nil {
		g.Go(func() error {
			if err := a.restore(gctx); err != nil {
				a.logger.Warn(gctx, "restoring session failed", "error", err)
			}
			return nil
		})
	}
	if a.watch != nil {
		g.Go(func() error {
			a.watch(gctx)
			return nil
		})
	}

	a.println("Cargando...")
	select {
	case <-a.ready:
		runREPL(ctx, a, a.status, a.reader)
	case <-ctx.Done():
	}

	cancel()
	return g.Wait()
}

// Close stops the controllers and releases the backend.
func (a *App) Close() error {
	a.mu.Lock()
	unsubs := a.unsubs
	a.unsubs = nil
	a.mu.Unlock()
	for _, u := range unsubs {
		u()
	}

	a.machine.Close()
	a.profile.Close()

	var firstErr error
	for _, c := range a.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.closers = nil
	return firstErr
}

// status is shown in the prompt.
func (a *App) status() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := string(a.screen)
	if a.snapshot.Identity != nil {
		s = a.snapshot.Identity.Email + " " + s
	}
	return fmt.Sprintf("(%s)", s)
}

func (a *App) group() session.Group {
	return a.machine.Snapshot().Group
}

func (a *App) canShow(screen session.Screen) bool {
	return a.machine.CanShow(screen)
}

func (a *App) currentScreen() session.Screen {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.screen
}

func (a *App) setScreen(screen session.Screen) {
	a.mu.Lock()
	a.screen = screen
	a.mu.Unlock()
}

// onSnapshot moves to the entry screen of a newly reachable group and loads
// the profile of whoever is signed in.
func (a *App) onSnapshot(ctx context.Context, s session.Snapshot) {
	a.mu.Lock()
	prev := a.snapshot
	a.snapshot = s
	entered := s.Group != prev.Group
	if entered {
		a.screen = s.Group.Screens()[0]
		a.listed = nil
	}
	a.mu.Unlock()

	if s.Group != session.GroupSplash {
		a.readyOnce.Do(func() { close(a.ready) })
	}

	switch s.Group {
	case session.GroupAuth:
		if entered {
			a.println("Inicia sesión con 'login' o crea una cuenta con 'register'")
		}
	case session.GroupMain:
		if s.Identity != nil {
			a.profile.Load(ctx, *s.Identity, entered)
		}
	}
}

// onView renders every published profile view while Home is shown.
func (a *App) onView(v profile.View) {
	if a.currentScreen() != session.Home {
		return
	}
	a.outMu.Lock()
	defer a.outMu.Unlock()
	renderView(a.out, v)
}

func (a *App) onIncomplete(profile.View) {
	a.println(hintIncomplete)
}
