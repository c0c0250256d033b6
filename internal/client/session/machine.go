package session

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/useraccounts/internal/client/backend"
	"github.com/dmitrijs2005/useraccounts/internal/logging"
	"github.com/dmitrijs2005/useraccounts/internal/pubsub"
)

// Source reports the signed-in identity. backend.GRPCBackend satisfies it.
type Source interface {
	Subscribe(fn func(*backend.Identity)) (unsubscribe func())
	SignOut(ctx context.Context) error
}

type Options struct {
	// SplashDuration is the minimum time the splash group stays reachable.
	SplashDuration time.Duration
	// AlwaysRequireLogin ends any existing session when the machine starts.
	AlwaysRequireLogin bool
}

// Machine is the single writer of the session state.
type Machine struct {
	src    Source
	opts   Options
	logger logging.Logger

	// afterFunc is a test seam for the splash timer.
	afterFunc func(d time.Duration, f func()) (stop func() bool)

	mu          sync.Mutex
	state       State
	identity    *backend.Identity
	splashDone  bool
	published   Snapshot
	seq         uint64
	started     bool
	closed      bool
	stopTimer   func() bool
	unsubscribe func()

	hub pubsub.Hub[Snapshot]
}

func New(src Source, opts Options, l logging.Logger) *Machine {
	return &Machine{
		src:    src,
		opts:   opts,
		logger: l.With("module", "session"),
		afterFunc: func(d time.Duration, f func()) func() bool {
			return time.AfterFunc(d, f).Stop
		},
	}
}

// Start begins the splash timer and listens to the identity source. With
// AlwaysRequireLogin the existing session is signed out first; a failed
// remote revoke is logged and the session is dropped locally regardless.
// Start is a no-op after the first call.
func (m *Machine) Start(ctx context.Context) {
	m.mu.Lock()
	if m.started || m.closed {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	if m.opts.AlwaysRequireLogin {
		if err := m.src.SignOut(ctx); err != nil {
			m.logger.Warn(ctx, "sign-out on launch failed", "error", err)
		}
	}

	if m.opts.SplashDuration > 0 {
		stop := m.afterFunc(m.opts.SplashDuration, m.splashElapsed)
		m.mu.Lock()
		m.stopTimer = stop
		m.mu.Unlock()
	} else {
		m.splashElapsed()
	}

	unsubscribe := m.src.Subscribe(m.identityChanged)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		unsubscribe()
		return
	}
	m.unsubscribe = unsubscribe
	m.mu.Unlock()
}

// Close releases the identity subscription, clears the splash timer and
// drops all subscribers. Reports arriving afterwards are ignored.
func (m *Machine) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	stop, unsubscribe := m.stopTimer, m.unsubscribe
	m.mu.Unlock()

	if stop != nil {
		stop()
	}
	if unsubscribe != nil {
		unsubscribe()
	}
	m.hub.Close()
}

// Subscribe registers fn and hands it the current snapshot right away.
// Snapshots superseded by a newer one before delivery are skipped.
func (m *Machine) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	var last uint64
	wrapped := func(s Snapshot) {
		if s.seq != 0 && s.seq <= last {
			return
		}
		last = s.seq
		fn(s)
	}
	return m.hub.SubscribeWith(wrapped, m.Snapshot())
}

// Snapshot returns the last published state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.published
}

func (m *Machine) Reachable() []Screen {
	return m.Snapshot().Reachable()
}

func (m *Machine) CanShow(screen Screen) bool {
	return m.Snapshot().CanShow(screen)
}

func (m *Machine) splashElapsed() {
	m.mu.Lock()
	m.splashDone = true
	m.mu.Unlock()
	m.logger.Debug(context.Background(), "splash timer elapsed")
	m.evaluate()
}

func (m *Machine) identityChanged(id *backend.Identity) {
	m.mu.Lock()
	prev := m.state
	if id == nil {
		m.state = Unauthenticated
		m.identity = nil
	} else {
		cp := *id
		m.state = Authenticated
		m.identity = &cp
	}
	next := m.state
	m.mu.Unlock()

	if prev != next {
		m.logger.Info(context.Background(), "session state changed", "from", prev.String(), "to", next.String())
	}
	m.evaluate()
}

// evaluate recomputes the reachable group and publishes when it, or the
// identity shown inside Main, changed.
func (m *Machine) evaluate() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}

	group := GroupSplash
	if m.splashDone {
		switch m.state {
		case Authenticated:
			group = GroupMain
		case Unauthenticated:
			group = GroupAuth
		}
	}

	var id *backend.Identity
	if group == GroupMain && m.identity != nil {
		cp := *m.identity
		id = &cp
	}

	prev := m.published
	if group == prev.Group && sameIdentity(id, prev.Identity) {
		m.mu.Unlock()
		return
	}

	m.seq++
	snap := Snapshot{State: m.state, Identity: id, Group: group, seq: m.seq}
	m.published = snap
	m.mu.Unlock()

	if group != prev.Group {
		m.logger.Info(context.Background(), "reachable screens changed", "group", group.String())
	}
	m.hub.Publish(snap)
}
