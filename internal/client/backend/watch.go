package backend

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/useraccounts/internal/rpc"
)

// Restore resumes the persisted session, if any, and announces the outcome.
// A session the server no longer accepts is dropped; when the server cannot
// be reached the persisted identity is trusted until the next check.
func (b *GRPCBackend) Restore(ctx context.Context) error {
	s, err := b.store.load(ctx)
	if err != nil {
		b.logger.Error(ctx, "loading persisted session failed", "error", err)
	}

	if s == nil {
		b.Announce()
		return err
	}

	b.mu.Lock()
	b.current = s
	b.mu.Unlock()

	verr := b.verify(ctx)
	switch {
	case verr == nil:
		b.logger.Info(ctx, "session restored", "uid", s.identity.UID)
	case errors.Is(verr, ErrUnauthenticated):
		b.logger.Info(ctx, "persisted session rejected", "uid", s.identity.UID)
		b.mu.Lock()
		b.current = nil
		b.mu.Unlock()
		if cerr := b.store.clear(ctx); cerr != nil {
			b.logger.Error(ctx, "clearing persisted session failed", "error", cerr)
		}
	default:
		b.logger.Warn(ctx, "session not verified, keeping it offline", "error", verr)
	}

	b.Announce()
	return nil
}

// verify asks the server for the current identity and stores it. It does not
// notify subscribers.
func (b *GRPCBackend) verify(ctx context.Context) error {
	out, err := b.invoke(ctx, rpc.MethodVerifySession, nil)
	if err != nil {
		return err
	}
	id := decodeIdentity(rpc.GetObject(out, "identity"))

	b.mu.Lock()
	if b.current == nil || b.current.identity.UID != id.UID {
		b.mu.Unlock()
		return ErrUnauthenticated
	}
	b.current.identity = id
	snapshot := *b.current
	b.mu.Unlock()

	b.persist(ctx, &snapshot)
	return nil
}

// CheckSession re-validates the current session once. A session the server
// rejects is ended; a changed identity is announced.
func (b *GRPCBackend) CheckSession(ctx context.Context) {
	before := b.Current()
	if before == nil {
		return
	}

	err := b.verify(ctx)
	switch {
	case err == nil:
		b.notify(false)
	case errors.Is(err, ErrUnauthenticated):
		b.logger.Warn(ctx, "session revoked remotely", "uid", before.UID)
		b.invalidate(ctx)
	default:
		b.logger.Debug(ctx, "session check skipped", "error", err)
	}
}

// WatchSession calls CheckSession every interval until ctx is done.
func (b *GRPCBackend) WatchSession(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cctx, cancel := context.WithTimeout(ctx, interval)
			b.CheckSession(cctx)
			cancel()
		}
	}
}
