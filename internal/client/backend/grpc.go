package backend

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/dmitrijs2005/useraccounts/internal/common"
	"github.com/dmitrijs2005/useraccounts/internal/logging"
	"github.com/dmitrijs2005/useraccounts/internal/pubsub"
	"github.com/dmitrijs2005/useraccounts/internal/rpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
)

// GRPCBackend implements IdentityService, DocumentStore and AvatarStore.
type GRPCBackend struct {
	conn   *grpc.ClientConn
	store  *sessionStore
	logger logging.Logger

	mu      sync.Mutex
	current *session
	// known is set once subscribers have been told the session state;
	// announced is what they were told last.
	known     bool
	announced *Identity
	// held defers notifications of a fresh sign-up until Announce.
	held bool

	refreshMu sync.Mutex
	hub       pubsub.Hub[*Identity]
}

var (
	_ IdentityService = (*GRPCBackend)(nil)
	_ DocumentStore   = (*GRPCBackend)(nil)
	_ AvatarStore     = (*GRPCBackend)(nil)
)

// New connects to addr. When db is non-nil the session is persisted in its
// metadata table (the schema must already be migrated). Extra dial options
// are appended after the defaults.
func New(addr string, db *sql.DB, l logging.Logger, opts ...grpc.DialOption) (*GRPCBackend, error) {
	b := &GRPCBackend{logger: l.With("module", "backend")}
	if db != nil {
		b.store = &sessionStore{db: db}
	}

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(b.accessTokenInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(addr, dialOpts...)
	if err != nil {
		return nil, err
	}
	b.conn = conn
	return b, nil
}

// Close releases the connection and drops all subscribers.
func (b *GRPCBackend) Close() error {
	b.hub.Close()
	return b.conn.Close()
}

func (b *GRPCBackend) invoke(ctx context.Context, method string, in *structpb.Struct) (*structpb.Struct, error) {
	out, err := rpc.Invoke(ctx, b.conn, method, in)
	if err != nil {
		return nil, mapError(err)
	}
	return out, nil
}

// Ping checks that the server answers.
func (b *GRPCBackend) Ping(ctx context.Context) error {
	out, err := b.invoke(ctx, rpc.MethodPing, nil)
	if err != nil {
		return err
	}
	if rpc.GetString(out, "status") != "OK" {
		return ErrUnavailable
	}
	return nil
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	md.Set(common.AccessTokenHeaderName, token)
	return metadata.NewOutgoingContext(ctx, md)
}

func (b *GRPCBackend) tokens() (access, refresh string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil {
		return "", ""
	}
	return b.current.accessToken, b.current.refreshToken
}

// accessTokenInterceptor attaches the access token to protected calls. When
// the server reports it expired, the token pair is refreshed once and the
// call retried. A refresh the server rejects ends the session.
func (b *GRPCBackend) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if rpc.IsPublic(method) {
		return invoker(ctx, method, req, reply, cc, opts...)
	}

	access, _ := b.tokens()
	if access == "" {
		return rpc.Error(codes.Unauthenticated, common.CodeUnauthenticated)
	}

	err := invoker(withAccessToken(ctx, access), method, req, reply, cc, opts...)
	code, app, ok := rpc.AppCode(err)
	if err == nil || !ok || code != codes.Unauthenticated || app != common.CodeTokenExpired {
		return err
	}

	fresh, rerr := b.refresh(ctx, access, cc, invoker, opts...)
	if rerr != nil {
		return rerr
	}
	return invoker(withAccessToken(ctx, fresh), method, req, reply, cc, opts...)
}

// refresh rotates the token pair unless another caller already replaced the
// stale access token.
func (b *GRPCBackend) refresh(ctx context.Context, stale string, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) (string, error) {
	b.refreshMu.Lock()
	defer b.refreshMu.Unlock()

	access, refresh := b.tokens()
	if access == "" || refresh == "" {
		return "", rpc.Error(codes.Unauthenticated, common.CodeUnauthenticated)
	}
	if access != stale {
		return access, nil
	}

	in := rpc.Message(rpc.Fields{"refresh_token": rpc.String(refresh)})
	out := new(structpb.Struct)
	if err := invoker(ctx, rpc.MethodRefreshToken, in, out, cc, opts...); err != nil {
		if code, _, _ := rpc.AppCode(err); code == codes.Unauthenticated {
			b.logger.Warn(ctx, "refresh rejected, ending session")
			b.invalidate(ctx)
		}
		return "", err
	}

	tokens := rpc.GetObject(out, "tokens")
	newAccess, newRefresh := rpc.GetString(tokens, "access_token"), rpc.GetString(tokens, "refresh_token")

	b.mu.Lock()
	if b.current == nil {
		b.mu.Unlock()
		return "", rpc.Error(codes.Unauthenticated, common.CodeUnauthenticated)
	}
	b.current.accessToken = newAccess
	b.current.refreshToken = newRefresh
	snapshot := *b.current
	b.mu.Unlock()

	b.persist(ctx, &snapshot)
	return newAccess, nil
}

func (b *GRPCBackend) persist(ctx context.Context, s *session) {
	if err := b.store.save(context.WithoutCancel(ctx), s); err != nil {
		b.logger.Error(ctx, "persisting session failed", "error", err)
	}
}

// invalidate drops the local session. Subscribers are told only once the
// session state has been announced at least once; Restore reports its own
// outcome.
func (b *GRPCBackend) invalidate(ctx context.Context) {
	b.mu.Lock()
	b.current = nil
	b.held = false
	known := b.known
	b.mu.Unlock()

	if err := b.store.clear(context.WithoutCancel(ctx)); err != nil {
		b.logger.Error(ctx, "clearing persisted session failed", "error", err)
	}
	if known {
		b.notify(false)
	}
}

// notify publishes the current identity if it differs from what subscribers
// heard last. Unless forced, nothing is published while a sign-up is held.
func (b *GRPCBackend) notify(force bool) {
	b.mu.Lock()
	var cur *Identity
	if b.current != nil {
		id := b.current.identity
		cur = &id
	}
	if !force && (b.held || (b.known && sameIdentity(cur, b.announced))) {
		b.mu.Unlock()
		return
	}
	b.known = true
	b.held = false
	b.announced = cur
	b.mu.Unlock()

	var out *Identity
	if cur != nil {
		id := *cur
		out = &id
	}
	b.hub.Publish(out)
}

func sameIdentity(a, b *Identity) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func decodeIdentity(s *structpb.Struct) Identity {
	return Identity{
		UID:           rpc.GetString(s, "uid"),
		DisplayName:   rpc.GetString(s, "display_name"),
		Email:         rpc.GetString(s, "email"),
		EmailVerified: rpc.GetBool(s, "email_verified"),
	}
}

func decodeSession(out *structpb.Struct) (*session, error) {
	tokens := rpc.GetObject(out, "tokens")
	s := &session{
		identity:     decodeIdentity(rpc.GetObject(out, "identity")),
		accessToken:  rpc.GetString(tokens, "access_token"),
		refreshToken: rpc.GetString(tokens, "refresh_token"),
	}
	if s.identity.UID == "" || s.accessToken == "" {
		return nil, errors.New("malformed session response")
	}
	return s, nil
}
