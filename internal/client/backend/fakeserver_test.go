package backend

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"net"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/dmitrijs2005/useraccounts/internal/client/migrations"
	"github.com/dmitrijs2005/useraccounts/internal/common"
	"github.com/dmitrijs2005/useraccounts/internal/logging"
	"github.com/dmitrijs2005/useraccounts/internal/rpc"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
	_ "modernc.org/sqlite"
)

type fakeAccount struct {
	uid, email, name string
	salt, verifier   []byte
}

// fakeServer is an in-memory implementation of both services.
type fakeServer struct {
	rpc.AccountsServer
	rpc.DocumentsServer

	mu       sync.Mutex
	seq      int
	accounts map[string]*fakeAccount // by email
	access   map[string]string       // token -> uid
	expired  map[string]bool
	refresh  map[string]string // token -> uid
	docs     map[string]map[string]map[string]any
	calls    map[string]int
}

func newFakeServer() *fakeServer {
	return &fakeServer{
		accounts: map[string]*fakeAccount{},
		access:   map[string]string{},
		expired:  map[string]bool{},
		refresh:  map[string]string{},
		docs:     map[string]map[string]map[string]any{},
		calls:    map[string]int{},
	}
}

func (f *fakeServer) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeServer) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeServer) expireAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for tok := range f.access {
		f.expired[tok] = true
	}
}

func (f *fakeServer) revokeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.access = map[string]string{}
	f.refresh = map[string]string{}
}

func (f *fakeServer) countCalls(ctx context.Context, req any, info *grpc.UnaryServerInfo, h grpc.UnaryHandler) (any, error) {
	f.mu.Lock()
	f.calls[info.FullMethod]++
	f.mu.Unlock()
	return h(ctx, req)
}

// caller must hold f.mu
func (f *fakeServer) issue(uid string) *structpb.Value {
	f.seq++
	a, r := fmt.Sprintf("a-%d", f.seq), fmt.Sprintf("r-%d", f.seq)
	f.access[a] = uid
	f.refresh[r] = uid
	return rpc.Object(rpc.Message(rpc.Fields{"access_token": rpc.String(a), "refresh_token": rpc.String(r)}))
}

func identityValue(a *fakeAccount) *structpb.Value {
	return rpc.Object(rpc.Message(rpc.Fields{
		"uid":          rpc.String(a.uid),
		"email":        rpc.String(a.email),
		"display_name": rpc.String(a.name),
	}))
}

// caller must hold f.mu
func (f *fakeServer) caller(ctx context.Context) (*fakeAccount, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	vals := md.Get(common.AccessTokenHeaderName)
	if len(vals) == 0 {
		return nil, rpc.Error(codes.Unauthenticated, common.CodeUnauthenticated)
	}
	tok := vals[0]
	if f.expired[tok] {
		return nil, rpc.Error(codes.Unauthenticated, common.CodeTokenExpired)
	}
	uid, ok := f.access[tok]
	if !ok {
		return nil, rpc.Error(codes.Unauthenticated, common.CodeUnauthenticated)
	}
	for _, a := range f.accounts {
		if a.uid == uid {
			return a, nil
		}
	}
	return nil, rpc.Error(codes.Unauthenticated, common.CodeUnauthenticated)
}

func (f *fakeServer) Ping(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return rpc.Message(rpc.Fields{"status": rpc.String("OK")}), nil
}

func (f *fakeServer) SignUp(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	email := rpc.GetString(in, "email")
	if _, ok := f.accounts[email]; ok {
		return nil, rpc.Error(codes.AlreadyExists, common.CodeEmailInUse)
	}
	salt, _ := rpc.GetBytes(in, "salt")
	verifier, _ := rpc.GetBytes(in, "verifier")
	f.seq++
	a := &fakeAccount{uid: fmt.Sprintf("u-%d", f.seq), email: email, salt: salt, verifier: verifier}
	f.accounts[email] = a
	return rpc.Message(rpc.Fields{"tokens": f.issue(a.uid), "identity": identityValue(a)}), nil
}

func (f *fakeServer) GetSalt(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	salt := []byte("random-salt-1234")
	if a, ok := f.accounts[rpc.GetString(in, "email")]; ok {
		salt = a.salt
	}
	return rpc.Message(rpc.Fields{"salt": rpc.Bytes(salt)}), nil
}

func (f *fakeServer) SignIn(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[rpc.GetString(in, "email")]
	if !ok {
		return nil, rpc.Error(codes.NotFound, common.CodeUserNotFound)
	}
	verifier, _ := rpc.GetBytes(in, "verifier")
	if !bytes.Equal(verifier, a.verifier) {
		return nil, rpc.Error(codes.Unauthenticated, common.CodeWrongPassword)
	}
	return rpc.Message(rpc.Fields{"tokens": f.issue(a.uid), "identity": identityValue(a)}), nil
}

func (f *fakeServer) RefreshToken(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tok := rpc.GetString(in, "refresh_token")
	uid, ok := f.refresh[tok]
	if !ok {
		return nil, rpc.Error(codes.Unauthenticated, common.CodeUnauthenticated)
	}
	delete(f.refresh, tok)
	return rpc.Message(rpc.Fields{"tokens": f.issue(uid)}), nil
}

func (f *fakeServer) SignOut(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.refresh, rpc.GetString(in, "refresh_token"))
	return rpc.Message(nil), nil
}

func (f *fakeServer) VerifySession(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, err := f.caller(ctx)
	if err != nil {
		return nil, err
	}
	return rpc.Message(rpc.Fields{"identity": identityValue(a)}), nil
}

func (f *fakeServer) UpdateDisplayName(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, err := f.caller(ctx)
	if err != nil {
		return nil, err
	}
	a.name = rpc.GetString(in, "display_name")
	return rpc.Message(nil), nil
}

func (f *fakeServer) UpdateCredential(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, err := f.caller(ctx)
	if err != nil {
		return nil, err
	}
	a.salt, _ = rpc.GetBytes(in, "salt")
	a.verifier, _ = rpc.GetBytes(in, "verifier")
	f.access = map[string]string{}
	f.refresh = map[string]string{}
	return rpc.Message(rpc.Fields{"tokens": f.issue(a.uid)}), nil
}

func (f *fakeServer) Get(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.caller(ctx); err != nil {
		return nil, err
	}
	doc, ok := f.docs[rpc.GetString(in, "collection")][rpc.GetString(in, "key")]
	if !ok {
		return nil, rpc.Error(codes.NotFound, common.CodeNotFound)
	}
	s, _ := structpb.NewStruct(doc)
	return rpc.Message(rpc.Fields{"document": rpc.Object(s)}), nil
}

func (f *fakeServer) Set(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.caller(ctx); err != nil {
		return nil, err
	}
	coll, key := rpc.GetString(in, "collection"), rpc.GetString(in, "key")
	if f.docs[coll] == nil {
		f.docs[coll] = map[string]map[string]any{}
	}
	fields := rpc.GetObject(in, "fields").AsMap()
	if cur, ok := f.docs[coll][key]; ok && rpc.GetBool(in, "merge") {
		for k, v := range fields {
			cur[k] = v
		}
		return rpc.Message(nil), nil
	}
	f.docs[coll][key] = fields
	return rpc.Message(nil), nil
}

func (f *fakeServer) List(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.caller(ctx); err != nil {
		return nil, err
	}
	coll := f.docs[rpc.GetString(in, "collection")]
	keys := make([]string, 0, len(coll))
	for k := range coll {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	items := make([]*structpb.Struct, 0, len(keys))
	for _, k := range keys {
		s, _ := structpb.NewStruct(coll[k])
		items = append(items, rpc.Message(rpc.Fields{"key": rpc.String(k), "fields": rpc.Object(s)}))
	}
	return rpc.Message(rpc.Fields{"documents": rpc.ObjectList(items)}), nil
}

type harness struct {
	fake   *fakeServer
	lis    *bufconn.Listener
	server *grpc.Server
}

func startFake(t *testing.T) *harness {
	t.Helper()
	h := &harness{fake: newFakeServer(), lis: bufconn.Listen(1 << 20)}
	h.server = grpc.NewServer(grpc.UnaryInterceptor(h.fake.countCalls))
	rpc.RegisterAccountsServer(h.server, h.fake)
	rpc.RegisterDocumentsServer(h.server, h.fake)
	go func() { _ = h.server.Serve(h.lis) }()
	t.Cleanup(h.server.Stop)
	return h
}

func (h *harness) dialer() grpc.DialOption {
	return grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return h.lis.DialContext(ctx)
	})
}

func (h *harness) newBackend(t *testing.T, db *sql.DB) *GRPCBackend {
	t.Helper()
	b, err := New("passthrough:///bufnet", db, logging.Nop(), h.dialer())
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func memDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", "file:"+strings.ReplaceAll(t.Name(), "/", "_")+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, migrations.Up(context.Background(), db))
	return db
}
