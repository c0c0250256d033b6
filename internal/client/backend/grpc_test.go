package backend

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/useraccounts/internal/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type identityLog struct {
	mu  sync.Mutex
	got []*Identity
}

func (l *identityLog) record(id *Identity) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.got = append(l.got, id)
}

func (l *identityLog) all() []*Identity {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*Identity(nil), l.got...)
}

func TestSignUp_DoesNotAnnounceUntilAsked(t *testing.T) {
	h := startFake(t)
	b := h.newBackend(t, nil)
	ctx := context.Background()

	var log identityLog
	b.Subscribe(log.record)

	id, err := b.SignUp(ctx, " Ana@X.com ", "abcdef")
	require.NoError(t, err)
	assert.Equal(t, "ana@x.com", id.Email)
	assert.NotEmpty(t, id.UID)

	require.NoError(t, b.UpdateDisplayName(ctx, "Ana"))
	assert.Empty(t, log.all(), "held until announced")

	b.Announce()
	got := log.all()
	require.Len(t, got, 1)
	require.NotNil(t, got[0])
	assert.Equal(t, id.UID, got[0].UID)
	assert.Equal(t, "Ana", got[0].DisplayName)

	require.NoError(t, b.UpdateDisplayName(ctx, "Ana María"))
	got = log.all()
	require.Len(t, got, 2)
	assert.Equal(t, "Ana María", got[1].DisplayName)
}

func TestSignUp_ClientSideChecksSkipNetwork(t *testing.T) {
	h := startFake(t)
	b := h.newBackend(t, nil)
	ctx := context.Background()

	_, err := b.SignUp(ctx, "not-an-email", "abcdef")
	assert.ErrorIs(t, err, ErrInvalidEmail)
	_, err = b.SignUp(ctx, "ana@x.com", "abc")
	assert.ErrorIs(t, err, ErrWeakPassword)
	_, err = b.SignIn(ctx, "ana@", "abcdef")
	assert.ErrorIs(t, err, ErrInvalidEmail)

	assert.Zero(t, h.fake.total())
}

func TestSignUp_DuplicateEmail(t *testing.T) {
	h := startFake(t)
	b := h.newBackend(t, nil)
	ctx := context.Background()

	_, err := b.SignUp(ctx, "ana@x.com", "abcdef")
	require.NoError(t, err)
	_, err = b.SignUp(ctx, "ana@x.com", "abcdef")
	assert.ErrorIs(t, err, ErrEmailInUse)
}

func TestSignIn_Outcomes(t *testing.T) {
	h := startFake(t)
	ctx := context.Background()

	signup := h.newBackend(t, nil)
	created, err := signup.SignUp(ctx, "ana@x.com", "abcdef")
	require.NoError(t, err)

	b := h.newBackend(t, nil)
	var log identityLog
	b.Subscribe(log.record)

	_, err = b.SignIn(ctx, "bob@x.com", "abcdef")
	assert.ErrorIs(t, err, ErrUserNotFound)
	_, err = b.SignIn(ctx, "ana@x.com", "wrong!")
	assert.ErrorIs(t, err, ErrWrongCredential)
	assert.Empty(t, log.all())

	id, err := b.SignIn(ctx, "ANA@x.com", "abcdef")
	require.NoError(t, err)
	assert.Equal(t, created.UID, id.UID)

	got := log.all()
	require.Len(t, got, 1)
	assert.Equal(t, created.UID, got[0].UID)
}

func TestSubscribe_DeliversKnownStateImmediately(t *testing.T) {
	h := startFake(t)
	b := h.newBackend(t, nil)

	var before identityLog
	b.Subscribe(before.record)
	assert.Empty(t, before.all(), "state not known yet")

	require.NoError(t, b.Restore(context.Background()))
	require.Len(t, before.all(), 1)
	assert.Nil(t, before.all()[0])

	var after identityLog
	b.Subscribe(after.record)
	require.Len(t, after.all(), 1)
	assert.Nil(t, after.all()[0])
}

func TestAccessToken_RefreshedTransparently(t *testing.T) {
	h := startFake(t)
	b := h.newBackend(t, nil)
	ctx := context.Background()

	id, err := b.SignUp(ctx, "ana@x.com", "abcdef")
	require.NoError(t, err)
	require.NoError(t, b.Set(ctx, "usuarios", id.UID, Document{"nombre": "Ana"}, false))

	h.fake.expireAll()

	doc, err := b.Get(ctx, "usuarios", id.UID)
	require.NoError(t, err)
	assert.Equal(t, "Ana", doc["nombre"])
	assert.Equal(t, 1, h.fake.count(rpc.MethodRefreshToken))

	_, err = b.Get(ctx, "usuarios", id.UID)
	require.NoError(t, err)
	assert.Equal(t, 1, h.fake.count(rpc.MethodRefreshToken), "new token reused")
}

func TestRefreshRejected_EndsSession(t *testing.T) {
	h := startFake(t)
	b := h.newBackend(t, nil)
	ctx := context.Background()

	_, err := b.SignUp(ctx, "ana@x.com", "abcdef")
	require.NoError(t, err)
	b.Announce()

	var log identityLog
	b.Subscribe(log.record)

	h.fake.expireAll()
	h.fake.revokeAll()

	_, err = b.Get(ctx, "usuarios", "whatever")
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.Nil(t, b.Current())

	got := log.all()
	require.Len(t, got, 2)
	assert.NotNil(t, got[0])
	assert.Nil(t, got[1])
}

func TestDocuments(t *testing.T) {
	h := startFake(t)
	b := h.newBackend(t, nil)
	ctx := context.Background()

	_, err := b.Get(ctx, "empleados", "e1")
	assert.ErrorIs(t, err, ErrUnauthenticated, "no session")

	_, err = b.SignUp(ctx, "ana@x.com", "abcdef")
	require.NoError(t, err)

	_, err = b.Get(ctx, "empleados", "e1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, b.Set(ctx, "empleados", "e2", Document{"nombre": "Luis", "edad": 40, "activo": true}, false))
	require.NoError(t, b.Set(ctx, "empleados", "e1", Document{"nombre": "Eva", "edad": 30}, false))
	require.NoError(t, b.Set(ctx, "empleados", "e1", Document{"activo": false}, true))

	doc, err := b.Get(ctx, "empleados", "e1")
	require.NoError(t, err)
	assert.Equal(t, Document{"nombre": "Eva", "edad": float64(30), "activo": false}, doc)

	items, err := b.List(ctx, "empleados")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "e1", items[0].Key)
	assert.Equal(t, "Luis", items[1].Fields["nombre"])

	err = b.Set(ctx, "empleados", "bad", Document{"when": time.Now()}, false)
	assert.Error(t, err, "non-JSON values are rejected before sending")
}

func TestPersistence_RestoreAcrossRestart(t *testing.T) {
	h := startFake(t)
	db := memDB(t)
	ctx := context.Background()

	first := h.newBackend(t, db)
	id, err := first.SignUp(ctx, "ana@x.com", "abcdef")
	require.NoError(t, err)
	require.NoError(t, first.UpdateDisplayName(ctx, "Ana"))

	second := h.newBackend(t, db)
	var log identityLog
	second.Subscribe(log.record)
	require.NoError(t, second.Restore(ctx))

	got := log.all()
	require.Len(t, got, 1)
	require.NotNil(t, got[0])
	assert.Equal(t, id.UID, got[0].UID)
	assert.Equal(t, "Ana", got[0].DisplayName)
}

func TestRestore_RejectedSessionIsDropped(t *testing.T) {
	h := startFake(t)
	db := memDB(t)
	ctx := context.Background()

	first := h.newBackend(t, db)
	_, err := first.SignUp(ctx, "ana@x.com", "abcdef")
	require.NoError(t, err)
	h.fake.revokeAll()

	second := h.newBackend(t, db)
	var log identityLog
	second.Subscribe(log.record)
	require.NoError(t, second.Restore(ctx))

	assert.Equal(t, []*Identity{nil}, log.all())

	third := h.newBackend(t, db)
	require.NoError(t, third.Restore(ctx))
	assert.Nil(t, third.Current(), "persisted session was cleared")
}

func TestRestore_OfflineKeepsIdentity(t *testing.T) {
	h := startFake(t)
	db := memDB(t)
	ctx := context.Background()

	first := h.newBackend(t, db)
	id, err := first.SignUp(ctx, "ana@x.com", "abcdef")
	require.NoError(t, err)

	h.server.Stop()

	second := h.newBackend(t, db)
	rctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, second.Restore(rctx))

	cur := second.Current()
	require.NotNil(t, cur)
	assert.Equal(t, id.UID, cur.UID)
}

func TestSignOut_AlwaysClearsLocally(t *testing.T) {
	h := startFake(t)
	db := memDB(t)
	ctx := context.Background()

	b := h.newBackend(t, db)
	_, err := b.SignUp(ctx, "ana@x.com", "abcdef")
	require.NoError(t, err)
	b.Announce()

	var log identityLog
	b.Subscribe(log.record)

	h.server.Stop()
	sctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, b.SignOut(sctx))

	got := log.all()
	require.Len(t, got, 2)
	assert.Nil(t, got[1])

	again := h.newBackend(t, db)
	s, err := again.store.load(ctx)
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestSignOut_BeforeRestoreRevokesPersistedSession(t *testing.T) {
	h := startFake(t)
	db := memDB(t)
	ctx := context.Background()

	first := h.newBackend(t, db)
	_, err := first.SignUp(ctx, "ana@x.com", "abcdef")
	require.NoError(t, err)
	_, persisted := first.tokens()
	require.NotEmpty(t, persisted)

	launched := h.newBackend(t, db)
	var log identityLog
	launched.Subscribe(log.record)
	require.NoError(t, launched.SignOut(ctx))
	require.NoError(t, launched.Restore(ctx))

	assert.Equal(t, 1, h.fake.count(rpc.MethodSignOut))
	h.fake.mu.Lock()
	_, valid := h.fake.refresh[persisted]
	h.fake.mu.Unlock()
	assert.False(t, valid, "refresh token revoked on the server")

	assert.Nil(t, launched.Current())
	for _, id := range log.all() {
		assert.Nil(t, id)
	}

	s, err := launched.store.load(ctx)
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestSignOut_NothingPersistedSkipsServer(t *testing.T) {
	h := startFake(t)
	b := h.newBackend(t, memDB(t))

	require.NoError(t, b.SignOut(context.Background()))
	assert.Zero(t, h.fake.total())
}

func TestCheckSession_Revoked(t *testing.T) {
	h := startFake(t)
	b := h.newBackend(t, nil)
	ctx := context.Background()

	_, err := b.SignUp(ctx, "ana@x.com", "abcdef")
	require.NoError(t, err)
	b.Announce()

	b.CheckSession(ctx)
	assert.NotNil(t, b.Current())

	var log identityLog
	b.Subscribe(log.record)
	h.fake.revokeAll()
	b.CheckSession(ctx)

	assert.Nil(t, b.Current())
	got := log.all()
	require.Len(t, got, 2)
	assert.Nil(t, got[1])
}

func TestUpdateCredential(t *testing.T) {
	h := startFake(t)
	b := h.newBackend(t, nil)
	ctx := context.Background()

	_, err := b.SignUp(ctx, "ana@x.com", "abcdef")
	require.NoError(t, err)

	assert.ErrorIs(t, b.UpdateCredential(ctx, "abc"), ErrWeakCredential)
	require.NoError(t, b.UpdateCredential(ctx, "nuevo123"))

	_, err = b.Get(ctx, "usuarios", "x")
	assert.ErrorIs(t, err, ErrNotFound, "new tokens in use")

	other := h.newBackend(t, nil)
	_, err = other.SignIn(ctx, "ana@x.com", "abcdef")
	assert.ErrorIs(t, err, ErrWrongCredential)
	_, err = other.SignIn(ctx, "ana@x.com", "nuevo123")
	assert.NoError(t, err)
}
