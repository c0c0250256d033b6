package services

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/useraccounts/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDocuments(t *testing.T) (*DocumentService, *memStore) {
	t.Helper()
	db, _ := newSQLMockDB(t)
	store := newMemStore()
	return NewDocumentService(db, store), store
}

func TestDocuments_ProfileOwnerOnly(t *testing.T) {
	svc, _ := newDocuments(t)
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, "u1", common.CollectionProfiles, "u1", map[string]any{"nombre": "Ana"}, false))

	d, err := svc.Get(ctx, "u1", common.CollectionProfiles, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ana", d.Fields["nombre"])

	_, err = svc.Get(ctx, "u2", common.CollectionProfiles, "u1")
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.ErrorIs(t, svc.Set(ctx, "u2", common.CollectionProfiles, "u1", nil, true), ErrPermissionDenied)
	assert.ErrorIs(t, svc.Delete(ctx, "u2", common.CollectionProfiles, "u1"), ErrPermissionDenied)

	_, err = svc.List(ctx, "u1", common.CollectionProfiles)
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestDocuments_EmployeesSharedByAllAccounts(t *testing.T) {
	svc, _ := newDocuments(t)
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, "u1", common.CollectionEmployees, "e2", map[string]any{"nombre": "Luis", "activo": true}, false))
	require.NoError(t, svc.Set(ctx, "u2", common.CollectionEmployees, "e1", map[string]any{"nombre": "Eva"}, false))
	require.NoError(t, svc.Update(ctx, "u2", common.CollectionEmployees, "e2", map[string]any{"activo": false}))

	docs, err := svc.List(ctx, "u1", common.CollectionEmployees)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "e1", docs[0].Key)
	assert.Equal(t, map[string]any{"nombre": "Luis", "activo": false}, docs[1].Fields)

	require.NoError(t, svc.Delete(ctx, "u1", common.CollectionEmployees, "e1"))
	require.NoError(t, svc.Delete(ctx, "u1", common.CollectionEmployees, "e1"))
	_, err = svc.Get(ctx, "u1", common.CollectionEmployees, "e1")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestDocuments_UpdateMissing(t *testing.T) {
	svc, _ := newDocuments(t)

	err := svc.Update(context.Background(), "u1", common.CollectionProfiles, "u1", map[string]any{"avatarKey": "k"})
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestDocuments_Rejections(t *testing.T) {
	svc, _ := newDocuments(t)
	ctx := context.Background()

	_, err := svc.Get(ctx, "", common.CollectionEmployees, "e1")
	assert.ErrorIs(t, err, ErrUnauthenticated)
	_, err = svc.List(ctx, "", common.CollectionEmployees)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = svc.Get(ctx, "u1", "secrets", "x")
	assert.ErrorIs(t, err, ErrPermissionDenied)
	_, err = svc.List(ctx, "u1", "secrets")
	assert.ErrorIs(t, err, ErrPermissionDenied)

	assert.ErrorIs(t, svc.Set(ctx, "u1", common.CollectionEmployees, "", nil, false), ErrInvalidArgument)
}
