package permissions

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openminiapp/miniapp/internal/keyedstore"
	"github.com/openminiapp/miniapp/internal/shared/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	keyed, err := keyedstore.NewFileStore(filepath.Join(t.TempDir(), "keyed.json"))
	require.NoError(t, err)
	return New(keyed)
}

func TestStoreAndGrant(t *testing.T) {
	store := newTestStore(t)

	err := store.StoreCustomPermissions("app-1", []types.PermissionRecord{
		{Name: types.PermissionUserName, Granted: types.GrantAllowed},
		{Name: types.PermissionContactList, Granted: types.GrantDenied},
	})
	require.NoError(t, err)

	state, err := store.Grant("app-1", types.PermissionUserName)
	require.NoError(t, err)
	assert.Equal(t, types.GrantAllowed, state)

	state, err = store.Grant("app-1", types.PermissionContactList)
	require.NoError(t, err)
	assert.Equal(t, types.GrantDenied, state)

	// Undeclared permissions default to not determined.
	state, err = store.Grant("app-1", types.PermissionPoints)
	require.NoError(t, err)
	assert.Equal(t, types.GrantNotDetermined, state)
}

func TestStoreMergesByName(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.StoreCustomPermissions("app-1", []types.PermissionRecord{
		{Name: types.PermissionUserName, Granted: types.GrantDenied},
		{Name: types.PermissionPoints, Granted: types.GrantAllowed},
	}))

	// A later decision for one permission must not disturb the others.
	require.NoError(t, store.StoreCustomPermissions("app-1", []types.PermissionRecord{
		{Name: types.PermissionUserName, Granted: types.GrantAllowed},
	}))

	records, err := store.CustomPermissions("app-1")
	require.NoError(t, err)
	require.Len(t, records, 2)

	state, err := store.Grant("app-1", types.PermissionUserName)
	require.NoError(t, err)
	assert.Equal(t, types.GrantAllowed, state)

	state, err = store.Grant("app-1", types.PermissionPoints)
	require.NoError(t, err)
	assert.Equal(t, types.GrantAllowed, state)
}

func TestStoreRejectsUnknownPermission(t *testing.T) {
	store := newTestStore(t)

	err := store.StoreCustomPermissions("app-1", []types.PermissionRecord{
		{Name: types.CustomPermission("rt.permission.telepathy"), Granted: types.GrantAllowed},
	})
	require.ErrorIs(t, err, ErrUnknownPermission)

	// Nothing from a rejected batch is persisted.
	records, err := store.CustomPermissions("app-1")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestAppsAreIsolated(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.StoreCustomPermissions("app-1", []types.PermissionRecord{
		{Name: types.PermissionUserName, Granted: types.GrantAllowed},
	}))

	state, err := store.Grant("app-2", types.PermissionUserName)
	require.NoError(t, err)
	assert.Equal(t, types.GrantNotDetermined, state)
}

func TestForget(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.StoreCustomPermissions("app-1", []types.PermissionRecord{
		{Name: types.PermissionUserName, Granted: types.GrantAllowed},
	}))
	require.NoError(t, store.Forget("app-1"))

	records, err := store.CustomPermissions("app-1")
	require.NoError(t, err)
	assert.Empty(t, records)

	assert.NoError(t, store.Forget("app-1"))
}
