package capabilities

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/openminiapp/miniapp/internal/bridge"
	"github.com/openminiapp/miniapp/internal/infrastructure/config"
	"github.com/openminiapp/miniapp/internal/infrastructure/logging"
	"github.com/openminiapp/miniapp/internal/keyedstore"
	"github.com/openminiapp/miniapp/internal/permissions"
	"github.com/openminiapp/miniapp/internal/securestorage"
	"github.com/openminiapp/miniapp/internal/shared/types"
	"github.com/openminiapp/miniapp/tests/helpers/testutil"
)

func requireSuccess(t *testing.T, result *types.Result, err error) map[string]interface{} {
	t.Helper()
	require.NoError(t, err)
	require.True(t, result.Success, "expected success, got error kind %v", result.Error)
	return result.Data
}

func requireKind(t *testing.T, result *types.Result, err error, kind string) {
	t.Helper()
	require.NoError(t, err)
	require.False(t, result.Success)
	require.NotNil(t, result.Error)
	assert.Equal(t, kind, *result.Error)
}

func TestIdentityStableAcrossSessions(t *testing.T) {
	identity := NewIdentity("")
	appCtx := testutil.CreateTestContext(t, "app-1")

	firstResult, firstErr := identity.Execute(t.Context(), "getUniqueId", nil, &appCtx)
	first := requireSuccess(t, firstResult, firstErr)
	secondResult, secondErr := identity.Execute(t.Context(), "getUniqueId", nil, &appCtx)
	second := requireSuccess(t, secondResult, secondErr)
	assert.Equal(t, first["uniqueId"], second["uniqueId"])
	assert.NotEmpty(t, first["uniqueId"])
}

func TestProfileUserName(t *testing.T) {
	host := new(testutil.MockHost)
	host.On("UserName", mock.Anything, mock.Anything).Return("Kim", nil)

	profile := NewProfile(host)
	appCtx := testutil.CreateTestContext(t, "app-1")

	result, err := profile.Execute(t.Context(), "getUserName", nil, &appCtx)
	data := requireSuccess(t, result, err)
	assert.Equal(t, "Kim", data["userName"])
	host.AssertExpectations(t)
}

func TestProfileNotImplementedHost(t *testing.T) {
	// A bare host with no delegates answers every profile action with
	// not_implemented instead of a generic failure.
	profile := NewProfile(bridge.UnimplementedHost{})
	appCtx := testutil.CreateTestContext(t, "app-1")

	for _, action := range []string{"getUserName", "getProfilePhoto", "getContacts", "getAccessToken", "getPoints"} {
		result, err := profile.Execute(t.Context(), action, nil, &appCtx)
		requireKind(t, result, err, bridge.ErrKindNotImplemented)
	}
}

func TestProfileHostError(t *testing.T) {
	host := new(testutil.MockHost)
	host.On("UserName", mock.Anything, mock.Anything).Return("", fmt.Errorf("session expired"))

	profile := NewProfile(host)
	appCtx := testutil.CreateTestContext(t, "app-1")

	result, err := profile.Execute(t.Context(), "getUserName", nil, &appCtx)
	requireKind(t, result, err, bridge.ErrKindHostFailure)
}

func TestConsentDevicePermission(t *testing.T) {
	host := new(testutil.MockHost)
	host.On("RequestDevicePermission", mock.Anything, mock.Anything, "camera").Return(true, nil)
	host.On("RequestDevicePermission", mock.Anything, mock.Anything, "microphone").Return(false, nil)

	keyed, err := keyedstore.NewFileStore(filepath.Join(t.TempDir(), "keyed.json"))
	require.NoError(t, err)
	consent := NewConsent(host, permissions.New(keyed))
	appCtx := testutil.CreateTestContext(t, "app-1")

	cameraResult, cameraErr := consent.Execute(t.Context(), "requestPermission", map[string]interface{}{"permission": "camera"}, &appCtx)
	data := requireSuccess(t, cameraResult, cameraErr)
	assert.Equal(t, true, data["granted"])

	result, execErr := consent.Execute(t.Context(), "requestPermission", map[string]interface{}{"permission": "microphone"}, &appCtx)
	requireKind(t, result, execErr, bridge.ErrKindPermissionDenied)

	result, execErr = consent.Execute(t.Context(), "requestPermission", map[string]interface{}{}, &appCtx)
	requireKind(t, result, execErr, bridge.ErrKindInvalidParam)
}

func TestConsentCustomPermissionsPersistDecisions(t *testing.T) {
	decided := []types.PermissionRecord{
		{Name: types.PermissionUserName, Granted: types.GrantAllowed},
		{Name: types.PermissionContactList, Granted: types.GrantDenied},
	}
	host := new(testutil.MockHost)
	host.On("RequestCustomPermissions", mock.Anything, mock.Anything, mock.Anything).Return(decided, nil)

	keyed, err := keyedstore.NewFileStore(filepath.Join(t.TempDir(), "keyed.json"))
	require.NoError(t, err)
	grants := permissions.New(keyed)
	consent := NewConsent(host, grants)
	appCtx := testutil.CreateTestContext(t, "app-1")

	params := map[string]interface{}{
		"permissions": []interface{}{
			map[string]interface{}{"name": "rt.permission.user_name", "description": "show your name"},
			map[string]interface{}{"name": "rt.permission.contact_list", "description": "invite friends"},
		},
	}
	result, execErr := consent.Execute(t.Context(), "requestCustomPermissions", params, &appCtx)
	data := requireSuccess(t, result, execErr)
	assert.Len(t, data["permissions"], 2)

	// The host's decisions are now queryable by gated actions.
	state, err := grants.Grant("app-1", types.PermissionUserName)
	require.NoError(t, err)
	assert.Equal(t, types.GrantAllowed, state)

	state, err = grants.Grant("app-1", types.PermissionContactList)
	require.NoError(t, err)
	assert.Equal(t, types.GrantDenied, state)
}

func TestConsentRejectsUnknownPermissionNames(t *testing.T) {
	keyed, err := keyedstore.NewFileStore(filepath.Join(t.TempDir(), "keyed.json"))
	require.NoError(t, err)
	consent := NewConsent(new(testutil.MockHost), permissions.New(keyed))
	appCtx := testutil.CreateTestContext(t, "app-1")

	params := map[string]interface{}{
		"permissions": []interface{}{
			map[string]interface{}{"name": "rt.permission.telepathy"},
		},
	}
	result, execErr := consent.Execute(t.Context(), "requestCustomPermissions", params, &appCtx)
	requireKind(t, result, execErr, bridge.ErrKindInvalidParam)
}

func TestShareContent(t *testing.T) {
	host := new(testutil.MockHost)
	host.On("ShareContent", mock.Anything, mock.Anything, "https://example.com/article").Return(nil)

	share := NewShare(host)
	appCtx := testutil.CreateTestContext(t, "app-1")

	shareResult, shareErr := share.Execute(t.Context(), "shareInfo", map[string]interface{}{"content": "https://example.com/article"}, &appCtx)
	requireSuccess(t, shareResult, shareErr)

	result, err := share.Execute(t.Context(), "shareInfo", map[string]interface{}{}, &appCtx)
	requireKind(t, result, err, bridge.ErrKindInvalidParam)
}

func newStorageCapability(t *testing.T) *Storage {
	t.Helper()
	cfg := config.SecureStorageConfig{Backend: "file", FileSizeLimit: 1 << 20}
	engine, err := securestorage.NewEngine(t.TempDir(), "app-1", cfg, logging.NewDefault())
	require.NoError(t, err)
	require.NoError(t, engine.Load(t.Context()))
	t.Cleanup(func() { engine.Unload() })
	return NewStorage(engine)
}

func TestStorageRoundTrip(t *testing.T) {
	storage := newStorageCapability(t)
	appCtx := testutil.CreateTestContext(t, "app-1")

	result, err := storage.Execute(t.Context(), "setSecureStorageItems", map[string]interface{}{
		"secureStorageItems": map[string]interface{}{"session": "abc"},
	}, &appCtx)
	requireSuccess(t, result, err)

	result, err = storage.Execute(t.Context(), "getSecureStorageItem", map[string]interface{}{
		"secureStorageKey": "session",
	}, &appCtx)
	data := requireSuccess(t, result, err)
	assert.Equal(t, "abc", data["secureStorageItem"])

	// Absent keys succeed with a null item rather than erroring.
	result, err = storage.Execute(t.Context(), "getSecureStorageItem", map[string]interface{}{
		"secureStorageKey": "missing",
	}, &appCtx)
	data = requireSuccess(t, result, err)
	assert.Nil(t, data["secureStorageItem"])

	result, err = storage.Execute(t.Context(), "removeSecureStorageItems", map[string]interface{}{
		"secureStorageKeyList": []interface{}{"session"},
	}, &appCtx)
	requireSuccess(t, result, err)

	result, err = storage.Execute(t.Context(), "getSecureStorageSize", nil, &appCtx)
	data = requireSuccess(t, result, err)
	assert.EqualValues(t, 1<<20, data["max"])

	result, err = storage.Execute(t.Context(), "clearSecureStorage", nil, &appCtx)
	requireSuccess(t, result, err)
}

func TestStorageInvalidParams(t *testing.T) {
	storage := newStorageCapability(t)
	appCtx := testutil.CreateTestContext(t, "app-1")

	tests := []struct {
		name   string
		action string
		params map[string]interface{}
	}{
		{name: "get without key", action: "getSecureStorageItem", params: map[string]interface{}{}},
		{name: "set without items", action: "setSecureStorageItems", params: map[string]interface{}{}},
		{name: "set with non-string value", action: "setSecureStorageItems", params: map[string]interface{}{
			"secureStorageItems": map[string]interface{}{"count": 42},
		}},
		{name: "remove without keys", action: "removeSecureStorageItems", params: map[string]interface{}{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := storage.Execute(t.Context(), tt.action, tt.params, &appCtx)
			requireKind(t, result, err, bridge.ErrKindInvalidParam)
		})
	}
}

func TestStorageUnavailableMapping(t *testing.T) {
	cfg := config.SecureStorageConfig{Backend: "file", FileSizeLimit: 1 << 20}
	engine, err := securestorage.NewEngine(t.TempDir(), "app-1", cfg, logging.NewDefault())
	require.NoError(t, err)
	// No Load: every storage action maps to storage_unavailable.
	storage := NewStorage(engine)
	appCtx := testutil.CreateTestContext(t, "app-1")

	result, execErr := storage.Execute(t.Context(), "getSecureStorageItem", map[string]interface{}{"secureStorageKey": "k"}, &appCtx)
	requireKind(t, result, execErr, bridge.ErrKindStorageUnavailable)

	result, execErr = storage.Execute(t.Context(), "setSecureStorageItems", map[string]interface{}{
		"secureStorageItems": map[string]interface{}{"k": "v"},
	}, &appCtx)
	requireKind(t, result, execErr, bridge.ErrKindStorageUnavailable)
}

func TestStorageFullMapping(t *testing.T) {
	cfg := config.SecureStorageConfig{Backend: "file", FileSizeLimit: 16}
	engine, err := securestorage.NewEngine(t.TempDir(), "app-1", cfg, logging.NewDefault())
	require.NoError(t, err)
	require.NoError(t, engine.Load(t.Context()))
	t.Cleanup(func() { engine.Unload() })
	storage := NewStorage(engine)
	appCtx := testutil.CreateTestContext(t, "app-1")

	result, execErr := storage.Execute(t.Context(), "setSecureStorageItems", map[string]interface{}{
		"secureStorageItems": map[string]interface{}{"blob": "this value does not fit in sixteen bytes"},
	}, &appCtx)
	requireKind(t, result, execErr, bridge.ErrKindStorageFull)
}
