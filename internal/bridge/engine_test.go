package bridge

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openminiapp/miniapp/internal/infrastructure/logging"
	"github.com/openminiapp/miniapp/internal/keyedstore"
	"github.com/openminiapp/miniapp/internal/permissions"
	"github.com/openminiapp/miniapp/internal/shared/types"
)

// recordingCallback captures terminal callbacks per request id.
type recordingCallback struct {
	mu        sync.Mutex
	responses map[string][]string
	errors    map[string][]string
}

func newRecordingCallback() *recordingCallback {
	return &recordingCallback{
		responses: make(map[string][]string),
		errors:    make(map[string][]string),
	}
}

func (c *recordingCallback) DidReceiveResponse(id, payload string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responses[id] = append(c.responses[id], payload)
}

func (c *recordingCallback) DidReceiveError(id, kind string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors[id] = append(c.errors[id], kind)
}

func (c *recordingCallback) total(id string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.responses[id]) + len(c.errors[id])
}

// stubCapability answers each action with a fixed result builder.
type stubCapability struct {
	def     Definition
	execute func(action string, params map[string]interface{}) (*types.Result, error)
}

func (s *stubCapability) Definition() Definition { return s.def }

func (s *stubCapability) Execute(_ context.Context, action string, params map[string]interface{}, _ *types.Context) (*types.Result, error) {
	return s.execute(action, params)
}

func newTestEngine(t *testing.T, capabilities ...Capability) (*Engine, *recordingCallback, *permissions.Store) {
	t.Helper()
	keyed, err := keyedstore.NewFileStore(filepath.Join(t.TempDir(), "keyed.json"))
	require.NoError(t, err)
	grants := permissions.New(keyed)

	registry := NewRegistry()
	for _, c := range capabilities {
		require.NoError(t, registry.Register(c))
	}

	callback := newRecordingCallback()
	engine := NewEngine(types.Context{AppID: "app-1", VersionID: "v1"}, registry, grants, callback, logging.NewDefault())
	return engine, callback, grants
}

func echoCapability() Capability {
	return &stubCapability{
		def: Definition{
			ID:      "echo",
			Name:    "Echo",
			Actions: []ActionSpec{{Action: "echo"}},
		},
		execute: func(_ string, params map[string]interface{}) (*types.Result, error) {
			return Success(map[string]interface{}{"echoed": params["value"]})
		},
	}
}

func TestHandleMessageSuccess(t *testing.T) {
	engine, callback, _ := newTestEngine(t, echoCapability())

	engine.HandleMessage(t.Context(), []byte(`{"action":"echo","id":"req-1","param":{"value":"hi"}}`))
	engine.Drain()

	require.Len(t, callback.responses["req-1"], 1)
	assert.JSONEq(t, `{"echoed":"hi"}`, callback.responses["req-1"][0])
	assert.Empty(t, callback.errors["req-1"])
}

func TestHandleMessageMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "invalid json", raw: `{"action":`},
		{name: "missing action", raw: `{"id":"req-1"}`},
		{name: "missing id", raw: `{"action":"echo"}`},
		{name: "empty body", raw: ``},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, callback, _ := newTestEngine(t, echoCapability())

			engine.HandleMessage(t.Context(), []byte(tt.raw))
			engine.Drain()

			// Malformed messages answer with one error keyed by the empty id.
			require.Len(t, callback.errors[""], 1)
			assert.Equal(t, ErrKindMalformed, callback.errors[""][0])
		})
	}
}

func TestHandleMessageUnknownAction(t *testing.T) {
	engine, callback, _ := newTestEngine(t, echoCapability())

	engine.HandleMessage(t.Context(), []byte(`{"action":"teleport","id":"req-1"}`))
	engine.Drain()

	require.Len(t, callback.errors["req-1"], 1)
	assert.Equal(t, ErrKindUnknownAction, callback.errors["req-1"][0])
}

func TestHandleMessagePermissionGate(t *testing.T) {
	gated := &stubCapability{
		def: Definition{
			ID:      "profile",
			Actions: []ActionSpec{{Action: "getUserName", Permission: types.PermissionUserName}},
		},
		execute: func(string, map[string]interface{}) (*types.Result, error) {
			return Success(map[string]interface{}{"name": "Kim"})
		},
	}
	engine, callback, grants := newTestEngine(t, gated)

	// Not determined blocks the same as an explicit denial.
	engine.HandleMessage(t.Context(), []byte(`{"action":"getUserName","id":"req-1"}`))
	engine.Drain()
	require.Len(t, callback.errors["req-1"], 1)
	assert.Equal(t, ErrKindPermissionDenied, callback.errors["req-1"][0])

	require.NoError(t, grants.StoreCustomPermissions("app-1", []types.PermissionRecord{
		{Name: types.PermissionUserName, Granted: types.GrantDenied},
	}))
	engine.HandleMessage(t.Context(), []byte(`{"action":"getUserName","id":"req-2"}`))
	engine.Drain()
	require.Len(t, callback.errors["req-2"], 1)
	assert.Equal(t, ErrKindPermissionDenied, callback.errors["req-2"][0])

	require.NoError(t, grants.StoreCustomPermissions("app-1", []types.PermissionRecord{
		{Name: types.PermissionUserName, Granted: types.GrantAllowed},
	}))
	engine.HandleMessage(t.Context(), []byte(`{"action":"getUserName","id":"req-3"}`))
	engine.Drain()
	require.Len(t, callback.responses["req-3"], 1)
	assert.Empty(t, callback.errors["req-3"])
}

func TestHandleMessageFailureResult(t *testing.T) {
	failing := &stubCapability{
		def: Definition{
			ID:      "failing",
			Actions: []ActionSpec{{Action: "break"}},
		},
		execute: func(string, map[string]interface{}) (*types.Result, error) {
			return Failure(ErrKindInvalidParam)
		},
	}
	engine, callback, _ := newTestEngine(t, failing)

	engine.HandleMessage(t.Context(), []byte(`{"action":"break","id":"req-1"}`))
	engine.Drain()

	require.Len(t, callback.errors["req-1"], 1)
	assert.Equal(t, ErrKindInvalidParam, callback.errors["req-1"][0])
}

func TestHandleMessageInternalError(t *testing.T) {
	broken := &stubCapability{
		def: Definition{
			ID:      "broken",
			Actions: []ActionSpec{{Action: "crash"}},
		},
		execute: func(string, map[string]interface{}) (*types.Result, error) {
			return nil, fmt.Errorf("connection reset")
		},
	}
	engine, callback, _ := newTestEngine(t, broken)

	engine.HandleMessage(t.Context(), []byte(`{"action":"crash","id":"req-1"}`))
	engine.Drain()

	require.Len(t, callback.errors["req-1"], 1)
	assert.Equal(t, ErrKindHostFailure, callback.errors["req-1"][0])
}

func TestExactlyOneCallbackPerRequest(t *testing.T) {
	engine, callback, _ := newTestEngine(t, echoCapability())

	for i := 0; i < 50; i++ {
		id := fmt.Sprintf("req-%d", i)
		engine.HandleMessage(t.Context(), []byte(`{"action":"echo","id":"`+id+`","param":{"value":"x"}}`))
	}
	engine.Drain()

	for i := 0; i < 50; i++ {
		assert.Equal(t, 1, callback.total(fmt.Sprintf("req-%d", i)))
	}
}

func TestRegistryRejectsDuplicateActions(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(echoCapability()))
	assert.Error(t, registry.Register(echoCapability()))
	assert.ElementsMatch(t, []string{"echo"}, registry.Actions())
}
