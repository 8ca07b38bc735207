// Package testutil provides testing utilities and helpers shared across
// package tests.
package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"

	"github.com/openminiapp/miniapp/internal/bridge"
	"github.com/openminiapp/miniapp/internal/shared/types"
	"github.com/openminiapp/miniapp/internal/transport"
)

// MockTransport is a mock registry transport.
type MockTransport struct {
	mock.Mock
}

// Send mocks one HTTP round trip.
func (m *MockTransport) Send(ctx context.Context, req transport.Request) (*transport.Response, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transport.Response), args.Error(1)
}

// MockHost is a mock capability delegate. Unset expectations fall through
// to not-implemented, matching a host that provides no delegates.
type MockHost struct {
	bridge.UnimplementedHost
	mock.Mock
}

// UserName mocks the user-name delegate.
func (m *MockHost) UserName(ctx context.Context, appCtx *types.Context) (string, error) {
	args := m.Called(ctx, appCtx)
	return args.String(0), args.Error(1)
}

// RequestDevicePermission mocks the device-permission delegate.
func (m *MockHost) RequestDevicePermission(ctx context.Context, appCtx *types.Context, permission string) (bool, error) {
	args := m.Called(ctx, appCtx, permission)
	return args.Bool(0), args.Error(1)
}

// RequestCustomPermissions mocks the consent UI delegate.
func (m *MockHost) RequestCustomPermissions(ctx context.Context, appCtx *types.Context, requested []types.PermissionRecord) ([]types.PermissionRecord, error) {
	args := m.Called(ctx, appCtx, requested)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.PermissionRecord), args.Error(1)
}

// ShareContent mocks the share-sheet delegate.
func (m *MockHost) ShareContent(ctx context.Context, appCtx *types.Context, content string) error {
	args := m.Called(ctx, appCtx, content)
	return args.Error(0)
}

// CreateTestManifest creates a manifest with default permission lists.
func CreateTestManifest(t *testing.T, versionID string) *types.Manifest {
	t.Helper()
	return &types.Manifest{
		RequiredPermissions: []string{string(types.PermissionUserName)},
		OptionalPermissions: []string{string(types.PermissionPoints)},
		CustomMetaData:      map[string]string{"description": "test mini app"},
		VersionID:           versionID,
		PublicKeyID:         "test-key",
	}
}

// CreateTestContext creates a bridge context for one app session.
func CreateTestContext(t *testing.T, appID string) types.Context {
	t.Helper()
	return types.Context{AppID: appID, VersionID: "v1"}
}

// AssertSuccess asserts a successful capability result.
func AssertSuccess(t *testing.T, result *types.Result) {
	t.Helper()
	if result == nil {
		t.Fatal("Result is nil")
	}
	if !result.Success {
		t.Fatalf("Expected success, got error: %v", result.Error)
	}
}

// AssertErrorKind asserts an error result carrying the given kind.
func AssertErrorKind(t *testing.T, result *types.Result, kind string) {
	t.Helper()
	if result == nil {
		t.Fatal("Result is nil")
	}
	if result.Success {
		t.Fatal("Expected error, got success")
	}
	if result.Error == nil {
		t.Fatal("Expected error kind, got nil")
	}
	if *result.Error != kind {
		t.Fatalf("Expected error kind %s, got %s", kind, *result.Error)
	}
}
