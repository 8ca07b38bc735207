package bridge

import "github.com/openminiapp/miniapp/internal/shared/types"

// Error kinds form a closed enumeration. Sandboxed content pattern-matches
// on these strings, so the set only ever grows.
const (
	ErrKindMalformed          = "malformed_message"
	ErrKindUnknownAction      = "unknown_action"
	ErrKindInvalidParam       = "invalid_param"
	ErrKindPermissionDenied   = "permission_denied"
	ErrKindNotImplemented     = "not_implemented"
	ErrKindHostFailure        = "host_failure"
	ErrKindStorageUnavailable = "storage_unavailable"
	ErrKindStorageBusy        = "storage_busy"
	ErrKindStorageFull        = "storage_full"
)

// Success creates a success result. Data is JSON-encoded to a string before
// it reaches sandboxed content.
func Success(data map[string]interface{}) (*types.Result, error) {
	return &types.Result{Success: true, Data: data}, nil
}

// Failure creates an error result carrying one of the closed error kinds.
func Failure(kind string) (*types.Result, error) {
	return &types.Result{Error: &kind}, nil
}
