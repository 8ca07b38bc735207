package types

// BridgeRequest is the inbound envelope from sandboxed content.
// ID is a caller-chosen correlation token; uniqueness is the caller's
// responsibility and is not enforced by the engine.
type BridgeRequest struct {
	Action string                 `json:"action"`
	ID     string                 `json:"id"`
	Param  map[string]interface{} `json:"param,omitempty"`
}

// Result is the terminal outcome of one capability execution. Exactly one of
// Data or Error is meaningful; Error values come from a closed kind
// enumeration so sandboxed content can pattern-match on them.
type Result struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   *string                `json:"error,omitempty"`
}

// Context carries the identity of the mini-app session issuing a request.
type Context struct {
	AppID     string  `json:"app_id"`
	VersionID string  `json:"version_id"`
	UserID    *string `json:"user_id,omitempty"`
}
