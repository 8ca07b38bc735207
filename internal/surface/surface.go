package surface

import (
	"context"
)

// Surface is the rendering-surface contract the platform core consumes.
// Given a resolved cache directory for one installed version, a surface
// serves bundle files, delivers inbound bridge envelopes, and evaluates
// script snippets to hand outbound callbacks back to sandboxed content.
type Surface interface {
	// ResolveFile maps a bundle-relative path to an absolute path inside
	// the installed version directory, rejecting escapes.
	ResolveFile(relPath string) (string, error)

	// EvaluateScript runs a snippet inside the sandboxed content.
	EvaluateScript(ctx context.Context, script string) error

	// DeliverMessage feeds one inbound bridge envelope to the engine in
	// arrival order.
	DeliverMessage(ctx context.Context, raw []byte)
}
