package surface

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/openminiapp/miniapp/internal/infrastructure/logging"
)

// bootstrap installs the global bridge object sandboxed content registers
// its per-request callbacks on.
const bootstrap = `
var MiniAppBridge = {
	callbacks: {},
	register: function(id, onSuccess, onError) {
		this.callbacks[id] = { onSuccess: onSuccess, onError: onError };
	},
	resolve: function(id, payload) {
		var cb = this.callbacks[id];
		delete this.callbacks[id];
		if (cb && cb.onSuccess) { cb.onSuccess(payload); }
	},
	reject: function(id, kind) {
		var cb = this.callbacks[id];
		delete this.callbacks[id];
		if (cb && cb.onError) { cb.onError(kind); }
	}
};
`

const evalTimeout = 5 * time.Second

// Engine consumes inbound bridge envelopes. Satisfied by bridge.Engine.
type Engine interface {
	HandleMessage(ctx context.Context, raw []byte)
}

// Runtime is a goja-backed Surface. It resolves bundle files from one
// installed version directory and evaluates callback snippets in an
// embedded JavaScript VM. A Runtime is also the bridge Callback target:
// terminal outcomes are delivered to sandboxed content by evaluating
// MiniAppBridge resolve/reject snippets.
type Runtime struct {
	root   string
	engine Engine
	logger *logging.Logger

	mu sync.Mutex
	vm *goja.Runtime
}

// NewRuntime creates a surface over one installed bundle directory.
func NewRuntime(root string, engine Engine, logger *logging.Logger) (*Runtime, error) {
	vm := goja.New()
	if _, err := vm.RunString(bootstrap); err != nil {
		return nil, fmt.Errorf("installing bridge bootstrap: %w", err)
	}
	return &Runtime{root: root, engine: engine, logger: logger, vm: vm}, nil
}

// ResolveFile maps a bundle-relative path to an absolute path, rejecting
// anything that escapes the version directory.
func (r *Runtime) ResolveFile(relPath string) (string, error) {
	cleaned := filepath.Clean("/" + relPath)
	target := filepath.Join(r.root, cleaned)
	if !strings.HasPrefix(target, filepath.Clean(r.root)+string(os.PathSeparator)) {
		return "", fmt.Errorf("path escapes bundle: %s", relPath)
	}
	if _, err := os.Stat(target); err != nil {
		return "", err
	}
	return target, nil
}

// EvaluateScript runs a snippet inside the VM, interrupting on context
// cancellation or timeout.
func (r *Runtime) EvaluateScript(ctx context.Context, script string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, evalTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			r.vm.Interrupt("evaluation interrupted")
		case <-done:
		}
	}()
	_, err := r.vm.RunString(script)
	close(done)
	r.vm.ClearInterrupt()
	return err
}

// DeliverMessage feeds one inbound envelope to the bridge engine.
func (r *Runtime) DeliverMessage(ctx context.Context, raw []byte) {
	r.engine.HandleMessage(ctx, raw)
}

// DidReceiveResponse delivers a success payload to sandboxed content.
func (r *Runtime) DidReceiveResponse(id, payload string) {
	r.invoke("resolve", id, payload)
}

// DidReceiveError delivers an error kind to sandboxed content.
func (r *Runtime) DidReceiveError(id, kind string) {
	r.invoke("reject", id, kind)
}

func (r *Runtime) invoke(method, id, arg string) {
	encodedID, err := sonic.MarshalString(id)
	if err != nil {
		return
	}
	encodedArg, err := sonic.MarshalString(arg)
	if err != nil {
		return
	}
	script := fmt.Sprintf("MiniAppBridge.%s(%s, %s);", method, encodedID, encodedArg)
	if err := r.EvaluateScript(context.Background(), script); err != nil {
		r.logger.Warn("callback delivery failed",
			zap.String("method", method),
			zap.Error(err),
		)
	}
}
