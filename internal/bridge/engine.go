package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/openminiapp/miniapp/internal/infrastructure/logging"
	"github.com/openminiapp/miniapp/internal/infrastructure/monitoring"
	"github.com/openminiapp/miniapp/internal/permissions"
	"github.com/openminiapp/miniapp/internal/shared/types"
)

// Callback receives terminal outcomes keyed by the request's correlation id.
// The rendering surface implements this to evaluate response snippets inside
// sandboxed content.
type Callback interface {
	DidReceiveResponse(id, payload string)
	DidReceiveError(id, kind string)
}

// Engine runs the bridge protocol for one mini-app session. Inbound
// envelopes are parsed, permission-gated, dispatched through the capability
// registry, and answered with exactly one terminal callback per request id.
// Handlers for distinct ids may run concurrently and complete out of order.
type Engine struct {
	appCtx   types.Context
	registry *Registry
	grants   *permissions.Store
	callback Callback
	logger   *logging.Logger
	metrics  *monitoring.Metrics

	wg sync.WaitGroup
}

// NewEngine creates a bridge engine for one app session.
func NewEngine(appCtx types.Context, registry *Registry, grants *permissions.Store, callback Callback, logger *logging.Logger) *Engine {
	return &Engine{
		appCtx:   appCtx,
		registry: registry,
		grants:   grants,
		callback: callback,
		logger:   logger,
	}
}

// WithMetrics adds metrics tracking to the engine.
func (e *Engine) WithMetrics(metrics *monitoring.Metrics) *Engine {
	e.metrics = metrics
	return e
}

// HandleMessage processes one inbound envelope. A message that cannot be
// parsed, or that lacks an action or id, answers with a single error
// callback keyed by the empty id rather than failing silently.
func (e *Engine) HandleMessage(ctx context.Context, raw []byte) {
	start := time.Now()

	var req types.BridgeRequest
	if err := sonic.Unmarshal(raw, &req); err != nil || req.Action == "" || req.ID == "" {
		e.logger.Warn("malformed bridge message",
			zap.String("app_id", e.appCtx.AppID),
			zap.Int("bytes", len(raw)),
		)
		e.fail("", "", ErrKindMalformed, start)
		return
	}

	capability, spec, ok := e.registry.Resolve(req.Action)
	if !ok {
		e.fail(req.ID, req.Action, ErrKindUnknownAction, start)
		return
	}

	if spec.Permission != "" {
		grant, err := e.grants.Grant(e.appCtx.AppID, spec.Permission)
		if err != nil {
			e.fail(req.ID, req.Action, ErrKindHostFailure, start)
			return
		}
		if grant != types.GrantAllowed {
			e.fail(req.ID, req.Action, ErrKindPermissionDenied, start)
			return
		}
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.dispatch(ctx, capability, req, start)
	}()
}

// Drain waits for in-flight handlers. Called on session end before the
// callback target is torn down.
func (e *Engine) Drain() {
	e.wg.Wait()
}

func (e *Engine) dispatch(ctx context.Context, capability Capability, req types.BridgeRequest, start time.Time) {
	result, err := capability.Execute(ctx, req.Action, req.Param, &e.appCtx)
	if err != nil {
		e.logger.Error("capability execution failed",
			zap.String("action", req.Action),
			zap.String("app_id", e.appCtx.AppID),
			zap.Error(err),
		)
		e.fail(req.ID, req.Action, ErrKindHostFailure, start)
		return
	}
	if !result.Success {
		kind := ErrKindHostFailure
		if result.Error != nil {
			kind = *result.Error
		}
		e.fail(req.ID, req.Action, kind, start)
		return
	}

	payload, err := sonic.MarshalString(result.Data)
	if err != nil {
		e.fail(req.ID, req.Action, ErrKindHostFailure, start)
		return
	}
	e.callback.DidReceiveResponse(req.ID, payload)
	e.record(req.Action, "ok", start)
}

func (e *Engine) fail(id, action, kind string, start time.Time) {
	e.callback.DidReceiveError(id, kind)
	e.record(action, kind, start)
}

func (e *Engine) record(action, outcome string, start time.Time) {
	if e.metrics == nil {
		return
	}
	if action == "" {
		action = "unknown"
	}
	e.metrics.RecordBridgeRequest(action, outcome, time.Since(start))
}
