package server

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/openminiapp/miniapp/internal/bridge"
	"github.com/openminiapp/miniapp/internal/bridge/capabilities"
	"github.com/openminiapp/miniapp/internal/securestorage"
	"github.com/openminiapp/miniapp/internal/shared/id"
	"github.com/openminiapp/miniapp/internal/shared/types"
	"github.com/openminiapp/miniapp/internal/ws"
)

// sessions builds one bridge session per websocket connection: a loaded
// secure storage engine, a capability registry, and a bridge engine bound
// to the connection's callback sink.
type sessions struct {
	server *Server
}

func (s *Server) sessionFactory() ws.SessionFactory {
	return &sessions{server: s}
}

func (f *sessions) Open(appCtx types.Context, callback bridge.Callback) (*ws.Session, error) {
	srv := f.server
	sessionID := id.NewSessionID()

	storage, err := securestorage.NewEngine(srv.cfg.Cache.Root, appCtx.AppID, srv.cfg.SecureStorage, srv.logger)
	if err != nil {
		return nil, fmt.Errorf("creating storage engine: %w", err)
	}
	storage.WithMetrics(srv.metrics)
	if err := storage.Load(context.Background()); err != nil {
		return nil, err
	}

	registry := bridge.NewRegistry()
	caps := []bridge.Capability{
		capabilities.NewIdentity(""),
		capabilities.NewConsent(srv.host, srv.grants),
		capabilities.NewProfile(srv.host),
		capabilities.NewShare(srv.host),
		capabilities.NewDownload(srv.host),
		capabilities.NewPurchase(srv.host),
		capabilities.NewStorage(storage),
	}
	for _, capability := range caps {
		if err := registry.Register(capability); err != nil {
			_ = storage.Unload()
			return nil, err
		}
	}

	engine := bridge.NewEngine(appCtx, registry, srv.grants, callback, srv.logger).WithMetrics(srv.metrics)

	srv.logger.Info("bridge session opened",
		zap.String("session_id", sessionID.String()),
		zap.String("app_id", appCtx.AppID),
		zap.String("version_id", appCtx.VersionID),
	)

	return &ws.Session{
		Engine: engine,
		Close: func() {
			engine.Drain()
			if err := storage.Unload(); err != nil {
				srv.logger.Warn("storage unload failed",
					zap.String("session_id", sessionID.String()),
					zap.String("app_id", appCtx.AppID),
					zap.Error(err),
				)
			}
			srv.logger.Debug("bridge session closed",
				zap.String("session_id", sessionID.String()),
			)
		},
	}, nil
}
