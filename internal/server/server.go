package server

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/openminiapp/miniapp/internal/api/middleware"
	"github.com/openminiapp/miniapp/internal/bridge"
	"github.com/openminiapp/miniapp/internal/cache"
	"github.com/openminiapp/miniapp/internal/infrastructure/config"
	"github.com/openminiapp/miniapp/internal/infrastructure/logging"
	"github.com/openminiapp/miniapp/internal/infrastructure/monitoring"
	"github.com/openminiapp/miniapp/internal/infrastructure/tracing"
	"github.com/openminiapp/miniapp/internal/installer"
	"github.com/openminiapp/miniapp/internal/keyedstore"
	"github.com/openminiapp/miniapp/internal/manifeststore"
	"github.com/openminiapp/miniapp/internal/permissions"
	"github.com/openminiapp/miniapp/internal/registry"
	"github.com/openminiapp/miniapp/internal/shared/paths"
	"github.com/openminiapp/miniapp/internal/transport"
	"github.com/openminiapp/miniapp/internal/ws"
)

// Server is the host gateway: it exposes the distribution pipeline and the
// bridge websocket over HTTP for embedding host applications.
type Server struct {
	cfg     config.Config
	logger  *logging.Logger
	metrics *monitoring.Metrics

	router    *gin.Engine
	http      *http.Server
	installer *installer.Downloader
	client    *registry.Client
	verifier  *cache.Verifier
	manifests *manifeststore.Store
	grants    *permissions.Store
	host      Host
}

// Host is the capability delegate set the embedding application provides.
type Host = bridge.Host

// New wires the full platform core over one cache root.
func New(cfg config.Config, host Host, logger *logging.Logger) (*Server, error) {
	if cfg.Cache.Root == "" {
		return nil, fmt.Errorf("cache root is required")
	}

	metrics := monitoring.NewMetrics()

	keyed, err := keyedstore.NewFileStore(filepath.Join(cfg.Cache.Root, paths.CacheDirName, "keyedstore.json"))
	if err != nil {
		return nil, fmt.Errorf("opening keyed store: %w", err)
	}

	opts := []transport.Option{
		transport.WithRateLimit(float64(cfg.RateLimit.RequestsPerSecond)),
	}
	if cfg.Pinning.Host != "" {
		opts = append(opts, transport.WithPinning(cfg.Pinning.Host, cfg.Pinning.Primary, cfg.Pinning.Backup))
	}
	httpClient := transport.New(logger, opts...)

	manifests := manifeststore.New(cfg.Cache.Root, keyed)
	client := registry.New(httpClient, manifests, registry.Config{
		BaseURL:         cfg.Registry.BaseURL,
		HostID:          cfg.Registry.HostID,
		SubscriptionKey: cfg.Registry.SubscriptionKey,
		Preview:         cfg.Registry.Preview,
	})

	records := installer.NewRecordStore(cfg.Cache.Root)
	verifier := cache.NewVerifier(cfg.Cache.Root, keyed, records)
	grants := permissions.New(keyed)

	archives := registry.NewDownloader(logger)
	inst := installer.New(
		cfg.Cache.Root,
		client,
		archives,
		manifests,
		records,
		verifier,
		installer.StaticKeys(cfg.Signature.Keys),
		cfg.Signature,
		logger,
	).WithMetrics(metrics)

	s := &Server{
		cfg:       cfg,
		logger:    logger,
		metrics:   metrics,
		installer: inst,
		client:    client,
		verifier:  verifier,
		manifests: manifests,
		grants:    grants,
		host:      host,
	}
	s.router = s.buildRouter()
	return s, nil
}

func (s *Server) buildRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(middleware.CORSConfig{}))
	if s.cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: s.cfg.RateLimit.RequestsPerSecond,
			Burst:             s.cfg.RateLimit.Burst,
		}))
	}
	router.Use(monitoring.Middleware(s.metrics))
	router.Use(tracing.HTTPMiddleware(tracing.New("gateway", s.logger.Logger)))

	router.GET("/health", s.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{})))

	apps := router.Group("/miniapps")
	{
		apps.GET("", s.handleList)
		apps.GET("/:appId", s.handleInfo)
		apps.GET("/:appId/manifest", s.handleManifest)
		apps.POST("/:appId/install", s.handleInstall)
		apps.POST("/:appId/consent", s.handleConsent)
		apps.GET("/:appId/verify", s.handleVerify)
		apps.GET("/:appId/path", s.handlePath)
		apps.DELETE("/:appId", s.handleDelete)
	}
	router.GET("/preview/:token", s.handlePreview)

	bridgeHandler := ws.NewHandler(s.sessionFactory(), s.logger).WithMetrics(s.metrics)
	router.GET("/bridge", bridgeHandler.HandleConnection)

	return router
}

// Run starts the HTTP server and blocks until it stops.
func (s *Server) Run() error {
	addr := s.cfg.Server.Host + ":" + s.cfg.Server.Port

	// Leftover staging directories from interrupted installs are swept on
	// startup.
	if err := installer.SweepTemp(s.cfg.Cache.Root); err != nil {
		s.logger.Warn("temp sweep failed", zap.Error(err))
	}

	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("gateway listening", zap.String("addr", addr))
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server, waiting for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// Router exposes the gin engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}
