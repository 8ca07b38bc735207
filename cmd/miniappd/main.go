package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/openminiapp/miniapp/internal/bridge"
	"github.com/openminiapp/miniapp/internal/infrastructure/config"
	"github.com/openminiapp/miniapp/internal/infrastructure/logging"
	"github.com/openminiapp/miniapp/internal/server"
)

func main() {
	configFile := flag.String("config", "", "YAML config file overlaying environment configuration")
	cacheRoot := flag.String("cache-root", "", "Cache root directory (overrides config)")
	flag.Parse()

	var cfg *config.Config
	var err error
	if *configFile != "" {
		cfg, err = config.LoadFile(*configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *cacheRoot != "" {
		cfg.Cache.Root = *cacheRoot
	}

	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		OutputPaths: []string{"stdout"},
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// The standalone gateway has no native host UI, so every host-side
	// capability answers not-implemented until an embedding application
	// provides its own delegates.
	srv, err := server.New(*cfg, bridge.UnimplementedHost{}, logger)
	if err != nil {
		logger.Fatal("failed to create server", zap.Error(err))
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Run(); err != nil {
			errChan <- err
		}
	}()

	select {
	case <-sigChan:
		logger.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("shutdown error", zap.Error(err))
		}
	case err := <-errChan:
		logger.Fatal("server error", zap.Error(err))
	}
}
