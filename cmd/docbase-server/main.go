// Command docbase-server is the composition root: it loads configuration,
// builds a logger, wires a storage adapter (memory or redis) behind the
// Document Engine and Schema Manager, and serves the REST API until an
// interrupt triggers a graceful shutdown — grounded on the teacher's
// cmd/vecdex/main.go startup sequence (config load, logger build, store
// readiness wait, idempotent bootstrap, signal-driven graceful shutdown).
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docbase/internal/adapter"
	"github.com/kailas-cloud/docbase/internal/adapter/memory"
	redisadapter "github.com/kailas-cloud/docbase/internal/adapter/redis"
	"github.com/kailas-cloud/docbase/internal/config"
	"github.com/kailas-cloud/docbase/internal/domain"
	"github.com/kailas-cloud/docbase/internal/engine"
	"github.com/kailas-cloud/docbase/internal/events"
	"github.com/kailas-cloud/docbase/internal/logger"
	"github.com/kailas-cloud/docbase/internal/schemamgr"
	chitransport "github.com/kailas-cloud/docbase/internal/transport/chi"
	"github.com/kailas-cloud/docbase/internal/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "docbase-server:", err)
		os.Exit(1)
	}
}

func run() error {
	env := config.GetEnv()
	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting docbase-server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.String("adapter", cfg.Adapter.Driver),
	)

	store, closeStore, err := buildAdapter(cfg.Adapter)
	if err != nil {
		return fmt.Errorf("build adapter: %w", err)
	}
	defer closeStore()

	store.SetNamespace(cfg.Engine.Namespace)
	store.SetDefaultDatabase(cfg.Engine.Namespace)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Adapter.ReadinessTimeout)*time.Second)
	if err := store.Ping(ctx); err != nil {
		cancel()
		return fmt.Errorf("adapter not ready: %w", err)
	}
	cancel()

	identity := chitransport.NewRequestIdentity()
	eng := engine.New(store, store, identity, cfg.Engine.Namespace, engine.WithCacheTTL(cfg.Engine.CacheTTLSec))
	if err := eng.Bootstrap(context.Background()); err != nil {
		return fmt.Errorf("bootstrap _metadata: %w", err)
	}
	registerLogging(eng.Events(), log)

	mgr := schemamgr.New(store, eng, eng.Events())

	server := chitransport.NewServer(eng, mgr, identity, log)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      server.Routes(cfg.Auth.Tokens),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serverErr:
		return fmt.Errorf("http server: %w", err)
	case <-sigCtx.Done():
		log.Info("shutdown signal received")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	log.Info("shutdown complete")
	return nil
}

// buildAdapter selects the configured storage backend. Both backends
// satisfy adapter.Adapter and adapter.Cache, so the rest of the
// composition root is driver-agnostic.
func buildAdapter(cfg config.AdapterConfig) (interface {
	adapter.Adapter
	adapter.Cache
}, func(), error) {
	switch cfg.Driver {
	case "redis":
		store, err := redisadapter.New(redisadapter.Config{
			Addrs:    cfg.Addrs,
			Username: cfg.Username,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
		if err != nil {
			return nil, func() {}, err
		}
		return store, store.Close, nil
	default:
		store := memory.New()
		return store, func() {}, nil
	}
}

// registerLogging wires a structured log line for every domain event onto
// the Event Bus, grounded on the teacher's metrics middleware logging the
// same request-shaped details (collection, kind) per hook invocation.
func registerLogging(bus *events.Bus, log *zap.Logger) {
	for _, kind := range []string{
		domain.EventDocumentCreate, domain.EventDocumentRead,
		domain.EventDocumentUpdate, domain.EventDocumentDelete,
	} {
		bus.On(kind, func(event string, args ...any) {
			var collection string
			if len(args) > 0 {
				collection, _ = args[0].(string)
			}
			log.Debug("document event", zap.String("event", event), zap.String("collection", collection))
		})
	}
}
