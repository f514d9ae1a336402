package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/netinv/netinv/internal/api"
	"github.com/netinv/netinv/internal/auth"
	"github.com/netinv/netinv/internal/authcache"
	"github.com/netinv/netinv/internal/config"
	"github.com/netinv/netinv/internal/controller"
	"github.com/netinv/netinv/internal/datamodel"
	"github.com/netinv/netinv/internal/resolver"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := initLogger(cfg.Logging)
	slog.SetDefault(logger)
	logger.Info("Starting netinv server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	authService, err := auth.NewService(
		cfg.Auth.JWTSecret,
		cfg.Auth.AdminUsername,
		cfg.Auth.AdminPassword,
		cfg.Auth.GetJWTExpiry(),
	)
	if err != nil {
		log.Fatalf("Failed to initialize auth service: %v", err)
	}

	if len(cfg.Resolver.DataModelPaths) == 0 {
		log.Fatalf("resolver.data_model_paths must name at least one data model file")
	}

	tokenCache, err := authcache.New(cfg.AuthCache.Directory,
		authcache.WithLockTimeout(cfg.AuthCache.GetLockTimeout()),
		authcache.WithLogger(logger),
	)
	if err != nil {
		log.Fatalf("Failed to initialize auth cache: %v", err)
	}

	deps := &api.Dependencies{
		Auth:     authService,
		Registry: resolver.GetRegistry(),
		Logger:   logger,
		Resolve: func(ctx context.Context) (*resolver.Result, error) {
			// Re-read inputs per request so edits to the data model or
			// test inventory show up without a restart. Resolution is a
			// fast, local computation.
			m, err := datamodel.Load(cfg.Resolver.DataModelPaths...)
			if err != nil {
				return nil, err
			}
			return resolver.Resolve(resolver.OSEnvironment(), m, resolver.Options{
				DeviceClass:   cfg.Resolver.DeviceClass,
				InventoryPath: cfg.Resolver.InventoryPath,
				Logger:        logger,
			})
		},
		ControllerCredential: func(ctx context.Context) (resolver.Identity, map[string]string, error) {
			m, err := datamodel.Load(cfg.Resolver.DataModelPaths...)
			if err != nil {
				return "", nil, err
			}
			env := resolver.OSEnvironment()
			identity, err := resolver.Detect(env, m, resolver.GetRegistry(), cfg.Resolver.DeviceClass)
			if err != nil {
				return "", nil, err
			}
			adapter, err := controller.ForIdentity(identity, env, cfg.Resolver.VerifySSL)
			if err != nil {
				return identity, nil, err
			}
			payload, err := adapter.CachedCredential(ctx, tokenCache)
			return identity, payload, err
		},
	}

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewRouter(cfg, deps),
		ReadTimeout:  cfg.Server.GetReadTimeout(),
		WriteTimeout: cfg.Server.GetWriteTimeout(),
	}

	go func() {
		var err error
		if cfg.TLS.Enabled {
			err = server.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()
	logger.Info("Server listening", "addr", server.Addr, "tls", cfg.TLS.Enabled)

	// Graceful shutdown on SIGINT/SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Shutdown failed", "error", err)
	}
}

func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	output := os.Stdout
	if strings.ToLower(cfg.Output) == "stderr" {
		output = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "text" {
		handler = slog.NewTextHandler(output, opts)
	} else {
		handler = slog.NewJSONHandler(output, opts)
	}
	return slog.New(handler)
}
