package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/safar/electronics-store/internal/api"
	"github.com/safar/electronics-store/internal/auth"
	"github.com/safar/electronics-store/internal/cache"
	"github.com/safar/electronics-store/internal/config"
	"github.com/safar/electronics-store/internal/database"
	"github.com/safar/electronics-store/internal/logger"
	"github.com/safar/electronics-store/internal/metrics"
	"github.com/safar/electronics-store/internal/storage"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.Must(zap.NewProduction()).Fatal("load config", zap.Error(err))
	}

	log := logger.New(cfg.Log)
	defer log.Sync()
	zap.ReplaceGlobals(log)

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		log.Fatal("connect to database", zap.Error(err))
	}
	defer db.Close()

	log.Info("connected to database")

	if cfg.Database.AutoMigrate {
		if err := database.RunMigrations(db, cfg.Database.MigrationsPath, database.MigrateUp); err != nil {
			log.Fatal("run migrations", zap.Error(err))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var itemCache cache.ItemCache = cache.Nop{}
	if cfg.Redis.URL != "" {
		client, err := cache.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			log.Warn("redis unavailable, catalogue cache disabled", zap.Error(err))
		} else {
			defer client.Close()
			itemCache = cache.NewRedisItemCache(client, cfg.Redis.ItemTTL)
			log.Info("catalogue cache enabled")
		}
	}

	linker, err := storage.New(cfg.Storage)
	if err != nil {
		log.Fatal("configure document storage", zap.Error(err))
	}

	router := api.NewRouter(api.Deps{
		DB:             db,
		Catalog:        cache.NewCatalog(db, itemCache, log),
		Resolver:       auth.NewResolver(cfg.Auth),
		Linker:         linker,
		Metrics:        metrics.New(),
		Logger:         log,
		RequestTimeout: cfg.Server.RequestTimeout,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}
