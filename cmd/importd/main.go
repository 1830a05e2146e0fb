package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/caseflow-systems/caseflow-import/internal/adapters"
	"github.com/caseflow-systems/caseflow-import/internal/auth"
	"github.com/caseflow-systems/caseflow-import/internal/config"
	"github.com/caseflow-systems/caseflow-import/internal/configstore"
	"github.com/caseflow-systems/caseflow-import/internal/dedup"
	"github.com/caseflow-systems/caseflow-import/internal/export"
	"github.com/caseflow-systems/caseflow-import/internal/handlers"
	"github.com/caseflow-systems/caseflow-import/internal/logging"
	"github.com/caseflow-systems/caseflow-import/internal/mapping"
	"github.com/caseflow-systems/caseflow-import/internal/materializer"
	"github.com/caseflow-systems/caseflow-import/internal/notify"
	"github.com/caseflow-systems/caseflow-import/internal/orchestrator"
	"github.com/caseflow-systems/caseflow-import/internal/repository"
	"github.com/caseflow-systems/caseflow-import/internal/schema"
	"github.com/caseflow-systems/caseflow-import/internal/server"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(logging.Service("importd"))
	logging.SetDefault(logger)

	slog.Info("Starting import service",
		slog.Int("port", cfg.Server.Port),
		slog.String("database", cfg.Database.Type),
		slog.String("log_level", cfg.Logging.Level),
	)

	registry := schema.Default()

	// Persistence: Postgres with startup migrations, or in-memory for
	// development.
	var store repository.Store
	var kv configstore.KV
	switch cfg.Database.Type {
	case "postgres":
		connString := cfg.Database.Postgres.ConnString()
		if err := repository.RunMigrations(connString, cfg.Database.MigrationsDir); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		pgStore, err := repository.NewPostgresStore(context.Background(), connString, registry)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		store = pgStore
		kv = configstore.NewPostgresKVFromPool(pgStore.Pool())
	case "memory":
		store = repository.NewMemoryStore(registry)
		kv = configstore.NewMemoryKV()
		log.Println("Using in-memory storage - data is lost on restart")
	default:
		log.Fatalf("Unknown database type: %s (supported: postgres, memory)", cfg.Database.Type)
	}
	defer store.Close()

	confStore := configstore.New(kv, registry)

	// Webhook delivery dedup: Redis when available, per-process otherwise.
	var deduper dedup.Deduper
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			log.Printf("WARNING: Redis unavailable: %v", err)
			log.Println("Falling back to in-process delivery dedup")
			deduper = dedup.NewMemoryDeduper(cfg.Redis.DedupTTL)
		} else {
			deduper = dedup.NewRedisDeduper(client, cfg.Redis.DedupTTL)
			log.Printf("Redis delivery dedup enabled (ttl: %s)", cfg.Redis.DedupTTL)
		}
	} else {
		deduper = dedup.NewMemoryDeduper(cfg.Redis.DedupTTL)
	}
	defer deduper.Close()

	// Completion events are optional; the engine runs fine without NATS.
	var notifier notify.Notifier
	if cfg.NATS.Enabled {
		n, err := notify.NewNATSNotifier(cfg.NATS.URL, cfg.NATS.Subject, logger)
		if err != nil {
			log.Printf("WARNING: NATS unavailable: %v", err)
			log.Println("Import completion events will not be published")
		} else {
			notifier = n
			defer n.Close()
			log.Printf("Publishing import events to %s", cfg.NATS.Subject)
		}
	}

	suggester := mapping.NewSuggester()
	adapterRegistry := adapters.NewRegistry(
		adapters.NewCSVAdapter(suggester),
		adapters.NewPartnerAdapter(suggester),
		adapters.NewPipedreamAdapter(suggester),
		adapters.NewGenericAPIAdapter(suggester),
		adapters.NewAirtableAdapter(suggester, cfg.Airtable.BaseURL, cfg.Airtable.PageDelay),
	)

	sink := materializer.New(store)
	orch := orchestrator.New(adapterRegistry, sink, confStore, notifier, logger)

	if cfg.Sync.Enabled {
		scheduler := orchestrator.NewScheduler(orch, cfg.Sync.Interval, logger)
		syncCtx, stopSync := context.WithCancel(context.Background())
		defer stopSync()
		go scheduler.Run(syncCtx)
	} else {
		log.Println("Scheduled sync disabled")
	}

	router := server.NewRouter(server.Handlers{
		Imports: handlers.NewImportHandler(orch, confStore, logger),
		Config:  handlers.NewConfigHandler(confStore, logger),
		Sync:    handlers.NewSyncHandler(orch, logger),
		Export:  handlers.NewExportHandler(export.New(store), logger),
		Webhook: handlers.NewWebhookHandler(orch, confStore, deduper, logger),
		Health:  handlers.NewHealthHandler(store, version),
		Auth:    auth.NewMiddleware(cfg.Auth.JWTSecret),
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		slog.Info("HTTP server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Forced shutdown: %v", err)
	}
	slog.Info("Server stopped")
}
