// Command server runs a lucid Database behind the JSON-over-TCP RPC
// server, with optional Postgres document storage, Redis query caching,
// and Kafka hook-event publishing wired in when configured.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lucid-search/lucid"
	"github.com/lucid-search/lucid/cache"
	"github.com/lucid-search/lucid/events"
	"github.com/lucid-search/lucid/internal/schema"
	"github.com/lucid-search/lucid/internal/tokenizer"
	"github.com/lucid-search/lucid/pkg/config"
	"github.com/lucid-search/lucid/pkg/health"
	"github.com/lucid-search/lucid/pkg/logger"
	"github.com/lucid-search/lucid/pkg/metrics"
	pkgredis "github.com/lucid-search/lucid/pkg/redis"
	"github.com/lucid-search/lucid/pkg/rpc"
	"github.com/lucid-search/lucid/store/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting lucid server", "rpc_port", cfg.RPC.Port)

	lit, err := loadSchema(cfg.Engine.SchemaPath)
	if err != nil {
		slog.Error("failed to load schema", "error", err)
		os.Exit(1)
	}

	var pgClient *postgres.Client
	components := lucid.Components{}
	if cfg.Postgres.Enabled {
		pgClient, err = postgres.New(cfg.Postgres)
		if err != nil {
			slog.Warn("postgres unavailable, falling back to in-memory document store", "error", err)
		} else {
			defer pgClient.Close()
			ctx := context.Background()
			if err := pgClient.EnsureSchema(ctx); err != nil {
				slog.Warn("postgres schema setup failed, falling back to in-memory document store", "error", err)
			} else {
				components.Store = postgres.NewStore(pgClient)
				slog.Info("postgres document store enabled", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
			}
		}
	}

	db, err := lucid.Create(lucid.CreateParams{
		ID:       "default",
		Schema:   lit,
		Language: tokenizer.Language(cfg.Engine.Language),
		Sort: lucid.SortConfig{
			Enabled:              cfg.Engine.SortEnabled,
			UnsortableProperties: cfg.Engine.UnsortableProperties,
		},
		Components: components,
	})
	if err != nil {
		slog.Error("failed to create database", "error", err)
		os.Exit(1)
	}

	m := metrics.New()

	var redisClient *pkgredis.Client
	var queryCache *cache.QueryCache
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, query caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = cache.New(redisClient, cfg.Redis)
			slog.Info("query cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	var publisher *events.Publisher
	if cfg.Kafka.Enabled {
		publisher = events.NewPublisher(cfg.Kafka)
		defer publisher.Close()
		db.SetHooks(lucid.Hooks{
			AfterInsert: func(id string, doc map[string]any) {
				m.DocsIndexedTotal.Inc()
				m.DocsInIndex.Set(float64(db.Len()))
				publisher.PublishIndexed(context.Background(), "default", id, doc)
			},
			AfterRemove: func(id string) {
				m.DocsRemovedTotal.Inc()
				m.DocsInIndex.Set(float64(db.Len()))
				publisher.PublishRemoved(context.Background(), "default", id)
			},
		})
		slog.Info("document lifecycle events enabled", "brokers", cfg.Kafka.Brokers)
	} else {
		db.SetHooks(lucid.Hooks{
			AfterInsert: func(id string, doc map[string]any) {
				m.DocsIndexedTotal.Inc()
				m.DocsInIndex.Set(float64(db.Len()))
			},
			AfterRemove: func(id string) {
				m.DocsRemovedTotal.Inc()
				m.DocsInIndex.Set(float64(db.Len()))
			},
		})
	}

	circuitTicker := time.NewTicker(10 * time.Second)
	defer circuitTicker.Stop()
	go func() {
		for range circuitTicker.C {
			if redisClient != nil {
				m.CircuitBreakerState.WithLabelValues("redis").Set(float64(redisClient.CircuitState()))
			}
			if publisher != nil {
				m.CircuitBreakerState.WithLabelValues("kafka-publisher").Set(float64(publisher.CircuitState()))
			}
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checker := health.NewChecker()
	checker.Register("database", func(ctx context.Context) health.ComponentHealth {
		return health.ComponentHealth{Status: health.StatusUp, Message: "index engine ready"}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := redisClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
		if pgClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := pgClient.DB.PingContext(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	healthMux := http.NewServeMux()
	healthMux.HandleFunc("GET /health/live", checker.LiveHandler())
	healthMux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	healthServer := &http.Server{Addr: ":8090", Handler: healthMux}
	go func() {
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("health server error", "error", err)
		}
	}()

	server := rpc.NewServer()
	server.SetMetrics(m)
	rpc.RegisterDatabase(server, db, rpc.DatabaseOptions{Cache: queryCache, Metrics: m})

	var metricsShutdown func(context.Context) error
	if cfg.Metrics.Enabled {
		metricsShutdown = metrics.StartServer(cfg.Metrics.Port)
		slog.Info("metrics server listening", "port", cfg.Metrics.Port)
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		server.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.RPC.ShutdownTimeout)
		defer cancel()
		_ = healthServer.Shutdown(shutdownCtx)
		if metricsShutdown != nil {
			_ = metricsShutdown(shutdownCtx)
		}
	}()

	slog.Info("rpc server listening", "port", cfg.RPC.Port, "methods", server.MethodCount())
	if err := server.Serve(fmt.Sprintf(":%d", cfg.RPC.Port)); err != nil {
		slog.Error("rpc server error", "error", err)
		os.Exit(1)
	}

	slog.Info("lucid server stopped")
}

// loadSchema reads a JSON schema literal from path. An empty path yields
// a minimal default schema suitable for smoke-testing the server.
func loadSchema(path string) (schema.Literal, error) {
	if path == "" {
		return schema.Literal{
			"id":    "string",
			"title": "string",
			"body":  "string",
		}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schema file %s: %w", path, err)
	}
	var lit schema.Literal
	if err := json.Unmarshal(data, &lit); err != nil {
		return nil, fmt.Errorf("parsing schema file %s: %w", path, err)
	}
	return lit, nil
}
