package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"authgate/internal/accounts"
	"authgate/internal/audit"
	"authgate/internal/cache"
	"authgate/internal/catalog"
	"authgate/internal/platform/config"
	"authgate/internal/platform/httpserver"
	"authgate/internal/platform/logger"
	platformredis "authgate/internal/platform/redis"
	"authgate/internal/resolver"
	"authgate/internal/resolver/metrics"
	"authgate/internal/rules"
	"authgate/internal/token"
	httptransport "authgate/internal/transport/http"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps
// the server lifecycle small. Authorization semantics live in internal
// packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Decision cache: Redis when configured, in-process otherwise.
	var cacheStore cache.Store
	var healthChecks []httptransport.HealthCheck
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		cacheStore = cache.NewRedisStore(redisClient.Client)
		healthChecks = append(healthChecks, redisClient.Health)
		log.Info("decision cache backed by redis")
	} else {
		cacheStore = cache.NewInMemoryStore()
		log.Info("decision cache in-process, redis not configured")
	}

	// Personalized rules: Postgres when configured, in-memory otherwise.
	var ruleStore rules.Store
	if cfg.PostgresDSN != "" {
		db, err := rules.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Error("postgres connection failed", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		ruleStore = rules.NewPostgres(db)
		healthChecks = append(healthChecks, db.PingContext)
		log.Info("rule store backed by postgres")
	} else {
		ruleStore = rules.NewInMemoryStore()
		log.Info("rule store in-memory, postgres not configured")
	}

	cat, err := loadCatalog(os.Getenv("AUTHGATE_CATALOG_PATH"))
	if err != nil {
		log.Error("catalog load failed", "error", err)
		os.Exit(1)
	}

	resolverOpts := []resolver.Option{
		resolver.WithLogger(log),
		resolver.WithMetrics(metrics.New()),
		resolver.WithCache(cacheStore),
		resolver.WithCacheTTL(cfg.CacheTTL),
		resolver.WithTraceEnabled(cfg.TraceEnabled),
		resolver.WithErrorBufferSize(cfg.ErrorBufferSize),
	}

	publisher, err := audit.New(cfg.KafkaBrokers, cfg.KafkaTopic, audit.WithLogger(log))
	if err != nil {
		log.Error("audit publisher setup failed", "error", err)
		os.Exit(1)
	}
	if publisher != nil {
		defer publisher.Close()
		resolverOpts = append(resolverOpts, resolver.WithAuditSink(publisher))
		log.Info("audit events published to kafka", "topic", cfg.KafkaTopic)
	}

	res := resolver.New(resolver.Deps{
		Accounts: accounts.NewInMemoryProvider(),
		Rules:    ruleStore,
		Catalog:  catalog.NewProvider(cat),
	}, resolverOpts...)

	tokens := token.NewService(cfg.JWTSigningKey, cfg.TokenIssuer, cfg.TokenAudience)
	handler := httptransport.New(res, log)
	router := httptransport.NewRouter(handler, tokens, log, healthChecks...)

	srv := httpserver.New(cfg.Addr, router)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting authgate", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	log.Info("authgate stopped")
}

// loadCatalog reads the role catalog from a JSON file. An empty path
// yields an empty catalog, useful for smoke testing with personalized
// rules only.
func loadCatalog(path string) (catalog.Catalog, error) {
	if path == "" {
		return catalog.Catalog{}, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return catalog.Catalog{}, err
	}

	var cat catalog.Catalog
	if err := json.Unmarshal(raw, &cat); err != nil {
		return catalog.Catalog{}, err
	}
	return cat, nil
}
