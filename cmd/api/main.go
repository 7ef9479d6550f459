package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appaudit "github.com/bryanwahyu/codeguardian/internal/application/audit"
	"github.com/bryanwahyu/codeguardian/internal/config"
	domain "github.com/bryanwahyu/codeguardian/internal/domain/audit"
	"github.com/bryanwahyu/codeguardian/internal/domain/catalog"
	aiclient "github.com/bryanwahyu/codeguardian/internal/infra/ai/openai"
	rediscache "github.com/bryanwahyu/codeguardian/internal/infra/cache"
	mysqlp "github.com/bryanwahyu/codeguardian/internal/infra/db/mysql"
	postgresp "github.com/bryanwahyu/codeguardian/internal/infra/db/postgres"
	"github.com/bryanwahyu/codeguardian/internal/infra/httpserver"
	"github.com/bryanwahyu/codeguardian/internal/infra/knowledge"
	minioStore "github.com/bryanwahyu/codeguardian/internal/infra/storage"
	"github.com/bryanwahyu/codeguardian/internal/middleware"
)

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	// load config
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	ctx := context.Background()

	// load pattern catalog; a broken catalog means nothing can be scanned
	cat := loadCatalog(cfg.Catalog.Path)
	log.Printf("pattern catalog loaded: %d signatures", cat.Len())

	// connect database (mysql or postgres)
	repo, db, err := connectRepo(ctx, cfg)
	if err != nil {
		log.Fatalf("database connect error: %v", err)
	}
	defer db.Close()

	checkers := map[string]middleware.HealthChecker{
		"database": &middleware.DatabaseHealthChecker{DB: db},
	}

	// redis cache (optional)
	var cache domain.Cache
	if cfg.Redis.Addr != "" {
		rc := rediscache.NewRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			time.Duration(cfg.Redis.TTLHours)*time.Hour)
		cache = rc
		checkers["redis"] = &middleware.PingHealthChecker{Target: rc}
	}

	// minio archive (optional)
	var archiver domain.Archiver
	if cfg.Minio.Endpoint != "" {
		store, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			log.Fatalf("minio init error: %v", err)
		}
		archiver = store
	}

	// knowledge retriever: remote service when configured, otherwise the
	// built-in knowledge base
	var retriever domain.Retriever
	if cfg.Retrieval.Endpoint != "" {
		retriever = knowledge.NewHTTPRetriever(cfg.Retrieval.Endpoint,
			time.Duration(cfg.Retrieval.TimeoutSeconds)*time.Second)
	} else {
		retriever = knowledge.NewMemoryRetriever(knowledge.DefaultEntries())
	}

	// AI verifier (optional, scans degrade to static-only without it)
	var verifier domain.Verifier
	if cfg.OpenAI.APIKey != "" {
		client := aiclient.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model)
		if cfg.OpenAI.Attempts > 0 {
			client.Attempts = cfg.OpenAI.Attempts
		}
		if cfg.OpenAI.TimeoutSeconds > 0 {
			client.AttemptTimeout = time.Duration(cfg.OpenAI.TimeoutSeconds) * time.Second
		}
		verifier = client
	} else {
		log.Println("no OpenAI key configured, running static-only")
	}

	svc := &appaudit.Service{
		Catalog:   cat,
		Retriever: retriever,
		Verifier:  verifier,
		Repo:      repo,
		Cache:     cache,
		Archiver:  archiver,
		Clock:     appaudit.SystemClock{},
		Policy:    buildPolicy(cfg),
		TopK:      cfg.Retrieval.TopK,
	}

	handler := httpserver.NewRouter(svc, cat, httpserver.Options{
		APIKeys:        cfg.Auth.APIKeys,
		RateCapacity:   cfg.RateLimit.Capacity,
		RateRefill:     cfg.RateLimit.RefillRate,
		HealthCheckers: checkers,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // AI verification can be slow
		IdleTimeout:  60 * time.Second,
	}

	// run server
	go func() {
		log.Printf("server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Println("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

// loadCatalog reads the configured catalog file, or falls back to the
// embedded default set. Parse errors are fatal at startup.
func loadCatalog(path string) *catalog.Catalog {
	if path == "" {
		return catalog.Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("catalog read error: %v", err)
	}
	cat, err := catalog.Parse(data)
	if err != nil {
		log.Fatalf("catalog parse error: %v", err)
	}
	return cat
}

func connectRepo(ctx context.Context, cfg *config.Config) (domain.Repository, *sql.DB, error) {
	switch cfg.Database.Driver {
	case "postgres":
		db, err := postgresp.Connect(ctx, cfg.PostgresDSN(), cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
		if err != nil {
			return nil, nil, err
		}
		return postgresp.NewReportRepository(db), db, nil
	case "", "mysql":
		db, err := mysqlp.Connect(ctx, cfg.MySQLDSN(), cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
		if err != nil {
			return nil, nil, err
		}
		return mysqlp.NewReportRepository(db), db, nil
	default:
		return nil, nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

func buildPolicy(cfg *config.Config) domain.Policy {
	pol := domain.DefaultPolicy()
	if cfg.Policy.ConfidenceThreshold > 0 {
		pol.ConfidenceThreshold = cfg.Policy.ConfidenceThreshold
	}
	if cfg.Policy.DeductCritical > 0 {
		pol.DeductCritical = cfg.Policy.DeductCritical
	}
	if cfg.Policy.DeductHigh > 0 {
		pol.DeductHigh = cfg.Policy.DeductHigh
	}
	if cfg.Policy.DeductMedium > 0 {
		pol.DeductMedium = cfg.Policy.DeductMedium
	}
	if cfg.Policy.DeductLow > 0 {
		pol.DeductLow = cfg.Policy.DeductLow
	}
	if cfg.Policy.MaxCodeBytes > 0 {
		pol.MaxCodeBytes = cfg.Policy.MaxCodeBytes
	}
	return pol
}
