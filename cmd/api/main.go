package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"taskpilot/api/internal/ai"
	"taskpilot/api/internal/app"
	"taskpilot/api/internal/config"
	"taskpilot/api/internal/ghub"
	"taskpilot/api/internal/gitsnap"
	"taskpilot/api/internal/search"
	"taskpilot/api/internal/session"
	"taskpilot/api/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	if err := os.MkdirAll(cfg.SnapshotsDir, 0o755); err != nil {
		log.Fatalf("failed to create snapshots dir: %v", err)
	}

	dataStore := store.NewPostgresStore(db)
	snapshots := gitsnap.New(cfg.SnapshotsDir)

	pgfts := search.NewPgFTS(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
	}
	searchService := search.NewService(meiliClient, pgfts)
	if meiliClient != nil {
		defer meiliClient.Close()
	}
	searchService.ReindexAllFromPG(ctx)

	githubClient := ghub.NewClient(cfg.GitHubAPIURL, cfg.GitHubToken)

	var planner *ai.Planner
	if strings.TrimSpace(cfg.OpenAIAPIKey) != "" {
		planner = ai.NewPlanner(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
	} else {
		log.Printf("AI planner disabled: no OPENAI_API_KEY")
	}

	var service *app.Service
	if strings.TrimSpace(cfg.RedisURL) != "" {
		log.Printf("Using Redis for refresh token storage")
		redisStore, err := session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer redisStore.Close()
		service = newService(cfg, dataStore, redisStore, githubClient, planner, snapshots, searchService)
	} else {
		log.Printf("Using PostgreSQL for refresh token storage")
		service = newService(cfg, dataStore, nil, githubClient, planner, snapshots, searchService)
	}

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("TaskPilot API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

// newService keeps the nil checks for optional pieces in one place. A typed
// nil planner pointer must not reach the service as a non-nil interface.
func newService(cfg config.Config, dataStore *store.PostgresStore, sessions *session.RedisStore, github *ghub.Client, planner *ai.Planner, snapshots *gitsnap.Service, searchService *search.Service) *app.Service {
	switch {
	case planner == nil && sessions == nil:
		return app.New(cfg, dataStore, nil, github, nil, snapshots, searchService)
	case planner == nil:
		return app.New(cfg, dataStore, sessions, github, nil, snapshots, searchService)
	case sessions == nil:
		return app.New(cfg, dataStore, nil, github, planner, snapshots, searchService)
	default:
		return app.New(cfg, dataStore, sessions, github, planner, snapshots, searchService)
	}
}
