package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"

	"github.com/peachstate/voterlens/internal/analytics"
	"github.com/peachstate/voterlens/internal/api"
	"github.com/peachstate/voterlens/internal/cache"
	"github.com/peachstate/voterlens/internal/config"
	"github.com/peachstate/voterlens/internal/db"
	"github.com/peachstate/voterlens/internal/export"
	"github.com/peachstate/voterlens/internal/repository"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	conn, err := db.NewConnection(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close()

	if err := db.RunMigrations(ctx, conn.Pool, "./migrations"); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	queryCache := cache.New(cfg.CacheSize, cfg.CacheTTL)

	voterRepo, err := repository.NewVoterRepository(conn.Pool, cfg.Schema, queryCache)
	if err != nil {
		log.Fatalf("Failed to create voter repository: %v", err)
	}
	censusRepo, err := repository.NewCensusRepository(conn.Pool, cfg.Schema)
	if err != nil {
		log.Fatalf("Failed to create census repository: %v", err)
	}

	service := analytics.NewService(voterRepo, censusRepo)
	exporter := export.NewService()

	router := api.NewRouter(service, exporter, censusRepo)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000"},
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      corsHandler.Handler(router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting voter analytics server on %s", cfg.HTTPAddr)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
