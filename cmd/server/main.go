package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cantera/papers-backend/internal/config"
	delivery "github.com/cantera/papers-backend/internal/delivery/http"
	"github.com/cantera/papers-backend/internal/middleware"
	"github.com/cantera/papers-backend/internal/repository/postgres"
	"github.com/cantera/papers-backend/internal/usecase"
	"github.com/cantera/papers-backend/pkg/crossref"
	"github.com/cantera/papers-backend/pkg/datacite"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Cantera Papers backend starting...")

	// Load configuration
	cfg := config.Load()
	log.Printf("Server configured on port %s", cfg.Server.Port)

	// Connect to PostgreSQL with retry
	var pool *pgxpool.Pool
	for attempt := 1; attempt <= 5; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		var err error
		pool, err = pgxpool.New(ctx, cfg.Database.URL)
		if err == nil {
			if pingErr := pool.Ping(ctx); pingErr == nil {
				cancel()
				log.Println("Connected to PostgreSQL")
				break
			} else {
				pool.Close()
				log.Printf("Attempt %d: Failed to ping database: %v", attempt, pingErr)
			}
		} else {
			log.Printf("Attempt %d: Failed to connect to database: %v", attempt, err)
		}
		cancel()
		if attempt == 5 {
			log.Fatalf("Could not connect to database after 5 attempts")
		}
		time.Sleep(time.Duration(attempt) * 2 * time.Second)
	}
	defer pool.Close()

	// Initialize repositories
	paperRepo := postgres.NewPaperRepository(pool)
	loginEventRepo := postgres.NewLoginEventRepository(pool)

	// Initialize external API clients
	dataciteClient := datacite.NewClient()
	crossrefClient := crossref.NewClient()
	resolver := usecase.NewResolver(dataciteClient, crossrefClient)

	// Initialize usecases
	sessions := usecase.NewSessionCodec(&cfg.Session)
	oauthUsecase := usecase.NewOAuthUsecase(&cfg.GitHub, cfg.BaseURL, cfg.StateSecret, loginEventRepo)
	moderationUsecase := usecase.NewModerationUsecase(paperRepo, resolver)

	// Initialize HTTP handler and middleware
	handler := delivery.NewHandler(oauthUsecase, sessions, moderationUsecase, loginEventRepo)
	authMiddleware := middleware.NewAuthMiddleware(sessions)

	// Create router
	router := delivery.NewRouter(handler, authMiddleware, cfg.CORS.AllowedOrigins)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	fmt.Println()
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped gracefully")
}
