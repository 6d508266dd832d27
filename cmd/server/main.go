/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the classroom points server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env + CLASSPOINTS_* environment)
  2. Initialize SQLite store
  3. Construct the engines around the store
  4. Configure HTTP router
  5. Start server with graceful shutdown

CONFIGURATION:
  CLASSPOINTS_ADDR             Listen address (default :8080)
  CLASSPOINTS_DB_PATH          SQLite path, ":memory:" works (default classpoints.db)
  CLASSPOINTS_CORS_ORIGINS     Comma-separated allowed origins
  CLASSPOINTS_MAX_POINT_DELTA  Bound on one adjustment (default 1000)
  CLASSPOINTS_AVOID_HOURS      Random-call repeat window (default 24)
  CLASSPOINTS_SEED_DEMO        Load the demo classroom on startup

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

SEE ALSO:
  - config/config.go: Settings
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/classpoints/api"
	"github.com/warp/classpoints/config"
	"github.com/warp/classpoints/ledger"
	"github.com/warp/classpoints/randomcall"
	"github.com/warp/classpoints/redemption"
	"github.com/warp/classpoints/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Engines
	lg := ledger.New(store, ledger.WithMaxDelta(cfg.MaxPointDelta))
	shop := redemption.New(store)
	caller := randomcall.New(store)

	handler := api.NewHandler(store, lg, shop, caller)
	handler.AvoidHours = cfg.AvoidHours

	if cfg.SeedDemo {
		if err := api.SeedClassroom(context.Background(), store, "demo-teacher"); err != nil {
			log.Printf("Warning: demo seed failed: %v", err)
		}
	}

	router := api.NewRouter(handler, cfg.CORSOrigins)

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
