package cmd

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"etldeploy/api"
	"etldeploy/runner"
	"etldeploy/runner/storage"
)

// Serve starts the HTTP server
func Serve(configPath string) error {
	// Load .env file if it exists (ignore errors if it doesn't)
	_ = godotenv.Load()

	// Get port from environment variable or use default
	port := getEnv("PORT", "8080")

	cfg, err := runner.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		log.Printf("Warning: deploy config validation: %v", err)
	}

	dataDir := filepath.Join(cfg.RootDir, "data")
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	store, err := storage.NewStorage(filepath.Join(dataDir, "etldeploy.db"))
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()

	// Start scheduler for automatic runs
	if len(cfg.Schedules) > 0 {
		scheduler := runner.NewScheduler(cfg, store)
		go scheduler.Start()
		defer scheduler.Stop()
		log.Printf("📁 Loaded %d schedule(s)", len(cfg.Schedules))
	}

	// Setup HTTP routes
	mux := http.NewServeMux()

	// CORS middleware
	corsMiddleware := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}

	// API endpoints
	mux.HandleFunc("/api/runs", api.GetRuns(store))
	mux.HandleFunc("/api/runs/", api.GetRun(store))
	mux.HandleFunc("/api/run", api.PostRun(store, cfg))

	mux.HandleFunc("/api/instances", api.GetInstances(cfg))
	mux.HandleFunc("/api/instances/", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/runs") {
			api.GetInstanceRuns(store)(w, r)
		} else if strings.HasSuffix(r.URL.Path, "/stats") {
			api.GetInstanceStats(store)(w, r)
		} else {
			http.NotFound(w, r)
		}
	})

	mux.HandleFunc("/api/events", api.SSEHandler())

	serverAddr := ":" + port
	log.Printf("🚀 Starting etldeploy server on port %s...", port)

	if err := http.ListenAndServe(serverAddr, corsMiddleware(mux)); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// getEnv gets environment variable or returns default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
