package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"

	"etldeploy/runner"
	"etldeploy/runner/storage"
)

// GetRuns returns all runs
func GetRuns(store *storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		runs, err := store.GetRuns(100) // Limit to 100 most recent
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to get runs: %v", err), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(runs)
	}
}

// GetRun returns a single run with its stages
func GetRun(store *storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		// Parse run ID from URL: /api/runs/:id
		pathParts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		if len(pathParts) < 3 {
			http.Error(w, "Invalid path", http.StatusBadRequest)
			return
		}

		runID, err := strconv.Atoi(pathParts[2])
		if err != nil {
			http.Error(w, "Invalid run ID", http.StatusBadRequest)
			return
		}

		run, err := store.GetRun(runID)
		if err != nil {
			http.Error(w, fmt.Sprintf("Run not found: %v", err), http.StatusNotFound)
			return
		}

		stages, err := store.GetStageExecutions(runID)
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to get stages: %v", err), http.StatusInternalServerError)
			return
		}

		type RunResponse struct {
			Run    *storage.Run              `json:"run"`
			Stages []*storage.StageExecution `json:"stages"`
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(RunResponse{Run: run, Stages: stages})
	}
}

// PostRun triggers a new provisioning run for an instance
func PostRun(store *storage.Storage, cfg *runner.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"error": "Method not allowed",
			})
			return
		}

		var req struct {
			Instance int `json:"instance"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"error": fmt.Sprintf("Invalid request: %v", err),
			})
			return
		}

		if _, err := runner.ResolveParams(cfg, req.Instance); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"error": err.Error(),
			})
			return
		}

		log.Printf("🚀 Triggering provisioning run: instance %d", req.Instance)

		result, err := runner.RunInstance(r.Context(), cfg, req.Instance, runner.RunOptions{
			Storage:          store,
			StreamToTerminal: false, // Don't stream when triggered via API
		})
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			response := map[string]interface{}{
				"error": err.Error(),
			}
			if result != nil {
				response["run_id"] = result.RunID
				response["uid"] = result.UID
			}
			json.NewEncoder(w).Encode(response)
			return
		}

		json.NewEncoder(w).Encode(map[string]interface{}{
			"run_id":    result.RunID,
			"uid":       result.UID,
			"status":    result.Status,
			"exit_code": result.ExitCode,
			"warnings":  result.Warnings,
		})
	}
}

// GetInstances returns the allowed instances and their directory state
func GetInstances(cfg *runner.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		type InstanceResponse struct {
			Instance    int    `json:"instance"`
			ProjectDir  string `json:"project_dir"`
			Provisioned bool   `json:"provisioned"`
		}

		instances := make([]InstanceResponse, 0, cfg.MaxInstance)
		for n := 1; n <= cfg.MaxInstance; n++ {
			params, err := runner.ResolveParams(cfg, n)
			if err != nil {
				continue
			}
			ir := InstanceResponse{Instance: n, ProjectDir: params.ProjectDir}
			if _, err := os.Stat(params.VenvDir); err == nil {
				ir.Provisioned = true
			}
			instances = append(instances, ir)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(instances)
	}
}

// GetInstanceRuns returns runs for a specific instance
func GetInstanceRuns(store *storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		instance, ok := instanceFromPath(w, r)
		if !ok {
			return
		}

		runs, err := store.GetRunsByInstance(instance, 50)
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to get runs: %v", err), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(runs)
	}
}

// GetInstanceStats returns aggregate run stats for a specific instance
func GetInstanceStats(store *storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		instance, ok := instanceFromPath(w, r)
		if !ok {
			return
		}

		stats, err := store.GetInstanceStats(instance)
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to get stats: %v", err), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(stats)
	}
}

// instanceFromPath parses the instance number from URLs like
// /api/instances/:n/runs
func instanceFromPath(w http.ResponseWriter, r *http.Request) (int, bool) {
	pathParts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(pathParts) < 3 {
		http.Error(w, "Invalid path", http.StatusBadRequest)
		return 0, false
	}

	instance, err := strconv.Atoi(pathParts[2])
	if err != nil {
		http.Error(w, "Invalid instance number", http.StatusBadRequest)
		return 0, false
	}
	return instance, true
}
