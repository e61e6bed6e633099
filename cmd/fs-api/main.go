package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"FlowSentry/internal/analytics"
	"FlowSentry/internal/artifact"
	"FlowSentry/internal/config"
	"FlowSentry/internal/event"
	"FlowSentry/internal/model"
	"FlowSentry/internal/scoring"
	"FlowSentry/internal/store"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file.")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	db, err := store.NewStore(ctx, cfg.Storage.PostgresDSN)
	if err != nil {
		log.Fatalf("Failed to connect to record store: %v", err)
	}
	defer db.Close()
	if err := db.EnsureSchema(ctx); err != nil {
		log.Fatalf("Failed to ensure record store schema: %v", err)
	}

	leaseTTL, _ := time.ParseDuration(cfg.Storage.LeaseTTL)
	repo := store.NewRepository(db, leaseTTL)

	artifacts, err := artifact.NewStore(cfg.Artifacts.RootPath)
	if err != nil {
		log.Fatalf("Failed to open artifact store: %v", err)
	}

	var events model.EventPublisher
	if cfg.Events.Enabled {
		pub, err := event.NewPublisher(cfg.Events.NATSURL, cfg.Events.SubjectPrefix)
		if err != nil {
			log.Fatalf("Failed to connect event publisher: %v", err)
		}
		defer pub.Close()
		events = pub
	}

	var ch *analytics.ClickHouseWriter
	var runs model.RunSink
	if cfg.Analytics.Enabled {
		ch, err = analytics.NewClickHouseWriter(cfg.Analytics.ClickHouse)
		if err != nil {
			log.Fatalf("Failed to connect analytics writer: %v", err)
		}
		runs = ch
	}

	trainer := scoring.NewTrainer(repo, artifacts, events, cfg.Training)
	predictor := scoring.NewPredictor(repo, artifacts, trainer, events, runs, cfg.Predict)

	apiHandler := &APIHandler{
		repo:      repo,
		artifacts: artifacts,
		trainer:   trainer,
		predictor: predictor,
		analytics: ch,
	}

	r := mux.NewRouter()
	r.HandleFunc("/api/v1/train", apiHandler.trainHandler).Methods("POST")
	r.HandleFunc("/api/v1/predict", apiHandler.predictHandler).Methods("POST")
	r.HandleFunc("/api/v1/stats", apiHandler.statsHandler).Methods("GET")

	server := &http.Server{
		Addr:    cfg.API.ListenAddr,
		Handler: r,
	}

	go func() {
		log.Printf("API server starting on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v", server.Addr, err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("API server shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	log.Println("API server exited.")
}

// APIHandler holds the dependencies for API handlers.
type APIHandler struct {
	repo      *store.Repository
	artifacts *artifact.Store
	trainer   *scoring.Trainer
	predictor *scoring.Predictor
	analytics *analytics.ClickHouseWriter
}

// predictRequest is the body of POST /api/v1/predict. Both fields are
// optional: an empty record_ids scores everything unprocessed and a zero
// batch_size uses the configured default.
type predictRequest struct {
	RecordIDs []string `json:"record_ids"`
	BatchSize int      `json:"batch_size"`
}

type predictResponse struct {
	Processed int `json:"processed"`
}

// trainHandler triggers a synchronous training run.
func (h *APIHandler) trainHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.trainer.Train(r.Context()); err != nil {
		http.Error(w, fmt.Sprintf("training failed: %v", err), http.StatusInternalServerError)
		return
	}

	version, err := h.artifacts.CurrentVersion()
	if err != nil {
		http.Error(w, fmt.Sprintf("training succeeded but artifact is unreadable: %v", err), http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]string{"version": version})
}

// predictHandler triggers a synchronous batch prediction run.
func (h *APIHandler) predictHandler(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, fmt.Sprintf("failed to decode request: %v", err), http.StatusBadRequest)
			return
		}
	}

	count, err := h.predictor.Predict(r.Context(), req.RecordIDs, req.BatchSize)
	if err != nil {
		http.Error(w, fmt.Sprintf("prediction failed: %v", err), http.StatusInternalServerError)
		return
	}

	writeJSON(w, predictResponse{Processed: count})
}

// statsHandler reports label counts, the current model version and, when
// analytics is enabled, per-day scoring summaries.
func (h *APIHandler) statsHandler(w http.ResponseWriter, r *http.Request) {
	counts, err := h.repo.CountByLabel(r.Context())
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to count records: %v", err), http.StatusInternalServerError)
		return
	}

	resp := map[string]any{
		"labels": counts,
	}

	if version, err := h.artifacts.CurrentVersion(); err == nil {
		resp["model_version"] = version
	}

	if h.analytics != nil {
		daily, err := h.analytics.DailyStats(r.Context(), 7)
		if err != nil {
			log.Printf("Failed to query daily stats: %v", err)
		} else {
			resp["daily"] = daily
		}
	}

	writeJSON(w, resp)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}
