package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/docstack-ai/docstack/engine/pipeline"
	"github.com/docstack-ai/docstack/pkg/metrics"
)

// pipelineAPI is the slice of the orchestrator the handlers need.
type pipelineAPI interface {
	Ingest(ctx context.Context, path string) bool
	Query(ctx context.Context, question string, topK int) pipeline.QueryResponse
	SystemStatus(ctx context.Context) pipeline.Status
}

// QueryRequest is the JSON body for POST /api/query.
type QueryRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k,omitempty"`
}

// IngestRequest is the JSON body for POST /api/ingest.
type IngestRequest struct {
	Path string `json:"path"`
}

// IngestResponse reports the outcome of a synchronous ingest.
type IngestResponse struct {
	Path     string `json:"path"`
	Ingested bool   `json:"ingested"`
}

// newMux builds the API routes.
func newMux(orch pipelineAPI, reg *metrics.Registry, logger *slog.Logger) *http.ServeMux {
	queryLatency := reg.Histogram("docstack_query_seconds", "Query latency in seconds.", nil)
	queriesTotal := reg.Counter("docstack_queries_total", "Total queries served.")
	ingestOK := reg.Counter(metrics.WithLabels("docstack_ingests_total", "status", "ok"), "Ingest outcomes.")
	ingestFailed := reg.Counter(metrics.WithLabels("docstack_ingests_total", "status", "failed"), "")

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("GET /api/status", handleStatus(orch))
	mux.HandleFunc("POST /api/query", handleQuery(orch, queriesTotal, queryLatency))
	mux.HandleFunc("POST /api/ingest", handleIngest(orch, ingestOK, ingestFailed, logger))
	mux.Handle("GET /metrics", reg.Handler())
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleStatus(orch pipelineAPI) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, orch.SystemStatus(r.Context()))
	}
}

func handleQuery(orch pipelineAPI, total *metrics.Counter, latency *metrics.Histogram) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req QueryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if req.Question == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question is required"})
			return
		}

		start := time.Now()
		resp := orch.Query(r.Context(), req.Question, req.TopK)
		total.Inc()
		latency.Since(start)

		// Internal failures still produce a full envelope; the status
		// code tells HTTP clients apart from good answers.
		status := http.StatusOK
		if resp.Error != "" {
			status = http.StatusInternalServerError
		}
		writeJSON(w, status, resp)
	}
}

func handleIngest(orch pipelineAPI, ok, failed *metrics.Counter, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req IngestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if req.Path == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "path is required"})
			return
		}

		ingested := orch.Ingest(r.Context(), req.Path)
		if ingested {
			ok.Inc()
		} else {
			failed.Inc()
			logger.Warn("ingest request failed", "path", req.Path)
		}

		status := http.StatusOK
		if !ingested {
			status = http.StatusUnprocessableEntity
		}
		writeJSON(w, status, IngestResponse{Path: req.Path, Ingested: ingested})
	}
}
