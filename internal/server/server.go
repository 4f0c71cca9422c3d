// internal/server/server.go
package server

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	commonerrors "benefits-router/internal/common/errors"
	"benefits-router/internal/common/logger"
	"benefits-router/internal/common/validation"
	"benefits-router/internal/orchestrator"
)

// Server exposes the orchestrator over HTTP.
type Server struct {
	orchestrator *orchestrator.Orchestrator
	logger       logger.Logger
	maxBatchSize int
}

func New(orc *orchestrator.Orchestrator, log logger.Logger, maxBatchSize int) *Server {
	if maxBatchSize <= 0 {
		maxBatchSize = 50
	}
	return &Server{
		orchestrator: orc,
		logger:       log.WithFields(map[string]interface{}{"component": "http-server"}),
		maxBatchSize: maxBatchSize,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/query", s.handleQuery)
	mux.HandleFunc("POST /api/v1/query/batch", s.handleBatch)
	mux.HandleFunc("GET /api/v1/agents", s.handleAgents)
	mux.HandleFunc("GET /api/v1/history", s.handleGetHistory)
	mux.HandleFunc("DELETE /api/v1/history", s.handleClearHistory)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	log := s.logger.WithFields(map[string]interface{}{"requestId": requestID})

	var raw map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		s.writeError(w, http.StatusBadRequest, "request body must be valid JSON")
		return
	}
	if err := validation.ValidateRequest(raw, validation.QueryRequestSchema); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	query, _ := raw["query"].(string)
	preserveHistory, _ := raw["preserve_history"].(bool)

	result, err := s.orchestrator.ProcessQuery(r.Context(), query, preserveHistory)
	if err != nil {
		stdErr := commonerrors.Normalize(err)
		log.Warn("query rejected", map[string]interface{}{
			"code":  string(stdErr.Code),
			"error": stdErr.Message,
		})
		s.writeError(w, commonerrors.HTTPStatus(stdErr.Code), stdErr.Message)
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var raw map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		s.writeError(w, http.StatusBadRequest, "request body must be valid JSON")
		return
	}
	if err := validation.ValidateRequest(raw, validation.BatchRequestSchema); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rawQueries, _ := raw["queries"].([]interface{})
	if len(rawQueries) > s.maxBatchSize {
		s.writeError(w, http.StatusRequestEntityTooLarge, "batch exceeds the maximum item count")
		return
	}
	queries := make([]string, 0, len(rawQueries))
	for _, q := range rawQueries {
		str, _ := q.(string)
		queries = append(queries, str)
	}

	batch := s.orchestrator.ProcessBatch(r.Context(), queries)
	s.writeJSON(w, http.StatusOK, batch)
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"agents": s.orchestrator.ListAgents(),
	})
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"history": s.orchestrator.History(),
	})
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	s.orchestrator.ClearHistory()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", map[string]interface{}{"error": err.Error()})
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
