// internal/orchestrator/orchestrator.go
package orchestrator

import (
	"context"
	"sync"
	"time"

	commonerrors "benefits-router/internal/common/errors"
	"benefits-router/internal/common/logger"
	"benefits-router/internal/common/metrics"
	"benefits-router/internal/common/observability"
	"benefits-router/internal/dispatch"
	"benefits-router/internal/intent"
	"benefits-router/internal/models"
)

// Orchestrator is the public entry point: single and batch query processing,
// optional session-scoped history, and agent listing. Concurrent requests
// share only the read-only registry; the history list is the one mutable
// piece of state and is mutex-serialized.
type Orchestrator struct {
	router     *intent.Router
	dispatcher *dispatch.Dispatcher
	logger     logger.Logger
	obs        *observability.Observability

	// maxHistory bounds the history ring; 0 means unbounded (explicit clear
	// only).
	maxHistory int

	mu      sync.Mutex
	history []models.HistoryEntry
}

func New(router *intent.Router, dispatcher *dispatch.Dispatcher, log logger.Logger, obs *observability.Observability, maxHistory int) *Orchestrator {
	return &Orchestrator{
		router:     router,
		dispatcher: dispatcher,
		logger:     log.WithFields(map[string]interface{}{"component": "orchestrator"}),
		obs:        obs,
		maxHistory: maxHistory,
	}
}

// ProcessQuery routes and dispatches one query. It fails only with
// InvalidInput for a blank query; every other condition is captured inside
// the returned envelope.
func (o *Orchestrator) ProcessQuery(ctx context.Context, query string, preserveHistory bool) (models.DispatchResult, error) {
	start := time.Now()

	classification, err := o.router.Route(ctx, query)
	if err != nil {
		return models.DispatchResult{}, err
	}

	result := o.dispatcher.Dispatch(ctx, query, classification)

	elapsed := time.Since(start)
	metrics.QueriesRouted.WithLabelValues(string(result.Intent)).Inc()
	metrics.QueryDuration.WithLabelValues(string(result.Intent)).Observe(elapsed.Seconds())
	if o.obs != nil {
		status := "success"
		if !result.Success {
			status = "failed"
		}
		o.obs.RecordQueryProcessed(ctx, string(result.Intent), status)
		o.obs.RecordQueryDuration(ctx, elapsed, string(result.Intent))
	}

	if preserveHistory {
		o.appendHistory(models.HistoryEntry{
			Query:      query,
			Intent:     result.Intent,
			Confidence: result.Confidence,
			Agent:      result.Agent,
			Success:    result.Success,
		})
	}

	o.logger.Info("query processed", map[string]interface{}{
		"intent":     string(result.Intent),
		"agent":      result.Agent,
		"success":    result.Success,
		"confidence": result.Confidence,
		"durationMs": elapsed.Milliseconds(),
	})

	return result, nil
}

// ProcessBatch processes every query independently; one item's failure,
// including InvalidInput for a blank entry, becomes a failed envelope and
// never aborts the batch. Aggregate counters are derived from the completed
// results, not from shared counters.
func (o *Orchestrator) ProcessBatch(ctx context.Context, queries []string) models.BatchResult {
	results := make([]models.DispatchResult, len(queries))

	var wg sync.WaitGroup
	for i, q := range queries {
		wg.Add(1)
		go func(i int, q string) {
			defer wg.Done()
			res, err := o.ProcessQuery(ctx, q, false)
			if err != nil {
				stdErr := commonerrors.Normalize(err)
				res = models.DispatchResult{
					Success: false,
					Intent:  models.IntentGeneralInquiry,
					Query:   q,
					Error:   stdErr.Message,
				}
			}
			results[i] = res
		}(i, q)
	}
	wg.Wait()

	batch := models.BatchResult{
		Results: results,
		Total:   len(results),
		Intents: make(map[models.Intent]int),
	}
	for _, r := range results {
		if r.Success {
			batch.Successful++
		} else {
			batch.Failed++
		}
		batch.Intents[r.Intent]++
	}

	return batch
}

// History returns a snapshot of the session history, never a live reference.
func (o *Orchestrator) History() []models.HistoryEntry {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]models.HistoryEntry, len(o.history))
	copy(out, o.history)
	return out
}

// ClearHistory resets the session history. Idempotent.
func (o *Orchestrator) ClearHistory() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.history = nil
}

// ListAgents returns the registered agent names plus the router's own
// general-inquiry responder.
func (o *Orchestrator) ListAgents() []string {
	return o.dispatcher.AgentNames()
}

func (o *Orchestrator) appendHistory(entry models.HistoryEntry) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.history = append(o.history, entry)
	if o.maxHistory > 0 && len(o.history) > o.maxHistory {
		o.history = o.history[len(o.history)-o.maxHistory:]
	}
}
