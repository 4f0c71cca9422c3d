// internal/agents/coverage-rag/handler_test.go
package coveragerag

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	commonerrors "benefits-router/internal/common/errors"
	"benefits-router/internal/common/logger"
	"benefits-router/internal/dispatch"
	"benefits-router/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestConfig() *Config {
	return &Config{
		Index:      "benefit-coverage",
		MaxResults: 5,
		Timeout:    5 * time.Second,
	}
}

func newSearchServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request, body map[string]interface{})) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")

		var body map[string]interface{}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&body)
		}
		handler(w, r, body)
	}))
}

func newTestHandler(t *testing.T, serverURL string) *Handler {
	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{serverURL}})
	require.NoError(t, err)
	return NewHandler(createTestConfig(), client, logger.NewTestLogger(t))
}

func searchHits(hits ...map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"hits": map[string]interface{}{
			"total": map[string]interface{}{"value": len(hits)},
			"hits":  hits,
		},
	}
}

func coverageRequest(query, serviceType string) dispatch.Request {
	entities := models.EntitySet{}
	if serviceType != "" {
		entities[models.EntityServiceType] = serviceType
	}
	return dispatch.Request{Query: query, Entities: entities}
}

// ==========================
// Search Behavior
// ==========================

func TestInvoke_ReturnsRankedHits(t *testing.T) {
	srv := newSearchServer(t, func(w http.ResponseWriter, r *http.Request, body map[string]interface{}) {
		assert.Contains(t, r.URL.Path, "benefit-coverage")

		json.NewEncoder(w).Encode(searchHits(
			map[string]interface{}{
				"_id":    "cov-1",
				"_score": 4.2,
				"_source": map[string]interface{}{
					"service_type": "acupuncture",
					"title":        "Acupuncture benefit",
					"summary":      "Acupuncture is covered with a $30 copay, 12 visits per year.",
				},
			},
			map[string]interface{}{
				"_id":    "cov-2",
				"_score": 1.1,
				"_source": map[string]interface{}{
					"service_type": "chiropractic",
					"title":        "Chiropractic benefit",
					"summary":      "Chiropractic care is covered after the deductible.",
				},
			},
		))
	})
	defer srv.Close()

	h := newTestHandler(t, srv.URL)

	payload, err := h.Invoke(context.Background(), coverageRequest("Is acupuncture covered?", ""))
	require.NoError(t, err)

	output := payload.(*Output)
	assert.Equal(t, 2, output.Total)
	require.Len(t, output.Hits, 2)
	assert.Equal(t, "cov-1", output.Hits[0].BenefitID)
	assert.Equal(t, "acupuncture", output.Hits[0].ServiceType)
	assert.InDelta(t, 4.2, output.Hits[0].Score, 1e-9)
}

func TestInvoke_ServiceTypeNarrowsTheSearch(t *testing.T) {
	var captured map[string]interface{}
	srv := newSearchServer(t, func(w http.ResponseWriter, r *http.Request, body map[string]interface{}) {
		captured = body
		json.NewEncoder(w).Encode(searchHits(
			map[string]interface{}{
				"_id":    "cov-1",
				"_score": 2.0,
				"_source": map[string]interface{}{
					"service_type": "physical therapy",
					"title":        "Physical therapy benefit",
					"summary":      "30 visits per year.",
				},
			},
		))
	})
	defer srv.Close()

	h := newTestHandler(t, srv.URL)

	_, err := h.Invoke(context.Background(), coverageRequest("physical therapy coverage", "physical therapy"))
	require.NoError(t, err)

	require.NotNil(t, captured)
	boolQuery := captured["query"].(map[string]interface{})["bool"].(map[string]interface{})
	assert.Contains(t, boolQuery, "filter")
}

func TestInvoke_NoFilterWithoutServiceType(t *testing.T) {
	var captured map[string]interface{}
	srv := newSearchServer(t, func(w http.ResponseWriter, r *http.Request, body map[string]interface{}) {
		captured = body
		json.NewEncoder(w).Encode(searchHits(
			map[string]interface{}{
				"_id":     "cov-1",
				"_score":  2.0,
				"_source": map[string]interface{}{"summary": "anything"},
			},
		))
	})
	defer srv.Close()

	h := newTestHandler(t, srv.URL)

	_, err := h.Invoke(context.Background(), coverageRequest("what is covered?", ""))
	require.NoError(t, err)

	boolQuery := captured["query"].(map[string]interface{})["bool"].(map[string]interface{})
	assert.NotContains(t, boolQuery, "filter")
}

// ==========================
// Failure Modes
// ==========================

func TestInvoke_NoHitsIsNotFound(t *testing.T) {
	srv := newSearchServer(t, func(w http.ResponseWriter, r *http.Request, body map[string]interface{}) {
		json.NewEncoder(w).Encode(searchHits())
	})
	defer srv.Close()

	h := newTestHandler(t, srv.URL)

	_, err := h.Invoke(context.Background(), coverageRequest("Is time travel covered?", ""))

	var notFound *commonerrors.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "coverage", notFound.Resource)
}

func TestInvoke_SearchErrorStatus(t *testing.T) {
	srv := newSearchServer(t, func(w http.ResponseWriter, r *http.Request, body map[string]interface{}) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	defer srv.Close()

	h := newTestHandler(t, srv.URL)

	_, err := h.Invoke(context.Background(), coverageRequest("Is acupuncture covered?", ""))
	assert.True(t, commonerrors.IsCode(err, commonerrors.ErrCodeSearchQueryFailed))
}

// ==========================
// Descriptor
// ==========================

func TestDescriptor(t *testing.T) {
	h := NewHandler(createTestConfig(), nil, logger.NewTestLogger(t))

	d := h.Descriptor()
	assert.Equal(t, models.IntentBenefitCoverageRAG, d.Intent)
	assert.Equal(t, AgentName, d.Name)
	assert.Empty(t, d.RequiredEntities, "the search runs on the raw query text")
}
