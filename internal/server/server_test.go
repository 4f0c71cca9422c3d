// internal/server/server_test.go
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"benefits-router/internal/common/logger"
	"benefits-router/internal/dispatch"
	"benefits-router/internal/intent"
	"benefits-router/internal/models"
	"benefits-router/internal/orchestrator"
)

// ==========================
// Test Helper Functions
// ==========================

func stubDescriptor(intentName models.Intent, agent string, required []models.EntityKey) dispatch.HandlerDescriptor {
	return dispatch.HandlerDescriptor{
		Intent:           intentName,
		Name:             agent,
		RequiredEntities: required,
		Invoke: func(ctx context.Context, req dispatch.Request) (interface{}, error) {
			return map[string]interface{}{"agent": agent}, nil
		},
	}
}

func newTestServer(t *testing.T, maxBatchSize int) *httptest.Server {
	registry, err := dispatch.NewRegistry(
		stubDescriptor(models.IntentMemberVerification, "member-verification-agent", []models.EntityKey{models.EntityMemberID}),
		stubDescriptor(models.IntentDeductibleOOP, "deductible-oop-agent", []models.EntityKey{models.EntityMemberID}),
		stubDescriptor(models.IntentBenefitCoverageRAG, "coverage-rag-agent", nil),
	)
	require.NoError(t, err)

	log := logger.NewTestLogger(t)
	router := intent.NewRouter(intent.NewClassifier(), nil, intent.MediumConfidenceThreshold, log)
	orc := orchestrator.New(router, dispatch.NewDispatcher(registry, log), log, nil, 0)

	srv := httptest.NewServer(New(orc, log, maxBatchSize).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, payload interface{}) *http.Response {
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	defer resp.Body.Close()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

// ==========================
// Query Endpoint
// ==========================

func TestHandleQuery_Success(t *testing.T) {
	srv := newTestServer(t, 0)

	resp := postJSON(t, srv.URL+"/api/v1/query", map[string]interface{}{
		"query": "Is member M1001 active?",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "member_verification", body["intent"])
	assert.Equal(t, "member-verification-agent", body["agent"])
	assert.Equal(t, "Is member M1001 active?", body["query"])
	assert.NotEmpty(t, body["reasoning"])

	entities := body["extracted_entities"].(map[string]interface{})
	assert.Equal(t, "M1001", entities["member_id"])
}

func TestHandleQuery_InvalidRequests(t *testing.T) {
	srv := newTestServer(t, 0)

	tests := []struct {
		name     string
		body     string
		expected int
	}{
		{
			name:     "malformed json",
			body:     "{not json",
			expected: http.StatusBadRequest,
		},
		{
			name:     "missing query field",
			body:     `{"preserve_history": true}`,
			expected: http.StatusBadRequest,
		},
		{
			name:     "unknown field rejected",
			body:     `{"query": "hi", "verbose": true}`,
			expected: http.StatusBadRequest,
		},
		{
			name:     "blank query",
			body:     `{"query": "   "}`,
			expected: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/api/v1/query", "application/json", bytes.NewReader([]byte(tt.body)))
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.expected, resp.StatusCode)
		})
	}
}

func TestHandleQuery_FailureCapturedInEnvelopeNotStatus(t *testing.T) {
	srv := newTestServer(t, 0)

	// Verification phrasing without a member id: HTTP 200, envelope failure.
	resp := postJSON(t, srv.URL+"/api/v1/query", map[string]interface{}{
		"query": "Can you verify whether the member is active?",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "missing required parameter: member_id", body["error"])
}

// ==========================
// Batch Endpoint
// ==========================

func TestHandleBatch_Success(t *testing.T) {
	srv := newTestServer(t, 0)

	resp := postJSON(t, srv.URL+"/api/v1/query/batch", map[string]interface{}{
		"queries": []string{
			"Is member M1001 active?",
			"What is the deductible for member M1234?",
			"Hello!",
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, float64(3), body["total"])
	assert.Equal(t, float64(3), body["successful"])
	assert.Equal(t, float64(0), body["failed"])
	assert.Len(t, body["results"], 3)
}

func TestHandleBatch_Limits(t *testing.T) {
	srv := newTestServer(t, 2)

	tests := []struct {
		name     string
		queries  []string
		expected int
	}{
		{
			name:     "empty list rejected by schema",
			queries:  []string{},
			expected: http.StatusBadRequest,
		},
		{
			name:     "over the batch cap",
			queries:  []string{"a?", "b?", "c?"},
			expected: http.StatusRequestEntityTooLarge,
		},
		{
			name:     "at the cap",
			queries:  []string{"Is member M1001 active?", "Hello!"},
			expected: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, srv.URL+"/api/v1/query/batch", map[string]interface{}{"queries": tt.queries})
			defer resp.Body.Close()
			assert.Equal(t, tt.expected, resp.StatusCode)
		})
	}
}

// ==========================
// Agents and History
// ==========================

func TestHandleAgents(t *testing.T) {
	srv := newTestServer(t, 0)

	resp, err := http.Get(srv.URL + "/api/v1/agents")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	agents := body["agents"].([]interface{})
	assert.Contains(t, agents, "member-verification-agent")
	assert.Contains(t, agents, dispatch.GeneralInquiryAgentName)
}

func TestHistoryLifecycle(t *testing.T) {
	srv := newTestServer(t, 0)

	// Opted-in query lands in history.
	resp := postJSON(t, srv.URL+"/api/v1/query", map[string]interface{}{
		"query":            "Is member M1001 active?",
		"preserve_history": true,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Opted-out query does not.
	resp = postJSON(t, srv.URL+"/api/v1/query", map[string]interface{}{
		"query": "Hello!",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err := http.Get(srv.URL + "/api/v1/history")
	require.NoError(t, err)
	body := decodeBody(t, resp)
	history := body["history"].([]interface{})
	require.Len(t, history, 1)
	entry := history[0].(map[string]interface{})
	assert.Equal(t, "Is member M1001 active?", entry["query"])

	// DELETE clears it.
	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/v1/history", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/v1/history")
	require.NoError(t, err)
	body = decodeBody(t, resp)
	assert.Empty(t, body["history"])
}

// ==========================
// Operational Endpoints
// ==========================

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, 0)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "ok", body["status"])
}

func TestMetricsExposed(t *testing.T) {
	srv := newTestServer(t, 0)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
