// internal/intent/genai/client.go
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	commonhttp "benefits-router/internal/common/http"
	"benefits-router/internal/common/logger"
	"benefits-router/internal/models"
)

// ErrClassifierUnavailable covers every transport, timeout, and decode
// failure of the remote classifier. The router recovers from it locally;
// callers must never see it.
var ErrClassifierUnavailable = errors.New("CLASSIFIER_UNAVAILABLE")

type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
}

// Client calls the GenAI service's intent classification endpoint. It is
// consulted only when pattern confidence falls below the medium band.
type Client struct {
	config *Config
	client *commonhttp.Client
	logger logger.Logger
}

func NewClient(config *Config, log logger.Logger) *Client {
	return &Client{
		config: config,
		client: commonhttp.NewClient(config.Timeout),
		logger: log.WithFields(map[string]interface{}{
			"component": "genai-classifier",
		}),
	}
}

// Classify posts the query to the remote classifier and returns its intent
// and confidence. The call is bounded by the configured timeout; expiry
// abandons the in-flight request and reports ErrClassifierUnavailable.
func (c *Client) Classify(ctx context.Context, query string) (models.Intent, float64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	body, _ := json.Marshal(map[string]interface{}{
		"query": query,
	})

	var resp *http.Response
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", 0, fmt.Errorf("%w: %v", ErrClassifierUnavailable, ctx.Err())
			}
		}

		req, err := http.NewRequestWithContext(ctx, "POST", c.config.BaseURL+"/api/ai/classify-intent", bytes.NewReader(body))
		if err != nil {
			return "", 0, fmt.Errorf("%w: %v", ErrClassifierUnavailable, err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.config.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
		}

		resp, lastErr = c.client.Do(req)

		if ctx.Err() != nil ||
			errors.Is(lastErr, context.DeadlineExceeded) ||
			errors.Is(lastErr, context.Canceled) {
			return "", 0, fmt.Errorf("%w: timeout", ErrClassifierUnavailable)
		}

		if lastErr == nil {
			if resp.StatusCode == http.StatusOK {
				break
			}
			resp.Body.Close()
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			resp = nil
		}
	}

	if lastErr != nil || resp == nil {
		return "", 0, fmt.Errorf("%w: %v", ErrClassifierUnavailable, lastErr)
	}
	defer resp.Body.Close()

	var apiResponse struct {
		Intent     string  `json:"intent"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return "", 0, fmt.Errorf("%w: decode error: %v", ErrClassifierUnavailable, err)
	}

	parsed, ok := models.ParseIntent(apiResponse.Intent)
	if !ok {
		return "", 0, fmt.Errorf("%w: unknown intent %q", ErrClassifierUnavailable, apiResponse.Intent)
	}

	confidence := apiResponse.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	c.logger.Debug("remote classification succeeded", map[string]interface{}{
		"intent":     string(parsed),
		"confidence": confidence,
	})

	return parsed, confidence, nil
}
