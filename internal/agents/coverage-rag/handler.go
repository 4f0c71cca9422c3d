// internal/agents/coverage-rag/handler.go
package coveragerag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"

	commonerrors "benefits-router/internal/common/errors"
	"benefits-router/internal/common/logger"
	"benefits-router/internal/dispatch"
	"benefits-router/internal/models"
)

const AgentName = "coverage-rag-agent"

// Handler answers benefit coverage questions by full-text search over the
// coverage index. A service_type entity, when present, narrows the search.
type Handler struct {
	config *Config
	client *elasticsearch.Client
	logger logger.Logger
}

func NewHandler(config *Config, client *elasticsearch.Client, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		client: client,
		logger: log.WithFields(map[string]interface{}{"agent": AgentName}),
	}
}

// Descriptor registers this agent with the dispatcher. The search runs on
// the raw query text, so no entities are required.
func (h *Handler) Descriptor() dispatch.HandlerDescriptor {
	return dispatch.HandlerDescriptor{
		Intent: models.IntentBenefitCoverageRAG,
		Name:   AgentName,
		Invoke: h.Invoke,
	}
}

// Invoke is the dispatch capability.
func (h *Handler) Invoke(ctx context.Context, req dispatch.Request) (interface{}, error) {
	return h.execute(ctx, req.Query, req.Entities.Get(models.EntityServiceType))
}

func (h *Handler) execute(ctx context.Context, query, serviceType string) (*Output, error) {
	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	body := buildSearchBody(query, serviceType, h.config.MaxResults)

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, commonerrors.NewSearchQueryFailedError(h.config.Index, err)
	}

	res, err := h.client.Search(
		h.client.Search.WithContext(ctx),
		h.client.Search.WithIndex(h.config.Index),
		h.client.Search.WithBody(&buf),
	)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, commonerrors.NewSearchTimeoutError(h.config.Index)
		}
		return nil, commonerrors.NewSearchQueryFailedError(h.config.Index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, commonerrors.NewSearchQueryFailedError(h.config.Index, fmt.Errorf("status %s", res.Status()))
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, commonerrors.NewSearchQueryFailedError(h.config.Index, err)
	}

	output := &Output{Total: parsed.Hits.Total.Value}
	for _, hit := range parsed.Hits.Hits {
		output.Hits = append(output.Hits, CoverageHit{
			BenefitID:   hit.ID,
			ServiceType: hit.Source.ServiceType,
			Title:       hit.Source.Title,
			Summary:     hit.Source.Summary,
			Score:       hit.Score,
		})
	}

	if len(output.Hits) == 0 {
		return nil, commonerrors.NewNotFound("coverage", "no coverage entries matched the question")
	}

	return output, nil
}

func buildSearchBody(query, serviceType string, size int) map[string]interface{} {
	boolQuery := map[string]interface{}{
		"must": []interface{}{
			map[string]interface{}{
				"match": map[string]interface{}{
					"summary": query,
				},
			},
		},
	}
	if serviceType != "" {
		boolQuery["filter"] = []interface{}{
			map[string]interface{}{
				"term": map[string]interface{}{
					"service_type": serviceType,
				},
			},
		}
	}

	return map[string]interface{}{
		"size": size,
		"query": map[string]interface{}{
			"bool": boolQuery,
		},
	}
}
