// internal/agents/document-rag/handler.go
package documentrag

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

const AgentName = "document-rag-agent"

// DocumentExcerpt is one matched passage from the plan document corpus.
type DocumentExcerpt struct {
	DocumentID string  `json:"documentId"`
	Document   string  `json:"document"`
	Section    string  `json:"section"`
	Excerpt    string  `json:"excerpt"`
	Score      float64 `json:"score"`
}

// Output is the agent's success payload.
type Output struct {
	Excerpts []DocumentExcerpt `json:"excerpts"`
	Total    int               `json:"total"`
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []struct {
			ID     string  `json:"_id"`
			Score  float64 `json:"_score"`
			Source struct {
				Document string `json:"document"`
				Section  string `json:"section"`
				Content  string `json:"content"`
			} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Handler searches the plan document corpus (SPDs, policies, handbooks) for
// passages answering the question.
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

// Descriptor registers this agent with the dispatcher.
func (h *Handler) Descriptor() dispatch.HandlerDescriptor {
	return dispatch.HandlerDescriptor{
		Intent: models.IntentLocalRAG,
		Name:   AgentName,
		Invoke: h.Invoke,
	}
}

// Invoke is the dispatch capability.
func (h *Handler) Invoke(ctx context.Context, req dispatch.Request) (interface{}, error) {
	return h.execute(ctx, req.Query)
}

func (h *Handler) execute(ctx context.Context, query string) (*Output, error) {
	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	body := map[string]interface{}{
		"size": h.config.MaxResults,
		"query": map[string]interface{}{
			"match": map[string]interface{}{
				"content": query,
			},
		},
	}

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
		output.Excerpts = append(output.Excerpts, DocumentExcerpt{
			DocumentID: hit.ID,
			Document:   hit.Source.Document,
			Section:    hit.Source.Section,
			Excerpt:    hit.Source.Content,
			Score:      hit.Score,
		})
	}

	if len(output.Excerpts) == 0 {
		return nil, commonerrors.NewNotFound("document", "no plan document passages matched the question")
	}

	return output, nil
}
