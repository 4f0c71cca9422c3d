// internal/dispatch/dispatcher.go
package dispatch

import (
	"context"
	"errors"

	commonerrors "benefits-router/internal/common/errors"
	"benefits-router/internal/common/logger"
	"benefits-router/internal/common/metrics"
	"benefits-router/internal/models"
)

// GeneralInquiryAgentName is the router's own name for queries no external
// agent serves. It appears in ListAgents alongside the registered agents.
const GeneralInquiryAgentName = "general-inquiry"

const generalInquiryMessage = "I can help with member verification, deductible and out-of-pocket totals, " +
	"benefit accumulators, and benefit coverage questions. Try asking about a specific member, " +
	"for example: \"Is member M1001 active?\""

// Dispatcher maps a classification onto a registered agent, validates the
// required entities, invokes the agent once (no retries; retry policy, if
// any, belongs to the agent), and normalizes the outcome into the unified
// response envelope.
type Dispatcher struct {
	registry *Registry
	logger   logger.Logger
}

func NewDispatcher(registry *Registry, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		logger:   log.WithFields(map[string]interface{}{"component": "dispatcher"}),
	}
}

// AgentNames lists the registered agents plus the general-inquiry responder.
func (d *Dispatcher) AgentNames() []string {
	return append(d.registry.AgentNames(), GeneralInquiryAgentName)
}

// Dispatch executes the classified intent and always returns an envelope;
// every failure mode is captured in it rather than returned as an error.
func (d *Dispatcher) Dispatch(ctx context.Context, query string, classification *models.ClassificationResult) models.DispatchResult {
	result := models.DispatchResult{
		Intent:     classification.Intent,
		Confidence: classification.Confidence,
		Query:      query,
		Reasoning:  classification.Reasoning,
		Entities:   classification.Entities,
	}

	descriptor, ok := d.registry.Lookup(classification.Intent)
	if !ok {
		// Only general_inquiry has no external agent; answer with the
		// canned informational payload.
		result.Success = true
		result.Agent = GeneralInquiryAgentName
		result.Result = map[string]interface{}{
			"message":         generalInquiryMessage,
			"suggestedIntent": string(classification.FallbackIntent),
		}
		return result
	}
	result.Agent = descriptor.Name

	for _, key := range descriptor.RequiredEntities {
		if !classification.Entities.Has(key) {
			stdErr := commonerrors.NewMissingParameterError(string(key))
			result.Success = false
			result.Error = stdErr.Message
			metrics.DispatchFailures.WithLabelValues(string(classification.Intent), string(stdErr.Code)).Inc()
			d.logger.Warn("dispatch blocked on missing entity", map[string]interface{}{
				"intent": string(classification.Intent),
				"agent":  descriptor.Name,
				"param":  string(key),
			})
			return result
		}
	}

	payload, err := descriptor.Invoke(ctx, Request{Query: query, Entities: classification.Entities})
	if err != nil {
		var notFound *commonerrors.NotFoundError
		if errors.As(err, &notFound) {
			// Routing succeeded; absence of data is not a routing failure.
			result.Success = true
			result.Result = notFound.Payload
			return result
		}

		stdErr := commonerrors.NewHandlerError(descriptor.Name, err)
		result.Success = false
		result.Error = stdErr.Message
		metrics.DispatchFailures.WithLabelValues(string(classification.Intent), string(stdErr.Code)).Inc()
		d.logger.Error("agent invocation failed", map[string]interface{}{
			"intent": string(classification.Intent),
			"agent":  descriptor.Name,
			"error":  err.Error(),
		})
		return result
	}

	result.Success = true
	result.Result = payload
	return result
}
