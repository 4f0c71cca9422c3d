// internal/intent/router.go
package intent

import (
	"context"
	"fmt"
	"sort"
	"strings"

	commonerrors "benefits-router/internal/common/errors"
	"benefits-router/internal/common/logger"
	"benefits-router/internal/common/metrics"
	"benefits-router/internal/models"
)

// FallbackClassifier is the external generative capability consulted when
// pattern confidence is weak. Implementations must bound the call with a
// timeout and report outages as an error rather than hanging.
type FallbackClassifier interface {
	Classify(ctx context.Context, query string) (models.Intent, float64, error)
}

// Router composes the extractor, the pattern classifier, and the optional
// fallback classifier into a single classification decision.
type Router struct {
	classifier *Classifier
	fallback   FallbackClassifier
	threshold  float64
	logger     logger.Logger
}

// NewRouter builds a Router. fallback may be nil, in which case the pattern
// result is always final. threshold is the medium confidence band boundary.
func NewRouter(classifier *Classifier, fallback FallbackClassifier, threshold float64, log logger.Logger) *Router {
	if threshold <= 0 {
		threshold = MediumConfidenceThreshold
	}
	return &Router{
		classifier: classifier,
		fallback:   fallback,
		threshold:  threshold,
		logger:     log.WithFields(map[string]interface{}{"component": "intent-router"}),
	}
}

// Route classifies a query. The only error it can return is InvalidInput for
// a blank query; a fallback classifier outage is recovered locally and the
// pattern-based result is used instead.
func (r *Router) Route(ctx context.Context, query string) (*models.ClassificationResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, commonerrors.NewInvalidInputError("query must not be empty or blank")
	}

	entities := Extract(query)
	counts, ranking := r.classifier.ClassifyPatterns(query)

	top := ranking[0]
	chosen := top.Intent
	if top.Matches == 0 {
		// Priority ordering only breaks ties between actual matches; a query
		// nothing matched is a general inquiry.
		chosen = models.IntentGeneralInquiry
	}
	confidence := deriveConfidence(top.Matches, ranking[1].Matches, chosen, entities)
	source := "pattern"

	if confidence < r.threshold && r.fallback != nil {
		fbIntent, fbConfidence, err := r.fallback.Classify(ctx, query)
		switch {
		case err != nil:
			// Escalation failure must never surface; keep the pattern result.
			metrics.FallbackInvocations.WithLabelValues("unavailable").Inc()
			r.logger.Warn("fallback classifier unavailable, keeping pattern result", map[string]interface{}{
				"error":   err.Error(),
				"intent":  string(chosen),
				"pattern": confidence,
			})
		case fbConfidence > confidence:
			metrics.FallbackInvocations.WithLabelValues("adopted").Inc()
			chosen = fbIntent
			confidence = fbConfidence
			source = "genai"
		default:
			metrics.FallbackInvocations.WithLabelValues("kept_pattern").Inc()
		}
	}

	result := &models.ClassificationResult{
		Intent:         chosen,
		Confidence:     confidence,
		PatternMatches: counts,
		Entities:       entities,
		FallbackIntent: pickFallbackIntent(chosen, ranking, entities),
		Reasoning:      buildReasoning(chosen, source, counts, ranking, entities),
	}

	r.logger.Debug("query classified", map[string]interface{}{
		"intent":     string(result.Intent),
		"confidence": result.Confidence,
		"source":     source,
		"entities":   len(entities),
	})

	return result, nil
}

// pickFallbackIntent selects the second-choice intent. Normally this is the
// next-ranked intent from the pattern ranking. When the chosen intent is
// member-scoped and a member identifier was extracted, the other
// member-scoped intents are preferred pairwise, since a member-bearing query
// that was misclassified almost always belongs to one of the other two
// member-scoped lookups.
func pickFallbackIntent(chosen models.Intent, ranking []RankedIntent, entities models.EntitySet) models.Intent {
	if chosen.MemberScoped() && entities.Has(models.EntityMemberID) {
		for _, r := range ranking {
			if r.Intent != chosen && r.Intent.MemberScoped() {
				return r.Intent
			}
		}
	}
	for _, r := range ranking {
		if r.Intent != chosen {
			return r.Intent
		}
	}
	return models.IntentGeneralInquiry
}

// buildReasoning assembles the audit text: which rule set won, by how much,
// and which entities were found.
func buildReasoning(chosen models.Intent, source string, counts map[models.Intent]int, ranking []RankedIntent, entities models.EntitySet) string {
	var sb strings.Builder

	switch source {
	case "genai":
		fmt.Fprintf(&sb, "classified as %s by the generative fallback (pattern leader was %s with %d rule matches)",
			chosen, ranking[0].Intent, ranking[0].Matches)
	default:
		if ranking[0].Matches == 0 {
			fmt.Fprintf(&sb, "no pattern rules matched; defaulted to %s", chosen)
		} else {
			fmt.Fprintf(&sb, "classified as %s via pattern rules (%d matched, runner-up %s with %d)",
				chosen, counts[chosen], ranking[1].Intent, ranking[1].Matches)
		}
	}

	if len(entities) > 0 {
		keys := make([]string, 0, len(entities))
		for k := range entities {
			keys = append(keys, string(k))
		}
		sort.Strings(keys)
		fmt.Fprintf(&sb, "; extracted entities: %s", strings.Join(keys, ", "))
	} else {
		sb.WriteString("; no entities extracted")
	}

	return sb.String()
}
