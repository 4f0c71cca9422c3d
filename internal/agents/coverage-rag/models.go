// internal/agents/coverage-rag/models.go
package coveragerag

// CoverageHit is one matched benefit coverage entry.
type CoverageHit struct {
	BenefitID   string  `json:"benefitId"`
	ServiceType string  `json:"serviceType"`
	Title       string  `json:"title"`
	Summary     string  `json:"summary"`
	Score       float64 `json:"score"`
}

// Output is the agent's success payload.
type Output struct {
	Hits  []CoverageHit `json:"hits"`
	Total int           `json:"total"`
}

// searchResponse mirrors the subset of the Elasticsearch response we read.
type searchResponse struct {
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []struct {
			ID     string  `json:"_id"`
			Score  float64 `json:"_score"`
			Source struct {
				ServiceType string `json:"service_type"`
				Title       string `json:"title"`
				Summary     string `json:"summary"`
			} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}
