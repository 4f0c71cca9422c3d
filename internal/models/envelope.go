// internal/models/envelope.go
package models

// ClassificationResult is the router's full decision for one query. Built per
// request and discarded once the response envelope is assembled.
type ClassificationResult struct {
	Intent         Intent         `json:"intent"`
	Confidence     float64        `json:"confidence"`
	Reasoning      string         `json:"reasoning"`
	PatternMatches map[Intent]int `json:"patternMatches"`
	Entities       EntitySet      `json:"entities"`
	FallbackIntent Intent         `json:"fallbackIntent"`
}

// DispatchResult is the unified response envelope returned for every
// processed query, success or failure. Error is present only when Success is
// false; Result is absent when Success is false.
type DispatchResult struct {
	Success    bool        `json:"success"`
	Intent     Intent      `json:"intent"`
	Confidence float64     `json:"confidence"`
	Agent      string      `json:"agent"`
	Result     interface{} `json:"result,omitempty"`
	Query      string      `json:"query"`
	Reasoning  string      `json:"reasoning"`
	Entities   EntitySet   `json:"extracted_entities"`
	Error      string      `json:"error,omitempty"`
}

// BatchResult aggregates the envelopes of one batch call. Counters are
// derived from the completed per-item results, never from shared mutable
// state.
type BatchResult struct {
	Results    []DispatchResult `json:"results"`
	Total      int              `json:"total"`
	Successful int              `json:"successful"`
	Failed     int              `json:"failed"`
	Intents    map[Intent]int   `json:"intents"`
}

// HistoryEntry is the memory-bounded record kept per processed query when
// session history is enabled. Payloads are deliberately excluded.
type HistoryEntry struct {
	Query      string  `json:"query"`
	Intent     Intent  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Agent      string  `json:"agent"`
	Success    bool    `json:"success"`
}
