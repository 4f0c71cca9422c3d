// internal/agents/coverage-rag/config.go
package coveragerag

import "time"

type Config struct {
	Index      string
	MaxResults int
	Timeout    time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Index:      "benefit-coverage",
		MaxResults: 5,
		Timeout:    10 * time.Second,
	}
}
