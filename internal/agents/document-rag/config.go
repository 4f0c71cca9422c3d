// internal/agents/document-rag/config.go
package documentrag

import "time"

type Config struct {
	Index      string
	MaxResults int
	Timeout    time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Index:      "plan-documents",
		MaxResults: 3,
		Timeout:    10 * time.Second,
	}
}
