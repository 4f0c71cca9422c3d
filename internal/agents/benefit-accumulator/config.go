// internal/agents/benefit-accumulator/config.go
package benefitaccumulator

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 10 * time.Second,
	}
}
