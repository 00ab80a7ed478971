package engine

import (
	"time"

	"github.com/rhuss/weiche/pkg/api"
)

// Config holds configuration for the engine.
type Config struct {
	// StreamIdleTimeout fails a stream when the backend sends nothing for
	// this long. Zero disables the check.
	StreamIdleTimeout time.Duration

	// Validation limits incoming requests. The zero value selects
	// api.DefaultValidationConfig.
	Validation api.ValidationConfig
}

func (c Config) validation() api.ValidationConfig {
	if c.Validation == (api.ValidationConfig{}) {
		return api.DefaultValidationConfig()
	}
	return c.Validation
}
