package chat

import (
	"context"

	"github.com/havenhealth/patient-portal/pkg/logging"
)

// FallbackClient wraps a primary LLM client with a fallback provider tried
// only after the primary fails.
type FallbackClient struct {
	primary  LLMClient
	fallback LLMClient
	logger   *logging.Logger
}

// NewFallbackClient creates a fallback-enabled client. A nil fallback means
// primary-only.
func NewFallbackClient(primary, fallback LLMClient, logger *logging.Logger) *FallbackClient {
	if logger == nil {
		logger = logging.Default()
	}
	return &FallbackClient{primary: primary, fallback: fallback, logger: logger}
}

// Provider reports the primary provider's name.
func (c *FallbackClient) Provider() string { return c.primary.Provider() }

// Complete tries the primary provider, then the fallback.
func (c *FallbackClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	resp, err := c.primary.Complete(ctx, req)
	if err == nil {
		return resp, nil
	}

	if c.fallback == nil {
		return LLMResponse{}, err
	}
	c.logger.Warn("primary LLM failed, attempting fallback", "error", err)

	resp, fallbackErr := c.fallback.Complete(ctx, req)
	if fallbackErr != nil {
		c.logger.Error("fallback LLM also failed",
			"primary_error", err,
			"fallback_error", fallbackErr,
		)
		return LLMResponse{}, fallbackErr
	}
	return resp, nil
}
