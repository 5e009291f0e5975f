package llm

import (
	"context"

	"github.com/wolfman30/voiceline-ai/pkg/logging"
)

// FallbackClient tries the primary vendor and falls back to the secondary on
// error. The secondary path drops tool definitions, so callers on the
// fallback path get plain text only.
type FallbackClient struct {
	primary   StreamingClient
	secondary StreamingClient
	// secondaryModel overrides Request.Model when falling back, since model
	// ids are not portable across vendors.
	secondaryModel string
	logger         *logging.Logger
}

func NewFallbackClient(primary, secondary StreamingClient, secondaryModel string, logger *logging.Logger) *FallbackClient {
	if primary == nil {
		panic("llm: primary client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &FallbackClient{
		primary:        primary,
		secondary:      secondary,
		secondaryModel: secondaryModel,
		logger:         logger,
	}
}

func (c *FallbackClient) Complete(ctx context.Context, req Request) (Response, error) {
	resp, err := c.primary.Complete(ctx, req)
	if err == nil || c.secondary == nil || ctx.Err() != nil {
		return resp, err
	}
	c.logger.Warn("llm: primary vendor failed, using fallback", "error", err)
	return c.secondary.Complete(ctx, c.fallbackRequest(req))
}

func (c *FallbackClient) CompleteStream(ctx context.Context, req Request) (<-chan StreamChunk, error) {
	chunks, err := c.primary.CompleteStream(ctx, req)
	if err == nil || c.secondary == nil || ctx.Err() != nil {
		return chunks, err
	}
	c.logger.Warn("llm: primary vendor stream failed, using fallback", "error", err)
	return c.secondary.CompleteStream(ctx, c.fallbackRequest(req))
}

func (c *FallbackClient) fallbackRequest(req Request) Request {
	out := req
	out.Tools = nil
	if c.secondaryModel != "" {
		out.Model = c.secondaryModel
	}
	return out
}
