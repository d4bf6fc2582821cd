package gemini

import (
	"context"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"google.golang.org/api/iterator"
)

// probePingTimeout bounds each per-model probe request.
const probePingTimeout = 10 * time.Second

// ResolveModel pings the candidate models in priority order and switches the
// client to the first one that answers. When none respond, or probing is
// unavailable, the configured default stays active. Call before serving;
// the model field is not written again afterwards.
func (c *Client) ResolveModel(ctx context.Context, candidates []string) string {
	if c.probe == nil || len(candidates) == 0 {
		return c.model
	}
	for _, name := range candidates {
		pingCtx, cancel := context.WithTimeout(ctx, probePingTimeout)
		_, err := llms.GenerateFromSinglePrompt(pingCtx, c.probe, "ping",
			llms.WithModel(name), llms.WithMaxTokens(8))
		cancel()
		if err == nil {
			log.Info().Str("model", name).Msg("model probe succeeded")
			c.model = name
			return name
		}
		log.Warn().Err(err).Str("model", name).Msg("model probe failed, trying next")
	}
	log.Warn().Str("model", c.model).Msg("no candidate model answered, keeping configured default")
	return c.model
}

// CountTokens reports how many tokens the active model counts for text.
func (c *Client) CountTokens(ctx context.Context, text string) (int32, error) {
	model := c.genai.GenerativeModel(c.model)
	resp, err := model.CountTokens(ctx, genai.Text(text))
	if err != nil {
		return 0, classify(err)
	}
	return resp.TotalTokens, nil
}

// ListModels returns the model names the API exposes for this key.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	it := c.genai.ListModels(ctx)
	var names []string
	for {
		m, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, classify(err)
		}
		names = append(names, m.Name)
	}
	return names, nil
}
