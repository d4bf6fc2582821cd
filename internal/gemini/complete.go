package gemini

import (
	"context"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog/log"
)

// FinishReason says how a completion ended.
type FinishReason string

const (
	// FinishComplete is a normal, full completion.
	FinishComplete FinishReason = "COMPLETE"
	// FinishTruncated means the output hit the token limit; the partial text
	// is still returned.
	FinishTruncated FinishReason = "TRUNCATED"
	// FinishFiltered means safety filtering suppressed some or all of the
	// output. It is a successful call, possibly with empty text.
	FinishFiltered FinishReason = "FILTERED"
	// FinishError marks a response the API returned but that carries no
	// usable completion semantics.
	FinishError FinishReason = "ERROR"
)

// Request carries per-call completion parameters. Zero values fall back to
// the client defaults.
type Request struct {
	Model           string
	SystemPrompt    string
	Context         []Turn
	Temperature     float64
	TopP            float64
	MaxOutputTokens int
}

// CompletionResult is the outcome of a successful Complete call.
type CompletionResult struct {
	Text         string
	FinishReason FinishReason
	FilterReason string
	Model        string
	Latency      time.Duration
	Attempts     int
	TokensIn     int32
	TokensOut    int32
}

// Complete sends the prompt with its conversation context and returns the
// completion. Rate limits and server errors are retried with exponential
// backoff up to the attempt cap; auth and invalid-request errors fail
// immediately, and a timeout returns TIMEOUT with no partial text. The
// caller's context deadline bounds everything, including backoff sleeps.
func (c *Client) Complete(ctx context.Context, prompt string, req Request) (*CompletionResult, error) {
	if req.Model == "" {
		req.Model = c.model
	}
	req.Context = TruncateContext(req.Context, len([]rune(prompt)), c.maxContextChars, c.maxContextTurns)

	start := c.clock.Now()
	var lastErr *APIError
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		res, err := c.generate(ctx, prompt, req)
		if err == nil {
			res.Latency = c.clock.Now().Sub(start)
			res.Attempts = attempt
			res.Model = req.Model
			return res, nil
		}

		lastErr = classify(err)
		lastErr.Attempts = attempt
		if !lastErr.Retryable() || attempt == c.maxAttempts {
			break
		}

		delay := c.backoff.Delay(attempt)
		log.Warn().
			Str("kind", string(lastErr.Kind)).
			Str("model", req.Model).
			Int("attempt", attempt).
			Dur("retry_in", delay).
			Msg("completion failed, retrying")
		if serr := c.clock.Sleep(ctx, delay); serr != nil {
			lastErr = &APIError{Kind: KindTimeout, Message: "canceled during retry backoff: " + serr.Error(), Attempts: attempt}
			break
		}
	}

	log.Error().
		Str("kind", string(lastErr.Kind)).
		Str("model", req.Model).
		Int("attempts", lastErr.Attempts).
		Msg("completion failed")
	return nil, lastErr
}

func (c *Client) generateGenai(ctx context.Context, prompt string, req Request) (*CompletionResult, error) {
	model := c.genai.GenerativeModel(req.Model)
	model.SetTemperature(pickFloat32(req.Temperature, c.temperature))
	model.SetTopP(pickFloat32(req.TopP, c.topP))
	model.SetMaxOutputTokens(pickInt32(req.MaxOutputTokens, c.maxOutputTokens))
	if req.SystemPrompt != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.SystemPrompt)}}
	}

	cs := model.StartChat()
	cs.History = chatHistory(req.Context)

	resp, err := cs.SendMessage(ctx, genai.Text(prompt))
	if err != nil {
		return nil, err
	}
	return interpret(resp)
}

// interpret maps a raw API response onto completion semantics. A blocked
// prompt is a successful FILTERED result with empty text, not an error; an
// empty response with no block reason is a retryable server error.
func interpret(resp *genai.GenerateContentResponse) (*CompletionResult, error) {
	res := &CompletionResult{}
	if resp.UsageMetadata != nil {
		res.TokensIn = resp.UsageMetadata.PromptTokenCount
		res.TokensOut = resp.UsageMetadata.CandidatesTokenCount
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
		res.FinishReason = FinishFiltered
		res.FilterReason = "prompt blocked: " + resp.PromptFeedback.BlockReason.String()
		return res, nil
	}

	if len(resp.Candidates) == 0 {
		return nil, &APIError{Kind: KindServerError, Message: "response carried no candidates"}
	}

	cand := resp.Candidates[0]
	var sb strings.Builder
	if cand.Content != nil {
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
	}
	res.Text = sb.String()
	logResponse("Complete", res.Text)

	switch cand.FinishReason {
	case genai.FinishReasonStop:
		res.FinishReason = FinishComplete
	case genai.FinishReasonMaxTokens:
		res.FinishReason = FinishTruncated
	case genai.FinishReasonSafety, genai.FinishReasonRecitation:
		res.FinishReason = FinishFiltered
		res.FilterReason = "candidate " + strings.ToLower(cand.FinishReason.String())
	default:
		if res.Text != "" {
			res.FinishReason = FinishComplete
		} else {
			res.FinishReason = FinishError
		}
	}
	return res, nil
}

func chatHistory(turns []Turn) []*genai.Content {
	if len(turns) == 0 {
		return nil
	}
	out := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		out = append(out, &genai.Content{
			Role:  t.Role,
			Parts: []genai.Part{genai.Text(t.Text)},
		})
	}
	return out
}

func pickFloat32(v float64, def float32) float32 {
	if v > 0 {
		return float32(v)
	}
	return def
}

func pickInt32(v int, def int32) int32 {
	if v > 0 {
		return int32(v)
	}
	return def
}
