// Package gemini wraps the Gemini API behind a completion client with a
// bounded retry loop, context truncation, and a classified error taxonomy.
package gemini

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"google.golang.org/api/option"
)

// maxResponseLogBytes caps how much of a model response lands in the logs.
const maxResponseLogBytes = 8192

// Options configures a Client.
type Options struct {
	APIKey          string
	Endpoint        string
	Model           string
	Temperature     float64
	TopP            float64
	MaxOutputTokens int
	MaxContextChars int
	MaxContextTurns int
	MaxAttempts     int
	Backoff         Backoff
}

// Client is a Gemini completion client. One instance is safe for concurrent
// use once the model is resolved.
type Client struct {
	genai *genai.Client
	probe llms.Model

	model           string
	temperature     float32
	topP            float32
	maxOutputTokens int32
	maxContextChars int
	maxContextTurns int
	maxAttempts     int
	backoff         Backoff
	clock           Clock

	// generate is the raw model call; tests substitute it.
	generate func(ctx context.Context, prompt string, req Request) (*CompletionResult, error)
}

// NewClient dials nothing; it builds the SDK clients and validates options.
// The probe model is best effort: when it cannot be built, startup probing
// is disabled and the configured model is used as-is.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("gemini: api key required")
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}

	genaiOpts := []option.ClientOption{option.WithAPIKey(opts.APIKey)}
	if opts.Endpoint != "" {
		genaiOpts = append(genaiOpts, option.WithEndpoint(opts.Endpoint))
	}
	gc, err := genai.NewClient(ctx, genaiOpts...)
	if err != nil {
		return nil, fmt.Errorf("gemini: init client: %w", err)
	}

	probeOpts := []googleai.Option{googleai.WithAPIKey(opts.APIKey), googleai.WithDefaultModel(opts.Model)}
	if opts.Endpoint != "" {
		if hc := httpClientForEndpoint(opts.Endpoint); hc != nil {
			probeOpts = append(probeOpts, googleai.WithHTTPClient(hc))
		}
	}
	probe, err := googleai.New(ctx, probeOpts...)
	if err != nil {
		log.Error().Err(err).Msg("probe model init failed, model probing disabled")
		probe = nil
	}

	c := &Client{
		genai:           gc,
		probe:           probe,
		model:           opts.Model,
		temperature:     float32(opts.Temperature),
		topP:            float32(opts.TopP),
		maxOutputTokens: int32(opts.MaxOutputTokens),
		maxContextChars: opts.MaxContextChars,
		maxContextTurns: opts.MaxContextTurns,
		maxAttempts:     opts.MaxAttempts,
		backoff:         opts.Backoff,
		clock:           systemClock{},
	}
	c.generate = c.generateGenai

	log.Info().
		Str("model", opts.Model).
		Str("api_endpoint", opts.Endpoint).
		Int("max_attempts", opts.MaxAttempts).
		Bool("probe", probe != nil).
		Msg("gemini client initialized")
	return c, nil
}

// Model returns the active default model.
func (c *Client) Model() string { return c.model }

// Close releases the underlying SDK client.
func (c *Client) Close() error {
	if c.genai != nil {
		return c.genai.Close()
	}
	return nil
}

// httpClientForEndpoint returns an http.Client that rewrites request URLs to
// the given base endpoint, for pointing the SDKs at a proxy.
func httpClientForEndpoint(baseEndpoint string) *http.Client {
	base, err := url.Parse(baseEndpoint)
	if err != nil {
		log.Warn().Err(err).Str("endpoint", baseEndpoint).Msg("invalid API endpoint, using default")
		return nil
	}
	base.Path = strings.TrimSuffix(base.Path, "/")
	return &http.Client{
		Transport: &endpointRoundTripper{base: base, next: http.DefaultTransport},
	}
}

// endpointRoundTripper rewrites request URLs to a custom base (scheme, host,
// path prefix).
type endpointRoundTripper struct {
	base *url.URL
	next http.RoundTripper
}

func (e *endpointRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req2 := req.Clone(req.Context())
	req2.URL.Scheme = e.base.Scheme
	req2.URL.Host = e.base.Host
	req2.URL.Path = path.Join(e.base.Path, strings.TrimPrefix(req.URL.Path, "/"))
	if req.URL.RawQuery != "" {
		req2.URL.RawQuery = req.URL.RawQuery
	}
	return e.next.RoundTrip(req2)
}

// logResponse logs model output, truncating oversized payloads.
func logResponse(caller, raw string) {
	if len(raw) <= maxResponseLogBytes {
		log.Debug().Str("caller", caller).Str("response", raw).Msg("model response")
		return
	}
	log.Debug().
		Str("caller", caller).
		Str("response", raw[:maxResponseLogBytes]+"... [truncated]").
		Int("response_len", len(raw)).
		Msg("model response")
}
