// Package bot drives a request through the pipeline: completion, markup
// cleanup, optional card rendering, and history. One deadline covers the
// whole pipeline; retries happen inside the model client, never here.
package bot

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/duckworks/geminiduck/internal/gemini"
	"github.com/duckworks/geminiduck/internal/history"
	"github.com/duckworks/geminiduck/internal/markup"
	"github.com/duckworks/geminiduck/internal/render"
)

// Mode selects the response shape.
type Mode string

const (
	// ModeText returns the plain-text reply, chunked for message limits.
	ModeText Mode = "TEXT"
	// ModeImage renders the reply onto a PNG card in the asset store.
	ModeImage Mode = "IMAGE"
)

// Pipeline states, logged and reported as each request moves through them.
const (
	StateReceived   = "RECEIVED"
	StateCompleting = "COMPLETING"
	StateRendering  = "RENDERING"
	StateDone       = "DONE"
	StateFailed     = "FAILED"
)

// Request is one prompt to answer.
type Request struct {
	Prompt  string
	Mode    Mode
	Header  string // card title, IMAGE mode only
	Context []gemini.Turn
	Model   string // optional override of the configured model

	// OnState, when set, observes pipeline state transitions. It is called
	// synchronously from Handle.
	OnState func(state string)
}

func (r Request) notify(state string) {
	if r.OnState != nil {
		r.OnState(state)
	}
}

// Response is the outcome of a handled request. Filtered responses are
// successful; Text may be empty when the model blocked all output.
type Response struct {
	RequestID    string
	Text         string
	Chunks       []string
	AssetID      string
	AssetURL     string
	Model        string
	FinishReason string
	Filtered     bool
	FilterReason string
	Truncated    bool
	Latency      time.Duration
}

// Options configures a Bot.
type Options struct {
	SystemPrompt   string
	RequestTimeout time.Duration
	MaxConcurrent  int64
	ChunkChars     int
}

// Bot owns the request pipeline and bounds its concurrency.
type Bot struct {
	completer Completer
	renderer  CardRenderer
	assets    AssetCreator
	recorder  Recorder
	archiver  Archiver

	systemPrompt string
	timeout      time.Duration
	chunkChars   int
	sem          *semaphore.Weighted
}

// New wires the pipeline. recorder and archiver may be nil.
func New(completer Completer, renderer CardRenderer, assets AssetCreator, recorder Recorder, archiver Archiver, opts Options) *Bot {
	if opts.MaxConcurrent < 1 {
		opts.MaxConcurrent = 1
	}
	if opts.ChunkChars < 1 {
		opts.ChunkChars = 500
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 90 * time.Second
	}
	return &Bot{
		completer:    completer,
		renderer:     renderer,
		assets:       assets,
		recorder:     recorder,
		archiver:     archiver,
		systemPrompt: opts.SystemPrompt,
		timeout:      opts.RequestTimeout,
		chunkChars:   opts.ChunkChars,
		sem:          semaphore.NewWeighted(opts.MaxConcurrent),
	}
}

// Handle runs one request through the pipeline. A single deadline spans the
// completion and render steps, so a slow completion leaves less time for
// rendering rather than extending the request. Failures keep their original
// typed error so callers can read the kind with errors.As.
func (b *Bot) Handle(ctx context.Context, req Request) (*Response, error) {
	reqID := uuid.NewString()
	logger := log.With().Str("request_id", reqID).Str("mode", string(req.Mode)).Logger()

	if req.Mode == "" {
		req.Mode = ModeText
	}
	if req.Mode != ModeText && req.Mode != ModeImage {
		return nil, &gemini.APIError{Kind: gemini.KindInvalidRequest, Message: fmt.Sprintf("unknown mode %q", req.Mode)}
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, &gemini.APIError{Kind: gemini.KindInvalidRequest, Message: "prompt is empty"}
	}

	logger.Info().Int("prompt_chars", len(req.Prompt)).Msg(StateReceived)
	req.notify(StateReceived)

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	if err := b.sem.Acquire(ctx, 1); err != nil {
		werr := &gemini.APIError{Kind: gemini.KindTimeout, Message: "timed out waiting for a request slot"}
		logger.Error().Err(werr).Msg(StateFailed)
		req.notify(StateFailed)
		return nil, werr
	}
	defer b.sem.Release(1)

	logger.Info().Msg(StateCompleting)
	req.notify(StateCompleting)
	result, err := b.completer.Complete(ctx, req.Prompt, gemini.Request{
		Model:        req.Model,
		SystemPrompt: b.systemPrompt,
		Context:      req.Context,
	})
	if err != nil {
		logger.Error().Err(err).Msg(StateFailed)
		req.notify(StateFailed)
		return nil, fmt.Errorf("complete: %w", err)
	}

	plain := markup.PlainText(result.Text)
	resp := &Response{
		RequestID:    reqID,
		Text:         plain,
		Model:        result.Model,
		FinishReason: string(result.FinishReason),
		Filtered:     result.FinishReason == gemini.FinishFiltered,
		FilterReason: result.FilterReason,
		Truncated:    result.FinishReason == gemini.FinishTruncated,
		Latency:      result.Latency,
	}

	switch {
	case resp.Filtered && plain == "":
		// Nothing to render or chunk; the caller sees the filter flag.
	case req.Mode == ModeImage:
		logger.Info().Msg(StateRendering)
		req.notify(StateRendering)
		card, err := b.renderer.Compose(plain, render.Style{Header: req.Header})
		if err != nil {
			logger.Error().Err(err).Msg(StateFailed)
			req.notify(StateFailed)
			return nil, fmt.Errorf("render: %w", err)
		}
		id, err := b.assets.Create("card", "png", card)
		if err != nil {
			logger.Error().Err(err).Msg(StateFailed)
			req.notify(StateFailed)
			return nil, fmt.Errorf("store asset: %w", err)
		}
		resp.AssetID = id
		b.archive(ctx, logger, resp, card)
	default:
		resp.Chunks = markup.Split(plain, b.chunkChars)
	}

	b.record(logger, req, resp)

	logger.Info().
		Dur("latency", result.Latency).
		Int("attempts", result.Attempts).
		Bool("filtered", resp.Filtered).
		Str("asset_id", resp.AssetID).
		Msg(StateDone)
	req.notify(StateDone)

	return resp, nil
}

// archive mirrors the card to the bucket. Upload failures are logged and
// otherwise ignored; the local asset is the source of truth.
func (b *Bot) archive(ctx context.Context, logger zerolog.Logger, resp *Response, card []byte) {
	if b.archiver == nil {
		return
	}
	if err := b.archiver.Upload(ctx, resp.AssetID, bytes.NewReader(card), "image/png", int64(len(card))); err != nil {
		logger.Warn().Err(err).Str("asset_id", resp.AssetID).Msg("archive upload failed")
		return
	}
	resp.AssetURL = b.archiver.PublicURL(resp.AssetID)
}

// record appends the exchange to history. Failures are logged and otherwise
// ignored; a reply that cannot be remembered is still a reply.
func (b *Bot) record(logger zerolog.Logger, req Request, resp *Response) {
	if b.recorder == nil {
		return
	}
	err := b.recorder.Append(history.Exchange{
		ID:           resp.RequestID,
		CreatedAt:    time.Now(),
		Prompt:       req.Prompt,
		Reply:        resp.Text,
		Mode:         string(req.Mode),
		Model:        resp.Model,
		FinishReason: resp.FinishReason,
		AssetID:      resp.AssetID,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("history append failed")
	}
}
