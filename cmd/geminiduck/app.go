package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/duckworks/geminiduck/internal/archive"
	"github.com/duckworks/geminiduck/internal/bot"
	"github.com/duckworks/geminiduck/internal/config"
	"github.com/duckworks/geminiduck/internal/gemini"
	"github.com/duckworks/geminiduck/internal/history"
	"github.com/duckworks/geminiduck/internal/render"
	"github.com/duckworks/geminiduck/internal/store"
)

// app holds the long-lived resources the pipeline commands share. Everything
// is constructed once and passed by reference; there are no ambient globals.
type app struct {
	cfg      *config.Config
	store    *store.Store
	renderer *render.Renderer
	client   *gemini.Client
	history  *history.Store
	archive  *archive.Client
	bot      *bot.Bot
}

// buildApp wires the full request pipeline from configuration. History and
// the S3 archive stay nil when disabled; the bot treats both as optional.
func buildApp(ctx context.Context) (*app, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st, err := store.New(cfg.ScratchDir)
	if err != nil {
		return nil, fmt.Errorf("scratch store: %w", err)
	}

	fonts := render.NewRegistry(cfg.FontDir, cfg.FontRegular, cfg.FontBold)
	renderer := render.New(fonts, cardStyle(cfg))

	client, err := gemini.NewClient(ctx, gemini.Options{
		APIKey:          cfg.GeminiAPIKey,
		Endpoint:        cfg.GeminiAPIEndpoint,
		Model:           cfg.GeminiModel,
		Temperature:     cfg.GeminiTemperature,
		TopP:            cfg.GeminiTopP,
		MaxOutputTokens: cfg.GeminiMaxOutputTokens,
		MaxContextChars: cfg.MaxContextChars,
		MaxContextTurns: cfg.MaxContextTurns,
		MaxAttempts:     cfg.CompleteMaxAttempts,
		Backoff: gemini.Backoff{
			Base:   cfg.RetryBaseDelay,
			Max:    cfg.RetryMaxDelay,
			Jitter: cfg.RetryJitter,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	if cfg.ProbeModels {
		client.ResolveModel(ctx, cfg.GeminiModelPriority)
	}

	var hist *history.Store
	if !cfg.HistoryDisabled {
		hist, err = history.Open(cfg.HistoryDBPath)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("history store: %w", err)
		}
	}

	var arc *archive.Client
	if cfg.ArchiveEnabled() {
		arc, err = archive.New(archive.Options{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			PublicURL: cfg.S3PublicURL,
		})
		if err != nil {
			if hist != nil {
				hist.Close()
			}
			client.Close()
			return nil, fmt.Errorf("s3 archive: %w", err)
		}
	}

	// A nil *history.Store must not become a non-nil interface.
	var recorder bot.Recorder
	if hist != nil {
		recorder = hist
	}
	var archiver bot.Archiver
	if arc != nil {
		archiver = arc
	}

	b := bot.New(client, renderer, st, recorder, archiver, bot.Options{
		SystemPrompt:   cfg.SystemPrompt,
		RequestTimeout: cfg.RequestTimeout,
		MaxConcurrent:  cfg.MaxConcurrentRequests,
		ChunkChars:     cfg.ReplyChunkChars,
	})

	return &app{
		cfg:      cfg,
		store:    st,
		renderer: renderer,
		client:   client,
		history:  hist,
		archive:  arc,
		bot:      b,
	}, nil
}

func (a *app) Close() {
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			log.Warn().Err(err).Msg("Closing history store")
		}
	}
	if err := a.client.Close(); err != nil {
		log.Warn().Err(err).Msg("Closing Gemini client")
	}
}

func cardStyle(cfg *config.Config) render.Style {
	return render.Style{
		Width:       cfg.CanvasWidth,
		Height:      cfg.CanvasHeight,
		FontSize:    cfg.FontSize,
		MinFontSize: cfg.MinFontSize,
		LineSpacing: cfg.LineSpacing,
		Margin:      cfg.Margin,
		MaxLines:    cfg.MaxLines,
	}
}
