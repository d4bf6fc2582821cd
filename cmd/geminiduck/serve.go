package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/duckworks/geminiduck/internal/auth"
	"github.com/duckworks/geminiduck/internal/httpapi"
	"github.com/duckworks/geminiduck/internal/sweeper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and WebSocket API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func runServe() error {
	log.Info().Str("version", version).Msg("Starting geminiduck")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	authService := auth.NewService(a.cfg.ServiceAPIKeyHash)

	var reader httpapi.HistoryReader
	if a.history != nil {
		reader = a.history
	}
	h := httpapi.NewHandler(a.bot, a.store, reader)
	r := h.Routes(authService)

	var purger sweeper.HistoryPurger
	if a.history != nil {
		purger = a.history
	}
	sw := sweeper.New(a.store, purger, a.cfg.AssetTTL, a.cfg.HistoryTTL, a.cfg.ReclaimInterval)
	sw.Start(ctx)
	defer sw.Stop()

	srv := &http.Server{
		Addr:        a.cfg.HTTPAddr,
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		// Replies stream back only after completion and render finish, so
		// the write timeout must outlive the per-request deadline.
		WriteTimeout: a.cfg.RequestTimeout + 30*time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", a.cfg.HTTPAddr).Str("model", a.client.Model()).Msg("API listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down API...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}
	log.Info().Msg("API exited")
	return nil
}
