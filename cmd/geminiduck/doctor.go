package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/duckworks/geminiduck/internal/config"
	"github.com/duckworks/geminiduck/internal/gemini"
	"github.com/duckworks/geminiduck/internal/render"
	"github.com/duckworks/geminiduck/internal/store"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check scratch storage, fonts, and backend reachability",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		failures := 0

		// Scratch storage: write and delete a probe asset.
		st, err := store.New(cfg.ScratchDir)
		if err != nil {
			printError("Scratch dir %s: %v", cfg.ScratchDir, err)
			failures++
		} else {
			id, err := st.Create("doctor", "txt", []byte("ok"))
			if err != nil {
				printError("Scratch dir %s not writable: %v", cfg.ScratchDir, err)
				failures++
			} else {
				st.Remove(id)
				printSuccess("Scratch dir %s writable", cfg.ScratchDir)
			}
		}

		// Fonts: missing files fall back to the embedded Go fonts, so they
		// only warn. A failed compose is a hard failure.
		for _, name := range []string{cfg.FontRegular, cfg.FontBold} {
			path := filepath.Join(cfg.FontDir, name)
			if _, err := os.Stat(path); err != nil {
				printWarning("Font %s missing, embedded fallback will be used", path)
			} else {
				printSuccess("Font %s present", path)
			}
		}
		fonts := render.NewRegistry(cfg.FontDir, cfg.FontRegular, cfg.FontBold)
		renderer := render.New(fonts, cardStyle(cfg))
		if _, err := renderer.Compose("doctor probe", renderer.Style()); err != nil {
			printError("Render probe failed: %v", err)
			failures++
		} else {
			printSuccess("Render probe succeeded")
		}

		// Backend: list models and count tokens through the live client.
		if cfg.GeminiAPIKey == "" {
			printError("GEMINI_API_KEY is not set")
			failures++
		} else {
			printSuccess("GEMINI_API_KEY is set")

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			client, err := gemini.NewClient(ctx, gemini.Options{
				APIKey:   cfg.GeminiAPIKey,
				Endpoint: cfg.GeminiAPIEndpoint,
				Model:    cfg.GeminiModel,
			})
			if err != nil {
				printError("Gemini client: %v", err)
				failures++
			} else {
				defer client.Close()

				models, err := client.ListModels(ctx)
				if err != nil {
					printError("Model listing failed: %v", err)
					failures++
				} else {
					printSuccess("Backend reachable (%d models)", len(models))
					if len(models) > 5 {
						models = models[:5]
					}
					printStatus("Models", "%s", strings.Join(models, ", "))
				}

				tokens, err := client.CountTokens(ctx, "doctor probe")
				if err != nil {
					printError("CountTokens probe failed: %v", err)
					failures++
				} else {
					printSuccess("CountTokens probe succeeded (%d tokens)", tokens)
				}
			}
		}

		printStatus("Model", "%s", cfg.GeminiModel)
		printStatus("Scratch dir", "%s", cfg.ScratchDir)
		if cfg.HistoryDisabled {
			printStatus("History", "disabled")
		} else {
			printStatus("History", "%s", cfg.HistoryDBPath)
		}
		if cfg.ArchiveEnabled() {
			printStatus("Archive", "s3://%s", cfg.S3Bucket)
		} else {
			printStatus("Archive", "disabled")
		}

		if failures > 0 {
			return fmt.Errorf("%d check(s) failed", failures)
		}
		return nil
	},
}
