package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/duckworks/geminiduck/internal/config"
	"github.com/duckworks/geminiduck/internal/markup"
	"github.com/duckworks/geminiduck/internal/render"
)

// renderCmd works without an API key; it never touches the backend.
var renderCmd = &cobra.Command{
	Use:   "render [text]",
	Short: "Compose text into a local PNG card",
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args, " ")
		header, _ := cmd.Flags().GetString("header")
		file, _ := cmd.Flags().GetString("file")
		out, _ := cmd.Flags().GetString("out")

		if file != "" {
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("reading file: %w", err)
			}
			text = string(data)
		}
		if strings.TrimSpace(text) == "" {
			return fmt.Errorf("text argument or --file is required")
		}

		cfg := config.Load()
		fonts := render.NewRegistry(cfg.FontDir, cfg.FontRegular, cfg.FontBold)
		renderer := render.New(fonts, cardStyle(cfg))

		style := renderer.Style()
		style.Header = header
		card, err := renderer.Compose(markup.PlainText(text), style)
		if err != nil {
			return err
		}

		if err := os.WriteFile(out, card, 0o644); err != nil {
			return fmt.Errorf("writing card: %w", err)
		}
		printSuccess("Card written to %s (%d bytes)", out, len(card))
		return nil
	},
}

func init() {
	renderCmd.Flags().String("header", "", "header line for the card")
	renderCmd.Flags().String("file", "", "read the text from a file instead of arguments")
	renderCmd.Flags().String("out", "card.png", "output PNG path")
}
