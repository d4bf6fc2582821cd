package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/duckworks/geminiduck/internal/bot"
	"github.com/duckworks/geminiduck/internal/gemini"
)

var askCmd = &cobra.Command{
	Use:   "ask <prompt>",
	Short: "Send one prompt through the pipeline and print the reply",
	Long: `Send one prompt through the pipeline and print the reply.

Examples:
  geminiduck ask "why do ducks quack?"
  geminiduck ask --image --header "Duck facts" "why do ducks quack?"
  geminiduck ask --context "user:hello" --context "model:hi there" "what did I just say?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		prompt := strings.Join(args, " ")
		image, _ := cmd.Flags().GetBool("image")
		header, _ := cmd.Flags().GetString("header")
		model, _ := cmd.Flags().GetString("model")
		contextPairs, _ := cmd.Flags().GetStringArray("context")

		turns, err := parseTurns(contextPairs)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		req := bot.Request{Prompt: prompt, Context: turns, Model: model}
		if image {
			req.Mode = bot.ModeImage
			req.Header = header
		}

		resp, err := a.bot.Handle(ctx, req)
		if err != nil {
			return err
		}

		if resp.Filtered {
			printWarning("Reply was filtered (%s)", resp.FilterReason)
		}
		if resp.Truncated {
			printWarning("Reply was cut off at the output token limit")
		}

		if resp.AssetID != "" {
			path, err := a.store.Path(resp.AssetID)
			if err != nil {
				return err
			}
			fmt.Println(path)
			if resp.AssetURL != "" {
				printStatus("Archive", "%s", resp.AssetURL)
			}
			return nil
		}

		fmt.Println(resp.Text)
		return nil
	},
}

func init() {
	askCmd.Flags().Bool("image", false, "render the reply onto a PNG card and print its path")
	askCmd.Flags().String("header", "", "header line for the rendered card")
	askCmd.Flags().String("model", "", "override the configured model for this request")
	askCmd.Flags().StringArray("context", nil, "prior turn as role:text, repeatable (roles: user, model)")
}

func parseTurns(pairs []string) ([]gemini.Turn, error) {
	turns := make([]gemini.Turn, 0, len(pairs))
	for _, p := range pairs {
		role, text, ok := strings.Cut(p, ":")
		if !ok {
			return nil, fmt.Errorf("context %q: want role:text", p)
		}
		switch role {
		case gemini.RoleUser, gemini.RoleModel:
		default:
			return nil, fmt.Errorf("context role %q: want %s or %s", role, gemini.RoleUser, gemini.RoleModel)
		}
		turns = append(turns, gemini.Turn{Role: role, Text: strings.TrimSpace(text)})
	}
	return turns, nil
}
