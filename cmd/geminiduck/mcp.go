package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/duckworks/geminiduck/internal/mcpserver"
)

// mcpCmd speaks MCP on stdin/stdout; logs stay on stderr.
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the MCP tools over stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		var reader mcpserver.HistoryReader
		if a.history != nil {
			reader = a.history
		}
		srv := mcpserver.NewServer(mcpserver.Deps{
			Service:  a.bot,
			Renderer: a.renderer,
			Assets:   a.store,
			History:  reader,
		})

		log.Info().Msg("MCP server listening on stdio")
		stdioSrv := server.NewStdioServer(srv)
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}
