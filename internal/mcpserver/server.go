// Package mcpserver exposes the bot to MCP clients over stdio: an ask tool,
// a direct card-render tool, and the exchange history as a resource.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/duckworks/geminiduck/internal/bot"
	"github.com/duckworks/geminiduck/internal/history"
	"github.com/duckworks/geminiduck/internal/markup"
	"github.com/duckworks/geminiduck/internal/render"
)

// Service is the bot surface the tools call.
type Service interface {
	Handle(ctx context.Context, req bot.Request) (*bot.Response, error)
}

// CardRenderer rasterizes plain text onto a PNG card.
type CardRenderer interface {
	Compose(text string, style render.Style) ([]byte, error)
}

// AssetCreator writes rendered payloads into the scratch directory.
type AssetCreator interface {
	Create(prefix, ext string, payload []byte) (string, error)
}

// HistoryReader lists recent exchanges. May be nil when history is disabled.
type HistoryReader interface {
	Recent(limit int) ([]history.Exchange, error)
}

// Deps holds dependencies for the MCP server.
type Deps struct {
	Service  Service
	Renderer CardRenderer
	Assets   AssetCreator
	History  HistoryReader // optional; nil hides the history resource
}

// NewServer creates an MCP server with all tools and resources registered.
func NewServer(deps Deps) *server.MCPServer {
	s := server.NewMCPServer(
		"geminiduck",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("geminiduck: Gemini completions as plain text replies or rendered PNG cards."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("ask",
			mcp.WithDescription("Send a prompt to the model and get the reply as plain text or a rendered card."),
			mcp.WithString("prompt", mcp.Description("The prompt to complete"), mcp.Required()),
			mcp.WithString("mode", mcp.Description("TEXT for a plain reply, IMAGE for a PNG card (default TEXT)")),
			mcp.WithString("header", mcp.Description("Card title, IMAGE mode only")),
			mcp.WithString("model", mcp.Description("Override the configured model")),
		),
		mcpAsk(deps),
	)

	s.AddTool(
		mcp.NewTool("render_card",
			mcp.WithDescription("Render text onto a PNG card in the asset store without calling the model."),
			mcp.WithString("text", mcp.Description("Text to render; markdown is flattened first"), mcp.Required()),
			mcp.WithString("header", mcp.Description("Card title")),
		),
		mcpRenderCard(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"history://recent",
			"Recent Exchanges",
			mcp.WithResourceDescription("Last 20 completed exchanges as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceHistory(deps),
	)

	return s
}

type askResult struct {
	Text         string   `json:"text"`
	Chunks       []string `json:"chunks,omitempty"`
	AssetID      string   `json:"asset_id,omitempty"`
	AssetURL     string   `json:"asset_url,omitempty"`
	Model        string   `json:"model,omitempty"`
	FinishReason string   `json:"finish_reason"`
	Filtered     bool     `json:"filtered,omitempty"`
	FilterReason string   `json:"filter_reason,omitempty"`
}

func mcpAsk(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		prompt, err := req.RequireString("prompt")
		if err != nil {
			return mcpError("prompt is required"), nil
		}

		resp, err := deps.Service.Handle(ctx, bot.Request{
			Prompt: prompt,
			Mode:   bot.Mode(req.GetString("mode", "")),
			Header: req.GetString("header", ""),
			Model:  req.GetString("model", ""),
		})
		if err != nil {
			return mcpError(fmt.Sprintf("ask failed: %v", err)), nil
		}

		b, err := json.Marshal(askResult{
			Text:         resp.Text,
			Chunks:       resp.Chunks,
			AssetID:      resp.AssetID,
			AssetURL:     resp.AssetURL,
			Model:        resp.Model,
			FinishReason: resp.FinishReason,
			Filtered:     resp.Filtered,
			FilterReason: resp.FilterReason,
		})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpRenderCard(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return mcpError("text is required"), nil
		}

		card, err := deps.Renderer.Compose(markup.PlainText(text), render.Style{
			Header: req.GetString("header", ""),
		})
		if err != nil {
			return mcpError(fmt.Sprintf("render failed: %v", err)), nil
		}

		id, err := deps.Assets.Create("card", "png", card)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to store card: %v", err)), nil
		}

		b, err := json.Marshal(map[string]string{"asset_id": id})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceHistory(deps Deps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		if deps.History == nil {
			return nil, fmt.Errorf("history is disabled")
		}

		exchanges, err := deps.History.Recent(20)
		if err != nil {
			return nil, fmt.Errorf("failed to list history: %w", err)
		}

		type exchangeSummary struct {
			ID           string `json:"id"`
			CreatedAt    string `json:"created_at"`
			Prompt       string `json:"prompt"`
			Reply        string `json:"reply"`
			Mode         string `json:"mode"`
			FinishReason string `json:"finish_reason,omitempty"`
			AssetID      string `json:"asset_id,omitempty"`
		}

		summaries := make([]exchangeSummary, len(exchanges))
		for i, ex := range exchanges {
			summaries[i] = exchangeSummary{
				ID:           ex.ID,
				CreatedAt:    ex.CreatedAt.UTC().Format(time.RFC3339),
				Prompt:       ex.Prompt,
				Reply:        ex.Reply,
				Mode:         ex.Mode,
				FinishReason: ex.FinishReason,
				AssetID:      ex.AssetID,
			}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal history: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
