package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/duckworks/geminiduck/internal/bot"
	"github.com/duckworks/geminiduck/internal/gemini"
)

type contextTurn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

type messageRequest struct {
	Prompt  string        `json:"prompt"`
	Mode    string        `json:"mode,omitempty"`
	Header  string        `json:"header,omitempty"`
	Model   string        `json:"model,omitempty"`
	Context []contextTurn `json:"context,omitempty"`
}

type messageResponse struct {
	RequestID    string   `json:"request_id"`
	Text         string   `json:"text"`
	Chunks       []string `json:"chunks,omitempty"`
	AssetID      string   `json:"asset_id,omitempty"`
	AssetURL     string   `json:"asset_url,omitempty"`
	Model        string   `json:"model,omitempty"`
	FinishReason string   `json:"finish_reason"`
	Filtered     bool     `json:"filtered,omitempty"`
	FilterReason string   `json:"filter_reason,omitempty"`
	Truncated    bool     `json:"truncated,omitempty"`
	LatencyMS    int64    `json:"latency_ms"`
}

// CreateMessage handles POST /v1/messages.
func (h *Handler) CreateMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
		return
	}

	resp, err := h.service.Handle(r.Context(), toBotRequest(req))
	if err != nil {
		status, kind := statusForError(err)
		log.Error().Err(err).Str("kind", kind).Msg("Failed to handle message")
		writeJSONError(w, status, kind, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, toMessageResponse(resp))
}

func toBotRequest(req messageRequest) bot.Request {
	turns := make([]gemini.Turn, 0, len(req.Context))
	for _, t := range req.Context {
		turns = append(turns, gemini.Turn{Role: t.Role, Text: t.Text})
	}
	return bot.Request{
		Prompt:  req.Prompt,
		Mode:    bot.Mode(req.Mode),
		Header:  req.Header,
		Model:   req.Model,
		Context: turns,
	}
}

func toMessageResponse(resp *bot.Response) messageResponse {
	return messageResponse{
		RequestID:    resp.RequestID,
		Text:         resp.Text,
		Chunks:       resp.Chunks,
		AssetID:      resp.AssetID,
		AssetURL:     resp.AssetURL,
		Model:        resp.Model,
		FinishReason: resp.FinishReason,
		Filtered:     resp.Filtered,
		FilterReason: resp.FilterReason,
		Truncated:    resp.Truncated,
		LatencyMS:    resp.Latency.Milliseconds(),
	}
}
