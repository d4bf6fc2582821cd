package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

type historyEntry struct {
	ID           string `json:"id"`
	CreatedAt    string `json:"created_at"`
	Prompt       string `json:"prompt"`
	Reply        string `json:"reply"`
	Mode         string `json:"mode"`
	Model        string `json:"model,omitempty"`
	FinishReason string `json:"finish_reason,omitempty"`
	AssetID      string `json:"asset_id,omitempty"`
}

// GetHistory handles GET /v1/history.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "HISTORY_DISABLED", "history is disabled")
		return
	}

	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil {
			limit = parsed
		}
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	exchanges, err := h.history.Recent(limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list history")
		writeJSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list history")
		return
	}

	entries := make([]historyEntry, 0, len(exchanges))
	for _, ex := range exchanges {
		entries = append(entries, historyEntry{
			ID:           ex.ID,
			CreatedAt:    ex.CreatedAt.UTC().Format(time.RFC3339),
			Prompt:       ex.Prompt,
			Reply:        ex.Reply,
			Mode:         ex.Mode,
			Model:        ex.Model,
			FinishReason: ex.FinishReason,
			AssetID:      ex.AssetID,
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"exchanges": entries})
}
