package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/duckworks/geminiduck/internal/store"
)

// GetAsset handles GET /v1/assets/{id}. The asset is pinned for the length
// of the download so a concurrent reclaim cannot delete it mid-stream.
func (h *Handler) GetAsset(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	path, release, err := h.assets.Acquire(id)
	if err != nil {
		if store.IsNotFound(err) {
			writeJSONError(w, http.StatusNotFound, string(store.KindNotFound), "asset not found")
			return
		}
		log.Error().Err(err).Str("asset_id", id).Msg("Failed to acquire asset")
		writeJSONError(w, http.StatusInternalServerError, string(store.KindIOFailure), "failed to read asset")
		return
	}
	defer release()

	http.ServeFile(w, r, path)
}

// DeleteAsset handles DELETE /v1/assets/{id}.
func (h *Handler) DeleteAsset(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.assets.Remove(id); err != nil {
		if store.IsNotFound(err) {
			writeJSONError(w, http.StatusNotFound, string(store.KindNotFound), "asset not found")
			return
		}
		log.Error().Err(err).Str("asset_id", id).Msg("Failed to delete asset")
		writeJSONError(w, http.StatusInternalServerError, string(store.KindIOFailure), "failed to delete asset")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
