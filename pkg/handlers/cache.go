package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"
)

// CachePurger empties the query cache.
type CachePurger interface {
	Purge(ctx context.Context) (int, error)
}

// PurgeResponse reports how many cached answers were removed.
type PurgeResponse struct {
	Purged int `json:"purged"`
}

// CacheHandler handles query cache administration.
type CacheHandler struct {
	cache  CachePurger
	logger *zap.Logger
}

// NewCacheHandler creates a new cache handler.
func NewCacheHandler(cache CachePurger, logger *zap.Logger) *CacheHandler {
	return &CacheHandler{cache: cache, logger: logger}
}

// RegisterRoutes registers the cache handler's routes on the given mux.
func (h *CacheHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("DELETE /api/cache", h.Purge)
}

// Purge handles DELETE /api/cache
func (h *CacheHandler) Purge(w http.ResponseWriter, r *http.Request) {
	n, err := h.cache.Purge(r.Context())
	if err != nil {
		h.logger.Error("Failed to purge query cache", zap.Error(err))
		writeError(w, h.logger, http.StatusInternalServerError, "internal_error", "Failed to purge the query cache")
		return
	}
	h.logger.Info("Query cache purged", zap.Int("entries", n))
	writeData(w, h.logger, http.StatusOK, PurgeResponse{Purged: n})
}
