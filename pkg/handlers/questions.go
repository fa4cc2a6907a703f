package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ask/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-ask/pkg/models"
	"github.com/ekaya-inc/ekaya-ask/pkg/session"
)

// Resolver answers questions about a data source.
type Resolver interface {
	SchemaDescriber
	Resolve(ctx context.Context, sess *session.Context, question string, src datasource.QueryExecutor, schemaText string) *models.ResultBundle
}

// Sessions maps a request to its conversation.
type Sessions interface {
	Context(w http.ResponseWriter, r *http.Request) *session.Context
}

// AskRequest for POST /api/questions.
type AskRequest struct {
	Handle   string `json:"handle"`
	Question string `json:"question"`
}

// HistoryResponse lists the questions and answers of the caller's session.
type HistoryResponse struct {
	Messages []session.Message `json:"messages"`
}

// QuestionsHandler answers questions and serves the conversation history.
type QuestionsHandler struct {
	datasets Datasets
	resolver Resolver
	sessions Sessions
	logger   *zap.Logger
}

// NewQuestionsHandler creates a new questions handler.
func NewQuestionsHandler(datasets Datasets, resolver Resolver, sessions Sessions, logger *zap.Logger) *QuestionsHandler {
	return &QuestionsHandler{
		datasets: datasets,
		resolver: resolver,
		sessions: sessions,
		logger:   logger,
	}
}

// RegisterRoutes registers the questions handler's routes on the given mux.
func (h *QuestionsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/questions", h.Ask)
	mux.HandleFunc("GET /api/history", h.History)
	mux.HandleFunc("DELETE /api/history", h.ClearHistory)
}

// Ask handles POST /api/questions. Pipeline failures are reported in the
// bundle's summary with a 200; only request problems get an error status.
func (h *QuestionsHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if req.Handle == "" {
		writeError(w, h.logger, http.StatusBadRequest, "missing_handle", "A dataset handle is required")
		return
	}

	handle, err := h.datasets.Get(req.Handle)
	if err != nil {
		writeError(w, h.logger, http.StatusNotFound, "not_found", "Dataset not found")
		return
	}

	// An unreadable schema is answered by the pipeline itself
	schemaText, err := handle.Schema(r.Context(), h.resolver.Describe)
	if err != nil {
		h.logger.Warn("Failed to describe dataset", zap.String("handle", handle.ID), zap.Error(err))
	}

	sess := h.sessions.Context(w, r)
	bundle := h.resolver.Resolve(r.Context(), sess, req.Question, handle.Source, schemaText)

	h.logger.Debug("Question answered",
		zap.String("handle", handle.ID),
		zap.String("classification", string(bundle.Classification)),
		zap.Bool("cached", bundle.Cached),
		zap.Bool("failed", bundle.Failed))
	writeData(w, h.logger, http.StatusOK, bundle)
}

// History handles GET /api/history
func (h *QuestionsHandler) History(w http.ResponseWriter, r *http.Request) {
	messages := h.sessions.Context(w, r).History()
	if messages == nil {
		messages = []session.Message{}
	}
	writeData(w, h.logger, http.StatusOK, HistoryResponse{Messages: messages})
}

// ClearHistory handles DELETE /api/history
func (h *QuestionsHandler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	h.sessions.Context(w, r).Clear()
	w.WriteHeader(http.StatusNoContent)
}
