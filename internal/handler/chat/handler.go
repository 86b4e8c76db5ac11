package chat

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/junyuhe/scholarbot/backend/internal/model/conversation"
	"github.com/junyuhe/scholarbot/backend/internal/pipeline"
	"github.com/junyuhe/scholarbot/backend/pkg/utils"
)

// Handler exposes the answering pipeline over HTTP.
type Handler struct {
	orchestrator *pipeline.Orchestrator
}

// New creates the chat handler.
func New(orchestrator *pipeline.Orchestrator) *Handler {
	return &Handler{orchestrator: orchestrator}
}

// RegisterRoutes mounts the chat endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat/message", h.handleMessage)
	r.Get("/chat/conversations/{conversationID}", h.handleHistory)
}

type messageRequest struct {
	ConversationID string `json:"conversationId"`
	Text           string `json:"text"`
}

type evidenceRef struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

type messageResponse struct {
	ConversationID string        `json:"conversationId"`
	Answer         string        `json:"answer"`
	Evidence       []evidenceRef `json:"evidence"`
	Grounded       bool          `json:"grounded"`
}

func (h *Handler) handleMessage(w http.ResponseWriter, r *http.Request) {
	var payload messageRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.orchestrator.Answer(r.Context(), payload.ConversationID, payload.Text)
	if err != nil {
		respondPipelineError(w, err)
		return
	}

	refs := make([]evidenceRef, 0, len(result.Evidence))
	for _, item := range result.Evidence {
		refs = append(refs, evidenceRef{Title: item.Title, URL: item.URL})
	}

	utils.RespondJSON(w, http.StatusOK, messageResponse{
		ConversationID: result.ConversationID,
		Answer:         result.Answer,
		Evidence:       refs,
		Grounded:       result.Grounded,
	})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	if conversationID == "" {
		utils.RespondError(w, http.StatusBadRequest, "conversationID is required")
		return
	}

	conv, err := h.orchestrator.History(r.Context(), conversationID)
	if err != nil {
		respondPipelineError(w, err)
		return
	}

	if conv.Turns == nil {
		conv.Turns = []conversation.Turn{}
	}
	utils.RespondJSON(w, http.StatusOK, conv)
}

func respondPipelineError(w http.ResponseWriter, err error) {
	var perr *pipeline.Error
	if !errors.As(err, &perr) {
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	status := http.StatusInternalServerError
	switch perr.Kind {
	case pipeline.KindValidation:
		status = http.StatusBadRequest
	case pipeline.KindQuotaExceeded:
		status = http.StatusTooManyRequests
	case pipeline.KindProvider:
		status = http.StatusBadGateway
	}

	utils.RespondJSON(w, status, map[string]string{
		"errorKind": string(perr.Kind),
		"message":   perr.Reason,
	})
}
