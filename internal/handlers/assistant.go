package handlers

import (
	"net/http"

	"github.com/inventariopro/inventariopro/httpx"
	"github.com/inventariopro/inventariopro/internal/assistant"
	"go.uber.org/zap"
)

// AssistantHandler exposes the help assistant. Routes are registered by the
// router so they can be wrapped with the rate limiter.
type AssistantHandler struct {
	Assistant *assistant.Assistant
	Log       *zap.Logger
}

func NewAssistantHandler(a *assistant.Assistant, log *zap.Logger) *AssistantHandler {
	return &AssistantHandler{Assistant: a, Log: nopIfNil(log)}
}

type faqRequest struct {
	Question string `json:"question"`
	Context  string `json:"context"`
}

type draftRequest struct {
	Draft string `json:"draft"`
}

func (h *AssistantHandler) FAQ(w http.ResponseWriter, r *http.Request) {
	var in faqRequest
	if err := httpx.Decode(r, &in); err != nil {
		badJSON(w)
		return
	}
	answer, err := h.Assistant.AnswerFAQ(r.Context(), in.Question, in.Context)
	if err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"answer": answer})
}

func (h *AssistantHandler) EventDescription(w http.ResponseWriter, r *http.Request) {
	var in draftRequest
	if err := httpx.Decode(r, &in); err != nil {
		badJSON(w)
		return
	}
	d, err := h.Assistant.PolishEventDescription(r.Context(), in.Draft)
	if err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}
