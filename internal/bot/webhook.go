package bot

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/quizhub/quizhub/internal/telegram"
)

// WebhookHandler is the thin dispatcher between the transport and the engine.
type WebhookHandler struct {
	engine *Engine
}

// NewWebhookHandler creates a webhook handler over the engine.
func NewWebhookHandler(engine *Engine) *WebhookHandler {
	return &WebhookHandler{engine: engine}
}

// RegisterRoutes registers the webhook route.
func (h *WebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/telegram/webhook", h.Receive)
}

// Receive handles one webhook delivery. Malformed or non-text updates are
// acknowledged with no side effects so the transport never retries them;
// conversational errors are acknowledged too, because the user already got
// the error as a reply. Only infrastructure failures surface as a 5xx.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	var update telegram.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		slog.Debug("malformed webhook payload", "error", err)
		ack(w)
		return
	}

	if update.Message == nil || update.Message.Text == "" || update.Message.From == nil {
		ack(w)
		return
	}

	ev := InboundEvent{
		UpdateID:  update.UpdateID,
		ChatID:    update.Message.Chat.ID,
		SenderID:  update.Message.From.ID,
		FirstName: update.Message.From.FirstName,
		Username:  update.Message.From.Username,
		Text:      update.Message.Text,
	}

	if err := h.engine.Handle(r.Context(), ev); err != nil {
		slog.Error("webhook handling failed", "chat_id", ev.ChatID, "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal error"}`))
		return
	}

	ack(w)
}

func ack(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"ok":true}`))
}
