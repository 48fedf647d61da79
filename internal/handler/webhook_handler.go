// internal/handler/webhook_handler.go
package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	appErrors "github.com/leadflow/sms-backend/internal/errors"
	"github.com/leadflow/sms-backend/internal/service"
)

// WebhookHandler terminates the SMS provider's callbacks: inbound message
// delivery and opt-out notifications. These are provider-facing, not
// operator-facing, so they live apart from the controllers.
type WebhookHandler struct {
	ConversationService *service.ConversationService
}

// InboundSMS consumes the provider's delivery webhook: {from, body, timestamp}.
func (h *WebhookHandler) InboundSMS(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		From      string `json:"from"`
		Body      string `json:"body"`
		Timestamp string `json:"timestamp"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	msg, err := h.ConversationService.RecordInbound(payload.From, payload.Body)
	if err != nil {
		var validation *appErrors.ValidationError
		if errors.As(err, &validation) {
			// Bad phone from the provider: acknowledge so it stops retrying,
			// but log what we dropped.
			log.Println("dropping inbound webhook:", err)
			w.WriteHeader(http.StatusOK)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"message_id": msg.ID})
}

// OptOut consumes the provider's opt-out callback and hard-excludes the
// contact from all future audiences.
func (h *WebhookHandler) OptOut(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		From string `json:"from"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	if err := h.ConversationService.OptOut(payload.From); err != nil {
		var contact404 *appErrors.ErrContactNotFound
		if errors.As(err, &contact404) {
			// Unknown phone opting out is a no-op, not a failure.
			w.WriteHeader(http.StatusOK)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}
