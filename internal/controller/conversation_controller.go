// internal/controller/conversation_controller.go
package controller

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/leadflow/sms-backend/internal/model"
	"github.com/leadflow/sms-backend/internal/service"
)

type ConversationController struct {
	ConversationService *service.ConversationService
}

func (c *ConversationController) ListConversations(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	status := r.URL.Query().Get("status")

	conversations, pagination, err := c.ConversationService.ListConversations(status, page, pageSize)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":       conversations,
		"pagination": pagination,
	})
}

func (c *ConversationController) GetConversation(w http.ResponseWriter, r *http.Request) {
	detail, err := c.ConversationService.GetConversation(chi.URLParam(r, "phone"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// Reply is the human outbound path. The provider must accept the send before
// anything is recorded.
func (c *ConversationController) Reply(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Body string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	msg, err := c.ConversationService.RecordOutboundReply(r.Context(), chi.URLParam(r, "phone"), body.Body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func (c *ConversationController) Escalate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Note          string `json:"note"`
		LoanOfficerID int    `json:"loan_officer_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	esc, err := c.ConversationService.Escalate(chi.URLParam(r, "phone"), body.Note, body.LoanOfficerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, esc)
}

func (c *ConversationController) SetStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	if err := c.ConversationService.SetStatus(chi.URLParam(r, "phone"), model.ConversationStatus(body.Status)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
