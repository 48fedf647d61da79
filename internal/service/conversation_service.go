// internal/service/conversation_service.go
package service

import (
	"context"
	"log"
	"strings"

	appErrors "github.com/leadflow/sms-backend/internal/errors"
	"github.com/leadflow/sms-backend/internal/model"
	"github.com/leadflow/sms-backend/internal/phone"
	"github.com/leadflow/sms-backend/internal/repository"
	"github.com/leadflow/sms-backend/internal/sms"
)

// ConversationService maintains the per-phone triage state machine.
// Message traffic never changes status by itself; only operator actions and
// escalations do.
type ConversationService struct {
	ContactRepo      repository.ContactRepositoryInterface
	MessageRepo      repository.MessageRepositoryInterface
	ConversationRepo repository.ConversationRepositoryInterface
	Sender           sms.Sender
}

// RecordInbound ingests a message from the provider webhook. Unknown phones
// get a contact auto-created so every inbound message is traceable. A body
// that is just the STOP keyword also flips the contact's opt-out flag.
func (s *ConversationService) RecordInbound(rawPhone, body string) (*model.Message, error) {
	normalized, err := phone.Normalize(rawPhone)
	if err != nil {
		return nil, appErrors.NewValidation("unparsable phone: " + err.Error())
	}

	contact, err := s.ContactRepo.GetByPhone(normalized)
	if err != nil {
		return nil, appErrors.NewPersistence("lookup contact", err)
	}
	if contact == nil {
		contact = &model.Contact{Phone: normalized}
		if err := s.ContactRepo.Upsert(contact); err != nil {
			return nil, appErrors.NewPersistence("auto-create contact", err)
		}
	}

	msg := &model.Message{
		Phone:     normalized,
		Body:      body,
		Direction: model.DirectionIn,
	}
	if err := s.MessageRepo.RecordWithConversation(msg); err != nil {
		return nil, appErrors.NewPersistence("record inbound message", err)
	}

	if isOptOutKeyword(body) {
		if err := s.ContactRepo.SetOptedOut(normalized, true); err != nil {
			log.Println("failed to flag opt-out for", normalized, ":", err)
		}
	}
	return msg, nil
}

func isOptOutKeyword(body string) bool {
	switch strings.ToUpper(strings.TrimSpace(body)) {
	case "STOP", "STOPALL", "UNSUBSCRIBE", "CANCEL", "END", "QUIT":
		return true
	}
	return false
}

// RecordOutboundReply is the human-reply path (campaign_id stays null).
// Send-then-record: the provider must accept the message before anything is
// written, and a provider failure fails the whole operation.
func (s *ConversationService) RecordOutboundReply(ctx context.Context, rawPhone, body string) (*model.Message, error) {
	normalized, err := phone.Normalize(rawPhone)
	if err != nil {
		return nil, appErrors.NewValidation("unparsable phone: " + err.Error())
	}
	if strings.TrimSpace(body) == "" {
		return nil, appErrors.NewValidation("reply body is empty")
	}

	if _, err := s.Sender.Send(ctx, normalized, body); err != nil {
		return nil, appErrors.NewDelivery(normalized, err)
	}

	msg := &model.Message{
		Phone:     normalized,
		Body:      body,
		Direction: model.DirectionOut,
	}
	if err := s.MessageRepo.RecordWithConversation(msg); err != nil {
		return nil, appErrors.NewPersistence("record reply", err)
	}
	return msg, nil
}

// Escalate appends an escalation and forces the conversation to escalated.
func (s *ConversationService) Escalate(rawPhone, note string, loanOfficerID int) (*model.Escalation, error) {
	normalized, err := phone.Normalize(rawPhone)
	if err != nil {
		return nil, appErrors.NewValidation("unparsable phone: " + err.Error())
	}

	esc := &model.Escalation{
		Phone:                 normalized,
		Note:                  note,
		AssignedLoanOfficerID: loanOfficerID,
	}
	if err := s.ConversationRepo.CreateEscalation(esc); err != nil {
		return nil, appErrors.NewPersistence("create escalation", err)
	}
	return esc, nil
}

// SetStatus is a pure operator override; any state can move to any state.
func (s *ConversationService) SetStatus(rawPhone string, status model.ConversationStatus) error {
	normalized, err := phone.Normalize(rawPhone)
	if err != nil {
		return appErrors.NewValidation("unparsable phone: " + err.Error())
	}
	if !status.Valid() {
		return appErrors.NewValidation("unknown conversation status: " + string(status))
	}

	found, err := s.ConversationRepo.SetStatus(normalized, status)
	if err != nil {
		return appErrors.NewPersistence("set conversation status", err)
	}
	if !found {
		return appErrors.NewConversationNotFound(normalized)
	}
	return nil
}

// OptOut handles the provider's opt-out callback.
func (s *ConversationService) OptOut(rawPhone string) error {
	normalized, err := phone.Normalize(rawPhone)
	if err != nil {
		return appErrors.NewValidation("unparsable phone: " + err.Error())
	}
	if err := s.ContactRepo.SetOptedOut(normalized, true); err != nil {
		return err
	}
	return nil
}

// ConversationDetail bundles a conversation with its recent messages and
// escalation history for the operator UI.
type ConversationDetail struct {
	Conversation model.Conversation `json:"conversation"`
	Messages     []model.Message    `json:"messages"`
	Escalations  []model.Escalation `json:"escalations"`
}

func (s *ConversationService) GetConversation(rawPhone string) (*ConversationDetail, error) {
	normalized, err := phone.Normalize(rawPhone)
	if err != nil {
		return nil, appErrors.NewValidation("unparsable phone: " + err.Error())
	}

	conv, err := s.ConversationRepo.GetByPhone(normalized)
	if err != nil {
		return nil, appErrors.NewPersistence("lookup conversation", err)
	}
	if conv == nil {
		return nil, appErrors.NewConversationNotFound(normalized)
	}

	messages, err := s.MessageRepo.ListByPhone(normalized, 100)
	if err != nil {
		return nil, appErrors.NewPersistence("list messages", err)
	}
	escalations, err := s.ConversationRepo.ListEscalations(normalized)
	if err != nil {
		return nil, appErrors.NewPersistence("list escalations", err)
	}

	return &ConversationDetail{
		Conversation: *conv,
		Messages:     messages,
		Escalations:  escalations,
	}, nil
}

func (s *ConversationService) ListConversations(status string, page, pageSize int) ([]model.Conversation, map[string]int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	conversations, total, err := s.ConversationRepo.List(status, offset, pageSize)
	if err != nil {
		return nil, nil, appErrors.NewPersistence("list conversations", err)
	}

	totalPages := (total + pageSize - 1) / pageSize
	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": totalPages,
	}
	return conversations, pagination, nil
}
