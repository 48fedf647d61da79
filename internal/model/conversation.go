// internal/model/conversation.go
package model

import "time"

type ConversationStatus string

const (
	ConversationOpen      ConversationStatus = "open"
	ConversationEscalated ConversationStatus = "escalated"
	ConversationClosed    ConversationStatus = "closed"
)

// Valid reports whether s is one of the three triage states.
func (s ConversationStatus) Valid() bool {
	switch s {
	case ConversationOpen, ConversationEscalated, ConversationClosed:
		return true
	}
	return false
}

// Conversation is the per-phone rollup of message activity. One row per
// distinct phone number; last-message fields are informational and
// last-write-wins, the Message log stays authoritative.
type Conversation struct {
	Phone           string             `db:"phone" json:"phone"`
	Status          ConversationStatus `db:"status" json:"status"`
	LastMessageAt   time.Time          `db:"last_message_at" json:"last_message_at"`
	LastMessageBody string             `db:"last_message_body" json:"last_message_body"`
}

// Escalation flags a conversation for loan-officer follow-up. Append-only;
// writing one forces the parent conversation to escalated.
type Escalation struct {
	ID                    int       `db:"id" json:"id"`
	Phone                 string    `db:"phone" json:"phone"`
	Note                  string    `db:"note" json:"note"`
	AssignedLoanOfficerID int       `db:"assigned_loan_officer_id" json:"assigned_loan_officer_id"`
	CreatedAt             time.Time `db:"created_at" json:"created_at"`
}
