// internal/model/message.go
package model

import "time"

type MessageDirection string

const (
	DirectionIn  MessageDirection = "in"
	DirectionOut MessageDirection = "out"
)

// Message is one row of the append-only message ledger. Rows are immutable
// once written; conversation state and analytics derive from this log.
type Message struct {
	ID         int              `db:"id" json:"id"`
	Phone      string           `db:"phone" json:"phone"`
	Body       string           `db:"body" json:"body"`
	Direction  MessageDirection `db:"direction" json:"direction"`
	CampaignID *int             `db:"campaign_id" json:"campaign_id,omitempty"`
	CreatedAt  time.Time        `db:"created_at" json:"created_at"`
}
