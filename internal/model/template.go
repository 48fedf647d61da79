// internal/model/template.go
package model

import "time"

// CampaignTemplate is a reusable (name, body) pair an operator composes
// campaigns from. Read-only to the dispatch path.
type CampaignTemplate struct {
	ID          int        `db:"id" json:"id"`
	Name        string     `db:"name" json:"name"`
	MessageBody string     `db:"message_body" json:"message_body"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}
