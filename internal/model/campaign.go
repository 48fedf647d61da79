// internal/model/campaign.go
package model

import "time"

type CampaignStatus string

const (
	CampaignStatusPending   CampaignStatus = "pending"
	CampaignStatusScheduled CampaignStatus = "scheduled"
	CampaignStatusSending   CampaignStatus = "sending"
	CampaignStatusSent      CampaignStatus = "sent"
	CampaignStatusFailed    CampaignStatus = "failed"
)

// Campaign is one execution instance of "send this body to this audience".
// Exactly one of AudienceTag / AudienceContactIDs is set.
type Campaign struct {
	ID                 int            `db:"id" json:"id"`
	Name               string         `db:"name" json:"name"`
	MessageBody        string         `db:"message_body" json:"message_body"`
	AudienceTag        string         `db:"audience_tag" json:"audience_tag,omitempty"`
	AudienceContactIDs []int          `db:"audience_contact_ids" json:"audience_contact_ids,omitempty"`
	ScheduledAt        *time.Time     `db:"scheduled_at" json:"scheduled_at,omitempty"`
	Status             CampaignStatus `db:"status" json:"status"`
	CreatedAt          time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt          *time.Time     `db:"updated_at" json:"updated_at,omitempty"`
}

type RecipientStatus string

const (
	RecipientStatusPending RecipientStatus = "pending"
	RecipientStatusSending RecipientStatus = "sending"
	RecipientStatusSent    RecipientStatus = "sent"
	RecipientStatusFailed  RecipientStatus = "failed"
)

// CampaignRecipient is the per-recipient dispatch checkpoint. A dispatcher
// claims the row into sending before the provider call and moves it to
// sent/failed after, so a re-run of a partially completed batch skips what
// already went out and two dispatchers cannot both own a recipient.
type CampaignRecipient struct {
	CampaignID int             `db:"campaign_id" json:"campaign_id"`
	ContactID  int             `db:"contact_id" json:"contact_id"`
	Status     RecipientStatus `db:"status" json:"status"`
	LastError  string          `db:"last_error" json:"last_error,omitempty"`
	UpdatedAt  time.Time       `db:"updated_at" json:"updated_at"`
}
