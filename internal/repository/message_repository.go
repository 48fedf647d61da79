package repository

import (
	"database/sql"
	"time"

	"github.com/leadflow/sms-backend/internal/model"
)

// MessageRepositoryInterface is the append-only message ledger plus the
// conversation projection kept in lockstep with it.
type MessageRepositoryInterface interface {
	RecordWithConversation(msg *model.Message) error
	ListByPhone(phone string, limit int) ([]model.Message, error)
	CountOutboundByCampaign(campaignID int) (int, error)
	LastOutboundCampaignBefore(phone string, cutoff time.Time) (*int, error)
}

type MessageRepository struct {
	DB *sql.DB
}

// RecordWithConversation appends the message row and upserts the per-phone
// conversation in one transaction, so the two can never drift apart. The
// conversation's status is left alone on update; only the last-message
// fields move (last write wins).
func (r *MessageRepository) RecordWithConversation(msg *model.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	tx, err := r.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	insert := `
        INSERT INTO messages (phone, body, direction, campaign_id, created_at)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id
    `
	if err := tx.QueryRow(insert, msg.Phone, msg.Body, msg.Direction, msg.CampaignID, msg.CreatedAt).Scan(&msg.ID); err != nil {
		return err
	}

	upsert := `
        INSERT INTO conversations (phone, status, last_message_at, last_message_body)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (phone) DO UPDATE SET
            last_message_at   = EXCLUDED.last_message_at,
            last_message_body = EXCLUDED.last_message_body
    `
	if _, err := tx.Exec(upsert, msg.Phone, model.ConversationOpen, msg.CreatedAt, msg.Body); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *MessageRepository) ListByPhone(phone string, limit int) ([]model.Message, error) {
	if limit < 1 {
		limit = 100
	}
	query := `
        SELECT id, phone, body, direction, campaign_id, created_at
        FROM messages
        WHERE phone=$1
        ORDER BY created_at DESC, id DESC
        LIMIT $2
    `
	rows, err := r.DB.Query(query, phone, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []model.Message{}
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.Phone, &m.Body, &m.Direction, &m.CampaignID, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (r *MessageRepository) CountOutboundByCampaign(campaignID int) (int, error) {
	query := `SELECT COUNT(*) FROM messages WHERE campaign_id=$1 AND direction=$2`
	var count int
	err := r.DB.QueryRow(query, campaignID, model.DirectionOut).Scan(&count)
	return count, err
}

// LastOutboundCampaignBefore finds the most recent campaign that messaged
// the phone before cutoff. Feeds the conversion-attribution heuristic.
func (r *MessageRepository) LastOutboundCampaignBefore(phone string, cutoff time.Time) (*int, error) {
	query := `
        SELECT campaign_id FROM messages
        WHERE phone=$1 AND direction=$2 AND campaign_id IS NOT NULL AND created_at < $3
        ORDER BY created_at DESC, id DESC
        LIMIT 1
    `
	var campaignID int
	err := r.DB.QueryRow(query, phone, model.DirectionOut, cutoff).Scan(&campaignID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &campaignID, nil
}

var _ MessageRepositoryInterface = (*MessageRepository)(nil)
