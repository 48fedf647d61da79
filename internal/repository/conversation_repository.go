package repository

import (
	"database/sql"
	"time"

	"github.com/leadflow/sms-backend/internal/model"
)

type ConversationRepositoryInterface interface {
	GetByPhone(phone string) (*model.Conversation, error)
	List(status string, offset, limit int) ([]model.Conversation, int, error)
	SetStatus(phone string, status model.ConversationStatus) (bool, error)
	CreateEscalation(e *model.Escalation) error
	ListEscalations(phone string) ([]model.Escalation, error)
}

type ConversationRepository struct {
	DB *sql.DB
}

func (r *ConversationRepository) GetByPhone(phone string) (*model.Conversation, error) {
	query := `SELECT phone, status, last_message_at, last_message_body FROM conversations WHERE phone=$1`
	var c model.Conversation
	err := r.DB.QueryRow(query, phone).Scan(&c.Phone, &c.Status, &c.LastMessageAt, &c.LastMessageBody)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (r *ConversationRepository) List(status string, offset, limit int) ([]model.Conversation, int, error) {
	query := `SELECT phone, status, last_message_at, last_message_body FROM conversations WHERE 1=1`
	args := []interface{}{}
	if status != "" {
		query += ` AND status=$1 ORDER BY last_message_at DESC LIMIT $2 OFFSET $3`
		args = append(args, status, limit, offset)
	} else {
		query += ` ORDER BY last_message_at DESC LIMIT $1 OFFSET $2`
		args = append(args, limit, offset)
	}

	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	conversations := []model.Conversation{}
	for rows.Next() {
		var c model.Conversation
		if err := rows.Scan(&c.Phone, &c.Status, &c.LastMessageAt, &c.LastMessageBody); err != nil {
			return nil, 0, err
		}
		conversations = append(conversations, c)
	}

	countQuery := `SELECT COUNT(*) FROM conversations`
	countArgs := []interface{}{}
	if status != "" {
		countQuery += ` WHERE status=$1`
		countArgs = append(countArgs, status)
	}
	var total int
	if err := r.DB.QueryRow(countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}
	return conversations, total, nil
}

// SetStatus is the operator override. Returns false when no conversation
// exists for the phone.
func (r *ConversationRepository) SetStatus(phone string, status model.ConversationStatus) (bool, error) {
	res, err := r.DB.Exec(`UPDATE conversations SET status=$1 WHERE phone=$2`, status, phone)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CreateEscalation appends the escalation row and forces the parent
// conversation to escalated in the same transaction, creating the
// conversation row if the phone has no message history yet.
func (r *ConversationRepository) CreateEscalation(e *model.Escalation) error {
	e.CreatedAt = time.Now()

	tx, err := r.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	insert := `
        INSERT INTO escalations (phone, note, assigned_loan_officer_id, created_at)
        VALUES ($1, $2, $3, $4)
        RETURNING id
    `
	if err := tx.QueryRow(insert, e.Phone, e.Note, e.AssignedLoanOfficerID, e.CreatedAt).Scan(&e.ID); err != nil {
		return err
	}

	upsert := `
        INSERT INTO conversations (phone, status, last_message_at, last_message_body)
        VALUES ($1, $2, $3, '')
        ON CONFLICT (phone) DO UPDATE SET status = EXCLUDED.status
    `
	if _, err := tx.Exec(upsert, e.Phone, model.ConversationEscalated, e.CreatedAt); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *ConversationRepository) ListEscalations(phone string) ([]model.Escalation, error) {
	query := `
        SELECT id, phone, note, assigned_loan_officer_id, created_at
        FROM escalations WHERE phone=$1 ORDER BY created_at DESC
    `
	rows, err := r.DB.Query(query, phone)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	escalations := []model.Escalation{}
	for rows.Next() {
		var e model.Escalation
		if err := rows.Scan(&e.ID, &e.Phone, &e.Note, &e.AssignedLoanOfficerID, &e.CreatedAt); err != nil {
			return nil, err
		}
		escalations = append(escalations, e)
	}
	return escalations, rows.Err()
}

var _ ConversationRepositoryInterface = (*ConversationRepository)(nil)
