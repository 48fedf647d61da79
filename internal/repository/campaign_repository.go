package repository

import (
	"database/sql"
	"time"

	"github.com/lib/pq"

	appErrors "github.com/leadflow/sms-backend/internal/errors"
	"github.com/leadflow/sms-backend/internal/model"
)

type CampaignRepositoryInterface interface {
	// Campaign rows
	Create(c *model.Campaign) error
	GetByID(id int) (*model.Campaign, error)
	List(offset, limit int, status string) ([]*model.Campaign, int, error)
	ListAll() ([]*model.Campaign, error)
	ListDue(now time.Time) ([]*model.Campaign, error)
	UpdateStatus(campaignID int, status model.CampaignStatus) error
	MarkDispatching(campaignID int) (bool, error)

	// Per-recipient dispatch checkpoint
	ClaimRecipient(campaignID, contactID int) (bool, error)
	UpdateRecipientStatus(campaignID, contactID int, status model.RecipientStatus, lastError string) error
	RecipientStats(campaignID int) (map[string]int, error)
}

type CampaignRepository struct {
	DB *sql.DB
}

// ====================== Campaign rows ======================

func (r *CampaignRepository) Create(c *model.Campaign) error {
	c.CreatedAt = time.Now()
	if c.Status == "" {
		c.Status = model.CampaignStatusPending
	}
	query := `
        INSERT INTO campaigns (name, message_body, audience_tag, audience_contact_ids, scheduled_at, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id
    `
	ids := make([]int64, len(c.AudienceContactIDs))
	for i, id := range c.AudienceContactIDs {
		ids[i] = int64(id)
	}
	return r.DB.QueryRow(query,
		c.Name, c.MessageBody, c.AudienceTag, pq.Array(ids),
		c.ScheduledAt, c.Status, c.CreatedAt,
	).Scan(&c.ID)
}

func scanCampaign(row interface{ Scan(...any) error }) (*model.Campaign, error) {
	var c model.Campaign
	var ids pq.Int64Array
	err := row.Scan(
		&c.ID, &c.Name, &c.MessageBody, &c.AudienceTag, &ids,
		&c.ScheduledAt, &c.Status, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.AudienceContactIDs = make([]int, len(ids))
	for i, id := range ids {
		c.AudienceContactIDs[i] = int(id)
	}
	return &c, nil
}

const campaignColumns = `id, name, message_body, audience_tag, audience_contact_ids, scheduled_at, status, created_at, updated_at`

func (r *CampaignRepository) GetByID(id int) (*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id=$1`
	c, err := scanCampaign(r.DB.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, err
	}
	return c, nil
}

func (r *CampaignRepository) List(offset, limit int, status string) ([]*model.Campaign, int, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE 1=1`
	args := []interface{}{}
	argPos := 1

	if status != "" {
		query += ` AND status=$1`
		args = append(args, status)
		argPos++
	}
	query += ` ORDER BY id DESC`
	switch argPos {
	case 1:
		query += ` LIMIT $1 OFFSET $2`
	case 2:
		query += ` LIMIT $2 OFFSET $3`
	}
	args = append(args, limit, offset)

	campaigns, err := r.queryCampaigns(query, args...)
	if err != nil {
		return nil, 0, err
	}

	countQuery := `SELECT COUNT(*) FROM campaigns`
	countArgs := []interface{}{}
	if status != "" {
		countQuery += ` WHERE status=$1`
		countArgs = append(countArgs, status)
	}
	var total int
	if err := r.DB.QueryRow(countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}
	return campaigns, total, nil
}

func (r *CampaignRepository) ListAll() ([]*model.Campaign, error) {
	return r.queryCampaigns(`SELECT ` + campaignColumns + ` FROM campaigns ORDER BY id`)
}

// ListDue returns scheduled campaigns whose scheduled_at has passed.
func (r *CampaignRepository) ListDue(now time.Time) ([]*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE status=$1 AND scheduled_at <= $2 ORDER BY scheduled_at`
	return r.queryCampaigns(query, model.CampaignStatusScheduled, now)
}

func (r *CampaignRepository) queryCampaigns(query string, args ...any) ([]*model.Campaign, error) {
	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	campaigns := []*model.Campaign{}
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

func (r *CampaignRepository) UpdateStatus(campaignID int, status model.CampaignStatus) error {
	query := `UPDATE campaigns SET status=$1, updated_at=$2 WHERE id=$3`
	_, err := r.DB.Exec(query, status, time.Now(), campaignID)
	return err
}

// MarkDispatching moves the campaign into sending, but only from a state
// that may legitimately fan out: pending, scheduled, or a sending batch that
// crashed mid-way and is being resumed. A campaign already sent or failed is
// refused, which is what makes double submission harmless.
func (r *CampaignRepository) MarkDispatching(campaignID int) (bool, error) {
	query := `
        UPDATE campaigns SET status=$1, updated_at=NOW()
        WHERE id=$2 AND status IN ($3, $4, $1)
    `
	res, err := r.DB.Exec(query,
		model.CampaignStatusSending, campaignID,
		model.CampaignStatusPending, model.CampaignStatusScheduled,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ====================== Recipient checkpoint ======================

// ClaimRecipient atomically takes ownership of the checkpoint row for one
// campaign/contact pair, creating it when absent. Rows already sent, or held
// by another live dispatcher, are not claimable; a sending row whose lease
// expired is treated as abandoned and reclaimed. One statement, so two
// dispatchers resuming the same campaign cannot both own a recipient.
func (r *CampaignRepository) ClaimRecipient(campaignID, contactID int) (bool, error) {
	query := `
        INSERT INTO campaign_recipients (campaign_id, contact_id, status, updated_at)
        VALUES ($1, $2, $3, NOW())
        ON CONFLICT (campaign_id, contact_id) DO UPDATE
            SET status=$3, last_error='', updated_at=NOW()
            WHERE campaign_recipients.status IN ($4, $5)
               OR (campaign_recipients.status=$3 AND campaign_recipients.updated_at < NOW() - INTERVAL '10 minutes')
        RETURNING campaign_id
    `
	var id int
	err := r.DB.QueryRow(query, campaignID, contactID,
		model.RecipientStatusSending, model.RecipientStatusPending, model.RecipientStatusFailed,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *CampaignRepository) UpdateRecipientStatus(campaignID, contactID int, status model.RecipientStatus, lastError string) error {
	query := `UPDATE campaign_recipients SET status=$1, last_error=$2, updated_at=NOW()
              WHERE campaign_id=$3 AND contact_id=$4`
	_, err := r.DB.Exec(query, status, lastError, campaignID, contactID)
	return err
}

func (r *CampaignRepository) RecipientStats(campaignID int) (map[string]int, error) {
	query := `SELECT status, COUNT(*) FROM campaign_recipients WHERE campaign_id=$1 GROUP BY status`
	rows, err := r.DB.Query(query, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := map[string]int{"pending": 0, "sending": 0, "sent": 0, "failed": 0}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
