package repository

import (
	"database/sql"
	"time"

	"github.com/leadflow/sms-backend/internal/model"
)

type TemplateRepositoryInterface interface {
	Create(t *model.CampaignTemplate) error
	GetByID(id int) (*model.CampaignTemplate, error)
	List() ([]model.CampaignTemplate, error)
	Update(t *model.CampaignTemplate) error
	Delete(id int) error
}

type TemplateRepository struct {
	DB *sql.DB
}

func (r *TemplateRepository) Create(t *model.CampaignTemplate) error {
	t.CreatedAt = time.Now()
	query := `
        INSERT INTO campaign_templates (name, message_body, created_at)
        VALUES ($1, $2, $3)
        RETURNING id
    `
	return r.DB.QueryRow(query, t.Name, t.MessageBody, t.CreatedAt).Scan(&t.ID)
}

func (r *TemplateRepository) GetByID(id int) (*model.CampaignTemplate, error) {
	query := `SELECT id, name, message_body, created_at, updated_at FROM campaign_templates WHERE id=$1`
	var t model.CampaignTemplate
	err := r.DB.QueryRow(query, id).Scan(&t.ID, &t.Name, &t.MessageBody, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func (r *TemplateRepository) List() ([]model.CampaignTemplate, error) {
	query := `SELECT id, name, message_body, created_at, updated_at FROM campaign_templates ORDER BY name`
	rows, err := r.DB.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	templates := []model.CampaignTemplate{}
	for rows.Next() {
		var t model.CampaignTemplate
		if err := rows.Scan(&t.ID, &t.Name, &t.MessageBody, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

func (r *TemplateRepository) Update(t *model.CampaignTemplate) error {
	query := `UPDATE campaign_templates SET name=$1, message_body=$2, updated_at=NOW() WHERE id=$3`
	_, err := r.DB.Exec(query, t.Name, t.MessageBody, t.ID)
	return err
}

func (r *TemplateRepository) Delete(id int) error {
	_, err := r.DB.Exec(`DELETE FROM campaign_templates WHERE id=$1`, id)
	return err
}

var _ TemplateRepositoryInterface = (*TemplateRepository)(nil)
