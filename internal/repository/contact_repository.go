package repository

import (
	"database/sql"
	"time"

	"github.com/lib/pq"

	appErrors "github.com/leadflow/sms-backend/internal/errors"
	"github.com/leadflow/sms-backend/internal/model"
)

// ContactRepositoryInterface defines the contact-store methods used by services
type ContactRepositoryInterface interface {
	Create(c *model.Contact) error
	Upsert(c *model.Contact) error
	GetByID(id int) (*model.Contact, error)
	GetByPhone(phone string) (*model.Contact, error)
	List(offset, limit int) ([]model.Contact, int, error)
	ListByIDs(ids []int) ([]model.Contact, error)
	ListByTag(tag string) ([]model.Contact, error)
	ListRegistered() ([]model.Contact, error)
	UpdateTags(id int, tags []string) error
	SetOptedOut(phone string, optedOut bool) error
	MarkRegistered(id int, at time.Time) error
	Counts() (model.ContactCounts, error)
}

type ContactRepository struct {
	DB *sql.DB
}

const contactColumns = `id, phone, first_name, last_name, email, tags, opted_out, registered, registered_at, assigned_agent_id, created_at, updated_at`

func scanContact(row interface{ Scan(...any) error }) (*model.Contact, error) {
	var c model.Contact
	err := row.Scan(
		&c.ID, &c.Phone, &c.FirstName, &c.LastName, &c.Email,
		pq.Array(&c.Tags), &c.OptedOut, &c.Registered, &c.RegisteredAt,
		&c.AssignedAgentID, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ContactRepository) Create(c *model.Contact) error {
	c.CreatedAt = time.Now()
	c.Tags = model.NormalizeTags(c.Tags)
	query := `
        INSERT INTO contacts (phone, first_name, last_name, email, tags, opted_out, registered, assigned_agent_id, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING id
    `
	return r.DB.QueryRow(query,
		c.Phone, c.FirstName, c.LastName, c.Email, pq.Array(c.Tags),
		c.OptedOut, c.Registered, c.AssignedAgentID, c.CreatedAt,
	).Scan(&c.ID)
}

// Upsert inserts the contact or, when the phone already exists, fills in any
// name/email fields the existing row is missing and unions the tags. Used by
// CSV import and inbound auto-creation, which must never duplicate a phone.
func (r *ContactRepository) Upsert(c *model.Contact) error {
	c.CreatedAt = time.Now()
	c.Tags = model.NormalizeTags(c.Tags)
	query := `
        INSERT INTO contacts (phone, first_name, last_name, email, tags, opted_out, registered, created_at)
        VALUES ($1, $2, $3, $4, $5, false, false, $6)
        ON CONFLICT (phone) DO UPDATE SET
            first_name = COALESCE(NULLIF(contacts.first_name, ''), EXCLUDED.first_name),
            last_name  = COALESCE(NULLIF(contacts.last_name, ''), EXCLUDED.last_name),
            email      = COALESCE(NULLIF(contacts.email, ''), EXCLUDED.email),
            tags       = ARRAY(SELECT DISTINCT unnest(contacts.tags || EXCLUDED.tags)),
            updated_at = NOW()
        RETURNING id
    `
	return r.DB.QueryRow(query,
		c.Phone, c.FirstName, c.LastName, c.Email, pq.Array(c.Tags), c.CreatedAt,
	).Scan(&c.ID)
}

func (r *ContactRepository) GetByID(id int) (*model.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE id=$1`
	c, err := scanContact(r.DB.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewContactNotFound(id)
		}
		return nil, err
	}
	return c, nil
}

func (r *ContactRepository) GetByPhone(phone string) (*model.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE phone=$1`
	c, err := scanContact(r.DB.QueryRow(query, phone))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // not found
		}
		return nil, err
	}
	return c, nil
}

func (r *ContactRepository) List(offset, limit int) ([]model.Contact, int, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts ORDER BY id DESC LIMIT $1 OFFSET $2`
	rows, err := r.DB.Query(query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	contacts := []model.Contact{}
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, 0, err
		}
		contacts = append(contacts, *c)
	}

	var total int
	if err := r.DB.QueryRow(`SELECT COUNT(*) FROM contacts`).Scan(&total); err != nil {
		return nil, 0, err
	}
	return contacts, total, nil
}

func (r *ContactRepository) ListByIDs(ids []int) ([]model.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE id = ANY($1)`
	return r.queryContacts(query, pq.Array(ids))
}

// ListByTag matches against the normalized tag array. Opt-out filtering is
// the audience resolver's job, not the store's.
func (r *ContactRepository) ListByTag(tag string) ([]model.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE $1 = ANY(tags)`
	return r.queryContacts(query, model.NormalizeTag(tag))
}

func (r *ContactRepository) ListRegistered() ([]model.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE registered = true AND registered_at IS NOT NULL`
	return r.queryContacts(query)
}

func (r *ContactRepository) queryContacts(query string, args ...any) ([]model.Contact, error) {
	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	contacts := []model.Contact{}
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, *c)
	}
	return contacts, rows.Err()
}

// UpdateTags replaces the tag set in a single UPDATE, no read-modify-write.
func (r *ContactRepository) UpdateTags(id int, tags []string) error {
	query := `UPDATE contacts SET tags=$1, updated_at=NOW() WHERE id=$2`
	res, err := r.DB.Exec(query, pq.Array(model.NormalizeTags(tags)), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return appErrors.NewContactNotFound(id)
	}
	return nil
}

func (r *ContactRepository) SetOptedOut(phone string, optedOut bool) error {
	query := `UPDATE contacts SET opted_out=$1, updated_at=NOW() WHERE phone=$2`
	res, err := r.DB.Exec(query, optedOut, phone)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &appErrors.ErrContactNotFound{Phone: phone}
	}
	return nil
}

func (r *ContactRepository) MarkRegistered(id int, at time.Time) error {
	query := `UPDATE contacts SET registered=true, registered_at=$1, updated_at=NOW() WHERE id=$2`
	res, err := r.DB.Exec(query, at, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return appErrors.NewContactNotFound(id)
	}
	return nil
}

func (r *ContactRepository) Counts() (model.ContactCounts, error) {
	var counts model.ContactCounts
	query := `
        SELECT COUNT(*),
               COUNT(*) FILTER (WHERE registered),
               COUNT(*) FILTER (WHERE opted_out)
        FROM contacts
    `
	err := r.DB.QueryRow(query).Scan(&counts.Total, &counts.Registered, &counts.OptedOut)
	return counts, err
}

var _ ContactRepositoryInterface = (*ContactRepository)(nil)
