// internal/model/contact.go
package model

import (
	"strings"
	"time"
)

// Contact is a message-able recipient. Phone is stored E.164-normalized and
// is unique; contacts are never hard-deleted, opt-out is a soft flag.
type Contact struct {
	ID              int        `db:"id" json:"id"`
	Phone           string     `db:"phone" json:"phone"`
	FirstName       string     `db:"first_name" json:"first_name"`
	LastName        string     `db:"last_name" json:"last_name"`
	Email           string     `db:"email" json:"email"`
	Tags            []string   `db:"tags" json:"tags"`
	OptedOut        bool       `db:"opted_out" json:"opted_out"`
	Registered      bool       `db:"registered" json:"registered"`
	RegisteredAt    *time.Time `db:"registered_at" json:"registered_at,omitempty"`
	AssignedAgentID *int       `db:"assigned_agent_id" json:"assigned_agent_id,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// NormalizeTag is the single place tag text gets canonicalized: trimmed and
// lowercased. Every tag stored or matched goes through here.
func NormalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

// NormalizeTags canonicalizes a tag list, dropping empties and duplicates.
func NormalizeTags(tags []string) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, t := range tags {
		n := NormalizeTag(t)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

// HasTag reports whether the contact carries the tag, after normalization.
func (c *Contact) HasTag(tag string) bool {
	n := NormalizeTag(tag)
	for _, t := range c.Tags {
		if t == n {
			return true
		}
	}
	return false
}

// ContactCounts is the rollup the analytics endpoints report.
type ContactCounts struct {
	Total      int `json:"total"`
	Registered int `json:"registered"`
	OptedOut   int `json:"opted_out"`
}
