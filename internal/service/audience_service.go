// internal/service/audience_service.go
package service

import (
	appErrors "github.com/leadflow/sms-backend/internal/errors"
	"github.com/leadflow/sms-backend/internal/model"
	"github.com/leadflow/sms-backend/internal/repository"
)

// Selector picks a campaign audience: by tag, or by an explicit contact id
// list. Exactly one of the two must be set.
type Selector struct {
	Tag        string `json:"tag,omitempty"`
	ContactIDs []int  `json:"contact_ids,omitempty"`
}

// Validate enforces the one-of invariant.
func (s Selector) Validate() error {
	hasTag := model.NormalizeTag(s.Tag) != ""
	hasIDs := len(s.ContactIDs) > 0
	if hasTag && hasIDs {
		return appErrors.NewValidation("audience selector has both a tag and a contact list")
	}
	if !hasTag && !hasIDs {
		return appErrors.NewValidation("audience selector has neither a tag nor a contact list")
	}
	return nil
}

type AudienceService struct {
	ContactRepo repository.ContactRepositoryInterface
}

// Resolve computes the concrete recipient set. Opted-out contacts are
// excluded unconditionally, even when named in an explicit id list. An empty
// result is not an error here; callers decide what "nothing to send" means.
func (s *AudienceService) Resolve(sel Selector) ([]model.Contact, error) {
	if err := sel.Validate(); err != nil {
		return nil, err
	}

	var contacts []model.Contact
	var err error
	if tag := model.NormalizeTag(sel.Tag); tag != "" {
		contacts, err = s.ContactRepo.ListByTag(tag)
	} else {
		contacts, err = s.ContactRepo.ListByIDs(sel.ContactIDs)
	}
	if err != nil {
		return nil, appErrors.NewPersistence("resolve audience", err)
	}

	audience := []model.Contact{}
	for _, c := range contacts {
		if c.OptedOut {
			continue
		}
		audience = append(audience, c)
	}
	return audience, nil
}
