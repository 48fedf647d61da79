// internal/errors/errors.go
package appErrors

import "fmt"

// ValidationError rejects a malformed campaign draft or operator input.
// Surfaced to the operator, never retried.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

func NewValidation(reason string) error {
	return &ValidationError{Reason: reason}
}

// DeliveryError wraps a provider send failure for a single recipient.
type DeliveryError struct {
	Phone string
	Err   error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery to %s failed: %v", e.Phone, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

func NewDelivery(phone string, err error) error {
	return &DeliveryError{Phone: phone, Err: err}
}

// PersistenceError wraps a data-store failure; the operation is reported
// failed, never a partial silent success.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func NewPersistence(op string, err error) error {
	return &PersistenceError{Op: op, Err: err}
}

// ImportError reports a CSV import that produced nothing usable, with the
// count of rows skipped along the way.
type ImportError struct {
	Reason  string
	Skipped int
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("import failed: %s (%d rows skipped)", e.Reason, e.Skipped)
}

func NewImport(reason string, skipped int) error {
	return &ImportError{Reason: reason, Skipped: skipped}
}

// ErrCampaignNotFound is a sentinel error
type ErrCampaignNotFound struct {
	CampaignID int
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign with ID %d not found", e.CampaignID)
}

func NewCampaignNotFound(id int) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

type ErrContactNotFound struct {
	ContactID int
	Phone     string
}

func (e *ErrContactNotFound) Error() string {
	if e.Phone != "" {
		return fmt.Sprintf("contact with phone %s not found", e.Phone)
	}
	return fmt.Sprintf("contact with ID %d not found", e.ContactID)
}

func NewContactNotFound(id int) error {
	return &ErrContactNotFound{ContactID: id}
}

type ErrConversationNotFound struct {
	Phone string
}

func (e *ErrConversationNotFound) Error() string {
	return fmt.Sprintf("conversation for %s not found", e.Phone)
}

func NewConversationNotFound(phone string) error {
	return &ErrConversationNotFound{Phone: phone}
}

// ErrCampaignAlreadyDispatched guards the exactly-once submit invariant: a
// campaign that already reached a terminal status cannot be fanned out again.
type ErrCampaignAlreadyDispatched struct {
	CampaignID int
}

func (e *ErrCampaignAlreadyDispatched) Error() string {
	return fmt.Sprintf("campaign %d was already dispatched", e.CampaignID)
}

func NewCampaignAlreadyDispatched(id int) error {
	return &ErrCampaignAlreadyDispatched{CampaignID: id}
}
