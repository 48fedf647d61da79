package service_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	appErrors "github.com/leadflow/sms-backend/internal/errors"
	"github.com/leadflow/sms-backend/internal/model"
	"github.com/leadflow/sms-backend/internal/repository"
)

// fakeStore is an in-memory stand-in for all repositories, so service tests
// can exercise cross-store behavior (message + conversation in lockstep)
// without Postgres.
type fakeStore struct {
	mu sync.Mutex

	contacts      map[int]*model.Contact
	nextContactID int

	campaigns      map[int]*model.Campaign
	nextCampaignID int
	recipients     map[[2]int]*model.CampaignRecipient

	messages      []model.Message
	nextMessageID int

	conversations    map[string]*model.Conversation
	escalations      []model.Escalation
	nextEscalationID int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		contacts:      map[int]*model.Contact{},
		campaigns:     map[int]*model.Campaign{},
		recipients:    map[[2]int]*model.CampaignRecipient{},
		conversations: map[string]*model.Conversation{},
	}
}

// ===== ContactRepositoryInterface =====

func (s *fakeStore) Create(c *model.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextContactID++
	c.ID = s.nextContactID
	c.Tags = model.NormalizeTags(c.Tags)
	c.CreatedAt = time.Now()
	cp := *c
	s.contacts[c.ID] = &cp
	return nil
}

func (s *fakeStore) Upsert(c *model.Contact) error {
	s.mu.Lock()
	for _, existing := range s.contacts {
		if existing.Phone == c.Phone {
			if existing.FirstName == "" {
				existing.FirstName = c.FirstName
			}
			if existing.LastName == "" {
				existing.LastName = c.LastName
			}
			if existing.Email == "" {
				existing.Email = c.Email
			}
			existing.Tags = model.NormalizeTags(append(existing.Tags, c.Tags...))
			c.ID = existing.ID
			s.mu.Unlock()
			return nil
		}
	}
	s.mu.Unlock()
	return s.Create(c)
}

func (s *fakeStore) GetByID(id int) (*model.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contacts[id]
	if !ok {
		return nil, appErrors.NewContactNotFound(id)
	}
	cp := *c
	return &cp, nil
}

func (s *fakeStore) GetByPhone(phone string) (*model.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.contacts {
		if c.Phone == phone {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) List(offset, limit int) ([]model.Contact, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := []model.Contact{}
	for _, c := range s.contacts {
		all = append(all, *c)
	}
	return all, len(all), nil
}

func (s *fakeStore) ListByIDs(ids []int) ([]model.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Contact{}
	for _, id := range ids {
		if c, ok := s.contacts[id]; ok {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (s *fakeStore) ListByTag(tag string) ([]model.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Contact{}
	for _, c := range s.contacts {
		if c.HasTag(tag) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (s *fakeStore) ListRegistered() ([]model.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Contact{}
	for _, c := range s.contacts {
		if c.Registered && c.RegisteredAt != nil {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (s *fakeStore) UpdateTags(id int, tags []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contacts[id]
	if !ok {
		return appErrors.NewContactNotFound(id)
	}
	c.Tags = model.NormalizeTags(tags)
	return nil
}

func (s *fakeStore) SetOptedOut(phone string, optedOut bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.contacts {
		if c.Phone == phone {
			c.OptedOut = optedOut
			return nil
		}
	}
	return &appErrors.ErrContactNotFound{Phone: phone}
}

func (s *fakeStore) MarkRegistered(id int, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contacts[id]
	if !ok {
		return appErrors.NewContactNotFound(id)
	}
	c.Registered = true
	c.RegisteredAt = &at
	return nil
}

func (s *fakeStore) Counts() (model.ContactCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := model.ContactCounts{}
	for _, c := range s.contacts {
		counts.Total++
		if c.Registered {
			counts.Registered++
		}
		if c.OptedOut {
			counts.OptedOut++
		}
	}
	return counts, nil
}

// ===== CampaignRepositoryInterface =====

func (s *fakeStore) CreateCampaign(c *model.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextCampaignID++
	c.ID = s.nextCampaignID
	if c.Status == "" {
		c.Status = model.CampaignStatusPending
	}
	c.CreatedAt = time.Now()
	cp := *c
	s.campaigns[c.ID] = &cp
	return nil
}

func (s *fakeStore) GetCampaign(id int) (*model.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	cp := *c
	return &cp, nil
}

func (s *fakeStore) ListCampaigns(offset, limit int, status string) ([]*model.Campaign, int, error) {
	all, _ := s.ListAllCampaigns()
	filtered := []*model.Campaign{}
	for _, c := range all {
		if status != "" && string(c.Status) != status {
			continue
		}
		filtered = append(filtered, c)
	}
	return filtered, len(filtered), nil
}

func (s *fakeStore) ListAllCampaigns() ([]*model.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*model.Campaign{}
	for id := 1; id <= s.nextCampaignID; id++ {
		if c, ok := s.campaigns[id]; ok {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *fakeStore) ListDueCampaigns(now time.Time) ([]*model.Campaign, error) {
	all, _ := s.ListAllCampaigns()
	due := []*model.Campaign{}
	for _, c := range all {
		if c.Status == model.CampaignStatusScheduled && c.ScheduledAt != nil && !c.ScheduledAt.After(now) {
			due = append(due, c)
		}
	}
	return due, nil
}

func (s *fakeStore) UpdateCampaignStatus(id int, status model.CampaignStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok {
		return appErrors.NewCampaignNotFound(id)
	}
	c.Status = status
	return nil
}

func (s *fakeStore) MarkDispatching(id int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok {
		return false, nil
	}
	switch c.Status {
	case model.CampaignStatusPending, model.CampaignStatusScheduled, model.CampaignStatusSending:
		c.Status = model.CampaignStatusSending
		return true, nil
	}
	return false, nil
}

func (s *fakeStore) ClaimRecipient(campaignID, contactID int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := [2]int{campaignID, contactID}
	rec, ok := s.recipients[key]
	if !ok {
		s.recipients[key] = &model.CampaignRecipient{
			CampaignID: campaignID,
			ContactID:  contactID,
			Status:     model.RecipientStatusSending,
			UpdatedAt:  time.Now(),
		}
		return true, nil
	}
	switch rec.Status {
	case model.RecipientStatusPending, model.RecipientStatusFailed:
	case model.RecipientStatusSending:
		if time.Since(rec.UpdatedAt) < 10*time.Minute {
			return false, nil
		}
	default:
		return false, nil
	}
	rec.Status = model.RecipientStatusSending
	rec.LastError = ""
	rec.UpdatedAt = time.Now()
	return true, nil
}

func (s *fakeStore) UpdateRecipientStatus(campaignID, contactID int, status model.RecipientStatus, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recipients[[2]int{campaignID, contactID}]
	if !ok {
		return fmt.Errorf("no recipient row for %d/%d", campaignID, contactID)
	}
	rec.Status = status
	rec.LastError = lastError
	rec.UpdatedAt = time.Now()
	return nil
}

func (s *fakeStore) RecipientStats(campaignID int) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := map[string]int{"pending": 0, "sending": 0, "sent": 0, "failed": 0}
	for key, rec := range s.recipients {
		if key[0] == campaignID {
			stats[string(rec.Status)]++
		}
	}
	return stats, nil
}

// ===== MessageRepositoryInterface =====

func (s *fakeStore) RecordWithConversation(msg *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	s.nextMessageID++
	msg.ID = s.nextMessageID
	s.messages = append(s.messages, *msg)

	conv, ok := s.conversations[msg.Phone]
	if !ok {
		conv = &model.Conversation{Phone: msg.Phone, Status: model.ConversationOpen}
		s.conversations[msg.Phone] = conv
	}
	conv.LastMessageAt = msg.CreatedAt
	conv.LastMessageBody = msg.Body
	return nil
}

func (s *fakeStore) ListByPhone(phone string, limit int) ([]model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit < 1 {
		limit = 100
	}
	out := []model.Message{}
	for i := len(s.messages) - 1; i >= 0 && len(out) < limit; i-- {
		if s.messages[i].Phone == phone {
			out = append(out, s.messages[i])
		}
	}
	return out, nil
}

func (s *fakeStore) CountOutboundByCampaign(campaignID int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, m := range s.messages {
		if m.Direction == model.DirectionOut && m.CampaignID != nil && *m.CampaignID == campaignID {
			count++
		}
	}
	return count, nil
}

func (s *fakeStore) LastOutboundCampaignBefore(phone string, cutoff time.Time) (*int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.messages) - 1; i >= 0; i-- {
		m := s.messages[i]
		if m.Phone == phone && m.Direction == model.DirectionOut && m.CampaignID != nil && m.CreatedAt.Before(cutoff) {
			id := *m.CampaignID
			return &id, nil
		}
	}
	return nil, nil
}

// ===== ConversationRepositoryInterface =====

func (s *fakeStore) GetConversation(phone string) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[phone]
	if !ok {
		return nil, nil
	}
	cp := *conv
	return &cp, nil
}

func (s *fakeStore) ListConversations(status string, offset, limit int) ([]model.Conversation, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Conversation{}
	for _, conv := range s.conversations {
		if status != "" && string(conv.Status) != status {
			continue
		}
		out = append(out, *conv)
	}
	return out, len(out), nil
}

func (s *fakeStore) SetConversationStatus(phone string, status model.ConversationStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[phone]
	if !ok {
		return false, nil
	}
	conv.Status = status
	return true, nil
}

func (s *fakeStore) CreateEscalation(e *model.Escalation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextEscalationID++
	e.ID = s.nextEscalationID
	e.CreatedAt = time.Now()
	s.escalations = append(s.escalations, *e)

	conv, ok := s.conversations[e.Phone]
	if !ok {
		conv = &model.Conversation{Phone: e.Phone, LastMessageAt: e.CreatedAt}
		s.conversations[e.Phone] = conv
	}
	conv.Status = model.ConversationEscalated
	return nil
}

func (s *fakeStore) ListEscalations(phone string) ([]model.Escalation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Escalation{}
	for _, e := range s.escalations {
		if e.Phone == phone {
			out = append(out, e)
		}
	}
	return out, nil
}

// Adapters so one fakeStore serves all four repository interfaces despite
// the overlapping method names.

type fakeContactRepo struct{ *fakeStore }

type fakeCampaignRepo struct{ *fakeStore }

func (r fakeCampaignRepo) Create(c *model.Campaign) error        { return r.CreateCampaign(c) }
func (r fakeCampaignRepo) GetByID(id int) (*model.Campaign, error) { return r.GetCampaign(id) }
func (r fakeCampaignRepo) List(offset, limit int, status string) ([]*model.Campaign, int, error) {
	return r.ListCampaigns(offset, limit, status)
}
func (r fakeCampaignRepo) ListAll() ([]*model.Campaign, error) { return r.ListAllCampaigns() }
func (r fakeCampaignRepo) ListDue(now time.Time) ([]*model.Campaign, error) {
	return r.ListDueCampaigns(now)
}
func (r fakeCampaignRepo) UpdateStatus(id int, status model.CampaignStatus) error {
	return r.UpdateCampaignStatus(id, status)
}

type fakeMessageRepo struct{ *fakeStore }

type fakeConversationRepo struct{ *fakeStore }

func (r fakeConversationRepo) GetByPhone(phone string) (*model.Conversation, error) {
	return r.GetConversation(phone)
}
func (r fakeConversationRepo) List(status string, offset, limit int) ([]model.Conversation, int, error) {
	return r.ListConversations(status, offset, limit)
}
func (r fakeConversationRepo) SetStatus(phone string, status model.ConversationStatus) (bool, error) {
	return r.SetConversationStatus(phone, status)
}

var (
	_ repository.ContactRepositoryInterface      = fakeContactRepo{}
	_ repository.CampaignRepositoryInterface     = fakeCampaignRepo{}
	_ repository.MessageRepositoryInterface      = fakeMessageRepo{}
	_ repository.ConversationRepositoryInterface = fakeConversationRepo{}
)

// fakeSender records every accepted send and can be told to fail.
type fakeSender struct {
	mu       sync.Mutex
	sent     []sentCall
	failFor  map[string]error
	failWith error
}

type sentCall struct {
	To   string
	Body string
}

func newFakeSender() *fakeSender {
	return &fakeSender{failFor: map[string]error{}}
}

func (f *fakeSender) Send(ctx context.Context, to, body string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return "", f.failWith
	}
	if err, ok := f.failFor[to]; ok {
		return "", err
	}
	f.sent = append(f.sent, sentCall{To: to, Body: body})
	return fmt.Sprintf("provider-%d", len(f.sent)), nil
}

func (f *fakeSender) calls() []sentCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentCall, len(f.sent))
	copy(out, f.sent)
	return out
}
