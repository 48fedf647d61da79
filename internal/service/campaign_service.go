// internal/service/campaign_service.go
package service

import (
	"context"
	"strings"
	"time"

	appErrors "github.com/leadflow/sms-backend/internal/errors"
	"github.com/leadflow/sms-backend/internal/model"
	"github.com/leadflow/sms-backend/internal/repository"
)

type CampaignService struct {
	CampaignRepo repository.CampaignRepositoryInterface
	Audience     *AudienceService
	Dispatcher   *DispatchService

	// Now is swappable for tests; defaults to time.Now.
	Now func() time.Time
}

// CampaignDraft is what an operator submits.
type CampaignDraft struct {
	Name        string     `json:"name"`
	MessageBody string     `json:"message_body"`
	Selector    Selector   `json:"selector"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
}

type SubmitResult struct {
	CampaignID int                  `json:"campaign_id"`
	Status     model.CampaignStatus `json:"status"`
	Dispatch   *DispatchResult      `json:"dispatch,omitempty"`
}

// Submit validates the draft, then either dispatches synchronously (no
// scheduled_at, or one in the past) or persists the campaign as scheduled
// for the worker to pick up when due. Scheduled submits write no Message
// rows.
func (s *CampaignService) Submit(ctx context.Context, draft CampaignDraft) (*SubmitResult, error) {
	if strings.TrimSpace(draft.MessageBody) == "" {
		return nil, appErrors.NewValidation("message body is empty")
	}
	if err := draft.Selector.Validate(); err != nil {
		return nil, err
	}

	audience, err := s.Audience.Resolve(draft.Selector)
	if err != nil {
		return nil, err
	}
	if len(audience) == 0 {
		return nil, appErrors.NewValidation("resolved audience is empty, nothing to send")
	}

	campaign := &model.Campaign{
		Name:               draft.Name,
		MessageBody:        draft.MessageBody,
		AudienceTag:        model.NormalizeTag(draft.Selector.Tag),
		AudienceContactIDs: draft.Selector.ContactIDs,
		ScheduledAt:        draft.ScheduledAt,
	}

	now := s.now()
	if draft.ScheduledAt != nil && draft.ScheduledAt.After(now) {
		campaign.Status = model.CampaignStatusScheduled
		if err := s.CampaignRepo.Create(campaign); err != nil {
			return nil, appErrors.NewPersistence("create scheduled campaign", err)
		}
		return &SubmitResult{CampaignID: campaign.ID, Status: model.CampaignStatusScheduled}, nil
	}

	campaign.Status = model.CampaignStatusPending
	if err := s.CampaignRepo.Create(campaign); err != nil {
		return nil, appErrors.NewPersistence("create campaign", err)
	}

	dispatch, err := s.Dispatcher.DispatchNow(ctx, campaign, audience)
	if err != nil {
		_ = s.CampaignRepo.UpdateStatus(campaign.ID, model.CampaignStatusFailed)
		return nil, err
	}

	status := model.CampaignStatusSent
	if dispatch.Sent == 0 && dispatch.Skipped == 0 {
		status = model.CampaignStatusFailed
	}
	if err := s.CampaignRepo.UpdateStatus(campaign.ID, status); err != nil {
		return nil, appErrors.NewPersistence("update campaign status", err)
	}

	return &SubmitResult{CampaignID: campaign.ID, Status: status, Dispatch: dispatch}, nil
}

// DispatchByID re-resolves the stored audience and fans out. The worker
// calls this for due scheduled campaigns; it is also the resume path for a
// batch that died mid-way.
func (s *CampaignService) DispatchByID(ctx context.Context, campaignID int) (*DispatchResult, error) {
	campaign, err := s.CampaignRepo.GetByID(campaignID)
	if err != nil {
		return nil, err
	}

	audience, err := s.Audience.Resolve(Selector{
		Tag:        campaign.AudienceTag,
		ContactIDs: campaign.AudienceContactIDs,
	})
	if err != nil {
		return nil, err
	}
	if len(audience) == 0 {
		// Everyone opted out between scheduling and dispatch.
		if err := s.CampaignRepo.UpdateStatus(campaignID, model.CampaignStatusFailed); err != nil {
			return nil, appErrors.NewPersistence("update campaign status", err)
		}
		return &DispatchResult{CampaignID: campaignID, Results: []RecipientResult{}}, nil
	}

	dispatch, err := s.Dispatcher.DispatchNow(ctx, campaign, audience)
	if err != nil {
		return nil, err
	}

	status := model.CampaignStatusSent
	if dispatch.Sent == 0 && dispatch.Skipped == 0 {
		status = model.CampaignStatusFailed
	}
	if err := s.CampaignRepo.UpdateStatus(campaignID, status); err != nil {
		return nil, appErrors.NewPersistence("update campaign status", err)
	}
	return dispatch, nil
}

// ListDue returns scheduled campaigns whose time has come.
func (s *CampaignService) ListDue() ([]*model.Campaign, error) {
	return s.CampaignRepo.ListDue(s.now())
}

// ListCampaigns fetches campaigns with pagination
func (s *CampaignService) ListCampaigns(page, pageSize int, status string) ([]model.Campaign, map[string]int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	ptrs, total, err := s.CampaignRepo.List(offset, pageSize, status)
	if err != nil {
		return nil, nil, err
	}

	campaigns := make([]model.Campaign, len(ptrs))
	for i, c := range ptrs {
		campaigns[i] = *c
	}

	totalPages := (total + pageSize - 1) / pageSize
	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": totalPages,
	}
	return campaigns, pagination, nil
}

// CampaignDetails is a campaign plus its per-recipient checkpoint counts.
type CampaignDetails struct {
	Campaign model.Campaign `json:"campaign"`
	Stats    map[string]int `json:"stats"`
}

func (s *CampaignService) GetCampaignDetails(id int) (*CampaignDetails, error) {
	campaign, err := s.CampaignRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	stats, err := s.CampaignRepo.RecipientStats(id)
	if err != nil {
		return nil, appErrors.NewPersistence("campaign recipient stats", err)
	}
	return &CampaignDetails{Campaign: *campaign, Stats: stats}, nil
}

func (s *CampaignService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
