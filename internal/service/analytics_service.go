// internal/service/analytics_service.go
package service

import (
	appErrors "github.com/leadflow/sms-backend/internal/errors"
	"github.com/leadflow/sms-backend/internal/model"
	"github.com/leadflow/sms-backend/internal/repository"
)

// AnalyticsService is read-only reporting over the contact, campaign and
// message stores.
type AnalyticsService struct {
	ContactRepo  repository.ContactRepositoryInterface
	CampaignRepo repository.CampaignRepositoryInterface
	MessageRepo  repository.MessageRepositoryInterface
}

func (s *AnalyticsService) ComputeStats() (model.ContactCounts, error) {
	counts, err := s.ContactRepo.Counts()
	if err != nil {
		return model.ContactCounts{}, appErrors.NewPersistence("contact counts", err)
	}
	return counts, nil
}

type CampaignPerformance struct {
	Campaign    model.Campaign `json:"campaign"`
	Sent        int            `json:"sent"`
	Conversions int            `json:"conversions"`
}

// ComputeCampaignPerformance reports outbound volume and conversions per
// campaign. Attribution is a heuristic, not a funnel: a registered contact
// counts as a conversion for the most recent campaign that messaged them
// before they registered. The data model tracks no causal click/response
// link, so treat these numbers as approximate.
func (s *AnalyticsService) ComputeCampaignPerformance() ([]CampaignPerformance, error) {
	campaigns, err := s.CampaignRepo.ListAll()
	if err != nil {
		return nil, appErrors.NewPersistence("list campaigns", err)
	}

	conversions := map[int]int{}
	registered, err := s.ContactRepo.ListRegistered()
	if err != nil {
		return nil, appErrors.NewPersistence("list registered contacts", err)
	}
	for _, contact := range registered {
		if contact.RegisteredAt == nil {
			continue
		}
		campaignID, err := s.MessageRepo.LastOutboundCampaignBefore(contact.Phone, *contact.RegisteredAt)
		if err != nil {
			return nil, appErrors.NewPersistence("attribute conversion", err)
		}
		if campaignID != nil {
			conversions[*campaignID]++
		}
	}

	performance := []CampaignPerformance{}
	for _, campaign := range campaigns {
		sent, err := s.MessageRepo.CountOutboundByCampaign(campaign.ID)
		if err != nil {
			return nil, appErrors.NewPersistence("count campaign sends", err)
		}
		performance = append(performance, CampaignPerformance{
			Campaign:    *campaign,
			Sent:        sent,
			Conversions: conversions[campaign.ID],
		})
	}
	return performance, nil
}
