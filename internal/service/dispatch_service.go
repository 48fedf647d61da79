// internal/service/dispatch_service.go
package service

import (
	"context"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"

	appErrors "github.com/leadflow/sms-backend/internal/errors"
	"github.com/leadflow/sms-backend/internal/model"
	"github.com/leadflow/sms-backend/internal/repository"
	"github.com/leadflow/sms-backend/internal/sms"
)

const defaultConcurrency = 5

// DispatchService fans a campaign body out to its audience: one provider
// call per recipient, best effort. A recipient failure is recorded and the
// batch moves on; it never aborts the whole fan-out.
type DispatchService struct {
	CampaignRepo repository.CampaignRepositoryInterface
	MessageRepo  repository.MessageRepositoryInterface
	Sender       sms.Sender
	Concurrency  int
}

type RecipientResult struct {
	ContactID int    `json:"contact_id"`
	Phone     string `json:"phone"`
	Error     string `json:"error,omitempty"`
}

type DispatchResult struct {
	CampaignID int               `json:"campaign_id"`
	Sent       int               `json:"sent"`
	Failed     int               `json:"failed"`
	Skipped    int               `json:"skipped"`
	Results    []RecipientResult `json:"results"`
}

// DispatchNow sends the campaign body to every contact in audience with
// bounded parallelism. Each recipient's checkpoint row is claimed atomically
// before the provider call and given a final status after it, so resuming a
// crashed batch skips recipients that already went out and concurrent
// dispatchers of the same campaign cannot double-send. A confirmed send
// records one Message row and the conversation upsert in the same
// transaction.
func (d *DispatchService) DispatchNow(ctx context.Context, campaign *model.Campaign, audience []model.Contact) (*DispatchResult, error) {
	ok, err := d.CampaignRepo.MarkDispatching(campaign.ID)
	if err != nil {
		return nil, appErrors.NewPersistence("mark campaign dispatching", err)
	}
	if !ok {
		return nil, appErrors.NewCampaignAlreadyDispatched(campaign.ID)
	}

	result := &DispatchResult{CampaignID: campaign.ID, Results: []RecipientResult{}}
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency())

	for _, contact := range audience {
		contact := contact
		g.Go(func() error {
			outcome := d.sendOne(ctx, campaign, contact)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case outcome.skipped:
				result.Skipped++
			case outcome.err == "":
				result.Sent++
				result.Results = append(result.Results, RecipientResult{ContactID: contact.ID, Phone: contact.Phone})
			default:
				result.Failed++
				result.Results = append(result.Results, RecipientResult{ContactID: contact.ID, Phone: contact.Phone, Error: outcome.err})
			}
			return nil
		})
	}
	g.Wait()

	return result, nil
}

type sendOutcome struct {
	skipped bool
	err     string
}

func (d *DispatchService) sendOne(ctx context.Context, campaign *model.Campaign, contact model.Contact) sendOutcome {
	claimed, err := d.CampaignRepo.ClaimRecipient(campaign.ID, contact.ID)
	if err != nil {
		log.Println("failed to claim recipient", contact.ID, ":", err)
		return sendOutcome{err: err.Error()}
	}
	if !claimed {
		// Already sent, or another dispatcher holds the row.
		return sendOutcome{skipped: true}
	}

	if _, err := d.Sender.Send(ctx, contact.Phone, campaign.MessageBody); err != nil {
		log.Println("send to", contact.Phone, "failed:", err)
		if uerr := d.CampaignRepo.UpdateRecipientStatus(campaign.ID, contact.ID, model.RecipientStatusFailed, err.Error()); uerr != nil {
			log.Println("failed to record recipient failure:", uerr)
		}
		return sendOutcome{err: err.Error()}
	}

	campaignID := campaign.ID
	msg := &model.Message{
		Phone:      contact.Phone,
		Body:       campaign.MessageBody,
		Direction:  model.DirectionOut,
		CampaignID: &campaignID,
	}
	if err := d.MessageRepo.RecordWithConversation(msg); err != nil {
		// The provider accepted the message but the ledger write failed;
		// leave the checkpoint failed so a resume reconciles it.
		log.Println("failed to record message for", contact.Phone, ":", err)
		if uerr := d.CampaignRepo.UpdateRecipientStatus(campaign.ID, contact.ID, model.RecipientStatusFailed, err.Error()); uerr != nil {
			log.Println("failed to record recipient failure:", uerr)
		}
		return sendOutcome{err: err.Error()}
	}

	if err := d.CampaignRepo.UpdateRecipientStatus(campaign.ID, contact.ID, model.RecipientStatusSent, ""); err != nil {
		log.Println("failed to mark recipient sent:", err)
	}
	return sendOutcome{}
}

func (d *DispatchService) concurrency() int {
	if d.Concurrency > 0 {
		return d.Concurrency
	}
	return defaultConcurrency
}
