package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/leadflow/sms-backend/internal/errors"
	"github.com/leadflow/sms-backend/internal/model"
	"github.com/leadflow/sms-backend/internal/service"
)

func newDispatchService(store *fakeStore, sender *fakeSender) *service.DispatchService {
	return &service.DispatchService{
		CampaignRepo: fakeCampaignRepo{store},
		MessageRepo:  fakeMessageRepo{store},
		Sender:       sender,
		Concurrency:  2,
	}
}

func seedAudience(t *testing.T, store *fakeStore, n int) []model.Contact {
	t.Helper()
	audience := []model.Contact{}
	for i := 1; i <= n; i++ {
		c := &model.Contact{Phone: fmt.Sprintf("+1555123%04d", i)}
		require.NoError(t, store.Create(c))
		audience = append(audience, *c)
	}
	return audience
}

func TestDispatchSurvivesPartialFailure(t *testing.T) {
	store := newFakeStore()
	audience := seedAudience(t, store, 5)
	campaign := &model.Campaign{MessageBody: "hi"}
	require.NoError(t, store.CreateCampaign(campaign))

	sender := newFakeSender()
	sender.failFor[audience[2].Phone] = errors.New("provider rejected number")

	result, err := newDispatchService(store, sender).DispatchNow(context.Background(), campaign, audience)
	require.NoError(t, err)

	assert.Equal(t, 4, result.Sent)
	assert.Equal(t, 1, result.Failed)
	assert.Len(t, sender.calls(), 4, "later recipients are still attempted")
	assert.Len(t, store.messages, 4, "no Message row for the failed recipient")

	rec := store.recipients[[2]int{campaign.ID, audience[2].ID}]
	require.NotNil(t, rec)
	assert.Equal(t, model.RecipientStatusFailed, rec.Status)
	assert.Contains(t, rec.LastError, "rejected")
}

func TestDispatchWritesMessageAndConversationPerSend(t *testing.T) {
	store := newFakeStore()
	audience := seedAudience(t, store, 3)
	campaign := &model.Campaign{MessageBody: "rate update"}
	require.NoError(t, store.CreateCampaign(campaign))

	result, err := newDispatchService(store, newFakeSender()).DispatchNow(context.Background(), campaign, audience)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Sent)

	require.Len(t, store.messages, 3)
	for _, msg := range store.messages {
		assert.Equal(t, model.DirectionOut, msg.Direction)
		require.NotNil(t, msg.CampaignID)
		assert.Equal(t, campaign.ID, *msg.CampaignID)
	}
	for _, contact := range audience {
		conv, err := store.GetConversation(contact.Phone)
		require.NoError(t, err)
		require.NotNil(t, conv, "conversation upserted for %s", contact.Phone)
		assert.Equal(t, "rate update", conv.LastMessageBody)
	}
}

func TestDispatchResumeSkipsAlreadySentRecipients(t *testing.T) {
	store := newFakeStore()
	audience := seedAudience(t, store, 3)
	campaign := &model.Campaign{MessageBody: "hi", Status: model.CampaignStatusSending}
	require.NoError(t, store.CreateCampaign(campaign))

	// First run reached recipient #1 before dying.
	store.recipients[[2]int{campaign.ID, audience[0].ID}] = &model.CampaignRecipient{
		CampaignID: campaign.ID,
		ContactID:  audience[0].ID,
		Status:     model.RecipientStatusSent,
		UpdatedAt:  time.Now(),
	}

	sender := newFakeSender()
	result, err := newDispatchService(store, sender).DispatchNow(context.Background(), campaign, audience)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Sent)
	assert.Equal(t, 1, result.Skipped)
	assert.Len(t, sender.calls(), 2, "no second provider call for the recipient already sent")
}

func TestDispatchSkipsRecipientHeldByAnotherWorker(t *testing.T) {
	store := newFakeStore()
	audience := seedAudience(t, store, 2)
	campaign := &model.Campaign{MessageBody: "hi", Status: model.CampaignStatusSending}
	require.NoError(t, store.CreateCampaign(campaign))

	// A second dispatcher claimed recipient #1 moments ago.
	store.recipients[[2]int{campaign.ID, audience[0].ID}] = &model.CampaignRecipient{
		CampaignID: campaign.ID,
		ContactID:  audience[0].ID,
		Status:     model.RecipientStatusSending,
		UpdatedAt:  time.Now(),
	}

	sender := newFakeSender()
	result, err := newDispatchService(store, sender).DispatchNow(context.Background(), campaign, audience)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Sent)
	assert.Equal(t, 1, result.Skipped)
	calls := sender.calls()
	require.Len(t, calls, 1, "the held recipient must not be double-sent")
	assert.Equal(t, audience[1].Phone, calls[0].To)
}

func TestDispatchReclaimsAbandonedRecipient(t *testing.T) {
	store := newFakeStore()
	audience := seedAudience(t, store, 1)
	campaign := &model.Campaign{MessageBody: "hi", Status: model.CampaignStatusSending}
	require.NoError(t, store.CreateCampaign(campaign))

	// A dispatcher died holding the claim; the lease has long expired.
	store.recipients[[2]int{campaign.ID, audience[0].ID}] = &model.CampaignRecipient{
		CampaignID: campaign.ID,
		ContactID:  audience[0].ID,
		Status:     model.RecipientStatusSending,
		UpdatedAt:  time.Now().Add(-time.Hour),
	}

	sender := newFakeSender()
	result, err := newDispatchService(store, sender).DispatchNow(context.Background(), campaign, audience)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent)
	require.Len(t, sender.calls(), 1)

	rec := store.recipients[[2]int{campaign.ID, audience[0].ID}]
	assert.Equal(t, model.RecipientStatusSent, rec.Status)
}

func TestDispatchRefusesCompletedCampaign(t *testing.T) {
	store := newFakeStore()
	audience := seedAudience(t, store, 1)
	campaign := &model.Campaign{MessageBody: "hi", Status: model.CampaignStatusSent}
	require.NoError(t, store.CreateCampaign(campaign))

	_, err := newDispatchService(store, newFakeSender()).DispatchNow(context.Background(), campaign, audience)
	var dispatched *appErrors.ErrCampaignAlreadyDispatched
	require.True(t, errors.As(err, &dispatched), "want ErrCampaignAlreadyDispatched, got %v", err)
}
