// cmd/worker/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/leadflow/sms-backend/internal/db"
	appErrors "github.com/leadflow/sms-backend/internal/errors"
	"github.com/leadflow/sms-backend/internal/queue"
	"github.com/leadflow/sms-backend/internal/repository"
	"github.com/leadflow/sms-backend/internal/service"
	"github.com/leadflow/sms-backend/internal/sms"
)

// dispatchJob is the payload on the campaign_dispatch queue.
type dispatchJob struct {
	CampaignID int `json:"campaign_id"`
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️ No .env file found, relying on OS environment variables")
	}

	conn, err := db.Open()
	if err != nil {
		log.Fatal("failed to connect to DB:", err)
	}

	contactRepo := &repository.ContactRepository{DB: conn}
	campaignRepo := &repository.CampaignRepository{DB: conn}
	messageRepo := &repository.MessageRepository{DB: conn}

	sender := newSender()
	campaignService := &service.CampaignService{
		CampaignRepo: campaignRepo,
		Audience:     &service.AudienceService{ContactRepo: contactRepo},
		Dispatcher: &service.DispatchService{
			CampaignRepo: campaignRepo,
			MessageRepo:  messageRepo,
			Sender:       sender,
		},
	}

	q := newQueue()
	defer q.Close()

	// Consumer: fan out due campaigns handed over by the poller.
	err = q.Subscribe(queue.TopicCampaignDispatch, dispatchHandler(campaignService))
	if err != nil {
		log.Fatal("failed to subscribe:", err)
	}

	// Poller: every minute, hand due scheduled campaigns to the queue.
	c := cron.New()
	_, err = c.AddFunc("* * * * *", func() {
		due, err := campaignService.ListDue()
		if err != nil {
			log.Println("⚠️ Failed to list due campaigns:", err)
			return
		}
		for _, campaign := range due {
			payload, _ := json.Marshal(dispatchJob{CampaignID: campaign.ID})
			if err := q.Publish(queue.TopicCampaignDispatch, payload); err != nil {
				log.Println("⚠️ Failed to enqueue campaign", campaign.ID, ":", err)
			}
		}
	})
	if err != nil {
		log.Fatal("failed to register cron job:", err)
	}
	c.Start()

	log.Println("Worker running, waiting for due campaigns...")
	select {}
}

// dispatchHandler consumes dispatch jobs. Malformed payloads and campaigns
// already dispatched (two cron polls can enqueue the same campaign) are
// acked as no-ops; anything else is returned for redelivery.
func dispatchHandler(campaignService *service.CampaignService) func(payload []byte) error {
	return func(payload []byte) error {
		var job dispatchJob
		if err := json.Unmarshal(payload, &job); err != nil {
			log.Println("invalid dispatch job:", err)
			return nil // drop, nothing to retry
		}

		log.Println("📩 Dispatching scheduled campaign", job.CampaignID)
		result, err := campaignService.DispatchByID(context.Background(), job.CampaignID)
		if err != nil {
			var dispatched *appErrors.ErrCampaignAlreadyDispatched
			if errors.As(err, &dispatched) {
				log.Println("ℹ️ Campaign", job.CampaignID, "already dispatched, dropping duplicate job")
				return nil
			}
			log.Println("⚠️ Failed to dispatch campaign", job.CampaignID, ":", err)
			return err
		}
		log.Printf("✅ Campaign %d dispatched: sent=%d failed=%d skipped=%d\n",
			job.CampaignID, result.Sent, result.Failed, result.Skipped)
		return nil
	}
}

func newQueue() queue.Queue {
	url := os.Getenv("AMQP_URL")
	if url == "" {
		log.Println("⚠️ AMQP_URL not set, using in-memory queue")
		return queue.NewInMemoryQueue()
	}
	q, err := queue.NewAMQPQueue(url)
	if err != nil {
		log.Fatal("Failed to connect to RabbitMQ:", err)
	}
	return q
}

func newSender() sms.Sender {
	if url := os.Getenv("SMS_PROVIDER_URL"); url != "" {
		return sms.NewHTTPSender(url, os.Getenv("SMS_PROVIDER_API_KEY"))
	}
	log.Println("⚠️ SMS_PROVIDER_URL not set, using mock sender")
	return &sms.MockSender{FailRate: 0.1}
}
