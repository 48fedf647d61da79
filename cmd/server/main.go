// cmd/server/main.go
package main

import (
	"log"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/leadflow/sms-backend/internal/controller"
	"github.com/leadflow/sms-backend/internal/db"
	"github.com/leadflow/sms-backend/internal/handler"
	"github.com/leadflow/sms-backend/internal/repository"
	"github.com/leadflow/sms-backend/internal/service"
	"github.com/leadflow/sms-backend/internal/sms"
)

func main() {
	// Load .env
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️ No .env file found, relying on OS environment variables")
	}

	conn, err := db.Open()
	if err != nil {
		log.Fatal(err)
	}
	log.Println("✅ Connected to database")

	contactRepo := &repository.ContactRepository{DB: conn}
	campaignRepo := &repository.CampaignRepository{DB: conn}
	messageRepo := &repository.MessageRepository{DB: conn}
	conversationRepo := &repository.ConversationRepository{DB: conn}
	templateRepo := &repository.TemplateRepository{DB: conn}

	sender := newSender()

	audienceService := &service.AudienceService{ContactRepo: contactRepo}
	dispatchService := &service.DispatchService{
		CampaignRepo: campaignRepo,
		MessageRepo:  messageRepo,
		Sender:       sender,
	}
	campaignService := &service.CampaignService{
		CampaignRepo: campaignRepo,
		Audience:     audienceService,
		Dispatcher:   dispatchService,
	}
	conversationService := &service.ConversationService{
		ContactRepo:      contactRepo,
		MessageRepo:      messageRepo,
		ConversationRepo: conversationRepo,
		Sender:           sender,
	}
	importService := &service.ImportService{ContactRepo: contactRepo}
	analyticsService := &service.AnalyticsService{
		ContactRepo:  contactRepo,
		CampaignRepo: campaignRepo,
		MessageRepo:  messageRepo,
	}

	contactController := &controller.ContactController{
		ContactRepo:   contactRepo,
		ImportService: importService,
	}
	campaignController := &controller.CampaignController{CampaignService: campaignService}
	templateController := &controller.TemplateController{TemplateRepo: templateRepo}
	conversationController := &controller.ConversationController{ConversationService: conversationService}
	analyticsController := &controller.AnalyticsController{AnalyticsService: analyticsService}
	webhookHandler := &handler.WebhookHandler{ConversationService: conversationService}

	r := chi.NewRouter()

	// Contact routes
	r.Post("/contacts", contactController.CreateContact)
	r.Get("/contacts", contactController.ListContacts)
	r.Get("/contacts/{id}", contactController.GetContact)
	r.Put("/contacts/{id}/tags", contactController.UpdateTags)
	r.Post("/contacts/{id}/registered", contactController.MarkRegistered)
	r.Post("/contacts/import", contactController.ImportCSV)

	// Campaign routes
	r.Post("/campaigns", campaignController.SubmitCampaign)
	r.Get("/campaigns", campaignController.ListCampaigns)
	r.Get("/campaigns/{id}", campaignController.GetCampaignDetails)
	r.Post("/campaigns/{id}/retry", campaignController.RetryCampaign)

	// Template routes
	r.Post("/templates", templateController.CreateTemplate)
	r.Get("/templates", templateController.ListTemplates)
	r.Put("/templates/{id}", templateController.UpdateTemplate)
	r.Delete("/templates/{id}", templateController.DeleteTemplate)

	// Conversation routes
	r.Get("/conversations", conversationController.ListConversations)
	r.Get("/conversations/{phone}", conversationController.GetConversation)
	r.Post("/conversations/{phone}/reply", conversationController.Reply)
	r.Post("/conversations/{phone}/escalate", conversationController.Escalate)
	r.Put("/conversations/{phone}/status", conversationController.SetStatus)

	// Analytics routes
	r.Get("/analytics/contacts", analyticsController.ContactStats)
	r.Get("/analytics/campaigns", analyticsController.CampaignPerformance)

	// Provider webhooks
	r.Post("/webhooks/sms/inbound", webhookHandler.InboundSMS)
	r.Post("/webhooks/sms/optout", webhookHandler.OptOut)

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	log.Println("🚀 Server running on", addr)
	log.Fatal(http.ListenAndServe(addr, r))
}

// newSender picks the real provider client when SMS_PROVIDER_URL is set and
// falls back to the mock for local runs.
func newSender() sms.Sender {
	if url := os.Getenv("SMS_PROVIDER_URL"); url != "" {
		return sms.NewHTTPSender(url, os.Getenv("SMS_PROVIDER_API_KEY"))
	}
	log.Println("⚠️ SMS_PROVIDER_URL not set, using mock sender")
	return &sms.MockSender{FailRate: 0.1}
}
