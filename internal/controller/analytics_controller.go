// internal/controller/analytics_controller.go
package controller

import (
	"net/http"

	"github.com/leadflow/sms-backend/internal/service"
)

type AnalyticsController struct {
	AnalyticsService *service.AnalyticsService
}

func (c *AnalyticsController) ContactStats(w http.ResponseWriter, r *http.Request) {
	stats, err := c.AnalyticsService.ComputeStats()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (c *AnalyticsController) CampaignPerformance(w http.ResponseWriter, r *http.Request) {
	performance, err := c.AnalyticsService.ComputeCampaignPerformance()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": performance})
}
