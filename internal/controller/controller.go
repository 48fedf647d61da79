// internal/controller/controller.go
package controller

import (
	"encoding/json"
	"errors"
	"net/http"

	appErrors "github.com/leadflow/sms-backend/internal/errors"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps the error taxonomy onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	var (
		validation   *appErrors.ValidationError
		importErr    *appErrors.ImportError
		delivery     *appErrors.DeliveryError
		dispatched   *appErrors.ErrCampaignAlreadyDispatched
		campaign404  *appErrors.ErrCampaignNotFound
		contact404   *appErrors.ErrContactNotFound
		conversation *appErrors.ErrConversationNotFound
	)
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &validation), errors.As(err, &importErr):
		status = http.StatusBadRequest
	case errors.As(err, &campaign404), errors.As(err, &contact404), errors.As(err, &conversation):
		status = http.StatusNotFound
	case errors.As(err, &dispatched):
		status = http.StatusConflict
	case errors.As(err, &delivery):
		status = http.StatusBadGateway
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
