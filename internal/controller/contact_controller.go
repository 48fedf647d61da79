// internal/controller/contact_controller.go
package controller

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/leadflow/sms-backend/internal/model"
	"github.com/leadflow/sms-backend/internal/phone"
	"github.com/leadflow/sms-backend/internal/repository"
	"github.com/leadflow/sms-backend/internal/service"
)

// ContactController serves the operator contact CRUD plus CSV import.
type ContactController struct {
	ContactRepo   repository.ContactRepositoryInterface
	ImportService *service.ImportService
}

func (c *ContactController) CreateContact(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Phone           string   `json:"phone"`
		FirstName       string   `json:"first_name"`
		LastName        string   `json:"last_name"`
		Email           string   `json:"email"`
		Tags            []string `json:"tags"`
		AssignedAgentID *int     `json:"assigned_agent_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	normalized, err := phone.Normalize(body.Phone)
	if err != nil {
		http.Error(w, "invalid phone: "+err.Error(), http.StatusBadRequest)
		return
	}

	contact := &model.Contact{
		Phone:           normalized,
		FirstName:       body.FirstName,
		LastName:        body.LastName,
		Email:           body.Email,
		Tags:            model.NormalizeTags(body.Tags),
		AssignedAgentID: body.AssignedAgentID,
	}
	if err := c.ContactRepo.Create(contact); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, contact)
}

func (c *ContactController) ListContacts(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	contacts, total, err := c.ContactRepo.List((page-1)*pageSize, pageSize)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": contacts,
		"pagination": map[string]int{
			"page":        page,
			"page_size":   pageSize,
			"total_count": total,
		},
	})
}

func (c *ContactController) GetContact(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid contact id", http.StatusBadRequest)
		return
	}

	contact, err := c.ContactRepo.GetByID(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contact)
}

// UpdateTags replaces the contact's tag set atomically.
func (c *ContactController) UpdateTags(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid contact id", http.StatusBadRequest)
		return
	}

	var body struct {
		Tags []string `json:"tags"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	if err := c.ContactRepo.UpdateTags(id, body.Tags); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":   id,
		"tags": model.NormalizeTags(body.Tags),
	})
}

// MarkRegistered records registration completion; conversions attribute from
// this timestamp.
func (c *ContactController) MarkRegistered(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid contact id", http.StatusBadRequest)
		return
	}

	if err := c.ContactRepo.MarkRegistered(id, time.Now()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ImportCSV ingests a contact CSV from the request body.
func (c *ContactController) ImportCSV(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	result, err := c.ImportService.Import(r.Body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
