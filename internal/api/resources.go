package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/LeventeLantos/sms-remarketing/internal/apperr"
	"github.com/LeventeLantos/sms-remarketing/internal/model"
	"github.com/LeventeLantos/sms-remarketing/internal/service"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

type createLeadRequest struct {
	PhoneNumber  string         `json:"phone_number" validate:"required"`
	FirstName    string         `json:"first_name" validate:"max=100"`
	LastName     string         `json:"last_name" validate:"max=100"`
	Email        string         `json:"email" validate:"omitempty,email"`
	CustomFields map[string]any `json:"custom_fields"`
}

// CreateLead stores a lead and runs the caller's NEW_LEAD triggers before
// responding. Trigger failures never change the response.
func (h *Handler) CreateLead(w http.ResponseWriter, r *http.Request) {
	var req createLeadRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	lead, err := h.leads.Create(r.Context(), clientFrom(r.Context()).ID, model.Lead{
		PhoneNumber:  req.PhoneNumber,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		CustomFields: req.CustomFields,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, lead)
}

type createTemplateRequest struct {
	Name    string `json:"name" validate:"required,max=255"`
	Content string `json:"content" validate:"required"`
	Active  *bool  `json:"is_active"`
}

func (h *Handler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req createTemplateRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	active := req.Active == nil || *req.Active
	t, err := h.templates.Create(r.Context(), clientFrom(r.Context()).ID, req.Name, req.Content, active)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

type previewTemplateRequest struct {
	Content   string            `json:"content" validate:"required"`
	Variables map[string]string `json:"variables"`
}

func (h *Handler) PreviewTemplate(w http.ResponseWriter, r *http.Request) {
	var req previewTemplateRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, service.PreviewContent(req.Content, req.Variables))
}

type createTriggerRequest struct {
	Name        string          `json:"name" validate:"required,max=255"`
	TemplateID  int64           `json:"template_id" validate:"required,gt=0"`
	TriggerType string          `json:"trigger_type" validate:"required,oneof=new_lead lead_age webhook"`
	Config      json.RawMessage `json:"config"`
	Active      *bool           `json:"is_active"`
}

func (h *Handler) CreateTrigger(w http.ResponseWriter, r *http.Request) {
	var req createTriggerRequest
	if err := decodeOnly(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.TriggerType = strings.ToLower(strings.TrimSpace(req.TriggerType))
	if err := h.check(&req); err != nil {
		writeError(w, r, err)
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	t, err := h.triggers.Create(r.Context(), clientFrom(r.Context()).ID, service.CreateTrigger{
		Name:       req.Name,
		TemplateID: req.TemplateID,
		Kind:       model.TriggerKind(req.TriggerType),
		Config:     req.Config,
		Active:     active,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

type sendMessageRequest struct {
	LeadID     int64          `json:"lead_id" validate:"required,gt=0"`
	TemplateID *int64         `json:"template_id" validate:"omitempty,gt=0"`
	Content    string         `json:"content"`
	Variables  map[string]any `json:"variables"`
}

// SendMessage dispatches one message synchronously. A provider rejection
// is reported as 502 with the failed message id in the details.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	msg, err := h.messages.Send(r.Context(), clientFrom(r.Context()).ID, service.SendRequest{
		LeadID:     req.LeadID,
		TemplateID: req.TemplateID,
		Content:    req.Content,
		Variables:  req.Variables,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := parseInt(q.Get("limit"), defaultListLimit)
	offset := parseInt(q.Get("offset"), 0)
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	items, err := h.messages.List(r.Context(), clientFrom(r.Context()).ID, limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items":  items,
		"limit":  limit,
		"offset": offset,
	})
}

func (h *Handler) GetMessage(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, apperr.Validation("message id must be a positive integer"))
		return
	}

	msg, err := h.messages.Get(r.Context(), clientFrom(r.Context()).ID, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

type balanceResponse struct {
	ClientID int64 `json:"client_id"`
	Credits  int   `json:"credits"`
}

func (h *Handler) CreditBalance(w http.ResponseWriter, r *http.Request) {
	c := clientFrom(r.Context())
	bal, err := h.ledger.Balance(r.Context(), c.ID)
	if err != nil {
		writeError(w, r, apperr.Internal("read balance", err))
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{ClientID: c.ID, Credits: bal})
}

type addCreditsRequest struct {
	Amount int `json:"amount" validate:"required,gt=0"`
}

func (h *Handler) AddCredits(w http.ResponseWriter, r *http.Request) {
	var req addCreditsRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	c := clientFrom(r.Context())
	bal, err := h.ledger.Credit(r.Context(), c.ID, req.Amount)
	if err != nil {
		writeError(w, r, apperr.Internal("add credits", err))
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{ClientID: c.ID, Credits: bal})
}
