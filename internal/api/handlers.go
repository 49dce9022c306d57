package api

import (
	"encoding/json"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/LeventeLantos/sms-remarketing/internal/credit"
	"github.com/LeventeLantos/sms-remarketing/internal/repo"
	"github.com/LeventeLantos/sms-remarketing/internal/scheduler"
	"github.com/LeventeLantos/sms-remarketing/internal/service"
)

const maxBodyBytes = 1 << 20

type Deps struct {
	Scheduler  *scheduler.Scheduler
	Clients    repo.ClientRepository
	Ledger     credit.Ledger
	Messages   *service.MessageService
	Leads      *service.LeadService
	Triggers   *service.TriggerService
	Templates  *service.TemplateService
	Matcher    *service.Matcher
	Reconciler *service.Reconciler
}

type Handler struct {
	sched      *scheduler.Scheduler
	clients    repo.ClientRepository
	ledger     credit.Ledger
	messages   *service.MessageService
	leads      *service.LeadService
	triggers   *service.TriggerService
	templates  *service.TemplateService
	matcher    *service.Matcher
	reconciler *service.Reconciler
	validate   *validator.Validate
}

func NewHandler(d Deps) *Handler {
	return &Handler{
		sched:      d.Scheduler,
		clients:    d.Clients,
		ledger:     d.Ledger,
		messages:   d.Messages,
		leads:      d.Leads,
		triggers:   d.Triggers,
		templates:  d.Templates,
		matcher:    d.Matcher,
		reconciler: d.Reconciler,
		validate:   newValidator(),
	}
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) SchedulerStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sched.Status())
}

func (h *Handler) SchedulerStart(w http.ResponseWriter, r *http.Request) {
	h.sched.Start()
	writeJSON(w, http.StatusOK, h.sched.Status())
}

func (h *Handler) SchedulerStop(w http.ResponseWriter, r *http.Request) {
	h.sched.Stop()
	writeJSON(w, http.StatusOK, h.sched.Status())
}

// SchedulerRun performs one lead-age sweep in the request.
func (h *Handler) SchedulerRun(w http.ResponseWriter, r *http.Request) {
	h.sched.RunNow(r.Context())
	writeJSON(w, http.StatusOK, h.sched.Status())
}

func parseInt(raw string, def int) int {
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
