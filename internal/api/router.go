package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func Router(h *Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", h.Health)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /v1/scheduler/status", h.SchedulerStatus)
	mux.HandleFunc("POST /v1/scheduler/start", h.SchedulerStart)
	mux.HandleFunc("POST /v1/scheduler/stop", h.SchedulerStop)
	mux.HandleFunc("POST /v1/scheduler/run", h.SchedulerRun)

	mux.HandleFunc("POST /v1/webhooks/trigger/{webhook_key}", h.WebhookTrigger)
	mux.HandleFunc("POST /v1/webhooks/status", h.StatusCallback)

	mux.HandleFunc("POST /v1/leads", h.authenticated(h.CreateLead))
	mux.HandleFunc("POST /v1/templates", h.authenticated(h.CreateTemplate))
	mux.HandleFunc("POST /v1/templates/preview", h.authenticated(h.PreviewTemplate))
	mux.HandleFunc("POST /v1/triggers", h.authenticated(h.CreateTrigger))
	mux.HandleFunc("POST /v1/messages/send", h.authenticated(h.SendMessage))
	mux.HandleFunc("GET /v1/messages", h.authenticated(h.ListMessages))
	mux.HandleFunc("GET /v1/messages/{id}", h.authenticated(h.GetMessage))
	mux.HandleFunc("GET /v1/credits/balance", h.authenticated(h.CreditBalance))
	mux.HandleFunc("POST /v1/credits/add", h.authenticated(h.AddCredits))

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("sms-remarketing"))
	})

	return mux
}
