package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/LeventeLantos/sms-remarketing/internal/apperr"
	"github.com/LeventeLantos/sms-remarketing/internal/cache"
	"github.com/LeventeLantos/sms-remarketing/internal/metrics"
	"github.com/LeventeLantos/sms-remarketing/internal/model"
	"github.com/LeventeLantos/sms-remarketing/internal/render"
	"github.com/LeventeLantos/sms-remarketing/internal/repo"
)

// Matcher turns lead events into dispatches for the triggers that match
// them.
type Matcher struct {
	dispatcher *Dispatcher
	leads      repo.LeadRepository
	templates  repo.TemplateRepository
	triggers   repo.TriggerRepository
	marker     cache.SweepMarker
}

func NewMatcher(d *Dispatcher, leads repo.LeadRepository, templates repo.TemplateRepository, triggers repo.TriggerRepository) *Matcher {
	return &Matcher{
		dispatcher: d,
		leads:      leads,
		templates:  templates,
		triggers:   triggers,
	}
}

// WithSweepMarker makes lead-age sweeps skip (trigger, lead, day)
// combinations that were already dispatched.
func (m *Matcher) WithSweepMarker(marker cache.SweepMarker) *Matcher {
	m.marker = marker
	return m
}

// LeadVariables builds the placeholder values for lead. Later sources
// win: lead fields, then extra, then custom fields, then overrides.
func LeadVariables(lead model.Lead, extra map[string]string, overrides map[string]any) map[string]string {
	vars := map[string]string{
		"first_name":   lead.FirstName,
		"last_name":    lead.LastName,
		"full_name":    lead.FullName(),
		"phone_number": lead.PhoneNumber,
		"email":        lead.Email,
	}
	for k, v := range extra {
		vars[k] = v
	}
	for k, v := range lead.CustomFields {
		vars[k] = stringify(v)
	}
	for k, v := range overrides {
		vars[k] = stringify(v)
	}
	return vars
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

// activeTemplate returns the trigger's template, or nil when it is missing
// or inactive.
func (m *Matcher) activeTemplate(ctx context.Context, t model.Trigger) (*model.Template, error) {
	tpl, err := m.templates.Get(ctx, t.ClientID, t.TemplateID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !tpl.Active {
		return nil, nil
	}
	return tpl, nil
}

func (m *Matcher) send(ctx context.Context, lead model.Lead, tpl *model.Template, vars map[string]string) (*model.Message, error) {
	content := render.Render(tpl.Content, vars)
	templateID := tpl.ID
	return m.dispatcher.Dispatch(ctx, lead.ClientID, lead, content, &templateID)
}

// OnLeadCreated runs every active NEW_LEAD trigger of the lead's client.
// Failures are logged and never returned.
func (m *Matcher) OnLeadCreated(ctx context.Context, lead model.Lead) {
	triggers, err := m.triggers.ListActiveForClient(ctx, lead.ClientID, model.KindNewLead)
	if err != nil {
		slog.Error("list new_lead triggers", "client_id", lead.ClientID, "lead_id", lead.ID, "error", err)
		return
	}

	for _, t := range triggers {
		tpl, err := m.activeTemplate(ctx, t)
		if err != nil {
			slog.Error("load template", "trigger_id", t.ID, "error", err)
			continue
		}
		if tpl == nil {
			slog.Warn("template missing or inactive, skipping trigger", "trigger_id", t.ID, "template_id", t.TemplateID)
			continue
		}

		msg, err := m.send(ctx, lead, tpl, LeadVariables(lead, nil, nil))
		if err != nil {
			slog.Error("new_lead trigger failed", "trigger_id", t.ID, "lead_id", lead.ID, "error", err)
			continue
		}
		slog.Info("new_lead trigger dispatched", "trigger_id", t.ID, "lead_id", lead.ID, "message_id", msg.ID, "status", msg.Status)
	}
}

type SweepResult struct {
	Triggers   int `json:"triggers"`
	Dispatched int `json:"dispatched"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}

// LeadAgeWindow returns the UTC calendar day that lies days before now:
// [midnight(now-days), midnight(now-days)+24h).
func LeadAgeWindow(now time.Time, days int) (time.Time, time.Time) {
	target := now.UTC().AddDate(0, 0, -days)
	from := time.Date(target.Year(), target.Month(), target.Day(), 0, 0, 0, 0, time.UTC)
	return from, from.Add(24 * time.Hour)
}

// RunLeadAgeSweep dispatches every active LEAD_AGE trigger to the leads
// created on its target day. One bad trigger or lead never stops the rest.
func (m *Matcher) RunLeadAgeSweep(ctx context.Context, now time.Time) (SweepResult, error) {
	var res SweepResult

	triggers, err := m.triggers.ListActive(ctx, model.KindLeadAge)
	if err != nil {
		return res, fmt.Errorf("list lead_age triggers: %w", err)
	}

	for _, t := range triggers {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		res.Triggers++

		cfg, ok := t.Config.(model.LeadAgeConfig)
		if !ok || cfg.Days <= 0 {
			slog.Warn("lead_age trigger without positive days, skipping", "trigger_id", t.ID)
			continue
		}

		tpl, err := m.activeTemplate(ctx, t)
		if err != nil {
			slog.Error("load template", "trigger_id", t.ID, "error", err)
			continue
		}
		if tpl == nil {
			slog.Warn("template missing or inactive, skipping trigger", "trigger_id", t.ID, "template_id", t.TemplateID)
			continue
		}

		from, to := LeadAgeWindow(now, cfg.Days)
		leads, err := m.leads.ListCreatedBetween(ctx, t.ClientID, from, to)
		if err != nil {
			slog.Error("list leads for lead_age trigger", "trigger_id", t.ID, "error", err)
			continue
		}

		extra := map[string]string{"days_since_signup": strconv.Itoa(cfg.Days)}
		for _, lead := range leads {
			if m.marker != nil {
				first, err := m.marker.MarkSweep(ctx, t.ID, lead.ID, from)
				if err != nil {
					slog.Warn("sweep mark failed, dispatching anyway", "trigger_id", t.ID, "lead_id", lead.ID, "error", err)
				} else if !first {
					res.Skipped++
					metrics.LeadAgeSweeps.WithLabelValues("skipped").Inc()
					continue
				}
			}

			msg, err := m.send(ctx, lead, tpl, LeadVariables(lead, extra, nil))
			if err != nil {
				res.Failed++
				metrics.LeadAgeSweeps.WithLabelValues("failed").Inc()
				slog.Error("lead_age trigger failed", "trigger_id", t.ID, "lead_id", lead.ID, "error", err)
				continue
			}
			res.Dispatched++
			metrics.LeadAgeSweeps.WithLabelValues("dispatched").Inc()
			slog.Info("lead_age trigger dispatched", "trigger_id", t.ID, "lead_id", lead.ID, "message_id", msg.ID, "days", cfg.Days)
		}
	}

	return res, nil
}

// FireWebhook dispatches the active WEBHOOK trigger registered under key
// to leadID. The lead must belong to the trigger's client.
func (m *Matcher) FireWebhook(ctx context.Context, key string, leadID int64, overrides map[string]any) (*model.Message, error) {
	t, err := m.triggers.FindActiveWebhook(ctx, key)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, apperr.NotFound("webhook trigger not found or inactive")
	}
	if err != nil {
		return nil, apperr.Internal("find webhook trigger", err)
	}

	lead, err := m.leads.Get(ctx, t.ClientID, leadID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, apperr.NotFound("lead not found or does not belong to this client")
	}
	if err != nil {
		return nil, apperr.Internal("load lead", err)
	}

	tpl, err := m.activeTemplate(ctx, *t)
	if err != nil {
		return nil, apperr.Internal("load template", err)
	}
	if tpl == nil {
		return nil, apperr.NotFound("template not found or inactive")
	}

	msg, err := m.send(ctx, *lead, tpl, LeadVariables(*lead, nil, overrides))
	if err != nil {
		slog.Error("webhook trigger failed", "trigger_id", t.ID, "lead_id", lead.ID, "error", err)
		return msg, err
	}
	slog.Info("webhook trigger dispatched", "trigger_id", t.ID, "lead_id", lead.ID, "message_id", msg.ID)
	return msg, nil
}
