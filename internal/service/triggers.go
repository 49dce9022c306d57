package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/LeventeLantos/sms-remarketing/internal/apperr"
	"github.com/LeventeLantos/sms-remarketing/internal/model"
	"github.com/LeventeLantos/sms-remarketing/internal/repo"
)

type TriggerService struct {
	templates repo.TemplateRepository
	triggers  repo.TriggerRepository
}

func NewTriggerService(templates repo.TemplateRepository, triggers repo.TriggerRepository) *TriggerService {
	return &TriggerService{templates: templates, triggers: triggers}
}

type CreateTrigger struct {
	Name       string
	TemplateID int64
	Kind       model.TriggerKind
	Config     json.RawMessage
	Active     bool
}

// Create validates and stores a trigger for clientID. The template must
// belong to the same client and a webhook key may be used only once.
func (s *TriggerService) Create(ctx context.Context, clientID int64, in CreateTrigger) (*model.Trigger, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, apperr.Validation("name is required")
	}

	cfg, err := model.ParseTriggerConfig(in.Kind, in.Config)
	if err != nil {
		return nil, apperr.InvalidConfiguration(err)
	}
	if wc, ok := cfg.(model.WebhookConfig); ok {
		wc.WebhookKey = strings.TrimSpace(wc.WebhookKey)
		cfg = wc
	}

	if _, err := s.templates.Get(ctx, clientID, in.TemplateID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, apperr.NotFound("template not found")
		}
		return nil, apperr.Internal("load template", err)
	}

	t := &model.Trigger{
		ClientID:   clientID,
		TemplateID: in.TemplateID,
		Name:       strings.TrimSpace(in.Name),
		Active:     in.Active,
		Config:     cfg,
	}
	if err := s.triggers.Create(ctx, t); err != nil {
		if errors.Is(err, repo.ErrConflict) {
			return nil, apperr.Conflict("webhook key already in use")
		}
		return nil, apperr.Internal("create trigger", err)
	}
	return t, nil
}
