package service

import (
	"context"
	"errors"
	"strings"

	"github.com/LeventeLantos/sms-remarketing/internal/apperr"
	"github.com/LeventeLantos/sms-remarketing/internal/model"
	"github.com/LeventeLantos/sms-remarketing/internal/render"
	"github.com/LeventeLantos/sms-remarketing/internal/repo"
)

// MessageService serves explicit sends and message reads for one client.
type MessageService struct {
	dispatcher *Dispatcher
	messages   repo.MessageRepository
	leads      repo.LeadRepository
	templates  repo.TemplateRepository
}

func NewMessageService(d *Dispatcher, messages repo.MessageRepository, leads repo.LeadRepository, templates repo.TemplateRepository) *MessageService {
	return &MessageService{
		dispatcher: d,
		messages:   messages,
		leads:      leads,
		templates:  templates,
	}
}

type SendRequest struct {
	LeadID     int64
	TemplateID *int64
	Content    string
	Variables  map[string]any
}

// Send renders either the template or the literal content for the lead
// and dispatches it synchronously.
func (s *MessageService) Send(ctx context.Context, clientID int64, req SendRequest) (*model.Message, error) {
	hasContent := strings.TrimSpace(req.Content) != ""
	if hasContent == (req.TemplateID != nil) {
		return nil, apperr.Validation("exactly one of content or template_id is required")
	}

	lead, err := s.leads.Get(ctx, clientID, req.LeadID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, apperr.NotFound("lead not found")
	}
	if err != nil {
		return nil, apperr.Internal("load lead", err)
	}

	content := req.Content
	if req.TemplateID != nil {
		tpl, err := s.templates.Get(ctx, clientID, *req.TemplateID)
		if errors.Is(err, repo.ErrNotFound) {
			return nil, apperr.NotFound("template not found")
		}
		if err != nil {
			return nil, apperr.Internal("load template", err)
		}
		if !tpl.Active {
			return nil, apperr.NotFound("template not found or inactive")
		}
		content = render.Render(tpl.Content, LeadVariables(*lead, nil, req.Variables))
	}

	return s.dispatcher.Dispatch(ctx, clientID, *lead, content, req.TemplateID)
}

func (s *MessageService) Get(ctx context.Context, clientID, id int64) (*model.Message, error) {
	m, err := s.messages.Get(ctx, clientID, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, apperr.NotFound("message not found")
	}
	if err != nil {
		return nil, apperr.Internal("load message", err)
	}
	return m, nil
}

func (s *MessageService) List(ctx context.Context, clientID int64, limit, offset int) ([]model.Message, error) {
	msgs, err := s.messages.List(ctx, clientID, limit, offset)
	if err != nil {
		return nil, apperr.Internal("list messages", err)
	}
	if msgs == nil {
		msgs = []model.Message{}
	}
	return msgs, nil
}
