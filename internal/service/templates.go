package service

import (
	"context"
	"strings"

	"github.com/LeventeLantos/sms-remarketing/internal/apperr"
	"github.com/LeventeLantos/sms-remarketing/internal/model"
	"github.com/LeventeLantos/sms-remarketing/internal/render"
	"github.com/LeventeLantos/sms-remarketing/internal/repo"
)

type TemplateService struct {
	templates repo.TemplateRepository
}

func NewTemplateService(templates repo.TemplateRepository) *TemplateService {
	return &TemplateService{templates: templates}
}

func (s *TemplateService) Create(ctx context.Context, clientID int64, name, content string, active bool) (*model.Template, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("name is required")
	}
	if strings.TrimSpace(content) == "" {
		return nil, apperr.Validation("content is required")
	}

	t := &model.Template{ClientID: clientID, Name: name, Content: content, Active: active}
	if err := s.templates.Create(ctx, t); err != nil {
		return nil, apperr.Internal("create template", err)
	}
	return t, nil
}

// Preview is a rendered template together with the placeholders it uses.
type Preview struct {
	Rendered  string   `json:"rendered"`
	Variables []string `json:"variables"`
	Missing   []string `json:"missing"`
}

// PreviewContent renders content with vars. Variables lists each
// placeholder once in order of first appearance; Missing holds the ones
// vars does not supply.
func PreviewContent(content string, vars map[string]string) Preview {
	p := Preview{
		Rendered:  render.Render(content, vars),
		Variables: []string{},
		Missing:   []string{},
	}
	seen := map[string]bool{}
	for _, name := range render.VariableNames(content) {
		if seen[name] {
			continue
		}
		seen[name] = true
		p.Variables = append(p.Variables, name)
		if _, ok := vars[name]; !ok {
			p.Missing = append(p.Missing, name)
		}
	}
	return p
}
