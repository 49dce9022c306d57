package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

type TriggerKind string

const (
	KindNewLead TriggerKind = "new_lead"
	KindLeadAge TriggerKind = "lead_age"
	KindWebhook TriggerKind = "webhook"
)

var ErrInvalidTriggerConfig = errors.New("invalid trigger configuration")

// TriggerConfig is the kind-specific payload of a Trigger. Exactly one
// implementation exists per TriggerKind.
type TriggerConfig interface {
	Kind() TriggerKind
	Validate() error
}

type NewLeadConfig struct{}

func (NewLeadConfig) Kind() TriggerKind { return KindNewLead }
func (NewLeadConfig) Validate() error   { return nil }

type LeadAgeConfig struct {
	Days int `json:"days"`
}

func (LeadAgeConfig) Kind() TriggerKind { return KindLeadAge }

func (c LeadAgeConfig) Validate() error {
	if c.Days <= 0 {
		return fmt.Errorf("%w: days must be > 0, got %d", ErrInvalidTriggerConfig, c.Days)
	}
	return nil
}

type WebhookConfig struct {
	WebhookKey string `json:"webhook_key"`
}

func (WebhookConfig) Kind() TriggerKind { return KindWebhook }

func (c WebhookConfig) Validate() error {
	if strings.TrimSpace(c.WebhookKey) == "" {
		return fmt.Errorf("%w: webhook_key must not be empty", ErrInvalidTriggerConfig)
	}
	return nil
}

// ParseTriggerConfig decodes raw into the config type for kind and
// validates it. An empty raw document is treated as {}.
func ParseTriggerConfig(kind TriggerKind, raw []byte) (TriggerConfig, error) {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		raw = []byte("{}")
	}

	var cfg TriggerConfig
	switch kind {
	case KindNewLead:
		cfg = NewLeadConfig{}
	case KindLeadAge:
		var c LeadAgeConfig
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidTriggerConfig, err)
		}
		cfg = c
	case KindWebhook:
		var c WebhookConfig
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidTriggerConfig, err)
		}
		cfg = c
	default:
		return nil, fmt.Errorf("%w: unknown trigger kind %q", ErrInvalidTriggerConfig, kind)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type Trigger struct {
	ID         int64
	ClientID   int64
	TemplateID int64
	Name       string
	Active     bool
	Config     TriggerConfig
	CreatedAt  time.Time
}

func (t Trigger) Kind() TriggerKind {
	if t.Config == nil {
		return ""
	}
	return t.Config.Kind()
}

type triggerJSON struct {
	ID         int64         `json:"id"`
	ClientID   int64         `json:"client_id"`
	TemplateID int64         `json:"template_id"`
	Name       string        `json:"name"`
	Kind       TriggerKind   `json:"trigger_type"`
	Config     TriggerConfig `json:"config"`
	Active     bool          `json:"is_active"`
	CreatedAt  time.Time     `json:"created_at"`
}

func (t Trigger) MarshalJSON() ([]byte, error) {
	return json.Marshal(triggerJSON{
		ID:         t.ID,
		ClientID:   t.ClientID,
		TemplateID: t.TemplateID,
		Name:       t.Name,
		Kind:       t.Kind(),
		Config:     t.Config,
		Active:     t.Active,
		CreatedAt:  t.CreatedAt,
	})
}
