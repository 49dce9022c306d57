package service

import (
	"context"
	"strings"

	"github.com/LeventeLantos/sms-remarketing/internal/apperr"
	"github.com/LeventeLantos/sms-remarketing/internal/model"
	"github.com/LeventeLantos/sms-remarketing/internal/phone"
	"github.com/LeventeLantos/sms-remarketing/internal/repo"
)

type LeadService struct {
	leads   repo.LeadRepository
	matcher *Matcher
	region  string
}

func NewLeadService(leads repo.LeadRepository, matcher *Matcher, region string) *LeadService {
	if region == "" {
		region = phone.DefaultRegion
	}
	return &LeadService{leads: leads, matcher: matcher, region: region}
}

// Create stores lead for clientID and then runs the NEW_LEAD triggers.
// Automation failures are logged by the matcher and never fail the call.
func (s *LeadService) Create(ctx context.Context, clientID int64, lead model.Lead) (*model.Lead, error) {
	lead.ClientID = clientID
	lead.PhoneNumber = strings.TrimSpace(lead.PhoneNumber)
	if lead.PhoneNumber == "" {
		return nil, apperr.Validation("phone_number is required")
	}
	if !phone.Valid(lead.PhoneNumber, s.region) {
		return nil, apperr.Validation("phone_number is not a valid phone number")
	}
	lead.PhoneNumber = phone.NormalizeE164(lead.PhoneNumber, s.region)
	lead.ID = 0

	if err := s.leads.Create(ctx, &lead); err != nil {
		return nil, apperr.Internal("create lead", err)
	}

	if s.matcher != nil {
		s.matcher.OnLeadCreated(ctx, lead)
	}
	return &lead, nil
}
