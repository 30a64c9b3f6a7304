package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/pesio-ai/be-app-crm/internal/logger"
	"github.com/pesio-ai/be-app-crm/internal/repository"
	apperrors "github.com/pesio-ai/be-app-crm/pkg/errors"
)

// LeadStore persists leads
type LeadStore interface {
	Create(ctx context.Context, lead *repository.Lead) error
	GetByID(ctx context.Context, id int64) (*repository.Lead, error)
	List(ctx context.Context, assignee int64) ([]*repository.Lead, error)
	Update(ctx context.Context, lead *repository.Lead) error
	Delete(ctx context.Context, id int64) error
	ExistsByContact(ctx context.Context, phone, email string, excludeID int64) (bool, error)
}

// LeadService manages leads
type LeadService struct {
	leads   LeadStore
	details DetailStore
	log     *logger.Logger
}

func NewLeadService(leads LeadStore, details DetailStore, log *logger.Logger) *LeadService {
	return &LeadService{
		leads:   leads,
		details: details,
		log:     log,
	}
}

// LeadInput is the editable part of a lead
type LeadInput struct {
	Name           string `json:"name"`
	CompanyName    string `json:"company_name"`
	Location       string `json:"location"`
	Phone          string `json:"phone"`
	Email          string `json:"email"`
	ServiceID      int64  `json:"service_id"`
	StatusID       int64  `json:"status_id"`
	AssignedUserID int64  `json:"assigned_user_id"`
}

// LeadWithDetails is a lead and its follow-ups, newest first
type LeadWithDetails struct {
	*repository.Lead
	LeadDetails []*repository.LeadDetail `json:"lead_details"`
}

// Validate checks field formats and the phone-or-email requirement
func (in *LeadInput) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	in.CompanyName = strings.TrimSpace(in.CompanyName)
	in.Location = strings.TrimSpace(in.Location)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Email = strings.TrimSpace(in.Email)

	fields := map[string]string{}
	maxLen := func(field, value string, n int) {
		if len(value) > n {
			fields[field] = fmt.Sprintf("The %s may not be greater than %d characters.", strings.ReplaceAll(field, "_", " "), n)
		}
	}
	maxLen("name", in.Name, 255)
	maxLen("company_name", in.CompanyName, 255)
	maxLen("location", in.Location, 255)
	maxLen("phone", in.Phone, 20)
	maxLen("email", in.Email, 255)

	if in.Email != "" {
		if addr, err := mail.ParseAddress(in.Email); err != nil || addr.Address != in.Email {
			fields["email"] = "Please enter a valid email address."
		}
	}
	if in.ServiceID == 0 {
		fields["service_id"] = "Please select a service."
	}
	if in.StatusID == 0 {
		fields["status_id"] = "Please select a status."
	}
	if in.AssignedUserID == 0 {
		fields["assigned_user_id"] = "Please select an assigned user."
	}
	if in.Phone == "" && in.Email == "" {
		fields["contact"] = "Either phone number or email address is required."
	}

	if len(fields) > 0 {
		return apperrors.Validation(fields)
	}
	return nil
}

func (in *LeadInput) apply(lead *repository.Lead) {
	lead.Name = optional(in.Name)
	lead.CompanyName = optional(in.CompanyName)
	lead.Location = optional(in.Location)
	lead.Phone = optional(in.Phone)
	lead.Email = optional(in.Email)
	lead.ServiceID = in.ServiceID
	lead.StatusID = in.StatusID
	lead.AssignedUserID = in.AssignedUserID
}

// CheckDuplicate rejects contact details another lead already uses. The
// check is a plain read and can race a concurrent insert.
func (s *LeadService) CheckDuplicate(ctx context.Context, phone, email string, excludeID int64) error {
	exists, err := s.leads.ExistsByContact(ctx, phone, email, excludeID)
	if err != nil {
		return err
	}
	if exists {
		return apperrors.Duplicate("duplicate", "A lead with this phone or email already exists.")
	}
	return nil
}

// Index lists leads visible to the actor
func (s *LeadService) Index(ctx context.Context, actor *Actor) ([]*repository.Lead, error) {
	return s.leads.List(ctx, actor.scope())
}

// Store creates a lead
func (s *LeadService) Store(ctx context.Context, actor *Actor, in *LeadInput) (*repository.Lead, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if err := s.CheckDuplicate(ctx, in.Phone, in.Email, 0); err != nil {
		return nil, err
	}

	lead := &repository.Lead{CreatedBy: &actor.ID}
	in.apply(lead)

	if err := s.leads.Create(ctx, lead); err != nil {
		s.log.Error().Err(err).Msg("Failed to create lead")
		return nil, err
	}

	s.log.Info().
		Int64("lead_id", lead.ID).
		Int64("assigned_user_id", lead.AssignedUserID).
		Int64("created_by", actor.ID).
		Msg("Lead created")

	return lead, nil
}

// Show returns a lead assigned to the actor with its details
func (s *LeadService) Show(ctx context.Context, actor *Actor, id int64) (*LeadWithDetails, error) {
	lead, err := s.get(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	details, err := s.details.ListByLead(ctx, id)
	if err != nil {
		return nil, err
	}

	return &LeadWithDetails{Lead: lead, LeadDetails: details}, nil
}

// Details lists a lead's follow-ups
func (s *LeadService) Details(ctx context.Context, actor *Actor, id int64) ([]*repository.LeadDetail, error) {
	if _, err := s.get(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.details.ListByLead(ctx, id)
}

// Update edits a lead assigned to the actor
func (s *LeadService) Update(ctx context.Context, actor *Actor, id int64, in *LeadInput) (*repository.Lead, error) {
	lead, err := s.get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if err := s.CheckDuplicate(ctx, in.Phone, in.Email, id); err != nil {
		return nil, err
	}

	in.apply(lead)
	if err := s.leads.Update(ctx, lead); err != nil {
		s.log.Error().Err(err).Int64("lead_id", id).Msg("Failed to update lead")
		return nil, err
	}

	s.log.Info().Int64("lead_id", id).Msg("Lead updated")
	return lead, nil
}

// Destroy deletes a lead assigned to the actor
func (s *LeadService) Destroy(ctx context.Context, actor *Actor, id int64) error {
	if _, err := s.get(ctx, actor, id); err != nil {
		return err
	}
	if err := s.leads.Delete(ctx, id); err != nil {
		return err
	}

	s.log.Info().Int64("lead_id", id).Int64("deleted_by", actor.ID).Msg("Lead deleted")
	return nil
}

func (s *LeadService) get(ctx context.Context, actor *Actor, id int64) (*repository.Lead, error) {
	lead, err := s.leads.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := Authorize(actor, PolicyLeadAccess, lead.AssignedUserID); err != nil {
		return nil, err
	}
	return lead, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
