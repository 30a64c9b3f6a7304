package service

import (
	"context"
	"strings"
	"time"

	"github.com/pesio-ai/be-app-crm/internal/logger"
	"github.com/pesio-ai/be-app-crm/internal/repository"
	apperrors "github.com/pesio-ai/be-app-crm/pkg/errors"
)

const callLogPerPage = 12

// DetailStore persists lead details
type DetailStore interface {
	Create(ctx context.Context, d *repository.LeadDetail) error
	GetByID(ctx context.Context, id int64) (*repository.LeadDetail, error)
	Update(ctx context.Context, d *repository.LeadDetail) error
	MarkCalled(ctx context.Context, id int64, summary string, next *time.Time, calledAt time.Time) error
	Delete(ctx context.Context, id int64) error
	ListByLead(ctx context.Context, leadID int64) ([]*repository.LeadDetail, error)
	ListLatestPerLead(ctx context.Context, assignee int64) ([]*repository.LeadDetail, error)
	CallLog(ctx context.Context, assignee int64, page, perPage int) ([]*repository.LeadDetail, repository.Page, error)
}

// LeadDetailService manages follow-up entries
type LeadDetailService struct {
	details DetailStore
	leads   LeadStore
	log     *logger.Logger
	now     func() time.Time
}

func NewLeadDetailService(details DetailStore, leads LeadStore, log *logger.Logger) *LeadDetailService {
	return &LeadDetailService{
		details: details,
		leads:   leads,
		log:     log,
		now:     time.Now,
	}
}

// DetailInput is a follow-up entry as submitted
type DetailInput struct {
	LeadID              int64      `json:"lead_id"`
	CallFollowupDate    *time.Time `json:"call_followup_date"`
	CallFollowupSummary string     `json:"call_followup_summary"`
	NextCallDate        *time.Time `json:"next_call_date"`
}

// CompleteInput resolves an existing entry
type CompleteInput struct {
	CallFollowupSummary string     `json:"call_followup_summary"`
	NextCallDate        *time.Time `json:"next_call_date"`
}

func (in *DetailInput) validate(requireLead bool) error {
	fields := map[string]string{}
	if requireLead && in.LeadID == 0 {
		fields["lead_id"] = "The lead id field is required."
	}
	if in.CallFollowupDate == nil {
		fields["call_followup_date"] = "The call followup date field is required."
	}
	if strings.TrimSpace(in.CallFollowupSummary) == "" {
		fields["call_followup_summary"] = "The call followup summary field is required."
	}
	if in.NextCallDate != nil && in.CallFollowupDate != nil && !in.NextCallDate.After(*in.CallFollowupDate) {
		fields["next_call_date"] = "The next call date must be a date after call followup date."
	}
	if len(fields) > 0 {
		return apperrors.Validation(fields)
	}
	return nil
}

// Show returns a detail the actor may view
func (s *LeadDetailService) Show(ctx context.Context, actor *Actor, id int64) (*repository.LeadDetail, error) {
	return s.authorized(ctx, actor, id, PolicyDetailView)
}

// Store logs a contact on a lead. A directly logged entry is already called.
func (s *LeadDetailService) Store(ctx context.Context, actor *Actor, in *DetailInput) (*repository.LeadDetail, error) {
	if err := in.validate(true); err != nil {
		return nil, err
	}

	lead, err := s.leads.GetByID(ctx, in.LeadID)
	if err != nil {
		return nil, err
	}
	if err := Authorize(actor, PolicyDetailCreate, lead.AssignedUserID); err != nil {
		return nil, err
	}

	calledAt := s.now()
	d := &repository.LeadDetail{
		LeadID:              lead.ID,
		CallFollowupDate:    *in.CallFollowupDate,
		CallFollowupSummary: in.CallFollowupSummary,
		NextCallDate:        in.NextCallDate,
		CalledAt:            &calledAt,
		CreatedBy:           &actor.ID,
	}

	if err := s.details.Create(ctx, d); err != nil {
		s.log.Error().Err(err).Int64("lead_id", lead.ID).Msg("Failed to create lead detail")
		return nil, err
	}
	d.Lead = lead

	s.log.Info().Int64("lead_detail_id", d.ID).Int64("lead_id", lead.ID).Msg("Lead detail created")
	return d, nil
}

// Update edits the dates and summary of an entry
func (s *LeadDetailService) Update(ctx context.Context, actor *Actor, id int64, in *DetailInput) (*repository.LeadDetail, error) {
	d, err := s.authorized(ctx, actor, id, PolicyDetailEdit)
	if err != nil {
		return nil, err
	}
	if err := in.validate(false); err != nil {
		return nil, err
	}

	d.CallFollowupDate = *in.CallFollowupDate
	d.CallFollowupSummary = in.CallFollowupSummary
	d.NextCallDate = in.NextCallDate

	if err := s.details.Update(ctx, d); err != nil {
		s.log.Error().Err(err).Int64("lead_detail_id", id).Msg("Failed to update lead detail")
		return nil, err
	}

	s.log.Info().Int64("lead_detail_id", id).Msg("Lead detail updated")
	return d, nil
}

// Complete marks a pending entry as called
func (s *LeadDetailService) Complete(ctx context.Context, actor *Actor, id int64, in *CompleteInput) (*repository.LeadDetail, error) {
	d, err := s.authorized(ctx, actor, id, PolicyDetailEdit)
	if err != nil {
		return nil, err
	}

	now := s.now()
	fields := map[string]string{}
	if strings.TrimSpace(in.CallFollowupSummary) == "" {
		fields["call_followup_summary"] = "The call followup summary field is required."
	}
	if in.NextCallDate != nil && !in.NextCallDate.After(now) {
		fields["next_call_date"] = "The next call date must be a date after now."
	}
	if len(fields) > 0 {
		return nil, apperrors.Validation(fields)
	}

	if err := s.details.MarkCalled(ctx, id, in.CallFollowupSummary, in.NextCallDate, now); err != nil {
		s.log.Error().Err(err).Int64("lead_detail_id", id).Msg("Failed to mark lead detail as called")
		return nil, err
	}

	d.CallFollowupSummary = in.CallFollowupSummary
	d.NextCallDate = in.NextCallDate
	d.CalledAt = &now

	s.log.Info().Int64("lead_detail_id", id).Int64("called_by", actor.ID).Msg("Lead detail marked as called")
	return d, nil
}

// Destroy deletes an entry
func (s *LeadDetailService) Destroy(ctx context.Context, actor *Actor, id int64) error {
	if _, err := s.authorized(ctx, actor, id, PolicyDetailDelete); err != nil {
		return err
	}
	if err := s.details.Delete(ctx, id); err != nil {
		return err
	}

	s.log.Info().Int64("lead_detail_id", id).Msg("Lead detail deleted")
	return nil
}

// CallLog pages through every entry visible to the actor, newest first
func (s *LeadDetailService) CallLog(ctx context.Context, actor *Actor, page int) ([]*repository.LeadDetail, repository.Page, error) {
	return s.details.CallLog(ctx, actor.scope(), page, callLogPerPage)
}

func (s *LeadDetailService) authorized(ctx context.Context, actor *Actor, id int64, p Policy) (*repository.LeadDetail, error) {
	d, err := s.details.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var owner int64
	if d.Lead != nil {
		owner = d.Lead.AssignedUserID
	}
	if err := Authorize(actor, p, owner); err != nil {
		return nil, err
	}
	return d, nil
}
