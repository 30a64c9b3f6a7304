package service

import (
	"context"
	"time"

	"github.com/pesio-ai/be-app-crm/internal/logger"
	"github.com/pesio-ai/be-app-crm/internal/repository"
)

// LeadCounter aggregates leads for the dashboard
type LeadCounter interface {
	Count(ctx context.Context, assignee int64) (int64, error)
	CountByStatus(ctx context.Context, assignee int64) ([]repository.LeadStatusCount, error)
}

// LatestDetails loads the newest detail of every lead
type LatestDetails interface {
	ListLatestPerLead(ctx context.Context, assignee int64) ([]*repository.LeadDetail, error)
}

// UserLookup loads a user by id
type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*repository.User, error)
}

// DashboardStats summarizes the call queues
type DashboardStats struct {
	TotalLeads    int64                        `json:"total_leads"`
	TodaysCalls   int                          `json:"todays_calls"`
	PendingCalls  int                          `json:"pending_calls"`
	UpcomingCalls int                          `json:"upcoming_calls"`
	LeadsByStatus []repository.LeadStatusCount `json:"leads_by_status"`
}

// Dashboard is the call queue view for one scope
type Dashboard struct {
	Buckets
	Stats   DashboardStats   `json:"stats"`
	Today   string           `json:"today"`
	ForUser *repository.User `json:"filtered_user,omitempty"`
}

// DashboardService builds the call queues
type DashboardService struct {
	details LatestDetails
	leads   LeadCounter
	users   UserLookup
	loc     *time.Location
	log     *logger.Logger
	now     func() time.Time
}

func NewDashboardService(details LatestDetails, leads LeadCounter, users UserLookup, loc *time.Location, log *logger.Logger) *DashboardService {
	if loc == nil {
		loc = time.UTC
	}
	return &DashboardService{
		details: details,
		leads:   leads,
		users:   users,
		loc:     loc,
		log:     log,
		now:     time.Now,
	}
}

// Overview returns the actor's queues, or everyone's for admins
func (s *DashboardService) Overview(ctx context.Context, actor *Actor) (*Dashboard, error) {
	return s.build(ctx, actor.scope())
}

// ForUser returns another user's queues. Admin only.
func (s *DashboardService) ForUser(ctx context.Context, actor *Actor, userID int64) (*Dashboard, error) {
	if err := Authorize(actor, PolicyDashboardForUser, 0); err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	d, err := s.build(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	d.ForUser = user
	return d, nil
}

func (s *DashboardService) build(ctx context.Context, assignee int64) (*Dashboard, error) {
	details, err := s.details.ListLatestPerLead(ctx, assignee)
	if err != nil {
		return nil, err
	}

	total, err := s.leads.Count(ctx, assignee)
	if err != nil {
		return nil, err
	}

	byStatus, err := s.leads.CountByStatus(ctx, assignee)
	if err != nil {
		return nil, err
	}

	now := s.now()
	b := BucketDetails(details, now, s.loc)

	s.log.Debug().
		Int64("assignee", assignee).
		Int("today", len(b.Today)).
		Int("pending", len(b.Pending)).
		Int("upcoming", len(b.Upcoming)).
		Msg("Dashboard built")

	return &Dashboard{
		Buckets: b,
		Stats: DashboardStats{
			TotalLeads:    total,
			TodaysCalls:   len(b.Today),
			PendingCalls:  len(b.Pending),
			UpcomingCalls: len(b.Upcoming),
			LeadsByStatus: byStatus,
		},
		Today: now.In(s.loc).Format(time.DateOnly),
	}, nil
}
