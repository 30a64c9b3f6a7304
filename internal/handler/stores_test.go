package handler

import (
	"context"
	"sync"
	"time"

	"github.com/pesio-ai/be-app-crm/internal/repository"
	apperrors "github.com/pesio-ai/be-app-crm/pkg/errors"
)

type stubLeads struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*repository.Lead
}

func newStubLeads() *stubLeads {
	return &stubLeads{rows: map[int64]*repository.Lead{}}
}

func (s *stubLeads) Create(_ context.Context, l *repository.Lead) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	l.ID = s.nextID
	cp := *l
	s.rows[l.ID] = &cp
	return nil
}

func (s *stubLeads) GetByID(_ context.Context, id int64) (*repository.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.rows[id]
	if !ok {
		return nil, apperrors.NotFound("lead", id)
	}
	cp := *l
	return &cp, nil
}

func (s *stubLeads) List(_ context.Context, assignee int64) ([]*repository.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*repository.Lead, 0)
	for id := int64(1); id <= s.nextID; id++ {
		if l, ok := s.rows[id]; ok && (assignee == 0 || l.AssignedUserID == assignee) {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *stubLeads) Update(_ context.Context, l *repository.Lead) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *l
	s.rows[l.ID] = &cp
	return nil
}

func (s *stubLeads) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, id)
	return nil
}

func (s *stubLeads) ExistsByContact(context.Context, string, string, int64) (bool, error) {
	return false, nil
}

func (s *stubLeads) Count(ctx context.Context, assignee int64) (int64, error) {
	leads, err := s.List(ctx, assignee)
	return int64(len(leads)), err
}

func (s *stubLeads) CountByStatus(context.Context, int64) ([]repository.LeadStatusCount, error) {
	return []repository.LeadStatusCount{}, nil
}

// stubDetails joins the owning lead on read like the real queries do
type stubDetails struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*repository.LeadDetail
	leads  *stubLeads
}

func newStubDetails(leads *stubLeads) *stubDetails {
	return &stubDetails{rows: map[int64]*repository.LeadDetail{}, leads: leads}
}

func (s *stubDetails) Create(_ context.Context, d *repository.LeadDetail) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	d.ID = s.nextID
	cp := *d
	cp.Lead = nil
	s.rows[d.ID] = &cp
	return nil
}

func (s *stubDetails) withLead(d *repository.LeadDetail) *repository.LeadDetail {
	cp := *d
	if l, err := s.leads.GetByID(context.Background(), d.LeadID); err == nil {
		cp.Lead = l
	}
	return &cp
}

func (s *stubDetails) GetByID(_ context.Context, id int64) (*repository.LeadDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.rows[id]
	if !ok {
		return nil, apperrors.NotFound("lead detail", id)
	}
	return s.withLead(d), nil
}

func (s *stubDetails) Update(_ context.Context, d *repository.LeadDetail) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *d
	cp.Lead = nil
	s.rows[d.ID] = &cp
	return nil
}

func (s *stubDetails) MarkCalled(_ context.Context, id int64, summary string, next *time.Time, calledAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.rows[id]
	if !ok {
		return apperrors.NotFound("lead detail", id)
	}
	d.CallFollowupSummary = summary
	d.NextCallDate = next
	d.CalledAt = &calledAt
	return nil
}

func (s *stubDetails) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, id)
	return nil
}

func (s *stubDetails) filter(keep func(*repository.LeadDetail) bool) []*repository.LeadDetail {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*repository.LeadDetail, 0)
	for id := s.nextID; id >= 1; id-- {
		if d, ok := s.rows[id]; ok {
			d = s.withLead(d)
			if keep(d) {
				out = append(out, d)
			}
		}
	}
	return out
}

func assignedTo(assignee int64) func(*repository.LeadDetail) bool {
	return func(d *repository.LeadDetail) bool {
		return assignee == 0 || (d.Lead != nil && d.Lead.AssignedUserID == assignee)
	}
}

func (s *stubDetails) ListByLead(_ context.Context, leadID int64) ([]*repository.LeadDetail, error) {
	return s.filter(func(d *repository.LeadDetail) bool { return d.LeadID == leadID }), nil
}

func (s *stubDetails) ListLatestPerLead(_ context.Context, assignee int64) ([]*repository.LeadDetail, error) {
	seen := map[int64]bool{}
	keep := assignedTo(assignee)
	return s.filter(func(d *repository.LeadDetail) bool {
		if !keep(d) || seen[d.LeadID] {
			return false
		}
		seen[d.LeadID] = true
		return true
	}), nil
}

func (s *stubDetails) CallLog(_ context.Context, assignee int64, page, perPage int) ([]*repository.LeadDetail, repository.Page, error) {
	rows := s.filter(assignedTo(assignee))
	return rows, repository.NewPage(page, perPage, int64(len(rows))), nil
}

type stubCalls struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*repository.CallTracking
}

func newStubCalls() *stubCalls {
	return &stubCalls{rows: map[int64]*repository.CallTracking{}}
}

func (s *stubCalls) Create(_ context.Context, c *repository.CallTracking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	c.ID = s.nextID
	cp := *c
	s.rows[c.ID] = &cp
	return nil
}

func (s *stubCalls) GetByID(_ context.Context, id int64) (*repository.CallTracking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.rows[id]
	if !ok {
		return nil, apperrors.NotFound("call tracking", id)
	}
	cp := *c
	return &cp, nil
}

func (s *stubCalls) GetByCallID(_ context.Context, callID string) (*repository.CallTracking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.rows {
		if c.CallID == callID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, apperrors.NotFound("call tracking", callID)
}

func (s *stubCalls) Update(_ context.Context, c *repository.CallTracking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.rows[c.ID] = &cp
	return nil
}

func (s *stubCalls) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, id)
	return nil
}

func (s *stubCalls) filter(keep func(*repository.CallTracking) bool) []*repository.CallTracking {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*repository.CallTracking, 0)
	for id := s.nextID; id >= 1; id-- {
		if c, ok := s.rows[id]; ok && keep(c) {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out
}

func (s *stubCalls) List(_ context.Context, f repository.CallFilter, page, perPage int) ([]*repository.CallTracking, repository.Page, error) {
	rows := s.filter(func(c *repository.CallTracking) bool {
		return (f.UserID == 0 || c.UserID == f.UserID) &&
			(f.LeadID == 0 || c.LeadID == f.LeadID) &&
			(f.Status == "" || c.CallStatus == f.Status)
	})
	return rows, repository.NewPage(page, perPage, int64(len(rows))), nil
}

func (s *stubCalls) ListActive(_ context.Context, userID int64) ([]*repository.CallTracking, error) {
	return s.filter(func(c *repository.CallTracking) bool {
		return c.UserID == userID && (c.CallStatus == "initiated" || c.CallStatus == "ringing" || c.CallStatus == "answered")
	}), nil
}

func (s *stubCalls) ListByLead(_ context.Context, leadID int64) ([]*repository.CallTracking, error) {
	return s.filter(func(c *repository.CallTracking) bool { return c.LeadID == leadID }), nil
}

func (s *stubCalls) Stats(_ context.Context, userID int64, _, _ *time.Time) (*repository.CallStats, error) {
	rows := s.filter(func(c *repository.CallTracking) bool { return userID == 0 || c.UserID == userID })
	return &repository.CallStats{
		TotalCalls:    int64(len(rows)),
		CallsByStatus: []repository.StatusCount{},
		CallsByDay:    []repository.DayCount{},
	}, nil
}
