package service

import (
	"context"
	"io"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/pesio-ai/be-app-crm/internal/repository"
	apperrors "github.com/pesio-ai/be-app-crm/pkg/errors"
)

// In-memory stores mirroring the repository semantics used by the services.

type fakeLeads struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*repository.Lead
}

func newFakeLeads() *fakeLeads {
	return &fakeLeads{rows: make(map[int64]*repository.Lead)}
}

func (f *fakeLeads) add(lead repository.Lead) *repository.Lead {
	f.mu.Lock()
	defer f.mu.Unlock()
	if lead.ID == 0 {
		f.nextID++
		lead.ID = f.nextID
	} else if lead.ID > f.nextID {
		f.nextID = lead.ID
	}
	f.rows[lead.ID] = &lead
	return &lead
}

func (f *fakeLeads) Create(_ context.Context, lead *repository.Lead) error {
	stored := f.add(*lead)
	lead.ID = stored.ID
	return nil
}

func (f *fakeLeads) GetByID(_ context.Context, id int64) (*repository.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.rows[id]
	if !ok {
		return nil, apperrors.NotFound("lead", id)
	}
	c := *l
	return &c, nil
}

func (f *fakeLeads) List(_ context.Context, assignee int64) ([]*repository.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*repository.Lead, 0)
	for _, l := range f.rows {
		if assignee == 0 || l.AssignedUserID == assignee {
			c := *l
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *fakeLeads) Update(_ context.Context, lead *repository.Lead) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[lead.ID]; !ok {
		return apperrors.NotFound("lead", lead.ID)
	}
	c := *lead
	f.rows[lead.ID] = &c
	return nil
}

func (f *fakeLeads) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[id]; !ok {
		return apperrors.NotFound("lead", id)
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeLeads) ExistsByContact(_ context.Context, phone, email string, excludeID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.rows {
		if l.ID == excludeID {
			continue
		}
		if phone != "" && l.Phone != nil && *l.Phone == phone {
			return true, nil
		}
		if email != "" && l.Email != nil && *l.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeLeads) Count(_ context.Context, assignee int64) (int64, error) {
	leads, _ := f.List(context.Background(), assignee)
	return int64(len(leads)), nil
}

func (f *fakeLeads) CountByStatus(_ context.Context, assignee int64) ([]repository.LeadStatusCount, error) {
	leads, _ := f.List(context.Background(), assignee)
	counts := map[int64]int64{}
	for _, l := range leads {
		counts[l.StatusID]++
	}
	out := make([]repository.LeadStatusCount, 0, len(counts))
	for id, n := range counts {
		out = append(out, repository.LeadStatusCount{StatusID: id, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StatusID < out[j].StatusID })
	return out, nil
}

type fakeDetails struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*repository.LeadDetail
	leads  *fakeLeads
}

func newFakeDetails(leads *fakeLeads) *fakeDetails {
	return &fakeDetails{rows: make(map[int64]*repository.LeadDetail), leads: leads}
}

func (f *fakeDetails) withLead(d *repository.LeadDetail) *repository.LeadDetail {
	c := *d
	if l, err := f.leads.GetByID(context.Background(), d.LeadID); err == nil {
		c.Lead = l
	}
	return &c
}

func (f *fakeDetails) Create(_ context.Context, d *repository.LeadDetail) error {
	if _, err := f.leads.GetByID(context.Background(), d.LeadID); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	d.ID = f.nextID
	c := *d
	c.Lead = nil
	f.rows[d.ID] = &c
	return nil
}

func (f *fakeDetails) GetByID(_ context.Context, id int64) (*repository.LeadDetail, error) {
	f.mu.Lock()
	d, ok := f.rows[id]
	f.mu.Unlock()
	if !ok {
		return nil, apperrors.NotFound("lead detail", id)
	}
	return f.withLead(d), nil
}

func (f *fakeDetails) Update(_ context.Context, d *repository.LeadDetail) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.rows[d.ID]
	if !ok {
		return apperrors.NotFound("lead detail", d.ID)
	}
	cur.CallFollowupDate = d.CallFollowupDate
	cur.CallFollowupSummary = d.CallFollowupSummary
	cur.NextCallDate = d.NextCallDate
	return nil
}

func (f *fakeDetails) MarkCalled(_ context.Context, id int64, summary string, next *time.Time, calledAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.rows[id]
	if !ok {
		return apperrors.NotFound("lead detail", id)
	}
	cur.CallFollowupSummary = summary
	cur.NextCallDate = next
	cur.CalledAt = &calledAt
	return nil
}

func (f *fakeDetails) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[id]; !ok {
		return apperrors.NotFound("lead detail", id)
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeDetails) all(match func(*repository.LeadDetail) bool) []*repository.LeadDetail {
	f.mu.Lock()
	rows := make([]*repository.LeadDetail, 0, len(f.rows))
	for _, d := range f.rows {
		rows = append(rows, d)
	}
	f.mu.Unlock()

	out := make([]*repository.LeadDetail, 0)
	for _, d := range rows {
		c := f.withLead(d)
		if match(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (f *fakeDetails) ListByLead(_ context.Context, leadID int64) ([]*repository.LeadDetail, error) {
	return f.all(func(d *repository.LeadDetail) bool { return d.LeadID == leadID }), nil
}

func (f *fakeDetails) ListLatestPerLead(_ context.Context, assignee int64) ([]*repository.LeadDetail, error) {
	visible := f.all(func(d *repository.LeadDetail) bool {
		return d.Lead != nil && (assignee == 0 || d.Lead.AssignedUserID == assignee)
	})
	return LatestPerLead(visible), nil
}

func (f *fakeDetails) CallLog(_ context.Context, assignee int64, page, perPage int) ([]*repository.LeadDetail, repository.Page, error) {
	visible := f.all(func(d *repository.LeadDetail) bool {
		return d.Lead != nil && (assignee == 0 || d.Lead.AssignedUserID == assignee)
	})
	p := repository.NewPage(page, perPage, int64(len(visible)))
	start := min(p.Offset(), len(visible))
	end := min(start+perPage, len(visible))
	return visible[start:end], p, nil
}

type fakeCalls struct {
	mu        sync.Mutex
	nextID    int64
	rows      map[int64]*repository.CallTracking
	updateErr error
}

func newFakeCalls() *fakeCalls {
	return &fakeCalls{rows: make(map[int64]*repository.CallTracking)}
}

func copyCall(c *repository.CallTracking) *repository.CallTracking {
	out := *c
	if c.CallMetadata != nil {
		out.CallMetadata = maps.Clone(c.CallMetadata)
	}
	return &out
}

func (f *fakeCalls) Create(_ context.Context, c *repository.CallTracking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	c.ID = f.nextID
	f.rows[c.ID] = copyCall(c)
	return nil
}

func (f *fakeCalls) GetByID(_ context.Context, id int64) (*repository.CallTracking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.rows[id]
	if !ok {
		return nil, apperrors.NotFound("call tracking", id)
	}
	return copyCall(c), nil
}

func (f *fakeCalls) GetByCallID(_ context.Context, callID string) (*repository.CallTracking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.rows {
		if c.CallID == callID {
			return copyCall(c), nil
		}
	}
	return nil, apperrors.NotFound("call tracking", callID)
}

func (f *fakeCalls) Update(_ context.Context, c *repository.CallTracking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	if _, ok := f.rows[c.ID]; !ok {
		return apperrors.NotFound("call tracking", c.ID)
	}
	f.rows[c.ID] = copyCall(c)
	return nil
}

func (f *fakeCalls) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[id]; !ok {
		return apperrors.NotFound("call tracking", id)
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeCalls) filter(match func(*repository.CallTracking) bool) []*repository.CallTracking {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*repository.CallTracking, 0)
	for _, c := range f.rows {
		if match(c) {
			out = append(out, copyCall(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (f *fakeCalls) List(_ context.Context, filter repository.CallFilter, page, perPage int) ([]*repository.CallTracking, repository.Page, error) {
	rows := f.filter(func(c *repository.CallTracking) bool {
		return (filter.UserID == 0 || c.UserID == filter.UserID) &&
			(filter.LeadID == 0 || c.LeadID == filter.LeadID) &&
			(filter.Status == "" || c.CallStatus == filter.Status)
	})
	p := repository.NewPage(page, perPage, int64(len(rows)))
	start := min(p.Offset(), len(rows))
	end := min(start+perPage, len(rows))
	return rows[start:end], p, nil
}

func (f *fakeCalls) ListActive(_ context.Context, userID int64) ([]*repository.CallTracking, error) {
	return f.filter(func(c *repository.CallTracking) bool {
		return (userID == 0 || c.UserID == userID) && IsActiveCall(c)
	}), nil
}

func (f *fakeCalls) ListByLead(_ context.Context, leadID int64) ([]*repository.CallTracking, error) {
	return f.filter(func(c *repository.CallTracking) bool { return c.LeadID == leadID }), nil
}

func (f *fakeCalls) Stats(_ context.Context, userID int64, _, _ *time.Time) (*repository.CallStats, error) {
	rows := f.filter(func(c *repository.CallTracking) bool { return userID == 0 || c.UserID == userID })
	stats := &repository.CallStats{TotalCalls: int64(len(rows))}
	for _, c := range rows {
		if c.CallStatus == CallCompleted {
			stats.CompletedCalls++
			stats.TotalDuration += c.CallDurationSeconds
		}
	}
	if stats.CompletedCalls > 0 {
		stats.AverageDuration = float64(stats.TotalDuration) / float64(stats.CompletedCalls)
	}
	return stats, nil
}

type fakeRecordings struct {
	mu      sync.Mutex
	saved   map[string]string
	deleted []string
}

func newFakeRecordings() *fakeRecordings {
	return &fakeRecordings{saved: make(map[string]string)}
}

func (f *fakeRecordings) Save(name string, body io.Reader) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := "call_recordings/" + name
	f.saved[stored] = string(data)
	return stored, nil
}

func (f *fakeRecordings) Delete(stored string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.saved, stored)
	f.deleted = append(f.deleted, stored)
	return nil
}

type fakeUsers struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*repository.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{rows: make(map[int64]*repository.User)}
}

func (f *fakeUsers) Create(_ context.Context, u *repository.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.rows {
		if existing.Email == u.Email {
			return apperrors.Validation(map[string]string{"email": "The email has already been taken."})
		}
	}
	f.nextID++
	u.ID = f.nextID
	c := *u
	c.Permissions = nil
	f.rows[u.ID] = &c
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id int64) (*repository.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.rows[id]
	if !ok {
		return nil, apperrors.NotFound("user", id)
	}
	c := *u
	return &c, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*repository.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.rows {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, apperrors.NotFound("user", email)
}

func (f *fakeUsers) Update(_ context.Context, u *repository.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.rows[u.ID]
	if !ok {
		return apperrors.NotFound("user", u.ID)
	}
	cur.Name, cur.Email, cur.Role = u.Name, u.Email, u.Role
	return nil
}

func (f *fakeUsers) UpdatePassword(_ context.Context, id int64, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.rows[id]
	if !ok {
		return apperrors.NotFound("user", id)
	}
	cur.PasswordHash = hash
	return nil
}

func (f *fakeUsers) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[id]; !ok {
		return apperrors.NotFound("user", id)
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeUsers) List(_ context.Context, role string) ([]*repository.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*repository.User, 0)
	for _, u := range f.rows {
		if role == "" || u.Role == role {
			c := *u
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

type fakePermissions struct {
	mu     sync.Mutex
	nextID int64
	perms  []*repository.Permission
	grants map[int64][]int64
}

func newFakePermissions() *fakePermissions {
	return &fakePermissions{grants: make(map[int64][]int64)}
}

func (f *fakePermissions) List(_ context.Context) ([]*repository.Permission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]*repository.Permission(nil), f.perms...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Module != out[j].Module {
			return out[i].Module < out[j].Module
		}
		return out[i].Action < out[j].Action
	})
	return out, nil
}

func (f *fakePermissions) byID(id int64) *repository.Permission {
	for _, p := range f.perms {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (f *fakePermissions) ListForUser(_ context.Context, userID int64) ([]*repository.Permission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*repository.Permission, 0)
	for _, id := range f.grants[userID] {
		if p := f.byID(id); p != nil {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePermissions) CountExisting(_ context.Context, ids []int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, p := range f.perms {
		for _, id := range ids {
			if p.ID == id {
				n++
				break
			}
		}
	}
	return n, nil
}

func (f *fakePermissions) SyncUser(_ context.Context, userID int64, ids []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.grants[userID] = append([]int64(nil), ids...)
	return nil
}

func (f *fakePermissions) Ensure(_ context.Context, module, action string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.perms {
		if p.Module == module && p.Action == action {
			return nil
		}
	}
	f.nextID++
	f.perms = append(f.perms, &repository.Permission{ID: f.nextID, Module: module, Action: action})
	return nil
}

// grant gives userID the named permission, creating it if needed
func (f *fakePermissions) grant(userID int64, module, action string) {
	_ = f.Ensure(context.Background(), module, action)
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.perms {
		if p.Module == module && p.Action == action {
			f.grants[userID] = append(f.grants[userID], p.ID)
		}
	}
}

type fakeCatalog struct {
	mu       sync.Mutex
	resource string
	nextID   int64
	rows     map[int64]*repository.CatalogEntry
	inUse    map[int64]bool
}

func newFakeCatalog(resource string) *fakeCatalog {
	return &fakeCatalog{resource: resource, rows: make(map[int64]*repository.CatalogEntry), inUse: make(map[int64]bool)}
}

func (f *fakeCatalog) Resource() string { return f.resource }

func (f *fakeCatalog) Create(_ context.Context, e *repository.CatalogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, cur := range f.rows {
		if cur.Name == e.Name {
			return apperrors.Validation(map[string]string{"name": "The name has already been taken."})
		}
	}
	f.nextID++
	e.ID = f.nextID
	c := *e
	f.rows[e.ID] = &c
	return nil
}

func (f *fakeCatalog) GetByID(_ context.Context, id int64) (*repository.CatalogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.rows[id]
	if !ok {
		return nil, apperrors.NotFound(f.resource, id)
	}
	c := *e
	return &c, nil
}

func (f *fakeCatalog) List(_ context.Context) ([]*repository.CatalogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*repository.CatalogEntry, 0, len(f.rows))
	for _, e := range f.rows {
		c := *e
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeCatalog) Update(_ context.Context, e *repository.CatalogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[e.ID]; !ok {
		return apperrors.NotFound(f.resource, e.ID)
	}
	c := *e
	f.rows[e.ID] = &c
	return nil
}

func (f *fakeCatalog) InUse(_ context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inUse[id], nil
}

func (f *fakeCatalog) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[id]; !ok {
		return apperrors.NotFound(f.resource, id)
	}
	delete(f.rows, id)
	return nil
}

var (
	_ LeadStore       = (*fakeLeads)(nil)
	_ LeadCounter     = (*fakeLeads)(nil)
	_ DetailStore     = (*fakeDetails)(nil)
	_ CallStore       = (*fakeCalls)(nil)
	_ RecordingStore  = (*fakeRecordings)(nil)
	_ UserStore       = (*fakeUsers)(nil)
	_ PermissionStore = (*fakePermissions)(nil)
	_ CatalogStore    = (*fakeCatalog)(nil)
)
