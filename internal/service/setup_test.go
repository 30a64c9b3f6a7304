package service

import (
	"testing"
	"time"

	"github.com/pesio-ai/be-app-crm/internal/repository"
	apperrors "github.com/pesio-ai/be-app-crm/pkg/errors"
	"github.com/pesio-ai/be-app-crm/pkg/password"
)

// cheap parameters keep the suite fast
var testHashParams = &password.Params{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

// testNow is 10:30 on a weekday in UTC
var testNow = time.Date(2024, time.March, 14, 10, 30, 0, 0, time.UTC)

type clock struct {
	t time.Time
}

func (c *clock) now() time.Time { return c.t }

func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *clock { return &clock{t: testNow} }

func adminActor(id int64) *Actor {
	return NewActor(&repository.User{ID: id, Name: "Admin", Email: "admin@example.com", Role: repository.RoleAdmin})
}

func userActor(id int64, grants ...Grant) *Actor {
	u := &repository.User{ID: id, Name: "Rep", Email: "rep@example.com", Role: repository.RoleUser}
	for i, g := range grants {
		u.Permissions = append(u.Permissions, &repository.Permission{ID: int64(i + 1), Module: g.Module, Action: g.Action})
	}
	return NewActor(u)
}

func ptr[T any](v T) *T { return &v }

func wantCode(t *testing.T, err error, code apperrors.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("error = nil, want %s", code)
	}
	if got := apperrors.CodeOf(err); got != code {
		t.Fatalf("error code = %s (%v), want %s", got, err, code)
	}
}

func wantField(t *testing.T, err error, field string) {
	t.Helper()
	wantCode(t, err, apperrors.ErrCodeValidation)
	var appErr *apperrors.Error
	if !apperrors.As(err, &appErr) {
		t.Fatalf("error %v is not an application error", err)
	}
	if _, ok := appErr.Fields[field]; !ok {
		t.Fatalf("validation fields = %v, want %q", appErr.Fields, field)
	}
}
