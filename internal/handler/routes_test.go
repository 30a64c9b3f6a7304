package handler

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pesio-ai/be-app-crm/internal/service"
)

func TestCallLogGrants(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name       string
		id         int64
		path       string
		wantStatus int
		wantTotal  float64
	}{
		{"lead details grant opens call-log", detailViewer, "/call-log", http.StatusOK, 0},
		{"lead details grant does not open alias", detailViewer, "/call-logs", http.StatusForbidden, 0},
		{"leads grant does not open call-log", leadViewer, "/call-log", http.StatusForbidden, 0},
		{"leads grant opens alias", leadViewer, "/call-logs", http.StatusOK, 0},
		{"no grants", outsider, "/call-log", http.StatusForbidden, 0},
		{"no grants on alias", repID, "/call-logs", http.StatusForbidden, 0},
		{"admin sees every entry", adminID, "/call-log", http.StatusOK, 1},
		{"admin through alias", adminID, "/call-logs", http.StatusOK, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodGet, tt.path, s.token(t, tt.id), "")
			if rec.Code != tt.wantStatus {
				t.Fatalf("GET %s status = %d, want %d (body %s)", tt.path, rec.Code, tt.wantStatus, rec.Body)
			}
			if rec.Code != http.StatusOK {
				return
			}
			body := decodeBody(t, rec)
			if body["total"] != tt.wantTotal {
				t.Errorf("total = %v, want %v", body["total"], tt.wantTotal)
			}
			if body["per_page"] != float64(12) {
				t.Errorf("per_page = %v, want 12", body["per_page"])
			}
		})
	}
}

func TestRouteAuthorization(t *testing.T) {
	const detailBody = `{"call_followup_date":"2024-03-14 10:00:00","call_followup_summary":"Rescheduled","next_call_date":"2024-03-20 11:00:00"}`

	tests := []struct {
		name        string
		id          int64
		method      string
		path        string
		body        string
		wantStatus  int
		wantMessage string
	}{
		{name: "assignee edits detail without grants", id: repID, method: http.MethodPut, path: "/lead-details/1", body: detailBody, wantStatus: http.StatusOK},
		{
			name: "non-assignee edits detail without grants", id: outsider, method: http.MethodPut, path: "/lead-details/1", body: detailBody,
			wantStatus: http.StatusForbidden, wantMessage: "You do not have permission to update call details for this lead.",
		},
		{name: "view grant does not allow edit", id: leadViewer, method: http.MethodPut, path: "/lead-details/1", body: detailBody, wantStatus: http.StatusForbidden},
		{name: "assignee views detail", id: repID, method: http.MethodGet, path: "/lead-details/1", wantStatus: http.StatusOK},
		{name: "view grant shows any detail", id: leadViewer, method: http.MethodGet, path: "/lead-details/1", wantStatus: http.StatusOK},
		{name: "non-assignee views detail", id: outsider, method: http.MethodGet, path: "/lead-details/1", wantStatus: http.StatusForbidden},
		{name: "assignee completes detail", id: repID, method: http.MethodPatch, path: "/lead-details/1/complete", body: `{"call_followup_summary":"Spoke again"}`, wantStatus: http.StatusOK},
		{name: "non-assignee deletes detail", id: outsider, method: http.MethodDelete, path: "/lead-details/1", wantStatus: http.StatusForbidden},
		{name: "assignee deletes detail", id: repID, method: http.MethodDelete, path: "/lead-details/1", wantStatus: http.StatusOK},

		{name: "lead show needs leads view", id: repID, method: http.MethodGet, path: "/leads/1", wantStatus: http.StatusForbidden, wantMessage: "Unauthorized"},
		{name: "leads view still needs assignment", id: leadViewer, method: http.MethodGet, path: "/leads/1", wantStatus: http.StatusForbidden},
		{name: "admin shows lead", id: adminID, method: http.MethodGet, path: "/leads/1", wantStatus: http.StatusOK},
		{name: "lead details list needs leads view", id: repID, method: http.MethodGet, path: "/leads/1/details", wantStatus: http.StatusForbidden},

		{name: "user dashboard is admin only", id: repID, method: http.MethodGet, path: fmt.Sprintf("/dashboard/user/%d", repID), wantStatus: http.StatusForbidden},
		{name: "grants do not open user dashboard", id: leadViewer, method: http.MethodGet, path: fmt.Sprintf("/dashboard/user/%d", repID), wantStatus: http.StatusForbidden},
		{name: "admin opens user dashboard", id: adminID, method: http.MethodGet, path: fmt.Sprintf("/dashboard/user/%d", repID), wantStatus: http.StatusOK},
		{name: "admin dashboard of unknown user", id: adminID, method: http.MethodGet, path: "/dashboard/user/99", wantStatus: http.StatusNotFound},
		{name: "dashboard needs grant", id: repID, method: http.MethodGet, path: "/dashboard", wantStatus: http.StatusForbidden},

		{name: "caller shows own call", id: repID, method: http.MethodGet, path: "/api/call-trackings/1", wantStatus: http.StatusOK},
		{name: "stranger shows call", id: outsider, method: http.MethodGet, path: "/api/call-trackings/1", wantStatus: http.StatusForbidden},
		{name: "stranger looks up call id", id: outsider, method: http.MethodGet, path: "/api/call-trackings/call/" + seededCallID, wantStatus: http.StatusForbidden},
		{name: "stranger reads lead history", id: outsider, method: http.MethodGet, path: "/api/call-trackings/1/history", wantStatus: http.StatusForbidden},
		{name: "assignee reads lead history", id: repID, method: http.MethodGet, path: "/api/call-trackings/1/history", wantStatus: http.StatusOK},
		{name: "stranger deletes call", id: outsider, method: http.MethodDelete, path: "/api/call-trackings/1", wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			rec := s.do(t, tt.method, tt.path, s.token(t, tt.id), tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("%s %s status = %d, want %d (body %s)", tt.method, tt.path, rec.Code, tt.wantStatus, rec.Body)
			}
			if tt.wantMessage != "" {
				if got := decodeBody(t, rec)["message"]; got != tt.wantMessage {
					t.Errorf("message = %v, want %q", got, tt.wantMessage)
				}
			}
		})
	}
}

func TestDetailEditByAssigneePersists(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPut, "/lead-details/1", s.token(t, repID),
		`{"call_followup_date":"2024-03-14 10:00:00","call_followup_summary":"Rescheduled","next_call_date":"2024-03-20 11:00:00"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body)
	}

	d, ok := s.details.rows[1]
	if !ok {
		t.Fatal("lead detail 1 missing after update")
	}
	if d.CallFollowupSummary != "Rescheduled" {
		t.Errorf("CallFollowupSummary = %q, want Rescheduled", d.CallFollowupSummary)
	}
	if d.NextCallDate == nil || d.NextCallDate.In(s.loc).Hour() != 11 {
		t.Errorf("NextCallDate = %v, want 11:00 local", d.NextCallDate)
	}
}

func TestJSONCallUpdate(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPut, "/api/call-trackings/1", s.token(t, outsider), `{"call_status":"completed"}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("stranger PUT status = %d, want 403", rec.Code)
	}

	rec = s.do(t, http.MethodPut, "/api/call-trackings/1", s.token(t, repID), `{"call_status":"on_hold"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid status PUT = %d, want 422", rec.Code)
	}
	errs, _ := decodeBody(t, rec)["errors"].(map[string]any)
	if errs["call_status"] != "The selected call status is invalid." {
		t.Errorf("errors = %v", errs)
	}

	if got := s.calls.rows[1].CallStatus; got != service.CallInitiated {
		t.Fatalf("CallStatus after rejected updates = %q, want initiated", got)
	}

	rec = s.do(t, http.MethodPut, "/api/call-trackings/1", s.token(t, repID),
		`{"call_status":"completed","call_summary":"Booked a demo","call_metadata":{"network":"wifi"}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT status = %d, want 200 (body %s)", rec.Code, rec.Body)
	}

	body := decodeBody(t, rec)
	if body["message"] != "Call tracking updated" {
		t.Errorf("message = %v", body["message"])
	}
	call, _ := body["call_tracking"].(map[string]any)
	if call["call_status"] != service.CallCompleted {
		t.Errorf("call_status = %v, want completed", call["call_status"])
	}
	if _, ok := call["formatted_duration"]; !ok {
		t.Error("formatted_duration missing")
	}
	if diff := cmp.Diff(map[string]any{"sim": "1", "network": "wifi"}, call["call_metadata"]); diff != "" {
		t.Errorf("call_metadata mismatch (-want +got):\n%s", diff)
	}
	if call["lead_detail_id"] == nil {
		t.Fatal("lead_detail_id not linked")
	}

	detailID := int64(call["lead_detail_id"].(float64))
	d, ok := s.details.rows[detailID]
	if !ok {
		t.Fatalf("lead detail %d not created", detailID)
	}
	if d.CallFollowupSummary != "Booked a demo" || d.CalledAt == nil {
		t.Errorf("lead detail = %+v, want called entry with the call summary", d)
	}

	rec = s.do(t, http.MethodPut, "/api/call-trackings/1", s.token(t, repID), `{"call_status":"completed"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("second completion status = %d, want 409", rec.Code)
	}
}

func TestNotificationRoutes(t *testing.T) {
	s := newTestServer(t)
	admin, rep := s.token(t, adminID), s.token(t, repID)

	rec := s.do(t, http.MethodPost, "/api/call-notifications/notify", admin, `{"user_id":2}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("incomplete notify status = %d, want 422", rec.Code)
	}
	errs, _ := decodeBody(t, rec)["errors"].(map[string]any)
	for _, field := range []string{"lead_id", "phone_number", "call_id"} {
		if _, ok := errs[field]; !ok {
			t.Errorf("errors = %v, want a %s entry", errs, field)
		}
	}

	rec = s.do(t, http.MethodPost, "/api/call-notifications/notify", admin,
		fmt.Sprintf(`{"user_id":%d,"lead_id":1,"phone_number":"9876500001","call_id":%q}`, repID, seededCallID))
	if rec.Code != http.StatusOK {
		t.Fatalf("notify status = %d, want 200 (body %s)", rec.Code, rec.Body)
	}
	if body := decodeBody(t, rec); body["success"] != true {
		t.Errorf("success = %v, want true", body["success"])
	}

	pending := func(token string) []any {
		t.Helper()
		rec := s.do(t, http.MethodGet, "/api/call-notifications/pending", token, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("pending status = %d, want 200", rec.Code)
		}
		data, _ := decodeBody(t, rec)["data"].(map[string]any)
		items, _ := data["notifications"].([]any)
		if data["count"] != float64(len(items)) {
			t.Errorf("count = %v, want %d", data["count"], len(items))
		}
		return items
	}

	if got := pending(admin); len(got) != 0 {
		t.Errorf("admin pending = %v, want none", got)
	}
	items := pending(rep)
	if len(items) != 1 {
		t.Fatalf("rep pending = %d items, want 1", len(items))
	}
	n, _ := items[0].(map[string]any)
	if n["call_id"] != seededCallID || n["from_web"] != true {
		t.Errorf("notification = %v", n)
	}
	if got := pending(rep); len(got) != 0 {
		t.Errorf("second read = %d items, want queue cleared", len(got))
	}

	processed := func(callID string) map[string]any {
		t.Helper()
		rec := s.do(t, http.MethodPost, "/api/call-notifications/processed", rep, fmt.Sprintf(`{"call_id":%q}`, callID))
		if rec.Code != http.StatusOK {
			t.Fatalf("processed status = %d, want 200 (body %s)", rec.Code, rec.Body)
		}
		return decodeBody(t, rec)
	}
	if got := processed(seededCallID)["expired"]; got != false {
		t.Errorf("first processed expired = %v, want false", got)
	}
	if got := processed(seededCallID)["expired"]; got != true {
		t.Errorf("second processed expired = %v, want true", got)
	}

	rec = s.do(t, http.MethodPost, "/api/call-notifications/processed", rep, `{"call_id":" "}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("blank call_id status = %d, want 422", rec.Code)
	}
}
