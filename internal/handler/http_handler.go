package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pesio-ai/be-app-crm/internal/logger"
	"github.com/pesio-ai/be-app-crm/internal/repository"
	"github.com/pesio-ai/be-app-crm/internal/service"
	apperrors "github.com/pesio-ai/be-app-crm/pkg/errors"
)

const maxJSONBody = 1 << 20

// Services bundles the business services the HTTP API exposes
type Services struct {
	Auth          *service.AuthService
	Users         *service.UserService
	Leads         *service.LeadService
	LeadDetails   *service.LeadDetailService
	Calls         *service.CallTrackingService
	Notifications *service.NotificationService
	Dashboard     *service.DashboardService
	Catalogs      map[string]*service.CatalogService
}

// HTTPHandler handles HTTP requests
type HTTPHandler struct {
	svc Services
	loc *time.Location
	log *logger.Logger
}

// NewHTTPHandler creates a new HTTP handler. Dates sent without a zone are
// read in loc.
func NewHTTPHandler(svc Services, loc *time.Location, log *logger.Logger) *HTTPHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &HTTPHandler{
		svc: svc,
		loc: loc,
		log: log,
	}
}

// Routes builds the API router
func (h *HTTPHandler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", h.Health)

	mux.HandleFunc("POST /api/auth/login", h.Login)
	mux.HandleFunc("POST /api/auth/refresh", h.Refresh)
	mux.Handle("GET /api/auth/me", h.authed(h.Me))

	mux.Handle("GET /api/call-trackings", h.authed(h.ListCalls))
	mux.Handle("POST /api/call-trackings", h.authed(h.CreateCall))
	mux.Handle("GET /api/call-trackings/active", h.authed(h.ActiveCalls))
	mux.Handle("GET /api/call-trackings/stats", h.authed(h.CallStats))
	mux.Handle("GET /api/call-trackings/call/{call_id}", h.authed(h.ShowCallByCallID))
	mux.Handle("GET /api/call-trackings/{id}", h.authed(h.ShowCall))
	mux.Handle("PUT /api/call-trackings/{id}", h.authed(h.UpdateCall))
	mux.Handle("DELETE /api/call-trackings/{id}", h.authed(h.DeleteCall))
	// call/{call_id} is more specific, so this only sees lead sub-resources
	mux.Handle("GET /api/call-trackings/{id}/{resource}", h.authed(h.LeadCallHistory))

	mux.Handle("POST /api/call-notifications/notify", h.authed(h.Notify))
	mux.Handle("GET /api/call-notifications/pending", h.authed(h.PendingNotifications))
	mux.Handle("POST /api/call-notifications/processed", h.authed(h.NotificationProcessed))

	mux.Handle("GET /leads", h.authed(h.grant(service.ModuleLeads, service.ActionView, h.ListLeads)))
	mux.Handle("POST /leads", h.authed(h.grant(service.ModuleLeads, service.ActionCreate, h.CreateLead)))
	mux.Handle("GET /leads/{id}", h.authed(h.grant(service.ModuleLeads, service.ActionView, h.ShowLead)))
	mux.Handle("GET /leads/{id}/details", h.authed(h.grant(service.ModuleLeads, service.ActionView, h.LeadDetails)))
	mux.Handle("PUT /leads/{id}", h.authed(h.grant(service.ModuleLeads, service.ActionEdit, h.UpdateLead)))
	mux.Handle("DELETE /leads/{id}", h.authed(h.grant(service.ModuleLeads, service.ActionDelete, h.DeleteLead)))

	mux.Handle("POST /lead-details", h.authed(h.CreateLeadDetail))
	mux.Handle("GET /lead-details/{id}", h.authed(h.ShowLeadDetail))
	mux.Handle("PUT /lead-details/{id}", h.authed(h.UpdateLeadDetail))
	mux.Handle("PATCH /lead-details/{id}/complete", h.authed(h.CompleteLeadDetail))
	mux.Handle("DELETE /lead-details/{id}", h.authed(h.DeleteLeadDetail))
	mux.Handle("GET /call-log", h.authed(h.grant(service.ModuleLeadDetails, service.ActionView, h.CallLog)))
	mux.Handle("GET /call-logs", h.authed(h.grant(service.ModuleLeads, service.ActionView, h.CallLog)))

	for _, module := range []string{service.ModuleServices, service.ModuleStatuses} {
		h.catalogRoutes(mux, module)
	}

	mux.Handle("GET /users", h.authed(h.grant(service.ModuleUsers, service.ActionView, h.ListUsers)))
	mux.Handle("POST /users", h.authed(h.grant(service.ModuleUsers, service.ActionCreate, h.CreateUser)))
	mux.Handle("GET /users/{id}", h.authed(h.grant(service.ModuleUsers, service.ActionView, h.ShowUser)))
	mux.Handle("PUT /users/{id}", h.authed(h.grant(service.ModuleUsers, service.ActionEdit, h.UpdateUser)))
	mux.Handle("DELETE /users/{id}", h.authed(h.grant(service.ModuleUsers, service.ActionDelete, h.DeleteUser)))
	mux.Handle("GET /permissions", h.authed(h.grant(service.ModuleUsers, service.ActionView, h.ListPermissions)))

	mux.Handle("GET /dashboard", h.authed(h.grant(service.ModuleDashboard, service.ActionView, h.Dashboard)))
	mux.Handle("GET /dashboard/user/{user}", h.authed(h.DashboardForUser))

	return h.logRequests(mux)
}

// Health reports liveness
func (h *HTTPHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// paginated is a page of rows with its metadata
type paginated struct {
	Data any `json:"data"`
	repository.Page
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}

type errorResponse struct {
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// writeError maps a coded error to its status. Uncoded errors are internal
// and their details are only logged.
func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperrors.Error
	if !apperrors.As(err, &appErr) {
		appErr = apperrors.Internal("Internal server error", err)
	}

	status := appErr.HTTPStatus()
	resp := errorResponse{Message: appErr.Message, Errors: appErr.Fields}
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("Request failed")
		resp = errorResponse{Message: "Internal server error"}
	}

	writeJSON(w, status, resp)
}

// decodeJSON reads a JSON body into dst
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.Validation(map[string]string{"body": "The request body is required."})
		}
		return apperrors.Validation(map[string]string{"body": "The request body must be valid JSON."})
	}
	return nil
}

// pathID parses a numeric path value
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NotFound("resource", r.PathValue(name))
	}
	return id, nil
}

// queryInt parses an optional integer query parameter
func queryInt(r *http.Request, name string) (int64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, apperrors.Validation(map[string]string{name: "The " + name + " must be an integer."})
	}
	return n, nil
}

func queryPage(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

var dateLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04", time.DateOnly}

// parseDate reads a timestamp or calendar date. Empty input yields nil.
func (h *HTTPHandler) parseDate(field, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, value, h.loc); err == nil {
			return &t, nil
		}
	}
	return nil, apperrors.Validation(map[string]string{field: "The " + strings.ReplaceAll(field, "_", " ") + " is not a valid date."})
}
