package handler

import "net/http"

// Dashboard handles GET /dashboard
func (h *HTTPHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Dashboard.Overview(r.Context(), ActorFrom(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// DashboardForUser handles GET /dashboard/user/{user}. The service decides
// whether the actor may see another assignee's buckets.
func (h *HTTPHandler) DashboardForUser(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "user")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	d, err := h.svc.Dashboard.ForUser(r.Context(), ActorFrom(r.Context()), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}
