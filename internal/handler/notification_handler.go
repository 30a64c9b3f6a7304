package handler

import (
	"net/http"

	"github.com/pesio-ai/be-app-crm/internal/service"
)

// Notify handles POST /api/call-notifications/notify
func (h *HTTPHandler) Notify(w http.ResponseWriter, r *http.Request) {
	var req service.NotifyRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	n, err := h.svc.Notifications.Notify(r.Context(), ActorFrom(r.Context()), &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Call notification sent to Android app",
		"data":    n,
	})
}

// PendingNotifications handles GET /api/call-notifications/pending. Reading
// clears the caller's queue.
func (h *HTTPHandler) PendingNotifications(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.Notifications.Pending(r.Context(), ActorFrom(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data": map[string]any{
			"notifications": items,
			"count":         len(items),
		},
	})
}

// NotificationProcessed handles POST /api/call-notifications/processed
func (h *HTTPHandler) NotificationProcessed(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CallID string `json:"call_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	live, err := h.svc.Notifications.Processed(r.Context(), ActorFrom(r.Context()), req.CallID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Notification marked as processed",
		"expired": !live,
	})
}
