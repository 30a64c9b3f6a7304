package handler

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/pesio-ai/be-app-crm/internal/repository"
	"github.com/pesio-ai/be-app-crm/internal/service"
	apperrors "github.com/pesio-ai/be-app-crm/pkg/errors"
)

// multipart bodies carry the recording plus a few small fields
const maxMultipartMemory = 1 << 20

// callView adds the display duration to a call
type callView struct {
	*repository.CallTracking
	FormattedDuration string `json:"formatted_duration"`
}

func presentCall(c *repository.CallTracking) callView {
	return callView{CallTracking: c, FormattedDuration: service.FormatDuration(c.CallDurationSeconds)}
}

func presentCalls(calls []*repository.CallTracking) []callView {
	out := make([]callView, len(calls))
	for i, c := range calls {
		out[i] = presentCall(c)
	}
	return out
}

// ListCalls handles GET /api/call-trackings
func (h *HTTPHandler) ListCalls(w http.ResponseWriter, r *http.Request) {
	leadID, err := queryInt(r, "lead_id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	f := repository.CallFilter{LeadID: leadID, Status: r.URL.Query().Get("status")}
	calls, page, err := h.svc.Calls.List(r.Context(), ActorFrom(r.Context()), f, queryPage(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, paginated{Data: presentCalls(calls), Page: page})
}

// CreateCall handles POST /api/call-trackings
func (h *HTTPHandler) CreateCall(w http.ResponseWriter, r *http.Request) {
	var req service.CreateCallRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	call, err := h.svc.Calls.Create(r.Context(), ActorFrom(r.Context()), &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message":       "Call tracking initiated",
		"call_tracking": presentCall(call),
		"call_id":       call.CallID,
	})
}

// ShowCall handles GET /api/call-trackings/{id}
func (h *HTTPHandler) ShowCall(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	call, err := h.svc.Calls.Show(r.Context(), ActorFrom(r.Context()), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, presentCall(call))
}

// ShowCallByCallID handles GET /api/call-trackings/call/{call_id}
func (h *HTTPHandler) ShowCallByCallID(w http.ResponseWriter, r *http.Request) {
	call, err := h.svc.Calls.ShowByCallID(r.Context(), ActorFrom(r.Context()), r.PathValue("call_id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, presentCall(call))
}

// UpdateCall handles PUT /api/call-trackings/{id}. The body is JSON, or
// multipart when an audio recording is attached.
func (h *HTTPHandler) UpdateCall(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req *service.UpdateCallRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		req, err = h.multipartCallUpdate(w, r)
		if r.MultipartForm != nil {
			defer r.MultipartForm.RemoveAll()
		}
	} else {
		req, err = h.jsonCallUpdate(r)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Recording != nil {
		if c, ok := req.Recording.Body.(io.Closer); ok {
			defer c.Close()
		}
	}

	call, err := h.svc.Calls.Update(r.Context(), ActorFrom(r.Context()), id, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":       "Call tracking updated",
		"call_tracking": presentCall(call),
	})
}

func (h *HTTPHandler) jsonCallUpdate(r *http.Request) (*service.UpdateCallRequest, error) {
	var body struct {
		CallStatus   *string        `json:"call_status"`
		CallSummary  *string        `json:"call_summary"`
		NextCallDate string         `json:"next_call_date"`
		CallMetadata map[string]any `json:"call_metadata"`
	}
	if err := decodeJSON(r, &body); err != nil {
		return nil, err
	}

	next, err := h.parseDate("next_call_date", body.NextCallDate)
	if err != nil {
		return nil, err
	}

	return &service.UpdateCallRequest{
		Status:       body.CallStatus,
		Summary:      body.CallSummary,
		NextCallDate: next,
		Metadata:     body.CallMetadata,
	}, nil
}

func (h *HTTPHandler) multipartCallUpdate(w http.ResponseWriter, r *http.Request) (*service.UpdateCallRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, service.MaxRecordingSize+maxMultipartMemory)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return nil, apperrors.Validation(map[string]string{
			"audio_recording": "The audio recording may not be greater than 10240 kilobytes.",
		})
	}

	req := &service.UpdateCallRequest{}
	form := r.MultipartForm.Value
	if v, ok := form["call_status"]; ok && len(v) > 0 {
		req.Status = &v[0]
	}
	if v, ok := form["call_summary"]; ok && len(v) > 0 {
		req.Summary = &v[0]
	}

	next, err := h.parseDate("next_call_date", r.FormValue("next_call_date"))
	if err != nil {
		return nil, err
	}
	req.NextCallDate = next

	metadata, err := formMetadata(form)
	if err != nil {
		return nil, err
	}
	req.Metadata = metadata

	if file, header, err := r.FormFile("audio_recording"); err == nil {
		req.Recording = &service.Upload{Filename: header.Filename, Size: header.Size, Body: file}
	} else if !errors.Is(err, http.ErrMissingFile) {
		return nil, apperrors.Validation(map[string]string{"audio_recording": "The audio recording failed to upload."})
	}

	return req, nil
}

// formMetadata reads call_metadata as a JSON object or as call_metadata[key]
// form fields.
func formMetadata(form map[string][]string) (map[string]any, error) {
	if v, ok := form["call_metadata"]; ok && len(v) > 0 {
		var m map[string]any
		if err := json.Unmarshal([]byte(v[0]), &m); err != nil {
			return nil, apperrors.Validation(map[string]string{"call_metadata": "The call metadata must be an array."})
		}
		return m, nil
	}

	var m map[string]any
	for key, values := range form {
		name, ok := strings.CutPrefix(key, "call_metadata[")
		if !ok || !strings.HasSuffix(name, "]") || len(values) == 0 {
			continue
		}
		if m == nil {
			m = map[string]any{}
		}
		m[strings.TrimSuffix(name, "]")] = values[0]
	}
	return m, nil
}

// DeleteCall handles DELETE /api/call-trackings/{id}
func (h *HTTPHandler) DeleteCall(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.svc.Calls.Delete(r.Context(), ActorFrom(r.Context()), id); err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Call tracking deleted"})
}

// ActiveCalls handles GET /api/call-trackings/active
func (h *HTTPHandler) ActiveCalls(w http.ResponseWriter, r *http.Request) {
	calls, err := h.svc.Calls.Active(r.Context(), ActorFrom(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, presentCalls(calls))
}

// CallStats handles GET /api/call-trackings/stats
func (h *HTTPHandler) CallStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := h.parseDate("date_from", q.Get("date_from"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	to, err := h.parseDate("date_to", q.Get("date_to"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	stats, err := h.svc.Calls.Stats(r.Context(), ActorFrom(r.Context()), from, to)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// LeadCallHistory handles GET /api/call-trackings/{lead_id}/history
func (h *HTTPHandler) LeadCallHistory(w http.ResponseWriter, r *http.Request) {
	if r.PathValue("resource") != "history" {
		http.NotFound(w, r)
		return
	}

	leadID, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	history, err := h.svc.Calls.History(r.Context(), ActorFrom(r.Context()), leadID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"lead":            history.Lead,
		"call_history":    presentCalls(history.CallHistory),
		"total_calls":     history.TotalCalls,
		"completed_calls": history.CompletedCalls,
		"total_duration":  history.TotalDuration,
	})
}
