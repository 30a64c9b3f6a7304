package handler

import (
	"net/http"

	"github.com/pesio-ai/be-app-crm/internal/service"
)

// ListLeads handles GET /leads
func (h *HTTPHandler) ListLeads(w http.ResponseWriter, r *http.Request) {
	leads, err := h.svc.Leads.Index(r.Context(), ActorFrom(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"leads": leads})
}

// CreateLead handles POST /leads
func (h *HTTPHandler) CreateLead(w http.ResponseWriter, r *http.Request) {
	var in service.LeadInput
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}

	lead, err := h.svc.Leads.Store(r.Context(), ActorFrom(r.Context()), &in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"message": "Lead created successfully.", "lead": lead})
}

// ShowLead handles GET /leads/{id}
func (h *HTTPHandler) ShowLead(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	lead, err := h.svc.Leads.Show(r.Context(), ActorFrom(r.Context()), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

// LeadDetails handles GET /leads/{id}/details
func (h *HTTPHandler) LeadDetails(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	details, err := h.svc.Leads.Details(r.Context(), ActorFrom(r.Context()), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"lead_details": details})
}

// UpdateLead handles PUT /leads/{id}
func (h *HTTPHandler) UpdateLead(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var in service.LeadInput
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}

	lead, err := h.svc.Leads.Update(r.Context(), ActorFrom(r.Context()), id, &in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Lead updated successfully.", "lead": lead})
}

// DeleteLead handles DELETE /leads/{id}
func (h *HTTPHandler) DeleteLead(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.svc.Leads.Destroy(r.Context(), ActorFrom(r.Context()), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Lead deleted successfully."})
}

type detailBody struct {
	LeadID              int64  `json:"lead_id"`
	CallFollowupDate    string `json:"call_followup_date"`
	CallFollowupSummary string `json:"call_followup_summary"`
	NextCallDate        string `json:"next_call_date"`
}

func (h *HTTPHandler) detailInput(r *http.Request) (*service.DetailInput, error) {
	var body detailBody
	if err := decodeJSON(r, &body); err != nil {
		return nil, err
	}

	followup, err := h.parseDate("call_followup_date", body.CallFollowupDate)
	if err != nil {
		return nil, err
	}
	next, err := h.parseDate("next_call_date", body.NextCallDate)
	if err != nil {
		return nil, err
	}

	return &service.DetailInput{
		LeadID:              body.LeadID,
		CallFollowupDate:    followup,
		CallFollowupSummary: body.CallFollowupSummary,
		NextCallDate:        next,
	}, nil
}

// CreateLeadDetail handles POST /lead-details
func (h *HTTPHandler) CreateLeadDetail(w http.ResponseWriter, r *http.Request) {
	in, err := h.detailInput(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	d, err := h.svc.LeadDetails.Store(r.Context(), ActorFrom(r.Context()), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Call details added successfully.", "lead_detail": d})
}

// ShowLeadDetail handles GET /lead-details/{id}
func (h *HTTPHandler) ShowLeadDetail(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	d, err := h.svc.LeadDetails.Show(r.Context(), ActorFrom(r.Context()), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// UpdateLeadDetail handles PUT /lead-details/{id}
func (h *HTTPHandler) UpdateLeadDetail(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	in, err := h.detailInput(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	d, err := h.svc.LeadDetails.Update(r.Context(), ActorFrom(r.Context()), id, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Call details updated successfully.", "lead_detail": d})
}

// CompleteLeadDetail handles PATCH /lead-details/{id}/complete
func (h *HTTPHandler) CompleteLeadDetail(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var body struct {
		CallFollowupSummary string `json:"call_followup_summary"`
		NextCallDate        string `json:"next_call_date"`
	}
	if err := decodeJSON(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	next, err := h.parseDate("next_call_date", body.NextCallDate)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	d, err := h.svc.LeadDetails.Complete(r.Context(), ActorFrom(r.Context()), id, &service.CompleteInput{
		CallFollowupSummary: body.CallFollowupSummary,
		NextCallDate:        next,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Call marked as completed.", "lead_detail": d})
}

// DeleteLeadDetail handles DELETE /lead-details/{id}
func (h *HTTPHandler) DeleteLeadDetail(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.svc.LeadDetails.Destroy(r.Context(), ActorFrom(r.Context()), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Call details deleted successfully."})
}

// CallLog handles GET /call-log and its /call-logs alias
func (h *HTTPHandler) CallLog(w http.ResponseWriter, r *http.Request) {
	items, page, err := h.svc.LeadDetails.CallLog(r.Context(), ActorFrom(r.Context()), queryPage(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, paginated{Data: items, Page: page})
}
