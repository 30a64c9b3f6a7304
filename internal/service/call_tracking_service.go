package service

import (
	"context"
	"fmt"
	"io"
	"maps"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pesio-ai/be-app-crm/internal/logger"
	"github.com/pesio-ai/be-app-crm/internal/repository"
	apperrors "github.com/pesio-ai/be-app-crm/pkg/errors"
)

const (
	// MaxRecordingSize is the largest accepted audio upload
	MaxRecordingSize = 10 << 20
	callsPerPage     = 20
)

var recordingExtensions = map[string]bool{"mp3": true, "wav": true, "m4a": true}

var deviceTypes = map[string]bool{"web": true, "android": true, "ios": true}

// CallStore persists call trackings
type CallStore interface {
	Create(ctx context.Context, c *repository.CallTracking) error
	GetByID(ctx context.Context, id int64) (*repository.CallTracking, error)
	GetByCallID(ctx context.Context, callID string) (*repository.CallTracking, error)
	Update(ctx context.Context, c *repository.CallTracking) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, f repository.CallFilter, page, perPage int) ([]*repository.CallTracking, repository.Page, error)
	ListActive(ctx context.Context, userID int64) ([]*repository.CallTracking, error)
	ListByLead(ctx context.Context, leadID int64) ([]*repository.CallTracking, error)
	Stats(ctx context.Context, userID int64, from, to *time.Time) (*repository.CallStats, error)
}

// RecordingStore keeps uploaded audio
type RecordingStore interface {
	Save(name string, body io.Reader) (string, error)
	Delete(stored string) error
}

// CallTrackingService runs the call lifecycle
type CallTrackingService struct {
	calls      CallStore
	leads      LeadStore
	details    DetailStore
	recordings RecordingStore
	log        *logger.Logger
	now        func() time.Time
	newCallID  func() string
}

func NewCallTrackingService(
	calls CallStore,
	leads LeadStore,
	details DetailStore,
	recordings RecordingStore,
	log *logger.Logger,
) *CallTrackingService {
	return &CallTrackingService{
		calls:      calls,
		leads:      leads,
		details:    details,
		recordings: recordings,
		log:        log,
		now:        time.Now,
		newCallID:  uuid.NewString,
	}
}

type CreateCallRequest struct {
	LeadID       int64          `json:"lead_id"`
	PhoneNumber  string         `json:"phone_number"`
	DeviceType   string         `json:"device_type"`
	DeviceID     *string        `json:"device_id"`
	IsAutoDialed bool           `json:"is_auto_dialed"`
	LeadDetailID *int64         `json:"lead_detail_id"`
	Metadata     map[string]any `json:"metadata"`
}

// Upload is an audio file received with a call update
type Upload struct {
	Filename string
	Size     int64
	Body     io.Reader
}

// UpdateCallRequest carries the optional parts of a call update. Nil fields
// were not sent.
type UpdateCallRequest struct {
	Status       *string
	Summary      *string
	NextCallDate *time.Time
	Recording    *Upload
	Metadata     map[string]any
}

// LeadCallHistory is a lead's calls with completion totals
type LeadCallHistory struct {
	Lead           *repository.Lead           `json:"lead"`
	CallHistory    []*repository.CallTracking `json:"call_history"`
	TotalCalls     int                        `json:"total_calls"`
	CompletedCalls int                        `json:"completed_calls"`
	TotalDuration  int64                      `json:"total_duration"`
}

// Create starts tracking a new call on a lead assigned to the actor
func (s *CallTrackingService) Create(ctx context.Context, actor *Actor, req *CreateCallRequest) (*repository.CallTracking, error) {
	fields := map[string]string{}
	if req.LeadID == 0 {
		fields["lead_id"] = "The lead id field is required."
	}
	if strings.TrimSpace(req.PhoneNumber) == "" {
		fields["phone_number"] = "The phone number field is required."
	}
	if req.DeviceType == "" {
		req.DeviceType = "web"
	}
	if !deviceTypes[req.DeviceType] {
		fields["device_type"] = "The selected device type is invalid."
	}
	if len(fields) > 0 {
		return nil, apperrors.Validation(fields)
	}

	lead, err := s.leads.GetByID(ctx, req.LeadID)
	if err != nil {
		return nil, err
	}
	if err := Authorize(actor, PolicyLeadAccess, lead.AssignedUserID); err != nil {
		return nil, err
	}

	metadata := req.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	call := &repository.CallTracking{
		LeadID:       lead.ID,
		UserID:       actor.ID,
		LeadDetailID: req.LeadDetailID,
		PhoneNumber:  req.PhoneNumber,
		CallID:       s.newCallID(),
		CallStatus:   CallInitiated,
		CallMetadata: metadata,
		DeviceType:   req.DeviceType,
		DeviceID:     req.DeviceID,
		IsAutoDialed: req.IsAutoDialed,
	}

	if err := s.calls.Create(ctx, call); err != nil {
		s.log.Error().Err(err).Int64("lead_id", lead.ID).Msg("Failed to create call tracking")
		return nil, err
	}

	s.log.Info().
		Int64("call_tracking_id", call.ID).
		Str("call_id", call.CallID).
		Int64("lead_id", lead.ID).
		Int64("user_id", actor.ID).
		Msg("Call tracking initiated")

	return call, nil
}

// Show returns a call owned by the actor
func (s *CallTrackingService) Show(ctx context.Context, actor *Actor, id int64) (*repository.CallTracking, error) {
	call, err := s.calls.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := Authorize(actor, PolicyCallOwner, call.UserID); err != nil {
		return nil, err
	}
	return call, nil
}

// ShowByCallID returns a call by correlation id
func (s *CallTrackingService) ShowByCallID(ctx context.Context, actor *Actor, callID string) (*repository.CallTracking, error) {
	call, err := s.calls.GetByCallID(ctx, callID)
	if err != nil {
		return nil, err
	}
	if err := Authorize(actor, PolicyCallOwner, call.UserID); err != nil {
		return nil, err
	}
	return call, nil
}

// Update applies a status transition, recording upload, metadata merge and
// summary edit. Everything is validated before anything is written.
func (s *CallTrackingService) Update(ctx context.Context, actor *Actor, id int64, req *UpdateCallRequest) (*repository.CallTracking, error) {
	call, err := s.calls.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := Authorize(actor, PolicyCallOwner, call.UserID); err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.validateUpdate(req, now); err != nil {
		return nil, err
	}

	var kind TransitionKind
	if req.Status != nil {
		kind = TransitionFor(*req.Status)
		if err := checkTransition(call, kind, *req.Status); err != nil {
			return nil, err
		}
	}

	var stored string
	if req.Recording != nil {
		ext := recordingExtension(req.Recording.Filename)
		name := fmt.Sprintf("call_%s_%d.%s", call.CallID, now.Unix(), ext)
		stored, err = s.recordings.Save(name, req.Recording.Body)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to store recording")
		}
		call.AudioRecordingPath = &stored
	}

	if req.Status != nil {
		if err := s.transition(ctx, call, kind, *req.Status, req, now); err != nil {
			s.discardRecording(stored)
			return nil, err
		}
	} else if req.Summary != nil {
		call.CallSummary = req.Summary
	}

	if req.Metadata != nil {
		merged := make(map[string]any, len(call.CallMetadata)+len(req.Metadata))
		maps.Copy(merged, call.CallMetadata)
		maps.Copy(merged, req.Metadata)
		call.CallMetadata = merged
	}

	if err := s.calls.Update(ctx, call); err != nil {
		s.log.Error().Err(err).Int64("call_tracking_id", call.ID).Msg("Failed to update call tracking")
		s.discardRecording(stored)
		return nil, err
	}

	s.log.Info().
		Int64("call_tracking_id", call.ID).
		Str("call_status", call.CallStatus).
		Str("transition", kind.String()).
		Msg("Call tracking updated")

	return call, nil
}

// discardRecording removes a recording saved by an update that then failed
func (s *CallTrackingService) discardRecording(stored string) {
	if stored == "" {
		return
	}
	if err := s.recordings.Delete(stored); err != nil {
		s.log.Warn().Err(err).Str("path", stored).Msg("Failed to remove orphaned recording")
	}
}

func (s *CallTrackingService) validateUpdate(req *UpdateCallRequest, now time.Time) error {
	fields := map[string]string{}
	if req.Status != nil && !ValidCallStatus(*req.Status) {
		fields["call_status"] = "The selected call status is invalid."
	}
	if req.NextCallDate != nil && !req.NextCallDate.After(now) {
		fields["next_call_date"] = "The next call date must be a date after now."
	}
	if r := req.Recording; r != nil {
		if !recordingExtensions[recordingExtension(r.Filename)] {
			fields["audio_recording"] = "The audio recording must be a file of type: mp3, wav, m4a."
		} else if r.Size > MaxRecordingSize {
			fields["audio_recording"] = "The audio recording may not be greater than 10240 kilobytes."
		}
	}
	if len(fields) > 0 {
		return apperrors.Validation(fields)
	}
	return nil
}

func (s *CallTrackingService) transition(
	ctx context.Context,
	call *repository.CallTracking,
	kind TransitionKind,
	status string,
	req *UpdateCallRequest,
	now time.Time,
) error {
	switch kind {
	case TransitionStart:
		markStarted(call, now)
	case TransitionAnswer:
		markAnswered(call)
	case TransitionComplete:
		return s.complete(ctx, call, req.Summary, req.NextCallDate, now)
	case TransitionTerminate:
		markCancelled(call, status, now)
	case TransitionRaw:
		call.CallStatus = status
	}
	return nil
}

// complete ends the call and records the follow-up it produced, owned by the
// caller. An empty summary keeps the summary already on the call.
func (s *CallTrackingService) complete(
	ctx context.Context,
	call *repository.CallTracking,
	summary *string,
	next *time.Time,
	now time.Time,
) error {
	if summary != nil && *summary != "" {
		call.CallSummary = summary
	}
	markEnded(call, CallCompleted, now)

	followup := ""
	if call.CallSummary != nil {
		followup = *call.CallSummary
	}

	calledAt := now
	detail := &repository.LeadDetail{
		LeadID:              call.LeadID,
		CallFollowupDate:    now,
		CallFollowupSummary: followup,
		NextCallDate:        next,
		CalledAt:            &calledAt,
		CreatedBy:           &call.UserID,
		AssignedTo:          &call.UserID,
	}
	if err := s.details.Create(ctx, detail); err != nil {
		s.log.Error().Err(err).Int64("call_tracking_id", call.ID).Msg("Failed to create lead detail for completed call")
		return err
	}

	call.LeadDetailID = &detail.ID

	s.log.Info().
		Int64("call_tracking_id", call.ID).
		Int64("lead_detail_id", detail.ID).
		Int64("duration_seconds", call.CallDurationSeconds).
		Msg("Call completed")

	return nil
}

// Delete removes a call and its recording
func (s *CallTrackingService) Delete(ctx context.Context, actor *Actor, id int64) error {
	call, err := s.calls.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := Authorize(actor, PolicyCallOwner, call.UserID); err != nil {
		return err
	}

	if call.AudioRecordingPath != nil && *call.AudioRecordingPath != "" {
		if err := s.recordings.Delete(*call.AudioRecordingPath); err != nil {
			s.log.Warn().Err(err).Str("path", *call.AudioRecordingPath).Msg("Failed to delete recording")
		}
	}

	if err := s.calls.Delete(ctx, id); err != nil {
		return err
	}

	s.log.Info().Int64("call_tracking_id", id).Msg("Call tracking deleted")
	return nil
}

// List pages through calls. Non-admins only see their own.
func (s *CallTrackingService) List(ctx context.Context, actor *Actor, f repository.CallFilter, page int) ([]*repository.CallTracking, repository.Page, error) {
	if !actor.IsAdmin() {
		f.UserID = actor.ID
	}
	return s.calls.List(ctx, f, page, callsPerPage)
}

// Active lists calls in progress
func (s *CallTrackingService) Active(ctx context.Context, actor *Actor) ([]*repository.CallTracking, error) {
	return s.calls.ListActive(ctx, actor.scope())
}

// Stats aggregates the actor's calls, or everyone's for admins
func (s *CallTrackingService) Stats(ctx context.Context, actor *Actor, from, to *time.Time) (*repository.CallStats, error) {
	return s.calls.Stats(ctx, actor.scope(), from, to)
}

// History lists a lead's calls
func (s *CallTrackingService) History(ctx context.Context, actor *Actor, leadID int64) (*LeadCallHistory, error) {
	lead, err := s.leads.GetByID(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if err := Authorize(actor, PolicyLeadAccess, lead.AssignedUserID); err != nil {
		return nil, err
	}

	calls, err := s.calls.ListByLead(ctx, leadID)
	if err != nil {
		return nil, err
	}

	h := &LeadCallHistory{Lead: lead, CallHistory: calls, TotalCalls: len(calls)}
	for _, c := range calls {
		if c.CallStatus == CallCompleted {
			h.CompletedCalls++
			h.TotalDuration += c.CallDurationSeconds
		}
	}
	return h, nil
}

func recordingExtension(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}
