package service

import (
	"fmt"
	"time"

	"github.com/pesio-ai/be-app-crm/internal/repository"
	apperrors "github.com/pesio-ai/be-app-crm/pkg/errors"
)

// Call statuses
const (
	CallInitiated = "initiated"
	CallRinging   = "ringing"
	CallAnswered  = "answered"
	CallCompleted = "completed"
	CallCancelled = "cancelled"
	CallFailed    = "failed"
	CallBusy      = "busy"
	CallNoAnswer  = "no_answer"
)

// CallStatuses lists every status a call may hold
var CallStatuses = []string{
	CallInitiated, CallRinging, CallAnswered, CallCompleted,
	CallCancelled, CallFailed, CallBusy, CallNoAnswer,
}

func ValidCallStatus(status string) bool {
	for _, s := range CallStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// IsTerminalStatus reports whether a call in this status has ended
func IsTerminalStatus(status string) bool {
	switch status {
	case CallCompleted, CallCancelled, CallFailed, CallBusy, CallNoAnswer:
		return true
	}
	return false
}

// TransitionKind is the operation a requested status maps to
type TransitionKind int

const (
	// TransitionRaw writes the status without side effects
	TransitionRaw TransitionKind = iota
	// TransitionStart stamps call_started_at
	TransitionStart
	// TransitionAnswer changes the status only
	TransitionAnswer
	// TransitionComplete ends the call and produces a lead detail
	TransitionComplete
	// TransitionTerminate ends the call without a lead detail
	TransitionTerminate
)

func (k TransitionKind) String() string {
	switch k {
	case TransitionStart:
		return "start"
	case TransitionAnswer:
		return "answer"
	case TransitionComplete:
		return "complete"
	case TransitionTerminate:
		return "terminate"
	default:
		return "raw"
	}
}

// TransitionFor maps a requested status to its operation
func TransitionFor(status string) TransitionKind {
	switch status {
	case CallRinging:
		return TransitionStart
	case CallAnswered:
		return TransitionAnswer
	case CallCompleted:
		return TransitionComplete
	case CallCancelled, CallFailed, CallBusy, CallNoAnswer:
		return TransitionTerminate
	default:
		return TransitionRaw
	}
}

// checkTransition rejects moves the state machine does not allow. Semantic
// transitions only leave non-terminal states. A raw write may go anywhere
// except out of completed, whose lead detail link is final. Cancelled, failed,
// busy and no_answer are therefore terminal only for semantic transitions; a
// raw write back to initiated reopens such a call.
func checkTransition(c *repository.CallTracking, kind TransitionKind, target string) error {
	if !ValidCallStatus(target) {
		return apperrors.Validation(map[string]string{"call_status": "The selected call status is invalid."})
	}

	if kind == TransitionRaw {
		if c.CallStatus == CallCompleted && target != CallCompleted {
			return apperrors.Conflict("a completed call cannot change status")
		}
		return nil
	}

	if IsTerminalStatus(c.CallStatus) {
		return apperrors.Conflict(fmt.Sprintf("call is already %s", c.CallStatus))
	}
	return nil
}

func markStarted(c *repository.CallTracking, now time.Time) {
	c.CallStatus = CallRinging
	c.CallStartedAt = &now
}

func markAnswered(c *repository.CallTracking) {
	c.CallStatus = CallAnswered
}

// markEnded stamps the end time and derives the duration
func markEnded(c *repository.CallTracking, status string, now time.Time) {
	c.CallEndedAt = &now
	c.CallStatus = status
	c.CallDurationSeconds = callDuration(c.CallStartedAt, c.CallEndedAt)
}

// markCancelled stamps cancelled then applies the requested terminal status
func markCancelled(c *repository.CallTracking, status string, now time.Time) {
	markEnded(c, CallCancelled, now)
	c.CallStatus = status
}

// callDuration is ended - started in whole seconds, or 0 unless both are set
func callDuration(started, ended *time.Time) int64 {
	if started == nil || ended == nil {
		return 0
	}
	d := int64(ended.Sub(*started) / time.Second)
	if d < 0 {
		return 0
	}
	return d
}

// IsActiveCall reports a call that has started and not ended
func IsActiveCall(c *repository.CallTracking) bool {
	switch c.CallStatus {
	case CallInitiated, CallRinging, CallAnswered:
		return c.CallStartedAt != nil && c.CallEndedAt == nil
	}
	return false
}

// FormatDuration renders seconds as HH:MM:SS from one hour up, MM:SS below.
func FormatDuration(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
