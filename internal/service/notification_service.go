package service

import (
	"context"
	"strings"
	"time"

	"github.com/pesio-ai/be-app-crm/internal/logger"
	"github.com/pesio-ai/be-app-crm/internal/notify"
	apperrors "github.com/pesio-ai/be-app-crm/pkg/errors"
)

// NotificationService pushes call requests to the mobile app
type NotificationService struct {
	store notify.Store
	log   *logger.Logger
	now   func() time.Time
}

func NewNotificationService(store notify.Store, log *logger.Logger) *NotificationService {
	return &NotificationService{
		store: store,
		log:   log,
		now:   time.Now,
	}
}

type NotifyRequest struct {
	UserID      int64  `json:"user_id"`
	LeadID      int64  `json:"lead_id"`
	PhoneNumber string `json:"phone_number"`
	CallID      string `json:"call_id"`
}

// Notify queues a call request for the target user's phone
func (s *NotificationService) Notify(ctx context.Context, actor *Actor, req *NotifyRequest) (*notify.Notification, error) {
	fields := map[string]string{}
	if req.UserID == 0 {
		fields["user_id"] = "The user id field is required."
	}
	if req.LeadID == 0 {
		fields["lead_id"] = "The lead id field is required."
	}
	if strings.TrimSpace(req.PhoneNumber) == "" {
		fields["phone_number"] = "The phone number field is required."
	}
	if strings.TrimSpace(req.CallID) == "" {
		fields["call_id"] = "The call id field is required."
	}
	if len(fields) > 0 {
		return nil, apperrors.Validation(fields)
	}

	n := notify.Notification{
		UserID:      req.UserID,
		LeadID:      req.LeadID,
		PhoneNumber: req.PhoneNumber,
		CallID:      req.CallID,
		Timestamp:   s.now().UTC(),
		FromWeb:     true,
	}
	if err := s.store.Put(ctx, n); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to queue notification")
	}

	s.log.Info().
		Int64("user_id", n.UserID).
		Str("call_id", n.CallID).
		Str("phone_number", n.PhoneNumber).
		Int64("sent_by", actor.ID).
		Msg("Call notification sent to Android app")

	return &n, nil
}

// Pending returns and clears the actor's queue
func (s *NotificationService) Pending(ctx context.Context, actor *Actor) ([]notify.Notification, error) {
	items, err := s.store.Drain(ctx, actor.ID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to read notifications")
	}
	return items, nil
}

// Processed evicts one of the actor's notifications and reports whether it
// was still live.
func (s *NotificationService) Processed(ctx context.Context, actor *Actor, callID string) (bool, error) {
	if strings.TrimSpace(callID) == "" {
		return false, apperrors.Validation(map[string]string{"call_id": "The call id field is required."})
	}

	_, live, err := s.store.Lookup(ctx, actor.ID, callID)
	if err != nil {
		return false, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to read notification")
	}
	if err := s.store.Forget(ctx, actor.ID, callID); err != nil {
		return false, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to mark notification processed")
	}
	return live, nil
}
