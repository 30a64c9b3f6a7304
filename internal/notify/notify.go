// Package notify holds the short-lived "dial this number" pushes that the
// mobile app polls for. Each user has a bounded queue; entries expire after
// TTL and a drain returns and clears the queue in one step.
package notify

import (
	"context"
	"fmt"
	"time"
)

const (
	// TTL is how long a notification stays deliverable.
	TTL = 5 * time.Minute
	// QueueCap is the number of notifications retained per user.
	QueueCap = 10
)

// Notification is a request for the user's phone to place a call.
type Notification struct {
	UserID      int64     `json:"user_id"`
	LeadID      int64     `json:"lead_id"`
	PhoneNumber string    `json:"phone_number"`
	CallID      string    `json:"call_id"`
	Timestamp   time.Time `json:"timestamp"`
	FromWeb     bool      `json:"from_web"`
}

// Store is a notification backend.
type Store interface {
	// Put records n under its own key and appends it to the user's queue,
	// dropping the oldest entries beyond QueueCap.
	Put(ctx context.Context, n Notification) error
	// Drain returns the user's unexpired queue, oldest first, and clears it.
	Drain(ctx context.Context, userID int64) ([]Notification, error)
	// Lookup returns the live notification for (userID, callID).
	Lookup(ctx context.Context, userID int64, callID string) (Notification, bool, error)
	// Forget evicts the single notification for (userID, callID).
	Forget(ctx context.Context, userID int64, callID string) error
}

// NotificationKey names the per-call entry.
func NotificationKey(userID int64, callID string) string {
	return fmt.Sprintf("call_notification:%d:%s", userID, callID)
}

// QueueKey names the per-user queue.
func QueueKey(userID int64) string {
	return fmt.Sprintf("user_call_queue:%d", userID)
}
