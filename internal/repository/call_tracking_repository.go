package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pesio-ai/be-app-crm/internal/logger"
	apperrors "github.com/pesio-ai/be-app-crm/pkg/errors"
)

// CallTrackingRepository handles call session records. Calendar days in
// stats are taken in loc.
type CallTrackingRepository struct {
	db  DB
	log *logger.Logger
	loc *time.Location
}

// NewCallTrackingRepository creates a new call tracking repository
func NewCallTrackingRepository(db DB, log *logger.Logger, loc *time.Location) *CallTrackingRepository {
	if loc == nil {
		loc = time.UTC
	}
	return &CallTrackingRepository{db: db, log: log, loc: loc}
}

// CallFilter narrows call listings. Zero values disable a filter.
type CallFilter struct {
	UserID int64
	LeadID int64
	Status string
}

const callColumns = `
	id, lead_id, user_id, lead_detail_id, phone_number, call_id,
	call_started_at, call_ended_at, call_duration_seconds, call_status,
	call_summary, audio_recording_path, call_metadata,
	device_type, device_id, is_auto_dialed, created_at, updated_at
`

func scanCall(row pgx.Row) (*CallTracking, error) {
	c := &CallTracking{}
	err := row.Scan(
		&c.ID, &c.LeadID, &c.UserID, &c.LeadDetailID, &c.PhoneNumber, &c.CallID,
		&c.CallStartedAt, &c.CallEndedAt, &c.CallDurationSeconds, &c.CallStatus,
		&c.CallSummary, &c.AudioRecordingPath, &c.CallMetadata,
		&c.DeviceType, &c.DeviceID, &c.IsAutoDialed, &c.CreatedAt, &c.UpdatedAt,
	)
	return c, err
}

func (r *CallTrackingRepository) queryCalls(ctx context.Context, query string, args ...any) ([]*CallTracking, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to list call trackings")
	}
	defer rows.Close()

	calls := make([]*CallTracking, 0)
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to scan call tracking")
		}
		calls = append(calls, c)
	}

	return calls, rows.Err()
}

// Create creates a new call tracking
func (r *CallTrackingRepository) Create(ctx context.Context, c *CallTracking) error {
	query := `
		INSERT INTO call_trackings (
			lead_id, user_id, lead_detail_id, phone_number, call_id,
			call_status, call_metadata, device_type, device_id, is_auto_dialed
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		c.LeadID, c.UserID, c.LeadDetailID, c.PhoneNumber, c.CallID,
		c.CallStatus, c.CallMetadata, c.DeviceType, c.DeviceID, c.IsAutoDialed,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)

	if isForeignKeyViolation(err) {
		return apperrors.Validation(map[string]string{"lead_detail_id": "The selected lead detail is invalid."})
	}
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to create call tracking")
	}

	return nil
}

// GetByID retrieves a call tracking by ID
func (r *CallTrackingRepository) GetByID(ctx context.Context, id int64) (*CallTracking, error) {
	c, err := scanCall(r.db.QueryRow(ctx, `SELECT `+callColumns+` FROM call_trackings WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("call tracking", id)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to get call tracking")
	}

	return c, nil
}

// GetByCallID retrieves a call tracking by its correlation id
func (r *CallTrackingRepository) GetByCallID(ctx context.Context, callID string) (*CallTracking, error) {
	c, err := scanCall(r.db.QueryRow(ctx, `SELECT `+callColumns+` FROM call_trackings WHERE call_id = $1`, callID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("call tracking", callID)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to get call tracking")
	}

	return c, nil
}

// Update writes every mutable column of a call tracking
func (r *CallTrackingRepository) Update(ctx context.Context, c *CallTracking) error {
	query := `
		UPDATE call_trackings
		SET lead_detail_id = $2, call_started_at = $3, call_ended_at = $4,
			call_duration_seconds = $5, call_status = $6, call_summary = $7,
			audio_recording_path = $8, call_metadata = $9, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.db.QueryRow(ctx, query,
		c.ID, c.LeadDetailID, c.CallStartedAt, c.CallEndedAt,
		c.CallDurationSeconds, c.CallStatus, c.CallSummary,
		c.AudioRecordingPath, c.CallMetadata,
	).Scan(&c.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NotFound("call tracking", c.ID)
	}
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to update call tracking")
	}

	return nil
}

// Delete deletes a call tracking
func (r *CallTrackingRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM call_trackings WHERE id = $1`, id)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to delete call tracking")
	}

	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("call tracking", id)
	}

	return nil
}

// List retrieves one page of call trackings newest first
func (r *CallTrackingRepository) List(ctx context.Context, f CallFilter, page, perPage int) ([]*CallTracking, Page, error) {
	where := `
		WHERE ($1::bigint = 0 OR user_id = $1)
		  AND ($2::bigint = 0 OR lead_id = $2)
		  AND ($3::text = '' OR call_status = $3)
	`

	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM call_trackings`+where, f.UserID, f.LeadID, f.Status).
		Scan(&total); err != nil {
		return nil, Page{}, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to count call trackings")
	}

	p := NewPage(page, perPage, total)
	query := `SELECT ` + callColumns + ` FROM call_trackings` + where + `
		ORDER BY created_at DESC, id DESC
		LIMIT $4 OFFSET $5
	`

	calls, err := r.queryCalls(ctx, query, f.UserID, f.LeadID, f.Status, p.PerPage, p.Offset())
	if err != nil {
		return nil, Page{}, err
	}

	return calls, p, nil
}

// ListActive retrieves calls that started and have not ended. A zero user
// covers every caller.
func (r *CallTrackingRepository) ListActive(ctx context.Context, userID int64) ([]*CallTracking, error) {
	query := `SELECT ` + callColumns + ` FROM call_trackings
		WHERE call_status IN ('initiated', 'ringing', 'answered')
		  AND call_started_at IS NOT NULL
		  AND call_ended_at IS NULL
		  AND ($1::bigint = 0 OR user_id = $1)
		ORDER BY call_started_at DESC, id DESC
	`

	return r.queryCalls(ctx, query, userID)
}

// ListByLead retrieves a lead's call history newest first
func (r *CallTrackingRepository) ListByLead(ctx context.Context, leadID int64) ([]*CallTracking, error) {
	query := `SELECT ` + callColumns + ` FROM call_trackings
		WHERE lead_id = $1
		ORDER BY created_at DESC, id DESC
	`

	return r.queryCalls(ctx, query, leadID)
}

// Stats aggregates calls created within the optional date range. A zero user
// covers every caller. Range bounds and per-day buckets are local dates.
func (r *CallTrackingRepository) Stats(ctx context.Context, userID int64, from, to *time.Time) (*CallStats, error) {
	where := `
		WHERE ($1::bigint = 0 OR user_id = $1)
		  AND ($2::date IS NULL OR (created_at AT TIME ZONE $4::text)::date >= $2::date)
		  AND ($3::date IS NULL OR (created_at AT TIME ZONE $4::text)::date <= $3::date)
	`
	args := []any{userID, r.localDate(from), r.localDate(to), r.loc.String()}

	stats := &CallStats{
		CallsByStatus: make([]StatusCount, 0),
		CallsByDay:    make([]DayCount, 0),
	}

	totals := `
		SELECT COUNT(*),
			   COUNT(*) FILTER (WHERE call_status = 'completed'),
			   COALESCE(SUM(call_duration_seconds) FILTER (WHERE call_status = 'completed'), 0),
			   COALESCE(AVG(call_duration_seconds) FILTER (WHERE call_status = 'completed'), 0)
		FROM call_trackings
	` + where

	err := r.db.QueryRow(ctx, totals, args...).Scan(
		&stats.TotalCalls, &stats.CompletedCalls, &stats.TotalDuration, &stats.AverageDuration,
	)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to get call totals")
	}

	rows, err := r.db.Query(ctx, `SELECT call_status, COUNT(*) FROM call_trackings`+where+`
		GROUP BY call_status ORDER BY call_status`, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to group calls by status")
	}
	for rows.Next() {
		var sc StatusCount
		if err := rows.Scan(&sc.CallStatus, &sc.Count); err != nil {
			rows.Close()
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to scan status count")
		}
		stats.CallsByStatus = append(stats.CallsByStatus, sc)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to group calls by status")
	}

	rows, err = r.db.Query(ctx, `SELECT to_char((created_at AT TIME ZONE $4::text)::date, 'YYYY-MM-DD') AS day, COUNT(*) FROM call_trackings`+where+`
		GROUP BY day ORDER BY day`, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to group calls by day")
	}
	defer rows.Close()
	for rows.Next() {
		var dc DayCount
		if err := rows.Scan(&dc.Date, &dc.Count); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to scan day count")
		}
		stats.CallsByDay = append(stats.CallsByDay, dc)
	}

	return stats, rows.Err()
}

// localDate moves t into the repository zone so its calendar day is the one
// encoded as a date parameter
func (r *CallTrackingRepository) localDate(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	local := t.In(r.loc)
	return &local
}
