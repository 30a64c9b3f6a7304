package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pesio-ai/be-app-crm/internal/logger"
	apperrors "github.com/pesio-ai/be-app-crm/pkg/errors"
)

// LeadDetailRepository handles follow-up entries
type LeadDetailRepository struct {
	db  DB
	log *logger.Logger
}

// NewLeadDetailRepository creates a new lead detail repository
func NewLeadDetailRepository(db DB, log *logger.Logger) *LeadDetailRepository {
	return &LeadDetailRepository{db: db, log: log}
}

// detailSelect selects a detail (alias ld) joined with its lead
const detailSelect = `
	SELECT ld.id, ld.lead_id, ld.call_followup_date, ld.call_followup_summary,
		   ld.next_call_date, ld.called_at, ld.created_by, ld.assigned_to,
		   ld.created_at, ld.updated_at,
		   l.id, l.name, l.company_name, l.location, l.phone, l.email,
		   l.service_id, l.status_id, l.assigned_user_id, l.created_by,
		   l.created_at, l.updated_at,
		   COALESCE(s.name, ''), COALESCE(st.name, ''), COALESCE(u.name, '')
	FROM lead_details ld
	INNER JOIN leads l ON l.id = ld.lead_id
	LEFT JOIN services s ON s.id = l.service_id
	LEFT JOIN statuses st ON st.id = l.status_id
	LEFT JOIN users u ON u.id = l.assigned_user_id
`

func scanDetail(row pgx.Row) (*LeadDetail, error) {
	d := &LeadDetail{Lead: &Lead{}}
	targets := []any{
		&d.ID, &d.LeadID, &d.CallFollowupDate, &d.CallFollowupSummary,
		&d.NextCallDate, &d.CalledAt, &d.CreatedBy, &d.AssignedTo,
		&d.CreatedAt, &d.UpdatedAt,
	}
	targets = append(targets, leadScanTargets(d.Lead)...)
	return d, row.Scan(targets...)
}

func (r *LeadDetailRepository) queryDetails(ctx context.Context, query string, args ...any) ([]*LeadDetail, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to list lead details")
	}
	defer rows.Close()

	details := make([]*LeadDetail, 0)
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to scan lead detail")
		}
		details = append(details, d)
	}

	return details, rows.Err()
}

// Create creates a new follow-up entry
func (r *LeadDetailRepository) Create(ctx context.Context, d *LeadDetail) error {
	query := `
		INSERT INTO lead_details (
			lead_id, call_followup_date, call_followup_summary,
			next_call_date, called_at, created_by, assigned_to
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		d.LeadID, d.CallFollowupDate, d.CallFollowupSummary,
		d.NextCallDate, d.CalledAt, d.CreatedBy, d.AssignedTo,
	).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)

	if isForeignKeyViolation(err) {
		return apperrors.NotFound("lead", d.LeadID)
	}
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to create lead detail")
	}

	return nil
}

// GetByID retrieves a detail with its lead
func (r *LeadDetailRepository) GetByID(ctx context.Context, id int64) (*LeadDetail, error) {
	d, err := scanDetail(r.db.QueryRow(ctx, detailSelect+` WHERE ld.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("lead detail", id)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to get lead detail")
	}

	return d, nil
}

// Update replaces the follow-up date, summary and next call date
func (r *LeadDetailRepository) Update(ctx context.Context, d *LeadDetail) error {
	query := `
		UPDATE lead_details
		SET call_followup_date = $2, call_followup_summary = $3, next_call_date = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.db.QueryRow(ctx, query, d.ID, d.CallFollowupDate, d.CallFollowupSummary, d.NextCallDate).
		Scan(&d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NotFound("lead detail", d.ID)
	}
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to update lead detail")
	}

	return nil
}

// MarkCalled resolves a detail. called_at is only ever set, never cleared.
func (r *LeadDetailRepository) MarkCalled(ctx context.Context, id int64, summary string, next *time.Time, calledAt time.Time) error {
	query := `
		UPDATE lead_details
		SET call_followup_summary = $2, next_call_date = $3, called_at = $4, updated_at = NOW()
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query, id, summary, next, calledAt)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to mark lead detail as called")
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("lead detail", id)
	}

	return nil
}

// Delete deletes a detail
func (r *LeadDetailRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM lead_details WHERE id = $1`, id)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to delete lead detail")
	}

	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("lead detail", id)
	}

	return nil
}

// ListByLead retrieves a lead's details newest first
func (r *LeadDetailRepository) ListByLead(ctx context.Context, leadID int64) ([]*LeadDetail, error) {
	return r.queryDetails(ctx, detailSelect+` WHERE ld.lead_id = $1 ORDER BY ld.created_at DESC, ld.id DESC`, leadID)
}

// ListLatestPerLead retrieves the highest-id detail of every lead. A zero
// assignee covers every lead.
func (r *LeadDetailRepository) ListLatestPerLead(ctx context.Context, assignee int64) ([]*LeadDetail, error) {
	query := detailSelect + `
		WHERE ld.id IN (SELECT MAX(id) FROM lead_details GROUP BY lead_id)
		  AND ($1::bigint = 0 OR l.assigned_user_id = $1)
		ORDER BY ld.next_call_date ASC NULLS LAST, ld.id ASC
	`

	return r.queryDetails(ctx, query, assignee)
}

// CallLog retrieves one page of details newest first. A zero assignee covers
// every lead.
func (r *LeadDetailRepository) CallLog(ctx context.Context, assignee int64, page, perPage int) ([]*LeadDetail, Page, error) {
	var total int64
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM lead_details ld
		INNER JOIN leads l ON l.id = ld.lead_id
		WHERE $1::bigint = 0 OR l.assigned_user_id = $1
	`, assignee).Scan(&total)
	if err != nil {
		return nil, Page{}, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to count call log")
	}

	p := NewPage(page, perPage, total)
	query := detailSelect + `
		WHERE $1::bigint = 0 OR l.assigned_user_id = $1
		ORDER BY ld.created_at DESC, ld.id DESC
		LIMIT $2 OFFSET $3
	`

	details, err := r.queryDetails(ctx, query, assignee, p.PerPage, p.Offset())
	if err != nil {
		return nil, Page{}, err
	}

	return details, p, nil
}
