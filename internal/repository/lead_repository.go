package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/pesio-ai/be-app-crm/internal/logger"
	apperrors "github.com/pesio-ai/be-app-crm/pkg/errors"
)

// LeadRepository handles lead data operations
type LeadRepository struct {
	db  DB
	log *logger.Logger
}

// NewLeadRepository creates a new lead repository
func NewLeadRepository(db DB, log *logger.Logger) *LeadRepository {
	return &LeadRepository{db: db, log: log}
}

// leadSelect selects a lead with its catalog and assignee names. Callers
// append WHERE/ORDER clauses referring to the alias l.
const leadSelect = `
	SELECT l.id, l.name, l.company_name, l.location, l.phone, l.email,
		   l.service_id, l.status_id, l.assigned_user_id, l.created_by,
		   l.created_at, l.updated_at,
		   COALESCE(s.name, ''), COALESCE(st.name, ''), COALESCE(u.name, '')
	FROM leads l
	LEFT JOIN services s ON s.id = l.service_id
	LEFT JOIN statuses st ON st.id = l.status_id
	LEFT JOIN users u ON u.id = l.assigned_user_id
`

func leadScanTargets(lead *Lead) []any {
	return []any{
		&lead.ID, &lead.Name, &lead.CompanyName, &lead.Location, &lead.Phone, &lead.Email,
		&lead.ServiceID, &lead.StatusID, &lead.AssignedUserID, &lead.CreatedBy,
		&lead.CreatedAt, &lead.UpdatedAt,
		&lead.ServiceName, &lead.StatusName, &lead.AssignedName,
	}
}

// Create creates a new lead
func (r *LeadRepository) Create(ctx context.Context, lead *Lead) error {
	query := `
		INSERT INTO leads (
			name, company_name, location, phone, email,
			service_id, status_id, assigned_user_id, created_by
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		lead.Name, lead.CompanyName, lead.Location, lead.Phone, lead.Email,
		lead.ServiceID, lead.StatusID, lead.AssignedUserID, lead.CreatedBy,
	).Scan(&lead.ID, &lead.CreatedAt, &lead.UpdatedAt)

	if isForeignKeyViolation(err) {
		return apperrors.Validation(map[string]string{"lead": "Selected service, status or user is invalid."})
	}
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to create lead")
	}

	return nil
}

// GetByID retrieves a lead by ID
func (r *LeadRepository) GetByID(ctx context.Context, id int64) (*Lead, error) {
	lead := &Lead{}

	err := r.db.QueryRow(ctx, leadSelect+` WHERE l.id = $1`, id).Scan(leadScanTargets(lead)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("lead", id)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to get lead")
	}

	return lead, nil
}

// List retrieves leads newest first. A zero assignee lists every lead.
func (r *LeadRepository) List(ctx context.Context, assignee int64) ([]*Lead, error) {
	query := leadSelect
	args := []any{}

	if assignee != 0 {
		query += ` WHERE l.assigned_user_id = $1`
		args = append(args, assignee)
	}
	query += ` ORDER BY l.created_at DESC, l.id DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to list leads")
	}
	defer rows.Close()

	leads := make([]*Lead, 0)
	for rows.Next() {
		lead := &Lead{}
		if err := rows.Scan(leadScanTargets(lead)...); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to scan lead")
		}
		leads = append(leads, lead)
	}

	return leads, rows.Err()
}

// Update updates a lead's editable fields
func (r *LeadRepository) Update(ctx context.Context, lead *Lead) error {
	query := `
		UPDATE leads
		SET name = $2, company_name = $3, location = $4, phone = $5, email = $6,
			service_id = $7, status_id = $8, assigned_user_id = $9, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.db.QueryRow(ctx, query,
		lead.ID, lead.Name, lead.CompanyName, lead.Location, lead.Phone, lead.Email,
		lead.ServiceID, lead.StatusID, lead.AssignedUserID,
	).Scan(&lead.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NotFound("lead", lead.ID)
	}
	if isForeignKeyViolation(err) {
		return apperrors.Validation(map[string]string{"lead": "Selected service, status or user is invalid."})
	}
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to update lead")
	}

	return nil
}

// Delete deletes a lead together with its details and calls
func (r *LeadRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM leads WHERE id = $1`, id)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to delete lead")
	}

	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("lead", id)
	}

	return nil
}

// ExistsByContact reports whether another lead already uses the phone or the
// email. Empty values are not matched. excludeID skips the lead being edited.
func (r *LeadRepository) ExistsByContact(ctx context.Context, phone, email string, excludeID int64) (bool, error) {
	if phone == "" && email == "" {
		return false, nil
	}

	query := `
		SELECT EXISTS (
			SELECT 1 FROM leads
			WHERE id <> $1
			  AND (($2 <> '' AND phone = $2) OR ($3 <> '' AND email = $3))
		)
	`

	var exists bool
	if err := r.db.QueryRow(ctx, query, excludeID, phone, email).Scan(&exists); err != nil {
		return false, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to check duplicate lead")
	}

	return exists, nil
}

// Count returns the number of leads. A zero assignee counts every lead.
func (r *LeadRepository) Count(ctx context.Context, assignee int64) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM leads WHERE $1::bigint = 0 OR assigned_user_id = $1`, assignee,
	).Scan(&count)
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to count leads")
	}
	return count, nil
}

// CountByStatus groups leads by status. A zero assignee counts every lead.
func (r *LeadRepository) CountByStatus(ctx context.Context, assignee int64) ([]LeadStatusCount, error) {
	query := `
		SELECT st.id, st.name, COUNT(l.id)
		FROM statuses st
		LEFT JOIN leads l ON l.status_id = st.id AND ($1::bigint = 0 OR l.assigned_user_id = $1)
		GROUP BY st.id, st.name
		ORDER BY st.name, st.id
	`

	rows, err := r.db.Query(ctx, query, assignee)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to count leads by status")
	}
	defer rows.Close()

	counts := make([]LeadStatusCount, 0)
	for rows.Next() {
		var c LeadStatusCount
		if err := rows.Scan(&c.StatusID, &c.StatusName, &c.Count); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to scan status count")
		}
		counts = append(counts, c)
	}

	return counts, rows.Err()
}
