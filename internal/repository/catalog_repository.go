package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/pesio-ai/be-app-crm/internal/logger"
	apperrors "github.com/pesio-ai/be-app-crm/pkg/errors"
)

// Catalog tables referenced by leads
const (
	CatalogServices = "services"
	CatalogStatuses = "statuses"
)

// CatalogRepository handles a name-only lookup table. The table name is fixed
// at construction and never taken from input.
type CatalogRepository struct {
	db       DB
	log      *logger.Logger
	table    string
	resource string
	column   string
}

// NewCatalogRepository creates a repository for services or statuses
func NewCatalogRepository(db DB, log *logger.Logger, table string) *CatalogRepository {
	r := &CatalogRepository{db: db, log: log, table: table}
	switch table {
	case CatalogServices:
		r.resource, r.column = "service", "service_id"
	case CatalogStatuses:
		r.resource, r.column = "status", "status_id"
	default:
		panic(fmt.Sprintf("unknown catalog table %q", table))
	}
	return r
}

// Resource returns the singular resource name used in error messages
func (r *CatalogRepository) Resource() string {
	return r.resource
}

// Create creates a new entry
func (r *CatalogRepository) Create(ctx context.Context, entry *CatalogEntry) error {
	query := `INSERT INTO ` + r.table + ` (name, created_by) VALUES ($1, $2) RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query, entry.Name, entry.CreatedBy).
		Scan(&entry.ID, &entry.CreatedAt, &entry.UpdatedAt)
	if isUniqueViolation(err) {
		return apperrors.Validation(map[string]string{"name": "The name has already been taken."})
	}
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to create "+r.resource)
	}

	return nil
}

// GetByID retrieves an entry by ID
func (r *CatalogRepository) GetByID(ctx context.Context, id int64) (*CatalogEntry, error) {
	query := `SELECT id, name, created_by, created_at, updated_at FROM ` + r.table + ` WHERE id = $1`

	entry := &CatalogEntry{}
	err := r.db.QueryRow(ctx, query, id).
		Scan(&entry.ID, &entry.Name, &entry.CreatedBy, &entry.CreatedAt, &entry.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound(r.resource, id)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to get "+r.resource)
	}

	return entry, nil
}

// List retrieves all entries ordered by name
func (r *CatalogRepository) List(ctx context.Context) ([]*CatalogEntry, error) {
	query := `SELECT id, name, created_by, created_at, updated_at FROM ` + r.table + ` ORDER BY name, id`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to list "+r.table)
	}
	defer rows.Close()

	entries := make([]*CatalogEntry, 0)
	for rows.Next() {
		entry := &CatalogEntry{}
		if err := rows.Scan(&entry.ID, &entry.Name, &entry.CreatedBy, &entry.CreatedAt, &entry.UpdatedAt); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to scan "+r.resource)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// Update renames an entry
func (r *CatalogRepository) Update(ctx context.Context, entry *CatalogEntry) error {
	query := `UPDATE ` + r.table + ` SET name = $2, updated_at = NOW() WHERE id = $1 RETURNING updated_at`

	err := r.db.QueryRow(ctx, query, entry.ID, entry.Name).Scan(&entry.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NotFound(r.resource, entry.ID)
	}
	if isUniqueViolation(err) {
		return apperrors.Validation(map[string]string{"name": "The name has already been taken."})
	}
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to update "+r.resource)
	}

	return nil
}

// InUse reports whether any lead references the entry
func (r *CatalogRepository) InUse(ctx context.Context, id int64) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM leads WHERE ` + r.column + ` = $1)`

	var used bool
	if err := r.db.QueryRow(ctx, query, id).Scan(&used); err != nil {
		return false, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to check "+r.resource+" usage")
	}

	return used, nil
}

// Delete deletes an entry
func (r *CatalogRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM `+r.table+` WHERE id = $1`, id)
	if isForeignKeyViolation(err) {
		return apperrors.Conflict(fmt.Sprintf("%s %d is still used by leads", r.resource, id))
	}
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to delete "+r.resource)
	}

	if tag.RowsAffected() == 0 {
		return apperrors.NotFound(r.resource, id)
	}

	return nil
}
