package repository

import (
	"context"
	"fmt"

	"github.com/pesio-ai/be-app-crm/internal/logger"
	apperrors "github.com/pesio-ai/be-app-crm/pkg/errors"
)

// PermissionRepository handles permission grants
type PermissionRepository struct {
	db  DB
	log *logger.Logger
}

func NewPermissionRepository(db DB, log *logger.Logger) *PermissionRepository {
	return &PermissionRepository{
		db:  db,
		log: log,
	}
}

// List retrieves all permissions ordered by module and action
func (r *PermissionRepository) List(ctx context.Context) ([]*Permission, error) {
	query := `
		SELECT id, module, action, created_at
		FROM permissions
		ORDER BY module, action
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to list permissions")
	}
	defer rows.Close()

	permissions := make([]*Permission, 0)
	for rows.Next() {
		p := &Permission{}
		if err := rows.Scan(&p.ID, &p.Module, &p.Action, &p.CreatedAt); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to scan permission")
		}
		permissions = append(permissions, p)
	}

	return permissions, rows.Err()
}

// ListForUser retrieves the permissions granted to a user
func (r *PermissionRepository) ListForUser(ctx context.Context, userID int64) ([]*Permission, error) {
	query := `
		SELECT p.id, p.module, p.action, p.created_at
		FROM permissions p
		INNER JOIN user_permissions up ON p.id = up.permission_id
		WHERE up.user_id = $1
		ORDER BY p.module, p.action
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to get user permissions")
	}
	defer rows.Close()

	permissions := make([]*Permission, 0)
	for rows.Next() {
		p := &Permission{}
		if err := rows.Scan(&p.ID, &p.Module, &p.Action, &p.CreatedAt); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to scan permission")
		}
		permissions = append(permissions, p)
	}

	return permissions, rows.Err()
}

// CountExisting returns how many of the given ids exist
func (r *PermissionRepository) CountExisting(ctx context.Context, ids []int64) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM permissions WHERE id = ANY($1)`, ids).Scan(&count)
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to count permissions")
	}
	return count, nil
}

// SyncUser replaces the user's grants with the given permission ids
func (r *PermissionRepository) SyncUser(ctx context.Context, userID int64, permissionIDs []int64) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM user_permissions WHERE user_id = $1`, userID); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to clear user permissions")
	}

	if len(permissionIDs) == 0 {
		return nil
	}

	query := `
		INSERT INTO user_permissions (user_id, permission_id)
		SELECT $1, unnest($2::bigint[])
		ON CONFLICT (user_id, permission_id) DO NOTHING
	`

	if _, err := r.db.Exec(ctx, query, userID, permissionIDs); err != nil {
		if isForeignKeyViolation(err) {
			return apperrors.Validation(map[string]string{"permissions": "One or more permissions are invalid."})
		}
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to assign permissions")
	}

	r.log.Debug().
		Int64("user_id", userID).
		Int("count", len(permissionIDs)).
		Msg("User permissions synced")

	return nil
}

// Ensure inserts a (module, action) pair if it is missing
func (r *PermissionRepository) Ensure(ctx context.Context, module, action string) error {
	query := `
		INSERT INTO permissions (module, action)
		VALUES ($1, $2)
		ON CONFLICT (module, action) DO NOTHING
	`

	if _, err := r.db.Exec(ctx, query, module, action); err != nil {
		return fmt.Errorf("failed to ensure permission %s:%s: %w", module, action, err)
	}

	return nil
}
