package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/pesio-ai/be-app-crm/internal/logger"
	"github.com/pesio-ai/be-app-crm/internal/repository"
	apperrors "github.com/pesio-ai/be-app-crm/pkg/errors"
	"github.com/pesio-ai/be-app-crm/pkg/password"
)

// UserStore persists users
type UserStore interface {
	Create(ctx context.Context, user *repository.User) error
	GetByID(ctx context.Context, id int64) (*repository.User, error)
	GetByEmail(ctx context.Context, email string) (*repository.User, error)
	Update(ctx context.Context, user *repository.User) error
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, role string) ([]*repository.User, error)
}

// PermissionStore persists grants
type PermissionStore interface {
	List(ctx context.Context) ([]*repository.Permission, error)
	ListForUser(ctx context.Context, userID int64) ([]*repository.Permission, error)
	CountExisting(ctx context.Context, ids []int64) (int, error)
	SyncUser(ctx context.Context, userID int64, permissionIDs []int64) error
	Ensure(ctx context.Context, module, action string) error
}

type UserService struct {
	users       UserStore
	permissions PermissionStore
	log         *logger.Logger
	hashParams  *password.Params
}

func NewUserService(users UserStore, permissions PermissionStore, log *logger.Logger) *UserService {
	return &UserService{
		users:       users,
		permissions: permissions,
		log:         log,
	}
}

type CreateUserRequest struct {
	Name                 string  `json:"name"`
	Email                string  `json:"email"`
	Password             string  `json:"password"`
	PasswordConfirmation string  `json:"password_confirmation"`
	Role                 string  `json:"role"`
	Permissions          []int64 `json:"permissions"`
}

// UpdateUserRequest fields left nil are not changed
type UpdateUserRequest struct {
	Name                 *string  `json:"name"`
	Email                *string  `json:"email"`
	Role                 *string  `json:"role"`
	Password             *string  `json:"password"`
	PasswordConfirmation string   `json:"password_confirmation"`
	Permissions          *[]int64 `json:"permissions"`
}

// PermissionGroup is the permission list of one module
type PermissionGroup struct {
	Module      string                   `json:"module"`
	Permissions []*repository.Permission `json:"permissions"`
}

func validateUserFields(fields map[string]string, name, email *string) {
	if name != nil {
		*name = strings.TrimSpace(*name)
		switch {
		case *name == "":
			fields["name"] = "The name field is required."
		case len(*name) > 255:
			fields["name"] = "The name may not be greater than 255 characters."
		}
	}
	if email != nil {
		*email = strings.TrimSpace(*email)
		if addr, err := mail.ParseAddress(*email); err != nil || addr.Address != *email || len(*email) > 255 {
			fields["email"] = "The email must be a valid email address."
		}
	}
}

func validRole(role string) bool {
	return role == repository.RoleAdmin || role == repository.RoleUser
}

func passwordError(err error) string {
	switch {
	case errors.Is(err, password.ErrTooShort):
		return fmt.Sprintf("The password must be at least %d characters.", password.MinLength)
	case errors.Is(err, password.ErrMismatch):
		return "The password confirmation does not match."
	default:
		return err.Error()
	}
}

func (s *UserService) checkPermissionIDs(ctx context.Context, fields map[string]string, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	unique := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		unique[id] = struct{}{}
	}
	n, err := s.permissions.CountExisting(ctx, ids)
	if err != nil {
		return err
	}
	if n != len(unique) {
		fields["permissions"] = "The selected permissions are invalid."
	}
	return nil
}

// Index lists users with their permissions, newest first
func (s *UserService) Index(ctx context.Context) ([]*repository.User, error) {
	users, err := s.users.List(ctx, "")
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if err := s.loadPermissions(ctx, u); err != nil {
			return nil, err
		}
	}
	return users, nil
}

// Show returns a user with permissions
func (s *UserService) Show(ctx context.Context, id int64) (*repository.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.loadPermissions(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Store creates a user. Admin only.
func (s *UserService) Store(ctx context.Context, actor *Actor, req *CreateUserRequest) (*repository.User, error) {
	if err := Authorize(actor, PolicyUserStore, 0); err != nil {
		return nil, err
	}

	fields := map[string]string{}
	validateUserFields(fields, &req.Name, &req.Email)
	if err := password.Validate(req.Password, req.PasswordConfirmation); err != nil {
		fields["password"] = passwordError(err)
	}
	if !validRole(req.Role) {
		fields["role"] = "The selected role is invalid."
	}
	if err := s.checkPermissionIDs(ctx, fields, req.Permissions); err != nil {
		return nil, err
	}
	if len(fields) > 0 {
		return nil, apperrors.Validation(fields)
	}

	hash, err := password.Hash(req.Password, s.hashParams)
	if err != nil {
		return nil, apperrors.Internal("failed to hash password", err)
	}

	user := &repository.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         req.Role,
	}
	if err := s.users.Create(ctx, user); err != nil {
		s.log.Error().Err(err).Str("email", req.Email).Msg("Failed to create user")
		return nil, err
	}

	if len(req.Permissions) > 0 {
		if err := s.permissions.SyncUser(ctx, user.ID, req.Permissions); err != nil {
			return nil, err
		}
	}
	if err := s.loadPermissions(ctx, user); err != nil {
		return nil, err
	}

	s.log.Info().
		Int64("user_id", user.ID).
		Str("role", user.Role).
		Int64("created_by", actor.ID).
		Msg("User created")

	return user, nil
}

// Update edits a user. Only admins may change a role.
func (s *UserService) Update(ctx context.Context, actor *Actor, id int64, req *UpdateUserRequest) (*repository.User, error) {
	if req.Role != nil {
		if err := Authorize(actor, PolicyUserRole, 0); err != nil {
			return nil, err
		}
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	fields := map[string]string{}
	validateUserFields(fields, req.Name, req.Email)
	if req.Role != nil && !validRole(*req.Role) {
		fields["role"] = "The selected role is invalid."
	}
	if req.Password != nil {
		if err := password.Validate(*req.Password, req.PasswordConfirmation); err != nil {
			fields["password"] = passwordError(err)
		}
	}
	if req.Permissions != nil {
		if err := s.checkPermissionIDs(ctx, fields, *req.Permissions); err != nil {
			return nil, err
		}
	}
	if len(fields) > 0 {
		return nil, apperrors.Validation(fields)
	}

	if req.Name != nil || req.Email != nil || req.Role != nil {
		if req.Name != nil {
			user.Name = *req.Name
		}
		if req.Email != nil {
			user.Email = *req.Email
		}
		if req.Role != nil {
			user.Role = *req.Role
		}
		if err := s.users.Update(ctx, user); err != nil {
			return nil, err
		}
	}

	if req.Password != nil {
		hash, err := password.Hash(*req.Password, s.hashParams)
		if err != nil {
			return nil, apperrors.Internal("failed to hash password", err)
		}
		if err := s.users.UpdatePassword(ctx, id, hash); err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}

	if req.Permissions != nil {
		if err := s.permissions.SyncUser(ctx, id, *req.Permissions); err != nil {
			return nil, err
		}
	}
	if err := s.loadPermissions(ctx, user); err != nil {
		return nil, err
	}

	s.log.Info().Int64("user_id", id).Int64("updated_by", actor.ID).Msg("User updated")
	return user, nil
}

// Destroy deletes a user. Admin only, and never the actor's own account.
func (s *UserService) Destroy(ctx context.Context, actor *Actor, id int64) error {
	if err := Authorize(actor, PolicyUserDestroy, 0); err != nil {
		return err
	}
	if id == actor.ID {
		return apperrors.Conflict("You cannot delete your own account.")
	}

	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}

	s.log.Info().Int64("user_id", id).Int64("deleted_by", actor.ID).Msg("User deleted")
	return nil
}

// Permissions lists every permission grouped by module
func (s *UserService) Permissions(ctx context.Context) ([]PermissionGroup, error) {
	perms, err := s.permissions.List(ctx)
	if err != nil {
		return nil, err
	}

	groups := make([]PermissionGroup, 0)
	for _, p := range perms {
		if n := len(groups); n > 0 && groups[n-1].Module == p.Module {
			groups[n-1].Permissions = append(groups[n-1].Permissions, p)
			continue
		}
		groups = append(groups, PermissionGroup{Module: p.Module, Permissions: []*repository.Permission{p}})
	}
	return groups, nil
}

// SeedPermissions inserts every valid grant
func (s *UserService) SeedPermissions(ctx context.Context) error {
	grants := AllGrants()
	for _, g := range grants {
		if err := s.permissions.Ensure(ctx, g.Module, g.Action); err != nil {
			return err
		}
	}
	s.log.Info().Int("count", len(grants)).Msg("Permissions seeded")
	return nil
}

func (s *UserService) loadPermissions(ctx context.Context, user *repository.User) error {
	perms, err := s.permissions.ListForUser(ctx, user.ID)
	if err != nil {
		return err
	}
	user.Permissions = perms
	return nil
}
