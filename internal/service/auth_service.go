package service

import (
	"context"
	"errors"
	"strings"

	"github.com/pesio-ai/be-app-crm/internal/logger"
	"github.com/pesio-ai/be-app-crm/internal/repository"
	apperrors "github.com/pesio-ai/be-app-crm/pkg/errors"
	jwtpkg "github.com/pesio-ai/be-app-crm/pkg/jwt"
	"github.com/pesio-ai/be-app-crm/pkg/password"
)

var (
	ErrInvalidCredentials = apperrors.Unauthorized("invalid credentials")
	ErrInvalidToken       = apperrors.Unauthorized("invalid token")
)

type AuthService struct {
	users       UserStore
	permissions PermissionStore
	jwtManager  *jwtpkg.Manager
	log         *logger.Logger
	hashParams  *password.Params
}

func NewAuthService(
	users UserStore,
	permissions PermissionStore,
	jwtManager *jwtpkg.Manager,
	log *logger.Logger,
) *AuthService {
	return &AuthService{
		users:       users,
		permissions: permissions,
		jwtManager:  jwtManager,
		log:         log,
	}
}

type LoginResponse struct {
	*jwtpkg.TokenPair
	User *repository.User `json:"user"`
}

// Login authenticates a user by email and password
func (s *AuthService) Login(ctx context.Context, email, pw string) (*LoginResponse, error) {
	email = strings.TrimSpace(email)
	s.log.Info().Str("email", email).Msg("Login attempt")

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrCodeNotFound) {
			s.log.Warn().Str("email", email).Msg("User not found")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	valid, err := password.Verify(pw, user.PasswordHash)
	if err != nil {
		s.log.Error().Err(err).Int64("user_id", user.ID).Msg("Password verification failed")
		return nil, apperrors.Internal("password verification error", err)
	}
	if !valid {
		s.log.Warn().Int64("user_id", user.ID).Msg("Invalid password")
		return nil, ErrInvalidCredentials
	}

	// Move legacy bcrypt hashes to argon2id on the first good login.
	if password.NeedsRehash(user.PasswordHash) {
		if hash, err := password.Hash(pw, s.hashParams); err == nil {
			if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
				s.log.Warn().Err(err).Int64("user_id", user.ID).Msg("Failed to rehash password")
			}
		}
	}

	pair, err := s.jwtManager.GenerateTokenPair(user.ID, user.Email, user.Role)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to generate tokens")
		return nil, apperrors.Internal("token generation failed", err)
	}

	if err := s.loadPermissions(ctx, user); err != nil {
		return nil, err
	}

	s.log.Info().Int64("user_id", user.ID).Msg("Login successful")
	return &LoginResponse{TokenPair: pair, User: user}, nil
}

// Refresh exchanges a refresh token for a new token pair
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*jwtpkg.TokenPair, error) {
	claims, err := s.jwtManager.ValidateTokenOfType(refreshToken, jwtpkg.TokenTypeRefresh)
	if err != nil {
		s.log.Warn().Err(err).Msg("Invalid refresh token")
		return nil, ErrInvalidToken
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrCodeNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	pair, err := s.jwtManager.GenerateTokenPair(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, apperrors.Internal("token generation failed", err)
	}

	s.log.Info().Int64("user_id", user.ID).Msg("Token refreshed")
	return pair, nil
}

// Authenticate resolves an access token to the acting user. Role and grants
// are read from the database so changes apply to live tokens.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*Actor, *repository.User, error) {
	claims, err := s.jwtManager.ValidateTokenOfType(accessToken, jwtpkg.TokenTypeAccess)
	if err != nil {
		if errors.Is(err, jwtpkg.ErrTokenExpired) {
			return nil, nil, apperrors.Unauthorized("token expired")
		}
		return nil, nil, ErrInvalidToken
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrCodeNotFound) {
			return nil, nil, ErrInvalidToken
		}
		return nil, nil, err
	}

	if err := s.loadPermissions(ctx, user); err != nil {
		return nil, nil, err
	}

	return NewActor(user), user, nil
}

func (s *AuthService) loadPermissions(ctx context.Context, user *repository.User) error {
	if user.IsAdmin() {
		return nil
	}
	perms, err := s.permissions.ListForUser(ctx, user.ID)
	if err != nil {
		return err
	}
	user.Permissions = perms
	return nil
}
