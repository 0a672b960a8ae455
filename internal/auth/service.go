package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	internal "github.com/frahmantamala/payment-portal/internal"
	"github.com/frahmantamala/payment-portal/internal/user"
)

// UserStore is the slice of user.Repository auth depends on.
type UserStore interface {
	Create(ctx context.Context, u *user.User, passwordHash string) error
	GetByID(ctx context.Context, id string) (*user.User, error)
	GetByEmail(ctx context.Context, email string) (*user.User, string, error)
}

type ManagerChecker interface {
	CheckManager(ctx context.Context, managerID string) error
}

// Service is the main auth service with dependencies
type Service struct {
	users          UserStore
	tokenGenerator TokenGenerator
	hasher         user.PasswordHasher
	managers       ManagerChecker
	logger         *slog.Logger
}

// NewService creates a new auth service
func NewService(users UserStore, tokenGen TokenGenerator, hasher user.PasswordHasher, managers ManagerChecker, logger *slog.Logger) *Service {
	return &Service{
		users:          users,
		tokenGenerator: tokenGen,
		hasher:         hasher,
		managers:       managers,
		logger:         logger,
	}
}

// Login validates credentials and returns an access token with the user record.
func (s *Service) Login(ctx context.Context, dto LoginDTO) (*LoginResponse, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	u, storedHash, err := s.users.GetByEmail(ctx, strings.TrimSpace(dto.Username))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			s.logger.Debug("login for unknown email", "email", dto.Username)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := s.hasher.Verify(storedHash, dto.Password); err != nil {
		s.logger.Debug("login with wrong password", "user_id", u.ID)
		return nil, ErrInvalidCredentials
	}
	if !u.IsActiveUser() {
		return nil, ErrUserInactive
	}

	token, err := s.tokenGenerator.GenerateAccessToken(u)
	if err != nil {
		return nil, internal.NewInternalError("failed to issue token", err)
	}

	s.logger.Info("user logged in", "user_id", u.ID, "role", u.Role)
	return &LoginResponse{AccessToken: token, TokenType: TokenTypeBearer, User: u}, nil
}

// Register creates an active account. It does not log the user in.
func (s *Service) Register(ctx context.Context, dto user.RegisterDTO) (*user.User, error) {
	dto.Normalize()
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	if _, _, err := s.users.GetByEmail(ctx, dto.Email); err == nil {
		return nil, ErrEmailRegistered
	} else if !errors.Is(err, user.ErrNotFound) {
		return nil, err
	}

	if dto.ManagerID != "" && s.managers != nil {
		if err := s.managers.CheckManager(ctx, dto.ManagerID); err != nil {
			return nil, err
		}
	}

	hash, err := s.hasher.Hash(dto.Password)
	if err != nil {
		return nil, internal.NewInternalError("failed to hash password", err)
	}

	u := &user.User{
		Email:      dto.Email,
		FullName:   dto.FullName,
		Role:       dto.Role,
		Department: dto.Department,
		ManagerID:  dto.ManagerID,
		IsActive:   true,
	}
	if err := s.users.Create(ctx, u, hash); err != nil {
		s.logger.Error("failed to create user", "error", err, "email", dto.Email)
		return nil, err
	}

	s.logger.Info("user registered", "user_id", u.ID, "role", u.Role)
	return u, nil
}

// Authenticate resolves a bearer token to an active user.
func (s *Service) Authenticate(ctx context.Context, token string) (*user.User, error) {
	claims, err := s.tokenGenerator.ValidateToken(token)
	if err != nil {
		return nil, err
	}

	u, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if !u.IsActiveUser() {
		return nil, ErrUserInactive
	}
	return u, nil
}
