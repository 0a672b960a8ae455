package user

import (
	"context"
	"errors"
	"log/slog"

	internal "github.com/frahmantamala/payment-portal/internal"
)

var ErrNotFound = errors.New("user not found")

type Repository interface {
	Create(ctx context.Context, u *User, passwordHash string) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, string, error)
	List(ctx context.Context, limit, offset int) ([]*User, error)
	Update(ctx context.Context, u *User) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hash, password string) error
}

// Assignments releases requests still routed to a user who lost the
// approver role.
type Assignments interface {
	UnassignApprover(ctx context.Context, approverID string) (int64, error)
}

type Service struct {
	repo        Repository
	hasher      PasswordHasher
	assignments Assignments
	logger      *slog.Logger
}

func NewService(repo Repository, hasher PasswordHasher, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		hasher: hasher,
		logger: logger,
	}
}

// WithAssignments hooks the request store so role changes keep routing valid.
func (s *Service) WithAssignments(a Assignments) *Service {
	s.assignments = a
	return s
}

func (s *Service) GetByID(ctx context.Context, id string) (*User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, internal.ErrUserNotFound
		}
		s.logger.Error("failed to get user", "error", err, "user_id", id)
		return nil, err
	}
	return u, nil
}

// List returns the user directory. Only hr and admin may read it.
func (s *Service) List(ctx context.Context, actor *User, limit, offset int) ([]*User, error) {
	if !actor.Role.SeesAllRequests() {
		s.logger.Warn("list users denied", "user_id", actor.ID, "role", actor.Role)
		return nil, internal.ErrUnauthorizedAccess
	}
	users, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		s.logger.Error("failed to list users", "error", err)
		return nil, err
	}
	return users, nil
}

// Update applies an admin patch to another user's record.
func (s *Service) Update(ctx context.Context, actor *User, id string, dto UpdateUserDTO) (*User, error) {
	if !actor.Role.SeesAllRequests() {
		s.logger.Warn("update user denied", "user_id", actor.ID, "target_id", id, "role", actor.Role)
		return nil, internal.ErrUnauthorizedAccess
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	target, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if dto.FullName != nil {
		target.FullName = *dto.FullName
	}
	if dto.Department != nil {
		target.Department = *dto.Department
	}
	demoted := false
	if dto.Role != nil {
		demoted = target.Role.IsApprover() && !dto.Role.IsApprover()
		target.Role = *dto.Role
	}
	if dto.IsActive != nil {
		target.IsActive = *dto.IsActive
	}
	if dto.ManagerID != nil {
		if err := s.checkManager(ctx, target.ID, *dto.ManagerID); err != nil {
			return nil, err
		}
		target.ManagerID = *dto.ManagerID
	}

	// routing is released first so a failed unassign never leaves a
	// non-approver holding requests
	if demoted && s.assignments != nil {
		released, err := s.assignments.UnassignApprover(ctx, target.ID)
		if err != nil {
			s.logger.Error("failed to release routed requests", "error", err, "target_id", id)
			return nil, err
		}
		s.logger.Info("routed requests released", "target_id", id, "count", released)
	}

	if err := s.repo.Update(ctx, target); err != nil {
		s.logger.Error("failed to update user", "error", err, "target_id", id)
		return nil, err
	}

	s.logger.Info("user updated", "actor_id", actor.ID, "target_id", id, "role", target.Role)
	return target, nil
}

func (s *Service) UpdateProfile(ctx context.Context, actor *User, dto ProfileDTO) (*User, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	current, err := s.GetByID(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	current.FullName = dto.FullName
	current.Department = dto.Department
	if err := s.repo.Update(ctx, current); err != nil {
		s.logger.Error("failed to update profile", "error", err, "user_id", actor.ID)
		return nil, err
	}
	return current, nil
}

func (s *Service) ChangePassword(ctx context.Context, actor *User, dto PasswordChangeDTO) error {
	if err := dto.Validate(); err != nil {
		return err
	}
	_, hash, err := s.repo.GetByEmail(ctx, actor.Email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return internal.ErrUserNotFound
		}
		return err
	}
	if err := s.hasher.Verify(hash, dto.CurrentPassword); err != nil {
		return internal.NewValidationFieldError("current_password", "Current password is incorrect", internal.ErrCodeInvalidCredentials)
	}
	newHash, err := s.hasher.Hash(dto.NewPassword)
	if err != nil {
		return internal.NewInternalError("failed to hash password", err)
	}
	if err := s.repo.UpdatePassword(ctx, actor.ID, newHash); err != nil {
		s.logger.Error("failed to update password", "error", err, "user_id", actor.ID)
		return err
	}
	s.logger.Info("password changed", "user_id", actor.ID)
	return nil
}

// checkManager enforces that a user's approver holds an approver role.
func (s *Service) checkManager(ctx context.Context, userID, managerID string) error {
	if managerID == "" {
		return nil
	}
	if managerID == userID {
		return internal.NewValidationFieldError("manager_id", "A user cannot be their own manager", internal.ErrCodeValidationFailed)
	}
	manager, err := s.GetByID(ctx, managerID)
	if err != nil {
		if errors.Is(err, internal.ErrUserNotFound) {
			return internal.NewValidationFieldError("manager_id", "Manager not found", internal.ErrCodeUserNotFound)
		}
		return err
	}
	if !manager.Role.IsApprover() {
		return internal.NewValidationFieldError("manager_id", "Manager must hold an approver role", internal.ErrCodeInvalidRole)
	}
	return nil
}

// CheckManager is used at registration time, before the user has an id.
func (s *Service) CheckManager(ctx context.Context, managerID string) error {
	return s.checkManager(ctx, "", managerID)
}
