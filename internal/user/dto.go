package user

import (
	"strings"

	internal "github.com/frahmantamala/payment-portal/internal"
	"github.com/frahmantamala/payment-portal/internal/core/common/validation"
)

// RegisterDTO is the JSON body of POST /api/auth/register.
type RegisterDTO struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required,min=8"`
	FullName   string `json:"full_name" validate:"required,max=120"`
	Department string `json:"department,omitempty" validate:"max=120"`
	Role       Role   `json:"role,omitempty"`
	ManagerID  string `json:"manager_id,omitempty"`
}

func (d *RegisterDTO) Normalize() {
	d.Email = strings.ToLower(strings.TrimSpace(d.Email))
	d.FullName = strings.TrimSpace(d.FullName)
	d.Department = strings.TrimSpace(d.Department)
	if d.Role == "" {
		d.Role = RoleEmployee
	}
}

func (d RegisterDTO) Validate() error {
	if appErr := validation.Struct(d); appErr != nil {
		return appErr
	}
	if !d.Role.Valid() {
		return internal.NewValidationFieldError("role", "role must be one of: employee manager hr admin", internal.ErrCodeInvalidRole)
	}
	return nil
}

// UpdateUserDTO is the admin-side patch for PUT /api/admin/users/{id}.
type UpdateUserDTO struct {
	FullName   *string `json:"full_name,omitempty" validate:"omitempty,min=1,max=120"`
	Department *string `json:"department,omitempty" validate:"omitempty,max=120"`
	Role       *Role   `json:"role,omitempty"`
	ManagerID  *string `json:"manager_id,omitempty"`
	IsActive   *bool   `json:"is_active,omitempty"`
}

func (d UpdateUserDTO) Validate() error {
	if d.FullName == nil && d.Department == nil && d.Role == nil && d.ManagerID == nil && d.IsActive == nil {
		return internal.NewValidationError("No data to update", internal.ErrCodeValidationFailed)
	}
	if appErr := validation.Struct(d); appErr != nil {
		return appErr
	}
	return nil
}

// ProfileDTO is the self-service patch for PUT /api/user/profile.
type ProfileDTO struct {
	FullName   string `json:"full_name" validate:"required,max=120"`
	Department string `json:"department" validate:"max=120"`
}

func (d ProfileDTO) Validate() error {
	if appErr := validation.Struct(d); appErr != nil {
		return appErr
	}
	return nil
}

// PasswordChangeDTO is the body of PUT /api/user/security.
type PasswordChangeDTO struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
}

func (d PasswordChangeDTO) Validate() error {
	if appErr := validation.Struct(d); appErr != nil {
		return appErr
	}
	return nil
}
