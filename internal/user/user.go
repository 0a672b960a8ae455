package user

import (
	"errors"
	"fmt"
	"time"

	userDatamodel "github.com/frahmantamala/payment-portal/internal/core/datamodel/user"
)

// Role is the closed set of roles a user can hold.
type Role string

const (
	RoleEmployee Role = "employee"
	RoleManager  Role = "manager"
	RoleHR       Role = "hr"
	RoleAdmin    Role = "admin"
)

var ErrUnknownRole = errors.New("unknown role")

// Roles lists every role in display order.
func Roles() []Role {
	return []Role{RoleEmployee, RoleManager, RoleHR, RoleAdmin}
}

func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleEmployee, RoleManager, RoleHR, RoleAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
}

func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

func (r Role) Label() string {
	switch r {
	case RoleEmployee:
		return "Employee"
	case RoleManager:
		return "Manager"
	case RoleHR:
		return "HR"
	case RoleAdmin:
		return "Admin"
	default:
		return string(r)
	}
}

// In reports whether r is one of roles.
func (r Role) In(roles ...Role) bool {
	for _, candidate := range roles {
		if r == candidate {
			return true
		}
	}
	return false
}

// IsApprover reports whether r may decide on other people's requests.
func (r Role) IsApprover() bool {
	return r.In(RoleManager, RoleHR, RoleAdmin)
}

// SeesAllRequests reports whether r sees every request regardless of owner.
func (r Role) SeesAllRequests() bool {
	return r.In(RoleHR, RoleAdmin)
}

func (r Role) MarshalText() ([]byte, error) {
	return []byte(r), nil
}

// UnmarshalText rejects unknown roles so a tampered or stale cached user fails to decode.
func (r *Role) UnmarshalText(b []byte) error {
	parsed, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

type User struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	FullName   string    `json:"full_name"`
	Role       Role      `json:"role"`
	Department string    `json:"department,omitempty"`
	ManagerID  string    `json:"manager_id,omitempty"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (u *User) IsActiveUser() bool {
	return u.IsActive
}

func ToDataModel(u *User, passwordHash string) *userDatamodel.User {
	row := &userDatamodel.User{
		ID:           u.ID,
		Email:        u.Email,
		FullName:     u.FullName,
		PasswordHash: passwordHash,
		Role:         string(u.Role),
		Department:   u.Department,
		IsActive:     u.IsActive,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
	if u.ManagerID != "" {
		managerID := u.ManagerID
		row.ManagerID = &managerID
	}
	return row
}

func FromDataModel(row *userDatamodel.User) *User {
	u := &User{
		ID:         row.ID,
		Email:      row.Email,
		FullName:   row.FullName,
		Role:       Role(row.Role),
		Department: row.Department,
		IsActive:   row.IsActive,
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
	}
	if row.ManagerID != nil {
		u.ManagerID = *row.ManagerID
	}
	return u
}

func FromDataModelSlice(rows []*userDatamodel.User) []*User {
	result := make([]*User, len(rows))
	for i, row := range rows {
		result[i] = FromDataModel(row)
	}
	return result
}
