package auth

import (
	"strings"

	internal "github.com/frahmantamala/payment-portal/internal"
)

// LoginDTO is read from the OAuth2-style password form: username carries the email.
type LoginDTO struct {
	Username string
	Password string
}

// Validate checks required fields.
func (d LoginDTO) Validate() error {
	if strings.TrimSpace(d.Username) == "" {
		return internal.NewValidationFieldError("username", "username is required", internal.ErrCodeValidationFailed)
	}
	if d.Password == "" {
		return internal.NewValidationFieldError("password", "password is required", internal.ErrCodeValidationFailed)
	}
	return nil
}
