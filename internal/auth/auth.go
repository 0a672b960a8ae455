package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"

	internal "github.com/frahmantamala/payment-portal/internal"
	"github.com/frahmantamala/payment-portal/internal/user"
)

const TokenTypeBearer = "bearer"

// TokenGenerator creates and validates access tokens.
type TokenGenerator interface {
	GenerateAccessToken(u *user.User) (token string, err error)
	ValidateToken(tokenString string) (*Claims, error)
}

// ServiceAPI is what the HTTP layer needs from the auth service.
type ServiceAPI interface {
	Login(ctx context.Context, dto LoginDTO) (*LoginResponse, error)
	Register(ctx context.Context, dto user.RegisterDTO) (*user.User, error)
	Authenticate(ctx context.Context, token string) (*user.User, error)
}

// LoginResponse is the body of a successful POST /api/auth/login.
type LoginResponse struct {
	AccessToken string     `json:"access_token"`
	TokenType   string     `json:"token_type"`
	User        *user.User `json:"user"`
}

// Claims represents JWT token claims
type Claims struct {
	UserID string    `json:"user_id"`
	Email  string    `json:"email"`
	Role   user.Role `json:"role"`
	jwt.RegisteredClaims
}

type JWTTokenGenerator struct {
	Secret         []byte
	AccessTokenTTL time.Duration
}

var (
	ErrInvalidCredentials = internal.ErrInvalidCredentials
	ErrInvalidToken       = internal.ErrInvalidToken
	ErrTokenExpired       = internal.ErrTokenExpired
	ErrUserInactive       = internal.ErrUserInactive
	ErrEmailRegistered    = internal.ErrEmailRegistered
)
