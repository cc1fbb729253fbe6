package auth

import (
	"context"
	"time"

	"github.com/frahmantamala/leave-management/internal/employee"
	"github.com/golang-jwt/jwt/v5"
)

type ServiceAPI interface {
	Authenticate(ctx context.Context, dto LoginDTO) (AuthTokens, error)
	RefreshTokens(ctx context.Context, refreshToken string) (AuthTokens, error)
	ValidateAccessToken(tokenString string) (*Claims, error)
	CurrentEmployee(ctx context.Context, employeeID int64) (*employee.Employee, error)
	HashPassword(password string) (string, error)
}

// TokenGenerator creates and checks signed tokens.
type TokenGenerator interface {
	GenerateAccessToken(e *employee.Employee) (token string, err error)
	GenerateRefreshToken(e *employee.Employee) (token string, err error)
	ValidateToken(tokenString string) (*Claims, error)
}

type AuthTokens struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Claims represents JWT token claims
type Claims struct {
	EmployeeID int64         `json:"employee_id"`
	Email      string        `json:"email"`
	Role       employee.Role `json:"role"`
	Refresh    bool          `json:"refresh,omitempty"`
	jwt.RegisteredClaims
}

type JWTTokenGenerator struct {
	AccessTokenSecret  []byte
	RefreshTokenSecret []byte
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
}
