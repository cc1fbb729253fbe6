package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/frahmantamala/leave-management/internal"
	"github.com/frahmantamala/leave-management/internal/core/common/validation"
	"github.com/frahmantamala/leave-management/internal/employee"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Service is the main auth service with dependencies
type Service struct {
	directory      employee.Directory
	tokenGenerator TokenGenerator
	bcryptCost     int
}

func NewService(directory employee.Directory, tokenGen TokenGenerator, bcryptCost int) *Service {
	if bcryptCost <= 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		directory:      directory,
		tokenGenerator: tokenGen,
		bcryptCost:     bcryptCost,
	}
}

func NewJWTTokenGenerator(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *JWTTokenGenerator {
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 24 * 7 * time.Hour
	}
	return &JWTTokenGenerator{
		AccessTokenSecret:  []byte(accessSecret),
		RefreshTokenSecret: []byte(refreshSecret),
		AccessTokenTTL:     accessTTL,
		RefreshTokenTTL:    refreshTTL,
	}
}

// Authenticate validates credentials and returns tokens. Employees whose
// account is deactivated for a leave period cannot log in.
func (s *Service) Authenticate(ctx context.Context, dto LoginDTO) (AuthTokens, error) {
	if err := validation.Struct(dto); err != nil {
		return AuthTokens{}, err
	}

	e, err := s.directory.FindByEmail(ctx, dto.Email)
	if err != nil {
		return AuthTokens{}, internal.NewInternalError("failed to load employee", err)
	}
	if e == nil || e.PasswordHash == "" {
		return AuthTokens{}, internal.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(e.PasswordHash), []byte(dto.Password)); err != nil {
		return AuthTokens{}, internal.ErrInvalidCredentials
	}

	if !e.Active {
		return AuthTokens{}, internal.ErrUserInactive
	}

	return s.issue(e)
}

// RefreshTokens validates refresh token and returns new tokens
func (s *Service) RefreshTokens(ctx context.Context, refreshToken string) (AuthTokens, error) {
	claims, err := s.tokenGenerator.ValidateToken(refreshToken)
	if err != nil {
		return AuthTokens{}, err
	}
	if !claims.Refresh {
		return AuthTokens{}, internal.ErrInvalidToken
	}

	e, err := s.CurrentEmployee(ctx, claims.EmployeeID)
	if err != nil {
		return AuthTokens{}, err
	}
	return s.issue(e)
}

func (s *Service) issue(e *employee.Employee) (AuthTokens, error) {
	accessToken, err := s.tokenGenerator.GenerateAccessToken(e)
	if err != nil {
		return AuthTokens{}, internal.NewInternalError("failed to sign access token", err)
	}

	refreshToken, err := s.tokenGenerator.GenerateRefreshToken(e)
	if err != nil {
		return AuthTokens{}, internal.NewInternalError("failed to sign refresh token", err)
	}

	tokens := AuthTokens{AccessToken: accessToken, RefreshToken: refreshToken}
	if gen, ok := s.tokenGenerator.(*JWTTokenGenerator); ok {
		tokens.ExpiresAt = time.Now().Add(gen.AccessTokenTTL)
	}
	return tokens, nil
}

func (s *Service) ValidateAccessToken(tokenString string) (*Claims, error) {
	claims, err := s.tokenGenerator.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Refresh {
		return nil, internal.ErrInvalidToken
	}
	return claims, nil
}

// CurrentEmployee reloads the token owner so role and active flag changes
// apply without waiting for token expiry.
func (s *Service) CurrentEmployee(ctx context.Context, employeeID int64) (*employee.Employee, error) {
	e, err := s.directory.FindByID(ctx, employeeID)
	if err != nil {
		return nil, internal.NewInternalError("failed to load employee", err)
	}
	if e == nil {
		return nil, internal.ErrInvalidToken
	}
	if !e.Active {
		return nil, internal.ErrUserInactive
	}
	return e, nil
}

func (s *Service) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (j *JWTTokenGenerator) GenerateAccessToken(e *employee.Employee) (string, error) {
	return j.sign(e, false, j.AccessTokenTTL, j.AccessTokenSecret)
}

func (j *JWTTokenGenerator) GenerateRefreshToken(e *employee.Employee) (string, error) {
	return j.sign(e, true, j.RefreshTokenTTL, j.RefreshTokenSecret)
}

func (j *JWTTokenGenerator) sign(e *employee.Employee, refresh bool, ttl time.Duration, secret []byte) (string, error) {
	now := time.Now()
	claims := &Claims{
		EmployeeID: e.ID,
		Email:      e.Email,
		Role:       e.Role,
		Refresh:    refresh,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   strconv.FormatInt(e.ID, 10),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ValidateToken validates a JWT token and returns claims
func (j *JWTTokenGenerator) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		if claims, ok := token.Claims.(*Claims); ok && claims.Refresh {
			return j.RefreshTokenSecret, nil
		}
		return j.AccessTokenSecret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, internal.ErrTokenExpired
		}
		return nil, internal.ErrInvalidToken.WithCause(err)
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, internal.ErrInvalidToken
}
