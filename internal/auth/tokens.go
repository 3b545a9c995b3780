package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/shiurfinder/shiurfinder/internal/config"
	"github.com/shiurfinder/shiurfinder/internal/models"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// TokenClaims is what a verified bearer token says about its holder.
type TokenClaims struct {
	UserID    string
	Username  string
	Role      models.Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenService defines the interface for token creation and validation.
// Implementations include PasetoService (PASETO v4.local) and JWTService (HS256).
type TokenService interface {
	CreateToken(u *models.User, duration time.Duration) (string, error)
	VerifyToken(tokenStr string) (*TokenClaims, error)
}

// NewTokenService builds the token service selected by AUTH_TOKEN_KIND.
func NewTokenService(cfg config.AuthConfig) (TokenService, error) {
	switch cfg.TokenKind {
	case config.TokenPaseto:
		return NewPasetoService(cfg.PasetoKey)
	case config.TokenJWT:
		return NewJWTService(cfg.JWTSecret)
	default:
		return nil, fmt.Errorf("unknown token kind %q", cfg.TokenKind)
	}
}
