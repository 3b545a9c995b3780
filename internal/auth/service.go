package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shiurfinder/shiurfinder/internal/logging"
	"github.com/shiurfinder/shiurfinder/internal/models"
	"github.com/shiurfinder/shiurfinder/internal/store"
)

var (
	ErrUserExists          = errors.New("user already exists")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrMissingFields       = errors.New("username, email and password are required")
	ErrPasswordTooShort    = errors.New("password must be at least 8 characters")
	ErrResetFieldsRequired = errors.New("token and new password required")
	ErrInvalidResetToken   = errors.New("invalid or expired token")
	ErrUserNotFound        = errors.New("user not found")
)

const minPasswordLength = 8

// Mailer sends the password reset link.
type Mailer interface {
	SendPasswordResetEmail(ctx context.Context, toEmail, token string) error
}

// UserSummary is the user part of signup and login responses.
type UserSummary struct {
	ID       string      `json:"id"`
	Username string      `json:"username"`
	Email    string      `json:"email"`
	Role     models.Role `json:"role"`
}

// AuthResult is returned by signup and login.
type AuthResult struct {
	Token string      `json:"token"`
	User  UserSummary `json:"user"`
}

// Service handles authentication business logic
type Service struct {
	users       store.UserStore
	tokens      TokenService
	mailer      Mailer
	logger      *logging.Logger
	tokenTTL    time.Duration
	resetTTL    time.Duration
	adminEmails map[string]bool
	now         func() time.Time
}

func NewService(
	users store.UserStore,
	tokens TokenService,
	mailer Mailer,
	logger *logging.Logger,
	tokenTTL time.Duration,
	resetTTL time.Duration,
	adminEmails []string,
) *Service {
	admins := make(map[string]bool, len(adminEmails))
	for _, e := range adminEmails {
		admins[normalizeEmail(e)] = true
	}
	return &Service{
		users:       users,
		tokens:      tokens,
		mailer:      mailer,
		logger:      logger,
		tokenTTL:    tokenTTL,
		resetTTL:    resetTTL,
		adminEmails: admins,
		now:         time.Now,
	}
}

// Signup creates the account and returns a token for it. Emails listed as
// admin emails get the admin role.
func (s *Service) Signup(ctx context.Context, username, email, password string) (*AuthResult, error) {
	username = strings.TrimSpace(username)
	email = normalizeEmail(email)
	if username == "" || email == "" || password == "" {
		return nil, ErrMissingFields
	}
	if len(password) < minPasswordLength {
		return nil, ErrPasswordTooShort
	}

	passwordHash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	u := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         models.RoleUser,
		Interests:    []string{},
		Favorites:    []string{},
		Following:    []string{},
		ShiurNotes:   []models.ShiurNote{},
		CreatedAt:    s.now(),
	}
	if s.adminEmails[email] {
		u.Role = models.RoleAdmin
	}

	if err := s.users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return s.issue(u)
}

// Login accepts either the username or the email as identifier.
func (s *Service) Login(ctx context.Context, identifier, password string) (*AuthResult, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	u, err := s.lookup(ctx, identifier)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !VerifyPassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	return s.issue(u)
}

// RequestPasswordReset stores a hashed single-use token and mails the link.
// It never reports whether the account exists.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)

	u, err := s.users.FindUserByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("failed to get user for password reset", "error", err)
		}
		return nil
	}

	token, err := generateRandomToken()
	if err != nil {
		s.logger.Warn("failed to generate password reset token", "error", err)
		return nil
	}

	if err := s.users.SetResetToken(ctx, u.ID, hashToken(token), s.now().Add(s.resetTTL)); err != nil {
		s.logger.Warn("failed to store password reset token", "user_id", u.ID, "error", err)
		return nil
	}

	// Send password reset email in goroutine (non-blocking)
	mailCtx := context.WithoutCancel(ctx)
	go func() {
		if err := s.mailer.SendPasswordResetEmail(mailCtx, u.Email, token); err != nil {
			s.logger.Warn("failed to send password reset email", "user_id", u.ID, "error", err)
		}
	}()

	return nil
}

// ResetPassword consumes a reset token and sets the new password.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if token == "" || newPassword == "" {
		return ErrResetFieldsRequired
	}
	if len(newPassword) < minPasswordLength {
		return ErrPasswordTooShort
	}

	u, err := s.users.FindUserByResetToken(ctx, hashToken(token), s.now())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidResetToken
		}
		return fmt.Errorf("failed to find reset token: %w", err)
	}

	passwordHash, err := HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	// UpdatePassword also clears the token, making it single use.
	if err := s.users.UpdatePassword(ctx, u.ID, passwordHash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	return nil
}

// Promote grants the admin role to the user matching identifier.
func (s *Service) Promote(ctx context.Context, identifier string) (*models.User, error) {
	u, err := s.lookup(ctx, strings.TrimSpace(identifier))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if err := s.users.SetRole(ctx, u.ID, models.RoleAdmin); err != nil {
		return nil, fmt.Errorf("failed to set role: %w", err)
	}
	u.Role = models.RoleAdmin
	return u, nil
}

func (s *Service) lookup(ctx context.Context, identifier string) (*models.User, error) {
	if strings.Contains(identifier, "@") {
		u, err := s.users.FindUserByEmail(ctx, normalizeEmail(identifier))
		if err == nil || !errors.Is(err, store.ErrNotFound) {
			return u, err
		}
	}
	return s.users.FindUserByUsername(ctx, identifier)
}

func (s *Service) issue(u *models.User) (*AuthResult, error) {
	token, err := s.tokens.CreateToken(u, s.tokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create token: %w", err)
	}
	return &AuthResult{
		Token: token,
		User: UserSummary{
			ID:       u.ID,
			Username: u.Username,
			Email:    u.Email,
			Role:     u.Role,
		},
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
