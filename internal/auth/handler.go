package auth

import (
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/shiurfinder/shiurfinder/internal/httputil"
	"github.com/shiurfinder/shiurfinder/internal/logging"
	"github.com/shiurfinder/shiurfinder/internal/ratelimit"
)

const resetRequestedMessage = "If an account exists for this email, a reset link has been sent."

// Handler contains HTTP handlers for authentication endpoints
type Handler struct {
	service     *Service
	rateLimiter *ratelimit.Limiter
	logger      *logging.Logger
}

func NewHandler(service *Service, rateLimiter *ratelimit.Limiter, logger *logging.Logger) *Handler {
	return &Handler{
		service:     service,
		rateLimiter: rateLimiter,
		logger:      logger,
	}
}

// SignupRequest represents the signup request body
type SignupRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// LoginRequest accepts either username or email.
type LoginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password" validate:"required"`
}

// ResetRequest represents the password reset request
type ResetRequest struct {
	Email string `json:"email" validate:"required"`
}

// ResetConfirmRequest represents the password reset confirmation
type ResetConfirmRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// MessageResponse is a plain acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}

// Signup handles user registration
// @Summary      Register a new user
// @Description  Create an account and receive a bearer token.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body SignupRequest true "Signup details"
// @Success      201 {object} AuthResult
// @Failure      400 {object} httputil.ErrorResponse "Validation error or user already exists"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /api/auth/signup [post]
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if h.limited(w, r, "signup") {
		return
	}

	var req SignupRequest
	if !httputil.DecodeAndValidate(w, r, &req) {
		return
	}

	logger = logger.WithFields(map[string]any{"username": req.Username})

	result, err := h.service.Signup(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrUserExists):
			logger.Warn("signup failed: user already exists")
			httputil.RespondErrorWithCode(w, "User already exists", httputil.CodeUserExists, http.StatusBadRequest)
		case errors.Is(err, ErrMissingFields):
			httputil.RespondErrorWithCode(w, err.Error(), httputil.CodeValidationError, http.StatusBadRequest)
		case errors.Is(err, ErrPasswordTooShort):
			httputil.RespondErrorWithCode(w, err.Error(), httputil.CodePasswordTooShort, http.StatusBadRequest)
		default:
			httputil.RespondInternal(w, r, "signup failed", err)
		}
		return
	}

	logger.Info("user signed up", "user_id", result.User.ID, "role", result.User.Role)
	httputil.RespondJSON(w, result, http.StatusCreated)
}

// Login handles user login
// @Summary      User login
// @Description  Authenticate with username or email and receive a bearer token.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body LoginRequest true "Login credentials"
// @Success      200 {object} AuthResult
// @Failure      400 {object} httputil.ErrorResponse "Invalid credentials"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /api/auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if h.limited(w, r, "login") {
		return
	}

	var req LoginRequest
	if !httputil.DecodeAndValidate(w, r, &req) {
		return
	}

	identifier := req.Username
	if identifier == "" {
		identifier = req.Email
	}

	result, err := h.service.Login(r.Context(), identifier, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			logger.Warn("login failed: invalid credentials")
			httputil.RespondErrorWithCode(w, "Invalid credentials", httputil.CodeInvalidCredentials, http.StatusBadRequest)
			return
		}
		httputil.RespondInternal(w, r, "login failed", err)
		return
	}

	logger.Info("user logged in", "user_id", result.User.ID)
	httputil.RespondJSON(w, result, http.StatusOK)
}

// RequestPasswordReset handles the first step of the reset flow
// @Summary      Request a password reset
// @Description  Always answers with the same message whether or not the account exists.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body ResetRequest true "Email address"
// @Success      200 {object} MessageResponse
// @Failure      400 {object} httputil.ErrorResponse "Email required"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Router       /api/auth/reset-password [post]
func (h *Handler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req ResetRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		httputil.RespondErrorWithCode(w, "Email required", httputil.CodeValidationError, http.StatusBadRequest)
		return
	}

	if h.limited(w, r, "reset") {
		return
	}

	onCooldown, err := h.rateLimiter.CheckEmailCooldown(r.Context(), req.Email, "reset")
	if err != nil {
		logger.Error("failed to check email cooldown", "error", err.Error())
	} else if onCooldown {
		// Same answer as a real request so the cooldown does not leak account existence.
		logger.Warn("password reset on cooldown")
		httputil.RespondJSON(w, MessageResponse{Message: resetRequestedMessage}, http.StatusOK)
		return
	}
	if err := h.rateLimiter.SetEmailCooldown(r.Context(), req.Email, "reset"); err != nil {
		logger.Error("failed to set email cooldown", "error", err.Error())
	}

	_ = h.service.RequestPasswordReset(r.Context(), req.Email)

	httputil.RespondJSON(w, MessageResponse{Message: resetRequestedMessage}, http.StatusOK)
}

// ConfirmPasswordReset handles the second step of the reset flow
// @Summary      Confirm a password reset
// @Description  Set a new password with the token from the reset email.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body ResetConfirmRequest true "Token and new password"
// @Success      200 {object} MessageResponse
// @Failure      400 {object} httputil.ErrorResponse "Invalid or expired token"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /api/auth/reset-password/confirm [post]
func (h *Handler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req ResetConfirmRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	if err := h.service.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		switch {
		case errors.Is(err, ErrResetFieldsRequired):
			httputil.RespondErrorWithCode(w, "Token and new password required", httputil.CodeValidationError, http.StatusBadRequest)
		case errors.Is(err, ErrPasswordTooShort):
			httputil.RespondErrorWithCode(w, err.Error(), httputil.CodePasswordTooShort, http.StatusBadRequest)
		case errors.Is(err, ErrInvalidResetToken):
			logger.Warn("password reset failed: invalid or expired token")
			httputil.RespondErrorWithCode(w, "Invalid or expired token", httputil.CodeInvalidResetToken, http.StatusBadRequest)
		default:
			httputil.RespondInternal(w, r, "password reset failed", err)
		}
		return
	}

	logger.Info("password reset completed")
	httputil.RespondJSON(w, MessageResponse{Message: "Password has been reset successfully."}, http.StatusOK)
}

// limited checks and records the per-IP budget for purpose. It writes the
// 429 response itself and reports whether the caller must stop.
func (h *Handler) limited(w http.ResponseWriter, r *http.Request, purpose string) bool {
	logger := logging.GetLoggerFromContext(r.Context())
	ip := getClientIP(r)

	exceeded, err := h.rateLimiter.CheckIPRateLimitWithPurpose(r.Context(), ip, purpose)
	if err != nil {
		// Continue despite error to avoid blocking legitimate requests
		logger.Error("failed to check IP rate limit", "error", err.Error())
	} else if exceeded {
		logger.Warn("IP rate limit exceeded", "ip", ip, "purpose", purpose)
		httputil.RespondErrorWithCode(w, "too many requests, please try again later", httputil.CodeTooManyRequests, http.StatusTooManyRequests)
		return true
	}

	if err := h.rateLimiter.RecordIPRequestWithPurpose(r.Context(), ip, purpose); err != nil {
		logger.Error("failed to record IP request", "error", err.Error())
	}
	return false
}

// getClientIP returns the client address. chi's RealIP middleware has
// already folded X-Forwarded-For and X-Real-IP into RemoteAddr.
func getClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
