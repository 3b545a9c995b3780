package user

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shiurfinder/shiurfinder/internal/auth"
	"github.com/shiurfinder/shiurfinder/internal/httputil"
	"github.com/shiurfinder/shiurfinder/internal/logging"
)

// Handler serves the /api/user routes. Every route runs behind RequireAuth.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes mounts the handlers on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/profile", h.GetProfile)
	r.Post("/interests", h.SetInterests)
	r.Post("/favorites", h.SetFavorites)
	r.Post("/favorites/bulk", h.SetFavorites)
	r.Delete("/favorites/{shiurId}", h.RemoveFavorite)
	r.Put("/shiur-note", h.UpsertNote)
	r.Post("/follow", h.Follow)
	r.Post("/unfollow", h.Unfollow)
	r.Get("/favorites-by-parasha", h.FavoritesByParasha)
	r.Get("/onboarding", h.GetOnboarding)
	r.Post("/onboarding", h.CompleteOnboarding)
}

// ShiurIDsRequest carries a full replacement list.
type ShiurIDsRequest struct {
	ShiurIDs []string `json:"shiurIds" validate:"required"`
}

type NoteRequest struct {
	ShiurID string `json:"shiurId"`
	Note    string `json:"note"`
}

type RabbiRequest struct {
	RabbiID string `json:"rabbiId"`
}

type OnboardingRequest struct {
	Interests []string `json:"interests" validate:"required"`
	Favorites []string `json:"favorites" validate:"required"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

// GetProfile returns the caller's resolved profile
// @Summary      Get profile
// @Description  The user with interests, favorites, following and note shiurim resolved.
// @Tags         user
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} Profile
// @Failure      401 {object} httputil.ErrorResponse
// @Failure      404 {object} httputil.ErrorResponse "User not found"
// @Router       /api/user/profile [get]
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.GetUserIDFromContext(r.Context())

	profile, err := h.service.Profile(r.Context(), userID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	httputil.RespondJSON(w, profile, http.StatusOK)
}

// SetInterests replaces the caller's interests
// @Summary      Replace interests
// @Tags         user
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body ShiurIDsRequest true "Shiur ids"
// @Success      200 {object} MessageResponse
// @Failure      400 {object} httputil.ErrorResponse
// @Failure      401 {object} httputil.ErrorResponse
// @Router       /api/user/interests [post]
func (h *Handler) SetInterests(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.GetUserIDFromContext(r.Context())

	var req ShiurIDsRequest
	if !httputil.DecodeAndValidate(w, r, &req) {
		return
	}

	if err := h.service.SetInterests(r.Context(), userID, req.ShiurIDs); err != nil {
		respondServiceError(w, r, err)
		return
	}

	httputil.RespondJSON(w, MessageResponse{Message: "Interests updated successfully"}, http.StatusOK)
}

// SetFavorites replaces the caller's favorites. Also served at /favorites/bulk.
// @Summary      Replace favorites
// @Tags         user
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body ShiurIDsRequest true "Shiur ids"
// @Success      200 {object} MessageResponse
// @Failure      400 {object} httputil.ErrorResponse
// @Failure      401 {object} httputil.ErrorResponse
// @Router       /api/user/favorites [post]
// @Router       /api/user/favorites/bulk [post]
func (h *Handler) SetFavorites(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.GetUserIDFromContext(r.Context())

	var req ShiurIDsRequest
	if !httputil.DecodeAndValidate(w, r, &req) {
		return
	}

	if err := h.service.SetFavorites(r.Context(), userID, req.ShiurIDs); err != nil {
		respondServiceError(w, r, err)
		return
	}

	httputil.RespondJSON(w, MessageResponse{Message: "Favorites updated successfully"}, http.StatusOK)
}

// RemoveFavorite removes one favorite
// @Summary      Remove a favorite
// @Description  Idempotent: removing a shiur that is not a favorite succeeds.
// @Tags         user
// @Produce      json
// @Security     BearerAuth
// @Param        shiurId path string true "Shiur id"
// @Success      200 {object} MessageResponse
// @Failure      401 {object} httputil.ErrorResponse
// @Router       /api/user/favorites/{shiurId} [delete]
func (h *Handler) RemoveFavorite(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.GetUserIDFromContext(r.Context())

	if err := h.service.RemoveFavorite(r.Context(), userID, chi.URLParam(r, "shiurId")); err != nil {
		respondServiceError(w, r, err)
		return
	}

	httputil.RespondJSON(w, MessageResponse{Message: "Shiur removed from favorites successfully"}, http.StatusOK)
}

// UpsertNote saves, replaces or deletes the caller's note on a shiur
// @Summary      Save a shiur note
// @Description  Empty note text deletes the note.
// @Tags         user
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body NoteRequest true "Shiur id and note"
// @Success      200 {object} MessageResponse
// @Failure      400 {object} httputil.ErrorResponse
// @Failure      401 {object} httputil.ErrorResponse
// @Router       /api/user/shiur-note [put]
func (h *Handler) UpsertNote(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.GetUserIDFromContext(r.Context())

	var req NoteRequest
	if !httputil.DecodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.service.UpsertNote(r.Context(), userID, req.ShiurID, req.Note)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	msg := "Note saved successfully"
	if result == NoteDeleted {
		msg = "Note deleted successfully"
	}
	httputil.RespondJSON(w, MessageResponse{Message: msg}, http.StatusOK)
}

// Follow adds a rabbi to the caller's following set
// @Summary      Follow a rabbi
// @Tags         user
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body RabbiRequest true "Rabbi id"
// @Success      200 {object} MessageResponse
// @Failure      400 {object} httputil.ErrorResponse
// @Failure      404 {object} httputil.ErrorResponse "Rabbi not found"
// @Failure      500 {object} httputil.ErrorResponse
// @Router       /api/user/follow [post]
func (h *Handler) Follow(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.GetUserIDFromContext(r.Context())

	var req RabbiRequest
	if !httputil.DecodeAndValidate(w, r, &req) {
		return
	}

	if err := h.service.Follow(r.Context(), userID, req.RabbiID); err != nil {
		respondServiceError(w, r, err)
		return
	}

	httputil.RespondJSON(w, MessageResponse{Message: "Following rabbi successfully"}, http.StatusOK)
}

// Unfollow removes a rabbi from the caller's following set
// @Summary      Unfollow a rabbi
// @Tags         user
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body RabbiRequest true "Rabbi id"
// @Success      200 {object} MessageResponse
// @Failure      400 {object} httputil.ErrorResponse
// @Failure      500 {object} httputil.ErrorResponse
// @Router       /api/user/unfollow [post]
func (h *Handler) Unfollow(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.GetUserIDFromContext(r.Context())

	var req RabbiRequest
	if !httputil.DecodeAndValidate(w, r, &req) {
		return
	}

	if err := h.service.Unfollow(r.Context(), userID, req.RabbiID); err != nil {
		respondServiceError(w, r, err)
		return
	}

	httputil.RespondJSON(w, MessageResponse{Message: "Unfollowed rabbi successfully"}, http.StatusOK)
}

// FavoritesByParasha lists the caller's favorites for one parasha
// @Summary      Favorites by parasha
// @Description  Exact, case-sensitive match on the parasha tag.
// @Tags         user
// @Produce      json
// @Security     BearerAuth
// @Param        parasha query string true "Parasha"
// @Success      200 {array} models.Shiur
// @Failure      400 {object} httputil.ErrorResponse
// @Failure      401 {object} httputil.ErrorResponse
// @Router       /api/user/favorites-by-parasha [get]
func (h *Handler) FavoritesByParasha(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.GetUserIDFromContext(r.Context())

	shiurim, err := h.service.FavoritesByParasha(r.Context(), userID, r.URL.Query().Get("parasha"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	httputil.RespondJSON(w, shiurim, http.StatusOK)
}

// GetOnboarding reports the caller's onboarding stage
// @Summary      Onboarding status
// @Tags         user
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} OnboardingStatus
// @Failure      401 {object} httputil.ErrorResponse
// @Router       /api/user/onboarding [get]
func (h *Handler) GetOnboarding(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.GetUserIDFromContext(r.Context())

	status, err := h.service.OnboardingStatus(r.Context(), userID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	httputil.RespondJSON(w, status, http.StatusOK)
}

// CompleteOnboarding validates and saves both onboarding selections at once
// @Summary      Complete onboarding
// @Description  20-30 interests and 5-10 favorites drawn from them, saved in one write.
// @Tags         user
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body OnboardingRequest true "Selections"
// @Success      200 {object} OnboardingStatus
// @Failure      400 {object} httputil.ErrorResponse
// @Failure      401 {object} httputil.ErrorResponse
// @Router       /api/user/onboarding [post]
func (h *Handler) CompleteOnboarding(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.GetUserIDFromContext(r.Context())

	var req OnboardingRequest
	if !httputil.DecodeAndValidate(w, r, &req) {
		return
	}

	status, err := h.service.CompleteOnboarding(r.Context(), userID, req.Interests, req.Favorites)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	logging.GetLoggerFromContext(r.Context()).Info("onboarding completed",
		"interests", status.Interests,
		"favorites", status.Favorites,
	)
	httputil.RespondJSON(w, status, http.StatusOK)
}

func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	logger := logging.GetLoggerFromContext(r.Context())

	switch {
	case errors.Is(err, ErrUserNotFound):
		logger.Warn("user not found")
		httputil.RespondErrorWithCode(w, "User not found", httputil.CodeUserNotFound, http.StatusNotFound)
	case errors.Is(err, ErrRabbiNotFound):
		httputil.RespondErrorWithCode(w, "Rabbi not found", httputil.CodeRabbiNotFound, http.StatusNotFound)
	case errors.Is(err, ErrShiurIDRequired), errors.Is(err, ErrRabbiIDRequired), errors.Is(err, ErrParashaRequired),
		errors.Is(err, ErrInvalidShiurID):
		httputil.RespondErrorWithCode(w, err.Error(), httputil.CodeValidationError, http.StatusBadRequest)
	case errors.Is(err, ErrNoteTooLong):
		httputil.RespondErrorWithCode(w, err.Error(), httputil.CodeNoteTooLong, http.StatusBadRequest)
	case errors.Is(err, ErrInvalidSelection), errors.Is(err, ErrWrongStage), errors.Is(err, ErrUnknownShiurim):
		logger.Warn("onboarding rejected", "error", err.Error())
		httputil.RespondErrorWithCode(w, err.Error(), httputil.CodeInvalidSelection, http.StatusBadRequest)
	case errors.Is(err, ErrUpstreamFailure):
		httputil.RespondInternal(w, r, "follower count update failed", err)
	default:
		httputil.RespondInternal(w, r, "user request failed", err)
	}
}
