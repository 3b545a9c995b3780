package catalog

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/shiurfinder/shiurfinder/internal/httputil"
	"github.com/shiurfinder/shiurfinder/internal/logging"
	"github.com/shiurfinder/shiurfinder/internal/models"
	"github.com/shiurfinder/shiurfinder/internal/store"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type CreateShiurRequest struct {
	Title       string       `json:"title" validate:"required"`
	Description string       `json:"description"`
	Rabbi       string       `json:"rabbi" validate:"required"`
	URL         string       `json:"url" validate:"required,url"`
	Duration    string       `json:"duration"`
	Topic       string       `json:"topic"`
	Parasha     string       `json:"parasha"`
	Level       models.Level `json:"level"`
}

// UpdateShiurRequest changes only the fields present in the body.
type UpdateShiurRequest struct {
	Title       *string       `json:"title" validate:"omitempty,min=1"`
	Description *string       `json:"description"`
	Rabbi       *string       `json:"rabbi" validate:"omitempty,min=1"`
	URL         *string       `json:"url" validate:"omitempty,url"`
	Duration    *string       `json:"duration"`
	Topic       *string       `json:"topic"`
	Parasha     *string       `json:"parasha"`
	Level       *models.Level `json:"level"`
}

type CreateRabbiRequest struct {
	Name  string `json:"name" validate:"required"`
	Bio   string `json:"bio"`
	Image string `json:"image"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

// ListShiurim lists shiurim
// @Summary      List shiurim
// @Description  Rabbi-resolved shiurim. Unfiltered results come back in random order.
// @Tags         shiurim
// @Produce      json
// @Param        ids   query string false "Comma separated shiur ids"
// @Param        rabbi query string false "Comma separated rabbi ids"
// @Success      200 {array} models.Shiur
// @Failure      500 {object} httputil.ErrorResponse
// @Router       /api/shiurim [get]
func (h *Handler) ListShiurim(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.ShiurFilter{
		IDs:      splitList(q.Get("ids")),
		RabbiIDs: splitList(q.Get("rabbi")),
	}

	shiurim, err := h.service.ListShiurim(r.Context(), filter)
	if err != nil {
		httputil.RespondInternal(w, r, "failed to list shiurim", err)
		return
	}

	httputil.RespondJSON(w, shiurim, http.StatusOK)
}

// GetShiur returns one shiur
// @Summary      Get a shiur
// @Tags         shiurim
// @Produce      json
// @Param        id path string true "Shiur id"
// @Success      200 {object} models.Shiur
// @Failure      404 {object} httputil.ErrorResponse "Shiur not found"
// @Router       /api/shiurim/{id} [get]
func (h *Handler) GetShiur(w http.ResponseWriter, r *http.Request) {
	sh, err := h.service.GetShiur(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	httputil.RespondJSON(w, sh, http.StatusOK)
}

// CreateShiur adds a shiur
// @Summary      Create a shiur
// @Tags         shiurim
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body CreateShiurRequest true "Shiur"
// @Success      201 {object} models.Shiur
// @Failure      400 {object} httputil.ErrorResponse
// @Failure      403 {object} httputil.ErrorResponse
// @Router       /api/shiurim [post]
func (h *Handler) CreateShiur(w http.ResponseWriter, r *http.Request) {
	var req CreateShiurRequest
	if !httputil.DecodeAndValidate(w, r, &req) {
		return
	}

	sh := &models.Shiur{
		Title:       req.Title,
		Description: req.Description,
		RabbiID:     req.Rabbi,
		URL:         req.URL,
		Duration:    req.Duration,
		Topic:       req.Topic,
		Parasha:     req.Parasha,
		Level:       req.Level,
	}
	if err := h.service.CreateShiur(r.Context(), sh); err != nil {
		respondServiceError(w, r, err)
		return
	}

	logging.GetLoggerFromContext(r.Context()).Info("shiur created", "shiur_id", sh.ID)
	httputil.RespondJSON(w, sh, http.StatusCreated)
}

// UpdateShiur edits a shiur
// @Summary      Update a shiur
// @Description  Only fields present in the body change.
// @Tags         shiurim
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Shiur id"
// @Param        request body UpdateShiurRequest true "Fields to change"
// @Success      200 {object} models.Shiur
// @Failure      400 {object} httputil.ErrorResponse
// @Failure      403 {object} httputil.ErrorResponse
// @Failure      404 {object} httputil.ErrorResponse "Shiur not found"
// @Router       /api/shiurim/{id} [put]
func (h *Handler) UpdateShiur(w http.ResponseWriter, r *http.Request) {
	var req UpdateShiurRequest
	if !httputil.DecodeAndValidate(w, r, &req) {
		return
	}

	sh, err := h.service.UpdateShiur(r.Context(), chi.URLParam(r, "id"), ShiurPatch{
		Title:       req.Title,
		Description: req.Description,
		RabbiID:     req.Rabbi,
		URL:         req.URL,
		Duration:    req.Duration,
		Topic:       req.Topic,
		Parasha:     req.Parasha,
		Level:       req.Level,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	httputil.RespondJSON(w, sh, http.StatusOK)
}

// DeleteShiur removes a shiur
// @Summary      Delete a shiur
// @Tags         shiurim
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Shiur id"
// @Success      200 {object} MessageResponse
// @Failure      403 {object} httputil.ErrorResponse
// @Failure      404 {object} httputil.ErrorResponse "Shiur not found"
// @Router       /api/shiurim/{id} [delete]
func (h *Handler) DeleteShiur(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.DeleteShiur(r.Context(), id); err != nil {
		respondServiceError(w, r, err)
		return
	}

	logging.GetLoggerFromContext(r.Context()).Info("shiur deleted", "shiur_id", id)
	httputil.RespondJSON(w, MessageResponse{Message: "Shiur deleted successfully"}, http.StatusOK)
}

// ListRabbis lists every rabbi
// @Summary      List rabbis
// @Tags         rabbis
// @Produce      json
// @Success      200 {array} models.Rabbi
// @Failure      500 {object} httputil.ErrorResponse
// @Router       /api/rabbis [get]
func (h *Handler) ListRabbis(w http.ResponseWriter, r *http.Request) {
	rabbis, err := h.service.ListRabbis(r.Context())
	if err != nil {
		httputil.RespondInternal(w, r, "failed to list rabbis", err)
		return
	}

	httputil.RespondJSON(w, rabbis, http.StatusOK)
}

// CreateRabbi adds a rabbi
// @Summary      Create a rabbi
// @Tags         rabbis
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body CreateRabbiRequest true "Rabbi"
// @Success      201 {object} models.Rabbi
// @Failure      400 {object} httputil.ErrorResponse
// @Failure      403 {object} httputil.ErrorResponse
// @Router       /api/rabbis [post]
func (h *Handler) CreateRabbi(w http.ResponseWriter, r *http.Request) {
	var req CreateRabbiRequest
	if !httputil.DecodeAndValidate(w, r, &req) {
		return
	}

	rabbi := &models.Rabbi{Name: strings.TrimSpace(req.Name), Bio: req.Bio, Image: req.Image}
	if err := h.service.CreateRabbi(r.Context(), rabbi); err != nil {
		httputil.RespondInternal(w, r, "failed to create rabbi", err)
		return
	}

	httputil.RespondJSON(w, rabbi, http.StatusCreated)
}

func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrShiurNotFound):
		httputil.RespondErrorWithCode(w, "Shiur not found", httputil.CodeShiurNotFound, http.StatusNotFound)
	case errors.Is(err, ErrRabbiNotFound):
		httputil.RespondErrorWithCode(w, "Rabbi not found", httputil.CodeRabbiNotFound, http.StatusBadRequest)
	case errors.Is(err, ErrInvalidLevel):
		httputil.RespondErrorWithCode(w, err.Error(), httputil.CodeValidationError, http.StatusBadRequest)
	default:
		httputil.RespondInternal(w, r, "catalog request failed", err)
	}
}

// splitList parses "a, b,,c" into [a b c]. An empty value means no filter.
func splitList(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
