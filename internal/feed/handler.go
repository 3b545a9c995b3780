package feed

import (
	"bytes"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/shiurfinder/shiurfinder/internal/httputil"
	"github.com/shiurfinder/shiurfinder/internal/logging"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type ExportRequest struct {
	Favorites []FavoriteItem `json:"favorites" validate:"dive"`
}

// FavoriteItem accepts either id or _id, and rabbi as a name or a resolved
// rabbi object.
type FavoriteItem struct {
	ID    string    `json:"id"`
	OID   string    `json:"_id"`
	Title string    `json:"title"`
	URL   string    `json:"url"`
	Rabbi RabbiName `json:"rabbi"`
}

// RabbiName decodes from "name" or {"name": "..."}. Any other JSON value
// decodes to "".
type RabbiName string

func (n *RabbiName) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	*n = ""
	if len(b) == 0 {
		return nil
	}
	switch b[0] {
	case '"':
		var name string
		if err := json.Unmarshal(b, &name); err != nil {
			return err
		}
		*n = RabbiName(strings.TrimSpace(name))
	case '{':
		var obj struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(b, &obj); err != nil {
			return err
		}
		*n = RabbiName(obj.Name)
	}
	return nil
}

type ExportResponse struct {
	Success bool `json:"success"`
}

type ExportErrorResponse struct {
	Error string `json:"error"`
}

// ExportFavorites publishes an RSS feed of the given favorites
// @Summary      Export favorites feed
// @Description  Resolves each favorite's media url and publishes the RSS feed. Items that cannot be resolved are left out.
// @Tags         feed
// @Accept       json
// @Produce      json
// @Param        request body ExportRequest true "Favorites"
// @Success      200 {object} ExportResponse
// @Failure      400 {object} httputil.ErrorResponse
// @Failure      500 {object} ExportErrorResponse
// @Router       /api/export-favorites [post]
func (h *Handler) ExportFavorites(w http.ResponseWriter, r *http.Request) {
	var req ExportRequest
	if !httputil.DecodeAndValidate(w, r, &req) {
		return
	}

	items := make([]Item, 0, len(req.Favorites))
	for _, f := range req.Favorites {
		id := f.ID
		if id == "" {
			id = f.OID
		}
		items = append(items, Item{ID: id, Title: f.Title, URL: f.URL, RabbiName: string(f.Rabbi)})
	}

	if err := h.service.Export(r.Context(), items); err != nil {
		logging.GetLoggerFromContext(r.Context()).Error("feed export failed", "error", err)
		httputil.RespondJSON(w, ExportErrorResponse{Error: "Failed to publish feed"}, http.StatusInternalServerError)
		return
	}

	httputil.RespondJSON(w, ExportResponse{Success: true}, http.StatusOK)
}

// UserRSS renders a user's favorites feed
// @Summary      User favorites RSS
// @Tags         feed
// @Produce      application/rss+xml
// @Security     BearerAuth
// @Param        username path string true "Username"
// @Success      200 {string} string "RSS document"
// @Failure      401 {object} httputil.ErrorResponse
// @Failure      404 {object} httputil.ErrorResponse "User not found"
// @Router       /api/rss/{username} [get]
func (h *Handler) UserRSS(w http.ResponseWriter, r *http.Request) {
	body, err := h.service.UserFeed(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			httputil.RespondErrorWithCode(w, "User not found", httputil.CodeUserNotFound, http.StatusNotFound)
			return
		}
		httputil.RespondInternal(w, r, "failed to build rss feed", err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
