package backup

import (
	"errors"
	"net/http"

	"github.com/shiurfinder/shiurfinder/internal/httputil"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type Response struct {
	Message   string `json:"message"`
	Directory string `json:"directory"`
}

// Backup dumps the database
// @Summary      Back up the database
// @Description  Runs mongodump or pg_dump for the active store into a new directory under BACKUP_DIR.
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} Response
// @Failure      400 {object} httputil.ErrorResponse "Store has no dump tool"
// @Failure      403 {object} httputil.ErrorResponse
// @Failure      500 {object} httputil.ErrorResponse
// @Router       /api/admin/backup-mongodb [post]
func (h *Handler) Backup(w http.ResponseWriter, r *http.Request) {
	dir, err := h.service.Run(r.Context())
	if err != nil {
		if errors.Is(err, ErrUnsupported) {
			httputil.RespondErrorWithCode(w, "backup not supported", httputil.CodeUnsupported, http.StatusBadRequest)
			return
		}
		httputil.RespondInternal(w, r, "backup failed", err)
		return
	}

	httputil.RespondJSON(w, Response{Message: "Backup completed", Directory: dir}, http.StatusOK)
}
