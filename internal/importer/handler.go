package importer

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/shiurfinder/shiurfinder/internal/httputil"
	"github.com/shiurfinder/shiurfinder/internal/logging"
)

type Handler struct {
	service   *Service
	maxUpload int64
}

func NewHandler(service *Service, maxUpload int64) *Handler {
	return &Handler{service: service, maxUpload: maxUpload}
}

// Upload imports a CSV of shiurim
// @Summary      Bulk import shiurim
// @Description  Multipart form with a parasha field and a CSV file (columns author|rabbi, title, link).
// @Tags         admin
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        parasha formData string true "Parasha name"
// @Param        file    formData file   true "CSV file"
// @Success      200 {object} Summary
// @Failure      400 {object} httputil.ErrorResponse
// @Failure      403 {object} httputil.ErrorResponse
// @Router       /api/admin/upload-shiurim [post]
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if h.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	}
	mr, err := r.MultipartReader()
	if err != nil {
		logger.Warn("upload is not multipart", "error", err)
		httputil.RespondErrorWithCode(w, "CSV file required", httputil.CodeValidationError, http.StatusBadRequest)
		return
	}

	// The file is parsed straight off the wire when parasha arrives first.
	// Otherwise it is held in memory, bounded by maxUpload. Only the first
	// file part is imported.
	var (
		parasha  string
		pending  *bytes.Buffer
		summary  *Summary
		sawFile  bool
		parseErr error
	)
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			logger.Warn("failed to read multipart body", "error", err)
			httputil.RespondErrorWithCode(w, "invalid multipart body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
			return
		}

		switch part.FormName() {
		case "parasha":
			v, err := io.ReadAll(io.LimitReader(part, 1024))
			if err != nil {
				httputil.RespondErrorWithCode(w, "invalid multipart body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
				return
			}
			parasha = string(v)
		case "file":
			if sawFile {
				logger.Warn("ignoring extra file part", "filename", part.FileName())
				break
			}
			sawFile = true
			if parasha == "" {
				pending = new(bytes.Buffer)
				if _, err := io.Copy(pending, part); err != nil {
					logger.Warn("failed to buffer upload", "error", err)
					httputil.RespondErrorWithCode(w, "invalid multipart body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
					return
				}
				continue
			}
			summary, parseErr = h.service.Import(r.Context(), part, parasha)
		}
		_ = part.Close()
	}

	if summary == nil && parseErr == nil {
		if strings.TrimSpace(parasha) == "" {
			httputil.RespondErrorWithCode(w, "Parasha name required", httputil.CodeValidationError, http.StatusBadRequest)
			return
		}
		if !sawFile {
			httputil.RespondErrorWithCode(w, "CSV file required", httputil.CodeValidationError, http.StatusBadRequest)
			return
		}
		summary, parseErr = h.service.Import(r.Context(), pending, parasha)
	}

	if parseErr != nil {
		switch {
		case errors.Is(parseErr, ErrParashaRequired):
			httputil.RespondErrorWithCode(w, "Parasha name required", httputil.CodeValidationError, http.StatusBadRequest)
		case errors.Is(parseErr, ErrInvalidCSV):
			logger.Warn("rejected CSV upload", "error", parseErr)
			httputil.RespondErrorWithCode(w, parseErr.Error(), httputil.CodeValidationError, http.StatusBadRequest)
		default:
			httputil.RespondInternal(w, r, "failed to import shiurim", parseErr)
		}
		return
	}

	httputil.RespondJSON(w, summary, http.StatusOK)
}
