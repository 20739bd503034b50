package uploads

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"codedrop/internal/api"
	userctx "codedrop/internal/context"
)

// multipartMemory is the part of a multipart body kept in memory; the rest
// spills to temporary files
const multipartMemory = 32 << 20

type Handler struct {
	service Service
	maxSize int64
}

func NewHandler(service Service, maxSize int64) *Handler {
	return &Handler{
		service: service,
		maxSize: maxSize,
	}
}

// AnonymousUploadResponse is returned by a successful anonymous upload
type AnonymousUploadResponse struct {
	Code    string `json:"code"`
	Success bool   `json:"success"`
}

// CodeResponse carries a freshly issued share code
type CodeResponse struct {
	Code string `json:"code"`
}

// HandleNewCode issues a share code for a subsequent anonymous upload
func (h *Handler) HandleNewCode(w http.ResponseWriter, r *http.Request) {
	code, err := h.service.NewCode()
	if err != nil {
		log.Error().
			Err(err).
			Msg("failed to generate share code")
		api.WriteError(w, http.StatusInternalServerError, "Failed to generate code")
		return
	}
	api.WriteJSON(w, http.StatusOK, CodeResponse{Code: code})
}

// HandleAnonymousUpload stores a file and/or text under a share code
func (h *Handler) HandleAnonymousUpload(w http.ResponseWriter, r *http.Request) {
	file, text, cleanup, ok := h.parseForm(w, r)
	if !ok {
		return
	}
	defer cleanup()

	code := strings.TrimSpace(r.FormValue("code"))
	upload, err := h.service.CreateAnonymous(r.Context(), AnonymousUploadRequest{
		Code: code,
		Text: text,
		File: file,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	api.WriteJSON(w, http.StatusOK, AnonymousUploadResponse{
		Code:    *upload.Code,
		Success: true,
	})
}

// HandleAnonymousDownload resolves a share code to its record
func (h *Handler) HandleAnonymousDownload(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		api.WriteError(w, http.StatusBadRequest, "Code is required")
		return
	}

	upload, err := h.service.Resolve(r.Context(), code)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	api.WriteJSON(w, http.StatusOK, upload)
}

// HandleListUploads returns one page of the user's uploads
func (h *Handler) HandleListUploads(w http.ResponseWriter, r *http.Request) {
	user := userctx.GetUserFromContext(r.Context())
	if user == nil {
		api.WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	page := 0
	if raw := r.URL.Query().Get("page"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			api.WriteError(w, http.StatusBadRequest, "Invalid page")
			return
		}
		page = parsed
	}

	result, err := h.service.ListUserUploads(r.Context(), user.ID, page)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	api.WriteJSON(w, http.StatusOK, result)
}

// HandleCreateUpload stores a file and/or text for the signed-in user
func (h *Handler) HandleCreateUpload(w http.ResponseWriter, r *http.Request) {
	user := userctx.GetUserFromContext(r.Context())
	if user == nil {
		api.WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	file, text, cleanup, ok := h.parseForm(w, r)
	if !ok {
		return
	}
	defer cleanup()

	upload, err := h.service.CreateForUser(r.Context(), user.ID, UserUploadRequest{
		Text: text,
		File: file,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	api.WriteJSON(w, http.StatusCreated, upload)
}

// HandleDeleteUpload removes one of the user's uploads
func (h *Handler) HandleDeleteUpload(w http.ResponseWriter, r *http.Request) {
	user := userctx.GetUserFromContext(r.Context())
	if user == nil {
		api.WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, "Invalid upload id")
		return
	}

	if err := h.service.Delete(r.Context(), id, user.ID); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleServeObject streams a stored object by key
func (h *Handler) HandleServeObject(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	if key == "" {
		http.NotFound(w, r)
		return
	}

	if err := h.service.StreamObject(r.Context(), key, w); err != nil {
		if errors.Is(err, ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		log.Error().
			Err(err).
			Str("key", key).
			Msg("failed to serve object")
		http.Error(w, "Error serving file", http.StatusInternalServerError)
	}
}

// parseForm reads the optional file and text fields of a multipart form.
// It writes the error response itself and reports ok=false on failure.
func (h *Handler) parseForm(w http.ResponseWriter, r *http.Request) (*Content, string, func(), bool) {
	// Leave room for the other form fields and multipart framing
	r.Body = http.MaxBytesReader(w, r.Body, h.maxSize+1<<20)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			api.WriteError(w, http.StatusRequestEntityTooLarge, "File too large")
			return nil, "", nil, false
		}
		api.WriteError(w, http.StatusBadRequest, "Invalid multipart form")
		return nil, "", nil, false
	}

	cleanup := func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			log.Warn().
				Err(err).
				Msg("failed to remove multipart temp files")
		}
	}

	file, header, err := r.FormFile("file")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return nil, r.FormValue("text"), cleanup, true
	case err != nil:
		cleanup()
		api.WriteError(w, http.StatusBadRequest, "Invalid file")
		return nil, "", nil, false
	}

	content := &Content{
		Reader:      file,
		Filename:    header.Filename,
		Size:        header.Size,
		ContentType: header.Header.Get("Content-Type"),
	}

	return content, r.FormValue("text"), func() {
		closeFile(file)
		cleanup()
	}, true
}

func closeFile(file multipart.File) {
	if err := file.Close(); err != nil {
		log.Warn().
			Err(err).
			Msg("error closing uploaded file")
	}
}

// writeServiceError maps service errors to status codes and a single message
func writeServiceError(w http.ResponseWriter, err error) {
	var quotaErr *QuotaError
	switch {
	case errors.Is(err, ErrFileTooLarge):
		api.WriteError(w, http.StatusRequestEntityTooLarge, "File too large")
	case errors.Is(err, ErrValidation):
		api.WriteError(w, http.StatusBadRequest, strings.TrimPrefix(err.Error(), ErrValidation.Error()+": "))
	case errors.As(err, &quotaErr):
		api.WriteError(w, http.StatusInsufficientStorage, quotaErr.Error())
	case errors.Is(err, ErrNotFound):
		api.WriteError(w, http.StatusNotFound, "Invalid code or file not found")
	case errors.Is(err, ErrForbidden):
		api.WriteError(w, http.StatusForbidden, "Forbidden")
	case errors.Is(err, ErrCodeInUse):
		api.WriteError(w, http.StatusConflict, "Code already in use")
	case errors.Is(err, ErrStorage):
		log.Error().Err(err).Msg("object storage failure")
		api.WriteError(w, http.StatusInternalServerError, "Failed to store file")
	default:
		log.Error().Err(err).Msg("request failed")
		api.WriteError(w, http.StatusInternalServerError, "Internal server error")
	}
}
