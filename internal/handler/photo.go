package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/photoshare/internal/apperror"
	"github.com/sakif/photoshare/internal/auth"
	"github.com/sakif/photoshare/internal/service"
)

// PhotoField is the multipart field that carries uploaded files.
const PhotoField = "photos"

// DefaultMaxMemory is how much of a multipart body is held in memory before
// the rest spills to temporary files.
const DefaultMaxMemory = 32 << 20

// PhotoHandler serves album uploads and listings.
type PhotoHandler struct {
	photos    *service.PhotoService
	maxMemory int64
	logger    *slog.Logger
}

// NewPhotoHandler creates a PhotoHandler. A maxMemory of zero or less uses
// DefaultMaxMemory.
func NewPhotoHandler(photos *service.PhotoService, maxMemory int64, logger *slog.Logger) *PhotoHandler {
	if maxMemory <= 0 {
		maxMemory = DefaultMaxMemory
	}
	return &PhotoHandler{
		photos:    photos,
		maxMemory: maxMemory,
		logger:    logger,
	}
}

// UploadResponse is the body of a successful upload.
type UploadResponse struct {
	Message string   `json:"message"`
	ID      int64    `json:"id"`
	Paths   []string `json:"paths"`
}

// HandleAddPhotos stores one batch of up to model.MaxBatchFiles files as an
// album.
//
// HTTP: POST /addphotos
// BODY: multipart/form-data with files under "photos" and text fields
// title, description and user_id.
//
// When the request was authenticated (RequireAuth ran), user_id must be the
// caller's own account id.
func (h *PhotoHandler) HandleAddPhotos(w http.ResponseWriter, r *http.Request) {
	form, err := readUploadForm(r, h.maxMemory, h.photos.CheckBatchSize)
	if err != nil {
		h.logger.Warn("upload body rejected", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}
	defer form.cleanup()

	ownerID, err := parseID("user_id", form.value("user_id"))
	if err != nil {
		writeError(w, err)
		return
	}

	if callerID, ok := auth.AccountIDFromContext(r.Context()); ok && callerID != ownerID {
		h.logger.Warn("upload for another account refused",
			slog.Int64("callerID", callerID),
			slog.Int64("userID", ownerID),
		)
		writeError(w, apperror.Forbidden("you can only upload photos to your own account"))
		return
	}

	album, err := h.photos.UploadBatch(r.Context(), ownerID,
		form.value("title"),
		form.value("description"),
		form.uploadFiles(),
	)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, UploadResponse{
		Message: "Photos uploaded successfully",
		ID:      album.ID,
		Paths:   album.Paths,
	})
}

// HandleList returns every album owned by the account in the path.
//
// HTTP: GET /photos/{userId}
func (h *PhotoHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ownerID, err := parseID("userId", chi.URLParam(r, "userId"))
	if err != nil {
		writeError(w, err)
		return
	}

	albums, err := h.photos.ListByOwner(r.Context(), ownerID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, albums)
}

func parseID(field, raw string) (int64, error) {
	if raw == "" {
		return 0, apperror.ValidationFailed(field, field+" is required")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.ValidationFailed(field, field+" must be a positive integer")
	}
	return id, nil
}
