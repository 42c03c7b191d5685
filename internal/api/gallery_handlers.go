package api

import (
	"errors"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"photoseleven/internal/gallery"
	"photoseleven/internal/models"
)

// Media uploads and downloads a single media file addressed by filename.
func (h *Handler) Media(w http.ResponseWriter, r *http.Request) {
	filename := strings.TrimPrefix(r.URL.Path, "/api/gallery/media/")
	if filename == "" {
		writeFail(w, http.StatusForbidden, ErrCodeUnsupported)
		return
	}

	identity, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodPost:
		h.requireMediaContent(func(w http.ResponseWriter, r *http.Request) {
			h.uploadMedia(w, r, identity, filename)
		})(w, r)
	case http.MethodGet:
		h.downloadMedia(w, identity, filename)
	default:
		methodNotAllowed(w, "GET, POST")
	}
}

// uploadMedia runs the upload pipeline: stage the bytes, extract the capture
// timestamp, publish the blob atomically, then append the feed entry. A failed
// ledger append removes the published blob so readers never observe a media
// file without its feed record.
func (h *Handler) uploadMedia(w http.ResponseWriter, r *http.Request, identity Identity, filename string) {
	owner := identity.User.Username

	staged, err := h.MediaStore.Stage(owner, filename, r.Body)
	if err != nil {
		switch {
		case errors.Is(err, gallery.ErrUnsupportedMedia):
			writeFail(w, http.StatusForbidden, ErrCodeUnsupported)
		case errors.Is(err, gallery.ErrMediaExists):
			writeFail(w, http.StatusForbidden, ErrCodeMediaExists)
		default:
			h.Logger.Error("media staging failed", "owner", owner, "filename", filename, "error", err)
			writeFail(w, http.StatusInternalServerError, ErrCodeInternal)
		}
		return
	}

	uploadedAt := h.now().UTC()
	mimeType, _ := h.MediaStore.ContentType(filename)
	createdAt := gallery.FallbackTimestamp(uploadedAt)
	isNewPhoto := false
	if mimeType == "image/jpeg" {
		createdAt, err = h.captureTimestamp(staged)
		if err != nil {
			staged.Discard()
			if errors.Is(err, gallery.ErrNoCaptureMetadata) {
				writeFail(w, http.StatusUnprocessableEntity, ErrCodeNoCaptureMeta)
				return
			}
			h.Logger.Error("metadata extraction failed", "owner", owner, "filename", filename, "error", err)
			writeFail(w, http.StatusInternalServerError, ErrCodeInternal)
			return
		}
		isNewPhoto = true
	}

	if err := staged.Publish(); err != nil {
		if errors.Is(err, gallery.ErrMediaExists) {
			writeFail(w, http.StatusForbidden, ErrCodeMediaExists)
			return
		}
		staged.Discard()
		h.Logger.Error("media publish failed", "owner", owner, "filename", filename, "error", err)
		writeFail(w, http.StatusInternalServerError, ErrCodeInternal)
		return
	}

	entry := models.FeedEntry{
		Owner:         owner,
		Filename:      filename,
		IsNewPhoto:    isNewPhoto,
		UploadedAt:    uploadedAt,
		CreatedAt:     createdAt,
		UploaderToken: identity.Token,
		RequestPath:   r.URL.Path,
	}
	if err := h.Store.AppendFeedEntry(r.Context(), entry); err != nil {
		// Compensating delete keeps blob and ledger consistent.
		if removeErr := h.MediaStore.Remove(owner, filename); removeErr != nil {
			h.Logger.Error("orphaned media cleanup failed", "owner", owner, "filename", filename, "error", removeErr)
		}
		h.Logger.Error("feed append failed", "owner", owner, "filename", filename, "error", err)
		writeFail(w, http.StatusInternalServerError, ErrCodeInternal)
		return
	}

	h.Logger.Info("media uploaded", "owner", owner, "filename", filename, "bytes", staged.Size())
	writeSuccess(w, http.StatusCreated, map[string]interface{}{"request_path": r.URL.Path})
}

func (h *Handler) captureTimestamp(staged *gallery.Staged) (string, error) {
	f, err := os.Open(staged.Path())
	if err != nil {
		return "", err
	}
	defer f.Close()
	return gallery.CaptureTimestamp(f)
}

func (h *Handler) downloadMedia(w http.ResponseWriter, identity Identity, filename string) {
	f, mimeType, err := h.MediaStore.Open(identity.User.Username, filename)
	if err != nil {
		switch {
		case errors.Is(err, gallery.ErrUnsupportedMedia):
			writeFail(w, http.StatusForbidden, ErrCodeUnsupported)
		case errors.Is(err, gallery.ErrMediaNotExist):
			writeFail(w, http.StatusForbidden, ErrCodeMediaNotExist)
		default:
			h.Logger.Error("media open failed", "filename", filename, "error", err)
			writeFail(w, http.StatusInternalServerError, ErrCodeInternal)
		}
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", mimeType)
	if info, err := f.Stat(); err == nil {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	}
	w.WriteHeader(http.StatusOK)

	buf := make([]byte, h.MediaStore.ChunkSize())
	if _, err := io.CopyBuffer(w, f, buf); err != nil {
		// Headers are already sent; nothing to report to the client.
		h.Logger.Warn("media stream interrupted", "filename", filename, "error", err)
	}
}

type feedEntryResponse struct {
	Filename    string `json:"filename"`
	IsNewPhoto  bool   `json:"is_new_photo"`
	UploadedAt  string `json:"uploaded_at"`
	CreatedAt   string `json:"created_at"`
	RequestPath string `json:"request_path"`
}

func newFeedEntryResponse(entry models.FeedEntry) feedEntryResponse {
	return feedEntryResponse{
		Filename:    entry.Filename,
		IsNewPhoto:  entry.IsNewPhoto,
		UploadedAt:  entry.UploadedAt.UTC().Format(time.RFC3339Nano),
		CreatedAt:   entry.CreatedAt,
		RequestPath: entry.RequestPath,
	}
}

// GetUpdates returns feed entries uploaded after the caller's cursor by
// sessions other than the calling one, ascending by upload time.
func (h *Handler) GetUpdates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}
	identity, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	lastUpdated := strings.TrimSpace(query.Get("last_updated"))
	fetchNum := strings.TrimSpace(query.Get("fetch_num"))
	if lastUpdated == "" || fetchNum == "" {
		writeFail(w, http.StatusBadRequest, ErrCodeMissingQueryParams)
		return
	}
	since, err := time.Parse(time.RFC3339, lastUpdated)
	if err != nil {
		writeFail(w, http.StatusBadRequest, ErrCodeMissingQueryParams)
		return
	}
	limit, err := strconv.Atoi(fetchNum)
	if err != nil || limit <= 0 {
		writeFail(w, http.StatusBadRequest, ErrCodeMissingQueryParams)
		return
	}

	entries, err := h.Store.ListFeedUpdates(r.Context(), identity.User.Username, since, identity.Token, limit)
	if err != nil {
		h.Logger.Error("feed query failed", "owner", identity.User.Username, "error", err)
		writeFail(w, http.StatusInternalServerError, ErrCodeInternal)
		return
	}

	data := make([]feedEntryResponse, 0, len(entries))
	for _, entry := range entries {
		data = append(data, newFeedEntryResponse(entry))
	}
	writeSuccess(w, http.StatusOK, map[string]interface{}{"data": data})
}
