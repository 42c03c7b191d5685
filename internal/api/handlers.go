package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"photoseleven/internal/auth"
	"photoseleven/internal/gallery"
	"photoseleven/internal/storage"
)

type Handler struct {
	Store      storage.Repository
	Tokens     *auth.TokenService
	MediaStore *gallery.Store
	Logger     *slog.Logger

	now func() time.Time
}

func NewHandler(store storage.Repository, tokens *auth.TokenService, media *gallery.Store, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Store:      store,
		Tokens:     tokens,
		MediaStore: media,
		Logger:     logger,
		now:        time.Now,
	}
}

func decodeJSON(r *http.Request, dest interface{}) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

// requireJSONContent rejects requests whose body is not declared as JSON
// before the wrapped handler runs.
func requireJSONContent(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mediaType != "application/json" {
			writeFail(w, http.StatusUnsupportedMediaType, ErrCodeContentType)
			return
		}
		next(w, r)
	}
}

// requireMediaContent rejects uploads whose declared content type is not in
// the media allow-list.
func (h *Handler) requireMediaContent(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		declared := strings.TrimSpace(r.Header.Get("Content-Type"))
		if _, ok := h.MediaStore.AllowedContentTypes()[declared]; !ok {
			writeFail(w, http.StatusUnsupportedMediaType, ErrCodeContentType)
			return
		}
		next(w, r)
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if err := h.Store.Ping(r.Context()); err != nil {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": status})
}
