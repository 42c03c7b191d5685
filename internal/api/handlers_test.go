package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"photoseleven/internal/auth"
	"photoseleven/internal/gallery"
	"photoseleven/internal/storage"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	repo, err := storage.NewFileRepository("")
	if err != nil {
		t.Fatalf("NewFileRepository: %v", err)
	}
	media, err := gallery.NewStore(gallery.Config{BaseDir: t.TempDir()})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	tokens := auth.NewTokenService([]byte("handler-test-secret"), time.Hour)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHandler(repo, tokens, media, logger)
}

func doJSON(t *testing.T, handler http.HandlerFunc, method, target string, body map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(method, target, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return body
}

func wantErrCode(t *testing.T, rec *httptest.ResponseRecorder, status int, errCode string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, status, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if success, _ := body["success"].(bool); success {
		t.Fatalf("success = true, want false")
	}
	if got, _ := body["err_code"].(string); got != errCode {
		t.Fatalf("err_code = %q, want %q", got, errCode)
	}
}

func registerUser(t *testing.T, h *Handler, username, password string) {
	t.Helper()
	rec := doJSON(t, h.Users, http.MethodPost, "/api/auth/users", map[string]string{
		"username": username,
		"password": password,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d, want %d (body %s)", rec.Code, http.StatusCreated, rec.Body.String())
	}
}

func loginUser(t *testing.T, h *Handler, username, password string) string {
	t.Helper()
	rec := doJSON(t, h.Login, http.MethodPost, "/api/auth/login", map[string]string{
		"username": username,
		"password": password,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, want %d (body %s)", rec.Code, http.StatusOK, rec.Body.String())
	}
	token, _ := decodeBody(t, rec)["token"].(string)
	if token == "" {
		t.Fatalf("login returned empty token")
	}
	return token
}

func TestHealth(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.Health(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got, _ := decodeBody(t, rec)["status"].(string); got != "ok" {
		t.Fatalf("status field = %q, want %q", got, "ok")
	}
}
