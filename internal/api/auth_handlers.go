package api

import (
	"errors"
	"net/http"
	"strings"

	"photoseleven/internal/storage"
)

type credentialsRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	NewPassword string `json:"new_password,omitempty"`
}

// Users manages account records.
// POST registers, PUT changes the password, DELETE removes the account.
func (h *Handler) Users(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodDelete:
	default:
		methodNotAllowed(w, "POST, PUT, DELETE")
		return
	}
	requireJSONContent(h.usersManipulation)(w, r)
}

func (h *Handler) usersManipulation(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFail(w, http.StatusUnauthorized, ErrCodeNoUsername)
		return
	}
	if strings.TrimSpace(req.Username) == "" {
		writeFail(w, http.StatusUnauthorized, ErrCodeNoUsername)
		return
	}
	if req.Password == "" {
		writeFail(w, http.StatusUnauthorized, ErrCodeNoPassword)
		return
	}

	ctx := r.Context()
	switch r.Method {
	case http.MethodPost:
		if _, err := h.Store.CreateUser(ctx, req.Username, req.Password); err != nil {
			if errors.Is(err, storage.ErrUserExists) {
				writeFail(w, http.StatusUnauthorized, ErrCodeUserExists)
				return
			}
			h.Logger.Error("create user failed", "error", err)
			writeFail(w, http.StatusInternalServerError, ErrCodeInternal)
			return
		}
		writeSuccess(w, http.StatusCreated, nil)
	case http.MethodPut:
		if req.NewPassword == "" {
			writeFail(w, http.StatusPreconditionFailed, ErrCodeNoNewPassword)
			return
		}
		if err := h.Store.ChangePassword(ctx, req.Username, req.Password, req.NewPassword); err != nil {
			switch {
			case errors.Is(err, storage.ErrUserNotExist):
				writeFail(w, http.StatusUnauthorized, ErrCodeUserNotExist)
			case errors.Is(err, storage.ErrWrongPassword):
				writeFail(w, http.StatusUnauthorized, ErrCodeWrongPassword)
			case errors.Is(err, storage.ErrSamePassword):
				writeFail(w, http.StatusPreconditionFailed, ErrCodeSameNewPass)
			default:
				h.Logger.Error("change password failed", "error", err)
				writeFail(w, http.StatusInternalServerError, ErrCodeInternal)
			}
			return
		}
		writeSuccess(w, http.StatusOK, nil)
	case http.MethodDelete:
		if err := h.Store.DeleteUser(ctx, req.Username, req.Password); err != nil {
			switch {
			case errors.Is(err, storage.ErrUserNotExist):
				writeFail(w, http.StatusUnauthorized, ErrCodeUserNotExist)
			case errors.Is(err, storage.ErrWrongPassword):
				writeFail(w, http.StatusUnauthorized, ErrCodeWrongPassword)
			default:
				h.Logger.Error("delete user failed", "error", err)
				writeFail(w, http.StatusInternalServerError, ErrCodeInternal)
			}
			return
		}
		writeSuccess(w, http.StatusOK, nil)
	}
}

// Login authenticates the credentials and mints a bearer token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}
	requireJSONContent(h.login)(w, r)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFail(w, http.StatusUnauthorized, ErrCodeNoUsername)
		return
	}
	if strings.TrimSpace(req.Username) == "" {
		writeFail(w, http.StatusUnauthorized, ErrCodeNoUsername)
		return
	}
	if req.Password == "" {
		writeFail(w, http.StatusUnauthorized, ErrCodeNoPassword)
		return
	}

	user, err := h.Store.AuthenticateUser(r.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrUserNotExist):
			writeFail(w, http.StatusUnauthorized, ErrCodeUserNotExist)
		case errors.Is(err, storage.ErrWrongPassword):
			writeFail(w, http.StatusUnauthorized, ErrCodeWrongPassword)
		default:
			h.Logger.Error("login failed", "error", err)
			writeFail(w, http.StatusInternalServerError, ErrCodeInternal)
		}
		return
	}

	token, err := h.Tokens.Issue(user.Username)
	if err != nil {
		h.Logger.Error("token issue failed", "error", err)
		writeFail(w, http.StatusInternalServerError, ErrCodeInternal)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]interface{}{"token": token})
}

// LoginPing reports the identity bound to the presented token. Clients use it
// to check whether a stored token is still valid.
func (h *Handler) LoginPing(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}
	identity, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}
	writeSuccess(w, http.StatusOK, map[string]interface{}{"username": identity.User.Username})
}
