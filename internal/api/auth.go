package api

import (
	"context"
	"errors"
	"net/http"
	"regexp"

	"photoseleven/internal/auth"
	"photoseleven/internal/models"
)

type contextKey string

const identityContextKey contextKey = "authenticatedIdentity"

// Identity is the per-request authentication result: the resolved user plus
// the raw bearer token that authenticated it. The updates feed filters by the
// token, not the username, so both travel together.
type Identity struct {
	User  models.User
	Token string
}

// ContextWithIdentity stores the authenticated identity in the provided context.
func ContextWithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// IdentityFromContext retrieves the authenticated identity from context if present.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(Identity)
	return identity, ok
}

var bearerPattern = regexp.MustCompile(`^Bearer ([A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+)$`)

// AuthenticateRequest validates the bearer token on the request and resolves
// it to an identity. On failure it returns the wire error code to surface;
// every failure maps to a 401.
func (h *Handler) AuthenticateRequest(r *http.Request) (Identity, string) {
	match := bearerPattern.FindStringSubmatch(r.Header.Get("Authorization"))
	if match == nil {
		return Identity{}, ErrCodeNoAuthHeader
	}
	token := match[1]

	username, err := h.Tokens.Verify(token)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return Identity{}, ErrCodeTokenExpired
		}
		return Identity{}, ErrCodeTokenInvalid
	}

	user, exists, err := h.Store.GetUser(r.Context(), username)
	if err != nil || !exists {
		return Identity{}, ErrCodeUserNotExist
	}
	return Identity{User: user, Token: token}, ""
}

func (h *Handler) requireIdentity(w http.ResponseWriter, r *http.Request) (Identity, bool) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeFail(w, http.StatusUnauthorized, ErrCodeNoAuthHeader)
		return Identity{}, false
	}
	return identity, true
}
