// Package auth issues and verifies the signed bearer tokens that authenticate
// API requests. Tokens are stateless: no server-side session record exists and
// verification only needs the signing secret.
package auth

import (
	"errors"
	"regexp"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenExpired indicates the token signature was valid but the expiry
	// claim has passed.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenMalformed indicates the string is not structurally a token.
	ErrTokenMalformed = errors.New("token malformed")
	// ErrTokenInvalid indicates a structurally sound token that failed
	// signature or claim validation.
	ErrTokenInvalid = errors.New("token invalid")
)

// tokenShape matches three dot-separated base64url segments. Input failing
// this check is rejected before any signature work is attempted.
var tokenShape = regexp.MustCompile(`^[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+$`)

type claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
}

// TokenService mints and validates HS256-signed bearer tokens carrying a
// username claim. The secret is injected at construction and read-only
// afterwards.
type TokenService struct {
	secret   []byte
	validity time.Duration
	now      func() time.Time
}

// DefaultValidity is how long issued tokens stay valid unless a deployment
// configures its own window.
const DefaultValidity = 365 * 24 * time.Hour

// NewTokenService builds a TokenService from the process signing secret and a
// validity window; a non-positive window falls back to DefaultValidity.
func NewTokenService(secret []byte, validity time.Duration) *TokenService {
	if validity <= 0 {
		validity = DefaultValidity
	}
	return &TokenService{secret: secret, validity: validity, now: time.Now}
}

// WithClock overrides the service's time source. It exists so expiry behaviour
// can be exercised without waiting out real validity windows.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	if now != nil {
		s.now = now
	}
	return s
}

// Issue mints a signed token for the provided username.
func (s *TokenService) Issue(username string) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.validity)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Username: username,
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", err
	}
	return signed, nil
}

// Verify validates the token string and returns the username claim.
func (s *TokenService) Verify(tokenString string) (string, error) {
	if !tokenShape.MatchString(tokenString) {
		return "", ErrTokenMalformed
	}
	parsed := &claims{}
	token, err := jwt.ParseWithClaims(tokenString, parsed, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return "", ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenMalformed):
			return "", ErrTokenMalformed
		default:
			return "", ErrTokenInvalid
		}
	}
	if !token.Valid || parsed.Username == "" {
		return "", ErrTokenInvalid
	}
	return parsed.Username, nil
}
