// -------------------------------------------------------------------------------
// Authentication - Shared Token Verification
//
// Author: Alex Freidah
//
// Verifies the optional shared token that guards mutating requests. The token
// is accepted either as an Authorization bearer credential or in the
// X-Records-Token header. Comparison is constant-time. With no token
// configured every request is allowed, matching the trusted local deployment.
// -------------------------------------------------------------------------------

package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/Alaric-Jeff/Records-Information/internal/config"
)

// TokenHeader is the dedicated header for the shared token.
const TokenHeader = "X-Records-Token"

const bearerPrefix = "Bearer "

var (
	// ErrMissingCredentials is returned when a token is required but absent.
	ErrMissingCredentials = errors.New("missing authentication credentials")

	// ErrInvalidToken is returned when the presented token does not match.
	ErrInvalidToken = errors.New("invalid authentication token")
)

// -------------------------------------------------------------------------
// AUTH DISPATCH
// -------------------------------------------------------------------------

// Authenticate checks the request against the configured token. Returns nil
// if no token is configured or the presented token matches.
func Authenticate(r *http.Request, cfg config.AuthConfig) error {
	if !NeedsAuth(cfg) {
		return nil
	}

	presented := tokenFromRequest(r)
	if presented == "" {
		return ErrMissingCredentials
	}
	if subtle.ConstantTimeCompare([]byte(presented), []byte(cfg.Token)) != 1 {
		return ErrInvalidToken
	}
	return nil
}

// NeedsAuth returns true if a token is configured.
func NeedsAuth(cfg config.AuthConfig) bool {
	return cfg.Token != ""
}

// RequiresAuth reports whether requests with the given method must carry the
// token. Reads stay open.
func RequiresAuth(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

// tokenFromRequest extracts the token, preferring a bearer credential.
func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); len(h) > len(bearerPrefix) &&
		strings.EqualFold(h[:len(bearerPrefix)], bearerPrefix) {
		return strings.TrimSpace(h[len(bearerPrefix):])
	}
	return strings.TrimSpace(r.Header.Get(TokenHeader))
}
