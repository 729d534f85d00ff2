package jwt

import (
	"net/http"
	"strings"
)

// TokenFromRequest extracts the access token from an HTTP request.
// It checks the Authorization header first ("Bearer <token>") and falls back
// to the "token" query parameter, which browser WebSocket clients must use
// because they cannot set request headers.
func TokenFromRequest(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
	}

	return r.URL.Query().Get("token")
}
