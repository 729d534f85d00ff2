package jwt

import (
	"context"
	"net/http"

	"chatgate/internal/pkg/errs"
	"chatgate/internal/pkg/logx"
	"chatgate/internal/pkg/resp"
)

type contextKey string

// identityKey stores the verified token payload in the request context.
const identityKey contextKey = "identity"

// IdentityExtractorMiddleware verifies the request's access token and stores
// the resulting Payload in the request context. Requests without a valid token
// are rejected before reaching the handler.
func IdentityExtractorMiddleware(secretKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := TokenFromRequest(r)
			if tokenString == "" {
				logx.Warn("Request rejected: Missing access token", "path", r.URL.Path)
				resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
				return
			}

			payload, err := ParseToken(tokenString, secretKey)
			if err != nil {
				logx.Warn("Request rejected: Invalid access token", "path", r.URL.Path)
				resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, payload)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// FromContext returns the verified Payload stored by IdentityExtractorMiddleware.
func FromContext(ctx context.Context) (*Payload, bool) {
	payload, ok := ctx.Value(identityKey).(*Payload)
	return payload, ok
}
