/*
Package handler provides the HTTP handlers and routing setup for the gateway.

This file contains the presigned download handler, which lets authenticated
clients resolve stored image keys to time-limited object storage URLs outside
of the real-time message flow.
*/
package handler

import (
	"net/http"

	"chatgate/internal/app/storage"
	"chatgate/internal/pkg/auth/jwt"
	"chatgate/internal/pkg/errs"
	"chatgate/internal/pkg/logx"
	"chatgate/internal/pkg/resp"
)

// HandlePresignDownload returns a handler that generates a presigned download
// URL for an object storage key.
func HandlePresignDownload(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := jwt.FromContext(r.Context())
		if !ok {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		key := r.URL.Query().Get("key")
		if key == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		if deps.StorageService == nil {
			logx.Warn("Presign download requested but file storage is not configured",
				"user_id", identity.ID,
			)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		url, err := deps.StorageService.PresignDownload(r.Context(), key, storage.PresignedURLDuration)
		if err != nil {
			logx.Error(err, "Failed to presign download URL",
				"user_id", identity.ID,
				"key", key,
			)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, map[string]string{
			"url": url,
		})
	}
}
