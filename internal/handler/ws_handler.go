/*
Package handler provides the HTTP handler function for WebSocket connection upgrading and initialization.

This file contains the HandleWebSocket function, which is responsible for rate limiting, verifying
the access token, upgrading the HTTP connection to WebSocket, and starting the session pumps.
*/
package handler

import (
	"context"
	"net"
	"net/http"

	"github.com/gorilla/websocket"

	"chatgate/internal/app/gateway"
	"chatgate/internal/pkg/auth/jwt"
	"chatgate/internal/pkg/errs"
	"chatgate/internal/pkg/limiter"
	"chatgate/internal/pkg/logx"
	"chatgate/internal/pkg/randx"
	"chatgate/internal/pkg/resp"
)

// HandleWebSocket creates an HTTP HandlerFunc to process WebSocket connection requests.
func HandleWebSocket(upgrader websocket.Upgrader, rateLimiter *limiter.IPRateLimiter, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}

		if ip == "" {
			ip = "unknown_ip"
		}

		if !rateLimiter.GetLimiter(ip).Allow() {
			logx.Warn("WebSocket connection rejected: Rate limit exceeded.", "ip", ip)
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		tokenString := jwt.TokenFromRequest(r)
		if tokenString == "" {
			logx.Warn("WebSocket request rejected: Missing access token")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		claims, err := jwt.ParseToken(tokenString, deps.Config.JWTSecret)
		if err != nil {
			logx.Warn("WebSocket request rejected: Invalid access token")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		logx.Info("Attempting to upgrade connection", "user_id", claims.ID)

		wsConn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		conn := gateway.NewConn(randx.ConnID())
		deps.Gateway.Connect(conn)

		sess := newSession(wsConn, conn, deps.Gateway, claims.ID)

		go sess.writePump()

		logx.Info("WebSocket connection established",
			"conn_id", conn.ID(),
			"user_id", claims.ID,
		)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sess.readPump(ctx)
	}
}
