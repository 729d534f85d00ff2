/*
Package handler provides the HTTP handlers and routing setup for the gateway.

This file defines the session, which bridges one WebSocket connection to the
gateway core: the read pump decodes inbound frames and dispatches them to the
gateway pipelines, the write pump drains the connection's outbound queue and
maintains the ping/pong heartbeat.
*/
package handler

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"chatgate/internal/app/gateway"
	"chatgate/internal/pkg/errs"
	"chatgate/internal/pkg/logx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a message sent by the client.
	maxMessageSize = 8192
)

// session ties a WebSocket connection to its gateway handle for the lifetime
// of the connection.
type session struct {
	ws   *websocket.Conn
	conn *gateway.Conn
	gw   *gateway.Gateway

	// userID is the identity verified from the access token at upgrade time.
	// Inbound events claiming a different identity are rejected.
	userID string

	logger zerolog.Logger
}

func newSession(ws *websocket.Conn, conn *gateway.Conn, gw *gateway.Gateway, userID string) *session {
	sessionLogger := logx.Logger().With().
		Str("conn_id", conn.ID()).
		Str("user_id", userID).
		Logger()

	return &session{
		ws:     ws,
		conn:   conn,
		gw:     gw,
		userID: userID,
		logger: sessionLogger,
	}
}

// readPump reads frames from the WebSocket connection and dispatches them to
// the gateway. It handles heartbeats (Pong) and performs the gateway
// disconnect when the connection closes for any reason.
func (s *session) readPump(ctx context.Context) {
	defer s.gw.Disconnect(s.conn)

	s.ws.SetReadLimit(maxMessageSize)

	if err := s.ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		s.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	s.ws.SetPongHandler(func(string) error {
		return s.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frameBytes, err := s.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Info().Err(err).Msg("Error reading message (Client close/going away)")
			}
			break
		}

		s.dispatch(ctx, frameBytes)
	}
}

// dispatch decodes one inbound frame and routes it to the matching gateway
// pipeline. Events that claim a user identity other than the session's
// verified one are rejected without reaching the gateway.
func (s *session) dispatch(ctx context.Context, frameBytes []byte) {
	var frame gateway.Frame
	if err := json.Unmarshal(frameBytes, &frame); err != nil {
		s.logger.Warn().Err(err).Msg("Client sent invalid JSON")
		s.sendError(errs.NewError(errs.ErrInvalidJSONFormat))
		return
	}

	switch frame.Type {
	case gateway.TypeAnnounceOnline:
		var p gateway.AnnouncePayload
		if !s.decodePayload(frame.Payload, &p) {
			return
		}
		if p.UserID != s.userID {
			s.rejectIdentity(frame.Type, p.UserID)
			return
		}
		s.gw.Announce(s.conn, p.UserID)

	case gateway.TypeGetPresence:
		s.gw.Presence(s.conn)

	case gateway.TypeJoinRoom:
		var p gateway.RoomPayload
		if !s.decodePayload(frame.Payload, &p) {
			return
		}
		s.gw.JoinRoom(s.conn, p.RoomID)

	case gateway.TypeLeaveRoom:
		var p gateway.RoomPayload
		if !s.decodePayload(frame.Payload, &p) {
			return
		}
		s.gw.LeaveRoom(s.conn, p.RoomID)

	case gateway.TypeSendMessage:
		var p gateway.SendMessagePayload
		if !s.decodePayload(frame.Payload, &p) {
			return
		}
		if p.Sender != s.userID {
			s.rejectIdentity(frame.Type, p.Sender)
			return
		}
		s.gw.SendMessage(ctx, s.conn, p)

	case gateway.TypeMarkRead:
		var p gateway.MarkReadPayload
		if !s.decodePayload(frame.Payload, &p) {
			return
		}
		if p.UserID != s.userID {
			s.rejectIdentity(frame.Type, p.UserID)
			return
		}
		s.gw.MarkRead(ctx, s.conn, p)

	case gateway.TypeChatCreated:
		var p gateway.ChatCreatedPayload
		if !s.decodePayload(frame.Payload, &p) {
			return
		}
		s.gw.ChatCreated(s.conn, p)

	case gateway.TypeChatDeleted:
		var p gateway.ChatDeletedPayload
		if !s.decodePayload(frame.Payload, &p) {
			return
		}
		s.gw.ChatDeleted(s.conn, p)

	default:
		s.logger.Warn().Str("event_type", frame.Type).Msg("Client sent unsupported event type")
	}
}

func (s *session) decodePayload(raw json.RawMessage, dst any) bool {
	if err := json.Unmarshal(raw, dst); err != nil {
		s.logger.Warn().Err(err).Msg("Client sent invalid event payload")
		s.sendError(errs.NewError(errs.ErrInvalidJSONFormat))
		return false
	}
	return true
}

func (s *session) rejectIdentity(eventType, claimed string) {
	s.logger.Warn().
		Str("event_type", eventType).
		Str("claimed_user_id", claimed).
		Msg("Client claimed an identity other than its verified one")
	s.sendError(errs.NewError(errs.ErrIdentityMismatch))
}

// sendError queues an error event for this connection only.
func (s *session) sendError(customErr *errs.CustomError) {
	frame, err := gateway.EncodeFrame(gateway.TypeErrorEvent, gateway.ErrorPayload{
		Code:    customErr.Code,
		Message: customErr.Message,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode error frame")
		return
	}

	if !s.conn.Enqueue(frame) {
		s.logger.Warn().Msg("Failed to queue error frame, connection closed or backed up")
	}
}

// writePump drains the connection's outbound queue onto the WebSocket and
// keeps the heartbeat alive. It terminates when the gateway closes the
// connection handle or any write fails.
func (s *session) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		if err := s.ws.Close(); err != nil {
			s.logger.Debug().Err(err).Msg("WebSocket close error in write pump")
		}
	}()

	for {
		select {
		case frame := <-s.conn.Outbound():
			if !s.writeFrame(frame) {
				return
			}

		case <-s.conn.Done():
			if err := s.ws.SetWriteDeadline(time.Now().Add(writeWait)); err == nil {
				if err := s.ws.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					s.logger.Debug().Err(err).Msg("Error writing close message")
				}
			}
			return

		case <-ticker.C:
			if !s.writePing() {
				return
			}
		}
	}
}

// writeFrame writes one queued frame to the WebSocket.
// Returns false when the write pump should terminate.
func (s *session) writeFrame(frame []byte) bool {
	if err := s.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		s.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if err := s.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
		s.logger.Error().Err(err).Msg("Error writing message")
		return false
	}

	return true
}

// writePing sends a periodic WebSocket Ping to maintain the heartbeat.
// Returns false when the write pump should terminate.
func (s *session) writePing() bool {
	if err := s.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		s.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
		return false
	}

	if err := s.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
		s.logger.Error().Err(err).Msg("Error writing ping")
		return false
	}

	return true
}
