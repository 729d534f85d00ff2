/*
Package gateway contains the real-time coordination core.

This file defines the Gateway struct, which ties the Registry and Broadcaster
to the persistence and storage collaborators and implements the message,
read-receipt, presence, and chat lifecycle pipelines.
*/
package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"chatgate/internal/app/storage"
	"chatgate/internal/app/store"
	"chatgate/internal/pkg/errs"
	"chatgate/internal/pkg/logx"
	"chatgate/internal/pkg/randx"
)

// MaxContentBytes is the maximum allowed size for text message content.
const MaxContentBytes = 5000

// Gateway coordinates presence, rooms, and the event pipelines for one
// process. All presence and room state lives in memory; the store is the only
// durable collaborator.
type Gateway struct {
	registry *Registry
	rooms    *Broadcaster
	store    store.Store

	// files resolves image keys to presigned URLs during message enrichment.
	// May be nil, in which case messages carry bare keys.
	files storage.Service

	logger zerolog.Logger
}

// New constructs a Gateway around the given collaborators.
func New(st store.Store, files storage.Service) *Gateway {
	return &Gateway{
		registry: NewRegistry(),
		rooms:    NewBroadcaster(),
		store:    st,
		files:    files,
		logger:   logx.Logger().With().Str("component", "Gateway").Logger(),
	}
}

// Connect registers a new anonymous connection with both the registry and the
// broadcaster. No events are emitted until the connection announces a user.
func (g *Gateway) Connect(c *Conn) {
	g.registry.Connect(c)
	g.rooms.Register(c)

	g.logger.Debug().Str("conn_id", c.ID()).Msg("Connection registered.")
}

// Disconnect tears a connection down: it leaves every room implicitly, its
// user's reference count is decremented, and a user-status-change broadcast
// fires only when that count reaches zero.
func (g *Gateway) Disconnect(c *Conn) {
	g.rooms.Drop(c)
	userID, last := g.registry.Disconnect(c)
	c.Close()

	g.logger.Debug().
		Str("conn_id", c.ID()).
		Str("user_id", userID).
		Bool("last", last).
		Msg("Connection disconnected.")

	if last {
		g.emitToAll(TypeUserStatusChange, StatusChangePayload{UserID: userID, IsOnline: false})
	}
}

// Announce binds the connection to a user identity. The first connection of a
// user flips the user online and broadcasts the transition to everyone; later
// connections of the same user are counted silently.
func (g *Gateway) Announce(c *Conn, userID string) {
	res := g.registry.Announce(c, userID)
	if !res.OK {
		return
	}

	if res.Released != "" {
		g.emitToAll(TypeUserStatusChange, StatusChangePayload{UserID: res.Released, IsOnline: false})
	}
	if res.First {
		g.emitToAll(TypeUserStatusChange, StatusChangePayload{UserID: userID, IsOnline: true})
	}
}

// Presence answers a get-presence query with the full set of online users.
func (g *Gateway) Presence(c *Conn) {
	g.emitToConn(c, TypePresenceState, PresenceStatePayload{UserIDs: g.registry.Snapshot()})
}

// JoinRoom subscribes the connection to a chat's room.
func (g *Gateway) JoinRoom(c *Conn, roomID string) {
	g.rooms.Join(c, roomID)
}

// LeaveRoom unsubscribes the connection from a chat's room.
func (g *Gateway) LeaveRoom(c *Conn, roomID string) {
	g.rooms.Leave(c, roomID)
}

// SendMessage validates, persists, enriches, and broadcasts one message.
// Nothing is broadcast unless every persistence step succeeded, so a room
// never observes a message the store does not hold.
func (g *Gateway) SendMessage(ctx context.Context, c *Conn, p SendMessagePayload) {
	if p.ChatID == "" || p.Sender == "" {
		g.sendError(c, errs.NewError(errs.ErrInvalidParams))
		return
	}
	if p.Content == "" && p.Image == "" {
		g.sendError(c, errs.NewError(errs.ErrMessageEmpty))
		return
	}
	if len(p.Content) > MaxContentBytes {
		g.sendError(c, errs.NewError(errs.ErrMessageContentTooLong))
		return
	}

	kind := p.Kind
	if kind == "" {
		kind = "text"
	}

	now := time.Now().UTC()
	msg := store.Message{
		ID:        randx.MessageID(),
		ChatID:    p.ChatID,
		SenderID:  p.Sender,
		Content:   p.Content,
		ImageKey:  p.Image,
		Kind:      kind,
		CreatedAt: now,
		// The sender has read their own message at creation time.
		ReadBy: []store.ReadReceipt{{UserID: p.Sender, ReadAt: now}},
	}

	if err := g.store.InsertMessage(ctx, msg); err != nil {
		g.logger.Error().Err(err).
			Str("chat_id", p.ChatID).
			Str("sender_id", p.Sender).
			Msg("Failed to persist message. Aborting send pipeline.")
		g.sendError(c, errs.NewError(errs.ErrStoreUnavailable))
		return
	}

	enriched, err := g.store.FindMessage(ctx, msg.ID)
	if err != nil {
		g.logger.Error().Err(err).
			Str("message_id", msg.ID).
			Msg("Failed to enrich persisted message. Aborting send pipeline.")
		g.sendError(c, errs.NewError(errs.ErrStoreUnavailable))
		return
	}

	if err := g.store.SetLastMessage(ctx, p.ChatID, msg.ID); err != nil {
		g.logger.Error().Err(err).
			Str("chat_id", p.ChatID).
			Str("message_id", msg.ID).
			Msg("Failed to update latest-message pointer. Aborting send pipeline.")
		g.sendError(c, g.storeError(err))
		return
	}

	summary, err := g.store.ChatSummary(ctx, p.ChatID)
	if err != nil {
		g.logger.Error().Err(err).
			Str("chat_id", p.ChatID).
			Msg("Failed to load chat summary. Aborting send pipeline.")
		g.sendError(c, g.storeError(err))
		return
	}

	event := MessageEvent{MessageWithSender: *enriched}
	event.ImageURL = g.resolveImageURL(ctx, enriched.ImageKey)

	// Broadcast order matches persistence completion order: everything below
	// runs only after this message's own store writes finished.
	g.emitToRoom(p.ChatID, TypeNewMessage, event)

	// Participants not viewing the chat still see it rise to the top of their
	// list; offline participants are skipped and catch up on next fetch.
	g.emitToUsers(summary.ParticipantIDs(), TypeChatLastMessageUpdated, ChatUpdatePayload{
		Chat:     summary,
		SenderID: p.Sender,
	})
}

// MarkRead appends the reader's receipt to every unread message in the chat
// and re-broadcasts the chat summary to the room. The broadcast fires even
// when nothing changed, mirroring the caller-side retry semantics; the
// affected count is logged so the no-op case stays observable.
func (g *Gateway) MarkRead(ctx context.Context, c *Conn, p MarkReadPayload) {
	if p.ChatID == "" || p.UserID == "" {
		g.sendError(c, errs.NewError(errs.ErrInvalidParams))
		return
	}

	readAt := time.Now().UTC()

	marked, err := g.store.MarkMessagesRead(ctx, p.ChatID, p.UserID, readAt)
	if err != nil {
		g.logger.Error().Err(err).
			Str("chat_id", p.ChatID).
			Str("reader_id", p.UserID).
			Msg("Failed to persist read receipts. Aborting read pipeline.")
		g.sendError(c, errs.NewError(errs.ErrStoreUnavailable))
		return
	}

	summary, err := g.store.ChatSummary(ctx, p.ChatID)
	if err != nil {
		g.logger.Error().Err(err).
			Str("chat_id", p.ChatID).
			Msg("Failed to load chat summary after read marking.")
		g.sendError(c, g.storeError(err))
		return
	}

	g.logger.Debug().
		Str("chat_id", p.ChatID).
		Str("reader_id", p.UserID).
		Int64("messages_marked", marked).
		Msg("Read receipts recorded.")

	g.emitToRoom(p.ChatID, TypeMessagesRead, MessagesReadPayload{
		UserID: p.UserID,
		ChatID: p.ChatID,
		ReadAt: readAt,
		Chat:   summary,
	})
}

// ChatCreated fans a new-chat-created event out to every listed participant's
// connections. The chat document comes from the creator's client, which just
// persisted it through the HTTP layer.
func (g *Gateway) ChatCreated(c *Conn, p ChatCreatedPayload) {
	if len(p.Chat) == 0 || len(p.ParticipantIDs) == 0 {
		g.sendError(c, errs.NewError(errs.ErrInvalidParams))
		return
	}

	g.emitToUsers(p.ParticipantIDs, TypeNewChatCreated, p.Chat)
}

// ChatDeleted tells the affected participants to drop a chat from local
// state. A global wipe (All) is echoed only to the calling connection: other
// users' sessions are intentionally left untouched, matching the observed
// behavior this gateway replicates.
func (g *Gateway) ChatDeleted(c *Conn, p ChatDeletedPayload) {
	if p.All {
		g.emitToConn(c, TypeDeleteClientChats, DeleteChatsPayload{All: true})
		return
	}

	if p.ChatID == "" {
		g.sendError(c, errs.NewError(errs.ErrInvalidParams))
		return
	}

	g.emitToUsers(p.Participants, TypeDeleteClientChats, DeleteChatsPayload{ChatID: p.ChatID})
}

// resolveImageURL turns an object storage key into a presigned download URL.
// A presign failure degrades to the bare key rather than failing the message.
func (g *Gateway) resolveImageURL(ctx context.Context, imageKey string) string {
	if imageKey == "" || g.files == nil {
		return ""
	}

	url, err := g.files.PresignDownload(ctx, imageKey, storage.PresignedURLDuration)
	if err != nil {
		g.logger.Warn().Err(err).
			Str("image_key", imageKey).
			Msg("Failed to presign image URL, broadcasting bare key.")
		return ""
	}
	return url
}

// storeError maps a persistence error to the client-facing error code.
func (g *Gateway) storeError(err error) *errs.CustomError {
	if errors.Is(err, store.ErrNotFound) {
		return errs.NewError(errs.ErrChatNotFound)
	}
	return errs.NewError(errs.ErrStoreUnavailable)
}

func (g *Gateway) emitToConn(c *Conn, eventType string, payload any) {
	frame, err := EncodeFrame(eventType, payload)
	if err != nil {
		g.logger.Error().Err(err).Str("event_type", eventType).Msg("Failed to encode frame.")
		return
	}
	g.rooms.EmitConn(c, frame)
}

func (g *Gateway) emitToRoom(roomID, eventType string, payload any) {
	frame, err := EncodeFrame(eventType, payload)
	if err != nil {
		g.logger.Error().Err(err).Str("event_type", eventType).Msg("Failed to encode frame.")
		return
	}
	g.rooms.EmitRoom(roomID, frame)
}

func (g *Gateway) emitToAll(eventType string, payload any) {
	frame, err := EncodeFrame(eventType, payload)
	if err != nil {
		g.logger.Error().Err(err).Str("event_type", eventType).Msg("Failed to encode frame.")
		return
	}
	g.rooms.EmitAll(frame)
}

// emitToUsers resolves identities through the registry and delivers to all of
// their connections regardless of room membership. Users with no active
// connections are silently skipped.
func (g *Gateway) emitToUsers(userIDs []string, eventType string, payload any) {
	conns := g.registry.ConnsOf(userIDs...)
	if len(conns) == 0 {
		return
	}

	frame, err := EncodeFrame(eventType, payload)
	if err != nil {
		g.logger.Error().Err(err).Str("event_type", eventType).Msg("Failed to encode frame.")
		return
	}
	g.rooms.EmitConns(conns, frame)
}

// sendError delivers an error event to the offending connection only.
func (g *Gateway) sendError(c *Conn, customErr *errs.CustomError) {
	g.emitToConn(c, TypeErrorEvent, ErrorPayload{
		Code:    customErr.Code,
		Message: customErr.Message,
	})
}
