/*
Package gateway contains the real-time coordination core.

This file defines the wire-level event vocabulary: frame encoding plus the
payload structures for every inbound and outbound event type.
*/
package gateway

import (
	"encoding/json"
	"time"

	"chatgate/internal/app/store"
)

// Inbound event types accepted from a connection.
const (
	TypeAnnounceOnline = "announce-online"
	TypeGetPresence    = "get-presence"
	TypeJoinRoom       = "join-room"
	TypeLeaveRoom      = "leave-room"
	TypeSendMessage    = "send-message"
	TypeMarkRead       = "mark-read"
	TypeChatCreated    = "chat-created"
	TypeChatDeleted    = "chat-deleted"
)

// Outbound event types emitted to connections.
const (
	TypeUserStatusChange       = "user-status-change"
	TypePresenceState          = "presence-state"
	TypeNewMessage             = "new-message"
	TypeMessagesRead           = "messages-read"
	TypeNewChatCreated         = "new-chat-created"
	TypeChatLastMessageUpdated = "chat-last-message-updated"
	TypeDeleteClientChats      = "delete-client-chats"
	TypeErrorEvent             = "error"
)

// Frame is the envelope for every event in both directions.
type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// EncodeFrame marshals a payload into a complete wire frame.
func EncodeFrame(eventType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Type: eventType, Payload: raw})
}

// AnnouncePayload binds the connection to a user identity.
type AnnouncePayload struct {
	UserID string `json:"userId"`
}

// RoomPayload carries the room ID for join-room and leave-room.
type RoomPayload struct {
	RoomID string `json:"roomId"`
}

// SendMessagePayload is the inbound send-message request.
type SendMessagePayload struct {
	ChatID  string `json:"chatId"`
	Sender  string `json:"sender"`
	Content string `json:"content,omitempty"`
	Image   string `json:"image,omitempty"`
	Kind    string `json:"type,omitempty"`
}

// MarkReadPayload is the inbound mark-read request.
type MarkReadPayload struct {
	ChatID string `json:"chatId"`
	UserID string `json:"userId"`
}

// ChatCreatedPayload notifies the gateway that the HTTP layer persisted a new
// chat; the creator's client supplies the participant list to notify.
type ChatCreatedPayload struct {
	Chat           json.RawMessage `json:"chat"`
	ParticipantIDs []string        `json:"participantIds"`
}

// ChatDeletedPayload notifies the gateway of a chat deletion, or of a global
// wipe when All is set.
type ChatDeletedPayload struct {
	ChatID       string   `json:"chatId,omitempty"`
	Participants []string `json:"participants,omitempty"`
	All          bool     `json:"all,omitempty"`
}

// StatusChangePayload is the outbound user-status-change event.
type StatusChangePayload struct {
	UserID   string `json:"userId"`
	IsOnline bool   `json:"isOnline"`
}

// PresenceStatePayload answers a get-presence query with the full online set.
type PresenceStatePayload struct {
	UserIDs []string `json:"userIds"`
}

// MessageEvent is the enriched message broadcast to a room: the persisted
// message joined with sender display data, plus a resolvable image URL when
// the message references an object storage key.
type MessageEvent struct {
	store.MessageWithSender
	ImageURL string `json:"imageUrl,omitempty"`
}

// ChatUpdatePayload is the outbound chat-last-message-updated event, letting
// participants not viewing the chat move it to the top of their list.
type ChatUpdatePayload struct {
	Chat     *store.ChatSummary `json:"chat"`
	SenderID string             `json:"senderId"`
}

// MessagesReadPayload is the outbound messages-read event.
type MessagesReadPayload struct {
	UserID string             `json:"userId"`
	ChatID string             `json:"chatId"`
	ReadAt time.Time          `json:"readAt"`
	Chat   *store.ChatSummary `json:"chat"`
}

// DeleteChatsPayload instructs clients to drop one chat, or all local chats.
type DeleteChatsPayload struct {
	ChatID string `json:"chatId,omitempty"`
	All    bool   `json:"all,omitempty"`
}

// ErrorPayload is the outbound error event for rejected inbound events.
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
