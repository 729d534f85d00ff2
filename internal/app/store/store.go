/*
Package store defines the persistence collaborator consumed by the gateway.

The gateway only issues simple CRUD-style calls (insert, find, update, delete)
plus one join-style query that denormalizes a chat into the summary used for
list rendering. The interface keeps the gateway testable against an in-memory
fake; the Postgres implementation lives in postgres.go.
*/
package store

import (
	"context"
	"errors"
	"time"

	"chatgate/internal/app/user"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ReadReceipt records that one user has read one message.
// A given user appears at most once per message.
type ReadReceipt struct {
	UserID string    `json:"userId"`
	ReadAt time.Time `json:"readAt"`
}

// Message is the persisted chat message. Immutable once created, except for
// the append-only growth of its ReadBy set.
type Message struct {
	ID        string        `json:"id"`
	ChatID    string        `json:"chatId"`
	SenderID  string        `json:"sender"`
	Content   string        `json:"content,omitempty"`
	ImageKey  string        `json:"image,omitempty"`
	Kind      string        `json:"type,omitempty"`
	CreatedAt time.Time     `json:"timestamp"`
	ReadBy    []ReadReceipt `json:"readBy"`
}

// MessageWithSender is a Message joined with its sender's display data.
type MessageWithSender struct {
	Message
	Sender user.User `json:"senderUser"`
}

// ChatSummary is the denormalized view of a chat used for list rendering:
// participant display data plus the current latest message.
type ChatSummary struct {
	ID           string             `json:"id"`
	Kind         string             `json:"type"`
	Name         string             `json:"name,omitempty"`
	CreatedBy    string             `json:"createdBy,omitempty"`
	CreatedAt    time.Time          `json:"createdAt"`
	Participants []user.User        `json:"participantUsers"`
	LastMessage  *MessageWithSender `json:"lastMessage,omitempty"`
}

// ParticipantIDs returns the identity set of the chat's participants.
func (s *ChatSummary) ParticipantIDs() []string {
	ids := make([]string, 0, len(s.Participants))
	for _, p := range s.Participants {
		ids = append(ids, p.ID)
	}
	return ids
}

// Store is the persistence interface the gateway depends on.
type Store interface {
	// InsertMessage persists a new message together with its initial read
	// receipts (the sender reads their own message at creation time).
	InsertMessage(ctx context.Context, m Message) error

	// FindMessage loads one message by ID, joined with the sender's display
	// data and the full read receipt set. Returns ErrNotFound when missing.
	FindMessage(ctx context.Context, id string) (*MessageWithSender, error)

	// SetLastMessage updates the chat's pointer to its most recent message.
	SetLastMessage(ctx context.Context, chatID, messageID string) error

	// ChatSummary loads the denormalized summary for one chat.
	// Returns ErrNotFound when the chat does not exist.
	ChatSummary(ctx context.Context, chatID string) (*ChatSummary, error)

	// MarkMessagesRead appends a read receipt for readerID to every message in
	// the chat that readerID has not read yet, all stamped with readAt.
	// Idempotent: messages already read by readerID are left untouched.
	// Returns the number of messages newly marked.
	MarkMessagesRead(ctx context.Context, chatID, readerID string, readAt time.Time) (int64, error)

	// Close releases the underlying resources.
	Close()
}
