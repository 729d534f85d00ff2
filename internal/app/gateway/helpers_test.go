package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"chatgate/internal/app/store"
	"chatgate/internal/app/user"
)

const frameWait = 2 * time.Second

// fakeStore is an in-memory store.Store used to exercise the gateway
// pipelines without a database. Error fields inject failures per call site.
type fakeStore struct {
	mu sync.Mutex

	messages  map[string]store.Message
	reads     map[string]map[string]time.Time
	lastMsg   map[string]string
	summaries map[string]*store.ChatSummary
	usernames map[string]string

	insertErr  error
	findErr    error
	setLastErr error
	summaryErr error
	markErr    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		messages:  make(map[string]store.Message),
		reads:     make(map[string]map[string]time.Time),
		lastMsg:   make(map[string]string),
		summaries: make(map[string]*store.ChatSummary),
		usernames: make(map[string]string),
	}
}

// addChat registers a chat summary whose participants are the given user IDs.
func (f *fakeStore) addChat(chatID string, participantIDs ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	participants := make([]user.User, 0, len(participantIDs))
	for _, id := range participantIDs {
		participants = append(participants, user.User{ID: id, Username: f.username(id)})
	}

	f.summaries[chatID] = &store.ChatSummary{
		ID:           chatID,
		Kind:         "direct",
		CreatedAt:    time.Now().UTC(),
		Participants: participants,
	}
}

func (f *fakeStore) username(id string) string {
	if name, ok := f.usernames[id]; ok {
		return name
	}
	return id
}

func (f *fakeStore) InsertMessage(_ context.Context, m store.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.insertErr != nil {
		return f.insertErr
	}

	receipts := make(map[string]time.Time, len(m.ReadBy))
	for _, r := range m.ReadBy {
		receipts[r.UserID] = r.ReadAt
	}

	f.messages[m.ID] = m
	f.reads[m.ID] = receipts
	return nil
}

func (f *fakeStore) FindMessage(_ context.Context, id string) (*store.MessageWithSender, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.findErr != nil {
		return nil, f.findErr
	}

	m, ok := f.messages[id]
	if !ok {
		return nil, store.ErrNotFound
	}

	m.ReadBy = nil
	for userID, readAt := range f.reads[id] {
		m.ReadBy = append(m.ReadBy, store.ReadReceipt{UserID: userID, ReadAt: readAt})
	}

	return &store.MessageWithSender{
		Message: m,
		Sender:  user.User{ID: m.SenderID, Username: f.username(m.SenderID)},
	}, nil
}

func (f *fakeStore) SetLastMessage(_ context.Context, chatID, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.setLastErr != nil {
		return f.setLastErr
	}

	if _, ok := f.summaries[chatID]; !ok {
		return store.ErrNotFound
	}

	f.lastMsg[chatID] = messageID
	return nil
}

func (f *fakeStore) ChatSummary(_ context.Context, chatID string) (*store.ChatSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.summaryErr != nil {
		return nil, f.summaryErr
	}

	summary, ok := f.summaries[chatID]
	if !ok {
		return nil, store.ErrNotFound
	}

	cp := *summary
	return &cp, nil
}

func (f *fakeStore) MarkMessagesRead(_ context.Context, chatID, readerID string, readAt time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.markErr != nil {
		return 0, f.markErr
	}

	var marked int64
	for id, m := range f.messages {
		if m.ChatID != chatID {
			continue
		}
		if _, read := f.reads[id][readerID]; read {
			continue
		}
		f.reads[id][readerID] = readAt
		marked++
	}
	return marked, nil
}

func (f *fakeStore) Close() {}

// receiptCount reports how many read receipts the message holds.
func (f *fakeStore) receiptCount(messageID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reads[messageID])
}

// storedMessageIDs returns the IDs of all persisted messages in the chat.
func (f *fakeStore) storedMessageIDs(chatID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	var ids []string
	for id, m := range f.messages {
		if m.ChatID == chatID {
			ids = append(ids, id)
		}
	}
	return ids
}

// mustFrame receives the next frame queued on the connection and asserts its
// event type, failing the test if nothing arrives within the deadline.
func mustFrame(t *testing.T, c *Conn, wantType string) Frame {
	t.Helper()

	select {
	case raw := <-c.Outbound():
		var frame Frame
		if err := json.Unmarshal(raw, &frame); err != nil {
			t.Fatalf("received invalid frame %q: %v", raw, err)
		}
		if frame.Type != wantType {
			t.Fatalf("received frame type %q, want %q", frame.Type, wantType)
		}
		return frame
	case <-time.After(frameWait):
		t.Fatalf("no %q frame received within %v", wantType, frameWait)
	}
	return Frame{}
}

// mustPayload decodes the frame payload into dst.
func mustPayload(t *testing.T, frame Frame, dst any) {
	t.Helper()

	if err := json.Unmarshal(frame.Payload, dst); err != nil {
		t.Fatalf("failed to decode %q payload: %v", frame.Type, err)
	}
}

// assertNoFrame asserts that the connection has nothing queued.
func assertNoFrame(t *testing.T, c *Conn) {
	t.Helper()

	select {
	case raw := <-c.Outbound():
		var frame Frame
		_ = json.Unmarshal(raw, &frame)
		t.Fatalf("unexpected frame %q queued: %s", frame.Type, raw)
	default:
	}
}

// drain discards every frame currently queued on the connection.
func drain(c *Conn) {
	for {
		select {
		case <-c.Outbound():
		default:
			return
		}
	}
}

// connectedConn creates a connection and registers it with the gateway.
func connectedConn(gw *Gateway, id string) *Conn {
	c := NewConn(id)
	gw.Connect(c)
	return c
}
