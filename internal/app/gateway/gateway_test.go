package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"testing"
	"time"

	"chatgate/internal/app/store"
	"chatgate/internal/pkg/errs"
)

func TestAnnounceBroadcastsSingleOnlineTransition(t *testing.T) {
	gw := New(newFakeStore(), nil)

	observer := connectedConn(gw, "observer")
	tab1 := connectedConn(gw, "tab1")
	tab2 := connectedConn(gw, "tab2")

	gw.Announce(tab1, "alice")

	frame := mustFrame(t, observer, TypeUserStatusChange)
	var status StatusChangePayload
	mustPayload(t, frame, &status)
	if status.UserID != "alice" || !status.IsOnline {
		t.Fatalf("got %+v, want alice online", status)
	}
	drain(tab1)
	drain(tab2)

	// A second tab of the same user must not produce another transition.
	gw.Announce(tab2, "alice")
	assertNoFrame(t, observer)
	assertNoFrame(t, tab1)
	assertNoFrame(t, tab2)
}

func TestDisconnectBroadcastsOfflineOnlyOnLastConnection(t *testing.T) {
	gw := New(newFakeStore(), nil)

	observer := connectedConn(gw, "observer")
	tab1 := connectedConn(gw, "tab1")
	tab2 := connectedConn(gw, "tab2")
	gw.Announce(tab1, "alice")
	gw.Announce(tab2, "alice")
	drain(observer)
	drain(tab1)
	drain(tab2)

	gw.Disconnect(tab1)
	assertNoFrame(t, observer)

	gw.Disconnect(tab2)

	frame := mustFrame(t, observer, TypeUserStatusChange)
	var status StatusChangePayload
	mustPayload(t, frame, &status)
	if status.UserID != "alice" || status.IsOnline {
		t.Fatalf("got %+v, want alice offline", status)
	}
}

func TestAnnounceRebindReleasesPreviousIdentity(t *testing.T) {
	gw := New(newFakeStore(), nil)

	observer := connectedConn(gw, "observer")
	c := connectedConn(gw, "c1")
	gw.Announce(c, "alice")
	drain(observer)
	drain(c)

	gw.Announce(c, "bob")

	frame := mustFrame(t, observer, TypeUserStatusChange)
	var status StatusChangePayload
	mustPayload(t, frame, &status)
	if status.UserID != "alice" || status.IsOnline {
		t.Fatalf("first event %+v, want alice offline", status)
	}

	frame = mustFrame(t, observer, TypeUserStatusChange)
	mustPayload(t, frame, &status)
	if status.UserID != "bob" || !status.IsOnline {
		t.Fatalf("second event %+v, want bob online", status)
	}
}

func TestPresenceSnapshot(t *testing.T) {
	gw := New(newFakeStore(), nil)

	a := connectedConn(gw, "a")
	b := connectedConn(gw, "b")
	gw.Announce(a, "alice")
	gw.Announce(b, "bob")

	c := connectedConn(gw, "c")
	gw.Presence(c)

	frame := mustFrame(t, c, TypePresenceState)
	var state PresenceStatePayload
	mustPayload(t, frame, &state)

	sort.Strings(state.UserIDs)
	if len(state.UserIDs) != 2 || state.UserIDs[0] != "alice" || state.UserIDs[1] != "bob" {
		t.Fatalf("presence state = %v, want [alice bob]", state.UserIDs)
	}
}

func TestSendMessageDeliversToRoomThenParticipants(t *testing.T) {
	fs := newFakeStore()
	fs.addChat("chat1", "alice", "bob")
	gw := New(fs, nil)

	a := connectedConn(gw, "a")
	b := connectedConn(gw, "b")
	gw.Announce(a, "alice")
	gw.Announce(b, "bob")
	gw.JoinRoom(a, "chat1")
	gw.JoinRoom(b, "chat1")
	drain(a)
	drain(b)

	gw.SendMessage(context.Background(), a, SendMessagePayload{
		ChatID:  "chat1",
		Sender:  "alice",
		Content: "hi bob",
	})

	for _, c := range []*Conn{a, b} {
		frame := mustFrame(t, c, TypeNewMessage)
		var msg store.MessageWithSender
		mustPayload(t, frame, &msg)

		if msg.ChatID != "chat1" || msg.Content != "hi bob" {
			t.Fatalf("conn %q received message %+v", c.ID(), msg)
		}
		if msg.Sender.ID != "alice" {
			t.Fatalf("conn %q received sender %+v, want alice", c.ID(), msg.Sender)
		}
		if msg.Kind != "text" {
			t.Fatalf("conn %q received kind %q, want text", c.ID(), msg.Kind)
		}
		if len(msg.ReadBy) != 1 || msg.ReadBy[0].UserID != "alice" {
			t.Fatalf("conn %q received readBy %+v, want seeded sender receipt", c.ID(), msg.ReadBy)
		}

		frame = mustFrame(t, c, TypeChatLastMessageUpdated)
		var update ChatUpdatePayload
		mustPayload(t, frame, &update)
		if update.Chat == nil || update.Chat.ID != "chat1" || update.SenderID != "alice" {
			t.Fatalf("conn %q received chat update %+v", c.ID(), update)
		}

		assertNoFrame(t, c)
	}

	ids := fs.storedMessageIDs("chat1")
	if len(ids) != 1 {
		t.Fatalf("store holds %d messages, want 1", len(ids))
	}

	fs.mu.Lock()
	lastID := fs.lastMsg["chat1"]
	fs.mu.Unlock()
	if lastID != ids[0] {
		t.Fatalf("latest-message pointer = %q, want %q", lastID, ids[0])
	}
}

func TestSendMessageReachesParticipantOutsideRoom(t *testing.T) {
	fs := newFakeStore()
	fs.addChat("chat1", "alice", "bob")
	gw := New(fs, nil)

	a := connectedConn(gw, "a")
	b := connectedConn(gw, "b")
	gw.Announce(a, "alice")
	gw.Announce(b, "bob")
	// Only alice is viewing the chat; bob is elsewhere in the app.
	gw.JoinRoom(a, "chat1")
	drain(a)
	drain(b)

	gw.SendMessage(context.Background(), a, SendMessagePayload{
		ChatID:  "chat1",
		Sender:  "alice",
		Content: "ping",
	})

	mustFrame(t, a, TypeNewMessage)
	mustFrame(t, a, TypeChatLastMessageUpdated)

	// Bob skips the room broadcast but still gets the list-level update.
	frame := mustFrame(t, b, TypeChatLastMessageUpdated)
	var update ChatUpdatePayload
	mustPayload(t, frame, &update)
	if update.Chat == nil || update.Chat.ID != "chat1" || update.SenderID != "alice" {
		t.Fatalf("bob received chat update %+v", update)
	}
	assertNoFrame(t, b)
}

func TestSendMessageValidation(t *testing.T) {
	fs := newFakeStore()
	fs.addChat("chat1", "alice", "bob")
	gw := New(fs, nil)

	a := connectedConn(gw, "a")
	b := connectedConn(gw, "b")
	gw.Announce(a, "alice")
	gw.Announce(b, "bob")
	gw.JoinRoom(b, "chat1")
	drain(a)
	drain(b)

	tooLong := make([]byte, MaxContentBytes+1)
	for i := range tooLong {
		tooLong[i] = 'x'
	}

	cases := []struct {
		name     string
		payload  SendMessagePayload
		wantCode int
	}{
		{"missing chat", SendMessagePayload{Sender: "alice", Content: "hi"}, errs.ErrInvalidParams},
		{"missing sender", SendMessagePayload{ChatID: "chat1", Content: "hi"}, errs.ErrInvalidParams},
		{"empty body", SendMessagePayload{ChatID: "chat1", Sender: "alice"}, errs.ErrMessageEmpty},
		{"oversized content", SendMessagePayload{ChatID: "chat1", Sender: "alice", Content: string(tooLong)}, errs.ErrMessageContentTooLong},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gw.SendMessage(context.Background(), a, tc.payload)

			frame := mustFrame(t, a, TypeErrorEvent)
			var errEvent ErrorPayload
			mustPayload(t, frame, &errEvent)
			if errEvent.Code != tc.wantCode {
				t.Fatalf("error code = %d, want %d", errEvent.Code, tc.wantCode)
			}

			assertNoFrame(t, b)
		})
	}

	if got := fs.storedMessageIDs("chat1"); len(got) != 0 {
		t.Fatalf("store holds %d messages after rejected sends, want 0", len(got))
	}
}

func TestSendMessageStoreFailureSuppressesBroadcast(t *testing.T) {
	fs := newFakeStore()
	fs.addChat("chat1", "alice", "bob")
	fs.insertErr = errors.New("connection refused")
	gw := New(fs, nil)

	a := connectedConn(gw, "a")
	b := connectedConn(gw, "b")
	gw.Announce(a, "alice")
	gw.Announce(b, "bob")
	gw.JoinRoom(a, "chat1")
	gw.JoinRoom(b, "chat1")
	drain(a)
	drain(b)

	gw.SendMessage(context.Background(), a, SendMessagePayload{
		ChatID:  "chat1",
		Sender:  "alice",
		Content: "hi",
	})

	frame := mustFrame(t, a, TypeErrorEvent)
	var errEvent ErrorPayload
	mustPayload(t, frame, &errEvent)
	if errEvent.Code != errs.ErrStoreUnavailable {
		t.Fatalf("error code = %d, want %d", errEvent.Code, errs.ErrStoreUnavailable)
	}

	assertNoFrame(t, b)
}

func TestSendMessageUnknownChat(t *testing.T) {
	fs := newFakeStore()
	gw := New(fs, nil)

	a := connectedConn(gw, "a")
	gw.Announce(a, "alice")
	drain(a)

	gw.SendMessage(context.Background(), a, SendMessagePayload{
		ChatID:  "ghost",
		Sender:  "alice",
		Content: "anyone there",
	})

	frame := mustFrame(t, a, TypeErrorEvent)
	var errEvent ErrorPayload
	mustPayload(t, frame, &errEvent)
	if errEvent.Code != errs.ErrChatNotFound {
		t.Fatalf("error code = %d, want %d", errEvent.Code, errs.ErrChatNotFound)
	}
}

func TestMarkReadIsIdempotentButAlwaysBroadcasts(t *testing.T) {
	fs := newFakeStore()
	fs.addChat("chat1", "alice", "bob")
	gw := New(fs, nil)

	a := connectedConn(gw, "a")
	b := connectedConn(gw, "b")
	gw.Announce(a, "alice")
	gw.Announce(b, "bob")
	gw.JoinRoom(a, "chat1")
	gw.JoinRoom(b, "chat1")
	drain(a)
	drain(b)

	ctx := context.Background()
	gw.SendMessage(ctx, a, SendMessagePayload{ChatID: "chat1", Sender: "alice", Content: "one"})
	gw.SendMessage(ctx, a, SendMessagePayload{ChatID: "chat1", Sender: "alice", Content: "two"})
	drain(a)
	drain(b)

	gw.MarkRead(ctx, b, MarkReadPayload{ChatID: "chat1", UserID: "bob"})

	for _, c := range []*Conn{a, b} {
		frame := mustFrame(t, c, TypeMessagesRead)
		var read MessagesReadPayload
		mustPayload(t, frame, &read)
		if read.UserID != "bob" || read.ChatID != "chat1" {
			t.Fatalf("conn %q received %+v", c.ID(), read)
		}
		if read.Chat == nil || read.Chat.ID != "chat1" {
			t.Fatalf("conn %q received read event without chat summary", c.ID())
		}
	}

	var readAts []time.Time
	for _, id := range fs.storedMessageIDs("chat1") {
		if got := fs.receiptCount(id); got != 2 {
			t.Fatalf("message %q has %d receipts, want 2 (sender + reader)", id, got)
		}
		fs.mu.Lock()
		readAts = append(readAts, fs.reads[id]["bob"])
		fs.mu.Unlock()
	}
	if len(readAts) != 2 || !readAts[0].Equal(readAts[1]) {
		t.Fatalf("reader receipts stamped %v, want one shared readAt", readAts)
	}

	// Marking again changes nothing in the store but still notifies the room.
	gw.MarkRead(ctx, b, MarkReadPayload{ChatID: "chat1", UserID: "bob"})
	mustFrame(t, a, TypeMessagesRead)
	mustFrame(t, b, TypeMessagesRead)

	for _, id := range fs.storedMessageIDs("chat1") {
		if got := fs.receiptCount(id); got != 2 {
			t.Fatalf("message %q has %d receipts after repeat, want 2", id, got)
		}
	}
}

func TestMarkReadValidation(t *testing.T) {
	gw := New(newFakeStore(), nil)

	a := connectedConn(gw, "a")
	gw.Announce(a, "alice")
	drain(a)

	gw.MarkRead(context.Background(), a, MarkReadPayload{ChatID: "chat1"})

	frame := mustFrame(t, a, TypeErrorEvent)
	var errEvent ErrorPayload
	mustPayload(t, frame, &errEvent)
	if errEvent.Code != errs.ErrInvalidParams {
		t.Fatalf("error code = %d, want %d", errEvent.Code, errs.ErrInvalidParams)
	}
}

func TestChatCreatedFansOutToAllParticipantConnections(t *testing.T) {
	gw := New(newFakeStore(), nil)

	aliceTab1 := connectedConn(gw, "a1")
	aliceTab2 := connectedConn(gw, "a2")
	bob := connectedConn(gw, "b")
	dave := connectedConn(gw, "d")
	gw.Announce(aliceTab1, "alice")
	gw.Announce(aliceTab2, "alice")
	gw.Announce(bob, "bob")
	gw.Announce(dave, "dave")
	for _, c := range []*Conn{aliceTab1, aliceTab2, bob, dave} {
		drain(c)
	}

	chatDoc := json.RawMessage(`{"id":"chat9","type":"group"}`)
	gw.ChatCreated(aliceTab1, ChatCreatedPayload{
		Chat: chatDoc,
		// carol is offline and silently skipped
		ParticipantIDs: []string{"alice", "bob", "carol"},
	})

	for _, c := range []*Conn{aliceTab1, aliceTab2, bob} {
		frame := mustFrame(t, c, TypeNewChatCreated)
		if string(frame.Payload) != string(chatDoc) {
			t.Fatalf("conn %q received payload %s, want %s", c.ID(), frame.Payload, chatDoc)
		}
	}
	assertNoFrame(t, dave)
}

func TestChatDeletedTargetsListedParticipants(t *testing.T) {
	gw := New(newFakeStore(), nil)

	a := connectedConn(gw, "a")
	b := connectedConn(gw, "b")
	d := connectedConn(gw, "d")
	gw.Announce(a, "alice")
	gw.Announce(b, "bob")
	gw.Announce(d, "dave")
	for _, c := range []*Conn{a, b, d} {
		drain(c)
	}

	gw.ChatDeleted(a, ChatDeletedPayload{
		ChatID:       "chat1",
		Participants: []string{"alice", "bob"},
	})

	for _, c := range []*Conn{a, b} {
		frame := mustFrame(t, c, TypeDeleteClientChats)
		var del DeleteChatsPayload
		mustPayload(t, frame, &del)
		if del.ChatID != "chat1" || del.All {
			t.Fatalf("conn %q received %+v", c.ID(), del)
		}
	}
	assertNoFrame(t, d)
}

func TestChatDeletedAllEchoesCallerOnly(t *testing.T) {
	gw := New(newFakeStore(), nil)

	aliceTab1 := connectedConn(gw, "a1")
	aliceTab2 := connectedConn(gw, "a2")
	bob := connectedConn(gw, "b")
	gw.Announce(aliceTab1, "alice")
	gw.Announce(aliceTab2, "alice")
	gw.Announce(bob, "bob")
	for _, c := range []*Conn{aliceTab1, aliceTab2, bob} {
		drain(c)
	}

	gw.ChatDeleted(aliceTab1, ChatDeletedPayload{All: true})

	frame := mustFrame(t, aliceTab1, TypeDeleteClientChats)
	var del DeleteChatsPayload
	mustPayload(t, frame, &del)
	if !del.All || del.ChatID != "" {
		t.Fatalf("caller received %+v, want all flag only", del)
	}

	// The wipe concerns only the calling connection, not even the same
	// user's other tabs.
	assertNoFrame(t, aliceTab2)
	assertNoFrame(t, bob)
}
