package gateway

import (
	"testing"
)

func TestBroadcasterEmitRoomReachesMembersOnly(t *testing.T) {
	b := NewBroadcaster()

	member := NewConn("member")
	outsider := NewConn("outsider")
	b.Register(member)
	b.Register(outsider)
	b.Join(member, "chat1")

	frame := []byte(`{"type":"ping"}`)
	b.EmitRoom("chat1", frame)

	select {
	case got := <-member.Outbound():
		if string(got) != string(frame) {
			t.Fatalf("member received %q, want %q", got, frame)
		}
	default:
		t.Fatal("member received nothing")
	}
	assertNoFrame(t, outsider)
}

func TestBroadcasterLeaveStopsDelivery(t *testing.T) {
	b := NewBroadcaster()

	c := NewConn("c1")
	b.Register(c)
	b.Join(c, "chat1")
	b.Leave(c, "chat1")

	b.EmitRoom("chat1", []byte(`{}`))
	assertNoFrame(t, c)

	// Leaving a room the connection never joined is a no-op.
	b.Leave(c, "never-joined")
}

func TestBroadcasterDropStripsAllRooms(t *testing.T) {
	b := NewBroadcaster()

	c := NewConn("c1")
	b.Register(c)
	b.Join(c, "chat1")
	b.Join(c, "chat2")
	b.Drop(c)

	b.EmitRoom("chat1", []byte(`{}`))
	b.EmitRoom("chat2", []byte(`{}`))
	b.EmitAll([]byte(`{}`))
	assertNoFrame(t, c)
}

func TestBroadcasterJoinIgnoredForUnregisteredConn(t *testing.T) {
	b := NewBroadcaster()

	stray := NewConn("stray")
	b.Join(stray, "chat1")

	b.EmitRoom("chat1", []byte(`{}`))
	assertNoFrame(t, stray)
}

func TestBroadcasterEmitAll(t *testing.T) {
	b := NewBroadcaster()

	c1 := NewConn("c1")
	c2 := NewConn("c2")
	b.Register(c1)
	b.Register(c2)

	b.EmitAll([]byte(`{}`))

	for _, c := range []*Conn{c1, c2} {
		select {
		case <-c.Outbound():
		default:
			t.Fatalf("connection %q received nothing from EmitAll", c.ID())
		}
	}
}

func TestConnEnqueueAfterClose(t *testing.T) {
	c := NewConn("c1")
	c.Close()

	if c.Enqueue([]byte(`{}`)) {
		t.Fatal("Enqueue on a closed connection should report failure")
	}

	// Close is safe to repeat.
	c.Close()

	select {
	case <-c.Done():
	default:
		t.Fatal("Done channel should be closed after Close")
	}
}

func TestConnEnqueueDropsWhenQueueFull(t *testing.T) {
	c := NewConn("c1")

	for i := 0; i < sendQueueSize; i++ {
		if !c.Enqueue([]byte(`{}`)) {
			t.Fatalf("enqueue %d failed before the queue filled", i)
		}
	}

	if c.Enqueue([]byte(`{}`)) {
		t.Fatal("Enqueue on a full queue should report failure")
	}
}
