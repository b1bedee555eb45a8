package ws

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/vvukelic/ripple/internal/domain"
)

type recordingLastSeen struct {
	mu    sync.Mutex
	calls map[uuid.UUID]time.Time
	err   error
}

func (s *recordingLastSeen) UpdateLastSeen(ctx context.Context, userID uuid.UUID, seenAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls == nil {
		s.calls = make(map[uuid.UUID]time.Time)
	}
	s.calls[userID] = seenAt
	return s.err
}

func (s *recordingLastSeen) saw(userID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.calls[userID]
	return ok
}

func startHub(store LastSeenStore) *Hub {
	if store == nil {
		store = &recordingLastSeen{}
	}
	h := NewHub(store)
	go h.Run()
	return h
}

// connect registers a client without a real WebSocket behind it; tests
// read emitted events straight from the send channel.
func connect(h *Hub, userID uuid.UUID) *Client {
	c := newClient(h, nil, userID)
	h.register <- c
	return c
}

func recvEvent(t *testing.T, c *Client) *Event {
	t.Helper()
	select {
	case data, ok := <-c.send:
		if !ok {
			t.Fatal("send channel closed while waiting for event")
		}
		var evt Event
		if err := json.Unmarshal(data, &evt); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		return &evt
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return nil
}

func expectEvent(t *testing.T, c *Client, name string) *Event {
	t.Helper()
	evt := recvEvent(t, c)
	if evt.Name != name {
		t.Fatalf("expected event %q, got %q", name, evt.Name)
	}
	return evt
}

func expectNoEvent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data, ok := <-c.send:
		if ok {
			t.Fatalf("unexpected event: %s", data)
		}
	case <-time.After(100 * time.Millisecond):
	}
}

func decodePayload[T any](t *testing.T, evt *Event) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(evt.Data, &v); err != nil {
		t.Fatalf("unmarshal %s payload: %v", evt.Name, err)
	}
	return v
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

func TestHub_ConnectBroadcastsPresence(t *testing.T) {
	h := startHub(nil)
	aliceID := uuid.New()
	bobID := uuid.New()

	alice := connect(h, aliceID)
	snapshot := decodePayload[[]uuid.UUID](t, expectEvent(t, alice, EventGetOnlineUsers))
	if len(snapshot) != 1 || snapshot[0] != aliceID {
		t.Fatalf("expected snapshot with only alice, got %v", snapshot)
	}

	bob := connect(h, bobID)

	// Alice gets the new snapshot plus the incremental delta.
	snapshot = decodePayload[[]uuid.UUID](t, expectEvent(t, alice, EventGetOnlineUsers))
	if !containsID(snapshot, aliceID) || !containsID(snapshot, bobID) {
		t.Fatalf("expected both users in snapshot, got %v", snapshot)
	}
	status := decodePayload[StatusPayload](t, expectEvent(t, alice, EventUserStatusChanged))
	if status.UserID != bobID || status.Status != StatusOnline {
		t.Fatalf("expected bob online, got %+v", status)
	}

	// Bob gets the snapshot but not his own status delta.
	expectEvent(t, bob, EventGetOnlineUsers)
	expectNoEvent(t, bob)
}

func TestHub_DisconnectBroadcastsAndPersistsLastSeen(t *testing.T) {
	store := &recordingLastSeen{}
	h := startHub(store)
	aliceID := uuid.New()
	bobID := uuid.New()

	alice := connect(h, aliceID)
	expectEvent(t, alice, EventGetOnlineUsers)
	bob := connect(h, bobID)
	expectEvent(t, alice, EventGetOnlineUsers)
	expectEvent(t, alice, EventUserStatusChanged)
	expectEvent(t, bob, EventGetOnlineUsers)

	h.unregister <- alice

	snapshot := decodePayload[[]uuid.UUID](t, expectEvent(t, bob, EventGetOnlineUsers))
	if containsID(snapshot, aliceID) {
		t.Fatalf("expected alice gone from snapshot, got %v", snapshot)
	}
	status := decodePayload[StatusPayload](t, expectEvent(t, bob, EventUserStatusChanged))
	if status.UserID != aliceID || status.Status != StatusOffline {
		t.Fatalf("expected alice offline, got %+v", status)
	}

	// Last-seen persistence is async; give it a moment.
	deadline := time.Now().Add(time.Second)
	for !store.saw(aliceID) {
		if time.Now().After(deadline) {
			t.Fatal("last seen was never persisted")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// The closed connection gets nothing further.
	if _, ok := <-alice.send; ok {
		t.Fatal("expected alice's send channel to be closed")
	}
}

func TestHub_LastSeenFailureDoesNotBlockCleanup(t *testing.T) {
	store := &recordingLastSeen{err: context.DeadlineExceeded}
	h := startHub(store)
	aliceID := uuid.New()

	alice := connect(h, aliceID)
	expectEvent(t, alice, EventGetOnlineUsers)
	bob := connect(h, uuid.New())
	expectEvent(t, bob, EventGetOnlineUsers)
	expectEvent(t, alice, EventGetOnlineUsers)
	expectEvent(t, alice, EventUserStatusChanged)

	h.unregister <- alice

	// Presence cleanup and broadcasts proceed despite the store error.
	snapshot := decodePayload[[]uuid.UUID](t, expectEvent(t, bob, EventGetOnlineUsers))
	if containsID(snapshot, aliceID) {
		t.Fatalf("expected alice unregistered, got %v", snapshot)
	}
	expectEvent(t, bob, EventUserStatusChanged)
}

func TestHub_TypingRelay(t *testing.T) {
	h := startHub(nil)
	aliceID := uuid.New()
	bobID := uuid.New()

	alice := connect(h, aliceID)
	expectEvent(t, alice, EventGetOnlineUsers)
	bob := connect(h, bobID)
	expectEvent(t, bob, EventGetOnlineUsers)
	expectEvent(t, alice, EventGetOnlineUsers)
	expectEvent(t, alice, EventUserStatusChanged)

	payload, _ := json.Marshal(TypingPayload{ReceiverID: bobID})
	alice.handleEvent(&Event{Name: EventTyping, Data: payload})
	alice.handleEvent(&Event{Name: EventStopTyping, Data: payload})

	first := decodePayload[UserTypingPayload](t, expectEvent(t, bob, EventUserTyping))
	if first.SenderID != aliceID || !first.IsTyping {
		t.Fatalf("expected typing=true from alice, got %+v", first)
	}
	second := decodePayload[UserTypingPayload](t, expectEvent(t, bob, EventUserTyping))
	if second.SenderID != aliceID || second.IsTyping {
		t.Fatalf("expected typing=false from alice, got %+v", second)
	}
	expectNoEvent(t, bob)
	expectNoEvent(t, alice)
}

func TestHub_TypingToOfflineReceiverIsDropped(t *testing.T) {
	h := startHub(nil)
	alice := connect(h, uuid.New())
	expectEvent(t, alice, EventGetOnlineUsers)

	payload, _ := json.Marshal(TypingPayload{ReceiverID: uuid.New()})
	alice.handleEvent(&Event{Name: EventTyping, Data: payload})

	expectNoEvent(t, alice)
}

func TestHub_MalformedTypingIsDropped(t *testing.T) {
	h := startHub(nil)
	aliceID := uuid.New()
	bobID := uuid.New()

	alice := connect(h, aliceID)
	expectEvent(t, alice, EventGetOnlineUsers)
	bob := connect(h, bobID)
	expectEvent(t, bob, EventGetOnlineUsers)
	expectEvent(t, alice, EventGetOnlineUsers)
	expectEvent(t, alice, EventUserStatusChanged)

	alice.handleEvent(&Event{Name: EventTyping, Data: []byte(`{}`)})
	alice.handleEvent(&Event{Name: EventTyping, Data: []byte(`not json`)})

	expectNoEvent(t, bob)
}

func TestHub_DeliverMessageOnlyWhenReceiverOnline(t *testing.T) {
	h := startHub(nil)
	aliceID := uuid.New()
	bobID := uuid.New()

	bob := connect(h, bobID)
	expectEvent(t, bob, EventGetOnlineUsers)

	text := "hi"
	msg := &domain.Message{
		ID:         uuid.New(),
		SenderID:   aliceID,
		ReceiverID: bobID,
		Text:       &text,
		CreatedAt:  time.Now(),
	}
	h.DeliverMessage(msg)

	got := decodePayload[domain.Message](t, expectEvent(t, bob, EventNewMessage))
	if got.ID != msg.ID || got.SenderID != aliceID || got.Text == nil || *got.Text != "hi" {
		t.Fatalf("unexpected message payload: %+v", got)
	}

	// Offline receiver: silent no-op.
	h.DeliverMessage(&domain.Message{
		ID:         uuid.New(),
		SenderID:   aliceID,
		ReceiverID: uuid.New(),
		Text:       &text,
	})
	expectNoEvent(t, bob)
}

func TestHub_ReadReceiptOnlyWhenSenderOnline(t *testing.T) {
	h := startHub(nil)
	aliceID := uuid.New()
	bobID := uuid.New()

	alice := connect(h, aliceID)
	expectEvent(t, alice, EventGetOnlineUsers)

	h.DeliverReadReceipt(bobID, aliceID)

	receipt := decodePayload[MessagesReadPayload](t, expectEvent(t, alice, EventMessagesRead))
	if receipt.ReadBy != bobID {
		t.Fatalf("expected readBy=%s, got %+v", bobID, receipt)
	}

	// The reverse direction has no live connection; nothing happens.
	h.DeliverReadReceipt(aliceID, bobID)
	expectNoEvent(t, alice)
}

func TestHub_LastConnectionWinsAndClosesOld(t *testing.T) {
	h := startHub(nil)
	userID := uuid.New()

	first := connect(h, userID)
	expectEvent(t, first, EventGetOnlineUsers)

	second := connect(h, userID)
	expectEvent(t, second, EventGetOnlineUsers)

	// The displaced connection is force-closed before any new broadcasts.
	if _, ok := <-first.send; ok {
		t.Fatal("expected first connection's send channel to be closed")
	}

	// Delivery now lands on the new connection only.
	text := "still here"
	h.DeliverMessage(&domain.Message{
		ID:         uuid.New(),
		SenderID:   uuid.New(),
		ReceiverID: userID,
		Text:       &text,
	})
	expectEvent(t, second, EventNewMessage)

	// When the old pump unwinds it must not knock the new mapping offline.
	h.unregister <- first
	expectNoEvent(t, second)

	h.DeliverMessage(&domain.Message{
		ID:         uuid.New(),
		SenderID:   uuid.New(),
		ReceiverID: userID,
		Text:       &text,
	})
	expectEvent(t, second, EventNewMessage)
}

func TestHub_AnonymousConnectionHasNoPresence(t *testing.T) {
	h := startHub(nil)

	anon := connect(h, uuid.Nil)
	expectNoEvent(t, anon)

	// Broadcasts still reach anonymous connections.
	aliceID := uuid.New()
	connect(h, aliceID)
	snapshot := decodePayload[[]uuid.UUID](t, expectEvent(t, anon, EventGetOnlineUsers))
	if len(snapshot) != 1 || snapshot[0] != aliceID {
		t.Fatalf("expected only alice online, got %v", snapshot)
	}
	expectEvent(t, anon, EventUserStatusChanged)

	// Typing from an anonymous connection is ignored.
	payload, _ := json.Marshal(TypingPayload{ReceiverID: aliceID})
	anon.handleEvent(&Event{Name: EventTyping, Data: payload})
	expectNoEvent(t, anon)
}

// Full exchange: connect, deliver, read receipt, disconnect.
func TestHub_ChatScenario(t *testing.T) {
	store := &recordingLastSeen{}
	h := startHub(store)
	aliceID := uuid.New()
	bobID := uuid.New()

	alice := connect(h, aliceID)
	expectEvent(t, alice, EventGetOnlineUsers)
	bob := connect(h, bobID)
	expectEvent(t, bob, EventGetOnlineUsers)
	expectEvent(t, alice, EventGetOnlineUsers)
	expectEvent(t, alice, EventUserStatusChanged)

	text := "hi"
	h.DeliverMessage(&domain.Message{
		ID:         uuid.New(),
		SenderID:   aliceID,
		ReceiverID: bobID,
		Text:       &text,
		CreatedAt:  time.Now(),
	})
	got := decodePayload[domain.Message](t, expectEvent(t, bob, EventNewMessage))
	if got.SenderID != aliceID || got.ReceiverID != bobID || *got.Text != "hi" {
		t.Fatalf("unexpected delivery: %+v", got)
	}

	// Bob reads the thread; alice learns about it.
	h.DeliverReadReceipt(bobID, aliceID)
	receipt := decodePayload[MessagesReadPayload](t, expectEvent(t, alice, EventMessagesRead))
	if receipt.ReadBy != bobID {
		t.Fatalf("expected readBy=%s, got %+v", bobID, receipt)
	}

	// Alice disconnects; bob observes both presence events.
	h.unregister <- alice
	snapshot := decodePayload[[]uuid.UUID](t, expectEvent(t, bob, EventGetOnlineUsers))
	if containsID(snapshot, aliceID) {
		t.Fatalf("expected alice offline, snapshot %v", snapshot)
	}
	status := decodePayload[StatusPayload](t, expectEvent(t, bob, EventUserStatusChanged))
	if status.UserID != aliceID || status.Status != StatusOffline {
		t.Fatalf("expected alice offline delta, got %+v", status)
	}
}
