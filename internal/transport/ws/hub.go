package ws

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/vvukelic/ripple/internal/domain"
)

// LastSeenStore persists the moment a user's connection closed.
type LastSeenStore interface {
	UpdateLastSeen(ctx context.Context, userID uuid.UUID, seenAt time.Time) error
}

// Hub owns the presence registry, the set of live connections, and all
// event fan-out. Every piece of state is confined to the Run loop
// goroutine; other goroutines talk to the Hub through channels only, so
// each registry mutation and emission is a discrete atomic step.
type Hub struct {
	registry *Registry
	conns    map[uuid.UUID]*Client // connID → client, anonymous included

	lastSeen LastSeenStore

	register   chan *Client
	unregister chan *Client
	typing     chan *typingReq
	deliver    chan *domain.Message
	receipts   chan *readReceipt
}

type typingReq struct {
	sender     *Client
	receiverID uuid.UUID
	isTyping   bool
}

type readReceipt struct {
	readerID uuid.UUID
	senderID uuid.UUID
}

func NewHub(lastSeen LastSeenStore) *Hub {
	return &Hub{
		registry:   NewRegistry(),
		conns:      make(map[uuid.UUID]*Client),
		lastSeen:   lastSeen,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		typing:     make(chan *typingReq, 256),
		deliver:    make(chan *domain.Message, 256),
		receipts:   make(chan *readReceipt, 256),
	}
}

// Run starts the Hub's main event loop. Call this in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.handleRegister(client)
		case client := <-h.unregister:
			h.handleUnregister(client)
		case req := <-h.typing:
			h.handleTyping(req)
		case msg := <-h.deliver:
			h.handleDeliver(msg)
		case rcpt := <-h.receipts:
			h.handleReceipt(rcpt)
		}
	}
}

// DeliverMessage pushes a freshly persisted message toward its receiver's
// live connection, if any. Fire-and-forget.
func (h *Hub) DeliverMessage(msg *domain.Message) {
	h.deliver <- msg
}

// DeliverReadReceipt tells the original sender that readerID has read
// their messages. Fire-and-forget.
func (h *Hub) DeliverReadReceipt(readerID, senderID uuid.UUID) {
	h.receipts <- &readReceipt{readerID: readerID, senderID: senderID}
}

func (h *Hub) handleRegister(c *Client) {
	h.conns[c.connID] = c

	if !c.registered() {
		log.Printf("ws hub: anonymous connection %s (%d total)", c.connID, len(h.conns))
		return
	}

	// Last connection wins: a second login for the same user takes over
	// the mapping and the displaced connection is closed, rather than
	// leaving a stale socket that believes it is live.
	if oldConnID, ok := h.registry.Lookup(c.userID); ok && oldConnID != c.connID {
		if old, ok := h.conns[oldConnID]; ok {
			log.Printf("ws hub: user %s reconnected, closing old connection %s", c.userID, oldConnID)
			h.closeClient(old)
		}
	}

	h.registry.Register(c.userID, c.connID)
	log.Printf("ws hub: user %s connected (%d online)", c.userID, h.registry.Len())

	h.broadcastOnlineUsers()
	h.broadcastStatus(c.userID, StatusOnline, c.connID)
}

func (h *Hub) handleUnregister(c *Client) {
	h.closeClient(c)

	if !c.registered() {
		log.Printf("ws hub: anonymous connection %s closed (%d total)", c.connID, len(h.conns))
		return
	}

	// Only the connection that currently owns the mapping tears it down;
	// a displaced connection unregistering must not knock the newer one
	// offline.
	if connID, ok := h.registry.Lookup(c.userID); !ok || connID != c.connID {
		return
	}

	// Best effort, off the loop: presence cleanup proceeds regardless.
	userID := c.userID
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.lastSeen.UpdateLastSeen(ctx, userID, time.Now()); err != nil {
			log.Printf("ws hub: updating last seen for %s: %v", userID, err)
		}
	}()

	h.registry.Unregister(c.userID)
	log.Printf("ws hub: user %s disconnected (%d online)", c.userID, h.registry.Len())

	h.broadcastOnlineUsers()
	h.broadcastStatus(c.userID, StatusOffline, uuid.Nil)
}

func (h *Hub) handleTyping(req *typingReq) {
	receiver, ok := h.lookupClient(req.receiverID)
	if !ok {
		return // receiver offline: drop, no queuing
	}
	h.emit(receiver, EventUserTyping, UserTypingPayload{
		SenderID: req.sender.userID,
		IsTyping: req.isTyping,
	})
}

func (h *Hub) handleDeliver(msg *domain.Message) {
	receiver, ok := h.lookupClient(msg.ReceiverID)
	if !ok {
		return // offline receivers pick the message up on their next fetch
	}
	h.emit(receiver, EventNewMessage, msg)
}

func (h *Hub) handleReceipt(rcpt *readReceipt) {
	sender, ok := h.lookupClient(rcpt.senderID)
	if !ok {
		return
	}
	h.emit(sender, EventMessagesRead, MessagesReadPayload{ReadBy: rcpt.readerID})
}

// lookupClient resolves a user to their live connection through the
// registry. The mapping can be briefly stale around a disconnect; a miss
// on either step is a silent drop.
func (h *Hub) lookupClient(userID uuid.UUID) (*Client, bool) {
	connID, ok := h.registry.Lookup(userID)
	if !ok {
		return nil, false
	}
	client, ok := h.conns[connID]
	return client, ok
}

// closeClient removes the connection and releases its pumps. Safe to call
// twice: a displaced connection is closed once by takeover and again when
// its read pump unwinds.
func (h *Hub) closeClient(c *Client) {
	if c.closed {
		return
	}
	c.closed = true
	delete(h.conns, c.connID)
	close(c.send)
	close(c.done)
}

// broadcastOnlineUsers sends the full presence snapshot to every
// connection, anonymous ones included, so late joiners rebuild state.
func (h *Hub) broadcastOnlineUsers() {
	evt, err := NewEvent(EventGetOnlineUsers, h.registry.OnlineUserIDs())
	if err != nil {
		return
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	for _, c := range h.conns {
		h.trySend(c, data)
	}
}

// broadcastStatus sends the incremental presence delta. excludeConnID
// skips one connection (the newly connected user does not need its own
// online notice); uuid.Nil excludes nobody.
func (h *Hub) broadcastStatus(userID uuid.UUID, status string, excludeConnID uuid.UUID) {
	evt, err := NewEvent(EventUserStatusChanged, StatusPayload{UserID: userID, Status: status})
	if err != nil {
		return
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	for _, c := range h.conns {
		if c.connID == excludeConnID {
			continue
		}
		h.trySend(c, data)
	}
}

func (h *Hub) emit(c *Client, name string, payload any) {
	evt, err := NewEvent(name, payload)
	if err != nil {
		log.Printf("ws hub: marshal error: %v", err)
		return
	}
	data, err := json.Marshal(evt)
	if err != nil {
		log.Printf("ws hub: marshal error: %v", err)
		return
	}
	h.trySend(c, data)
}

// trySend never blocks the loop: a full send buffer means the client is
// too far behind and the event is dropped.
func (h *Hub) trySend(c *Client, data []byte) {
	select {
	case c.send <- data:
	default:
	}
}
