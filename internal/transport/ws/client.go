package ws

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
	sendBufSize  = 64
)

// Client is one live WebSocket connection. userID is uuid.Nil for
// anonymous connections: they get no presence entry and relay no typing
// events, but still receive broadcasts for as long as they stay open.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	connID uuid.UUID
	userID uuid.UUID

	send chan []byte
	done chan struct{}

	// closed is owned by the hub loop; see Hub.closeClient.
	closed bool
}

func newClient(hub *Hub, conn *websocket.Conn, userID uuid.UUID) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		connID: uuid.New(),
		userID: userID,
		send:   make(chan []byte, sendBufSize),
		done:   make(chan struct{}),
	}
}

func (c *Client) registered() bool {
	return c.userID != uuid.Nil
}

// ReadPump reads client events and routes them to the Hub. It unwinds on
// any read error, which covers both voluntary close and network failure.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		var event Event
		err := wsjson.Read(context.Background(), c.conn, &event)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				log.Printf("ws: connection %s closed", c.connID)
			} else {
				log.Printf("ws: read error on %s: %v", c.connID, err)
			}
			return
		}

		c.handleEvent(&event)
	}
}

// WritePump writes queued events to the WebSocket until the hub closes
// the send channel or the connection dies.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := c.conn.Write(ctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				log.Printf("ws: write error on %s: %v", c.connID, err)
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := c.conn.Ping(ctx)
			cancel()
			if err != nil {
				log.Printf("ws: ping error on %s: %v", c.connID, err)
				return
			}

		case <-c.done:
			return
		}
	}
}

// handleEvent routes an inbound client event. Malformed payloads are
// dropped with a log line, never an error back to the client.
func (c *Client) handleEvent(event *Event) {
	switch event.Name {
	case EventTyping, EventStopTyping:
		if !c.registered() {
			return // no identity to relay
		}
		var p TypingPayload
		if err := json.Unmarshal(event.Data, &p); err != nil || p.ReceiverID == uuid.Nil {
			log.Printf("ws: dropping malformed %s event from %s", event.Name, c.userID)
			return
		}
		c.hub.typing <- &typingReq{
			sender:     c,
			receiverID: p.ReceiverID,
			isTyping:   event.Name == EventTyping,
		}

	default:
		log.Printf("ws: ignoring unknown event %q on %s", event.Name, c.connID)
	}
}
