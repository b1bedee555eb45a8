package ws

import (
	"log"
	"net/http"

	"github.com/google/uuid"
	"nhooyr.io/websocket"
)

// ServeWS returns an HTTP handler that upgrades to WebSocket. The
// handshake carries the user identity as a ?userId query param; a
// connection with a missing or malformed one stays anonymous rather
// than being rejected. The identity is taken at face value here rather
// than re-verified against the session token.
func ServeWS(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var userID uuid.UUID
		if raw := r.URL.Query().Get("userId"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				log.Printf("ws: malformed userId %q, connection stays anonymous", raw)
			} else {
				userID = id
			}
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true, // Allow any origin (dev mode)
		})
		if err != nil {
			log.Printf("ws: accept error: %v", err)
			return
		}

		client := newClient(hub, conn, userID)
		hub.register <- client

		go client.WritePump()
		go client.ReadPump()
	}
}
