package stream

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// ServeWS upgrades the request and streams the session's events until either
// side hangs up. A non-nil hello is written before any broadcast.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, sessionID string, hello []byte) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		log.Printf("websocket upgrade for %s: %v", sessionID, err)
		return
	}
	defer conn.Close()

	client := h.Register(sessionID)
	defer h.Unregister(client)

	done := make(chan struct{})
	go func() {
		defer close(done)
		// A failed write unblocks the read loop below.
		defer conn.Close()
		if hello != nil {
			if err := conn.WriteMessage(websocket.TextMessage, hello); err != nil {
				return
			}
		}
		for msg := range client.Send {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.Unregister(client)
	<-done
}
