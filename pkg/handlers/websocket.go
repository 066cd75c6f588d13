package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"runtime/debug"
	"time"

	"notes-assistant/pkg/room"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// HandleWebSocket subscribes a client to the updates of one document
func (h *Handlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	documentID := mux.Vars(r)["documentId"]
	if _, err := h.store.LoadContent(r.Context(), documentID); err != nil {
		writeError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	username := r.URL.Query().Get("username")
	if username == "" {
		username = "Anonymous"
	}

	rm := h.roomManager.GetOrCreateRoom(documentID)
	client := &room.Client{
		ID:       uuid.New().String(),
		Username: username,
		Conn:     conn,
		Room:     rm,
		Send:     make(chan []byte, 256),
	}

	if !rm.Join(client) {
		log.Printf("Room %s is closed, dropping client %s", documentID, client.ID)
		conn.Close()
		return
	}

	go h.writePump(client)
	go h.readPump(client)
}

func unregister(c *room.Client) {
	select {
	case c.Room.Unregister <- c:
	default:
	}
}

// readPump keeps the connection alive and answers application pings.
// Content only changes through proposals, so nothing else is accepted.
func (h *Handlers) readPump(c *room.Client) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("panic in readPump for %s: %v\n%s", c.ID, r, debug.Stack())
		}
		unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(512)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket unexpected close for %s: %v", c.ID, err)
			}
			return
		}

		var msg struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Printf("Error parsing message from %s: %v", c.ID, err)
			continue
		}

		switch msg.Type {
		case "ping":
			select {
			case c.Send <- []byte(`{"type":"pong"}`):
			default:
			}
		default:
			log.Printf("Unknown message type from %s: %q", c.ID, msg.Type)
		}
	}
}

func (h *Handlers) writePump(c *room.Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		unregister(c)
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("WebSocket write error for %s: %v", c.ID, err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("Ping error for %s: %v", c.ID, err)
				return
			}
		}
	}
}
