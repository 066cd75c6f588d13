package room

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"sync"

	"notes-assistant/pkg/db"

	"github.com/gorilla/websocket"
)

// ErrOperationInFlight is matched by every BusyError.
var ErrOperationInFlight = errors.New("another operation is in flight for this document")

// State is the session state of an open document
type State int

const (
	Idle State = iota
	Applying
	Reverting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Applying:
		return "applying"
	case Reverting:
		return "reverting"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// BusyError rejects an apply or revert while another one is pending
type BusyError struct {
	DocumentID string
	Current    State
}

func (e *BusyError) Error() string {
	return fmt.Sprintf("document %s is busy: %s", e.DocumentID, e.Current)
}

func (e *BusyError) Is(target error) bool {
	return target == ErrOperationInFlight
}

// Client represents a websocket subscriber of a room
type Client struct {
	ID       string          `json:"id"`
	Username string          `json:"username"`
	Conn     *websocket.Conn `json:"-"`
	Room     *Room           `json:"-"`
	Send     chan []byte     `json:"-"`
}

type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Room is the editing session of one document. It enforces at most one
// apply or revert in flight and fans out update notifications.
type Room struct {
	ID         string
	Clients    map[string]*Client
	Broadcast  chan []byte
	Register   chan *Client
	Unregister chan *Client

	store db.ContentStore
	quit  chan struct{}

	stateMu sync.Mutex
	state   State

	mutex sync.RWMutex
}

// RoomManager manages all rooms
type RoomManager struct {
	rooms map[string]*Room
	mutex sync.RWMutex
	Store db.ContentStore
}

// NewRoomManager creates a new room manager
func NewRoomManager(store db.ContentStore) *RoomManager {
	return &RoomManager{
		rooms: make(map[string]*Room),
		Store: store,
	}
}

// GetOrCreateRoom gets an existing room or creates a new one
func (rm *RoomManager) GetOrCreateRoom(documentID string) *Room {
	rm.mutex.Lock()
	defer rm.mutex.Unlock()

	if room, ok := rm.rooms[documentID]; ok {
		return room
	}

	room := &Room{
		ID:         documentID,
		Clients:    make(map[string]*Client),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Broadcast:  make(chan []byte, 256),
		store:      rm.Store,
		quit:       make(chan struct{}),
	}
	rm.rooms[documentID] = room

	go room.run()

	return room
}

// Shutdown stops the event loops of all rooms
func (rm *RoomManager) Shutdown() {
	rm.mutex.Lock()
	defer rm.mutex.Unlock()
	for id, room := range rm.rooms {
		close(room.quit)
		delete(rm.rooms, id)
	}
}

// Join registers c with the room. It reports false if the room has been shut
// down, in which case c was not registered.
func (r *Room) Join(c *Client) bool {
	select {
	case <-r.quit:
		return false
	default:
	}
	select {
	case r.Register <- c:
		return true
	case <-r.quit:
		return false
	}
}

// State returns the current session state
func (r *Room) State() State {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	return r.state
}

// Begin moves the room from Idle into the state for op. The returned
// function moves it back to Idle and must be called exactly once.
func (r *Room) Begin(op State) (func(), error) {
	if op == Idle {
		return nil, fmt.Errorf("cannot begin %s", op)
	}

	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	if r.state != Idle {
		return nil, &BusyError{DocumentID: r.ID, Current: r.state}
	}
	r.state = op

	var once sync.Once
	return func() {
		once.Do(func() {
			r.stateMu.Lock()
			r.state = Idle
			r.stateMu.Unlock()
		})
	}, nil
}

// run handles room operations
func (r *Room) run() {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("panic in room.run: %v\n%s", rec, debug.Stack())
		}
	}()
	for {
		select {
		case client := <-r.Register:
			r.mutex.Lock()
			r.Clients[client.ID] = client
			r.mutex.Unlock()
			r.sendSnapshot(client)
			r.broadcastPresence("user_joined", client)
			log.Printf("Client %s joined room %s", client.ID, r.ID)

		case client := <-r.Unregister:
			r.mutex.Lock()
			if _, ok := r.Clients[client.ID]; ok {
				delete(r.Clients, client.ID)
				close(client.Send)
			}
			r.mutex.Unlock()
			r.broadcastPresence("user_left", client)
			log.Printf("Client %s left room %s", client.ID, r.ID)

		case message := <-r.Broadcast:
			r.mutex.Lock()
			for _, client := range r.Clients {
				select {
				case client.Send <- message:
				default:
					// drop slow clients
					close(client.Send)
					delete(r.Clients, client.ID)
				}
			}
			r.mutex.Unlock()

		case <-r.quit:
			r.mutex.Lock()
			for id, client := range r.Clients {
				close(client.Send)
				delete(r.Clients, id)
			}
			r.mutex.Unlock()
			return
		}
	}
}

func (r *Room) broadcastPresence(kind string, client *Client) {
	data, _ := json.Marshal(map[string]interface{}{
		"type":     kind,
		"id":       client.ID,
		"username": client.Username,
	})
	r.publish(data)
}

func (r *Room) sendSnapshot(c *Client) {
	content, err := r.store.LoadContent(context.Background(), r.ID)
	if err != nil {
		log.Printf("Failed to load snapshot for room %s: %v", r.ID, err)
		return
	}
	msg, _ := json.Marshal(map[string]interface{}{
		"type":    "snapshot",
		"id":      r.ID,
		"content": content,
		"users":   r.GetUsers(),
	})
	select {
	case c.Send <- msg:
	default:
	}
}

// publish queues a message for all subscribers without blocking the caller
func (r *Room) publish(data []byte) {
	select {
	case r.Broadcast <- data:
	default:
		log.Printf("Broadcast queue full for room %s, dropping message", r.ID)
	}
}

// GetUsers returns a list of users currently in the room
func (r *Room) GetUsers() []User {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	users := make([]User, 0, len(r.Clients))
	for _, client := range r.Clients {
		users = append(users, User{
			ID:       client.ID,
			Username: client.Username,
		})
	}

	return users
}
