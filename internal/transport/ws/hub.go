package ws

import (
	"log"
	"sync"
)

// Hub manages the per-room observer connections. Every observer of a room
// receives the same full-snapshot envelopes; the hub does no fan-out logic
// beyond room membership.
type Hub struct {
	rooms map[string]map[*Connection]bool

	mu sync.RWMutex

	register   chan *Connection
	unregister chan *Connection
	broadcast  chan *outbound
}

// Connection represents one observer of a room.
type Connection struct {
	RoomCode      string
	ParticipantID string // empty for host observers
	Send          chan []byte
}

type outbound struct {
	roomCode string
	payload  []byte
}

func NewHub() *Hub {
	h := &Hub{
		rooms:      make(map[string]map[*Connection]bool),
		register:   make(chan *Connection),
		unregister: make(chan *Connection),
		broadcast:  make(chan *outbound, 256),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			if h.rooms[conn.RoomCode] == nil {
				h.rooms[conn.RoomCode] = make(map[*Connection]bool)
			}
			h.rooms[conn.RoomCode][conn] = true
			h.mu.Unlock()
			log.Printf("observer connected to room %s", conn.RoomCode)

		case conn := <-h.unregister:
			h.mu.Lock()
			if conns, ok := h.rooms[conn.RoomCode]; ok {
				if conns[conn] {
					delete(conns, conn)
					close(conn.Send)
					if len(conns) == 0 {
						delete(h.rooms, conn.RoomCode)
					}
				}
			}
			h.mu.Unlock()
			log.Printf("observer disconnected from room %s", conn.RoomCode)

		case msg := <-h.broadcast:
			h.mu.RLock()
			for conn := range h.rooms[msg.roomCode] {
				select {
				case conn.Send <- msg.payload:
				default:
					// Drop for a slow consumer; the periodic
					// reconciliation pass will catch it up.
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Register adds a connection.
func (h *Hub) Register(conn *Connection) {
	h.register <- conn
}

// Unregister removes a connection.
func (h *Hub) Unregister(conn *Connection) {
	h.unregister <- conn
}

// Forward pushes a pub/sub envelope to every observer of the room
// (implements events.Forwarder).
func (h *Hub) Forward(roomCode string, payload []byte) {
	h.broadcast <- &outbound{roomCode: roomCode, payload: payload}
}

// DisconnectRoom drops every observer of a deleted room (implements
// service.Broadcaster).
func (h *Hub) DisconnectRoom(roomCode string) {
	h.mu.Lock()
	conns := h.rooms[roomCode]
	delete(h.rooms, roomCode)
	h.mu.Unlock()

	for conn := range conns {
		close(conn.Send)
	}
}
