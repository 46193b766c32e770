package api

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Message types pushed to websocket clients.
const (
	MessageSaveStatus = "save_status"
	MessageStoreEvent = "store_event"
)

const writeWait = 5 * time.Second

// Message is one websocket push.
type Message struct {
	Type string      `json:"type"`
	Slug string      `json:"slug,omitempty"`
	Data interface{} `json:"data"`
}

// Hub fans messages out to the connected websocket clients.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]bool
}

func newHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]bool)}
}

func (h *Hub) add(conn *websocket.Conn) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[conn] = true
	return len(h.clients)
}

func (h *Hub) remove(conn *websocket.Conn) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[conn] {
		delete(h.clients, conn)
		conn.Close()
	}
	return len(h.clients)
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast sends msg to every client. Clients that cannot be written to
// are dropped.
func (h *Hub) Broadcast(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		client.SetWriteDeadline(time.Now().Add(writeWait))
		if err := client.WriteJSON(msg); err != nil {
			log.Printf("[api] websocket write failed: %v", err)
			client.Close()
			delete(h.clients, client)
		}
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		client.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"),
			time.Now().Add(writeWait))
		client.Close()
		delete(h.clients, client)
	}
}
