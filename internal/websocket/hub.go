package websocket

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/xelth-com/parcprepgo/internal/store"
)

// Hub maintains the set of listening views and fans change events out to them
type Hub struct {
	// Registered clients map: ClientID -> Client
	clients map[string]*Client

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	stop       chan struct{}

	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		stop:       make(chan struct{}),
		clients:    make(map[string]*Client),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			// A view reconnecting under the same id replaces its old connection
			if old, ok := h.clients[client.ClientID]; ok && old != client {
				close(old.send)
			}
			h.clients[client.ClientID] = client
			h.mu.Unlock()
			log.Printf("📱 View connected: %s", client.ClientID)

		case client := <-h.unregister:
			h.mu.Lock()
			if cur, ok := h.clients[client.ClientID]; ok && cur == client {
				delete(h.clients, client.ClientID)
				close(client.send)
				log.Printf("📴 View disconnected: %s", client.ClientID)
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.RLock()
			for _, client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow view; it will reload on reconnect
				}
			}
			h.mu.RUnlock()

		case <-h.stop:
			h.mu.Lock()
			for id, client := range h.clients {
				close(client.send)
				delete(h.clients, id)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Stop disconnects every view and ends Run
func (h *Hub) Stop() {
	close(h.stop)
}

// Broadcast queues a message for every connected view; it never blocks
func (h *Hub) Broadcast(message interface{}) bool {
	jsonMsg, err := json.Marshal(message)
	if err != nil {
		log.Printf("Error marshaling message: %v", err)
		return false
	}

	select {
	case h.broadcast <- jsonMsg:
		return true
	default:
		return false
	}
}

// Notify implements store.Notifier
func (h *Hub) Notify(ev store.ChangeEvent) {
	if !h.Broadcast(ev) {
		log.Printf("⚠️ Change feed full, dropped %s for %s", ev.Kind, ev.ParcPrepID)
	}
}

// ClientCount returns the number of connected views
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
