package handlers

import (
	"sync"
)

// Hub tracks the open sockets of each session. A kiosk may hold more than one
// socket, e.g. an attract screen plus an operator view.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*WSClient]bool
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*WSClient]bool),
	}
}

func (h *Hub) Register(client *WSClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[client.SessionID] == nil {
		h.clients[client.SessionID] = make(map[*WSClient]bool)
	}
	h.clients[client.SessionID][client] = true
}

func (h *Hub) Unregister(client *WSClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[client.SessionID] != nil {
		delete(h.clients[client.SessionID], client)
		if len(h.clients[client.SessionID]) == 0 {
			delete(h.clients, client.SessionID)
		}
	}
}

func (h *Hub) Broadcast(payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, set := range h.clients {
		for client := range set {
			client.Send(payload)
		}
	}
}

func (h *Hub) SendToSession(sessionID string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[sessionID] {
		client.Send(payload)
	}
}

// CloseSession drops every socket of sessionID. Their read loops then exit.
func (h *Hub) CloseSession(sessionID string) {
	h.mu.RLock()
	clients := make([]*WSClient, 0, len(h.clients[sessionID]))
	for client := range h.clients[sessionID] {
		clients = append(clients, client)
	}
	h.mu.RUnlock()
	for _, client := range clients {
		client.Kick()
	}
}

func (h *Hub) CloseAll() {
	for _, id := range h.SessionIDs() {
		h.CloseSession(id)
	}
}

func (h *Hub) OnlineCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) SessionIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	return ids
}
