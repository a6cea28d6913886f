package websocket

import (
	"encoding/json"
	"sync"
)

// BalanceUpdate is pushed to every open connection of the account owner
// after a committed ledger change.
type BalanceUpdate struct {
	Username          string `json:"username"`
	Balance           string `json:"balance"`
	BalanceSet        bool   `json:"balance_set"`
	Event             string `json:"event"`
	LastTransactionID int64  `json:"last_transaction_id"`
}

type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
	}
}

func (h *Hub) Register(username string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[username] == nil {
		h.clients[username] = make(map[*Client]struct{})
	}
	h.clients[username][client] = struct{}{}
}

func (h *Hub) Unregister(username string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[username] == nil {
		return
	}
	delete(h.clients[username], client)
	if len(h.clients[username]) == 0 {
		delete(h.clients, username)
	}
}

// Connections reports how many sockets the user has open.
func (h *Hub) Connections(username string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[username])
}

// BroadcastBalance drops the update for clients whose send buffer is full.
func (h *Hub) BroadcastBalance(username string, update BalanceUpdate) {
	payload, _ := json.Marshal(update)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[username] {
		select {
		case client.send <- payload:
		default:
		}
	}
}
