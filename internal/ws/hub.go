package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/pliu/chatapp/internal/models"
)

var errHubStopped = errors.New("hub stopped")

type delivery struct {
	// userID is empty for frames that go to every client.
	userID string
	frame  []byte
}

type Hub struct {
	// Live clients by user id. A user may hold several connections.
	clients map[string]map[*Client]bool
	mu      sync.RWMutex

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Outbound frames addressed by user id.
	emit chan delivery

	done chan struct{}
	log  *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		emit:       make(chan delivery, 256),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run owns client registration and delivery until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for _, set := range h.clients {
				for client := range set {
					close(client.send)
				}
			}
			h.clients = make(map[string]map[*Client]bool)
			h.mu.Unlock()
			return
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.userID] == nil {
				h.clients[client.userID] = make(map[*Client]bool)
			}
			h.clients[client.userID][client] = true
			h.mu.Unlock()
			h.log.Debug("client connected", zap.String("user_id", client.userID))
			h.broadcastOnline()
		case client := <-h.unregister:
			if h.remove(client) {
				h.log.Debug("client disconnected", zap.String("user_id", client.userID))
				h.broadcastOnline()
			}
		case d := <-h.emit:
			h.deliver(d)
		}
	}
}

// remove drops client and closes its send channel. It reports whether client was live.
func (h *Hub) remove(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[client.userID]
	if !ok || !set[client] {
		return false
	}
	delete(set, client)
	if len(set) == 0 {
		delete(h.clients, client.userID)
	}
	close(client.send)
	return true
}

func (h *Hub) deliver(d delivery) {
	var targets []*Client
	h.mu.RLock()
	if d.userID == "" {
		for _, set := range h.clients {
			for client := range set {
				targets = append(targets, client)
			}
		}
	} else {
		for client := range h.clients[d.userID] {
			targets = append(targets, client)
		}
	}
	h.mu.RUnlock()

	dropped := false
	for _, client := range targets {
		select {
		case client.send <- d.frame:
		default:
			h.log.Warn("dropping slow client", zap.String("user_id", client.userID))
			dropped = h.remove(client) || dropped
		}
	}
	if dropped {
		h.broadcastOnline()
	}
}

func (h *Hub) broadcastOnline() {
	frame, err := encodeFrame(models.EventGetOnlineUsers, h.OnlineUsers())
	if err != nil {
		h.log.Error("encode online users", zap.Error(err))
		return
	}
	h.deliver(delivery{frame: frame})
}

// OnlineUsers lists the ids of users with at least one live connection, sorted.
func (h *Hub) OnlineUsers() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Emit queues event for every connection of userID. Offline users are skipped silently.
func (h *Hub) Emit(userID, event string, payload any) error {
	frame, err := encodeFrame(event, payload)
	if err != nil {
		return err
	}
	select {
	case <-h.done:
		return errHubStopped
	default:
	}
	select {
	case h.emit <- delivery{userID: userID, frame: frame}:
		return nil
	case <-h.done:
		return errHubStopped
	}
}

func encodeFrame(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", event, err)
	}
	return json.Marshal(models.Frame{Event: event, Data: data})
}
