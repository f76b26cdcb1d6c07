// Package gateway tracks authenticated real-time connections, fans todo
// change events out to a user's other sessions, and enforces access-token
// expiry on long-lived sockets via a periodic sweep.
package gateway

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"todotrack-api/domain"
)

// Event names exchanged over the socket channel.
const (
	EventTodoCreated      = "todo_created"
	EventTodoUpdated      = "todo_updated"
	EventTodoDeleted      = "todo_deleted"
	EventTodosBulkUpdated = "todos_bulk_updated"
	EventTypingStart      = "typing_start"
	EventTypingStop       = "typing_stop"

	EventRefreshToken       = "refresh_token"
	EventTokenRefreshed     = "token_refreshed"
	EventTokenRefreshFailed = "token_refresh_failed"
	EventTokenExpired       = "token_expired"
)

// Authenticator verifies access tokens and confirms the account is alive.
// The auth service satisfies it.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*domain.User, time.Time, error)
}

// Hub is the connection registry. Each connection belongs to exactly one
// user group; events relay to the group excluding the origin connection.
type Hub struct {
	auth          Authenticator
	logger        *log.Logger
	sweepInterval time.Duration

	mu    sync.RWMutex
	conns map[string]map[*Conn]struct{}

	now func() time.Time
}

// NewHub creates a Hub. Run must be started for expiry enforcement.
func NewHub(auth Authenticator, logger *log.Logger, sweepInterval time.Duration) *Hub {
	if sweepInterval <= 0 {
		sweepInterval = 60 * time.Second
	}
	return &Hub{
		auth:          auth,
		logger:        logger,
		sweepInterval: sweepInterval,
		conns:         make(map[string]map[*Conn]struct{}),
		now:           time.Now,
	}
}

// Run sweeps the registry on a fixed interval until ctx is cancelled. Any
// connection whose stored token expiry has passed receives one token_expired
// notice and is force-disconnected; this is the only expiry enforcement a
// socket gets after its handshake.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Sweep()
		}
	}
}

// Sweep disconnects every connection whose token expiry has passed.
func (h *Hub) Sweep() {
	now := h.now()

	h.mu.RLock()
	var expired []*Conn
	for _, group := range h.conns {
		for conn := range group {
			if conn.Expiry().Before(now) {
				expired = append(expired, conn)
			}
		}
	}
	h.mu.RUnlock()

	for _, conn := range expired {
		h.logger.WithFields(log.Fields{"user_id": conn.userID, "conn_id": conn.id}).Debug("disconnecting expired socket")
		conn.send(Frame{Event: EventTokenExpired})
		conn.close()
		h.remove(conn)
	}
}

// Emit broadcasts a server-side event to every connection of the user. Used
// by the HTTP mutation handlers to mirror changes to open sessions.
func (h *Hub) Emit(userID, event string, payload any) {
	frame, err := newFrame(event, payload)
	if err != nil {
		h.logger.Errorf("encode %s event: %v", event, err)
		return
	}
	h.broadcast(userID, nil, frame)
}

// ConnCount reports the number of live connections for a user.
func (h *Hub) ConnCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID])
}

func (h *Hub) add(conn *Conn) {
	h.mu.Lock()
	group, ok := h.conns[conn.userID]
	if !ok {
		group = make(map[*Conn]struct{})
		h.conns[conn.userID] = group
	}
	group[conn] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) remove(conn *Conn) {
	h.mu.Lock()
	if group, ok := h.conns[conn.userID]; ok {
		delete(group, conn)
		if len(group) == 0 {
			delete(h.conns, conn.userID)
		}
	}
	h.mu.Unlock()
}

// broadcast relays frame to every connection in the user's group except
// origin.
func (h *Hub) broadcast(userID string, origin *Conn, frame Frame) {
	h.mu.RLock()
	targets := make([]*Conn, 0, len(h.conns[userID]))
	for conn := range h.conns[userID] {
		if conn != origin {
			targets = append(targets, conn)
		}
	}
	h.mu.RUnlock()

	for _, conn := range targets {
		conn.send(frame)
	}
}
