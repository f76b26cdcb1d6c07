package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// Frame is the wire envelope for every socket message in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func newFrame(event string, payload any) (Frame, error) {
	if payload == nil {
		return Frame{Event: event}, nil
	}
	data, err := sonic.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Event: event, Data: data}, nil
}

// socket is the subset of *websocket.Conn the gateway uses; tests substitute
// a fake.
type socket interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Conn is one authenticated socket. The stored expiry is the access token's
// expiry at handshake time and is replaced in place on a successful in-band
// refresh.
type Conn struct {
	id     string
	userID string
	sock   socket

	writeMu sync.Mutex

	mu     sync.Mutex
	expiry time.Time
	closed bool
}

// Expiry returns the currently stored token expiry.
func (c *Conn) Expiry() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expiry
}

func (c *Conn) setExpiry(t time.Time) {
	c.mu.Lock()
	c.expiry = t
	c.mu.Unlock()
}

// send marshals and writes one frame. Gorilla permits a single concurrent
// writer, hence the write lock. Write errors are swallowed; the read loop
// notices the dead connection.
func (c *Conn) send(frame Frame) {
	data, err := sonic.Marshal(frame)
	if err != nil {
		return
	}
	c.writeMu.Lock()
	_ = c.sock.WriteMessage(websocket.TextMessage, data)
	c.writeMu.Unlock()
}

func (c *Conn) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()
	_ = c.sock.Close()
}

// refreshPayload is the client's in-band refresh_token event body.
type refreshPayload struct {
	Token string `json:"token"`
}

// ownedPayload extracts the declared owner from a relayed mutation event.
type ownedPayload struct {
	UserID string `json:"userId"`
}

// HandleConn registers an authenticated socket and runs its read loop until
// the peer disconnects or the hub closes it. The caller has already
// completed the token handshake.
func (h *Hub) HandleConn(ctx context.Context, sock socket, userID string, expiry time.Time) {
	conn := &Conn{
		id:     uuid.NewString(),
		userID: userID,
		sock:   sock,
		expiry: expiry,
	}
	h.add(conn)
	h.logger.WithFields(log.Fields{"user_id": userID, "conn_id": conn.id}).Debug("socket connected")

	defer func() {
		conn.close()
		h.remove(conn)
		h.logger.WithFields(log.Fields{"user_id": userID, "conn_id": conn.id}).Debug("socket disconnected")
	}()

	for {
		_, data, err := sock.ReadMessage()
		if err != nil {
			return
		}
		var frame Frame
		if err := sonic.Unmarshal(data, &frame); err != nil {
			h.logger.Debugf("malformed socket frame from %s: %v", userID, err)
			continue
		}
		if !h.dispatch(ctx, conn, frame) {
			return
		}
	}
}

// dispatch handles one inbound frame; a false return ends the connection.
func (h *Hub) dispatch(ctx context.Context, conn *Conn, frame Frame) bool {
	switch frame.Event {
	case EventRefreshToken:
		return h.handleRefresh(ctx, conn, frame)
	case EventTodoCreated, EventTodoUpdated, EventTodoDeleted, EventTodosBulkUpdated:
		var owner ownedPayload
		if len(frame.Data) == 0 || sonic.Unmarshal(frame.Data, &owner) != nil || owner.UserID != conn.userID {
			h.logger.WithFields(log.Fields{"user_id": conn.userID, "event": frame.Event}).Warn("rejected relay with mismatched owner")
			return true
		}
		h.broadcast(conn.userID, conn, frame)
		return true
	case EventTypingStart, EventTypingStop:
		h.broadcast(conn.userID, conn, frame)
		return true
	default:
		h.logger.Debugf("ignoring unknown socket event %q", frame.Event)
		return true
	}
}

// handleRefresh lets a connection present a newer access token. On success
// only the stored expiry changes; on failure the connection is dropped.
func (h *Hub) handleRefresh(ctx context.Context, conn *Conn, frame Frame) bool {
	var payload refreshPayload
	if len(frame.Data) == 0 || sonic.Unmarshal(frame.Data, &payload) != nil || payload.Token == "" {
		conn.send(Frame{Event: EventTokenRefreshFailed})
		return false
	}
	user, expiry, err := h.auth.Authenticate(ctx, payload.Token)
	if err != nil || user.ID != conn.userID {
		conn.send(Frame{Event: EventTokenRefreshFailed})
		return false
	}
	conn.setExpiry(expiry)
	conn.send(Frame{Event: EventTokenRefreshed})
	return true
}
