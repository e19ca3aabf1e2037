package http

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// sender is the slice of *websocket.Conn the registry needs; tests substitute
// an in-memory fake.
type sender interface {
	WriteMessage(messageType int, data []byte) error
}

const sendBuffer = 16

// Connection is one live socket, independent of any session. Outbound frames
// go through a buffered channel drained by a single write pump, so broadcasts
// never write to the socket concurrently and never block on a slow peer.
// enqueue and close share the mutex: a fan-out that snapshotted this
// connection before it was unregistered drops its frame instead of hitting a
// closed channel.
type Connection struct {
	ID          string
	ConnectedAt time.Time

	mu       sync.Mutex
	userID   string
	username string
	closed   bool

	send chan []byte
}

func (c *Connection) bind(userID, username string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userID = userID
	c.username = username
}

// BoundUser returns the user bound by the USER_CONNECTED handshake, if any.
func (c *Connection) BoundUser() (userID, username string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID, c.username, c.userID != ""
}

// enqueue hands a frame to the write pump. A full buffer or an already
// closed connection drops the frame; the client catches up on its next
// state fetch.
func (c *Connection) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Connection) writePump(ws sender) {
	for data := range c.send {
		if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Printf("ws write to %s failed: %v", c.ID, err)
			return
		}
	}
}

func (c *Connection) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// Registry tracks every open connection by id. It is independently locked
// from the room store; callers finish session mutation first, then consult
// the registry to broadcast. Iteration snapshots may race with concurrent
// registration; a just-joined connection simply misses that one broadcast.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*Connection
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]*Connection)}
}

// Register admits a socket and starts its write pump.
func (r *Registry) Register(ws sender) *Connection {
	conn := &Connection{
		ID:          uuid.NewString(),
		ConnectedAt: time.Now(),
		send:        make(chan []byte, sendBuffer),
	}
	go conn.writePump(ws)

	r.mu.Lock()
	r.conns[conn.ID] = conn
	r.mu.Unlock()
	return conn
}

// Bind attaches a user identity to a connection.
func (r *Registry) Bind(connID, userID, username string) {
	r.mu.RLock()
	conn, ok := r.conns[connID]
	r.mu.RUnlock()
	if ok {
		conn.bind(userID, username)
	}
}

// Unregister removes the connection and stops its pump. Safe to call on
// abnormal termination; removing twice is a no-op.
func (r *Registry) Unregister(connID string) {
	r.mu.Lock()
	conn, ok := r.conns[connID]
	delete(r.conns, connID)
	r.mu.Unlock()
	if !ok {
		return
	}
	conn.close()
	if userID, _, bound := conn.BoundUser(); bound {
		// Disconnect notification hook: room state is left untouched so the
		// user can reconnect mid-session.
		log.Printf("user %s disconnected (connection %s)", userID, connID)
	}
}

// ByUserIDs returns the connections bound to any of the given user ids.
func (r *Registry) ByUserIDs(userIDs []string) []*Connection {
	wanted := make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		wanted[id] = struct{}{}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	var conns []*Connection
	for _, conn := range r.conns {
		if userID, _, bound := conn.BoundUser(); bound {
			if _, ok := wanted[userID]; ok {
				conns = append(conns, conn)
			}
		}
	}
	return conns
}

// All returns a snapshot of every open connection.
func (r *Registry) All() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conns := make([]*Connection, 0, len(r.conns))
	for _, conn := range r.conns {
		conns = append(conns, conn)
	}
	return conns
}
