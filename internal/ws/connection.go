package ws

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// Connection is one subscriber socket. A student may hold several (one per
// browser tab).
type Connection struct {
	ID        string    // connection ID (UUID)
	StudentID int64     // student whose suggestions are pushed here
	Conn      net.Conn  // underlying TCP connection
	CreatedAt time.Time // when the connection was established

	lastSeen atomic.Int64 // unix nanos of the last frame read from the client
	writeMu  sync.Mutex   // serializes writes to this connection
}

func (c *Connection) touch() {
	c.lastSeen.Store(time.Now().UnixNano())
}

// LastSeen returns when the client last sent any frame.
func (c *Connection) LastSeen() time.Time {
	return time.Unix(0, c.lastSeen.Load())
}

// WriteMessage sends a WebSocket text frame. The write mutex keeps concurrent
// writers from interleaving frame bytes.
func (c *Connection) WriteMessage(data []byte, timeout time.Duration) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if timeout > 0 {
		_ = c.Conn.SetWriteDeadline(time.Now().Add(timeout))
		defer c.Conn.SetWriteDeadline(time.Time{})
	}
	return wsutil.WriteServerMessage(c.Conn, ws.OpText, data)
}

// WritePing sends a protocol-level ping frame.
func (c *Connection) WritePing() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return ws.WriteFrame(c.Conn, ws.NewPingFrame(nil))
}

func (c *Connection) writePong(payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return ws.WriteFrame(c.Conn, ws.NewPongFrame(payload))
}

func (c *Connection) writeClose(code ws.StatusCode, reason string, timeout time.Duration) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if timeout > 0 {
		_ = c.Conn.SetWriteDeadline(time.Now().Add(timeout))
	}
	return ws.WriteFrame(c.Conn, ws.NewCloseFrame(ws.NewCloseFrameBody(code, reason)))
}

// Close closes the underlying network connection.
func (c *Connection) Close() error {
	return c.Conn.Close()
}

// ConnectionManager is a thread-safe registry of connections indexed by
// connection ID and by student.
type ConnectionManager struct {
	mu        sync.RWMutex
	byID      map[string]*Connection
	byStudent map[int64]map[string]*Connection
}

// NewConnectionManager creates an empty ConnectionManager ready for use.
func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		byID:      make(map[string]*Connection),
		byStudent: make(map[int64]map[string]*Connection),
	}
}

// Add registers a connection.
func (cm *ConnectionManager) Add(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.byID[conn.ID] = conn
	set, ok := cm.byStudent[conn.StudentID]
	if !ok {
		set = make(map[string]*Connection)
		cm.byStudent[conn.StudentID] = set
	}
	set[conn.ID] = conn
}

// Remove unregisters a connection and closes it. It returns false when the
// connection was already gone, so racing removers clean up only once.
func (cm *ConnectionManager) Remove(id string) bool {
	cm.mu.Lock()
	conn, ok := cm.byID[id]
	if ok {
		delete(cm.byID, id)
		if set := cm.byStudent[conn.StudentID]; set != nil {
			delete(set, id)
			if len(set) == 0 {
				delete(cm.byStudent, conn.StudentID)
			}
		}
	}
	cm.mu.Unlock()

	if ok {
		conn.Close()
	}
	return ok
}

// Get returns the connection with the given ID, or nil.
func (cm *ConnectionManager) Get(id string) *Connection {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.byID[id]
}

// ForStudent returns a snapshot of the student's connections.
func (cm *ConnectionManager) ForStudent(studentID int64) []*Connection {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	set := cm.byStudent[studentID]
	conns := make([]*Connection, 0, len(set))
	for _, c := range set {
		conns = append(conns, c)
	}
	return conns
}

// Count returns the current number of connections.
func (cm *ConnectionManager) Count() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.byID)
}

// All returns a snapshot of all connections.
func (cm *ConnectionManager) All() []*Connection {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	conns := make([]*Connection, 0, len(cm.byID))
	for _, conn := range cm.byID {
		conns = append(conns, conn)
	}
	return conns
}
