// Package ws pushes match suggestions to students over WebSocket. Clients
// connect to the hub with their student ID and receive a match_suggested
// event for every new suggestion a matching run creates.
package ws

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/uniportal/internship-portal/internal/matching"
	"github.com/uniportal/internship-portal/internal/metrics"
	"github.com/uniportal/internship-portal/internal/protocol"
)

// ServerConfig holds tunable parameters for the push hub.
type ServerConfig struct {
	MaxConnections int           // hard cap on total connections
	MaxMessageSize int64         // largest client frame payload accepted, in bytes
	WriteTimeout   time.Duration // timeout for each outbound frame
	Heartbeat      HeartbeatConfig
}

// DefaultMaxMessageSize bounds client frames. Clients only ever send pings.
const DefaultMaxMessageSize = 4 << 10

// DefaultServerConfig returns a ServerConfig with sensible production defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		MaxConnections: 10000,
		MaxMessageSize: DefaultMaxMessageSize,
		WriteTimeout:   10 * time.Second,
		Heartbeat:      DefaultHeartbeatConfig(),
	}
}

// Server is the suggestion push hub. It is an http.Handler for the upgrade
// endpoint; each connection gets a goroutine that reads client frames.
type Server struct {
	config    ServerConfig
	conns     *ConnectionManager
	logger    *zap.Logger
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewServer creates a hub and starts its heartbeat monitor.
func NewServer(config ServerConfig, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxMessageSize <= 0 {
		config.MaxMessageSize = DefaultMaxMessageSize
	}
	s := &Server{
		config: config,
		conns:  NewConnectionManager(),
		logger: logger.With(zap.String("component", "ws")),
		done:   make(chan struct{}),
	}
	if config.Heartbeat.Interval > 0 {
		StartHeartbeat(s, config.Heartbeat)
	}
	return s
}

// ServeHTTP upgrades /ws/matches?student_id=N to a WebSocket subscription.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	studentID, err := strconv.ParseInt(r.URL.Query().Get("student_id"), 10, 64)
	if err != nil || studentID <= 0 {
		http.Error(w, "student_id must be a positive integer", http.StatusBadRequest)
		return
	}

	select {
	case <-s.done:
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	default:
	}

	if s.config.MaxConnections > 0 && s.conns.Count() >= s.config.MaxConnections {
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		s.logger.Warn("upgrade failed", zap.Error(err))
		return
	}
	// The HTTP server's read timeout would otherwise cut idle subscribers;
	// the heartbeat owns liveness from here on.
	_ = conn.SetReadDeadline(time.Time{})

	c := &Connection{
		ID:        uuid.New().String(),
		StudentID: studentID,
		Conn:      conn,
		CreatedAt: time.Now(),
	}
	c.touch()
	s.conns.Add(c)
	metrics.PushConnections.Inc()

	hello, err := protocol.NewServerMessage(protocol.TypeSubscribed, protocol.SubscribedMsg{
		ConnectionID: c.ID,
		StudentID:    studentID,
	})
	if err == nil {
		err = c.WriteMessage(hello, s.config.WriteTimeout)
	}
	if err != nil {
		s.logger.Warn("send subscribed", zap.String("conn_id", c.ID), zap.Error(err))
		s.RemoveConnection(c)
		return
	}

	s.logger.Debug("connection opened",
		zap.String("conn_id", c.ID),
		zap.Int64("student_id", studentID),
		zap.Int("total", s.conns.Count()),
	)

	s.wg.Add(1)
	go s.readLoop(c)
}

// readLoop consumes client frames until the connection fails or closes. Any
// frame counts as liveness for the heartbeat.
func (s *Server) readLoop(c *Connection) {
	defer s.wg.Done()
	defer s.RemoveConnection(c)

	for {
		header, reader, err := wsutil.NextReader(c.Conn, ws.StateServerSide)
		if err != nil {
			return
		}
		c.touch()

		if header.Length < 0 || header.Length > s.config.MaxMessageSize {
			s.logger.Warn("client frame too large",
				zap.String("conn_id", c.ID),
				zap.Int64("length", header.Length),
			)
			_ = c.writeClose(ws.StatusMessageTooBig, "message too big", s.config.WriteTimeout)
			return
		}

		payload := make([]byte, header.Length)
		if header.Length > 0 {
			if _, err := io.ReadFull(reader, payload); err != nil {
				return
			}
		}

		if header.OpCode.IsControl() {
			switch header.OpCode {
			case ws.OpClose:
				return
			case ws.OpPing:
				if err := c.writePong(payload); err != nil {
					return
				}
			}
			continue
		}

		if len(payload) > 0 {
			s.handleClientMessage(c, payload)
		}
	}
}

func (s *Server) handleClientMessage(c *Connection, data []byte) {
	msgType, _, err := protocol.ParseClientMessage(data)
	var reply []byte
	switch {
	case err != nil:
		reply, _ = protocol.NewServerMessage(protocol.TypeError, protocol.ErrorMsg{
			Code:    "bad_message",
			Message: err.Error(),
		})
	case msgType == protocol.TypePing:
		reply, _ = protocol.NewServerMessage(protocol.TypePong, protocol.PongMsg{})
	}
	if reply == nil {
		return
	}
	if err := c.WriteMessage(reply, s.config.WriteTimeout); err != nil {
		s.logger.Debug("reply failed", zap.String("conn_id", c.ID), zap.Error(err))
	}
}

// Deliver writes data to every connection of the student and returns how many
// received it. Connections that fail the write are dropped.
func (s *Server) Deliver(studentID int64, data []byte) int {
	delivered := 0
	for _, c := range s.conns.ForStudent(studentID) {
		if err := c.WriteMessage(data, s.config.WriteTimeout); err != nil {
			s.logger.Debug("deliver failed", zap.String("conn_id", c.ID), zap.Error(err))
			s.RemoveConnection(c)
			continue
		}
		delivered++
	}
	metrics.SuggestionsPushed.Add(float64(delivered))
	return delivered
}

// HandleSuggested turns a match.suggested NATS payload into a push to the
// student's connections.
func (s *Server) HandleSuggested(data []byte) {
	var ev matching.SuggestionEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		s.logger.Warn("invalid suggestion event", zap.Error(err))
		return
	}
	msg, err := protocol.NewServerMessage(protocol.TypeMatchSuggested, protocol.MatchSuggestedMsg{
		MatchID:    ev.MatchID,
		MentorID:   ev.MentorID,
		MatchScore: ev.MatchScore,
	})
	if err != nil {
		s.logger.Error("build suggestion message", zap.Error(err))
		return
	}
	s.Deliver(ev.StudentID, msg)
}

// RemoveConnection unregisters and closes a connection. Safe to call more
// than once.
func (s *Server) RemoveConnection(c *Connection) {
	if !s.conns.Remove(c.ID) {
		return
	}
	metrics.PushConnections.Dec()
	s.logger.Debug("connection closed", zap.String("conn_id", c.ID), zap.Int("total", s.conns.Count()))
}

// Connections exposes the registry, e.g. to the heartbeat.
func (s *Server) Connections() *ConnectionManager {
	return s.conns
}

// Shutdown stops the heartbeat, closes every connection and waits for the
// read goroutines to exit.
func (s *Server) Shutdown() {
	s.closeOnce.Do(func() {
		close(s.done)
		for _, c := range s.conns.All() {
			s.RemoveConnection(c)
		}
		s.wg.Wait()
		s.logger.Info("push hub stopped")
	})
}
