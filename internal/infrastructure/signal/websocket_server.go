package signal

import (
	"context"
	"net/http"
	"strings"
	"time"

	"streamcast/internal/core/domain"
	"streamcast/internal/core/ports"
	"streamcast/internal/core/services"
	"streamcast/pkg/utils"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Client → server message types.
const (
	MsgJoin         = "join"
	MsgStreamerJoin = "streamer-join"
	MsgSignal       = "signal"
	MsgLeave        = "disconnect"
)

// Server → client event types.
const (
	EvtWelcome           = "welcome"
	EvtNewPeer           = "new-peer"
	EvtStreamerAvailable = "streamer-available"
	EvtNoStreamers       = "no-streamers"
	EvtRequestOffer      = "request-offer"
	EvtSignal            = "signal"
	EvtError             = "error"
)

// ClientMessage is the inbound signaling frame.
type ClientMessage struct {
	Type         string              `json:"type"`
	Room         domain.RoomID       `json:"room,omitempty"`
	ConnectionID domain.ConnectionID `json:"connectionId,omitempty"`
	Data         domain.SignalData   `json:"data,omitempty"`
}

// ServerEvent is the outbound signaling frame.
type ServerEvent struct {
	Type          string              `json:"type"`
	PeerID        domain.PeerID       `json:"peerId,omitempty"`
	ViewerID      domain.PeerID       `json:"viewerId,omitempty"`
	ConnectionID  domain.ConnectionID `json:"connectionId,omitempty"`
	Data          *domain.SignalData  `json:"data,omitempty"`
	FromPeer      domain.PeerID       `json:"fromPeer,omitempty"`
	StreamerCount int                 `json:"streamerCount,omitempty"`
	Message       string              `json:"message,omitempty"`
}

// Metrics receives coordinator-level counters. All methods must be
// safe for concurrent use; a nil Metrics disables reporting.
type Metrics interface {
	PeerConnected()
	PeerDisconnected()
	SignalRelayed()
	SetActiveRooms(n int)
}

// Options tunes connection keepalive and the upgrade gate.
type Options struct {
	PingInterval   time.Duration
	PongTimeout    time.Duration
	WriteTimeout   time.Duration
	AllowedOrigins []string
}

type client struct {
	id   domain.PeerID
	conn *websocket.Conn
	send chan ServerEvent
	done chan struct{}
}

type event struct {
	client *client
	msg    ClientMessage
	gone   bool
}

// WebSocketServer is the signaling coordinator. Per-connection reader
// goroutines feed every message into one event channel; a single run
// loop consumes it, so the room registry and the relay fan-out need no
// locking — the loop is the only writer.
type WebSocketServer struct {
	registry ports.RoomRegistry
	auth     services.AuthService
	metrics  Metrics
	opts     Options
	upgrader websocket.Upgrader

	events  chan event
	clients map[domain.PeerID]*client

	logger *zap.SugaredLogger
}

func NewWebSocketServer(registry ports.RoomRegistry, auth services.AuthService, metrics Metrics, opts Options, logger *zap.SugaredLogger) *WebSocketServer {
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}
	if opts.PongTimeout <= 0 {
		opts.PongTimeout = 60 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	s := &WebSocketServer{
		registry: registry,
		auth:     auth,
		metrics:  metrics,
		opts:     opts,
		events:   make(chan event, 256),
		clients:  make(map[domain.PeerID]*client),
		logger:   logger,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.originAllowed,
	}
	return s
}

func (s *WebSocketServer) originAllowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.opts.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// Run drives the coordinator loop until ctx is cancelled. It must be
// running before any connection is accepted.
func (s *WebSocketServer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.events:
			if ev.gone {
				s.handleDisconnect(ev.client)
				continue
			}
			s.handleMessage(ev.client, ev.msg)
		}
	}
}

// HandleWebSocket authenticates and upgrades one signaling connection.
// The bearer token comes from the `token` query parameter or the
// Authorization header; both failures are an undifferentiated 401.
func (s *WebSocketServer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if _, err := s.auth.ValidateToken(bearerToken(r)); err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorw("websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		id:   domain.PeerID(utils.GeneratePeerID()),
		conn: conn,
		send: make(chan ServerEvent, 32),
		done: make(chan struct{}),
	}
	s.logger.Infow("peer connected", "peer_id", c.id, "remote", r.RemoteAddr)
	if s.metrics != nil {
		s.metrics.PeerConnected()
	}

	go s.writeLoop(c)
	c.send <- ServerEvent{Type: EvtWelcome, PeerID: c.id}
	s.readLoop(c)
}

func bearerToken(r *http.Request) string {
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

// readLoop pumps inbound frames into the coordinator loop. It owns the
// read side of the connection and reports the disconnect exactly once.
func (s *WebSocketServer) readLoop(c *client) {
	defer func() {
		s.events <- event{client: c, gone: true}
	}()

	c.conn.SetReadDeadline(time.Now().Add(s.opts.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(s.opts.PongTimeout))
		return nil
	})

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Infow("read failed", "peer_id", c.id, "error", err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(s.opts.PongTimeout))
		if msg.Type == MsgLeave {
			return
		}
		s.events <- event{client: c, msg: msg}
	}
}

// writeLoop serializes all writes to one connection, including pings.
func (s *WebSocketServer) writeLoop(c *client) {
	ticker := time.NewTicker(s.opts.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case ev := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
			if err := c.conn.WriteJSON(ev); err != nil {
				s.logger.Infow("write failed", "peer_id", c.id, "error", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Everything below runs on the coordinator loop goroutine only.

func (s *WebSocketServer) handleMessage(c *client, msg ClientMessage) {
	switch msg.Type {
	case MsgJoin:
		s.handleViewerJoin(c, msg.Room)
	case MsgStreamerJoin:
		s.handleStreamerJoin(c, msg.Room)
	case MsgSignal:
		s.handleSignal(c, msg)
	default:
		s.sendTo(c, ServerEvent{Type: EvtError, Message: "unknown message type: " + msg.Type})
	}
}

func (s *WebSocketServer) handleViewerJoin(c *client, room domain.RoomID) {
	if room == "" {
		s.sendTo(c, ServerEvent{Type: EvtError, Message: "room is required"})
		return
	}
	s.clients[c.id] = c
	if err := s.registry.JoinAsViewer(room, c.id); err != nil {
		s.sendTo(c, ServerEvent{Type: EvtError, Message: err.Error()})
		return
	}
	s.logger.Infow("viewer joined", "room", room, "peer_id", c.id)
	s.reportRooms()

	s.broadcast(room, c.id, ServerEvent{Type: EvtNewPeer, PeerID: c.id})

	// With a streamer already publishing, tell the viewer media exists
	// and prompt the streamer to open a connection to it.
	if snap, ok := s.registry.Snapshot(room); ok && snap.StreamerCount > 0 {
		s.sendTo(c, ServerEvent{
			Type:          EvtStreamerAvailable,
			StreamerCount: snap.StreamerCount,
			Message:       "streamer is available in this room",
		})
		for _, streamer := range s.registry.Streamers(room) {
			s.sendToPeer(streamer, ServerEvent{Type: EvtRequestOffer, ViewerID: c.id})
		}
	}
}

func (s *WebSocketServer) handleStreamerJoin(c *client, room domain.RoomID) {
	if room == "" {
		s.sendTo(c, ServerEvent{Type: EvtError, Message: "room is required"})
		return
	}
	s.clients[c.id] = c
	if err := s.registry.JoinAsStreamer(room, c.id); err != nil {
		s.sendTo(c, ServerEvent{Type: EvtError, Message: err.Error()})
		return
	}
	s.logger.Infow("streamer joined", "room", room, "peer_id", c.id)
	s.reportRooms()

	s.broadcast(room, c.id, ServerEvent{Type: EvtNewPeer, PeerID: c.id})

	// The room just gained media: announce it to every viewer and ask
	// the streamer to offer to each of them.
	snap, _ := s.registry.Snapshot(room)
	s.broadcast(room, c.id, ServerEvent{
		Type:          EvtStreamerAvailable,
		StreamerCount: snap.StreamerCount,
		Message:       "streamer joined the room",
	})
	for _, viewer := range s.registry.Viewers(room) {
		s.sendTo(c, ServerEvent{Type: EvtRequestOffer, ViewerID: viewer})
	}
}

func (s *WebSocketServer) handleSignal(c *client, msg ClientMessage) {
	room, ok := s.registry.RoomOf(c.id)
	if !ok {
		s.sendTo(c, ServerEvent{Type: EvtError, Message: "not in a room"})
		return
	}
	if msg.Room != "" && msg.Room != room {
		s.sendTo(c, ServerEvent{Type: EvtError, Message: "room mismatch"})
		return
	}

	data := msg.Data
	s.broadcast(room, c.id, ServerEvent{
		Type:         EvtSignal,
		ConnectionID: msg.ConnectionID,
		Data:         &data,
		FromPeer:     c.id,
	})
	if s.metrics != nil {
		s.metrics.SignalRelayed()
	}
}

func (s *WebSocketServer) handleDisconnect(c *client) {
	close(c.done)
	delete(s.clients, c.id)
	if s.metrics != nil {
		s.metrics.PeerDisconnected()
	}

	for _, dep := range s.registry.Leave(c.id) {
		if dep.Role == domain.RoleStreamer && dep.StreamersRemaining == 0 && !dep.RoomRemoved {
			s.broadcast(dep.Room, c.id, ServerEvent{Type: EvtNoStreamers})
		}
	}
	s.reportRooms()
	s.logger.Infow("peer disconnected", "peer_id", c.id)
}

// broadcast sends ev to every member of room except exclude. A peer
// whose send buffer is full is skipped; its keepalive will reap it.
func (s *WebSocketServer) broadcast(room domain.RoomID, exclude domain.PeerID, ev ServerEvent) {
	for _, id := range s.registry.Members(room) {
		if id == exclude {
			continue
		}
		s.sendToPeer(id, ev)
	}
}

func (s *WebSocketServer) sendToPeer(id domain.PeerID, ev ServerEvent) {
	if c, ok := s.clients[id]; ok {
		s.sendTo(c, ev)
	}
}

func (s *WebSocketServer) sendTo(c *client, ev ServerEvent) {
	select {
	case c.send <- ev:
	default:
		s.logger.Warnw("send buffer full, dropping event", "peer_id", c.id, "event", ev.Type)
	}
}

func (s *WebSocketServer) reportRooms() {
	if s.metrics != nil {
		s.metrics.SetActiveRooms(s.registry.RoomCount())
	}
}
