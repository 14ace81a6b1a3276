package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/normanking/cortexblob/internal/logging"
	"github.com/normanking/cortexblob/internal/metrics"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 64
)

// inbound is a client request. Name carries the preset for apply, save and
// delete; Label carries the classifier output for sentiment.
type inbound struct {
	Type  string `json:"type"`
	Name  string `json:"name,omitempty"`
	Label string `json:"label,omitempty"`
}

// outbound is everything pushed to clients: bus events, frames, logs and
// replies to inbound requests.
type outbound struct {
	Type  string `json:"type"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// hub tracks connected clients. Each client has one writer goroutine; a
// client whose buffer is full is dropped rather than stalling the others.
type hub struct {
	mu      sync.RWMutex
	clients map[*client]bool
	logger  *logging.Logger
}

func newHub(logger *logging.Logger) *hub {
	return &hub{
		clients: make(map[*client]bool),
		logger:  logger,
	}
}

func (h *hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = true
	n := len(h.clients)
	h.mu.Unlock()
	metrics.WebSocketClients.Set(float64(n))
}

// remove closes c's send channel once.
func (h *hub) remove(c *client) {
	h.mu.Lock()
	if !h.clients[c] {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	close(c.send)
	n := len(h.clients)
	h.mu.Unlock()
	metrics.WebSocketClients.Set(float64(n))
}

func (h *hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *hub) broadcast(msg outbound) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("websocket", "Failed to encode message", err, map[string]any{"type": msg.Type})
		return
	}

	var slow []*client
	h.mu.RLock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("websocket", "Dropping slow client", map[string]any{"remote": c.conn.RemoteAddr().String()})
		h.remove(c)
	}
}

func (h *hub) reply(c *client, msg outbound) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.clients[c] {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (h *hub) closeAll() {
	h.mu.RLock()
	all := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		all = append(all, c)
	}
	h.mu.RUnlock()

	for _, c := range all {
		h.remove(c)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket", "Upgrade failed", map[string]any{"error": err.Error()})
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	s.hub.add(c)
	s.logger.Info("websocket", "Client connected", map[string]any{"remote": conn.RemoteAddr().String()})

	go s.writePump(c)
	s.readPump(c)
}

func (s *Server) readPump(c *client) {
	defer func() {
		s.hub.remove(c)
		c.conn.Close()
		s.logger.Info("websocket", "Client disconnected", map[string]any{"remote": c.conn.RemoteAddr().String()})
	}()

	c.conn.SetReadLimit(maxBodySize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg inbound
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket", "Read failed", map[string]any{"error": err.Error()})
			}
			return
		}
		s.hub.reply(c, s.dispatch(msg))
	}
}

func (s *Server) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// dispatch runs one client request against the engine and builds the reply.
func (s *Server) dispatch(msg inbound) outbound {
	reply := outbound{Type: msg.Type + ".ok"}
	fail := func(err error) outbound {
		return outbound{Type: msg.Type + ".error", Error: err.Error()}
	}

	switch msg.Type {
	case "sentiment":
		if !s.engine.OnSentiment(msg.Label) {
			return outbound{Type: msg.Type + ".error", Error: "event queue full"}
		}
	case "apply":
		if !s.engine.ApplyPreset(msg.Name) {
			return outbound{Type: msg.Type + ".error", Error: "event queue full"}
		}
	case "save":
		v, err := s.engine.SavePreset(msg.Name)
		if err != nil {
			return fail(err)
		}
		reply.Data = v
	case "delete":
		if err := s.engine.RemovePreset(msg.Name); err != nil {
			return fail(err)
		}
	case "session.start":
		id, err := s.engine.StartSession()
		if err != nil {
			return fail(err)
		}
		reply.Data = sessionState(id, true)
	case "session.end":
		summary, err := s.engine.EndSession()
		if err != nil {
			return fail(err)
		}
		reply.Data = map[string]any{"summary": summary.String(), "percentages": summary.Percentages()}
	case "presets":
		reply.Data = s.engine.ExportPresets()
	case "frame":
		reply.Data = s.engine.Frame()
	default:
		return outbound{Type: "error", Error: "unknown message type " + msg.Type}
	}
	return reply
}
