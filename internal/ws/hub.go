// Package ws streams batch progress events to WebSocket subscribers.
package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WSMessage is the envelope for every event on the stream.
type WSMessage struct {
	Type      string      `json:"type"`
	BatchID   int         `json:"batch_id,omitempty"`
	RowID     int         `json:"row_id,omitempty"`
	Level     string      `json:"level,omitempty"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Message type constants.
const (
	TypeBatchStarted  = "batch_started"
	TypeBatchProgress = "batch_progress"
	TypeBatchComplete = "batch_complete"
	TypeRowResult     = "row_result"
	TypeLogLine       = "log_line"
	TypeSystemStatus  = "system_status"
)

const (
	sendBuffer   = 64
	pingInterval = 30 * time.Second
	pongWait     = 60 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// session is one subscriber connection. batchID 0 means every batch;
// a non-zero batchID narrows the stream to that batch's events.
type session struct {
	conn    *websocket.Conn
	out     chan []byte
	batchID int
}

// Hub tracks live subscriber sessions.
type Hub struct {
	mu       sync.RWMutex
	sessions map[*session]struct{}
	closed   bool
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{sessions: make(map[*session]struct{})}
}

// Run blocks until ctx is cancelled, then closes every open session.
// Run in a goroutine next to the HTTP server.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.mu.Lock()
	h.closed = true
	for s := range h.sessions {
		close(s.out)
		delete(h.sessions, s)
	}
	h.mu.Unlock()
}

// Broadcast fans a message out to every subscribed session. Messages
// scoped to a batch are skipped for sessions watching a different one.
// Slow sessions drop messages rather than stall the caller.
func (h *Hub) Broadcast(msg WSMessage) {
	msg.Timestamp = time.Now()
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.sessions {
		if s.batchID != 0 && msg.BatchID != 0 && s.batchID != msg.BatchID {
			continue
		}
		select {
		case s.out <- b:
		default:
		}
	}
}

// BroadcastProgress reports done/total row counts for a running batch.
func (h *Hub) BroadcastProgress(batchID, done, total int) {
	h.Broadcast(WSMessage{
		Type:    TypeBatchProgress,
		BatchID: batchID,
		Data:    map[string]int{"done": done, "total": total},
	})
}

// ServeWS upgrades the request and registers the session. An optional
// ?batch_id= query parameter narrows the stream to one batch.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws.ServeWS: upgrade: %v", err)
		return
	}
	batchID, _ := strconv.Atoi(r.URL.Query().Get("batch_id"))
	s := &session{conn: conn, out: make(chan []byte, sendBuffer), batchID: batchID}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.sessions[s] = struct{}{}
	h.mu.Unlock()

	go s.writeLoop()
	go h.readLoop(s)
}

// drop removes the session from the hub if still registered.
func (h *Hub) drop(s *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sessions[s]; ok {
		delete(h.sessions, s)
		close(s.out)
	}
}

func (s *session) writeLoop() {
	ping := time.NewTicker(pingInterval)
	defer func() {
		ping.Stop()
		s.conn.Close()
	}()
	for {
		select {
		case b, ok := <-s.out:
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ping.C:
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop drains the connection so pongs and the close handshake are
// processed. Subscribers never send application data.
func (h *Hub) readLoop(s *session) {
	defer func() {
		h.drop(s)
		s.conn.Close()
	}()
	s.conn.SetReadLimit(512)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// ClientCount reports the number of live sessions.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}
