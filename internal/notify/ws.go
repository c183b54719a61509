package notify

import (
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
)

// WSSession is one connected provider screen.
type WSSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *WSSession) Send(f Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(f)
}

// WSRegistry holds connected sessions and fans frames out to all of
// them. Sessions that fail a write are dropped; they reconnect and
// resync from the visible-set endpoint.
type WSRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*WSSession
	log      *slog.Logger
}

func NewWSRegistry(log *slog.Logger) *WSRegistry {
	return &WSRegistry{sessions: make(map[string]*WSSession), log: log}
}

func (r *WSRegistry) Add(sessionID string, conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sessionID] = &WSSession{conn: conn}
}

func (r *WSRegistry) Remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
}

func (r *WSRegistry) Notify(f Frame) error {
	r.mu.RLock()
	ids := make([]string, 0, len(r.sessions))
	sessions := make([]*WSSession, 0, len(r.sessions))
	for id, s := range r.sessions {
		ids = append(ids, id)
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	for i, s := range sessions {
		if err := s.Send(f); err != nil {
			r.log.Warn("ws send failed, dropping session", "session", ids[i], "error", err)
			r.Remove(ids[i])
		}
	}
	return nil
}
