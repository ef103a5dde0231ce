// Package kiosk serves the browser kiosk over a websocket. Each connection
// drives its own scan and lookup orchestrators and receives form updates.
package kiosk

import (
	"log/slog"
	"sync"

	"github.com/ashureev/fleetscan/internal/metrics"
	"github.com/coder/websocket"
)

// Registry tracks active kiosk connections.
type Registry struct {
	mu     sync.RWMutex
	active map[string]*websocket.Conn
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		active: make(map[string]*websocket.Conn),
	}
}

// Count returns the number of active sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.active)
}

// Register adds a connection under a fresh sessionID.
func (r *Registry) Register(sessionID string, conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.active[sessionID] = conn
	metrics.SetKioskSessions(len(r.active))
	slog.Info("Kiosk session registered", "session_id", sessionID)
}

// Unregister removes conn if it is still the connection for sessionID.
func (r *Registry) Unregister(sessionID string, conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.active[sessionID]; ok && current == conn {
		delete(r.active, sessionID)
		metrics.SetKioskSessions(len(r.active))
		slog.Info("Kiosk session unregistered", "session_id", sessionID)
	}
}

// CloseAll closes every active session. Used on shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, conn := range r.active {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		slog.Info("Kiosk session closed", "session_id", id)
	}
	r.active = make(map[string]*websocket.Conn)
	metrics.SetKioskSessions(0)
}
