package wizard

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Hub owns the in-memory wizard sessions. Sessions are ephemeral client
// state; abandoning one only forfeits un-submitted composites.
type Hub struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
	run      RunFunc
}

func NewHub(run RunFunc) *Hub {
	return &Hub{sessions: map[uuid.UUID]*Session{}, run: run}
}

func (h *Hub) Create() (uuid.UUID, *Session) {
	id := uuid.New()
	s := NewSession(h.run)
	h.mu.Lock()
	h.sessions[id] = s
	h.mu.Unlock()
	return id, s
}

func (h *Hub) Get(id uuid.UUID) (*Session, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[id]
	return s, ok
}

// Delete closes and removes a session immediately. Unknown ids are a no-op.
func (h *Hub) Delete(id uuid.UUID) {
	h.mu.Lock()
	s, ok := h.sessions[id]
	delete(h.sessions, id)
	h.mu.Unlock()
	if ok {
		s.Close()
	}
}

// Purge closes and removes sessions idle longer than maxIdle.
func (h *Hub) Purge(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for id, s := range h.sessions {
		if s.LastSeen().Before(cutoff) {
			s.Close()
			delete(h.sessions, id)
			n++
		}
	}
	return n
}

// StartReaper purges idle sessions until ctx is cancelled.
func (h *Hub) StartReaper(ctx context.Context, interval, maxIdle time.Duration) {
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if n := h.Purge(maxIdle); n > 0 {
					log.Debug().Int("purged", n).Msg("wizard sessions reaped")
				}
			}
		}
	}()
}
