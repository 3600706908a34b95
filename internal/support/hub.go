package support

import (
	"sync"

	"github.com/birdtrack/support-platform/internal/identity"
	"github.com/birdtrack/support-platform/pkg/logger"
)

// Hub hands out one Lifecycle per client session so that send calls
// target the conversation bound by that session's start-chat.
type Hub struct {
	store  Store
	bus    Bus
	blob   Blob
	mailer Mailer
	logger *logger.Logger

	mu       sync.Mutex
	sessions map[string]*Lifecycle
}

// NewHub creates a session hub.
func NewHub(store Store, bus Bus, blob Blob, mailer Mailer, log *logger.Logger) *Hub {
	return &Hub{
		store:    store,
		bus:      bus,
		blob:     blob,
		mailer:   mailer,
		logger:   log,
		sessions: make(map[string]*Lifecycle),
	}
}

// Lifecycle returns the session's state machine, creating it on first
// use. The key must be stable for the client session (user id, or a
// client-supplied session id for anonymous visitors).
func (h *Hub) Lifecycle(key string, session identity.Session) *Lifecycle {
	h.mu.Lock()
	defer h.mu.Unlock()

	if lc, ok := h.sessions[key]; ok {
		return lc
	}
	lc := NewLifecycle(session, h.store, h.bus, h.blob, h.mailer, h.logger)
	h.sessions[key] = lc
	return lc
}
