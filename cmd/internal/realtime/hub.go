package realtime

import (
	"log/slog"
	"os"
	"sync"

	v1 "rally/shared/contracts/planning/v1"
)

// Hub owns the per-session topics and is the planning services' event bus.
// One topic per session id; topics are created on first subscribe and dropped
// when their last connection leaves.
type Hub struct {
	log *slog.Logger

	mu     sync.RWMutex
	topics map[string]*Topic
}

// NewHub constructs a Hub instance. A nil logger falls back to a JSON logger
// on stdout so topics can always log membership changes.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return &Hub{
		log:    log,
		topics: make(map[string]*Topic),
	}
}

// Subscribe adds a client to the session's topic, creating it if needed.
func (h *Hub) Subscribe(client *Client) *Topic {
	if h == nil || client == nil || client.SessionID == "" {
		return nil
	}

	h.mu.Lock()
	t, ok := h.topics[client.SessionID]
	if !ok {
		t = NewTopic(h.log, client.SessionID)
		h.topics[client.SessionID] = t
	}
	h.mu.Unlock()

	t.Join(client)
	return t
}

// Unsubscribe removes a client connection and drops the topic when empty.
// It reports whether the departed connection's participant still has another
// live connection on the topic, observed atomically with the removal, so the
// gateway can decide presence events without racing a concurrent disconnect
// of the same participant's other tab.
func (h *Hub) Unsubscribe(sessionID, connID string) (participantRemains bool) {
	if h == nil || sessionID == "" {
		return false
	}

	h.mu.Lock()
	t := h.topics[sessionID]
	h.mu.Unlock()
	if t == nil {
		return false
	}

	remaining, participantRemains := t.Leave(connID)
	if remaining == 0 {
		h.mu.Lock()
		// Re-check under the lock: a new subscriber may have joined meanwhile.
		if cur := h.topics[sessionID]; cur == t && cur.empty() {
			delete(h.topics, sessionID)
		}
		h.mu.Unlock()
	}
	return participantRemains
}

// Publish delivers a committed session event to the session's live
// connections. Sessions with no subscribers are a silent no-op; there is no
// persisted event log, so offline clients re-fetch state on reconnect.
func (h *Hub) Publish(sessionID string, env v1.Envelope) {
	if h == nil || sessionID == "" {
		return
	}

	h.mu.RLock()
	t := h.topics[sessionID]
	h.mu.RUnlock()

	if t == nil {
		return
	}
	t.Broadcast(env)
}

func (t *Topic) empty() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.members) == 0
}
