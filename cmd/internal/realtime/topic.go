package realtime

import (
	"log/slog"
	"sync"

	v1 "rally/shared/contracts/planning/v1"
)

// Topic is the in-memory subscription + broadcast primitive for one planning
// session. A session may have many live connections, including several for
// the same participant (multiple tabs).
//
// Concurrency guarantees:
// - Join/Leave are safe under concurrent Broadcast.
// - Broadcast never blocks (drops under backpressure).
// - Broadcast is panic-safe because Client.Send is never closed by the server.
type Topic struct {
	log       *slog.Logger
	SessionID string

	mu      sync.RWMutex
	members map[string]*Client // conn id -> client
}

// NewTopic constructs a topic for one session.
func NewTopic(log *slog.Logger, sessionID string) *Topic {
	return &Topic{
		log:       log,
		SessionID: sessionID,
		members:   make(map[string]*Client),
	}
}

// Join adds a client connection to the topic.
func (t *Topic) Join(client *Client) {
	if t == nil || client == nil || client.ConnID == "" {
		return
	}

	t.mu.Lock()
	t.members[client.ConnID] = client
	t.mu.Unlock()

	t.log.Info("topic.member.join", "session_id", t.SessionID, "conn_id", client.ConnID, "participant_id", client.ParticipantID)
}

// Leave removes a client connection and signals shutdown for that client.
// It returns the remaining member count so the hub can drop empty topics, and
// whether the departed client's participant still has another live connection
// (another tab). Both are observed under the same lock as the removal, so two
// connections of one participant leaving concurrently elect exactly one
// last-connection observer.
func (t *Topic) Leave(connID string) (remaining int, participantRemains bool) {
	if t == nil || connID == "" {
		return 0, false
	}

	t.mu.Lock()
	cl := t.members[connID]
	delete(t.members, connID)
	remaining = len(t.members)
	if cl == nil {
		// Unknown connection: nothing actually left, so no presence change.
		participantRemains = true
	} else {
		for _, m := range t.members {
			if m != nil && m.ParticipantID == cl.ParticipantID {
				participantRemains = true
				break
			}
		}
	}
	t.mu.Unlock()

	// Signal client shutdown after removing from membership.
	// This ordering avoids race windows where a broadcaster still holds a pointer
	// while the client goroutines are being torn down.
	if cl != nil {
		cl.Close()
	}

	t.log.Info("topic.member.leave", "session_id", t.SessionID, "conn_id", connID)
	return remaining, participantRemains
}

// Broadcast fans an envelope out to all member connections.
// Non-blocking: if a member queue is full or the client is shutting down, the
// event is dropped for that member.
func (t *Topic) Broadcast(env v1.Envelope) {
	if t == nil {
		return
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, m := range t.members {
		if m == nil {
			continue
		}

		select {
		case <-m.Done():
			// Skip clients that are shutting down.
			continue
		default:
		}

		select {
		case m.Send <- env:
			eventsDelivered.Inc()
		default:
			// Drop rather than block the whole session.
			eventsDropped.Inc()
		}
	}
}
