package realtime

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	v1 "rally/shared/contracts/planning/v1"
)

func testEnvelope(sessionID, typ string) v1.Envelope {
	return v1.Envelope{
		V:         v1.Version,
		Type:      typ,
		ID:        NewRandomHex(8),
		SessionID: sessionID,
		TS:        time.Now().UTC(),
		Data:      json.RawMessage(`{}`),
	}
}

func TestHubSubscribeReusesTopic(t *testing.T) {
	h := NewHub(nil)

	a := NewClient("conn-a", "sess-1", "p-1", 8)
	b := NewClient("conn-b", "sess-1", "p-2", 8)

	ta := h.Subscribe(a)
	tb := h.Subscribe(b)

	if ta != tb {
		t.Fatalf("expected both clients on the same topic")
	}
}

func TestHubPublishReachesAllSubscribers(t *testing.T) {
	h := NewHub(nil)

	a := NewClient("conn-a", "sess-1", "p-1", 8)
	b := NewClient("conn-b", "sess-1", "p-2", 8)
	other := NewClient("conn-c", "sess-2", "p-3", 8)

	h.Subscribe(a)
	h.Subscribe(b)
	h.Subscribe(other)

	h.Publish("sess-1", testEnvelope("sess-1", v1.TypeVoteCast))

	for _, c := range []*Client{a, b} {
		select {
		case env := <-c.Send:
			if env.Type != v1.TypeVoteCast {
				t.Fatalf("Type = %q, want %q", env.Type, v1.TypeVoteCast)
			}
		default:
			t.Fatalf("client %s received nothing", c.ConnID)
		}
	}

	select {
	case env := <-other.Send:
		t.Fatalf("client in another session received %q", env.Type)
	default:
	}
}

func TestHubPublishUnknownSessionIsNoop(t *testing.T) {
	h := NewHub(nil)
	// Must not panic or block.
	h.Publish("nope", testEnvelope("nope", v1.TypeCommentAdded))
}

func TestHubUnsubscribeDropsEmptyTopic(t *testing.T) {
	h := NewHub(nil)

	a := NewClient("conn-a", "sess-1", "p-1", 8)
	h.Subscribe(a)
	h.Unsubscribe("sess-1", "conn-a")

	h.mu.Lock()
	_, exists := h.topics["sess-1"]
	h.mu.Unlock()

	if exists {
		t.Fatalf("empty topic should have been removed")
	}
}

func TestTopicBroadcastDropsOnFullQueue(t *testing.T) {
	h := NewHub(nil)

	slow := NewClient("conn-slow", "sess-1", "p-1", 1)
	fast := NewClient("conn-fast", "sess-1", "p-2", 8)
	h.Subscribe(slow)
	h.Subscribe(fast)

	// Fill the slow client's queue, then publish once more. The slow client
	// must be skipped without blocking the fast one.
	h.Publish("sess-1", testEnvelope("sess-1", v1.TypeVenueAdded))
	h.Publish("sess-1", testEnvelope("sess-1", v1.TypeVoteCast))

	if got := len(slow.Send); got != 1 {
		t.Fatalf("slow queue len = %d, want 1", got)
	}
	if got := len(fast.Send); got != 2 {
		t.Fatalf("fast queue len = %d, want 2", got)
	}
}

func TestUnsubscribeReportsLastParticipantConnection(t *testing.T) {
	h := NewHub(nil)

	first := NewClient("conn-1", "sess-1", "p-1", 8)
	second := NewClient("conn-2", "sess-1", "p-1", 8)
	bystander := NewClient("conn-3", "sess-1", "p-2", 8)

	h.Subscribe(first)
	h.Subscribe(second)
	h.Subscribe(bystander)

	if !h.Unsubscribe("sess-1", "conn-1") {
		t.Fatalf("p-1 still has conn-2 open, expected participantRemains=true")
	}
	if h.Unsubscribe("sess-1", "conn-2") {
		t.Fatalf("conn-2 was the last connection for p-1, expected participantRemains=false")
	}
	if h.Unsubscribe("sess-1", "conn-3") {
		t.Fatalf("conn-3 was the only connection for p-2, expected participantRemains=false")
	}
}

func TestUnsubscribeUnknownConnectionKeepsPresence(t *testing.T) {
	h := NewHub(nil)

	h.Subscribe(NewClient("conn-1", "sess-1", "p-1", 8))

	// A connection id the topic never saw must not trigger a presence drop
	// for anyone.
	if !h.Unsubscribe("sess-1", "ghost") {
		t.Fatalf("unknown conn id reported a last connection")
	}
}

// Two tabs of the same participant disconnecting at the same instant must
// elect exactly one of them as the last connection, never zero or two.
func TestConcurrentDisconnectsElectOneLastConnection(t *testing.T) {
	h := NewHub(nil)

	for i := 0; i < 200; i++ {
		h.Subscribe(NewClient("conn-a", "sess-1", "p-1", 8))
		h.Subscribe(NewClient("conn-b", "sess-1", "p-1", 8))

		results := make(chan bool, 2)
		var wg sync.WaitGroup
		for _, id := range []string{"conn-a", "conn-b"} {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				results <- h.Unsubscribe("sess-1", id)
			}(id)
		}
		wg.Wait()
		close(results)

		lastObservers := 0
		for remains := range results {
			if !remains {
				lastObservers++
			}
		}
		if lastObservers != 1 {
			t.Fatalf("iteration %d: %d disconnects observed the participant as gone, want exactly 1", i, lastObservers)
		}
	}
}

func TestClientCloseIsIdempotent(t *testing.T) {
	c := NewClient("conn-1", "sess-1", "p-1", 8)

	c.Close()
	c.Close()

	select {
	case <-c.Done():
	default:
		t.Fatalf("Done channel should be closed")
	}
}
