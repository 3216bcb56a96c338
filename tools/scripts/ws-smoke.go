// Package main provides a CI-friendly smoke test for the Rally realtime feed.
//
// It validates:
//   - session creation + invite join over HTTP
//   - WS handshake + subprotocol selection for two subscribers
//   - vote_cast fanout to both live connections
//   - participant_joined fanout when a third member joins
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	v1 "rally/shared/contracts/planning/v1"

	"github.com/coder/websocket"
)

const (
	subprotocol  = "rally.planning.v1"
	maxReadBytes = 1 << 20 // 1MiB
)

type subscriber struct {
	name string
	conn *websocket.Conn
}

func main() {
	var (
		baseURL = flag.String("base", "http://127.0.0.1:8080", "HTTP base URL of the server")
		origin  = flag.String("origin", "http://localhost", "Origin header for the WS handshake")
		timeout = flag.Duration("timeout", 7*time.Second, "Per-step timeout")
		verbose = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	if err := validateBaseURL(*baseURL); err != nil {
		fatalf("invalid -base: %v", err)
	}

	ctx := context.Background()

	// 1. Create a session and join a second member.
	created := mustCreateSession(ctx, *baseURL, *timeout)
	member := mustJoin(ctx, *baseURL, created.InviteToken, "smoke-member", *timeout)

	if *verbose {
		fmt.Printf("session=%s organizer=%s member=%s\n",
			created.Session.ID, created.Organizer.ID, member.Participant.ID)
	}

	// 2. Subscribe both participants.
	a := mustSubscribe(ctx, *baseURL, *origin, created.Session.ID, created.Organizer.ID, *timeout, "A")
	defer closeWS(a.conn)
	b := mustSubscribe(ctx, *baseURL, *origin, created.Session.ID, member.Participant.ID, *timeout, "B")
	defer closeWS(b.conn)

	// 3. Add a venue and cast a vote over HTTP; both sockets must see fanout.
	venueID := mustAddVenue(ctx, *baseURL, created.Session.ID, created.Organizer.ID, *timeout)
	mustCastVote(ctx, *baseURL, created.Session.ID, venueID, member.Participant.ID, *timeout)

	for _, sub := range []*subscriber{a, b} {
		env := mustAwait(ctx, sub, v1.TypeVoteCast, *timeout)
		if env.SessionID != created.Session.ID {
			fatalf("%s: vote_cast for wrong session %q", sub.name, env.SessionID)
		}
	}

	// 4. A third joiner produces participant_joined on live connections.
	mustJoin(ctx, *baseURL, created.InviteToken, "smoke-late", *timeout)
	for _, sub := range []*subscriber{a, b} {
		mustAwait(ctx, sub, v1.TypeParticipantJoined, *timeout)
	}

	fmt.Println("ws-smoke: OK")
}

// ---- HTTP steps ----

type createdSession struct {
	Session struct {
		ID string `json:"id"`
	} `json:"session"`
	Organizer struct {
		ID string `json:"id"`
	} `json:"organizer"`
	InviteToken string `json:"invite_token"`
}

type joined struct {
	Participant struct {
		ID string `json:"id"`
	} `json:"participant"`
}

func mustCreateSession(ctx context.Context, base string, timeout time.Duration) createdSession {
	var out createdSession
	body := map[string]any{"name": "ws smoke", "organizer_name": "smoke-organizer"}
	if err := postJSON(ctx, base+"/api/sessions", body, &out, timeout); err != nil {
		fatalf("create session: %v", err)
	}
	if out.Session.ID == "" || out.InviteToken == "" {
		fatalf("create session: incomplete response %+v", out)
	}
	return out
}

func mustJoin(ctx context.Context, base, token, name string, timeout time.Duration) joined {
	var out joined
	body := map[string]any{"token": token, "display_name": name}
	if err := postJSON(ctx, base+"/api/join", body, &out, timeout); err != nil {
		fatalf("join %q: %v", name, err)
	}
	return out
}

func mustAddVenue(ctx context.Context, base, sessionID, participantID string, timeout time.Duration) string {
	var out struct {
		ID string `json:"id"`
	}
	body := map[string]any{"participant_id": participantID, "name": "Smoke Venue"}
	if err := postJSON(ctx, base+"/api/sessions/"+sessionID+"/venues", body, &out, timeout); err != nil {
		fatalf("add venue: %v", err)
	}
	return out.ID
}

func mustCastVote(ctx context.Context, base, sessionID, venueID, participantID string, timeout time.Duration) {
	body := map[string]any{"participant_id": participantID, "kind": "up"}
	path := fmt.Sprintf("%s/api/sessions/%s/venues/%s/votes", base, sessionID, venueID)
	if err := postJSON(ctx, path, body, &struct{}{}, timeout); err != nil {
		fatalf("cast vote: %v", err)
	}
}

func postJSON(ctx context.Context, rawURL string, body, out any, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReadBytes))
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}

// ---- WS steps ----

func mustSubscribe(ctx context.Context, base, origin, sessionID, participantID string, timeout time.Duration, name string) *subscriber {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	wsURL := toWSURL(base) + "/ws?session_id=" + url.QueryEscape(sessionID) +
		"&participant_id=" + url.QueryEscape(participantID)

	headers := http.Header{}
	headers.Set("Origin", origin)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		Subprotocols: []string{subprotocol},
		HTTPHeader:   headers,
	})
	if err != nil {
		fatalf("%s: dial %s: %v", name, wsURL, err)
	}
	if got := conn.Subprotocol(); got != subprotocol {
		fatalf("%s: subprotocol %q, want %q", name, got, subprotocol)
	}
	conn.SetReadLimit(maxReadBytes)
	return &subscriber{name: name, conn: conn}
}

// mustAwait reads envelopes until one of the wanted type arrives.
func mustAwait(ctx context.Context, sub *subscriber, wantType string, timeout time.Duration) v1.Envelope {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for {
		_, data, err := sub.conn.Read(ctx)
		if err != nil {
			fatalf("%s: waiting for %q: %v", sub.name, wantType, err)
		}

		var env v1.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			fatalf("%s: bad envelope: %v", sub.name, err)
		}
		if err := env.Validate(); err != nil {
			fatalf("%s: invalid envelope: %v", sub.name, err)
		}
		if env.Type == wantType {
			return env
		}
	}
}

func closeWS(conn *websocket.Conn) {
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "bye")
	}
}

// ---- validation ----

func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("scheme must be http or https")
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}

func toWSURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	default:
		return "ws://" + strings.TrimPrefix(base, "http://")
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "ws-smoke: "+format+"\n", args...)
	os.Exit(1)
}
