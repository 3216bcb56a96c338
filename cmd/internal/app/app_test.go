package app

import "testing"

func TestRuntimeBaseURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "explicit localhost", in: "127.0.0.1:8080", want: "http://127.0.0.1:8080"},
		{name: "bind all v4", in: "0.0.0.0:8080", want: "http://127.0.0.1:8080"},
		{name: "bind all v6", in: "[::]:9090", want: "http://127.0.0.1:9090"},
		{name: "ipv6 host", in: "[2001:db8::1]:9090", want: "http://[2001:db8::1]:9090"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := runtimeBaseURL(tc.in)
			if got != tc.want {
				t.Fatalf("runtimeBaseURL(%q)=%q want=%q", tc.in, got, tc.want)
			}
		})
	}
}

func TestWSBaseURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{in: "http://127.0.0.1:8080", want: "ws://127.0.0.1:8080"},
		{in: "https://rally.example.com", want: "wss://rally.example.com"},
		{in: "127.0.0.1:8080", want: "ws://127.0.0.1:8080"},
	}

	for _, tc := range cases {
		got := wsBaseURL(tc.in)
		if got != tc.want {
			t.Fatalf("wsBaseURL(%q)=%q want=%q", tc.in, got, tc.want)
		}
	}
}

func TestMigrateURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{in: "postgres://u:p@localhost:5432/rally", want: "pgx5://u:p@localhost:5432/rally"},
		{in: "postgresql://u:p@localhost/rally", want: "pgx5://u:p@localhost/rally"},
		{in: "pgx5://u:p@localhost/rally", want: "pgx5://u:p@localhost/rally"},
	}

	for _, tc := range cases {
		if got := migrateURL(tc.in); got != tc.want {
			t.Fatalf("migrateURL(%q)=%q want=%q", tc.in, got, tc.want)
		}
	}
}

func TestNewInMemoryModeWiresEverything(t *testing.T) {
	cfg := LoadConfig()
	cfg.DatabaseURL = ""

	a, err := New(cfg, NewLogger("error", "json"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.dbEnabled {
		t.Fatalf("dbEnabled should be false without a database URL")
	}
	if a.planning == nil || a.invites == nil || a.archive == nil || a.ws == nil || a.api == nil {
		t.Fatalf("incomplete wiring: %+v", a)
	}
}
