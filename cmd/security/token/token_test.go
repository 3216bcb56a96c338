package token

import (
	"errors"
	"strings"
	"testing"
)

func TestHashInviteTokenHexFallsBackToSHA256(t *testing.T) {
	t.Setenv(HMACEnvKey, "")

	got := HashInviteTokenHex("invite-token")
	want := HashSHA256Hex("invite-token")
	if got != want {
		t.Fatalf("expected SHA-256 fallback without key")
	}
}

func TestHashInviteTokenHexUsesHMACWhenKeySet(t *testing.T) {
	key := strings.Repeat("k", 32)
	t.Setenv(HMACEnvKey, key)

	got := HashInviteTokenHex("invite-token")
	want := HashHMACSHA256Hex("invite-token", []byte(key))
	if got != want {
		t.Fatalf("expected HMAC hash when key is set")
	}
	if got == HashSHA256Hex("invite-token") {
		t.Fatalf("HMAC hash must differ from plain SHA-256")
	}
}

func TestHMACKeyFromEnvPolicy(t *testing.T) {
	t.Setenv(HMACEnvKey, "")
	if _, err := HMACKeyFromEnv(32); !errors.Is(err, ErrHMACKeyMissing) {
		t.Fatalf("err = %v, want ErrHMACKeyMissing", err)
	}

	t.Setenv(HMACEnvKey, "short")
	if _, err := HMACKeyFromEnv(32); !errors.Is(err, ErrHMACKeyTooShort) {
		t.Fatalf("err = %v, want ErrHMACKeyTooShort", err)
	}

	t.Setenv(HMACEnvKey, strings.Repeat("k", 32))
	key, err := HMACKeyFromEnv(32)
	if err != nil || len(key) != 32 {
		t.Fatalf("key = %q err = %v", key, err)
	}
}

func TestHashInviteTokenHexRequireHMAC(t *testing.T) {
	t.Setenv(HMACEnvKey, "short")
	if _, err := HashInviteTokenHexRequireHMAC("tok", 32); !errors.Is(err, ErrHMACKeyTooShort) {
		t.Fatalf("err = %v, want ErrHMACKeyTooShort", err)
	}

	key := strings.Repeat("k", 32)
	t.Setenv(HMACEnvKey, key)
	got, err := HashInviteTokenHexRequireHMAC("tok", 32)
	if err != nil {
		t.Fatalf("RequireHMAC: %v", err)
	}
	if got != HashHMACSHA256Hex("tok", []byte(key)) {
		t.Fatalf("unexpected digest")
	}
}
