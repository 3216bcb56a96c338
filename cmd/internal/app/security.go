package app

import (
	"errors"

	"rally/cmd/security/token"
)

// ValidateSecurityConfig enforces the invite-token hashing policy at startup.
// Fail-fast: a production deployment must never silently fall back from HMAC
// to plain SHA-256 hashing of invite tokens.
func ValidateSecurityConfig(cfg Config) error {
	if !cfg.RequireTokenHMAC {
		return nil
	}

	// The key is used as raw bytes, so the minimum is measured in bytes.
	if _, err := token.HMACKeyFromEnv(32); err != nil {
		switch {
		case errors.Is(err, token.ErrHMACKeyMissing):
			return errors.New("security policy: RALLY_REQUIRE_TOKEN_HMAC=true but RALLY_TOKEN_HMAC_KEY is missing")
		case errors.Is(err, token.ErrHMACKeyTooShort):
			return errors.New("security policy: RALLY_REQUIRE_TOKEN_HMAC=true but RALLY_TOKEN_HMAC_KEY is too short (min 32 bytes)")
		default:
			return err
		}
	}

	if !token.HMACEnabled() {
		return errors.New("security policy: RALLY_REQUIRE_TOKEN_HMAC=true but token hasher is not in HMAC mode")
	}

	return nil
}
