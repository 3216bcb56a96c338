// Package archive sweeps inactive planning sessions into the archived state.
//
// A session is inactive when its updated_at is older than the configured
// retention window. Sweeps are conditional writes: a session that changes
// concurrently is skipped, never double-archived, so any number of sweepers
// may run against the same store.
package archive
