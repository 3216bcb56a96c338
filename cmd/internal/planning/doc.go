// Package planning is the Rally coordination core.
//
// It owns the session entity graph (sessions, participants, venue options,
// votes, comments, itinerary items) behind a Store boundary, and exposes the
// domain services on top of it: session lifecycle, participant registry, vote
// aggregation and ranking, and itinerary management.
//
// Concurrency model:
//   - Mutations are serialized per affected entity key via conditional writes
//     in the Store (vote upserts on a unique key, status-guarded session
//     transitions, itinerary compaction inside one transaction). There is no
//     process-wide lock; unrelated sessions proceed fully in parallel.
//   - Reads never block writers and observe committed state.
//   - A mutation is durably committed before its event is published, so a
//     delivered event always corresponds to observable state.
package planning
