// Package ledger keeps the versioned history of produced drafts together
// with the critiques attached to each version, and derives the per-session
// review metadata from them.
//
// Versions are immutable once appended and strictly increasing from 1.
// Critiques reference versions, never copy them, and are append-only.
package ledger
