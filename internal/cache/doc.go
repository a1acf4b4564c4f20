// Package cache persists analysis records keyed by canonical URL.
//
// Store is the SQLite source of truth; Cache puts a short-lived memory layer
// in front of it. Upserts replace a record in one statement, so concurrent
// writers for the same URL resolve to whichever commits last.
package cache
