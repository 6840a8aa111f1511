// Package state keeps the latest orchestrator view for the UI.
//
// The orchestrator publishes events from its session goroutines; the UI reads
// on its own tick. Store sits between the two so that publishing never waits
// on rendering:
//
//	orchestrator ──Publish──> Store <──Snapshot── ui tick
//
// Progress is reset when a new stream starts, so a stale percentage from a
// previous attempt is never shown. Notices carry a sequence number that lets
// the UI tell a new failure from one it already displayed.
//
// The zero Store is ready to use.
package state
