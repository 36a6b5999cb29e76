/*
Package session implements conversation history and its persistence orchestration.

A Session is the in-memory, append-only list of turns a caller hands to the
orchestrator. Render produces a bounded textual view of it without ever
discarding stored turns.

The Manager hydrates sessions from a ports.HistoryStore and commits newly
appended turns back, serializing access per session with local locks and an
optional distributed locker for multi-replica deployments.
*/
package session
