package ports

import (
	"context"

	"github.com/aretw0/conductor/pkg/domain"
)

// HistoryStore persists conversation turns per session.
// Stores are append-only: there is no way to edit or drop a turn.
type HistoryStore interface {
	// Append adds turns to the end of the session, creating it if needed.
	Append(ctx context.Context, sessionID string, turns ...domain.Turn) error

	// Load returns all turns of a session in chronological order.
	// Returns domain.ErrSessionNotFound if the session does not exist.
	Load(ctx context.Context, sessionID string) ([]domain.Turn, error)

	// List returns the IDs of every known session.
	List(ctx context.Context) ([]string, error)
}
