// Package storage defines the persistence contract for sessions and
// transcript messages, plus the small error taxonomy every backend
// translates into.
package storage

import (
	"context"
	"errors"

	"gamemaster-agent/internal/domain"
)

// ErrNotFound indicates the referenced session does not exist.
var ErrNotFound = errors.New("storage: not found")

// ErrConflict indicates a precondition violation (e.g. deleting a session
// that was already deleted). Not retryable.
var ErrConflict = errors.New("storage: conflict")

// ErrUnavailable indicates a transient backend failure. Retryable.
var ErrUnavailable = errors.New("storage: unavailable")

// Store persists sessions and their transcripts.
//
// Implementations must assign each message a per-session sequence number and
// return messages from ListMessages in strictly ascending sequence order,
// independent of timestamp granularity. Deleting a session must remove all
// of its messages.
type Store interface {
	CreateSession(ctx context.Context) (domain.Session, error)
	AppendMessage(ctx context.Context, sessionID string, role domain.Role, content string) (domain.Message, error)
	ListSessions(ctx context.Context) ([]domain.Session, error)
	ListMessages(ctx context.Context, sessionID string) ([]domain.Message, error)
	DeleteSession(ctx context.Context, sessionID string) error
}
