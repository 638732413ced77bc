// Package session owns the active-session pointer and the in-memory
// transcript cache. It is the sole writer to the storage layer: every
// transcript mutation flows through the Manager.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"gamemaster-agent/internal/domain"
	"gamemaster-agent/internal/storage"
)

// ErrNoActiveSession indicates an operation that requires an active session
// was called without one.
var ErrNoActiveSession = errors.New("session: no active session")

// ErrInvariant indicates hydration returned a transcript whose sequence is
// not gap-free ascending. Fatal to the session being resumed, not to the
// process.
var ErrInvariant = errors.New("session: transcript sequence out of order")

// Manager caches the transcript of the single active session and mirrors
// every accepted write to the store. All methods are safe for concurrent use;
// writes serialize on the mutex so readers never observe a message that did
// not (or will not) reach the store.
type Manager struct {
	mu         sync.Mutex
	store      storage.Store
	active     *domain.Session
	transcript []domain.Message
}

// NewManager creates a Manager over the given store.
func NewManager(store storage.Store) (*Manager, error) {
	if store == nil {
		return nil, errors.New("session: store must not be nil")
	}
	return &Manager{store: store}, nil
}

// StartNew creates a fresh session, makes it active, and resets the
// transcript. A non-empty seed is appended as the opening system message.
func (m *Manager) StartNew(ctx context.Context, seed string) (domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, err := m.store.CreateSession(ctx)
	if err != nil {
		return domain.Session{}, fmt.Errorf("start new session: %w", err)
	}
	m.active = &sess
	m.transcript = nil

	if strings.TrimSpace(seed) != "" {
		if _, err := m.appendLocked(ctx, domain.RoleSystem, seed); err != nil {
			return domain.Session{}, fmt.Errorf("seed new session: %w", err)
		}
	}
	return sess, nil
}

// Resume looks a session up by UUID, hydrates the transcript from the store,
// and makes it active. Idempotent: resuming the same UUID twice yields the
// same state and performs no writes.
func (m *Manager) Resume(ctx context.Context, sessionUUID string) (domain.Session, error) {
	sessionUUID = strings.TrimSpace(sessionUUID)

	sessions, err := m.store.ListSessions(ctx)
	if err != nil {
		return domain.Session{}, fmt.Errorf("resume lookup: %w", err)
	}
	var found *domain.Session
	for i := range sessions {
		if sessions[i].UUID == sessionUUID {
			found = &sessions[i]
			break
		}
	}
	if found == nil {
		return domain.Session{}, storage.ErrNotFound
	}

	msgs, err := m.store.ListMessages(ctx, found.ID)
	if err != nil {
		return domain.Session{}, fmt.Errorf("resume hydrate: %w", err)
	}
	for i, msg := range msgs {
		if msg.Seq != i+1 {
			return domain.Session{}, fmt.Errorf("%w: position %d has seq %d", ErrInvariant, i, msg.Seq)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = found
	m.transcript = msgs
	return *found, nil
}

// Append records one utterance for the active session: optimistic in-memory
// append first, then the durable write. On a store failure the in-memory
// entry is rolled back so the cache never diverges ahead of the store.
func (m *Manager) Append(ctx context.Context, role domain.Role, content string) (domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil {
		return domain.Message{}, ErrNoActiveSession
	}
	return m.appendLocked(ctx, role, content)
}

func (m *Manager) appendLocked(ctx context.Context, role domain.Role, content string) (domain.Message, error) {
	if !role.Valid() {
		return domain.Message{}, fmt.Errorf("session: invalid role %q", role)
	}

	m.transcript = append(m.transcript, domain.Message{
		SessionID: m.active.ID,
		Seq:       len(m.transcript) + 1,
		Role:      role,
		Content:   content,
	})

	stored, err := m.store.AppendMessage(ctx, m.active.ID, role, content)
	if err != nil {
		m.transcript = m.transcript[:len(m.transcript)-1]
		return domain.Message{}, fmt.Errorf("append message: %w", err)
	}
	m.transcript[len(m.transcript)-1] = stored
	return stored, nil
}

// Transcript returns a copy of the active transcript in order. Empty when no
// session is active.
func (m *Manager) Transcript() []domain.Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.Message, len(m.transcript))
	copy(out, m.transcript)
	return out
}

// Active returns the active session, if any.
func (m *Manager) Active() (domain.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil {
		return domain.Session{}, false
	}
	return *m.active, true
}

// CloseActive clears the active pointer and discards the cached transcript.
// Stored data is untouched; the session remains resumable.
func (m *Manager) CloseActive() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.active = nil
	m.transcript = nil
}

// Delete removes a session (and, via the store cascade, its messages) by
// UUID. Deleting the active session also deactivates it.
func (m *Manager) Delete(ctx context.Context, sessionUUID string) error {
	sessionUUID = strings.TrimSpace(sessionUUID)

	sessions, err := m.store.ListSessions(ctx)
	if err != nil {
		return fmt.Errorf("delete lookup: %w", err)
	}
	var found *domain.Session
	for i := range sessions {
		if sessions[i].UUID == sessionUUID {
			found = &sessions[i]
			break
		}
	}
	if found == nil {
		return storage.ErrNotFound
	}

	if err := m.store.DeleteSession(ctx, found.ID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != nil && m.active.UUID == sessionUUID {
		m.active = nil
		m.transcript = nil
	}
	return nil
}

// Sessions lists all stored sessions, most recent first.
func (m *Manager) Sessions(ctx context.Context) ([]domain.Session, error) {
	return m.store.ListSessions(ctx)
}
