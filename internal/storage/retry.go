package storage

import (
	"context"
	"errors"
	"time"

	"gamemaster-agent/internal/domain"
)

const (
	defaultAttempts = 3
	defaultBackoff  = 250 * time.Millisecond
)

// Retrying decorates a Store with bounded retries for ErrUnavailable.
// ErrConflict and ErrNotFound are surfaced immediately.
type Retrying struct {
	inner    Store
	attempts int
	backoff  time.Duration
}

// NewRetrying wraps inner with up to attempts tries per operation, sleeping
// backoff before the first retry and doubling it for each subsequent one.
func NewRetrying(inner Store, attempts int, backoff time.Duration) (*Retrying, error) {
	if inner == nil {
		return nil, errors.New("storage: inner store must not be nil")
	}
	if attempts <= 0 {
		attempts = defaultAttempts
	}
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	return &Retrying{inner: inner, attempts: attempts, backoff: backoff}, nil
}

func (r *Retrying) do(ctx context.Context, op func() error) error {
	delay := r.backoff
	var err error
	for attempt := 0; attempt < r.attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
		err = op()
		if err == nil || !errors.Is(err, ErrUnavailable) {
			return err
		}
	}
	return err
}

func (r *Retrying) CreateSession(ctx context.Context) (domain.Session, error) {
	var out domain.Session
	err := r.do(ctx, func() error {
		var opErr error
		out, opErr = r.inner.CreateSession(ctx)
		return opErr
	})
	return out, err
}

func (r *Retrying) AppendMessage(ctx context.Context, sessionID string, role domain.Role, content string) (domain.Message, error) {
	var out domain.Message
	err := r.do(ctx, func() error {
		var opErr error
		out, opErr = r.inner.AppendMessage(ctx, sessionID, role, content)
		return opErr
	})
	return out, err
}

func (r *Retrying) ListSessions(ctx context.Context) ([]domain.Session, error) {
	var out []domain.Session
	err := r.do(ctx, func() error {
		var opErr error
		out, opErr = r.inner.ListSessions(ctx)
		return opErr
	})
	return out, err
}

func (r *Retrying) ListMessages(ctx context.Context, sessionID string) ([]domain.Message, error) {
	var out []domain.Message
	err := r.do(ctx, func() error {
		var opErr error
		out, opErr = r.inner.ListMessages(ctx, sessionID)
		return opErr
	})
	return out, err
}

func (r *Retrying) DeleteSession(ctx context.Context, sessionID string) error {
	return r.do(ctx, func() error {
		return r.inner.DeleteSession(ctx, sessionID)
	})
}
