package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gamemaster-agent/internal/domain"
)

type flakyStore struct {
	failures int
	calls    int
	failWith error
}

func (f *flakyStore) attempt() error {
	f.calls++
	if f.calls <= f.failures {
		return f.failWith
	}
	return nil
}

func (f *flakyStore) CreateSession(_ context.Context) (domain.Session, error) {
	if err := f.attempt(); err != nil {
		return domain.Session{}, err
	}
	return domain.Session{ID: "1", UUID: "uuid-1"}, nil
}

func (f *flakyStore) AppendMessage(_ context.Context, sessionID string, role domain.Role, content string) (domain.Message, error) {
	if err := f.attempt(); err != nil {
		return domain.Message{}, err
	}
	return domain.Message{SessionID: sessionID, Seq: 1, Role: role, Content: content}, nil
}

func (f *flakyStore) ListSessions(_ context.Context) ([]domain.Session, error) {
	if err := f.attempt(); err != nil {
		return nil, err
	}
	return nil, nil
}

func (f *flakyStore) ListMessages(_ context.Context, _ string) ([]domain.Message, error) {
	if err := f.attempt(); err != nil {
		return nil, err
	}
	return nil, nil
}

func (f *flakyStore) DeleteSession(_ context.Context, _ string) error {
	return f.attempt()
}

func newRetrying(t *testing.T, inner Store) *Retrying {
	t.Helper()
	r, err := NewRetrying(inner, 3, time.Millisecond)
	require.NoError(t, err)
	return r
}

func TestRetryingRecoversFromTransientFailures(t *testing.T) {
	inner := &flakyStore{failures: 2, failWith: ErrUnavailable}
	r := newRetrying(t, inner)

	sess, err := r.CreateSession(context.Background())
	require.NoError(t, err)
	require.Equal(t, "uuid-1", sess.UUID)
	require.Equal(t, 3, inner.calls)
}

func TestRetryingGivesUpAfterBoundedAttempts(t *testing.T) {
	inner := &flakyStore{failures: 10, failWith: ErrUnavailable}
	r := newRetrying(t, inner)

	_, err := r.AppendMessage(context.Background(), "1", domain.RoleUser, "hello")
	require.ErrorIs(t, err, ErrUnavailable)
	require.Equal(t, 3, inner.calls)
}

func TestRetryingDoesNotRetryConflict(t *testing.T) {
	inner := &flakyStore{failures: 10, failWith: ErrConflict}
	r := newRetrying(t, inner)

	err := r.DeleteSession(context.Background(), "1")
	require.ErrorIs(t, err, ErrConflict)
	require.Equal(t, 1, inner.calls)
}

func TestRetryingDoesNotRetryNotFound(t *testing.T) {
	inner := &flakyStore{failures: 10, failWith: ErrNotFound}
	r := newRetrying(t, inner)

	_, err := r.ListMessages(context.Background(), "404")
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, 1, inner.calls)
}

func TestRetryingHonorsContextCancellation(t *testing.T) {
	inner := &flakyStore{failures: 10, failWith: ErrUnavailable}
	r, err := NewRetrying(inner, 5, 50*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = r.ListSessions(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestNewRetryingRequiresInner(t *testing.T) {
	_, err := NewRetrying(nil, 3, time.Millisecond)
	require.Error(t, err)
}
