// Package sqlite provides the default SQLite-backed session store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"gamemaster-agent/internal/domain"
	"gamemaster-agent/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
    id           INTEGER PRIMARY KEY,
    session_uuid TEXT NOT NULL UNIQUE,
    created_at   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
    id         INTEGER PRIMARY KEY,
    session_id INTEGER NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
    seq        INTEGER NOT NULL,
    role       TEXT NOT NULL,
    content    TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    UNIQUE (session_id, seq)
);
`

// Store persists sessions and messages in a SQLite database. Message order
// is carried by an explicit per-session seq column, not by timestamps, so
// two appends inside the same clock tick cannot tie.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens (or creates) the database at path and applies the schema.
// Foreign keys are enabled so deleting a session cascades to its messages.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite: storage path is required")
	}
	// _pragma applies per connection, so every connection the pool opens has
	// foreign keys on and the delete cascade holds.
	dsn := filepath.Clean(path) + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("sqlite: ping db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// CreateSession inserts one session row and returns it.
func (s *Store) CreateSession(ctx context.Context) (domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return domain.Session{}, err
	}
	sessionUUID := uuid.NewString()
	createdAt := time.Now().UTC()

	res, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO sessions (session_uuid, created_at) VALUES (?, ?)`,
		sessionUUID, toMillis(createdAt),
	)
	if err != nil {
		return domain.Session{}, translate(fmt.Errorf("sqlite: create session: %w", err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Session{}, translate(fmt.Errorf("sqlite: create session id: %w", err))
	}
	return domain.Session{
		ID:        strconv.FormatInt(id, 10),
		UUID:      sessionUUID,
		CreatedAt: createdAt,
	}, nil
}

// AppendMessage appends one message, assigning the next sequence number
// inside a transaction so concurrent appends cannot invert order.
func (s *Store) AppendMessage(ctx context.Context, sessionID string, role domain.Role, content string) (domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return domain.Message{}, err
	}
	id, err := parseID(sessionID)
	if err != nil {
		return domain.Message{}, err
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Message{}, translate(fmt.Errorf("sqlite: begin append: %w", err))
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	row := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM sessions WHERE id = ?`, id)
	if err := row.Scan(&exists); err != nil {
		return domain.Message{}, translate(fmt.Errorf("sqlite: append message: %w", err))
	}
	if exists == 0 {
		return domain.Message{}, storage.ErrNotFound
	}

	var seq int
	row = tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE session_id = ?`, id)
	if err := row.Scan(&seq); err != nil {
		return domain.Message{}, translate(fmt.Errorf("sqlite: next seq: %w", err))
	}

	createdAt := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO messages (session_id, seq, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, seq, string(role), content, toMillis(createdAt),
	)
	if err != nil {
		return domain.Message{}, translate(fmt.Errorf("sqlite: insert message: %w", err))
	}
	msgID, err := res.LastInsertId()
	if err != nil {
		return domain.Message{}, translate(fmt.Errorf("sqlite: insert message id: %w", err))
	}
	if err := tx.Commit(); err != nil {
		return domain.Message{}, translate(fmt.Errorf("sqlite: commit append: %w", err))
	}

	return domain.Message{
		ID:        strconv.FormatInt(msgID, 10),
		SessionID: sessionID,
		Seq:       seq,
		Role:      role,
		Content:   content,
		CreatedAt: createdAt,
	}, nil
}

// ListSessions returns all sessions, most recently created first.
func (s *Store) ListSessions(ctx context.Context) ([]domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, session_uuid, created_at FROM sessions ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, translate(fmt.Errorf("sqlite: list sessions: %w", err))
	}
	defer func() { _ = rows.Close() }()

	var sessions []domain.Session
	for rows.Next() {
		var (
			id        int64
			sessUUID  string
			createdAt int64
		)
		if err := rows.Scan(&id, &sessUUID, &createdAt); err != nil {
			return nil, translate(fmt.Errorf("sqlite: scan session: %w", err))
		}
		sessions = append(sessions, domain.Session{
			ID:        strconv.FormatInt(id, 10),
			UUID:      sessUUID,
			CreatedAt: fromMillis(createdAt),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, translate(fmt.Errorf("sqlite: list sessions rows: %w", err))
	}
	return sessions, nil
}

// ListMessages returns the transcript for a session in sequence order.
func (s *Store) ListMessages(ctx context.Context, sessionID string) ([]domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id, err := parseID(sessionID)
	if err != nil {
		return nil, err
	}

	var exists int
	row := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(1) FROM sessions WHERE id = ?`, id)
	if err := row.Scan(&exists); err != nil {
		return nil, translate(fmt.Errorf("sqlite: list messages: %w", err))
	}
	if exists == 0 {
		return nil, storage.ErrNotFound
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, seq, role, content, created_at FROM messages WHERE session_id = ? ORDER BY seq ASC`,
		id,
	)
	if err != nil {
		return nil, translate(fmt.Errorf("sqlite: list messages: %w", err))
	}
	defer func() { _ = rows.Close() }()

	var msgs []domain.Message
	for rows.Next() {
		var (
			msgID     int64
			seq       int
			role      string
			content   string
			createdAt int64
		)
		if err := rows.Scan(&msgID, &seq, &role, &content, &createdAt); err != nil {
			return nil, translate(fmt.Errorf("sqlite: scan message: %w", err))
		}
		msgs = append(msgs, domain.Message{
			ID:        strconv.FormatInt(msgID, 10),
			SessionID: sessionID,
			Seq:       seq,
			Role:      domain.Role(role),
			Content:   content,
			CreatedAt: fromMillis(createdAt),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, translate(fmt.Errorf("sqlite: list messages rows: %w", err))
	}
	return msgs, nil
}

// DeleteSession removes a session; the foreign key cascade removes its
// messages in the same statement.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	id, err := parseID(sessionID)
	if err != nil {
		return err
	}
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return translate(fmt.Errorf("sqlite: delete session: %w", err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return translate(fmt.Errorf("sqlite: delete session rows: %w", err))
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func parseID(sessionID string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(sessionID), 10, 64)
	if err != nil {
		return 0, storage.ErrNotFound
	}
	return id, nil
}

// translate folds driver errors into the storage taxonomy: constraint
// violations become ErrConflict, everything else is treated as transient.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		if sqliteErr.Code()&0xff == sqlite3lib.SQLITE_CONSTRAINT {
			return fmt.Errorf("%w: %v", storage.ErrConflict, err)
		}
	}
	return fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
}
