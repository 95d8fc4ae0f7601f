package task

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS user_tasks (
	seq            INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id        TEXT NOT NULL UNIQUE,
	user_id        TEXT NOT NULL,
	date_today     TEXT NOT NULL,
	task_name      TEXT NOT NULL,
	priority       TEXT NOT NULL,
	description    TEXT NOT NULL DEFAULT '',
	depends_on     TEXT NOT NULL DEFAULT '',
	estimated_time TEXT NOT NULL DEFAULT '',
	completed      INTEGER NOT NULL DEFAULT 0,
	created_at     DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_user_tasks_owner_date ON user_tasks (user_id, date_today);

CREATE TABLE IF NOT EXISTS daily_task_messages (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id    TEXT NOT NULL,
	date_today TEXT NOT NULL,
	message_id TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_task_messages_owner_date ON daily_task_messages (user_id, date_today);
`

// SQLiteStore persists tasks and summary references in a SQLite database.
// It is the embedded alternative to MongoStore for single-host deployments
// and tests.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and ensures
// the schema exists. The caller is responsible for calling Close.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	db.SetMaxOpenConns(1) // prevent SQLITE_BUSY
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database connection.
func (s *SQLiteStore) Close(context.Context) error { return s.db.Close() }

// InsertTasks persists a batch of new tasks in a single transaction, so a
// failed batch leaves no partial rows behind.
func (s *SQLiteStore) InsertTasks(ctx context.Context, tasks []*Task) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	for _, t := range tasks {
		if t.ID == "" {
			t.ID = uuid.New().String()
		}
		t.CreatedAt = now
		_, err := tx.ExecContext(ctx, `
			INSERT INTO user_tasks
				(task_id, user_id, date_today, task_name, priority, description,
				 depends_on, estimated_time, completed, created_at)
			VALUES (?,?,?,?,?,?,?,?,?,?)`,
			t.ID, t.Owner, t.Date, t.Name, string(t.Priority), t.Description,
			t.DependsOn, t.EstimatedTime, t.Completed, t.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert task %s: %w", t.Name, err)
		}
	}
	return tx.Commit()
}

// ListTasks returns all tasks for an owner and date in insertion order.
func (s *SQLiteStore) ListTasks(ctx context.Context, owner, date string) ([]*Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT task_id, user_id, date_today, task_name, priority, description,
		       depends_on, estimated_time, completed, created_at
		FROM user_tasks WHERE user_id = ? AND date_today = ? ORDER BY seq`,
		owner, date)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		var t Task
		var prio string
		if err := rows.Scan(&t.ID, &t.Owner, &t.Date, &t.Name, &prio, &t.Description,
			&t.DependsOn, &t.EstimatedTime, &t.Completed, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		t.Priority = Priority(prio)
		tasks = append(tasks, &t)
	}
	return tasks, rows.Err()
}

// MarkCompleted sets the completion flag on the tasks with the given IDs.
func (s *SQLiteStore) MarkCompleted(ctx context.Context, owner, date string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := make([]any, 0, len(ids)+2)
	args = append(args, owner, date)
	for _, id := range ids {
		args = append(args, id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	res, err := s.db.ExecContext(ctx, `
		UPDATE user_tasks SET completed = 1
		WHERE user_id = ? AND date_today = ? AND task_id IN (`+placeholders+`)`,
		args...)
	if err != nil {
		return 0, fmt.Errorf("mark completed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// InsertSummaryRef records a newly posted summary message.
func (s *SQLiteStore) InsertSummaryRef(ctx context.Context, ref *SummaryRef) error {
	ref.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO daily_task_messages (user_id, date_today, message_id, created_at)
		VALUES (?,?,?,?)`,
		ref.Owner, ref.Date, ref.MessageID, ref.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert summary ref: %w", err)
	}
	return nil
}

// ListSummaryRefs returns all summary references in insertion order.
func (s *SQLiteStore) ListSummaryRefs(ctx context.Context, owner, date string) ([]*SummaryRef, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, date_today, message_id, created_at
		FROM daily_task_messages WHERE user_id = ? AND date_today = ? ORDER BY seq`,
		owner, date)
	if err != nil {
		return nil, fmt.Errorf("list summary refs: %w", err)
	}
	defer rows.Close()

	var refs []*SummaryRef
	for rows.Next() {
		var r SummaryRef
		if err := rows.Scan(&r.Owner, &r.Date, &r.MessageID, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan summary ref: %w", err)
		}
		refs = append(refs, &r)
	}
	return refs, rows.Err()
}

// LatestSummaryRef returns the most recently inserted reference.
func (s *SQLiteStore) LatestSummaryRef(ctx context.Context, owner, date string) (*SummaryRef, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, date_today, message_id, created_at
		FROM daily_task_messages WHERE user_id = ? AND date_today = ?
		ORDER BY seq DESC LIMIT 1`,
		owner, date)
	var r SummaryRef
	err := row.Scan(&r.Owner, &r.Date, &r.MessageID, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNoSummary
	}
	if err != nil {
		return nil, fmt.Errorf("latest summary ref: %w", err)
	}
	return &r, nil
}

// DeleteSummaryRefsExcept removes every reference whose message ID differs
// from keep.
func (s *SQLiteStore) DeleteSummaryRefsExcept(ctx context.Context, owner, date, keep string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM daily_task_messages
		WHERE user_id = ? AND date_today = ? AND message_id != ?`,
		owner, date, keep)
	if err != nil {
		return 0, fmt.Errorf("delete summary refs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
