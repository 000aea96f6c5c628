package main

import (
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"
)

// --- Postgres Store ---

// postgresStore backs TaskStore with Postgres. The status guards become
// conditional UPDATEs checked via RowsAffected, so concurrent transitions
// race safely inside the database.
type postgresStore struct {
	db *sql.DB
}

// openPostgres connects using the DB_* environment variables.
func openPostgres() (*postgresStore, error) {
	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		os.Getenv("DB_HOST"), os.Getenv("DB_PORT"), os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"), os.Getenv("DB_NAME"), os.Getenv("DB_SSLMODE"))

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &postgresStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	logInfo("connected to postgres", "host", os.Getenv("DB_HOST"), "db", os.Getenv("DB_NAME"))
	return s, nil
}

func (s *postgresStore) initSchema() error {
	ddl := `
CREATE TABLE IF NOT EXISTS tasks (
    id TEXT PRIMARY KEY,
    owner TEXT NOT NULL,
    name TEXT NOT NULL,
    category TEXT NOT NULL DEFAULT 'Other',
    urgency TEXT NOT NULL DEFAULT 'General',
    scheduled_at TIMESTAMPTZ NOT NULL,
    status TEXT NOT NULL DEFAULT 'scheduled',
    created_at TIMESTAMPTZ NOT NULL,
    completed_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_tasks_owner_status ON tasks(owner, status, scheduled_at);

CREATE TABLE IF NOT EXISTS task_logs (
    id BIGSERIAL PRIMARY KEY,
    owner TEXT NOT NULL,
    task_id TEXT NOT NULL,
    action TEXT NOT NULL,
    at TIMESTAMPTZ NOT NULL,
    detail TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_task_logs_owner ON task_logs(owner, task_id);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("init task schema: %w", err)
	}
	return nil
}

func (s *postgresStore) CreateTask(t Task) error {
	_, err := s.db.Exec(
		`INSERT INTO tasks (id, owner, name, category, urgency, scheduled_at, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.ID, t.Owner, t.Name, string(t.Category), string(t.Urgency), t.ScheduledAt, string(t.Status), t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func (s *postgresStore) GetTask(owner, id string) (Task, bool, error) {
	row := s.db.QueryRow(
		`SELECT id, owner, name, category, urgency, scheduled_at, status, created_at, completed_at
		 FROM tasks WHERE id = $1 AND owner = $2`, id, owner)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return Task{}, false, nil
	}
	if err != nil {
		return Task{}, false, fmt.Errorf("get task: %w", err)
	}
	return t, true, nil
}

func (s *postgresStore) ListByStatus(owner string, status TaskStatus) ([]Task, error) {
	rows, err := s.db.Query(
		`SELECT id, owner, name, category, urgency, scheduled_at, status, created_at, completed_at
		 FROM tasks WHERE owner = $1 AND status = $2 ORDER BY scheduled_at ASC`,
		owner, string(status))
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return collectTasks(rows)
}

func (s *postgresStore) ListAllScheduled() ([]Task, error) {
	rows, err := s.db.Query(
		`SELECT id, owner, name, category, urgency, scheduled_at, status, created_at, completed_at
		 FROM tasks WHERE status = $1 ORDER BY scheduled_at ASC`, string(StatusScheduled))
	if err != nil {
		return nil, fmt.Errorf("list scheduled tasks: %w", err)
	}
	return collectTasks(rows)
}

func (s *postgresStore) UpdateStatus(owner, id string, status TaskStatus, completedAt time.Time) (bool, error) {
	res, err := s.db.Exec(
		`UPDATE tasks SET status = $1, completed_at = $2
		 WHERE id = $3 AND owner = $4 AND status = $5`,
		string(status), completedAt, id, owner, string(StatusScheduled))
	return rowChanged(res, err, "update status")
}

func (s *postgresStore) UpdateTime(owner, id string, scheduledAt time.Time) (bool, error) {
	res, err := s.db.Exec(
		`UPDATE tasks SET scheduled_at = $1
		 WHERE id = $2 AND owner = $3 AND status = $4`,
		scheduledAt, id, owner, string(StatusScheduled))
	return rowChanged(res, err, "update time")
}

func (s *postgresStore) UpdateName(owner, id, name string) (bool, error) {
	res, err := s.db.Exec(
		`UPDATE tasks SET name = $1
		 WHERE id = $2 AND owner = $3 AND status = $4`,
		name, id, owner, string(StatusScheduled))
	return rowChanged(res, err, "update name")
}

func (s *postgresStore) AppendAudit(rec AuditRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO task_logs (owner, task_id, action, at, detail) VALUES ($1, $2, $3, $4, $5)`,
		rec.Owner, rec.TaskID, rec.Action, rec.At, rec.Detail)
	if err != nil {
		return fmt.Errorf("append audit: %w", err)
	}
	return nil
}

func (s *postgresStore) Close() error { return s.db.Close() }

// --- Row helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (Task, error) {
	var t Task
	var category, urgency, status string
	var completedAt sql.NullTime
	err := row.Scan(&t.ID, &t.Owner, &t.Name, &category, &urgency,
		&t.ScheduledAt, &status, &t.CreatedAt, &completedAt)
	if err != nil {
		return Task{}, err
	}
	t.Category = TaskCategory(category)
	t.Urgency = TaskUrgency(urgency)
	t.Status = TaskStatus(status)
	if completedAt.Valid {
		t.CompletedAt = completedAt.Time
	}
	return t, nil
}

func collectTasks(rows *sql.Rows) ([]Task, error) {
	defer rows.Close()
	var out []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return out, nil
}

func rowChanged(res sql.Result, err error, op string) (bool, error) {
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s rows: %w", op, err)
	}
	return n > 0, nil
}
