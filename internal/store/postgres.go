package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/ujjawalkaushik1110/comet-agentic-browser/api/schemas"
)

// DBPool abstracts pgxpool.Pool so pgxmock can stand in during tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS browse_tasks (
    id         TEXT PRIMARY KEY,
    goal       TEXT NOT NULL,
    status     TEXT NOT NULL,
    report     JSONB,
    error      TEXT NOT NULL DEFAULT '',
    cached     BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL,
    duration   DOUBLE PRECISION NOT NULL DEFAULT 0
);`

// Postgres is the pgx-backed TaskStore.
type Postgres struct {
	pool DBPool
	log  *zap.Logger
}

var _ schemas.TaskStore = (*Postgres)(nil)

// NewPostgres verifies the connection and bootstraps the schema.
func NewPostgres(ctx context.Context, pool DBPool, logger *zap.Logger) (*Postgres, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return nil, fmt.Errorf("bootstrapping task schema: %w", err)
	}
	return &Postgres{pool: pool, log: logger.Named("store.postgres")}, nil
}

// Create implements schemas.TaskStore.
func (p *Postgres) Create(ctx context.Context, task schemas.Task) error {
	report, err := marshalReport(task.Report)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx, `
        INSERT INTO browse_tasks (id, goal, status, report, error, cached, created_at, updated_at, duration)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		task.ID, task.Goal, string(task.Status), report, task.Error, task.Cached,
		task.CreatedAt.UTC(), task.UpdatedAt.UTC(), task.Duration)
	if err != nil {
		return fmt.Errorf("inserting task %s: %w", task.ID, err)
	}
	return nil
}

// Get implements schemas.TaskStore.
func (p *Postgres) Get(ctx context.Context, id string) (schemas.Task, error) {
	row := p.pool.QueryRow(ctx, `
        SELECT id, goal, status, report, error, cached, created_at, updated_at, duration
        FROM browse_tasks WHERE id = $1`, id)
	task, err := scanTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return schemas.Task{}, schemas.ErrTaskNotFound
	}
	if err != nil {
		return schemas.Task{}, fmt.Errorf("fetching task %s: %w", id, err)
	}
	return task, nil
}

// Update implements schemas.TaskStore.
func (p *Postgres) Update(ctx context.Context, task schemas.Task) error {
	report, err := marshalReport(task.Report)
	if err != nil {
		return err
	}
	tag, err := p.pool.Exec(ctx, `
        UPDATE browse_tasks
        SET goal = $2, status = $3, report = $4, error = $5, cached = $6, updated_at = $7, duration = $8
        WHERE id = $1`,
		task.ID, task.Goal, string(task.Status), report, task.Error, task.Cached,
		task.UpdatedAt.UTC(), task.Duration)
	if err != nil {
		return fmt.Errorf("updating task %s: %w", task.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return schemas.ErrTaskNotFound
	}
	return nil
}

// Delete implements schemas.TaskStore.
func (p *Postgres) Delete(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM browse_tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting task %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return schemas.ErrTaskNotFound
	}
	return nil
}

// List implements schemas.TaskStore.
func (p *Postgres) List(ctx context.Context, filter schemas.TaskFilter) (schemas.TaskList, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	where := ""
	countArgs := []any{}
	if filter.Status != "" {
		where = " WHERE status = $1"
		countArgs = append(countArgs, string(filter.Status))
	}

	var total int
	if err := p.pool.QueryRow(ctx, "SELECT COUNT(*) FROM browse_tasks"+where, countArgs...).Scan(&total); err != nil {
		return schemas.TaskList{}, fmt.Errorf("counting tasks: %w", err)
	}

	query := `
        SELECT id, goal, status, report, error, cached, created_at, updated_at, duration
        FROM browse_tasks` + where + `
        ORDER BY created_at DESC`
	args := append([]any{}, countArgs...)
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return schemas.TaskList{}, fmt.Errorf("listing tasks: %w", err)
	}
	defer rows.Close()

	tasks := []schemas.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return schemas.TaskList{}, fmt.Errorf("scanning task row: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return schemas.TaskList{}, fmt.Errorf("iterating task rows: %w", err)
	}

	return schemas.TaskList{Total: total, Offset: offset, Limit: limit, Tasks: tasks}, nil
}

// Close implements schemas.TaskStore.
func (p *Postgres) Close(ctx context.Context) error {
	p.pool.Close()
	return nil
}

func marshalReport(report *schemas.RunReport) ([]byte, error) {
	if report == nil {
		return nil, nil
	}
	raw, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("serializing run report: %w", err)
	}
	return raw, nil
}

func scanTask(row pgx.Row) (schemas.Task, error) {
	var (
		task   schemas.Task
		status string
		report []byte
	)
	err := row.Scan(&task.ID, &task.Goal, &status, &report, &task.Error, &task.Cached,
		&task.CreatedAt, &task.UpdatedAt, &task.Duration)
	if err != nil {
		return schemas.Task{}, err
	}
	task.Status = schemas.TaskStatus(status)
	if len(report) > 0 {
		var r schemas.RunReport
		if err := json.Unmarshal(report, &r); err != nil {
			return schemas.Task{}, fmt.Errorf("deserializing run report: %w", err)
		}
		task.Report = &r
	}
	return task, nil
}
