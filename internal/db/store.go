package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Joseda-hg/todolab/internal/model"
)

// timeLayout is fixed width and times are stored in UTC, so text comparison
// in SQL orders the same way as the instants do. Local wall-clock text would
// repeat an hour on a DST fall-back.
const timeLayout = "2006-01-02 15:04:05.000000000"

const taskColumns = "id, title, description, start_at, end_at, all_day, category, created_at"

type Store struct {
	DB  *sql.DB
	now func() time.Time
}

func NewStore(db *sql.DB) *Store {
	return &Store{DB: db, now: time.Now}
}

type scanner interface {
	Scan(dest ...any) error
}

// Save inserts the task when it has no ID and updates it otherwise. Either
// way a history entry is written in the same transaction.
func (s *Store) Save(ctx context.Context, task model.Task) (model.Task, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return model.Task{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var saved model.Task
	if task.ID == 0 {
		saved, err = s.insertTask(ctx, tx, task)
	} else {
		saved, err = s.updateTask(ctx, tx, task)
	}
	if err != nil {
		return model.Task{}, err
	}

	if err := tx.Commit(); err != nil {
		return model.Task{}, err
	}
	return saved, nil
}

func (s *Store) insertTask(ctx context.Context, tx *sql.Tx, task model.Task) (model.Task, error) {
	createdAt := s.now()
	res, err := tx.ExecContext(ctx, `INSERT INTO tasks (title, description, start_at, end_at, all_day, category, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		task.Title, task.Description, nullTime(task.StartAt), nullTime(task.EndAt), task.AllDay, task.Category, formatTime(createdAt))
	if err != nil {
		return model.Task{}, fmt.Errorf("insert task: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return model.Task{}, err
	}

	created, err := getTask(ctx, tx, id)
	if err != nil {
		return model.Task{}, err
	}

	if err := s.addHistory(ctx, tx, id, "created", formatCreatedDetails(created)); err != nil {
		return model.Task{}, err
	}
	return created, nil
}

func (s *Store) updateTask(ctx context.Context, tx *sql.Tx, task model.Task) (model.Task, error) {
	before, err := getTask(ctx, tx, task.ID)
	if err != nil {
		return model.Task{}, err
	}

	res, err := tx.ExecContext(ctx, `UPDATE tasks
		SET title = ?, description = ?, start_at = ?, end_at = ?, all_day = ?, category = ?
		WHERE id = ?`,
		task.Title, task.Description, nullTime(task.StartAt), nullTime(task.EndAt), task.AllDay, task.Category, task.ID)
	if err != nil {
		return model.Task{}, fmt.Errorf("update task %d: %w", task.ID, err)
	}
	if err := checkRowsAffected(res); err != nil {
		return model.Task{}, err
	}

	after, err := getTask(ctx, tx, task.ID)
	if err != nil {
		return model.Task{}, err
	}

	if err := s.addHistory(ctx, tx, task.ID, "updated", formatTaskDiff(before, after)); err != nil {
		return model.Task{}, err
	}
	return after, nil
}

func (s *Store) FindByID(ctx context.Context, id int64) (model.Task, error) {
	return getTask(ctx, s.DB, id)
}

func (s *Store) ExistsByID(ctx context.Context, id int64) (bool, error) {
	var one int
	err := s.DB.QueryRowContext(ctx, "SELECT 1 FROM tasks WHERE id = ?", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) DeleteByID(ctx context.Context, id int64) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	before, err := getTask(ctx, tx, id)
	if err != nil {
		return err
	}

	if err := s.addHistory(ctx, tx, id, "deleted", formatDeletedDetails(before)); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	if err := checkRowsAffected(res); err != nil {
		return err
	}
	return tx.Commit()
}

// FindByDateRange returns the tasks occurring in [start, end): single tasks
// starting inside it and periods overlapping it, ordered by start then id.
func (s *Store) FindByDateRange(ctx context.Context, start, end time.Time) ([]model.Task, error) {
	from, to := formatTime(start), formatTime(end)
	rows, err := s.DB.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks
		WHERE start_at IS NOT NULL
		  AND ((end_at IS NULL AND start_at >= ? AND start_at < ?)
		    OR (end_at IS NOT NULL AND start_at < ? AND end_at > ?))
		ORDER BY start_at ASC, id ASC`, from, to, to, from)
	if err != nil {
		return nil, fmt.Errorf("query tasks by range: %w", err)
	}
	return collectTasks(rows)
}

func (s *Store) FindUnscheduled(ctx context.Context) ([]model.Task, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks
		WHERE start_at IS NULL
		ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query unscheduled tasks: %w", err)
	}
	return collectTasks(rows)
}

func (s *Store) ListHistory(ctx context.Context, taskID int64) ([]model.HistoryEntry, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT id, task_id, event_type, details, created_at
		FROM task_history WHERE task_id = ? ORDER BY id ASC`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := []model.HistoryEntry{}
	for rows.Next() {
		var (
			entry     model.HistoryEntry
			createdAt string
		)
		if err := rows.Scan(&entry.ID, &entry.TaskID, &entry.EventType, &entry.Details, &createdAt); err != nil {
			return nil, err
		}
		if entry.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		history = append(history, entry)
	}
	return history, rows.Err()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

func (s *Store) addHistory(ctx context.Context, tx *sql.Tx, taskID int64, eventType, details string) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO task_history (task_id, event_type, details, created_at)
		VALUES (?, ?, ?, ?)`, taskID, eventType, details, formatTime(s.now()))
	if err != nil {
		return fmt.Errorf("add history for task %d: %w", taskID, err)
	}
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getTask(ctx context.Context, q queryer, id int64) (model.Task, error) {
	row := q.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Task{}, fmt.Errorf("%w: id=%d", model.ErrNotFound, id)
	}
	return task, err
}

func collectTasks(rows *sql.Rows) ([]model.Task, error) {
	defer rows.Close()

	tasks := []model.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func scanTask(row scanner) (model.Task, error) {
	var (
		task      model.Task
		startAt   sql.NullString
		endAt     sql.NullString
		createdAt string
	)
	if err := row.Scan(&task.ID, &task.Title, &task.Description, &startAt, &endAt, &task.AllDay, &task.Category, &createdAt); err != nil {
		return model.Task{}, err
	}

	var err error
	if task.StartAt, err = parseNullTime(startAt); err != nil {
		return model.Task{}, err
	}
	if task.EndAt, err = parseNullTime(endAt); err != nil {
		return model.Task{}, err
	}
	if task.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.Task{}, err
	}
	return task, nil
}

func checkRowsAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(value string) (time.Time, error) {
	t, err := time.ParseInLocation(timeLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored time %q: %w", value, err)
	}
	return t.In(time.Local), nil
}

func parseNullTime(value sql.NullString) (*time.Time, error) {
	if !value.Valid {
		return nil, nil
	}
	t, err := parseTime(value.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func formatCreatedDetails(task model.Task) string {
	return fmt.Sprintf("created: title='%s' schedule=%s category=%s", task.Title, formatSchedule(task), valueOrNone(task.Category))
}

func formatDeletedDetails(task model.Task) string {
	return fmt.Sprintf("deleted: title='%s' schedule=%s category=%s", task.Title, formatSchedule(task), valueOrNone(task.Category))
}

func formatTaskDiff(before, after model.Task) string {
	changes := []string{}
	if before.Title != after.Title {
		changes = append(changes, formatChange("title", before.Title, after.Title))
	}
	if before.Description != after.Description {
		changes = append(changes, formatChange("description", before.Description, after.Description))
	}
	if formatSchedule(before) != formatSchedule(after) {
		changes = append(changes, formatChange("schedule", formatSchedule(before), formatSchedule(after)))
	}
	if before.Category != after.Category {
		changes = append(changes, formatChange("category", before.Category, after.Category))
	}

	if len(changes) == 0 {
		return "updated: no changes"
	}

	return "updated: " + strings.Join(changes, "; ")
}

func formatChange(field, before, after string) string {
	return fmt.Sprintf("%s: '%s' -> '%s'", field, valueOrNone(before), valueOrNone(after))
}

func valueOrNone(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "none"
	}
	return trimmed
}

func formatSchedule(task model.Task) string {
	layout := "2006-01-02 15:04"
	if task.AllDay {
		layout = "2006-01-02"
	}
	switch task.Kind() {
	case model.Single:
		return task.StartAt.Format(layout)
	case model.Period:
		return task.StartAt.Format(layout) + ".." + task.EndAt.Format(layout)
	default:
		return "none"
	}
}
