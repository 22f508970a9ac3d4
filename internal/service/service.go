// Package service implements the task use cases on top of a Repository.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Joseda-hg/todolab/internal/model"
	"github.com/Joseda-hg/todolab/internal/schedule"
	"golang.org/x/sync/semaphore"
)

// DefaultStorageWorkers bounds concurrent storage calls when no limit is
// configured.
const DefaultStorageWorkers = 50

// ErrMissingParameter is returned when a range query lacks its type or date.
var ErrMissingParameter = errors.New("service: required parameter missing")

// Repository is the storage the service needs. FindByID and DeleteByID
// report unknown ids with model.ErrNotFound.
type Repository interface {
	Save(ctx context.Context, task model.Task) (model.Task, error)
	FindByID(ctx context.Context, id int64) (model.Task, error)
	ExistsByID(ctx context.Context, id int64) (bool, error)
	DeleteByID(ctx context.Context, id int64) error
	FindByDateRange(ctx context.Context, start, end time.Time) ([]model.Task, error)
	FindUnscheduled(ctx context.Context) ([]model.Task, error)
}

// HistoryReader is implemented by repositories that keep an audit trail.
type HistoryReader interface {
	ListHistory(ctx context.Context, taskID int64) ([]model.HistoryEntry, error)
}

type TaskService struct {
	repo  Repository
	slots *semaphore.Weighted
}

type Option func(*TaskService)

// WithStorageWorkers caps the number of storage calls in flight.
func WithStorageWorkers(n int) Option {
	return func(s *TaskService) {
		if n > 0 {
			s.slots = semaphore.NewWeighted(int64(n))
		}
	}
}

func New(repo Repository, opts ...Option) *TaskService {
	s := &TaskService{repo: repo, slots: semaphore.NewWeighted(DefaultStorageWorkers)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *TaskService) Create(ctx context.Context, input model.TaskInput) (model.Task, error) {
	task, err := model.NewTask(input)
	if err != nil {
		return model.Task{}, err
	}

	var saved model.Task
	err = s.do(ctx, func() (err error) {
		saved, err = s.repo.Save(ctx, task)
		return err
	})
	if err != nil {
		return model.Task{}, fmt.Errorf("create task: %w", err)
	}
	return saved, nil
}

func (s *TaskService) Get(ctx context.Context, id int64) (model.Task, error) {
	var task model.Task
	err := s.do(ctx, func() (err error) {
		task, err = s.repo.FindByID(ctx, id)
		return err
	})
	if err != nil {
		return model.Task{}, notFoundOr(err, id, "get task")
	}
	return task, nil
}

// ListByRange parses the raw query, computes its range and returns the
// tasks in storage order.
func (s *TaskService) ListByRange(ctx context.Context, rawKind, rawDate string) ([]model.Task, error) {
	if rawKind == "" {
		return nil, &model.ValidationError{Field: "type", Err: ErrMissingParameter}
	}
	if rawDate == "" {
		return nil, &model.ValidationError{Field: "date", Err: ErrMissingParameter}
	}

	query, err := schedule.ParseQuery(rawKind, rawDate)
	if err != nil {
		field := "date"
		if errors.Is(err, schedule.ErrUnknownKind) {
			field = "type"
		}
		return nil, &model.ValidationError{Field: field, Err: err}
	}

	dateRange, err := query.Range()
	if err != nil {
		return nil, &model.ValidationError{Field: "date", Err: err}
	}
	return s.ListInRange(ctx, dateRange)
}

// ListInRange is ListByRange for callers that already hold a range.
func (s *TaskService) ListInRange(ctx context.Context, r schedule.DateRange) ([]model.Task, error) {
	var tasks []model.Task
	err := s.do(ctx, func() (err error) {
		tasks, err = s.repo.FindByDateRange(ctx, r.Start, r.End)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list tasks %s: %w", r, err)
	}
	return tasks, nil
}

func (s *TaskService) ListUnscheduled(ctx context.Context) ([]model.Task, error) {
	var tasks []model.Task
	err := s.do(ctx, func() (err error) {
		tasks, err = s.repo.FindUnscheduled(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list unscheduled tasks: %w", err)
	}
	return tasks, nil
}

// Update loads the task, re-validates the complete input against it and
// persists the result.
func (s *TaskService) Update(ctx context.Context, id int64, input model.TaskInput) (model.Task, error) {
	task, err := s.Get(ctx, id)
	if err != nil {
		return model.Task{}, err
	}
	if err := task.Apply(input); err != nil {
		return model.Task{}, err
	}

	var saved model.Task
	err = s.do(ctx, func() (err error) {
		saved, err = s.repo.Save(ctx, task)
		return err
	})
	if err != nil {
		return model.Task{}, notFoundOr(err, id, "update task")
	}
	return saved, nil
}

func (s *TaskService) Delete(ctx context.Context, id int64) error {
	var exists bool
	err := s.do(ctx, func() (err error) {
		exists, err = s.repo.ExistsByID(ctx, id)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	if !exists {
		return fmt.Errorf("%w: id=%d", model.ErrNotFound, id)
	}

	err = s.do(ctx, func() error {
		return s.repo.DeleteByID(ctx, id)
	})
	if err != nil {
		return notFoundOr(err, id, "delete task")
	}
	return nil
}

// History returns the audit trail of an existing task. Repositories without
// one yield an empty list.
func (s *TaskService) History(ctx context.Context, id int64) ([]model.HistoryEntry, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	reader, ok := s.repo.(HistoryReader)
	if !ok {
		return []model.HistoryEntry{}, nil
	}

	var history []model.HistoryEntry
	err := s.do(ctx, func() (err error) {
		history, err = reader.ListHistory(ctx, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("task %d history: %w", id, err)
	}
	return history, nil
}

func (s *TaskService) do(ctx context.Context, fn func() error) error {
	if err := s.slots.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.slots.Release(1)
	return fn()
}

func notFoundOr(err error, id int64, op string) error {
	if errors.Is(err, model.ErrNotFound) {
		return fmt.Errorf("%w: id=%d", model.ErrNotFound, id)
	}
	return fmt.Errorf("%s %d: %w", op, id, err)
}
