package cache

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/Joseda-hg/todolab/internal/model"
	"github.com/Joseda-hg/todolab/internal/service"
	"golang.org/x/sync/singleflight"
)

// Repository wraps a service.Repository with cache-aside reads. Writes go
// straight through and then drop every cached read they could affect.
type Repository struct {
	next   service.Repository
	cache  *Cache
	group  singleflight.Group
	logger *slog.Logger
}

func NewRepository(next service.Repository, cache *Cache, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{next: next, cache: cache, logger: logger}
}

func taskKey(id int64) string {
	return "task:" + strconv.FormatInt(id, 10)
}

func rangeKey(start, end time.Time) string {
	return fmt.Sprintf("range:%d:%d", start.UnixNano(), end.UnixNano())
}

const unscheduledKey = "unscheduled"

// Save and DeleteByID invalidate before and after the write, so a miss that
// loaded the old row while the write was running cannot outlive it.
func (r *Repository) Save(ctx context.Context, task model.Task) (model.Task, error) {
	if task.ID != 0 {
		r.invalidate(ctx, task.ID)
	}
	saved, err := r.next.Save(ctx, task)
	if err != nil {
		return model.Task{}, err
	}
	r.invalidate(ctx, saved.ID)
	return saved, nil
}

func (r *Repository) DeleteByID(ctx context.Context, id int64) error {
	r.invalidate(ctx, id)
	if err := r.next.DeleteByID(ctx, id); err != nil {
		return err
	}
	r.invalidate(ctx, id)
	return nil
}

// ExistsByID is never cached; it guards deletes.
func (r *Repository) ExistsByID(ctx context.Context, id int64) (bool, error) {
	return r.next.ExistsByID(ctx, id)
}

func (r *Repository) FindByID(ctx context.Context, id int64) (model.Task, error) {
	var task model.Task
	err := r.load(ctx, taskKey(id), &task, func(ctx context.Context) (any, error) {
		return r.next.FindByID(ctx, id)
	})
	return task, err
}

func (r *Repository) FindByDateRange(ctx context.Context, start, end time.Time) ([]model.Task, error) {
	var tasks []model.Task
	err := r.load(ctx, rangeKey(start, end), &tasks, func(ctx context.Context) (any, error) {
		return r.next.FindByDateRange(ctx, start, end)
	})
	return tasks, err
}

func (r *Repository) FindUnscheduled(ctx context.Context) ([]model.Task, error) {
	var tasks []model.Task
	err := r.load(ctx, unscheduledKey, &tasks, func(ctx context.Context) (any, error) {
		return r.next.FindUnscheduled(ctx)
	})
	return tasks, err
}

func (r *Repository) ListHistory(ctx context.Context, taskID int64) ([]model.HistoryEntry, error) {
	reader, ok := r.next.(service.HistoryReader)
	if !ok {
		return []model.HistoryEntry{}, nil
	}
	return reader.ListHistory(ctx, taskID)
}

func (r *Repository) Stats() Stats {
	return r.cache.Stats()
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.cache.Ping(ctx)
}

// load fills dest from the cache, or from fetch on a miss. Concurrent misses
// for the same key share one fetch, which runs detached from the first
// caller's cancellation. Cache failures only cost a fetch.
func (r *Repository) load(ctx context.Context, key string, dest any, fetch func(ctx context.Context) (any, error)) error {
	found, err := r.cache.Get(ctx, key, dest)
	if err != nil {
		r.logger.Warn("cache read failed", "key", key, "err", err)
	}
	if found {
		return nil
	}

	val, err, _ := r.group.Do(key, func() (any, error) {
		shared := context.WithoutCancel(ctx)
		v, err := fetch(shared)
		if err != nil {
			return nil, err
		}
		if err := r.cache.Set(shared, key, v); err != nil {
			r.logger.Warn("cache write failed", "key", key, "err", err)
		}
		return v, nil
	})
	if err != nil {
		return err
	}

	switch d := dest.(type) {
	case *model.Task:
		*d = val.(model.Task)
	case *[]model.Task:
		*d = val.([]model.Task)
	default:
		return fmt.Errorf("cache: unsupported destination %T", dest)
	}
	return nil
}

func (r *Repository) invalidate(ctx context.Context, id int64) {
	if err := r.cache.Delete(ctx, taskKey(id), unscheduledKey); err != nil {
		r.logger.Warn("cache invalidation failed", "task_id", id, "err", err)
	}
	if err := r.cache.DeletePattern(ctx, "range:*"); err != nil {
		r.logger.Warn("cache invalidation failed", "task_id", id, "err", err)
	}
}
