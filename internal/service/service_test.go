package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Joseda-hg/todolab/internal/model"
	"github.com/Joseda-hg/todolab/internal/schedule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	mu      sync.Mutex
	nextID  int64
	tasks   map[int64]model.Task
	deletes []int64
	ranges  []schedule.DateRange
	saveErr error
	history []model.HistoryEntry
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{tasks: map[int64]model.Task{}}
}

func (f *fakeRepo) Save(_ context.Context, task model.Task) (model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return model.Task{}, f.saveErr
	}
	if task.ID == 0 {
		f.nextID++
		task.ID = f.nextID
		task.CreatedAt = time.Date(2025, 1, 1, 12, 0, 0, 0, time.Local)
	} else if _, ok := f.tasks[task.ID]; !ok {
		return model.Task{}, model.ErrNotFound
	}
	f.tasks[task.ID] = task
	return task, nil
}

func (f *fakeRepo) FindByID(_ context.Context, id int64) (model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[id]
	if !ok {
		return model.Task{}, model.ErrNotFound
	}
	return task, nil
}

func (f *fakeRepo) ExistsByID(_ context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.tasks[id]
	return ok, nil
}

func (f *fakeRepo) DeleteByID(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, id)
	delete(f.tasks, id)
	return nil
}

func (f *fakeRepo) FindByDateRange(_ context.Context, start, end time.Time) ([]model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := schedule.DateRange{Start: start, End: end}
	f.ranges = append(f.ranges, r)
	var out []model.Task
	for _, task := range f.tasks {
		if schedule.Overlaps(task.StartAt, task.EndAt, r) {
			out = append(out, task)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartAt.Equal(*out[j].StartAt) {
			return out[i].StartAt.Before(*out[j].StartAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (f *fakeRepo) FindUnscheduled(_ context.Context) ([]model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Task
	for _, task := range f.tasks {
		if task.Unscheduled() {
			out = append(out, task)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type historyRepo struct {
	*fakeRepo
}

func (h historyRepo) ListHistory(_ context.Context, taskID int64) ([]model.HistoryEntry, error) {
	return []model.HistoryEntry{{ID: 1, TaskID: taskID, EventType: "created"}}, nil
}

func at(year int, month time.Month, day, hour, minute int) *time.Time {
	t := time.Date(year, month, day, hour, minute, 0, 0, time.Local)
	return &t
}

func TestCreateSingleTask(t *testing.T) {
	svc := New(newFakeRepo())

	task, err := svc.Create(context.Background(), model.TaskInput{Title: "Standup", StartAt: at(2025, 11, 18, 9, 0)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), task.ID)
	assert.Equal(t, model.Single, task.Kind())
}

func TestCreateRejectsZeroLengthPeriod(t *testing.T) {
	repo := newFakeRepo()
	svc := New(repo)

	_, err := svc.Create(context.Background(), model.TaskInput{
		Title:   "Sync",
		StartAt: at(2025, 1, 22, 10, 30),
		EndAt:   at(2025, 1, 22, 10, 30),
	})
	require.ErrorIs(t, err, schedule.ErrEndNotAfterStart)

	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "schedule", verr.Field)
	assert.Empty(t, repo.tasks)
}

func TestCreateAllDaySpan(t *testing.T) {
	svc := New(newFakeRepo())
	task, err := svc.Create(context.Background(), model.TaskInput{
		Title:   "Conference",
		StartAt: at(2025, 1, 22, 0, 0),
		EndAt:   at(2025, 1, 23, 0, 0),
		AllDay:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, model.Period, task.Kind())
}

func TestCreateWrapsStorageErrors(t *testing.T) {
	repo := newFakeRepo()
	repo.saveErr = errors.New("disk full")
	svc := New(repo)

	_, err := svc.Create(context.Background(), model.TaskInput{Title: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, repo.saveErr)
	assert.NotErrorIs(t, err, model.ErrNotFound)
}

func TestGetNotFound(t *testing.T) {
	svc := New(newFakeRepo())
	_, err := svc.Get(context.Background(), 7)
	require.ErrorIs(t, err, model.ErrNotFound)
	assert.Contains(t, err.Error(), "id=7")
}

func TestUpdateRevalidatesFullInput(t *testing.T) {
	repo := newFakeRepo()
	svc := New(repo)
	ctx := context.Background()

	created, err := svc.Create(ctx, model.TaskInput{Title: "Gym", StartAt: at(2025, 3, 3, 8, 0)})
	require.NoError(t, err)

	_, err = svc.Update(ctx, created.ID, model.TaskInput{Title: "Gym", EndAt: at(2025, 3, 3, 9, 0)})
	require.ErrorIs(t, err, schedule.ErrEndWithoutStart)

	stored, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.EndAt)

	updated, err := svc.Update(ctx, created.ID, model.TaskInput{Title: "Gym", StartAt: at(2025, 3, 3, 8, 0), EndAt: at(2025, 3, 3, 9, 0)})
	require.NoError(t, err)
	assert.Equal(t, model.Period, updated.Kind())
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
}

func TestUpdateNotFound(t *testing.T) {
	svc := New(newFakeRepo())
	_, err := svc.Update(context.Background(), 3, model.TaskInput{Title: "x"})
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestDeleteUnknownIDNeverCallsDelete(t *testing.T) {
	repo := newFakeRepo()
	svc := New(repo)

	err := svc.Delete(context.Background(), 99)
	require.ErrorIs(t, err, model.ErrNotFound)
	assert.Empty(t, repo.deletes)
}

func TestDeleteExisting(t *testing.T) {
	repo := newFakeRepo()
	svc := New(repo)
	ctx := context.Background()

	created, err := svc.Create(ctx, model.TaskInput{Title: "Temp"})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, created.ID))
	assert.Equal(t, []int64{created.ID}, repo.deletes)

	_, err = svc.Get(ctx, created.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestListByRange(t *testing.T) {
	repo := newFakeRepo()
	svc := New(repo)
	ctx := context.Background()

	thursday, err := svc.Create(ctx, model.TaskInput{Title: "Thursday", StartAt: at(2025, 11, 27, 9, 0)})
	require.NoError(t, err)
	monday, err := svc.Create(ctx, model.TaskInput{Title: "Monday", StartAt: at(2025, 11, 24, 0, 0), AllDay: true})
	require.NoError(t, err)
	_, err = svc.Create(ctx, model.TaskInput{Title: "Next", StartAt: at(2025, 12, 1, 0, 0)})
	require.NoError(t, err)

	tasks, err := svc.ListByRange(ctx, "week", "2025-11-27")
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, monday.ID, tasks[0].ID)
	assert.Equal(t, thursday.ID, tasks[1].ID)

	require.Len(t, repo.ranges, 1)
	assert.Equal(t, *at(2025, 11, 24, 0, 0), repo.ranges[0].Start)
	assert.Equal(t, *at(2025, 12, 1, 0, 0), repo.ranges[0].End)
}

func TestListByRangeValidation(t *testing.T) {
	repo := newFakeRepo()
	svc := New(repo)
	ctx := context.Background()

	tests := []struct {
		kind, date string
		field      string
		want       error
	}{
		{"", "2025-11-27", "type", ErrMissingParameter},
		{"WEEK", "", "date", ErrMissingParameter},
		{"YEAR", "2025", "type", schedule.ErrUnknownKind},
		{"MONTH", "2025-11-27", "date", schedule.ErrInvalidDate},
	}
	for _, tt := range tests {
		_, err := svc.ListByRange(ctx, tt.kind, tt.date)
		require.ErrorIs(t, err, tt.want, "%s %s", tt.kind, tt.date)

		var verr *model.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, tt.field, verr.Field)
	}
	assert.Empty(t, repo.ranges)
}

func TestListUnscheduled(t *testing.T) {
	svc := New(newFakeRepo())
	ctx := context.Background()

	first, err := svc.Create(ctx, model.TaskInput{Title: "Someday"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, model.TaskInput{Title: "Dated", StartAt: at(2025, 1, 1, 9, 0)})
	require.NoError(t, err)

	tasks, err := svc.ListUnscheduled(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, first.ID, tasks[0].ID)
}

func TestHistory(t *testing.T) {
	ctx := context.Background()

	plain := New(newFakeRepo())
	created, err := plain.Create(ctx, model.TaskInput{Title: "a"})
	require.NoError(t, err)
	history, err := plain.History(ctx, created.ID)
	require.NoError(t, err)
	assert.Empty(t, history)

	withHistory := New(historyRepo{newFakeRepo()})
	created, err = withHistory.Create(ctx, model.TaskInput{Title: "b"})
	require.NoError(t, err)
	history, err = withHistory.History(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)

	_, err = withHistory.History(ctx, created.ID+10)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

type blockingRepo struct {
	*fakeRepo
	inFlight atomic.Int32
	peak     atomic.Int32
	release  chan struct{}
}

func (b *blockingRepo) FindUnscheduled(ctx context.Context) ([]model.Task, error) {
	n := b.inFlight.Add(1)
	for {
		peak := b.peak.Load()
		if n <= peak || b.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	<-b.release
	b.inFlight.Add(-1)
	return nil, nil
}

func TestStorageWorkersBoundConcurrency(t *testing.T) {
	repo := &blockingRepo{fakeRepo: newFakeRepo(), release: make(chan struct{})}
	svc := New(repo, WithStorageWorkers(2))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.ListUnscheduled(context.Background())
		}()
	}

	require.Eventually(t, func() bool { return repo.inFlight.Load() == 2 }, time.Second, 5*time.Millisecond)
	close(repo.release)
	wg.Wait()
	assert.Equal(t, int32(2), repo.peak.Load())
}

func TestStorageWorkersHonourContext(t *testing.T) {
	repo := &blockingRepo{fakeRepo: newFakeRepo(), release: make(chan struct{})}
	svc := New(repo, WithStorageWorkers(1))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = svc.ListUnscheduled(context.Background())
	}()
	require.Eventually(t, func() bool { return repo.inFlight.Load() == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.ListUnscheduled(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	close(repo.release)
	<-done
}
