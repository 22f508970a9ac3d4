package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Joseda-hg/todolab/internal/schedule"
)

const (
	MaxTitleLen       = 30
	MaxDescriptionLen = 300
	MaxCategoryLen    = 10
)

var (
	ErrNotFound           = errors.New("model: task not found")
	ErrTitleRequired      = errors.New("model: title is required")
	ErrTitleTooLong       = fmt.Errorf("model: title exceeds %d characters", MaxTitleLen)
	ErrDescriptionTooLong = fmt.Errorf("model: description exceeds %d characters", MaxDescriptionLen)
	ErrCategoryTooLong    = fmt.Errorf("model: category exceeds %d characters", MaxCategoryLen)
)

// ValidationError names the rejected field and wraps the reason, which is
// one of the sentinels in this package or in package schedule.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return "invalid " + e.Field + ": " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

type Kind int

const (
	Unscheduled Kind = iota
	Single
	Period
)

func (k Kind) String() string {
	switch k {
	case Single:
		return "single"
	case Period:
		return "period"
	default:
		return "unscheduled"
	}
}

type Task struct {
	ID          int64
	Title       string
	Description string
	StartAt     *time.Time
	EndAt       *time.Time
	AllDay      bool
	Category    string
	CreatedAt   time.Time
}

// TaskInput is the full set of caller-editable fields.
type TaskInput struct {
	Title       string
	Description string
	StartAt     *time.Time
	EndAt       *time.Time
	AllDay      bool
	Category    string
}

type HistoryEntry struct {
	ID        int64
	TaskID    int64
	EventType string
	Details   string
	CreatedAt time.Time
}

func NewTask(input TaskInput) (Task, error) {
	var task Task
	if err := task.Apply(input); err != nil {
		return Task{}, err
	}
	return task, nil
}

// Apply replaces every editable field after validating the whole input.
// On error the task is left unchanged.
func (t *Task) Apply(input TaskInput) error {
	input = input.normalized()
	if err := input.Validate(); err != nil {
		return err
	}

	t.Title = input.Title
	t.Description = input.Description
	t.StartAt = copyTime(input.StartAt)
	t.EndAt = copyTime(input.EndAt)
	t.AllDay = input.AllDay
	t.Category = input.Category
	return nil
}

func (in TaskInput) Validate() error {
	in = in.normalized()
	switch {
	case in.Title == "":
		return &ValidationError{Field: "title", Err: ErrTitleRequired}
	case utf8.RuneCountInString(in.Title) > MaxTitleLen:
		return &ValidationError{Field: "title", Err: ErrTitleTooLong}
	case utf8.RuneCountInString(in.Description) > MaxDescriptionLen:
		return &ValidationError{Field: "description", Err: ErrDescriptionTooLong}
	case utf8.RuneCountInString(in.Category) > MaxCategoryLen:
		return &ValidationError{Field: "category", Err: ErrCategoryTooLong}
	}
	if err := schedule.Validate(in.StartAt, in.EndAt, in.AllDay); err != nil {
		return &ValidationError{Field: "schedule", Err: err}
	}
	return nil
}

func (in TaskInput) normalized() TaskInput {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.TrimSpace(in.Category)
	return in
}

// Input returns the editable fields of t, e.g. to prefill an edit form.
func (t Task) Input() TaskInput {
	return TaskInput{
		Title:       t.Title,
		Description: t.Description,
		StartAt:     copyTime(t.StartAt),
		EndAt:       copyTime(t.EndAt),
		AllDay:      t.AllDay,
		Category:    t.Category,
	}
}

func (t Task) Kind() Kind {
	switch {
	case t.StartAt == nil:
		return Unscheduled
	case t.EndAt == nil:
		return Single
	default:
		return Period
	}
}

func (t Task) Unscheduled() bool {
	return t.StartAt == nil
}

func (t Task) OccursOn(day time.Time) bool {
	return schedule.OccursOn(t.StartAt, t.EndAt, day)
}

func copyTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}
