// Package ics renders tasks as an iCalendar feed.
package ics

import (
	"io"
	"strconv"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"github.com/Joseda-hg/todolab/internal/model"
)

const productName = "todolab"

// EventUID is stable for a task id so that calendar clients update events
// in place on re-import.
func EventUID(id int64) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("todolab:task:"+strconv.FormatInt(id, 10))).String()
}

// Build returns a calendar with one VEVENT per scheduled task. Unscheduled
// tasks are skipped. All-day tasks use DATE values; an all-day single task
// spans its whole day.
func Build(name string, tasks []model.Task, stamp time.Time) *ical.Calendar {
	cal := ical.NewCalendarFor(productName)
	cal.SetMethod(ical.MethodPublish)
	if name != "" {
		cal.SetXWRCalName(name)
	}

	for _, task := range tasks {
		if task.Unscheduled() {
			continue
		}

		event := cal.AddEvent(EventUID(task.ID))
		event.SetDtStampTime(stamp)
		if !task.CreatedAt.IsZero() {
			event.SetCreatedTime(task.CreatedAt)
		}
		event.SetSummary(task.Title)
		if task.Description != "" {
			event.SetDescription(task.Description)
		}
		if task.Category != "" {
			event.AddCategory(task.Category)
		}

		switch {
		case task.AllDay && task.EndAt == nil:
			event.SetAllDayStartAt(*task.StartAt)
			event.SetAllDayEndAt(task.StartAt.AddDate(0, 0, 1))
		case task.AllDay:
			event.SetAllDayStartAt(*task.StartAt)
			event.SetAllDayEndAt(*task.EndAt)
		default:
			event.SetStartAt(*task.StartAt)
			if task.EndAt != nil {
				event.SetEndAt(*task.EndAt)
			}
		}
	}
	return cal
}

func Write(w io.Writer, name string, tasks []model.Task, stamp time.Time) error {
	return Build(name, tasks, stamp).SerializeTo(w)
}
