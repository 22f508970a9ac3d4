// Package calendar arranges tasks into day, week and month layouts for
// display. A task lands in every cell it occurs on, so a multi-day period
// shows up once per day it covers.
package calendar

import (
	"time"

	"github.com/Joseda-hg/todolab/internal/model"
	"github.com/Joseda-hg/todolab/internal/schedule"
)

var palette = []string{"#BFDBFE", "#C4B5FD", "#FDE68A", "#FBCFE8", "#BBF7D0"}

// Entry is a task flattened for templates.
type Entry struct {
	ID          int64
	Title       string
	Description string
	Date        time.Time
	Time        string
	AllDay      bool
	StartAt     *time.Time
	EndAt       *time.Time
	Category    string
	Color       string
}

type DaySchedule struct {
	Date  time.Time
	Tasks []Entry
}

type Cell struct {
	Date    time.Time
	InMonth bool
	Tasks   []Entry
}

// Color picks a stable palette colour for a task id.
func Color(id int64) string {
	h := int32(uint64(id) ^ (uint64(id) >> 32))
	idx := int(h) % len(palette)
	if idx < 0 {
		idx += len(palette)
	}
	return palette[idx]
}

func ToEntry(task model.Task) Entry {
	entry := Entry{
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
		AllDay:      task.AllDay,
		StartAt:     task.StartAt,
		EndAt:       task.EndAt,
		Category:    task.Category,
		Color:       Color(task.ID),
	}
	if task.StartAt != nil {
		entry.Date = schedule.Midnight(*task.StartAt)
		if !task.AllDay {
			entry.Time = task.StartAt.Format("15:04")
		}
	}
	return entry
}

func Entries(tasks []model.Task) []Entry {
	entries := make([]Entry, 0, len(tasks))
	for _, task := range tasks {
		entries = append(entries, ToEntry(task))
	}
	return entries
}

// Day keeps the tasks that occur on day, in input order.
func Day(day time.Time, tasks []model.Task) DaySchedule {
	day = schedule.Midnight(day)
	out := DaySchedule{Date: day, Tasks: []Entry{}}
	for _, task := range tasks {
		if task.OccursOn(day) {
			out.Tasks = append(out.Tasks, ToEntry(task))
		}
	}
	return out
}

// Week returns the seven days of the Monday-start week containing anchor.
func Week(anchor time.Time, tasks []model.Task) []DaySchedule {
	start := schedule.WeekStart(anchor)
	days := make([]DaySchedule, 0, 7)
	for i := 0; i < 7; i++ {
		days = append(days, Day(start.AddDate(0, 0, i), tasks))
	}
	return days
}

// MonthGrid is the range Month draws for the month of anchor: whole
// Monday-start weeks, so it starts and ends outside the month.
func MonthGrid(anchor time.Time) schedule.DateRange {
	y, m, _ := anchor.Date()
	first := time.Date(y, m, 1, 0, 0, 0, 0, anchor.Location())
	last := first.AddDate(0, 1, -1)
	return schedule.DateRange{
		Start: schedule.WeekStart(first),
		End:   schedule.WeekStart(last).AddDate(0, 0, 7),
	}
}

// Month returns the weeks of MonthGrid(anchor). Cells outside the month have
// InMonth false; tasks must cover the whole grid, not just the month.
func Month(anchor time.Time, tasks []model.Task) [][]Cell {
	m := anchor.Month()
	grid := MonthGrid(anchor)

	var weeks [][]Cell
	for weekStart := grid.Start; weekStart.Before(grid.End); weekStart = weekStart.AddDate(0, 0, 7) {
		row := make([]Cell, 0, 7)
		for i := 0; i < 7; i++ {
			day := Day(weekStart.AddDate(0, 0, i), tasks)
			row = append(row, Cell{
				Date:    day.Date,
				InMonth: day.Date.Month() == m,
				Tasks:   day.Tasks,
			})
		}
		weeks = append(weeks, row)
	}
	return weeks
}
