package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Joseda-hg/todolab/internal/calendar"
	"github.com/Joseda-hg/todolab/internal/db"
	"github.com/Joseda-hg/todolab/internal/model"
	"github.com/Joseda-hg/todolab/internal/schedule"
	"github.com/Joseda-hg/todolab/internal/service"
)

func TestLoadTasksGroupsWeekByDay(t *testing.T) {
	tasks, cleanup := newTestService(t)
	defer cleanup()

	trip := createTask(t, tasks, model.TaskInput{
		Title:   "Trip",
		StartAt: at(2025, 11, 20, 0, 0),
		EndAt:   at(2025, 11, 25, 0, 0),
		AllDay:  true,
	})
	standup := createTask(t, tasks, model.TaskInput{Title: "Standup", StartAt: at(2025, 11, 27, 9, 0)})
	createTask(t, tasks, model.TaskInput{Title: "Someday"})

	ui := newTestUI(tasks)
	if err := ui.loadTasks(); err != nil {
		t.Fatalf("load tasks: %v", err)
	}

	if len(ui.agenda) != 9 {
		t.Fatalf("expected 7 day headings and 2 entries, got %d lines", len(ui.agenda))
	}
	if len(ui.agendaEntries) != 2 {
		t.Fatalf("expected 2 agenda entries, got %d", len(ui.agendaEntries))
	}
	if ui.agendaEntries[0].ID != trip.ID || ui.agendaEntries[1].ID != standup.ID {
		t.Fatalf("unexpected agenda order: %+v", ui.agendaEntries)
	}
	if len(ui.unscheduled) != 1 || ui.unscheduled[0].Title != "Someday" {
		t.Fatalf("expected Someday to be unscheduled, got %+v", ui.unscheduled)
	}
	if len(ui.history) != 1 || ui.history[0].EventType != "created" {
		t.Fatalf("expected history of the selected task, got %+v", ui.history)
	}
}

func TestMonthModeSkipsEmptyDays(t *testing.T) {
	tasks, cleanup := newTestService(t)
	defer cleanup()

	createTask(t, tasks, model.TaskInput{Title: "Review", StartAt: at(2025, 11, 3, 14, 0)})
	createTask(t, tasks, model.TaskInput{Title: "Release", StartAt: at(2025, 11, 28, 0, 0), AllDay: true})

	ui := newTestUI(tasks)
	if err := ui.monthMode(nil, nil); err != nil {
		t.Fatalf("month mode: %v", err)
	}

	if len(ui.agenda) != 4 {
		t.Fatalf("expected 2 headings and 2 entries, got %d lines", len(ui.agenda))
	}
	if !ui.period.Start.Equal(time.Date(2025, 11, 1, 0, 0, 0, 0, time.Local)) {
		t.Fatalf("unexpected month start %v", ui.period.Start)
	}
}

func TestShiftMovesByPeriod(t *testing.T) {
	tasks, cleanup := newTestService(t)
	defer cleanup()

	ui := newTestUI(tasks)
	if err := ui.nextPeriod(nil, nil); err != nil {
		t.Fatalf("next period: %v", err)
	}
	if want := time.Date(2025, 12, 4, 0, 0, 0, 0, time.Local); !ui.anchor.Equal(want) {
		t.Fatalf("expected anchor %v, got %v", want, ui.anchor)
	}
	if want := time.Date(2025, 12, 1, 0, 0, 0, 0, time.Local); !ui.period.Start.Equal(want) {
		t.Fatalf("expected week to start %v, got %v", want, ui.period.Start)
	}

	ui.mode = schedule.Month
	ui.anchor = time.Date(2025, 1, 31, 0, 0, 0, 0, time.Local)
	if err := ui.nextPeriod(nil, nil); err != nil {
		t.Fatalf("next month: %v", err)
	}
	if ui.anchor.Month() != time.February {
		t.Fatalf("expected February, got %v", ui.anchor)
	}

	ui.mode = schedule.Day
	if err := ui.prevPeriod(nil, nil); err != nil {
		t.Fatalf("previous day: %v", err)
	}
	if want := time.Date(2025, 1, 31, 0, 0, 0, 0, time.Local); !ui.anchor.Equal(want) {
		t.Fatalf("expected anchor %v, got %v", want, ui.anchor)
	}

	if err := ui.today(nil, nil); err != nil {
		t.Fatalf("today: %v", err)
	}
	if want := time.Date(2025, 11, 27, 0, 0, 0, 0, time.Local); !ui.anchor.Equal(want) {
		t.Fatalf("expected anchor %v, got %v", want, ui.anchor)
	}
}

func TestSubmitFormCreatesAndEditsTask(t *testing.T) {
	tasks, cleanup := newTestService(t)
	defer cleanup()

	ui := newTestUI(tasks)
	if err := ui.loadTasks(); err != nil {
		t.Fatalf("load tasks: %v", err)
	}
	if err := ui.addTask(nil, nil); err != nil {
		t.Fatalf("add task: %v", err)
	}
	if got := ui.form.fields[fieldStart].Value; got != "2025-11-27 09:00" {
		t.Fatalf("expected start prefilled from the anchor, got %q", got)
	}
	ui.form.fields[fieldTitle].Value = "Standup"
	ui.form.fields[fieldEnd].Value = "2025-11-27 09:15"
	ui.form.fields[fieldCategory].Value = "work"

	if err := ui.submitFormNow(nil, nil); err != nil {
		t.Fatalf("submit form: %v", err)
	}
	if ui.form != nil {
		t.Fatalf("expected form to close, status %q", ui.status)
	}
	if len(ui.agendaEntries) != 1 || ui.agendaEntries[0].Title != "Standup" {
		t.Fatalf("expected the new task on the agenda, got %+v", ui.agendaEntries)
	}

	if err := ui.editTask(nil, nil); err != nil {
		t.Fatalf("edit task: %v", err)
	}
	if ui.form == nil || ui.form.taskID == 0 {
		t.Fatalf("expected edit form for the selected task")
	}
	ui.form.fields[fieldTitle].Value = "Daily standup"
	if err := ui.submitFormNow(nil, nil); err != nil {
		t.Fatalf("submit edit: %v", err)
	}

	updated, err := tasks.Get(context.Background(), ui.agendaEntries[0].ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if updated.Title != "Daily standup" || updated.Category != "work" {
		t.Fatalf("unexpected task after edit: %+v", updated)
	}
	if len(ui.history) != 2 {
		t.Fatalf("expected created and updated history, got %d entries", len(ui.history))
	}
}

func TestSubmitFormKeepsFormOnError(t *testing.T) {
	tasks, cleanup := newTestService(t)
	defer cleanup()

	ui := newTestUI(tasks)
	ui.form = &formState{fields: buildFormFields(nil)}
	ui.form.fields[fieldTitle].Value = "Sync"
	ui.form.fields[fieldStart].Value = "2025-01-22 10:30"
	ui.form.fields[fieldEnd].Value = "2025-01-22 10:30"

	if err := ui.submitFormNow(nil, nil); err != nil {
		t.Fatalf("submit form: %v", err)
	}
	if ui.form == nil {
		t.Fatalf("expected form to stay open")
	}
	if !strings.Contains(ui.status, "end must be after start") {
		t.Fatalf("unexpected status %q", ui.status)
	}

	ui.form.fields[fieldStart].Value = "next tuesday"
	if err := ui.submitFormNow(nil, nil); err != nil {
		t.Fatalf("submit form: %v", err)
	}
	if !strings.HasPrefix(ui.status, "invalid start") {
		t.Fatalf("unexpected status %q", ui.status)
	}
}

func TestDeleteUnscheduledTask(t *testing.T) {
	tasks, cleanup := newTestService(t)
	defer cleanup()

	createTask(t, tasks, model.TaskInput{Title: "First"})
	second := createTask(t, tasks, model.TaskInput{Title: "Second"})

	ui := newTestUI(tasks)
	if err := ui.loadTasks(); err != nil {
		t.Fatalf("load tasks: %v", err)
	}
	if err := ui.switchFocus(nil, nil); err != nil {
		t.Fatalf("switch focus: %v", err)
	}
	if err := ui.moveDown(nil, nil); err != nil {
		t.Fatalf("move down: %v", err)
	}
	if selected := ui.selectedTask(); selected == nil || selected.ID != second.ID {
		t.Fatalf("expected second task selected, got %+v", selected)
	}

	if err := ui.deleteTask(nil, nil); err != nil {
		t.Fatalf("delete task: %v", err)
	}
	if len(ui.unscheduled) != 1 || ui.unscheduled[0].Title != "First" {
		t.Fatalf("expected only First to remain, got %+v", ui.unscheduled)
	}
	if ui.selectedUnscheduled != 0 {
		t.Fatalf("expected selection to be clamped, got %d", ui.selectedUnscheduled)
	}
}

func TestHandlersIgnoredWhileFormOpen(t *testing.T) {
	tasks, cleanup := newTestService(t)
	defer cleanup()

	ui := newTestUI(tasks)
	ui.form = &formState{fields: buildFormFields(nil)}
	anchor := ui.anchor

	if err := ui.nextPeriod(nil, nil); err != nil {
		t.Fatalf("next period: %v", err)
	}
	if err := ui.dayMode(nil, nil); err != nil {
		t.Fatalf("day mode: %v", err)
	}
	if !ui.anchor.Equal(anchor) || ui.mode != schedule.Week {
		t.Fatalf("expected navigation to be ignored while the form is open")
	}

	if err := ui.cancelForm(nil, nil); err != nil {
		t.Fatalf("cancel form: %v", err)
	}
	if ui.form != nil {
		t.Fatalf("expected form to close")
	}
}

func TestParseFormFields(t *testing.T) {
	task := model.Task{
		Title:   "Conference",
		StartAt: at(2025, 1, 22, 0, 0),
		EndAt:   at(2025, 1, 23, 0, 0),
		AllDay:  true,
	}
	fields := buildFormFields(&task)
	if fields[fieldStart].Value != "2025-01-22" || fields[fieldAllDay].Value != "yes" {
		t.Fatalf("unexpected fields %+v", fields)
	}

	input, err := parseFormFields(fields)
	if err != nil {
		t.Fatalf("parse fields: %v", err)
	}
	if !input.AllDay || !input.StartAt.Equal(*task.StartAt) || !input.EndAt.Equal(*task.EndAt) {
		t.Fatalf("unexpected input %+v", input)
	}

	fields[fieldAllDay].Value = toggleAllDay(fields[fieldAllDay].Value)
	fields[fieldEnd].Value = ""
	input, err = parseFormFields(fields)
	if err != nil {
		t.Fatalf("parse fields: %v", err)
	}
	if input.AllDay || input.EndAt != nil {
		t.Fatalf("unexpected input %+v", input)
	}
}

func TestEntrySpanAcrossDays(t *testing.T) {
	task := model.Task{ID: 1, Title: "Night shift", StartAt: at(2025, 11, 27, 22, 0), EndAt: at(2025, 11, 28, 6, 0)}
	first := time.Date(2025, 11, 27, 0, 0, 0, 0, time.Local)
	second := first.AddDate(0, 0, 1)

	days := []calendar.DaySchedule{
		calendar.Day(first, []model.Task{task}),
		calendar.Day(second, []model.Task{task}),
	}
	lines, entries := buildAgenda(days, false)
	if len(lines) != 4 || len(entries) != 2 {
		t.Fatalf("expected the task on both days, got %d lines", len(lines))
	}
	if got := entrySpan(entries[0], first); got != "22:00-..." {
		t.Fatalf("unexpected first day span %q", got)
	}
	if got := entrySpan(entries[1], second); got != "...-06:00" {
		t.Fatalf("unexpected second day span %q", got)
	}
}

func newTestUI(tasks *service.TaskService) *UI {
	return newUI(tasks, func() time.Time {
		return time.Date(2025, 11, 27, 10, 0, 0, 0, time.Local)
	})
}

func newTestService(t *testing.T) (*service.TaskService, func()) {
	t.Helper()
	dbConn, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	return service.New(db.NewStore(dbConn)), func() {
		_ = dbConn.Close()
	}
}

func createTask(t *testing.T, tasks *service.TaskService, input model.TaskInput) model.Task {
	t.Helper()
	created, err := tasks.Create(context.Background(), input)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	return created
}

func at(year int, month time.Month, day, hour, minute int) *time.Time {
	t := time.Date(year, month, day, hour, minute, 0, 0, time.Local)
	return &t
}
