package tui

import (
	"fmt"
	"time"

	"github.com/Joseda-hg/todolab/internal/calendar"
	"github.com/Joseda-hg/todolab/internal/model"
)

// agendaLine is either a day heading (Entry nil) or one task on that day.
type agendaLine struct {
	Day   time.Time
	Entry *calendar.Entry
}

// buildAgenda flattens day schedules into printable lines. Days without
// tasks are dropped when skipEmpty is set, which keeps a month readable.
func buildAgenda(days []calendar.DaySchedule, skipEmpty bool) ([]agendaLine, []calendar.Entry) {
	lines := make([]agendaLine, 0, len(days))
	entries := make([]calendar.Entry, 0, len(days))
	for _, day := range days {
		if skipEmpty && len(day.Tasks) == 0 {
			continue
		}
		lines = append(lines, agendaLine{Day: day.Date})
		for i := range day.Tasks {
			entry := day.Tasks[i]
			lines = append(lines, agendaLine{Day: day.Date, Entry: &entry})
			entries = append(entries, entry)
		}
	}
	return lines, entries
}

func formatDayHeading(day, today time.Time) string {
	label := day.Format("Mon Jan 2")
	if day.Equal(today) {
		label += " (today)"
	}
	return label
}

// formatEntrySummary shows an entry as it appears on one particular day.
func formatEntrySummary(entry calendar.Entry, day time.Time) string {
	return fmt.Sprintf("%-11s %s%s", entrySpan(entry, day), entry.Title, categorySuffix(entry.Category))
}

func entrySpan(entry calendar.Entry, day time.Time) string {
	switch {
	case entry.StartAt == nil:
		return ""
	case entry.AllDay:
		return "all day"
	case entry.EndAt == nil:
		return entry.StartAt.Format("15:04")
	}

	from, to := "...", "..."
	if entry.StartAt.After(day) || entry.StartAt.Equal(day) {
		from = entry.StartAt.Format("15:04")
	}
	if entry.EndAt.Before(day.AddDate(0, 0, 1)) {
		to = entry.EndAt.Format("15:04")
	}
	return from + "-" + to
}

func formatTaskSummary(task model.Task) string {
	return task.Title + categorySuffix(task.Category)
}

func categorySuffix(category string) string {
	if category == "" {
		return ""
	}
	return " #" + category
}
