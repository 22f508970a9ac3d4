package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/Joseda-hg/todolab/internal/model"
)

type formField struct {
	Label string
	Value string
}

const (
	fieldTitle = iota
	fieldDescription
	fieldStart
	fieldEnd
	fieldAllDay
	fieldCategory
)

const (
	formDateLayout     = "2006-01-02"
	formDateTimeLayout = "2006-01-02 15:04"
)

func buildFormFields(task *model.Task) []formField {
	fields := []formField{
		{Label: "Title"},
		{Label: "Description"},
		{Label: "Start (YYYY-MM-DD HH:MM)"},
		{Label: "End (YYYY-MM-DD HH:MM)"},
		{Label: "All day (space)"},
		{Label: "Category"},
	}

	if task == nil {
		fields[fieldAllDay].Value = "no"
		return fields
	}

	fields[fieldTitle].Value = task.Title
	fields[fieldDescription].Value = task.Description
	fields[fieldStart].Value = formatFormTime(task.StartAt, task.AllDay)
	fields[fieldEnd].Value = formatFormTime(task.EndAt, task.AllDay)
	fields[fieldAllDay].Value = formatAllDay(task.AllDay)
	fields[fieldCategory].Value = task.Category

	return fields
}

// parseFormFields only checks the field syntax; the schedule rules are left
// to the service so the form reports the same errors as the API.
func parseFormFields(fields []formField) (model.TaskInput, error) {
	start, err := parseFormTime(fields[fieldStart].Value)
	if err != nil {
		return model.TaskInput{}, fmt.Errorf("invalid start: %w", err)
	}

	end, err := parseFormTime(fields[fieldEnd].Value)
	if err != nil {
		return model.TaskInput{}, fmt.Errorf("invalid end: %w", err)
	}

	return model.TaskInput{
		Title:       strings.TrimSpace(fields[fieldTitle].Value),
		Description: strings.TrimSpace(fields[fieldDescription].Value),
		StartAt:     start,
		EndAt:       end,
		AllDay:      fields[fieldAllDay].Value == "yes",
		Category:    strings.TrimSpace(fields[fieldCategory].Value),
	}, nil
}

func parseFormTime(value string) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	for _, layout := range []string{formDateTimeLayout, formDateLayout} {
		if parsed, err := time.ParseInLocation(layout, trimmed, time.Local); err == nil {
			return &parsed, nil
		}
	}
	return nil, fmt.Errorf("expected YYYY-MM-DD or YYYY-MM-DD HH:MM, got %q", trimmed)
}

func formatFormTime(t *time.Time, allDay bool) string {
	if t == nil {
		return ""
	}
	if allDay {
		return t.Format(formDateLayout)
	}
	return t.Format(formDateTimeLayout)
}

func formatAllDay(allDay bool) string {
	if allDay {
		return "yes"
	}
	return "no"
}

func isAllDayField(label string) bool {
	return strings.HasPrefix(label, "All day")
}

func toggleAllDay(current string) string {
	if current == "yes" {
		return "no"
	}
	return "yes"
}
