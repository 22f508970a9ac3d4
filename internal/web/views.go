package web

import (
	"bytes"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Joseda-hg/todolab/internal/calendar"
	"github.com/Joseda-hg/todolab/internal/model"
	"github.com/Joseda-hg/todolab/internal/schedule"
)

type Page struct {
	Title     string
	Active    string
	Heading   string
	Today     time.Time
	PrevQuery string
	NextQuery string
}

type dayPage struct {
	Page
	Day     calendar.DaySchedule
	IsToday bool
}

type weekPage struct {
	Page
	Selected time.Time
	Days     []calendar.DaySchedule
}

type monthPage struct {
	Page
	Weeks [][]calendar.Cell
}

type unscheduledPage struct {
	Page
	Tasks []calendar.Entry
}

func (s *Server) dayView(c *fiber.Ctx) error {
	day, err := s.anchorDay(c)
	if err != nil {
		return s.fail(c, err)
	}
	day = move(day, c.Query("move"), 0, 1)

	r, _ := schedule.OfDay(day.Format(schedule.DayLayout))
	tasks, err := s.tasks.ListInRange(c.UserContext(), r)
	if err != nil {
		return s.fail(c, err)
	}

	today := schedule.Midnight(s.now())
	return s.render(c, "day", dayPage{
		Page: Page{
			Title:     "todolab",
			Active:    "day",
			Heading:   day.Format("Monday, January 2, 2006"),
			Today:     today,
			PrevQuery: "date=" + day.Format(schedule.DayLayout) + "&move=prev",
			NextQuery: "date=" + day.Format(schedule.DayLayout) + "&move=next",
		},
		Day:     calendar.Day(day, tasks),
		IsToday: day.Equal(today),
	})
}

func (s *Server) weekView(c *fiber.Ctx) error {
	day, err := s.anchorDay(c)
	if err != nil {
		return s.fail(c, err)
	}
	day = move(day, c.Query("move"), 0, 7)

	r, _ := schedule.OfWeek(day.Format(schedule.DayLayout))
	tasks, err := s.tasks.ListInRange(c.UserContext(), r)
	if err != nil {
		return s.fail(c, err)
	}

	last := r.End.AddDate(0, 0, -1)
	return s.render(c, "week", weekPage{
		Page: Page{
			Title:     "todolab",
			Active:    "week",
			Heading:   r.Start.Format("Jan 2") + " - " + last.Format("Jan 2, 2006"),
			Today:     schedule.Midnight(s.now()),
			PrevQuery: "date=" + day.Format(schedule.DayLayout) + "&move=prev",
			NextQuery: "date=" + day.Format(schedule.DayLayout) + "&move=next",
		},
		Selected: day,
		Days:     calendar.Week(day, tasks),
	})
}

func (s *Server) monthView(c *fiber.Ctx) error {
	first := schedule.Midnight(s.now()).AddDate(0, 0, 1-s.now().Day())
	if raw := c.Query("month"); raw != "" {
		r, err := schedule.OfMonth(raw)
		if err != nil {
			return s.fail(c, &model.ValidationError{Field: "month", Err: err})
		}
		first = r.Start
	}
	first = move(first, c.Query("move"), 1, 0)

	tasks, err := s.tasks.ListInRange(c.UserContext(), calendar.MonthGrid(first))
	if err != nil {
		return s.fail(c, err)
	}

	return s.render(c, "month", monthPage{
		Page: Page{
			Title:     "todolab",
			Active:    "month",
			Heading:   first.Format("January 2006"),
			Today:     schedule.Midnight(s.now()),
			PrevQuery: "month=" + first.Format(schedule.MonthLayout) + "&move=prev",
			NextQuery: "month=" + first.Format(schedule.MonthLayout) + "&move=next",
		},
		Weeks: calendar.Month(first, tasks),
	})
}

func (s *Server) unscheduledView(c *fiber.Ctx) error {
	tasks, err := s.tasks.ListUnscheduled(c.UserContext())
	if err != nil {
		return s.fail(c, err)
	}
	return s.render(c, "unscheduled", unscheduledPage{
		Page: Page{
			Title:   "todolab",
			Active:  "unscheduled",
			Heading: "Unscheduled",
			Today:   schedule.Midnight(s.now()),
		},
		Tasks: calendar.Entries(tasks),
	})
}

// anchorDay reads ?date=YYYY-MM-DD, defaulting to today.
func (s *Server) anchorDay(c *fiber.Ctx) (time.Time, error) {
	raw := c.Query("date")
	if raw == "" {
		return schedule.Midnight(s.now()), nil
	}
	r, err := schedule.OfDay(raw)
	if err != nil {
		return time.Time{}, &model.ValidationError{Field: "date", Err: err}
	}
	return r.Start, nil
}

func move(t time.Time, direction string, months, days int) time.Time {
	switch direction {
	case "prev":
		return t.AddDate(0, -months, -days)
	case "next":
		return t.AddDate(0, months, days)
	default:
		return t
	}
}

func (s *Server) render(c *fiber.Ctx, name string, data any) error {
	var buf bytes.Buffer
	if err := pageTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		return s.fail(c, err)
	}
	c.Type("html", "utf-8")
	return c.Send(buf.Bytes())
}
