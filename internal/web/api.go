package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Joseda-hg/todolab/internal/ics"
	"github.com/Joseda-hg/todolab/internal/model"
	"github.com/Joseda-hg/todolab/internal/service"
)

const (
	statusSuccess = "success"
	statusFail    = "fail"

	wireLayout = "2006-01-02T15:04:05"
)

type errorCode struct {
	Number int
	Name   string
}

var (
	codeInvalidInput     = errorCode{10001, "INVALID_INPUT"}
	codeRequiredMissing  = errorCode{10002, "REQUIRED_VALUE_MISSING"}
	codeNotFound         = errorCode{20001, "TASK_NOT_FOUND"}
	codeRouteNotFound    = errorCode{20002, "ROUTE_NOT_FOUND"}
	codeMethodNotAllowed = errorCode{20003, "METHOD_NOT_ALLOWED"}
	codeInternal         = errorCode{99999, "INTERNAL_ERROR"}
)

var errInvalidTimestamp = errors.New("invalid timestamp")

type envelope struct {
	Status    string    `json:"status"`
	Data      any       `json:"data,omitempty"`
	Error     *apiError `json:"error,omitempty"`
	Timestamp string    `json:"timestamp"`
}

type apiError struct {
	Code    int    `json:"code"`
	Name    string `json:"name,omitempty"`
	Message string `json:"message"`
}

// localTime is a wall-clock timestamp in the server's zone. It accepts
// seconds-optional ISO local times and RFC 3339 on input.
type localTime struct {
	time.Time
}

var inputLayouts = []string{wireLayout, "2006-01-02T15:04", "2006-01-02T15:04:05.999999999"}

func parseLocalTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range inputLayouts {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return t, nil
		}
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.In(time.Local), nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", errInvalidTimestamp, value)
}

func (t *localTime) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %s", errInvalidTimestamp, data)
	}
	parsed, err := parseLocalTime(raw)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

func (t localTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.In(time.Local).Format(wireLayout))
}

type taskRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	StartAt     *localTime `json:"startAt"`
	EndAt       *localTime `json:"endAt"`
	AllDay      bool       `json:"allDay"`
	Category    string     `json:"category"`
}

func (r taskRequest) input() model.TaskInput {
	return model.TaskInput{
		Title:       r.Title,
		Description: r.Description,
		StartAt:     unwrapTime(r.StartAt),
		EndAt:       unwrapTime(r.EndAt),
		AllDay:      r.AllDay,
		Category:    r.Category,
	}
}

type taskResponse struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	StartAt     *localTime `json:"startAt"`
	EndAt       *localTime `json:"endAt"`
	AllDay      bool       `json:"allDay"`
	Category    string     `json:"category"`
	Unscheduled bool       `json:"unscheduled"`
	CreatedAt   localTime  `json:"createdAt"`
}

type historyResponse struct {
	ID        int64     `json:"id"`
	EventType string    `json:"eventType"`
	Details   string    `json:"details"`
	CreatedAt localTime `json:"createdAt"`
}

func toResponse(task model.Task) taskResponse {
	return taskResponse{
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
		StartAt:     wrapTime(task.StartAt),
		EndAt:       wrapTime(task.EndAt),
		AllDay:      task.AllDay,
		Category:    task.Category,
		Unscheduled: task.Unscheduled(),
		CreatedAt:   localTime{task.CreatedAt},
	}
}

func toResponses(tasks []model.Task) []taskResponse {
	out := make([]taskResponse, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, toResponse(task))
	}
	return out
}

func (s *Server) createTask(c *fiber.Ctx) error {
	var req taskRequest
	if err := parseBody(c, &req); err != nil {
		return s.fail(c, err)
	}

	task, err := s.tasks.Create(c.UserContext(), req.input())
	if err != nil {
		return s.fail(c, err)
	}
	return respond(c, fiber.StatusCreated, toResponse(task), s.now())
}

func (s *Server) getTask(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return s.fail(c, err)
	}

	task, err := s.tasks.Get(c.UserContext(), id)
	if err != nil {
		return s.fail(c, err)
	}
	return respond(c, fiber.StatusOK, toResponse(task), s.now())
}

func (s *Server) listTasks(c *fiber.Ctx) error {
	tasks, err := s.tasks.ListByRange(c.UserContext(), c.Query("type"), c.Query("date"))
	if err != nil {
		return s.fail(c, err)
	}
	return respond(c, fiber.StatusOK, toResponses(tasks), s.now())
}

func (s *Server) listUnscheduled(c *fiber.Ctx) error {
	tasks, err := s.tasks.ListUnscheduled(c.UserContext())
	if err != nil {
		return s.fail(c, err)
	}
	return respond(c, fiber.StatusOK, toResponses(tasks), s.now())
}

func (s *Server) updateTask(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return s.fail(c, err)
	}

	var req taskRequest
	if err := parseBody(c, &req); err != nil {
		return s.fail(c, err)
	}

	task, err := s.tasks.Update(c.UserContext(), id, req.input())
	if err != nil {
		return s.fail(c, err)
	}
	return respond(c, fiber.StatusOK, toResponse(task), s.now())
}

func (s *Server) deleteTask(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return s.fail(c, err)
	}

	if err := s.tasks.Delete(c.UserContext(), id); err != nil {
		return s.fail(c, err)
	}
	return respond(c, fiber.StatusOK, nil, s.now())
}

func (s *Server) taskHistory(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return s.fail(c, err)
	}

	history, err := s.tasks.History(c.UserContext(), id)
	if err != nil {
		return s.fail(c, err)
	}

	out := make([]historyResponse, 0, len(history))
	for _, entry := range history {
		out = append(out, historyResponse{
			ID:        entry.ID,
			EventType: entry.EventType,
			Details:   entry.Details,
			CreatedAt: localTime{entry.CreatedAt},
		})
	}
	return respond(c, fiber.StatusOK, out, s.now())
}

// exportICS serves the same range as listTasks as an iCalendar file.
func (s *Server) exportICS(c *fiber.Ctx) error {
	kind, date := c.Query("type"), c.Query("date")
	tasks, err := s.tasks.ListByRange(c.UserContext(), kind, date)
	if err != nil {
		return s.fail(c, err)
	}

	var buf bytes.Buffer
	name := fmt.Sprintf("todolab %s %s", strings.ToUpper(kind), date)
	if err := ics.Write(&buf, name, tasks, s.now()); err != nil {
		return s.fail(c, err)
	}

	c.Set(fiber.HeaderContentType, "text/calendar; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", "todolab-"+date+".ics"))
	return c.Send(buf.Bytes())
}

// fail maps an error to its status and code. Internal errors are logged and
// answered with a generic message.
func (s *Server) fail(c *fiber.Ctx, err error) error {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		code := codeInvalidInput
		if errors.Is(err, model.ErrTitleRequired) || errors.Is(err, service.ErrMissingParameter) {
			code = codeRequiredMissing
		}
		return respondError(c, fiber.StatusBadRequest, code, verr.Error(), s.now())
	case errors.Is(err, model.ErrNotFound):
		return respondError(c, fiber.StatusNotFound, codeNotFound, err.Error(), s.now())
	default:
		s.logger.Error("request failed",
			"request_id", requestIDOf(c),
			"method", c.Method(),
			"path", c.Path(),
			"err", err,
		)
		return respondError(c, fiber.StatusInternalServerError, codeInternal, "internal server error", s.now())
	}
}

func parseBody(c *fiber.Ctx, req *taskRequest) error {
	if err := json.Unmarshal(c.Body(), req); err != nil {
		return &model.ValidationError{Field: "body", Err: err}
	}
	return nil
}

func parseID(c *fiber.Ctx) (int64, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, &model.ValidationError{Field: "id", Err: fmt.Errorf("invalid task id %q", c.Params("id"))}
	}
	return int64(id), nil
}

func respond(c *fiber.Ctx, status int, data any, now time.Time) error {
	return c.Status(status).JSON(envelope{
		Status:    statusSuccess,
		Data:      data,
		Timestamp: formatTimestamp(now),
	})
}

func respondError(c *fiber.Ctx, status int, code errorCode, message string, now time.Time) error {
	return c.Status(status).JSON(envelope{
		Status:    statusFail,
		Error:     &apiError{Code: code.Number, Name: code.Name, Message: message},
		Timestamp: formatTimestamp(now),
	})
}

func formatTimestamp(t time.Time) string {
	return t.In(time.Local).Format(wireLayout)
}

func wrapTime(t *time.Time) *localTime {
	if t == nil {
		return nil
	}
	return &localTime{*t}
}

func unwrapTime(t *localTime) *time.Time {
	if t == nil {
		return nil
	}
	v := t.Time
	return &v
}
