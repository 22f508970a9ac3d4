package web

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"

	"github.com/Joseda-hg/todolab/internal/service"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var pageTemplates = template.Must(template.New("pages").Funcs(template.FuncMap{
	"date":    func(t time.Time) string { return t.Format("2006-01-02") },
	"weekday": func(t time.Time) string { return t.Weekday().String()[:3] },
	"clock":   formatClock,
}).ParseFS(templateFS, "templates/*.tmpl"))

const requestIDHeader = "X-Request-ID"

// Pinger is anything the health endpoint should check.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	tasks  *service.TaskService
	logger *slog.Logger
	checks map[string]Pinger
	now    func() time.Time
	origin string
}

type Option func(*Server)

func WithHealthCheck(name string, p Pinger) Option {
	return func(s *Server) {
		s.checks[name] = p
	}
}

// WithAllowedOrigins enables CORS for a comma-separated origin list.
func WithAllowedOrigins(origins string) Option {
	return func(s *Server) {
		s.origin = strings.TrimSpace(origins)
	}
}

func NewServer(tasks *service.TaskService, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		tasks:  tasks,
		logger: logger,
		checks: map[string]Pinger{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// App builds the fiber application with every route registered.
func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "todolab",
		DisableStartupMessage: true,
		ErrorHandler:          s.errorHandler,
	})

	app.Use(recover.New())
	app.Use(s.requestID)
	app.Use(s.accessLog)
	if s.origin != "" {
		app.Use(cors.New(cors.Config{
			AllowOrigins: s.origin,
			AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
			AllowHeaders: "Content-Type," + requestIDHeader,
		}))
	}

	s.registerRoutes(app)
	return app
}

func (s *Server) registerRoutes(app *fiber.App) {
	app.Get("/", func(c *fiber.Ctx) error {
		return c.Redirect("/calendar/week")
	})
	app.Get("/healthz", s.health)

	tasks := app.Group("/tasks")
	tasks.Post("", s.createTask)
	tasks.Get("", s.listTasks)
	tasks.Get("/unscheduled", s.listUnscheduled)
	tasks.Get("/export.ics", s.exportICS)
	tasks.Get("/:id", s.getTask)
	tasks.Put("/:id", s.updateTask)
	tasks.Delete("/:id", s.deleteTask)
	tasks.Get("/:id/history", s.taskHistory)

	views := app.Group("/calendar")
	views.Get("/day", s.dayView)
	views.Get("/week", s.weekView)
	views.Get("/month", s.monthView)
	views.Get("/unscheduled", s.unscheduledView)
}

func (s *Server) requestID(c *fiber.Ctx) error {
	id := c.Get(requestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	c.Set(requestIDHeader, id)
	c.Locals(requestIDHeader, id)
	return c.Next()
}

func (s *Server) accessLog(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	if err != nil {
		if herr := c.App().ErrorHandler(c, err); herr != nil {
			_ = c.SendStatus(fiber.StatusInternalServerError)
		}
	}

	s.logger.Info("request",
		"request_id", requestIDOf(c),
		"method", c.Method(),
		"path", c.Path(),
		"status", c.Response().StatusCode(),
		"latency", time.Since(start),
	)
	return nil
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code := codeInvalidInput
		switch {
		case fe.Code == fiber.StatusNotFound:
			code = codeRouteNotFound
		case fe.Code == fiber.StatusMethodNotAllowed:
			code = codeMethodNotAllowed
		case fe.Code >= fiber.StatusInternalServerError:
			code = codeInternal
		}
		return respondError(c, fe.Code, code, fe.Message, s.now())
	}
	return s.fail(c, err)
}

func (s *Server) health(c *fiber.Ctx) error {
	status := fiber.Map{}
	healthy := true
	for name, check := range s.checks {
		if err := check.Ping(c.UserContext()); err != nil {
			healthy = false
			status[name] = err.Error()
			continue
		}
		status[name] = "ok"
	}
	if !healthy {
		return c.Status(fiber.StatusServiceUnavailable).JSON(envelope{
			Status:    statusFail,
			Data:      status,
			Error:     &apiError{Code: codeInternal.Number, Message: "dependency unavailable"},
			Timestamp: formatTimestamp(s.now()),
		})
	}
	return respond(c, fiber.StatusOK, status, s.now())
}

func requestIDOf(c *fiber.Ctx) string {
	id, _ := c.Locals(requestIDHeader).(string)
	return id
}

func formatClock(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("15:04")
}
