package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/gofiber/fiber/v2"

	"github.com/Joseda-hg/todolab/internal/cache"
	"github.com/Joseda-hg/todolab/internal/config"
	"github.com/Joseda-hg/todolab/internal/db"
	"github.com/Joseda-hg/todolab/internal/logging"
	"github.com/Joseda-hg/todolab/internal/service"
	"github.com/Joseda-hg/todolab/internal/tui"
	"github.com/Joseda-hg/todolab/internal/web"
)

func main() {
	configPathFlag := flag.String("config", "", "config file path")
	dbPathFlag := flag.String("db", "", "sqlite db path")
	webFlag := flag.Bool("web", false, "enable web server")
	webOnlyFlag := flag.Bool("web-only", false, "run web server only")
	addrFlag := flag.String("addr", "", "web server listen address")
	flag.Parse()

	cfgPath, err := resolveConfigPath(*configPathFlag)
	if err != nil {
		fatal(err)
	}

	cfg, err := loadConfig(cfgPath, overrides{
		dbPath: *dbPathFlag,
		web:    *webFlag || *webOnlyFlag,
		addr:   *addrFlag,
	})
	if err != nil {
		fatal(err)
	}

	logOut, closeLog, err := logOutput(cfg, *webOnlyFlag)
	if err != nil {
		fatal(err)
	}
	defer closeLog()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, logOut)
	slog.SetDefault(logger)

	store, err := openStore(cfg.DBPath)
	if err != nil {
		fatal(err)
	}

	var repo service.Repository = store
	healthChecks := []web.Option{web.WithHealthCheck("sqlite", store)}
	var redisCache *cache.Cache
	if cfg.RedisAddr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		redisCache, err = cache.Dial(ctx, cfg.RedisAddr, cfg.CachePrefix, cfg.CacheTTL)
		cancel()
		if err != nil {
			logger.Warn("redis unavailable, running without cache", "addr", cfg.RedisAddr, "err", err)
		} else {
			repo = cache.NewRepository(store, redisCache, logger)
			healthChecks = append(healthChecks, web.WithHealthCheck("redis", redisCache))
			logger.Info("cache enabled", "addr", cfg.RedisAddr, "ttl", cfg.CacheTTL)
		}
	}

	tasks := service.New(repo, service.WithStorageWorkers(cfg.StorageWorkers))

	var app *fiber.App
	var listenErr <-chan error
	if cfg.WebEnabled {
		app = web.NewServer(tasks, logger, healthChecks...).App()
		logger.Info("web server listening", "addr", cfg.ListenAddr)
		listenErr = startServer(app, cfg.ListenAddr)
	}

	shutdown := map[string]gfshutdown.Operation{
		"sqlite": func(ctx context.Context) error {
			return store.DB.Close()
		},
	}
	if app != nil {
		shutdown["web"] = func(ctx context.Context) error {
			return app.ShutdownWithContext(ctx)
		}
	}
	if redisCache != nil {
		shutdown["redis"] = func(ctx context.Context) error {
			return redisCache.Close()
		}
	}

	if *webOnlyFlag {
		wait := gfshutdown.GracefulShutdown(context.Background(), cfg.ShutdownTimeout, shutdown)
		select {
		case exitCode := <-wait:
			logger.Info("exited", "code", exitCode)
			os.Exit(exitCode)
		case err := <-listenErr:
			logger.Error("web server stopped", "addr", cfg.ListenAddr, "err", err)
			runShutdown(logger, cfg.ShutdownTimeout, shutdown)
			os.Exit(1)
		}
	}

	if listenErr != nil {
		go func() {
			err := <-listenErr
			logger.Error("web server stopped", "addr", cfg.ListenAddr, "err", err)
		}()
	}

	runErr := tui.Run(tasks)
	runShutdown(logger, cfg.ShutdownTimeout, shutdown)

	if runErr != nil {
		fmt.Fprintln(os.Stderr, runErr)
		os.Exit(1)
	}
}

// overrides carries command-line values; they win over the file and the
// environment.
type overrides struct {
	dbPath string
	web    bool
	addr   string
}

func (o overrides) apply(cfg *config.Config, cfgPath string) {
	if o.dbPath != "" {
		cfg.DBPath = o.dbPath
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(filepath.Dir(cfgPath), "todolab.db")
	}
	if o.web {
		cfg.WebEnabled = true
	}
	if o.addr != "" {
		cfg.ListenAddr = o.addr
	}
}

// loadConfig persists the file plus flags, then layers TODOLAB_* variables
// on the running copy only. Flags are applied again so they still win.
func loadConfig(cfgPath string, flags overrides) (config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, err
	}
	flags.apply(&cfg, cfgPath)
	if err := config.Save(cfgPath, cfg); err != nil {
		return config.Config{}, err
	}

	if err := cfg.ApplyEnv(); err != nil {
		return config.Config{}, err
	}
	flags.apply(&cfg, cfgPath)
	return cfg, nil
}

// startServer runs app.Listen in the background. The channel receives the
// error only when Listen fails; a clean shutdown sends nothing.
func startServer(app *fiber.App, addr string) <-chan error {
	errc := make(chan error, 1)
	go func() {
		if err := app.Listen(addr); err != nil {
			errc <- err
		}
	}()
	return errc
}

// runShutdown closes components in dependency order: web first, sqlite last.
func runShutdown(logger *slog.Logger, timeout time.Duration, ops map[string]gfshutdown.Operation) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	for _, name := range []string{"web", "redis", "sqlite"} {
		op, ok := ops[name]
		if !ok {
			continue
		}
		if err := op(ctx); err != nil {
			logger.Error("shutdown failed", "component", name, "err", err)
		}
	}
}

func resolveConfigPath(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	return config.DefaultConfigPath()
}

func openStore(dbPath string) (*db.Store, error) {
	if err := config.EnsureDir(dbPath); err != nil {
		return nil, err
	}

	sqlDB, err := db.Open(dbPath)
	if err != nil {
		return nil, err
	}

	return db.NewStore(sqlDB), nil
}

// logOutput keeps the terminal clean while the TUI owns it by sending logs
// to a file next to the database.
func logOutput(cfg config.Config, webOnly bool) (io.Writer, func(), error) {
	if webOnly {
		return os.Stderr, func() {}, nil
	}
	path := filepath.Join(filepath.Dir(cfg.DBPath), "todolab.log")
	if err := config.EnsureDir(path); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "todolab:", err)
	os.Exit(1)
}
