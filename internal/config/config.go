package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	DBPath     string `yaml:"db_path"`
	WebEnabled bool   `yaml:"web_enabled"`
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
	// LogFormat is text or json.
	LogFormat string `yaml:"log_format"`

	// RedisAddr enables the read cache when set.
	RedisAddr   string        `yaml:"redis_addr,omitempty"`
	CacheTTL    time.Duration `yaml:"cache_ttl"`
	CachePrefix string        `yaml:"cache_prefix"`

	// StorageWorkers caps concurrent database calls from the web server.
	StorageWorkers  int           `yaml:"storage_workers"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

func Default() Config {
	return Config{
		ListenAddr:      ":8080",
		LogLevel:        "info",
		LogFormat:       "text",
		CacheTTL:        5 * time.Minute,
		CachePrefix:     "todolab:",
		StorageWorkers:  50,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Normalize replaces empty or out-of-range values with defaults.
func (c *Config) Normalize() {
	def := Default()
	if strings.TrimSpace(c.ListenAddr) == "" {
		c.ListenAddr = def.ListenAddr
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
		c.LogLevel = strings.ToLower(c.LogLevel)
	default:
		c.LogLevel = def.LogLevel
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
		c.LogFormat = strings.ToLower(c.LogFormat)
	default:
		c.LogFormat = def.LogFormat
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = def.CacheTTL
	}
	if c.CachePrefix == "" {
		c.CachePrefix = def.CachePrefix
	}
	if c.StorageWorkers <= 0 {
		c.StorageWorkers = def.StorageWorkers
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = def.ShutdownTimeout
	}
}

// ApplyEnv overrides fields from TODOLAB_* environment variables. Values
// that fail to parse are reported and leave the field unchanged.
func (c *Config) ApplyEnv() error {
	var errs []error

	if v, ok := lookup("TODOLAB_DB_PATH"); ok {
		c.DBPath = v
	}
	if v, ok := lookup("TODOLAB_WEB_ENABLED"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("TODOLAB_WEB_ENABLED: %w", err))
		} else {
			c.WebEnabled = b
		}
	}
	if v, ok := lookup("TODOLAB_LISTEN_ADDR"); ok {
		c.ListenAddr = v
	}
	if v, ok := lookup("TODOLAB_LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	if v, ok := lookup("TODOLAB_LOG_FORMAT"); ok {
		c.LogFormat = v
	}
	if v, ok := lookup("TODOLAB_REDIS_ADDR"); ok {
		c.RedisAddr = v
	}
	if v, ok := lookup("TODOLAB_CACHE_TTL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("TODOLAB_CACHE_TTL: %w", err))
		} else {
			c.CacheTTL = d
		}
	}
	if v, ok := lookup("TODOLAB_STORAGE_WORKERS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("TODOLAB_STORAGE_WORKERS: %w", err))
		} else {
			c.StorageWorkers = n
		}
	}

	c.Normalize()
	return errors.Join(errs...)
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func DefaultConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "todolab", "config.yaml"), nil
}

func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0o755)
}

// Load reads the YAML file at path. A missing file yields the defaults.
func Load(path string) (Config, error) {
	config := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return config, nil
		}
		return Config{}, err
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	config.Normalize()
	return config, nil
}

// Save writes cfg atomically: a temp file in the same directory is renamed
// over path.
func Save(path string, cfg Config) error {
	if err := EnsureDir(path); err != nil {
		return err
	}

	cfg.Normalize()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".todolab-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
