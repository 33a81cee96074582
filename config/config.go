// Package config loads server settings from config.yml, the environment and
// an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/gotify/configor"
	"github.com/joho/godotenv"
)

type Configuration struct {
	App struct {
		ListenAddr      string `default:"" env:"LEAVE_APP_HOST"`
		Port            int    `default:"8080" env:"LEAVE_APP_PORT"`
		ReadTimeoutSec  int    `default:"15" env:"LEAVE_APP_READ_TIMEOUT_SEC"`
		WriteTimeoutSec int    `default:"30" env:"LEAVE_APP_WRITE_TIMEOUT_SEC"`
		ShutdownSec     int    `default:"10" env:"LEAVE_APP_SHUTDOWN_SEC"`
	}
	Database struct {
		Path     string `default:"./data/leave.db" env:"LEAVE_DB_PATH"`
		SeedDemo *bool  `default:"false" env:"LEAVE_DB_SEED_DEMO"`
	}
	Log struct {
		Level  string `default:"info" env:"LEAVE_LOG_LEVEL"`
		Format string `default:"json" env:"LEAVE_LOG_FORMAT"` // json or text
	}
	Cors struct {
		AllowedOrigins string `default:"*" env:"LEAVE_CORS_ORIGINS"` // comma separated
	}
	Scanner struct {
		Enabled         *bool  `default:"true" env:"LEAVE_SCANNER_ENABLED"`
		IntervalMinutes int    `default:"60" env:"LEAVE_SCANNER_INTERVAL_MIN"`
		TimeoutSeconds  int    `default:"30" env:"LEAVE_SCANNER_TIMEOUT_SEC"`
		Department      string `default:"" env:"LEAVE_SCANNER_DEPARTMENT"`
	}
}

// DefaultFiles are read when no file is named explicitly.
func DefaultFiles() []string {
	return []string{"config.yml"}
}

// Load reads .env (if present) into the environment, then the given YAML
// files, then environment overrides. Struct tag defaults fill the rest.
func Load(files ...string) (*Configuration, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	if len(files) == 0 {
		files = DefaultFiles()
	}

	conf := new(Configuration)
	if err := configor.New(&configor.Config{}).Load(conf, files...); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

func (c *Configuration) Validate() error {
	if c.App.Port <= 0 || c.App.Port > 65535 {
		return fmt.Errorf("config: app port out of range: %d", c.App.Port)
	}
	if c.Database.Path == "" {
		return errors.New("config: database path is required")
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("config: unknown log format %q", c.Log.Format)
	}
	if c.ScannerEnabled() && c.Scanner.IntervalMinutes <= 0 {
		return fmt.Errorf("config: scanner interval must be positive, got %d", c.Scanner.IntervalMinutes)
	}
	return nil
}

// Addr is the listen address for http.Server.
func (c *Configuration) Addr() string {
	return fmt.Sprintf("%s:%d", c.App.ListenAddr, c.App.Port)
}

func (c *Configuration) ReadTimeout() time.Duration {
	return time.Duration(c.App.ReadTimeoutSec) * time.Second
}

func (c *Configuration) WriteTimeout() time.Duration {
	return time.Duration(c.App.WriteTimeoutSec) * time.Second
}

func (c *Configuration) ShutdownTimeout() time.Duration {
	return time.Duration(c.App.ShutdownSec) * time.Second
}

// AllowedOrigins splits the comma separated CORS origins.
func (c *Configuration) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.Cors.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func (c *Configuration) SeedDemo() bool {
	return c.Database.SeedDemo != nil && *c.Database.SeedDemo
}

func (c *Configuration) ScannerEnabled() bool {
	return c.Scanner.Enabled == nil || *c.Scanner.Enabled
}

func (c *Configuration) ScannerInterval() time.Duration {
	return time.Duration(c.Scanner.IntervalMinutes) * time.Minute
}

func (c *Configuration) ScannerTimeout() time.Duration {
	return time.Duration(c.Scanner.TimeoutSeconds) * time.Second
}
