/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the leave engine server. Handles configuration,
  logging, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, config.yml, LEAVE_* environment)
  2. Configure logrus
  3. Open the SQLite store
  4. Create the API handler and router
  5. Start the conflict scanner
  6. Start the server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Path to the YAML config file (default: config.yml)
  -seed    Load a demo scenario at startup (e.g. team-overlap)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the conflict scanner
  2. Stop accepting new connections
  3. Wait for active requests to complete (app.shutdownsec)
  4. Close the database

EXAMPLES:
  # Run with the defaults
  ./server

  # In-memory database with demo data
  LEAVE_DB_PATH=":memory:" ./server -seed=team-overlap

SEE ALSO:
  - config/config.go: Settings and their environment variables
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/warp/leave-engine/api"
	"github.com/warp/leave-engine/config"
	"github.com/warp/leave-engine/store/sqlite"
	"github.com/warp/leave-engine/timeoff"
)

func main() {
	configPath := flag.String("config", "config.yml", "Path to the YAML config file")
	seed := flag.String("seed", "", "Demo scenario to load at startup")
	flag.Parse()

	conf, err := config.Load(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}

	log := newLogger(conf)

	if conf.Database.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(conf.Database.Path), 0o755); err != nil {
			log.WithError(err).Fatal("failed to create database directory")
		}
	}
	store, err := sqlite.New(conf.Database.Path)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize database")
	}
	defer store.Close()

	handler := api.NewHandler(store)
	handler.Log = log
	handler.Ledger.Log = log
	handler.Ledger.Notifier = timeoff.LogNotifier{Log: log}

	ctx := context.Background()
	if err := handler.Catalog.Reload(ctx); err != nil {
		log.WithError(err).Warn("failed to load policies")
	}

	scenario := *seed
	if scenario == "" && conf.SeedDemo() {
		scenario = "team-overlap"
	}
	if scenario != "" {
		if err := handler.LoadScenarioByID(ctx, scenario); err != nil {
			log.WithError(err).Fatal("failed to load demo data")
		}
	}

	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins: conf.AllowedOrigins(),
		Log:            log,
	})

	scanner := api.NewConflictScanner(handler.Rollup, log)
	scanner.Clock = handler.Clock
	scanner.Enabled = conf.ScannerEnabled()
	scanner.Interval = conf.ScannerInterval()
	scanner.Timeout = conf.ScannerTimeout()
	scanner.Department = conf.Scanner.Department
	scanner.Start()

	server := &http.Server{
		Addr:         conf.Addr(),
		Handler:      router,
		ReadTimeout:  conf.ReadTimeout(),
		WriteTimeout: conf.WriteTimeout(),
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithField("addr", server.Addr).Info("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	scanner.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), conf.ShutdownTimeout())
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server forced to shutdown")
	}
	log.Info("server stopped")
}

// newLogger builds the process logger from the log section.
func newLogger(conf *config.Configuration) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	if strings.EqualFold(conf.Log.Format, "text") {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime: "@timestamp",
				logrus.FieldKeyMsg:  "message",
			},
		})
	}

	level, err := logrus.ParseLevel(conf.Log.Level)
	if err != nil {
		log.WithError(err).Warnf("unknown log level %q, using info", conf.Log.Level)
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	// Packages that log through the standard logger get the same setup.
	logrus.SetFormatter(log.Formatter)
	logrus.SetLevel(level)
	logrus.SetOutput(log.Out)
	return log
}
