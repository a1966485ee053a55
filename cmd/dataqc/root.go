package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ganot/dataqc/internal/alert"
	"github.com/ganot/dataqc/internal/config"
	"github.com/ganot/dataqc/internal/domain/missing"
	"github.com/ganot/dataqc/internal/domain/outlier"
	"github.com/ganot/dataqc/internal/domain/review"
	"github.com/ganot/dataqc/internal/domain/study"
	"github.com/ganot/dataqc/internal/domain/sweep"
	"github.com/ganot/dataqc/internal/sqlite"
	"github.com/ganot/dataqc/internal/state"
)

var rootCmd = &cobra.Command{
	Use:           "dataqc",
	Short:         "Data-quality decision engine for capture projects",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(serveCmd, sweepCmd, resubmitCmd)
}

// app holds the wired service graph shared by every subcommand.
type app struct {
	cfg         config.Config
	logger      *slog.Logger
	db          *sqlite.DB
	store       *state.FileStore
	coordinator *sweep.Coordinator

	closers []func()
}

func newApp() (*app, error) {
	// Local .env files mirror the deployment's environment configuration.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	a := &app{cfg: cfg}
	if err := a.setupLogger(); err != nil {
		return nil, err
	}

	if err := a.openDatabase(); err != nil {
		a.Close()
		return nil, err
	}

	store, err := state.NewFileStore(cfg.QC.StateDir)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.store = store

	projectRepo := sqlite.NewProjectRepository(a.db)
	schemaRepo := sqlite.NewSchemaRepository(a.db)
	dataRepo := sqlite.NewDataRepository(a.db)
	ticketRepo := sqlite.NewTicketRepository(a.db)
	userRepo := sqlite.NewUserRepository(a.db)
	messageRepo := sqlite.NewMessageRepository(a.db)

	studySvc := study.NewService(schemaRepo, ticketRepo, dataRepo, a.logger)

	spooler := review.SpoolFunc(func(an review.Anomaly) error {
		return store.AppendSpool([]state.SpoolEntry{{
			ProjectID: an.ProjectID,
			EventID:   an.EventID,
			RecordID:  an.RecordID,
			FormName:  an.FormName,
			FieldName: an.FieldName,
			Value:     an.Value,
			Instance:  an.Instance,
		}})
	})
	reviewSvc := review.NewService(
		projectRepo, dataRepo, ticketRepo, userRepo, messageRepo, spooler,
		review.Options{
			Production:   cfg.QC.Production,
			Notify:       cfg.QC.Notify,
			AuthorUserID: cfg.QC.AuthorUserID,
		},
		a.logger,
	)

	var sink alert.Sink
	if cfg.Alert.SMTPAddr != "" {
		sink = alert.NewSMTPSink(cfg.Alert.SMTPAddr, cfg.Alert.From, cfg.Alert.To, a.logger)
	} else {
		sink = alert.NewLogSink(a.logger)
	}

	a.coordinator = sweep.NewCoordinator(
		studySvc,
		missing.NewDetector(a.logger),
		outlier.ForName(cfg.QC.Strategy),
		reviewSvc,
		ticketRepo,
		store,
		sink,
		sweep.Options{
			Projects:       cfg.QC.Projects,
			AlertThreshold: cfg.QC.AlertThreshold,
			StaleAfter:     time.Duration(cfg.QC.StaleHours) * time.Hour,
		},
		a.logger,
	)
	return a, nil
}

func (a *app) setupLogger() error {
	logWriter := io.Writer(os.Stdout)
	if a.cfg.Log.Path != "" {
		fileWriter, file, err := newLogFileWriter(a.cfg.Log.Path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "log file error: %v\n", err)
		} else {
			a.closers = append(a.closers, func() { file.Close() })
			logWriter = fileWriter
		}
	}
	a.logger = slog.New(slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		Level: parseLogLevel(a.cfg.Log.Level),
	}))
	return nil
}

func (a *app) openDatabase() error {
	path := a.cfg.DB.Path
	if err := ensureDBDir(path); err != nil {
		return fmt.Errorf("failed to prepare database path: %w", err)
	}

	fresh := path == ":memory:"
	if !fresh {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			fresh = true
		}
	}

	db, err := sqlite.New(path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	a.db = db
	a.closers = append(a.closers, func() { db.Close() })

	if fresh {
		if err := db.RunMigrations(); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		a.logger.Info("initialized fresh database", "path", path)
	}
	return nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func ensureDBDir(path string) error {
	if path == ":memory:" || path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
