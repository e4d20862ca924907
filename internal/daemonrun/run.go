package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"courier/internal/config"
	"courier/internal/dispatch"
	"courier/internal/ledger"
	"courier/internal/logging"
	"courier/internal/mailer"
	"courier/internal/notifications"
	"courier/internal/preflight"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	ConfigPath  string
	// Transport replaces the SMTP transport built from the config.
	Transport mailer.Transport
	// Notifier replaces the ntfy service built from the config.
	Notifier notifications.Service
}

// Run starts the courier daemon and blocks until SIGINT, SIGTERM or ctx
// cancellation. A cycle in progress always finishes first.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return errors.New("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	lock, err := AcquireLock(cfg.LockPath())
	if err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	startedAt := time.Now()
	runID := startedAt.UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("courier-%s.log", runID))

	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", logPath},
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := ensureCurrentLogPointer(cfg.CurrentLogPath(), logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update courier.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays, startedAt,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "courier-*.log", Exclude: []string{logPath}},
	)

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := ledger.Open(cfg)
	if err != nil {
		logger.Error("open ledger", logging.Error(err))
		return err
	}
	defer store.Close()

	transport := opts.Transport
	if transport == nil {
		transport = mailer.New(cfg)
	}
	logStartupChecks(logger, cfg)

	notifier := opts.Notifier
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}

	dispatcher := dispatch.New(cfg, store, transport, logger)
	loop := &dispatch.Loop{Dispatcher: dispatcher, Interval: cfg.PollInterval()}

	status := Status{
		PID:        os.Getpid(),
		StartedAt:  startedAt,
		UpdatedAt:  startedAt,
		Interval:   cfg.PollInterval().String(),
		ConfigPath: opts.ConfigPath,
		LogPath:    logPath,
		Ledger:     store.Location(),
	}

	if cfg.Workflow.WatchFolder {
		waker, err := dispatch.NewFolderWaker(cfg.WatchDebounce(), logger)
		if err != nil {
			logging.WarnWithContext(logger, "folder watching unavailable; using poll interval only", "folder_watch_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "raise fs.inotify.max_user_instances or disable workflow.watch_folder"),
				logging.String(logging.FieldImpact, "new files wait for the next scheduled cycle"),
			)
		} else {
			defer waker.Close()
			loop.Waker = waker
			status.Watching = true
		}
	}

	statusPath := cfg.StatusPath()
	if err := WriteStatus(statusPath, status); err != nil {
		return err
	}
	defer os.Remove(statusPath)

	loop.OnCycle = func(report dispatch.CycleReport) {
		status.UpdatedAt = time.Now()
		status.Folder = report.Folder
		status.LastCycle = NewCycleStatus(report)
		if err := WriteStatus(statusPath, status); err != nil {
			logging.WarnWithContext(logger, "status file update failed", "status_write_failed",
				logging.String("path", statusPath),
				logging.Error(err),
				logging.String(logging.FieldImpact, "'courier status' shows stale cycle information"),
			)
		}
		if err := notifier.NotifyCycle(context.WithoutCancel(signalCtx), report); err != nil {
			logging.WarnWithContext(logger, "cycle notification failed", "notification_failed",
				logging.CycleID(report.ID),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic or run 'courier test-notify'"),
			)
		}
	}

	logger.Info("courier daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.Int("pid", status.PID),
		logging.Duration("interval", cfg.PollInterval()),
		logging.String("warehouse_config", cfg.Paths.WarehouseConfig),
		logging.String("ledger", store.Location()),
		logging.String("log_path", logPath),
		logging.Bool("watch_folder", status.Watching),
		logging.Bool("notifications", notifications.Enabled(cfg)),
	)

	if err := loop.Run(signalCtx); err != nil {
		return err
	}
	logger.Info("courier daemon shutting down",
		logging.String(logging.FieldEventType, "daemon_stopped"),
	)
	return nil
}

func logStartupChecks(logger *slog.Logger, cfg *config.Config) {
	result, snapshot := preflight.CheckWarehouseConfig(cfg.Paths.WarehouseConfig)
	checks := []preflight.Result{
		result,
		preflight.CheckDirectoryAccess("Report folder", snapshot.ResolvedFolder(), preflight.AccessRead),
	}
	if cfg.SMTP.Host == "" {
		checks = append(checks, preflight.Result{Name: "Mail server", Detail: "smtp.host not configured"})
	}
	for _, check := range checks {
		if check.Passed {
			logger.Debug("startup check passed",
				logging.String("check", check.Name),
				logging.String("detail", check.Detail),
			)
			continue
		}
		logging.WarnWithContext(logger, "startup check failed", "startup_check_failed",
			logging.String("check", check.Name),
			logging.String("detail", check.Detail),
			logging.String(logging.FieldErrorHint, "run 'courier status' for details"),
			logging.String(logging.FieldImpact, "cycles fail until this is fixed"),
		)
	}
}

func ensureCurrentLogPointer(current, target string) error {
	if current == "" || target == "" {
		return nil
	}
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
