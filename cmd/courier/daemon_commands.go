package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"courier/internal/config"
	"courier/internal/daemonctl"
	"courier/internal/notifications"
	"courier/internal/preflight"
)

const (
	stopGracePeriod  = 30 * time.Second
	startWaitTimeout = 10 * time.Second
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the courier daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}
			result, err := daemonctl.EnsureStarted(ctx.configValue(), exe, daemonLaunchOptions(ctx), startWaitTimeout)
			if err != nil {
				return err
			}
			switch result.State {
			case daemonctl.StartStateStarted:
				fmt.Fprintf(stdout, "Daemon started (pid %d)\n", result.PID)
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintf(stdout, "Daemon already running (pid %d)\n", result.PID)
			}
			return nil
		},
	}

	var stopGrace time.Duration
	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the courier daemon after its current cycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.Stop(ctx.configValue(), stopGrace)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.ForcedKill {
				fmt.Fprintf(stdout, "Daemon (pid %d) did not stop within %s and was killed\n", result.PID, stopGrace)
				return nil
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}
	stopCmd.Flags().DurationVar(&stopGrace, "grace", stopGracePeriod, "How long to wait for the current cycle before killing the daemon")

	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the courier daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}
			result, err := daemonctl.Restart(ctx.configValue(), exe, daemonLaunchOptions(ctx), stopGracePeriod, startWaitTimeout)
			if err != nil {
				return err
			}
			if result.WasRunning {
				if result.Stop.ForcedKill {
					fmt.Fprintf(stdout, "Daemon (pid %d) was killed\n", result.Stop.PID)
				}
				fmt.Fprintln(stdout, "Daemon stopped")
			}
			fmt.Fprintf(stdout, "Daemon restarted (pid %d)\n", result.Start.PID)
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon state, the last cycle and system checks",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			snap, err := daemonctl.BuildSnapshot(cfg)
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			printSection(stdout, "Daemon", colorize, daemonLines(snap, colorize))
			fmt.Fprintln(stdout)

			if snap.Status != nil && snap.Status.LastCycle != nil {
				printSection(stdout, "Last Cycle", colorize, lastCycleLines(snap, colorize))
				fmt.Fprintln(stdout)
			}

			checks := preflight.RunAll(cmd.Context(), cfg, ctx.mailTransport(cfg))
			lines := make([]string, 0, len(checks)+1)
			lines = append(lines, renderStatusLine("Config file", statusInfo, configFileDetail(ctx), colorize))
			for _, check := range checks {
				lines = append(lines, renderCheckLine(check, statusError, colorize))
			}
			lines = append(lines, notificationsLine(cfg, colorize))
			printSection(stdout, "System Checks", colorize, lines)
			return nil
		},
	}

	return []*cobra.Command{startCmd, stopCmd, restartCmd, statusCmd}
}

func daemonLines(snap daemonctl.Snapshot, colorize bool) []string {
	if !snap.Running {
		lines := []string{renderStatusLine("Daemon", statusError, "Not running", colorize)}
		if snap.Stale {
			detail := "left by a daemon that did not shut down cleanly"
			if snap.PID > 0 {
				detail = fmt.Sprintf("left by pid %d, which is gone", snap.PID)
			}
			lines = append(lines, renderStatusLine("Stale files", statusWarn, detail, colorize))
		}
		return lines
	}

	lines := []string{renderStatusLine("Daemon", statusOK, fmt.Sprintf("Running (pid %d)", snap.PID), colorize)}
	status := snap.Status
	if status == nil {
		return lines
	}
	lines = append(lines,
		renderStatusLine("Started", statusInfo, formatTime(status.StartedAt), colorize),
		renderStatusLine("Interval", statusInfo, status.Interval, colorize),
		renderStatusLine("Folder watching", statusInfo, yesNo(status.Watching), colorize),
	)
	if status.Ledger != "" {
		lines = append(lines, renderStatusLine("Ledger", statusInfo, status.Ledger, colorize))
	}
	if status.LogPath != "" {
		lines = append(lines, renderStatusLine("Log", statusInfo, status.LogPath, colorize))
	}
	return lines
}

func lastCycleLines(snap daemonctl.Snapshot, colorize bool) []string {
	cycle := snap.Status.LastCycle
	kind := statusOK
	switch {
	case cycle.Error != "" || len(cycle.FailedWarehouses) > 0:
		kind = statusWarn
	case cycle.Outcome != "completed":
		kind = statusInfo
	}
	lines := []string{
		renderStatusLine("Outcome", kind, cycle.Summary, colorize),
		renderStatusLine("Finished", statusInfo, formatTime(cycle.FinishedAt), colorize),
	}
	if snap.Status.Folder != "" {
		lines = append(lines, renderStatusLine("Folder", statusInfo, snap.Status.Folder, colorize))
	}
	if len(cycle.FailedWarehouses) > 0 {
		lines = append(lines, renderStatusLine("Failed warehouses", statusWarn, strings.Join(cycle.FailedWarehouses, ", "), colorize))
	}
	if cycle.Error != "" {
		lines = append(lines, renderStatusLine("Error", statusError, cycle.Error, colorize))
	}
	return lines
}

func notificationsLine(cfg *config.Config, colorize bool) string {
	if !notifications.Enabled(cfg) {
		return renderStatusLine("Notifications", statusInfo, "Disabled", colorize)
	}
	return renderStatusLine("Notifications", statusOK, cfg.Notifications.NtfyTopic, colorize)
}

func configFileDetail(ctx *commandContext) string {
	if ctx.configPath == "" {
		return "defaults"
	}
	if _, err := os.Stat(ctx.configPath); err != nil {
		return ctx.configPath + " (missing, defaults in use)"
	}
	return ctx.configPath
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}

func daemonLaunchOptions(ctx *commandContext) daemonctl.LaunchOptions {
	opts := daemonctl.LaunchOptions{LogLevel: strings.TrimSpace(ctx.logLevelFlag)}
	if path := strings.TrimSpace(ctx.configPath); path != "" {
		opts.ConfigPath = path
	} else if path := strings.TrimSpace(ctx.configFlag); path != "" {
		if expanded, err := config.ExpandPath(path); err == nil {
			opts.ConfigPath = expanded
		}
	}
	return opts
}
