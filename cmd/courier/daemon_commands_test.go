package main

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"courier/internal/daemonctl"
	"courier/internal/daemonrun"
	"courier/internal/dispatch"
	"courier/internal/testsupport"
)

func TestStatusWhenStopped(t *testing.T) {
	env := setupCLITestEnv(t)
	env.saveWarehouses(t, testsupport.Rule("7210", 1, "a@example.com"))

	out, err := runCLI(t, env, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "[ERROR] Not running")
	requireContains(t, out, "== System Checks ==")
	requireContains(t, out, "1 of 1 warehouses active")
	requireContains(t, out, "127.0.0.1")
	requireContains(t, out, "[INFO] Disabled")
	if strings.Contains(out, "Last Cycle") {
		t.Fatalf("no cycle section expected without a status file:\n%s", out)
	}
}

func TestStatusReportsMailServerFailure(t *testing.T) {
	env := setupCLITestEnv(t)
	env.transport.ConnectErr = errors.New("connection refused")

	out, err := runCLI(t, env, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Mail server:")
	requireContains(t, out, "[ERROR] mail transport unavailable: connection refused")
}

func TestStatusWhileRunning(t *testing.T) {
	env := setupCLITestEnv(t)
	cfg := env.cfg
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	lock, err := daemonrun.AcquireLock(cfg.LockPath())
	if err != nil {
		t.Fatal(err)
	}
	defer lock.Unlock()
	if err := os.WriteFile(cfg.PIDPath(), []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	report := dispatch.CycleReport{
		ID:                  "c1",
		FinishedAt:          time.Now(),
		Outcome:             dispatch.OutcomeCompleted,
		WarehousesAttempted: 2,
		WarehousesSucceeded: 1,
		FilesSent:           2,
		Failures:            []dispatch.BatchFailure{{Code: "7220", Err: errors.New("rejected")}},
	}
	status := daemonrun.Status{
		PID:       os.Getpid(),
		StartedAt: time.Now(),
		Interval:  "1m0s",
		Folder:    env.folder,
		LastCycle: daemonrun.NewCycleStatus(report),
	}
	if err := daemonrun.WriteStatus(cfg.StatusPath(), status); err != nil {
		t.Fatal(err)
	}

	out, err := runCLI(t, env, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Running (pid "+strconv.Itoa(os.Getpid())+")")
	requireContains(t, out, "sent 2 file(s), 1/2 warehouse(s) succeeded")
	requireContains(t, out, "Failed warehouses:")
	requireContains(t, out, "7220")
}

func TestStopWhenNotRunning(t *testing.T) {
	env := setupCLITestEnv(t)
	out, err := runCLI(t, env, "stop")
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	requireContains(t, out, "Daemon is not running")
}

func TestDaemonLaunchOptionsUseResolvedConfig(t *testing.T) {
	ctx := &commandContext{configFlag: "~/courier.toml", logLevelFlag: " debug "}
	opts := daemonLaunchOptions(ctx)
	if opts.LogLevel != "debug" {
		t.Fatalf("unexpected log level %q", opts.LogLevel)
	}
	if opts.ConfigPath == "" || strings.HasPrefix(opts.ConfigPath, "~") {
		t.Fatalf("config path should be expanded, got %q", opts.ConfigPath)
	}

	ctx.configPath = "/etc/courier/config.toml"
	if got := daemonLaunchOptions(ctx).ConfigPath; got != "/etc/courier/config.toml" {
		t.Fatalf("resolved path should win, got %q", got)
	}
}

func TestLastCycleLinesFlagsErrors(t *testing.T) {
	snap := daemonctl.Snapshot{
		Running: true,
		Status: &daemonrun.Status{LastCycle: &daemonrun.CycleStatus{
			Outcome: "completed",
			Summary: "sent 1 file(s), 1/1 warehouse(s) succeeded",
			Error:   "commit: ledger write failed",
		}},
	}
	lines := lastCycleLines(snap, false)
	joined := strings.Join(lines, "\n")
	if !strings.Contains(joined, "[WARN] sent 1 file(s)") || !strings.Contains(joined, "[ERROR] commit: ledger write failed") {
		t.Fatalf("unexpected lines:\n%s", joined)
	}
}
