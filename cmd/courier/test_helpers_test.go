package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"courier/internal/config"
	"courier/internal/testsupport"
	"courier/internal/warehouse"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	folder     string
	transport  *testsupport.FakeTransport
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	base := testsupport.BaseDir(cfg)
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	for _, key := range []string{"COURIER_SMTP_HOST", "COURIER_SMTP_USERNAME", "COURIER_SMTP_PASSWORD", "COURIER_SMTP_PORT"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	folder := filepath.Join(base, "reports")
	if err := os.MkdirAll(folder, 0o755); err != nil {
		t.Fatalf("mkdir reports: %v", err)
	}

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		configPath: configPath,
		folder:     folder,
		transport:  &testsupport.FakeTransport{},
	}
}

func (env *cliTestEnv) saveWarehouses(t *testing.T, rules ...warehouse.Rule) {
	t.Helper()
	if err := warehouse.Save(env.cfg.Paths.WarehouseConfig, testsupport.Snapshot(env.folder, rules...)); err != nil {
		t.Fatalf("save warehouses: %v", err)
	}
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, error) {
	t.Helper()
	cmd := buildRootCommand(&commandContext{transport: env.transport})
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", env.configPath, "--log-level", "error"}, args...))
	err := cmd.Execute()
	return stdout.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(
		"[paths]\nstate_dir = %q\nlog_dir = %q\nwarehouse_config = %q\n\n"+
			"[smtp]\nhost = %q\nport = %d\ntimeout = %d\n\n"+
			"[ledger]\nbackend = %q\npath = %q\n",
		cfg.Paths.StateDir,
		cfg.Paths.LogDir,
		cfg.Paths.WarehouseConfig,
		cfg.SMTP.Host,
		cfg.SMTP.Port,
		cfg.SMTP.Timeout,
		cfg.Ledger.Backend,
		cfg.Ledger.Path,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
