package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"courier/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("COURIER_SMTP_HOST", "")
	t.Setenv("COURIER_SMTP_PASSWORD", "")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantState := filepath.Join(tempHome, ".local", "share", "courier")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if cfg.Paths.LogDir != filepath.Join(wantState, "logs") {
		t.Fatalf("unexpected log dir: %q", cfg.Paths.LogDir)
	}
	if cfg.Paths.WarehouseConfig != filepath.Join(tempHome, ".config", "courier", "warehouses.json") {
		t.Fatalf("unexpected warehouse config path: %q", cfg.Paths.WarehouseConfig)
	}
	if cfg.Ledger.Backend != config.LedgerBackendJSON {
		t.Fatalf("unexpected ledger backend: %q", cfg.Ledger.Backend)
	}
	if cfg.Ledger.Path != filepath.Join(wantState, "sent_files.json") {
		t.Fatalf("unexpected ledger path: %q", cfg.Ledger.Path)
	}
	if cfg.PollInterval() != time.Minute {
		t.Fatalf("unexpected poll interval: %s", cfg.PollInterval())
	}
	if cfg.SMTP.Port != 587 || !cfg.SMTP.StartTLS {
		t.Fatalf("unexpected smtp defaults: %+v", cfg.SMTP)
	}
	if cfg.Mail.DateFormat != "02.01.2006" {
		t.Fatalf("unexpected date format: %q", cfg.Mail.DateFormat)
	}
	if cfg.Logging.Format != "console" {
		t.Fatalf("unexpected log format: %q", cfg.Logging.Format)
	}
	if cfg.LockPath() != filepath.Join(wantState, "courier.lock") {
		t.Fatalf("unexpected lock path: %q", cfg.LockPath())
	}
}

func TestLoadCustomConfigOverrides(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	configPath := filepath.Join(tempHome, "config.toml")
	payload := struct {
		Paths struct {
			StateDir string `toml:"state_dir"`
		} `toml:"paths"`
		Ledger struct {
			Backend string `toml:"backend"`
		} `toml:"ledger"`
		Workflow struct {
			PollInterval int `toml:"poll_interval"`
		} `toml:"workflow"`
		Logging struct {
			Format string `toml:"format"`
		} `toml:"logging"`
	}{}
	payload.Paths.StateDir = "~/courier-state"
	payload.Ledger.Backend = "SQLite"
	payload.Workflow.PollInterval = 15
	payload.Logging.Format = "JSON"

	data, err := toml.Marshal(payload)
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("WriteFile returned error: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config to exist")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: %q", resolved)
	}
	wantState := filepath.Join(tempHome, "courier-state")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: %q", cfg.Paths.StateDir)
	}
	if cfg.Ledger.Backend != config.LedgerBackendSQLite {
		t.Fatalf("expected backend to be normalized to sqlite, got %q", cfg.Ledger.Backend)
	}
	if cfg.Ledger.Path != filepath.Join(wantState, "sent_files.db") {
		t.Fatalf("unexpected sqlite ledger path: %q", cfg.Ledger.Path)
	}
	if cfg.PollInterval() != 15*time.Second {
		t.Fatalf("unexpected poll interval: %s", cfg.PollInterval())
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected json log format, got %q", cfg.Logging.Format)
	}
}

func TestLoadReadsDotEnvNextToConfig(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	unsetEnv(t, "COURIER_SMTP_PASSWORD")
	unsetEnv(t, "COURIER_SMTP_USERNAME")

	dir := filepath.Join(tempHome, "etc")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	configPath := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(configPath, []byte("[smtp]\nhost = \"mail.example.com\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	env := "COURIER_SMTP_USERNAME=robot\nCOURIER_SMTP_PASSWORD=s3cret\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.SMTP.Host != "mail.example.com" {
		t.Fatalf("unexpected host: %q", cfg.SMTP.Host)
	}
	if cfg.SMTP.Username != "robot" || cfg.SMTP.Password != "s3cret" {
		t.Fatalf("expected credentials from .env, got %q/%q", cfg.SMTP.Username, cfg.SMTP.Password)
	}
}

func TestLoadFileValueWinsOverEnv(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("COURIER_SMTP_PASSWORD", "from-env")

	configPath := filepath.Join(tempHome, "config.toml")
	if err := os.WriteFile(configPath, []byte("[smtp]\npassword = \"from-file\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.SMTP.Password != "from-file" {
		t.Fatalf("expected file password, got %q", cfg.SMTP.Password)
	}
}

func TestLoadRejectsInvalidToml(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	configPath := filepath.Join(tempHome, "config.toml")
	if err := os.WriteFile(configPath, []byte("[paths\nstate_dir ="), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(configPath); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{
			name:   "poll interval",
			mutate: func(c *config.Config) { c.Workflow.PollInterval = 0 },
			want:   "workflow.poll_interval",
		},
		{
			name:   "backend",
			mutate: func(c *config.Config) { c.Ledger.Backend = "redis" },
			want:   "ledger.backend",
		},
		{
			name:   "port",
			mutate: func(c *config.Config) { c.SMTP.Port = 70000 },
			want:   "smtp.port",
		},
		{
			name:   "log format",
			mutate: func(c *config.Config) { c.Logging.Format = "xml" },
			want:   "logging.format",
		},
		{
			name:   "retention",
			mutate: func(c *config.Config) { c.Logging.RetentionDays = -1 },
			want:   "logging.retention_days",
		},
		{
			name:   "debounce",
			mutate: func(c *config.Config) { c.Workflow.WatchDebounce = -5 },
			want:   "workflow.watch_debounce",
		},
		{
			name:   "ntfy topic",
			mutate: func(c *config.Config) { c.Notifications.NtfyTopic = "courier-alerts" },
			want:   "notifications.ntfy_topic",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Ledger.Path = "/tmp/sent_files.json"
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error for %s", tc.name)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error to mention %q, got %v", tc.want, err)
			}
		})
	}
}

func TestCreateSampleProducesLoadableConfig(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	path := filepath.Join(tempHome, "nested", "config.toml")

	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("sample config should load: %v", err)
	}
	if !exists {
		t.Fatal("expected sample config to exist")
	}
	if cfg.SMTP.Host != "smtp.example.com" {
		t.Fatalf("unexpected sample host: %q", cfg.SMTP.Host)
	}
}

func TestEnsureDirectoriesCreatesLedgerParent(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Ledger.Path = filepath.Join(base, "ledger", "sent.json")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories returned error: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StateDir, cfg.Paths.LogDir, filepath.Dir(cfg.Ledger.Path)} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q: %v", dir, err)
		}
	}
}

func unsetEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	os.Unsetenv(key)
}
