package preflight

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"courier/internal/mailer"
	"courier/internal/testsupport"
	"courier/internal/warehouse"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir, AccessReadWrite)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
	if read := CheckDirectoryAccess("test", dir, AccessRead); !read.Passed || !strings.Contains(read.Detail, "read ok") {
		t.Fatalf("unexpected read-only result: %+v", read)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"), AccessRead)
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f, AccessRead)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckDirectoryAccess_Empty(t *testing.T) {
	if result := CheckDirectoryAccess("test", " ", AccessRead); result.Passed {
		t.Fatal("expected failure for empty path")
	}
}

func TestCheckWarehouseConfig(t *testing.T) {
	dir := t.TempDir()

	missing, snapshot := CheckWarehouseConfig(filepath.Join(dir, "missing.json"))
	if missing.Passed || !strings.Contains(missing.Detail, "defaults") {
		t.Fatalf("unexpected result for missing file: %+v", missing)
	}
	if len(snapshot.Rules()) == 0 {
		t.Fatal("defaults should still be returned")
	}

	path := filepath.Join(dir, "warehouses.json")
	snap := testsupport.Snapshot(dir,
		testsupport.Rule("7210", 1, "a@example.com"),
		testsupport.Rule("7220", 2, ""),
	)
	if err := warehouse.Save(path, snap); err != nil {
		t.Fatalf("Save: %v", err)
	}
	result, _ := CheckWarehouseConfig(path)
	if !result.Passed || !strings.Contains(result.Detail, "1 of 2") {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestCheckSMTP(t *testing.T) {
	ok := CheckSMTP(context.Background(), &testsupport.FakeTransport{}, 0)
	if !ok.Passed {
		t.Fatalf("expected pass, got %+v", ok)
	}

	failing := CheckSMTP(context.Background(), &testsupport.FakeTransport{ConnectErr: errors.New("refused")}, 0)
	if failing.Passed || !strings.Contains(failing.Detail, "refused") {
		t.Fatalf("unexpected failure detail: %+v", failing)
	}

	if CheckSMTP(context.Background(), nil, 0).Passed {
		t.Fatal("nil transport should fail")
	}
}

func TestSummarizeSMTPErrorTimeout(t *testing.T) {
	err := errors.Join(mailer.ErrConnect, context.DeadlineExceeded)
	if got := summarizeSMTPError(err); !strings.Contains(got, "timed out") {
		t.Fatalf("unexpected summary %q", got)
	}
}

func TestCheckSMTPFromConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.SMTP.Host = ""
	if result := CheckSMTPFromConfig(context.Background(), cfg, nil); result.Passed || result.Detail != "Missing host" {
		t.Fatalf("unexpected result: %+v", result)
	}

	cfg.SMTP.Host = "mail.example.com"
	cfg.SMTP.Username = "user"
	if result := CheckSMTPFromConfig(context.Background(), cfg, nil); result.Detail != "Missing password" {
		t.Fatalf("unexpected result: %+v", result)
	}

	cfg.SMTP.Password = "secret"
	result := CheckSMTPFromConfig(context.Background(), cfg, &testsupport.FakeTransport{})
	if !result.Passed || !strings.Contains(result.Detail, "mail.example.com") {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil, nil); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_HealthySetup(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	folder := filepath.Join(testsupport.BaseDir(cfg), "reports")
	if err := os.MkdirAll(folder, 0o755); err != nil {
		t.Fatal(err)
	}
	snap := testsupport.Snapshot(folder, testsupport.Rule("7210", 1, "a@example.com"))
	if err := warehouse.Save(cfg.Paths.WarehouseConfig, snap); err != nil {
		t.Fatal(err)
	}

	results := RunAll(context.Background(), cfg, &testsupport.FakeTransport{})
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	for _, r := range results {
		if !r.Passed {
			t.Errorf("check %q failed: %s", r.Name, r.Detail)
		}
	}
}
