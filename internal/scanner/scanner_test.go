package scanner_test

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"courier/internal/scanner"
)

var aug15 = time.Date(2025, time.August, 15, 0, 0, 0, 0, time.UTC)

func TestMatchPrefixAndDate(t *testing.T) {
	targets := []scanner.Target{
		{Code: "7210", Date: aug15},
		{Code: "7220", Date: aug15},
	}

	tests := []struct {
		name     string
		file     string
		wantCode string
		wantOK   bool
	}{
		{"exact", "7210_20250815_report.xlsx", "7210", true},
		{"other warehouse", "7220_20250815_report.xlsx", "7220", true},
		{"upper extension", "7210_20250815_REPORT.XLSX", "7210", true},
		{"missing underscore boundary", "721_20250815_x.xlsx", "", false},
		{"code without underscore", "721020250815.xlsx", "", false},
		{"wrong date", "7210_20250814_report.xlsx", "", false},
		{"wrong extension", "7210_20250815_report.xls", "", false},
		{"csv", "7210_20250815_report.csv", "", false},
		{"date anywhere after prefix", "7210_stock_20250815.xlsx", "7210", true},
		{"code not at start", "x7210_20250815.xlsx", "", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			code, ok := scanner.Match(tc.file, targets)
			if ok != tc.wantOK || code != tc.wantCode {
				t.Fatalf("Match(%q) = %q, %v; want %q, %v", tc.file, code, ok, tc.wantCode, tc.wantOK)
			}
		})
	}
}

func TestMatchOnlyClaimsForOwnTargetDate(t *testing.T) {
	targets := []scanner.Target{
		{Code: "7210", Date: aug15},
		{Code: "7220", Date: aug15.AddDate(0, 0, 1)},
	}
	if _, ok := scanner.Match("7220_20250815_report.xlsx", targets); ok {
		t.Fatal("7220 expects 20250816 and must not claim a 20250815 file")
	}
}

func TestMatchFirstRuleWins(t *testing.T) {
	targets := []scanner.Target{
		{Code: "72", Date: aug15},
		{Code: "72_10", Date: aug15},
	}
	code, ok := scanner.Match("72_10_20250815.xlsx", targets)
	if !ok || code != "72" {
		t.Fatalf("expected first rule to claim the file, got %q %v", code, ok)
	}

	reversed := []scanner.Target{targets[1], targets[0]}
	code, ok = scanner.Match("72_10_20250815.xlsx", reversed)
	if !ok || code != "72_10" {
		t.Fatalf("expected rule order to decide, got %q %v", code, ok)
	}
}

func TestMatchNormalizesUnicode(t *testing.T) {
	decomposed := "Skla\u0301d_20250815.xlsx"
	if _, ok := scanner.Match(decomposed, []scanner.Target{{Code: "Skl\u00e1d", Date: aug15}}); !ok {
		t.Fatal("expected NFD filename to match NFC code")
	}
	if _, ok := scanner.Match(decomposed, []scanner.Target{{Code: "Sk\u0142ad", Date: aug15}}); ok {
		t.Fatal("different letters must not match")
	}
}

func TestScanGroupsByWarehouse(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"7210_20250815_a.xlsx",
		"7210_20250815_b.xlsx",
		"7220_20250815_a.xlsx",
		"7230_20250815_a.xlsx",
		"notes.txt",
	} {
		touch(t, filepath.Join(dir, name))
	}
	if err := os.Mkdir(filepath.Join(dir, "7210_20250815_dir.xlsx"), 0o755); err != nil {
		t.Fatal(err)
	}

	result, err := scanner.Scan(dir, []scanner.Target{
		{Code: "7210", Date: aug15},
		{Code: "7220", Date: aug15},
	})
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if result.Total() != 3 {
		t.Fatalf("expected 3 matches, got %d", result.Total())
	}
	files := result.Files("7210")
	slices.Sort(files)
	if !slices.Equal(files, []string{"7210_20250815_a.xlsx", "7210_20250815_b.xlsx"}) {
		t.Fatalf("unexpected 7210 files: %v", files)
	}
	if len(result.Files("7230")) != 0 {
		t.Fatal("7230 has no target and must not be matched")
	}
	codes := result.Codes()
	slices.Sort(codes)
	if !slices.Equal(codes, []string{"7210", "7220"}) {
		t.Fatalf("unexpected codes: %v", codes)
	}
}

func TestScanEmptyFolderIsNotAnError(t *testing.T) {
	result, err := scanner.Scan(t.TempDir(), []scanner.Target{{Code: "7210", Date: aug15}})
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if result.Total() != 0 {
		t.Fatalf("expected no matches, got %d", result.Total())
	}
}

func TestScanMissingFolder(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent")
	_, err := scanner.Scan(missing, []scanner.Target{{Code: "7210", Date: aug15}})
	if !errors.Is(err, scanner.ErrDirectoryUnavailable) {
		t.Fatalf("expected ErrDirectoryUnavailable, got %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected underlying not-exist error, got %v", err)
	}
}

func TestScanFileInsteadOfFolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.xlsx")
	touch(t, path)
	if _, err := scanner.Scan(path, nil); !errors.Is(err, scanner.ErrDirectoryUnavailable) {
		t.Fatalf("expected ErrDirectoryUnavailable, got %v", err)
	}
}

func TestResultFilesReturnsCopy(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "7210_20250815.xlsx"))
	result, err := scanner.Scan(dir, []scanner.Target{{Code: "7210", Date: aug15}})
	if err != nil {
		t.Fatal(err)
	}
	files := result.Files("7210")
	files[0] = "mutated"
	if result.Files("7210")[0] != "7210_20250815.xlsx" {
		t.Fatal("Files must not expose internal state")
	}
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
