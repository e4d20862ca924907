package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"courier/internal/warehouse"
)

// WriteReport creates an empty-ish report file named name inside dir and
// returns its path.
func WriteReport(t testing.TB, dir, name string) string {
	t.Helper()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("PK\x03\x04 "+name), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// WriteReports creates every named report in dir.
func WriteReports(t testing.TB, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		WriteReport(t, dir, name)
	}
}

// Snapshot builds a warehouse snapshot watching folder with the given rules.
func Snapshot(folder string, rules ...warehouse.Rule) warehouse.Snapshot {
	return warehouse.NewSnapshot(folder, "reports@example.com", rules)
}

// Rule is shorthand for an active rule with equal weekday and Friday offsets.
func Rule(code string, offset int, recipient string) warehouse.Rule {
	return warehouse.Rule{Code: code, DaysOffset: offset, FridayOffset: offset, Recipient: recipient}
}

// StaticWarehouses returns a provider that always yields snapshot.
func StaticWarehouses(snapshot warehouse.Snapshot) func() (warehouse.Snapshot, error) {
	return func() (warehouse.Snapshot, error) {
		return snapshot, nil
	}
}
