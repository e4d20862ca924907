package testsupport

import (
	"path/filepath"
	"testing"

	"courier/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The warehouse file and ledger live under the same base directory.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.WarehouseConfig = filepath.Join(base, "warehouses.json")
	cfgVal.Ledger.Path = filepath.Join(base, "state", "sent_files.json")
	cfgVal.SMTP.Host = "127.0.0.1"
	cfgVal.SMTP.Timeout = 5

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithSQLiteLedger switches the ledger backend to SQLite.
func WithSQLiteLedger() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Ledger.Backend = config.LedgerBackendSQLite
		b.cfg.Ledger.Path = filepath.Join(b.baseDir, "state", "sent_files.db")
	}
}

// WithSMTP points the config at a mail server.
func WithSMTP(host string, port int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.SMTP.Host = host
		b.cfg.SMTP.Port = port
		b.cfg.SMTP.StartTLS = false
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
