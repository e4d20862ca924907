package preflight

import (
	"context"

	"courier/internal/config"
	"courier/internal/mailer"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every check for cfg. A nil transport is replaced by the
// SMTP transport built from cfg.
func RunAll(ctx context.Context, cfg *config.Config, transport mailer.Transport) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{CheckDirectoryAccess("State directory", cfg.Paths.StateDir, AccessReadWrite)}

	warehouseResult, snapshot := CheckWarehouseConfig(cfg.Paths.WarehouseConfig)
	results = append(results, warehouseResult)
	results = append(results, CheckDirectoryAccess("Report folder", snapshot.ResolvedFolder(), AccessRead))

	results = append(results, CheckSMTPFromConfig(ctx, cfg, transport))
	return results
}
