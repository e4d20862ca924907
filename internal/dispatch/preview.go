package dispatch

import (
	"context"
	"errors"
	"io/fs"
	"time"

	"courier/internal/ledger"
	"courier/internal/scanner"
	"courier/internal/targetdate"
	"courier/internal/warehouse"
)

// PlanTarget is what one warehouse would receive.
type PlanTarget struct {
	Code       string
	Recipient  string
	Date       time.Time
	Candidates []string
	New        []string
}

// Plan is the result of a dry run: everything a cycle would decide before it
// connects to the mail server.
type Plan struct {
	Now          time.Time
	Folder       string
	Weekend      bool
	ScheduleOpen bool
	NotBefore    string
	Targets      []PlanTarget
	// Inactive lists warehouse codes without a recipient.
	Inactive  []string
	Warnings  []string
	ConfigErr error
	LedgerErr error
}

// NewFiles counts the files a cycle would send.
func (p Plan) NewFiles() int {
	total := 0
	for _, target := range p.Targets {
		total += len(target.New)
	}
	return total
}

// WouldSend reports whether a cycle run at p.Now would send anything.
func (p Plan) WouldSend() bool {
	return !p.Weekend && p.ScheduleOpen && p.NewFiles() > 0
}

// Preview runs the calendar check, target resolution, scan and ledger diff
// without connecting to the mail server or saving anything. Calendar and
// schedule gates are reported in the plan rather than applied, so the
// operator can see what would match. The returned error wraps
// scanner.ErrDirectoryUnavailable when the folder cannot be listed.
func (d *Dispatcher) Preview(ctx context.Context, now time.Time) (Plan, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	plan := Plan{Now: now, Weekend: targetdate.IsWeekend(now)}

	snapshot := warehouse.Defaults()
	if d.Warehouses != nil {
		snapshot, plan.ConfigErr = d.Warehouses()
	}
	plan.Warnings = snapshot.Warnings
	plan.Folder = snapshot.ResolvedFolder()
	plan.ScheduleOpen = snapshot.ScheduleOpen(now)
	if earliest, ok := snapshot.Earliest(); ok {
		plan.NotBefore = clock(earliest)
	}
	for _, rule := range snapshot.Rules() {
		if !rule.Active() {
			plan.Inactive = append(plan.Inactive, rule.Code)
		}
	}

	targets := ResolveTargets(snapshot, now)
	plan.Targets = make([]PlanTarget, 0, len(targets))
	for _, target := range targets {
		plan.Targets = append(plan.Targets, PlanTarget{
			Code:      target.Code,
			Recipient: target.Recipient,
			Date:      target.Date,
		})
	}

	result, err := scanner.Scan(plan.Folder, targets)
	if err != nil {
		return plan, &StepError{Step: StepScan, Err: err}
	}

	sent := ledger.NewSet()
	if d.Ledger != nil {
		loaded, err := d.Ledger.Load(ctx)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			plan.LedgerErr = err
		}
		if loaded != nil {
			sent = loaded
		}
	}
	if d.pending.Len() > 0 {
		sent = ledger.Merge(sent, d.pending)
	}

	for i := range plan.Targets {
		candidates := result.Files(plan.Targets[i].Code)
		plan.Targets[i].Candidates = candidates
		plan.Targets[i].New = ledger.Subtract(candidates, sent)
	}
	return plan, nil
}
