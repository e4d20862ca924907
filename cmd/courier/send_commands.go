package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"courier/internal/config"
	"courier/internal/daemonrun"
	"courier/internal/dispatch"
	"courier/internal/ledger"
	"courier/internal/targetdate"
)

const atLayout = "2006-01-02 15:04"

func newSendCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Run one dispatch cycle now",
		Long: "Run one dispatch cycle immediately. The command refuses to run while the\n" +
			"daemon is active, since both would share the same ledger.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			if dryRun {
				return runPreview(cmd, ctx, cfg, time.Now(), false)
			}

			lock, err := daemonrun.AcquireLock(cfg.LockPath())
			if errors.Is(err, daemonrun.ErrAlreadyRunning) {
				return errors.New("the courier daemon is running and dispatches on its own schedule; stop it first or use 'courier send --dry-run'")
			}
			if err != nil {
				return err
			}
			defer func() { _ = lock.Unlock() }()

			dispatcher, closeStore, err := newDispatcher(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			report := dispatcher.RunCycle(cmd.Context(), time.Now())
			printCycleReport(cmd.OutOrStdout(), report)
			return cycleError(report)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be sent without sending")
	return cmd
}

func newPreviewCommand(ctx *commandContext) *cobra.Command {
	var at string
	var showFiles bool
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Show which files the next cycle would send",
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now()
			if strings.TrimSpace(at) != "" {
				parsed, err := time.ParseInLocation(atLayout, strings.TrimSpace(at), time.Local)
				if err != nil {
					return fmt.Errorf("invalid --at value %q, use %q", at, atLayout)
				}
				now = parsed
			}
			return runPreview(cmd, ctx, ctx.configValue(), now, showFiles)
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "Evaluate as of this local time (YYYY-MM-DD HH:MM)")
	cmd.Flags().BoolVar(&showFiles, "files", false, "List every new file")
	return cmd
}

func newDispatcher(ctx *commandContext, cfg *config.Config) (*dispatch.Dispatcher, func(), error) {
	logger, err := ctx.cliLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	store, err := ledger.Open(cfg)
	if err != nil {
		return nil, nil, err
	}
	dispatcher := dispatch.New(cfg, store, ctx.mailTransport(cfg), logger)
	return dispatcher, func() { _ = store.Close() }, nil
}

func runPreview(cmd *cobra.Command, ctx *commandContext, cfg *config.Config, now time.Time, showFiles bool) error {
	dispatcher, closeStore, err := newDispatcher(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	plan, err := dispatcher.Preview(cmd.Context(), now)
	out := cmd.OutOrStdout()
	printPlan(out, plan, showFiles)
	if err != nil {
		return fmt.Errorf("scan %s: %w", plan.Folder, err)
	}
	return nil
}

func printPlan(out io.Writer, plan dispatch.Plan, showFiles bool) {
	fmt.Fprintf(out, "As of:   %s\n", plan.Now.Format("Mon 2006-01-02 15:04"))
	fmt.Fprintf(out, "Folder:  %s\n", plan.Folder)
	if plan.ConfigErr != nil {
		fmt.Fprintf(out, "Warning: %v (built-in defaults in use)\n", plan.ConfigErr)
	}
	for _, warning := range plan.Warnings {
		fmt.Fprintf(out, "Warning: %s\n", warning)
	}
	if plan.LedgerErr != nil {
		fmt.Fprintf(out, "Warning: %v (treated as empty)\n", plan.LedgerErr)
	}
	if plan.Weekend {
		fmt.Fprintln(out, "Note:    weekend, a cycle now would send nothing")
	} else if !plan.ScheduleOpen {
		fmt.Fprintf(out, "Note:    sending starts at %s\n", plan.NotBefore)
	}
	if len(plan.Inactive) > 0 {
		fmt.Fprintf(out, "Inactive warehouses (no recipient): %s\n", strings.Join(plan.Inactive, ", "))
	}
	fmt.Fprintln(out)

	if len(plan.Targets) == 0 {
		fmt.Fprintln(out, "No warehouse has a recipient configured")
		return
	}

	rows := make([][]string, 0, len(plan.Targets))
	candidates := 0
	for _, target := range plan.Targets {
		candidates += len(target.Candidates)
		rows = append(rows, []string{
			target.Code,
			target.Recipient,
			targetdate.Stamp(target.Date),
			strconv.Itoa(len(target.Candidates)),
			strconv.Itoa(len(target.New)),
		})
	}
	fmt.Fprint(out, tableView{
		Headers: []string{"Warehouse", "Recipient", "Date", "Matching", "New"},
		Rows:    rows,
		Aligns:  []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight},
		Footer:  []string{"Total", "", "", strconv.Itoa(candidates), strconv.Itoa(plan.NewFiles())},
	}.Render())

	if showFiles {
		for _, target := range plan.Targets {
			for _, name := range target.New {
				fmt.Fprintf(out, "  %s  %s\n", target.Code, name)
			}
		}
	}
}

func printCycleReport(out io.Writer, report dispatch.CycleReport) {
	fmt.Fprintf(out, "Cycle %s: %s\n", report.ID, report.Summary())
	if report.Folder != "" {
		fmt.Fprintf(out, "Folder: %s\n", report.Folder)
	}
	for _, failure := range report.Failures {
		fmt.Fprintf(out, "  warehouse %s (%s): %v\n", failure.Code, failure.Recipient, failure.Err)
	}
	if report.FilesSent > 0 && !report.LedgerSaved {
		fmt.Fprintln(out, "Ledger was not saved; these files may be sent again after a restart")
	}
}

// cycleError maps outcomes the operator must act on to a non-zero exit.
func cycleError(report dispatch.CycleReport) error {
	switch report.Outcome {
	case dispatch.OutcomeDirectoryUnavailable, dispatch.OutcomeTransportUnavailable, dispatch.OutcomeInternalError:
		return fmt.Errorf("cycle %s", report.Summary())
	}
	if len(report.Failures) > 0 {
		return fmt.Errorf("%d warehouse batch(es) failed", len(report.Failures))
	}
	if report.Err != nil {
		return report.Err
	}
	return nil
}
