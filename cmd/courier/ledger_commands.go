package main

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/cobra"

	"courier/internal/daemonrun"
	"courier/internal/ledger"
)

func newLedgerCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect and edit the record of delivered files",
	}
	cmd.AddCommand(newLedgerListCommand(ctx), newLedgerForgetCommand(ctx))
	return cmd
}

func newLedgerListCommand(ctx *commandContext) *cobra.Command {
	var match string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List delivered filenames",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ledger.Open(ctx.configValue())
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := ledgerEntries(cmd, store)
			if err != nil {
				return err
			}
			needle := strings.ToLower(strings.TrimSpace(match))
			rows := make([][]string, 0, len(entries))
			for _, entry := range entries {
				if needle != "" && !strings.Contains(strings.ToLower(entry.Name), needle) {
					continue
				}
				recorded := "-"
				if !entry.RecordedAt.IsZero() {
					recorded = formatTime(entry.RecordedAt)
				}
				rows = append(rows, []string{entry.Name, recorded})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Ledger: %s\n", store.Location())
			if len(rows) == 0 {
				fmt.Fprintln(out, "No delivered files recorded")
				return nil
			}
			fmt.Fprint(out, tableView{
				Headers: []string{"File", "Recorded"},
				Rows:    rows,
				Footer:  []string{fmt.Sprintf("%d file(s)", len(rows)), ""},
			}.Render())
			return nil
		},
	}
	cmd.Flags().StringVar(&match, "match", "", "Only list names containing this text")
	return cmd
}

func newLedgerForgetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "forget FILE...",
		Short: "Remove filenames from the ledger so the next cycle sends them again",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			lock, err := daemonrun.AcquireLock(cfg.LockPath())
			if errors.Is(err, daemonrun.ErrAlreadyRunning) {
				return errors.New("the courier daemon is running; stop it before editing the ledger")
			}
			if err != nil {
				return err
			}
			defer func() { _ = lock.Unlock() }()

			store, err := ledger.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			removed, err := store.Forget(cmd.Context(), args...)
			if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Forgot %d of %d file(s)\n", removed, len(args))
			if removed < len(args) {
				fmt.Fprintln(out, "Names not in the ledger were ignored")
			}
			return nil
		},
	}
}

// ledgerEntries prefers recorded timestamps when the backend keeps them. A
// ledger that does not exist yet lists as empty.
func ledgerEntries(cmd *cobra.Command, store ledger.Store) ([]ledger.Entry, error) {
	if lister, ok := store.(ledger.EntryLister); ok {
		return lister.Entries(cmd.Context())
	}
	set, err := store.Load(cmd.Context())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	names := set.Sorted()
	entries := make([]ledger.Entry, 0, len(names))
	for _, name := range names {
		entries = append(entries, ledger.Entry{Name: name})
	}
	return entries, nil
}
