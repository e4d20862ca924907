package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"courier/internal/warehouse"
)

func newWarehouseCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "warehouse",
		Aliases: []string{"warehouses", "wh"},
		Short:   "Inspect and edit warehouse recipients and date rules",
	}
	cmd.AddCommand(
		newWarehouseInitCommand(ctx),
		newWarehouseListCommand(ctx),
		newWarehouseSetCommand(ctx),
		newWarehouseRemoveCommand(ctx),
		newWarehouseFolderCommand(ctx),
		newWarehouseSenderCommand(ctx),
		newWarehouseScheduleCommand(ctx),
	)
	return cmd
}

func newWarehouseInitCommand(ctx *commandContext) *cobra.Command {
	var overwrite bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a sample warehouse file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ctx.configValue().Paths.WarehouseConfig
			if err := prepareTarget(path, overwrite); err != nil {
				return err
			}
			if err := warehouse.Save(path, warehouse.Sample()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample warehouse file to %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing warehouse file")
	return cmd
}

func newWarehouseListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List warehouses with their recipients and offsets",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ctx.configValue().Paths.WarehouseConfig
			snapshot, err := warehouse.Load(path)
			out := cmd.OutOrStdout()
			if err != nil {
				fmt.Fprintf(out, "Warning: %v (built-in rules shown)\n", err)
			}
			for _, warning := range snapshot.Warnings {
				fmt.Fprintf(out, "Warning: %s\n", warning)
			}

			schedule := "any time"
			if len(snapshot.ScheduleTimes) > 0 {
				schedule = strings.Join(snapshot.ScheduleTimes, ", ")
			}
			sender := snapshot.Sender
			if sender == "" {
				sender = "(smtp username)"
			}
			fmt.Fprintf(out, "Folder:   %s\n", snapshot.ResolvedFolder())
			fmt.Fprintf(out, "Sender:   %s\n", sender)
			fmt.Fprintf(out, "Schedule: %s\n", schedule)

			rules := snapshot.Rules()
			if len(rules) == 0 {
				fmt.Fprintln(out, "No warehouses configured")
				return nil
			}
			rows := make([][]string, 0, len(rules))
			for _, rule := range rules {
				recipient := rule.Recipient
				if !rule.Active() {
					recipient = "-"
				}
				rows = append(rows, []string{
					rule.Code,
					recipient,
					strconv.Itoa(rule.DaysOffset),
					strconv.Itoa(rule.FridayOffset),
					yesNo(rule.Active()),
				})
			}
			fmt.Fprint(out, renderTable(
				[]string{"Warehouse", "Recipient", "Offset", "Friday", "Active"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}
}

func newWarehouseSetCommand(ctx *commandContext) *cobra.Command {
	var email string
	var days, friday int
	cmd := &cobra.Command{
		Use:   "set CODE",
		Short: "Add or update a warehouse",
		Long: "Add or update a warehouse. --days is the number of days ahead of today\n" +
			"whose reports are sent; --friday overrides it on Fridays.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if !flags.Changed("email") && !flags.Changed("days") && !flags.Changed("friday") {
				return errors.New("nothing to change; pass --email, --days or --friday")
			}
			code := strings.TrimSpace(args[0])
			return editWarehouses(ctx, cmd, func(snapshot *warehouse.Snapshot) (string, error) {
				if flags.Changed("email") {
					if err := snapshot.SetRecipient(code, email); err != nil {
						return "", err
					}
				}
				if flags.Changed("days") || flags.Changed("friday") {
					current, ok := snapshot.Rule(code)
					newDays, newFriday := current.DaysOffset, current.FridayOffset
					if flags.Changed("days") {
						newDays = days
						if !ok || !flags.Changed("friday") && current.FridayOffset == current.DaysOffset {
							newFriday = days
						}
					}
					if flags.Changed("friday") {
						newFriday = friday
					}
					if err := snapshot.SetOffsets(code, newDays, newFriday); err != nil {
						return "", err
					}
				}
				rule, _ := snapshot.Rule(code)
				return fmt.Sprintf("Warehouse %s: recipient %s, offset %d, Friday offset %d",
					rule.Code, orDash(rule.Recipient), rule.DaysOffset, rule.FridayOffset), nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Recipient address")
	cmd.Flags().IntVar(&days, "days", 0, "Days ahead of today on Monday to Thursday")
	cmd.Flags().IntVar(&friday, "friday", 0, "Days ahead of today on Fridays")
	return cmd
}

func newWarehouseRemoveCommand(ctx *commandContext) *cobra.Command {
	var recipientOnly bool
	cmd := &cobra.Command{
		Use:   "remove CODE",
		Short: "Remove a warehouse or only its recipient",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code := strings.TrimSpace(args[0])
			return editWarehouses(ctx, cmd, func(snapshot *warehouse.Snapshot) (string, error) {
				if recipientOnly {
					if !snapshot.RemoveRecipient(code) {
						return "", fmt.Errorf("warehouse %s has no recipient", code)
					}
					return fmt.Sprintf("Warehouse %s no longer receives reports", code), nil
				}
				if !snapshot.RemoveRule(code) {
					return "", fmt.Errorf("warehouse %s not found", code)
				}
				return fmt.Sprintf("Removed warehouse %s", code), nil
			})
		},
	}
	cmd.Flags().BoolVar(&recipientOnly, "recipient-only", false, "Keep the date rule, clear only the recipient")
	return cmd
}

func newWarehouseFolderCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "folder PATH",
		Short: "Set the folder scanned for report files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return editWarehouses(ctx, cmd, func(snapshot *warehouse.Snapshot) (string, error) {
				if err := snapshot.SetFolder(args[0]); err != nil {
					return "", err
				}
				message := fmt.Sprintf("Report folder set to %s", snapshot.ResolvedFolder())
				if info, err := os.Stat(snapshot.ResolvedFolder()); err != nil || !info.IsDir() {
					message += " (warning: not an accessible directory)"
				}
				return message, nil
			})
		},
	}
}

func newWarehouseSenderCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sender [ADDRESS]",
		Short: "Set the From address; without an argument the SMTP username is used",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			address := ""
			if len(args) == 1 {
				address = args[0]
			}
			return editWarehouses(ctx, cmd, func(snapshot *warehouse.Snapshot) (string, error) {
				if err := snapshot.SetSender(address); err != nil {
					return "", err
				}
				if snapshot.Sender == "" {
					return "Sender cleared; the SMTP username is used", nil
				}
				return fmt.Sprintf("Sender set to %s", snapshot.Sender), nil
			})
		},
	}
}

func newWarehouseScheduleCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule [HH:MM...]",
		Short: "Set the earliest send times; without arguments sending is allowed all day",
		RunE: func(cmd *cobra.Command, args []string) error {
			return editWarehouses(ctx, cmd, func(snapshot *warehouse.Snapshot) (string, error) {
				if err := snapshot.SetScheduleTimes(args); err != nil {
					return "", err
				}
				earliest, ok := snapshot.Earliest()
				if !ok {
					return "Schedule cleared; cycles send at any time of day", nil
				}
				return fmt.Sprintf("Schedule set to %s; cycles send from %02d:%02d",
					strings.Join(snapshot.ScheduleTimes, ", "), earliest/60, earliest%60), nil
			})
		},
	}
}

// editWarehouses loads the warehouse file, applies edit and saves it. A
// malformed file is never overwritten.
func editWarehouses(ctx *commandContext, cmd *cobra.Command, edit func(*warehouse.Snapshot) (string, error)) error {
	path := ctx.configValue().Paths.WarehouseConfig
	snapshot, err := warehouse.Load(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w; fix or remove the file before editing", err)
	}
	message, err := edit(&snapshot)
	if err != nil {
		return err
	}
	if err := warehouse.Save(path, snapshot); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), message)
	return nil
}

func orDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}
