package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"employee-data-maintenance/internal/middleware"
	"employee-data-maintenance/internal/repository"
	"employee-data-maintenance/internal/usecase"
)

func newRebuildService() (*usecase.RebuildService, func(), error) {
	db, closeDB, err := openDB()
	if err != nil {
		return nil, nil, err
	}
	svc := usecase.NewRebuildService(repository.NewSchemaRepository(db), repository.NewRunRepository(db))
	return svc, closeDB, nil
}

// rebuildCmd はプランに従ったテーブル再構築コマンド。
func rebuildCmd() *cobra.Command {
	var (
		opts    usecase.RebuildOptions
		noProbe bool
		dryRun  bool
	)
	cmd := &cobra.Command{
		Use:   "rebuild PLAN",
		Short: "Back up, drop, recreate and repopulate a table according to a plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cat, err := loadCatalog()
			if err != nil {
				return err
			}
			plan, err := cat.Get(args[0])
			if err != nil {
				return err
			}
			svc, closeDB, err := newRebuildService()
			if err != nil {
				return err
			}
			defer closeDB()

			opts.SkipProbe = noProbe
			preview, err := svc.PlanRebuild(ctx, plan, opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if dryRun && output == "json" {
				return printJSON(out, preview)
			}
			if output != "json" {
				fmt.Fprintf(out, "Plan %s: rebuild %s (%d rows)\n", preview.Plan, preview.Table, preview.RowCount)
				fmt.Fprintf(out, "  backup table:    %s\n", preview.BackupTable)
				fmt.Fprintf(out, "  copy columns:    %s\n", joinOrDash(preview.CopyColumns))
				fmt.Fprintf(out, "  dropped columns: %s\n", joinOrDash(preview.DroppedColumns))
				fmt.Fprintf(out, "  added columns:   %s\n", joinOrDash(preview.AddedColumns))
				fmt.Fprintf(out, "  kept objects:    %s\n", joinOrDash(preview.KeptObjects))
				fmt.Fprintf(out, "  skipped objects: %s\n", joinOrDash(preview.SkippedObjects))
				fmt.Fprintf(out, "\n%s\n\n", preview.CreateSQL)
			}
			if dryRun {
				fmt.Fprintln(out, "Dry run: no changes made.")
				return nil
			}

			ok, err := confirm(cmd, fmt.Sprintf("Se recreará la tabla %s.", plan.Table))
			if err != nil || !ok {
				return err
			}

			result, err := svc.Rebuild(ctx, plan, opts)
			middleware.WriteAuditLog(ctx, "REBUILD", plan.Table, auditResult(err))
			if err != nil {
				return fmt.Errorf("rebuild of %s rolled back: %w", plan.Table, err)
			}

			if output == "json" {
				return printJSON(out, result)
			}
			fmt.Fprintf(out, "Rebuilt %s: copied %d/%d rows\n", result.Table, result.CopiedRows, result.BackupRows)
			if result.Probed {
				fmt.Fprintln(out, "Probe insert succeeded.")
			}
			if len(result.RestoredObjects) > 0 {
				fmt.Fprintf(out, "Recreated: %s\n", strings.Join(result.RestoredObjects, ", "))
			}
			if len(result.SkippedObjects) > 0 {
				fmt.Fprintf(out, "Not recreated: %s\n", strings.Join(result.SkippedObjects, ", "))
			}
			if result.BackupKept {
				fmt.Fprintf(out, "Backup kept as %s.\n", result.BackupTable)
			}
			fmt.Fprintln(out)
			if err := printColumns(out, result.Columns); err != nil {
				return err
			}
			if result.RunID != "" {
				fmt.Fprintf(out, "\nRun ID: %s\n", result.RunID)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would change without modifying the database")
	cmd.Flags().BoolVar(&opts.KeepBackup, "keep-backup", false, "Keep the backup table after a successful rebuild")
	cmd.Flags().BoolVar(&noProbe, "no-probe", false, "Skip the probe insert")
	cmd.Flags().StringVar(&opts.BackupSuffix, "backup-suffix", usecase.DefaultBackupSuffix, "Suffix of the backup table name")
	return cmd
}

// backupCmd はテーブルの複製コマンド。
func backupCmd() *cobra.Command {
	var suffix string
	cmd := &cobra.Command{
		Use:   "backup TABLE",
		Short: "Copy a table to <TABLE><suffix>",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, closeDB, err := newRebuildService()
			if err != nil {
				return err
			}
			defer closeDB()

			backup, rows, err := svc.Backup(ctx, args[0], suffix)
			middleware.WriteAuditLog(ctx, "BACKUP", args[0], auditResult(err))
			if err != nil {
				return err
			}
			if output == "json" {
				return printJSON(cmd.OutOrStdout(), map[string]any{"table": args[0], "backup": backup, "rows": rows})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Backed up %s to %s (%d rows)\n", args[0], backup, rows)
			return nil
		},
	}
	cmd.Flags().StringVar(&suffix, "backup-suffix", usecase.DefaultBackupSuffix, "Suffix of the backup table name")
	return cmd
}

// restoreCmd はバックアップからの復元コマンド。
func restoreCmd() *cobra.Command {
	var suffix string
	cmd := &cobra.Command{
		Use:   "restore TABLE",
		Short: "Drop TABLE and rename <TABLE><suffix> back to TABLE",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			table := args[0]
			ok, err := confirm(cmd, fmt.Sprintf("Se eliminará %s y se restaurará desde %s%s.", table, table, suffix))
			if err != nil || !ok {
				return err
			}

			svc, closeDB, err := newRebuildService()
			if err != nil {
				return err
			}
			defer closeDB()

			err = svc.Restore(ctx, table, suffix)
			middleware.WriteAuditLog(ctx, "RESTORE", table, auditResult(err))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restored %s from %s%s\n", table, table, suffix)
			return nil
		},
	}
	cmd.Flags().StringVar(&suffix, "backup-suffix", usecase.DefaultBackupSuffix, "Suffix of the backup table name")
	return cmd
}

// plansCmd はプラン一覧、またはプランのDDLを表示する。
func plansCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plans [PLAN]",
		Short: "List rebuild plans, or show the DDL of one plan",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := loadCatalog()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if len(args) == 1 {
				plan, err := cat.Get(args[0])
				if err != nil {
					return err
				}
				if output == "json" {
					return printJSON(out, plan)
				}
				fmt.Fprintf(out, "-- %s: %s\n%s\n", plan.Name, plan.Description, plan.CreateSQL())
				return nil
			}

			plans := cat.Plans()
			if output == "json" {
				return printJSON(out, plans)
			}
			tw := newTabWriter(out)
			fmt.Fprintln(tw, "PLAN\tTABLE\tCOLUMNS\tDESCRIPTION")
			for _, p := range plans {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", p.Name, p.Table, len(p.Columns), p.Description)
			}
			return tw.Flush()
		},
	}
}
