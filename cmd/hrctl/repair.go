package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"employee-data-maintenance/internal/middleware"
	"employee-data-maintenance/internal/repository"
	"employee-data-maintenance/internal/usecase"
)

// repairCmd はデータ補正コマンド。
func repairCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repair",
		Short: "Fix known data problems in place",
	}
	cmd.AddCommand(repairUserIDsCmd(), repairDuplicatesCmd(), repairDatesCmd(), repairDropLegacyCmd())
	return cmd
}

func newRepairService() (*usecase.RepairService, func(), error) {
	db, closeDB, err := openDB()
	if err != nil {
		return nil, nil, err
	}
	svc := usecase.NewRepairService(
		repository.NewRepairRepository(db),
		repository.NewSchemaRepository(db),
		repository.NewRunRepository(db),
	)
	return svc, closeDB, nil
}

func repairUserIDsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "user-ids",
		Short: "Assign ID_USUARIO to USUARIO rows where it is NULL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ok, err := confirm(cmd, "Se asignarán IDs a los usuarios sin ID_USUARIO.")
			if err != nil || !ok {
				return err
			}
			svc, closeDB, err := newRepairService()
			if err != nil {
				return err
			}
			defer closeDB()

			n, err := svc.AssignMissingUserIDs(ctx)
			middleware.WriteAuditLog(ctx, "REPAIR_USER_IDS", "USUARIO", auditResult(err))
			if err != nil {
				return err
			}
			if output == "json" {
				return printJSON(cmd.OutOrStdout(), map[string]int64{"updated": n})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Assigned ID_USUARIO to %d row(s)\n", n)
			return nil
		},
	}
}

func repairDuplicatesCmd() *cobra.Command {
	var testDocument string
	cmd := &cobra.Command{
		Use:   "duplicates",
		Short: "Delete the test document row and duplicated USUARIO rows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ok, err := confirm(cmd, "Se eliminarán usuarios duplicados y de prueba.")
			if err != nil || !ok {
				return err
			}
			svc, closeDB, err := newRepairService()
			if err != nil {
				return err
			}
			defer closeDB()

			result, err := svc.RemoveDuplicateUsers(ctx, testDocument)
			middleware.WriteAuditLog(ctx, "REPAIR_DUPLICATES", "USUARIO", auditResult(err))
			if err != nil {
				return err
			}
			if output == "json" {
				return printJSON(cmd.OutOrStdout(), result)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d test row(s) and %d duplicate row(s)\n",
				result.TestRowsDeleted, result.DuplicateRowsDeleted)
			return nil
		},
	}
	cmd.Flags().StringVar(&testDocument, "test-document", usecase.DefaultTestDocument, "DOCUMENTO of test rows to delete (empty to skip)")
	return cmd
}

func repairDatesCmd() *cobra.Command {
	var (
		table     string
		column    string
		sentinels []string
	)
	cmd := &cobra.Command{
		Use:   "dates",
		Short: "Set invalid date values to NULL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ok, err := confirm(cmd, fmt.Sprintf("Se pondrán en NULL las fechas inválidas de %s.%s.", table, column))
			if err != nil || !ok {
				return err
			}
			svc, closeDB, err := newRepairService()
			if err != nil {
				return err
			}
			defer closeDB()

			n, err := svc.NullifyInvalidDates(ctx, table, column, sentinels)
			middleware.WriteAuditLog(ctx, "REPAIR_DATES", table+"."+column, auditResult(err))
			if err != nil {
				return err
			}
			if output == "json" {
				return printJSON(cmd.OutOrStdout(), map[string]int64{"updated": n})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set %d value(s) of %s.%s to NULL\n", n, table, column)
			return nil
		},
	}
	cmd.Flags().StringVar(&table, "table", "FAMILIA", "Table to repair")
	cmd.Flags().StringVar(&column, "column", "FECHA_NACIMIENTO", "Date column to repair")
	cmd.Flags().StringSliceVar(&sentinels, "sentinel", []string{usecase.DefaultInvalidDate}, "Invalid values to replace with NULL")
	return cmd
}

func repairDropLegacyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drop-legacy [TABLE...]",
		Short: "Drop tables left behind by older entity versions",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			names := args
			if len(names) == 0 {
				names = usecase.DefaultLegacyTables
			}
			ok, err := confirm(cmd, "Se eliminarán las tablas: "+strings.Join(names, ", "))
			if err != nil || !ok {
				return err
			}
			svc, closeDB, err := newRepairService()
			if err != nil {
				return err
			}
			defer closeDB()

			dropped, err := svc.DropLegacyTables(ctx, names)
			middleware.WriteAuditLog(ctx, "REPAIR_DROP_LEGACY", strings.Join(names, ","), auditResult(err))
			if err != nil {
				return err
			}
			if output == "json" {
				return printJSON(cmd.OutOrStdout(), map[string][]string{"dropped": dropped})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Dropped: %s\n", joinOrDash(dropped))
			return nil
		},
	}
}
