package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"employee-data-maintenance/internal/repository"
	"employee-data-maintenance/internal/usecase"
)

// schemaCmd はテーブル構造の確認コマンド。
func schemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Inspect tables and compare them with rebuild plans",
	}
	cmd.AddCommand(schemaTablesCmd(), schemaDescribeCmd(), schemaCheckCmd(), schemaAnalyzeCmd())
	return cmd
}

func newSchemaService() (*usecase.SchemaService, func(), error) {
	db, closeDB, err := openDB()
	if err != nil {
		return nil, nil, err
	}
	return usecase.NewSchemaService(repository.NewSchemaRepository(db)), closeDB, nil
}

func schemaTablesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List tables with row counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeDB, err := newSchemaService()
			if err != nil {
				return err
			}
			defer closeDB()

			tables, err := svc.ListTables(cmd.Context())
			if err != nil {
				return err
			}
			if output == "json" {
				return printJSON(cmd.OutOrStdout(), tables)
			}

			tw := newTabWriter(cmd.OutOrStdout())
			fmt.Fprintln(tw, "TABLE\tROWS")
			for _, t := range tables {
				fmt.Fprintf(tw, "%s\t%d\n", t.Name, t.RowCount)
			}
			return tw.Flush()
		},
	}
}

func schemaDescribeCmd() *cobra.Command {
	var sample int
	cmd := &cobra.Command{
		Use:   "describe TABLE",
		Short: "Show columns, row count and sample rows of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeDB, err := newSchemaService()
			if err != nil {
				return err
			}
			defer closeDB()

			desc, err := svc.DescribeTable(cmd.Context(), args[0], sample)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if output == "json" {
				return printJSON(out, desc)
			}

			fmt.Fprintf(out, "Table %s (%d rows)\n\n", desc.Name, desc.RowCount)
			if err := printColumns(out, desc.Columns); err != nil {
				return err
			}
			if len(desc.Samples) == 0 {
				return nil
			}
			fmt.Fprintf(out, "\nFirst %d rows:\n", len(desc.Samples))
			for i, row := range desc.Samples {
				keys := make([]string, 0, len(row))
				for k := range row {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				fmt.Fprintf(out, "  [%d]", i+1)
				for _, k := range keys {
					fmt.Fprintf(out, " %s=%v", k, row[k])
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&sample, "sample", 5, "Number of sample rows to show")
	return cmd
}

func schemaCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check PLAN",
		Short: "Compare a table with its rebuild plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := loadCatalog()
			if err != nil {
				return err
			}
			plan, err := cat.Get(args[0])
			if err != nil {
				return err
			}
			svc, closeDB, err := newSchemaService()
			if err != nil {
				return err
			}
			defer closeDB()

			report, err := svc.CheckTable(cmd.Context(), plan)
			if err != nil {
				return err
			}
			if output == "json" {
				if err := printJSON(cmd.OutOrStdout(), report); err != nil {
					return err
				}
			} else {
				printDrift(cmd.OutOrStdout(), report)
			}
			if !report.InSync() {
				return fmt.Errorf("%s does not match plan %s", report.Table, report.Plan)
			}
			return nil
		},
	}
}

func schemaAnalyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze",
		Short: "List all tables and compare every planned table with its plan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := loadCatalog()
			if err != nil {
				return err
			}
			svc, closeDB, err := newSchemaService()
			if err != nil {
				return err
			}
			defer closeDB()

			analysis, err := svc.Analyze(cmd.Context(), cat.Plans())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if output == "json" {
				return printJSON(out, analysis)
			}

			tw := newTabWriter(out)
			fmt.Fprintln(tw, "TABLE\tROWS")
			for _, t := range analysis.Tables {
				fmt.Fprintf(tw, "%s\t%d\n", t.Name, t.RowCount)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintln(out)
			for _, r := range analysis.Drift {
				printDrift(out, r)
			}
			if len(analysis.Skipped) > 0 {
				fmt.Fprintf(out, "\nSkipped plans (table missing): %s\n", joinOrDash(analysis.Skipped))
			}
			return nil
		},
	}
}
