package main

import (
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"employee-data-maintenance/internal/domain"
	"employee-data-maintenance/internal/repository"
	"employee-data-maintenance/internal/usecase"
	"employee-data-maintenance/migrations"
)

// migrateCmd はSQLマイグレーションの管理コマンド。
func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
		Long:  "Apply the numbered SQL files in MIGRATIONS_DIR (or the embedded set) and track them in schema_migrations",
	}
	cmd.AddCommand(migrateUpCmd(), migrateStatusCmd())
	return cmd
}

// migrationSource はMIGRATIONS_DIRが存在すればそれを、なければ組み込みのマイグレーションを返す。
func migrationSource() fs.FS {
	if info, err := os.Stat(cfg.MigrationsDir); err == nil && info.IsDir() {
		return os.DirFS(cfg.MigrationsDir)
	}
	return migrations.FS
}

func newMigrationService() (*usecase.MigrationService, func(), error) {
	db, closeDB, err := openDB()
	if err != nil {
		return nil, nil, err
	}
	migrationRepo := repository.NewMigrationRepository(db)
	return usecase.NewMigrationService(migrationRepo, db, migrationSource()), closeDB, nil
}

func migrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		Long:  "Apply all pending migrations to the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeDB, err := newMigrationService()
			if err != nil {
				return err
			}
			defer closeDB()

			applied, err := svc.ApplyMigrations(cmd.Context())
			out := cmd.OutOrStdout()
			for _, m := range applied {
				fmt.Fprintf(out, "Applied %s\n", m.FileName())
			}
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			if len(applied) == 0 {
				fmt.Fprintln(out, "No pending migrations.")
			} else {
				fmt.Fprintf(out, "Applied %d migration(s) successfully.\n", len(applied))
			}
			return nil
		},
	}
}

func migrateStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		Long:  "Show the status of all migrations (applied/pending)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeDB, err := newMigrationService()
			if err != nil {
				return err
			}
			defer closeDB()

			list, err := svc.GetMigrationStatus(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			if output == "json" {
				return printJSON(cmd.OutOrStdout(), list)
			}

			// テーブル形式で出力
			w := newTabWriter(cmd.OutOrStdout())
			fmt.Fprintln(w, "VERSION\tNAME\tSTATUS\tAPPLIED AT")
			fmt.Fprintln(w, "-------\t----\t------\t----------")
			for _, m := range list {
				appliedAt := "-"
				if m.AppliedAt != nil {
					appliedAt = m.AppliedAt.Format("2006-01-02 15:04:05")
				}
				status := "pending"
				if m.Status == domain.MigrationStatusApplied {
					status = "applied"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", m.Version, m.Name, status, appliedAt)
			}
			if err := w.Flush(); err != nil {
				return fmt.Errorf("failed to flush output: %w", err)
			}
			return nil
		},
	}
}
