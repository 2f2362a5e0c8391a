// Package main はメンテナンスCLIのエントリポイント。
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"gorm.io/gorm"

	"employee-data-maintenance/config"
	"employee-data-maintenance/internal/catalog"
	"employee-data-maintenance/internal/infra"
)

const version = "1.0.0"

var (
	dbPath      string
	apiURL      string
	frontendURL string
	output      string
	timeout     time.Duration
	assumeYes   bool
	planFile    string

	cfg            *config.Config
	tracerProvider *sdktrace.TracerProvider
)

func main() {
	err := newRootCmd().Execute()

	if tracerProvider != nil {
		if shutdownErr := tracerProvider.Shutdown(context.Background()); shutdownErr != nil {
			slog.Error("failed to shutdown tracer", "error", shutdownErr)
		}
	}
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "hrctl",
		Short:        "Maintenance CLI for the employee data update application",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// .envファイルを読み込む（存在しない場合は無視）
			_ = godotenv.Load()

			c, err := config.Load()
			if err != nil {
				return err
			}
			cfg = c
			if dbPath == "" {
				dbPath = cfg.DatabaseURL
			}
			if apiURL == "" {
				apiURL = cfg.APIURL
			}
			if frontendURL == "" {
				frontendURL = cfg.FrontendURL
			}
			if output != "text" && output != "json" {
				return fmt.Errorf("--output must be text or json, got %q", output)
			}

			tp, err := infra.InitTracer(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("failed to init tracer: %w", err)
			}
			tracerProvider = tp

			// レポートは標準出力、ログは標準エラー
			infra.SetupLogger(cmd.ErrOrStderr(), infra.LogFormatText, infra.ParseLevel(cfg.LogLevel))
			return nil
		},
	}

	// グローバルフラグ
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path or mysql:// DSN (or set DATABASE_URL)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "Backend base URL (or set HRCTL_API_URL)")
	rootCmd.PersistentFlags().StringVar(&frontendURL, "frontend-url", "", "Frontend base URL (or set HRCTL_FRONTEND_URL)")
	rootCmd.PersistentFlags().StringVar(&output, "output", "text", "Output format: text, json")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "HTTP request timeout")
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "Skip confirmation prompts")
	rootCmd.PersistentFlags().StringVar(&planFile, "plan-file", "", "YAML file with additional rebuild plans")

	// サブコマンド登録
	rootCmd.AddCommand(schemaCmd())
	rootCmd.AddCommand(rebuildCmd())
	rootCmd.AddCommand(backupCmd())
	rootCmd.AddCommand(restoreCmd())
	rootCmd.AddCommand(plansCmd())
	rootCmd.AddCommand(repairCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(smokeCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}

// versionCmd はバージョン情報を表示する。
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "hrctl version %s\n", version)
		},
	}
}

// openDB はデータベースを開き、閉じる関数とともに返す。
// SQLiteファイルは事前に存在している必要がある。
func openDB() (*gorm.DB, func(), error) {
	if dbPath == "" {
		return nil, nil, fmt.Errorf("--db is required (or set DATABASE_URL)")
	}
	if !strings.HasPrefix(dbPath, "mysql://") && !strings.HasPrefix(dbPath, "file:") {
		if _, err := os.Stat(dbPath); err != nil {
			return nil, nil, fmt.Errorf("database file %s not found: %w", dbPath, err)
		}
	}

	db, err := infra.NewDB(dbPath, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	closeFn := func() {
		if err := infra.CloseDB(db); err != nil {
			slog.Warn("failed to close database", "error", err)
		}
	}
	return db, closeFn, nil
}

// loadCatalog は組み込みプランと --plan-file のプランを読み込む。
func loadCatalog() (*catalog.Catalog, error) {
	cat, err := catalog.New()
	if err != nil {
		return nil, err
	}
	if planFile != "" {
		plans, err := catalog.LoadFile(planFile)
		if err != nil {
			return nil, err
		}
		cat.Merge(plans)
	}
	return cat, nil
}
