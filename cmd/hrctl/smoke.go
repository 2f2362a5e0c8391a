package main

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"employee-data-maintenance/internal/infra"
	"employee-data-maintenance/internal/smoke"
)

// smokeCmd は稼働中のバックエンドに対するスモークテストコマンド。
func smokeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "Run HTTP smoke suites against a running backend and frontend",
	}
	cmd.AddCommand(smokeListCmd(), smokeRunCmd())
	return cmd
}

func loadSuites(suiteFile string) (*smoke.Registry, error) {
	reg, err := smoke.NewRegistry()
	if err != nil {
		return nil, err
	}
	if suiteFile != "" {
		if err := reg.LoadFile(suiteFile); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func smokeListCmd() *cobra.Command {
	var suiteFile string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List smoke suites",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := loadSuites(suiteFile)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if output == "json" {
				return printJSON(out, reg.Suites())
			}
			tw := newTabWriter(out)
			fmt.Fprintln(tw, "SUITE\tCASES\tDESCRIPTION")
			for _, s := range reg.Suites() {
				fmt.Fprintf(tw, "%s\t%d\t%s\n", s.Name, len(s.Cases), s.Description)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&suiteFile, "suite-file", "", "YAML file with additional suites")
	return cmd
}

func smokeRunCmd() *cobra.Command {
	var (
		suiteFile string
		all       bool
		userID    string
		token     string
	)
	cmd := &cobra.Command{
		Use:   "run SUITE...",
		Short: "Run one or more smoke suites",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := loadSuites(suiteFile)
			if err != nil {
				return err
			}

			var suites []*smoke.Suite
			if all {
				suites = reg.Suites()
			} else {
				if len(args) == 0 {
					return fmt.Errorf("specify at least one suite or --all")
				}
				for _, name := range args {
					s, err := reg.Get(name)
					if err != nil {
						return err
					}
					suites = append(suites, s)
				}
			}

			vars := map[string]string{smoke.VarUserID: userID}
			if token != "" {
				vars[smoke.VarToken] = token
			}
			runner := smoke.NewRunner(infra.NewHTTPClient(timeout), apiURL, frontendURL, vars)

			out := cmd.OutOrStdout()
			var reports []*smoke.Report
			failed := 0
			for _, s := range suites {
				report := runner.Run(cmd.Context(), s)
				reports = append(reports, report)
				failed += report.Failed
				slog.InfoContext(cmd.Context(), "smoke suite finished",
					"run_id", report.RunID.String(),
					"suite", report.Suite,
					"passed", report.Passed,
					"failed", report.Failed,
				)
				if output != "json" {
					printReport(out, report)
				}
			}
			if output == "json" {
				if err := printJSON(out, reports); err != nil {
					return err
				}
			}

			if failed > 0 {
				return fmt.Errorf("%d smoke case(s) failed", failed)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&suiteFile, "suite-file", "", "YAML file with additional suites")
	cmd.Flags().BoolVar(&all, "all", false, "Run every suite")
	cmd.Flags().StringVar(&userID, "user-id", "1", "Value of {{idUsuario}}")
	cmd.Flags().StringVar(&token, "token", "", "Bearer token for authenticated cases (or capture it in the suite)")
	return cmd
}

func printReport(w io.Writer, r *smoke.Report) {
	fmt.Fprintf(w, "== %s (run %s)\n", r.Suite, r.RunID)
	for _, c := range r.Results {
		mark := "PASS"
		if !c.Passed {
			mark = "FAIL"
		}
		fmt.Fprintf(w, "  [%s] %-28s %-6s %3d %8s  %s\n", mark, c.Name, c.Method, c.Status, c.Duration.Round(time.Millisecond), c.URL)
		if c.Message != "" {
			fmt.Fprintf(w, "         %s\n", c.Message)
		}
	}
	fmt.Fprintf(w, "  %d passed, %d failed in %s\n\n", r.Passed, r.Failed, r.Duration.Round(time.Millisecond))
}
