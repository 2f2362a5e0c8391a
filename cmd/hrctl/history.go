package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"employee-data-maintenance/internal/repository"
)

// historyCmd はメンテナンス実行履歴を新しい順に表示する。
func historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded rebuild, restore and repair runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, closeDB, err := openDB()
			if err != nil {
				return err
			}
			defer closeDB()

			runs, err := repository.NewRunRepository(db).FindRecent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if output == "json" {
				return printJSON(cmd.OutOrStdout(), runs)
			}

			tw := newTabWriter(cmd.OutOrStdout())
			fmt.Fprintln(tw, "STARTED AT\tOPERATION\tTARGET\tSTATUS\tDURATION\tDETAIL")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					r.StartedAt.Format("2006-01-02 15:04:05"),
					r.Operation, r.Target, r.Status,
					r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond), r.Detail)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to show")
	return cmd
}
