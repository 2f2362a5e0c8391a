package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"employee-data-maintenance/internal/domain"
)

// IsAffirmative は確認プロンプトへの回答が肯定かどうかを返す。
func IsAffirmative(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "s", "si", "sí", "y", "yes":
		return true
	}
	return false
}

// confirm は --yes が指定されていなければ "¿Continuar? (s/N)" を標準エラーに表示して回答を読む。
func confirm(cmd *cobra.Command, message string) (bool, error) {
	if assumeYes {
		return true, nil
	}
	out := cmd.ErrOrStderr()
	fmt.Fprintln(out, message)
	fmt.Fprint(out, "¿Continuar? (s/N): ")

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("reading answer: %w", err)
	}
	if !IsAffirmative(line) {
		fmt.Fprintln(out, "Operación cancelada.")
		return false, nil
	}
	return true, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
}

func auditResult(err error) string {
	if err != nil {
		return "FAILED"
	}
	return "SUCCESS"
}

func printColumns(w io.Writer, columns []domain.Column) error {
	tw := newTabWriter(w)
	fmt.Fprintln(tw, "CID\tNAME\tTYPE\tNOT NULL\tDEFAULT\tPK")
	for _, c := range columns {
		def := "-"
		if c.DefaultValue != nil {
			def = *c.DefaultValue
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%v\t%s\t%v\n", c.CID, c.Name, c.Type, c.NotNull, def, c.PrimaryKey)
	}
	return tw.Flush()
}

func printDrift(w io.Writer, r *domain.DriftReport) {
	if r.InSync() {
		fmt.Fprintf(w, "%s (plan %s): in sync\n", r.Table, r.Plan)
		return
	}
	fmt.Fprintf(w, "%s (plan %s): out of sync\n", r.Table, r.Plan)
	for _, name := range r.Missing {
		fmt.Fprintf(w, "  missing column:    %s\n", name)
	}
	for _, name := range r.Unexpected {
		fmt.Fprintf(w, "  unexpected column: %s\n", name)
	}
	for _, d := range r.Diffs {
		fmt.Fprintf(w, "  %s.%s: expected %s, got %s\n", d.Column, d.Field, d.Expected, d.Actual)
	}
}

func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
