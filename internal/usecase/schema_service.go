// Package usecase はアプリケーションのユースケースを実装する。
package usecase

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"employee-data-maintenance/internal/domain"
)

// SchemaReader はスキーマ参照のインターフェース。
type SchemaReader interface {
	RequireSQLite() error
	ListTables(ctx context.Context) ([]string, error)
	TableExists(ctx context.Context, table string) (bool, error)
	Columns(ctx context.Context, table string) ([]domain.Column, error)
	CountRows(ctx context.Context, table string) (int64, error)
	SampleRows(ctx context.Context, table string, limit int) ([]map[string]any, error)
}

// SchemaService はテーブル構造の確認と分析を提供する。
type SchemaService struct {
	repo SchemaReader
}

// NewSchemaService は新しいSchemaServiceを生成する。
func NewSchemaService(repo SchemaReader) *SchemaService {
	return &SchemaService{repo: repo}
}

// ListTables はユーザーテーブルと件数の一覧を返す。
func (s *SchemaService) ListTables(ctx context.Context) ([]domain.TableSummary, error) {
	if err := s.repo.RequireSQLite(); err != nil {
		return nil, err
	}

	names, err := s.repo.ListTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}

	summaries := make([]domain.TableSummary, 0, len(names))
	for _, name := range names {
		count, err := s.repo.CountRows(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("counting %s: %w", name, err)
		}
		summaries = append(summaries, domain.TableSummary{Name: name, RowCount: count})
	}
	return summaries, nil
}

// DescribeTable はカラム定義、件数、先頭sampleRows件を返す。
func (s *SchemaService) DescribeTable(ctx context.Context, table string, sampleRows int) (*domain.TableDescription, error) {
	if err := s.repo.RequireSQLite(); err != nil {
		return nil, err
	}
	if err := s.requireTable(ctx, table); err != nil {
		return nil, err
	}

	columns, err := s.repo.Columns(ctx, table)
	if err != nil {
		return nil, err
	}
	count, err := s.repo.CountRows(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("counting %s: %w", table, err)
	}
	samples, err := s.repo.SampleRows(ctx, table, sampleRows)
	if err != nil {
		return nil, fmt.Errorf("sampling %s: %w", table, err)
	}

	return &domain.TableDescription{
		Name:     table,
		Columns:  columns,
		RowCount: count,
		Samples:  samples,
	}, nil
}

// CheckTable は現在のテーブル構造をプランと比較する。
func (s *SchemaService) CheckTable(ctx context.Context, plan *domain.TablePlan) (*domain.DriftReport, error) {
	if err := s.repo.RequireSQLite(); err != nil {
		return nil, err
	}
	if err := s.requireTable(ctx, plan.Table); err != nil {
		return nil, err
	}

	columns, err := s.repo.Columns(ctx, plan.Table)
	if err != nil {
		return nil, err
	}
	return compareColumns(plan, columns), nil
}

// Analyze は全テーブルの件数と、テーブルが存在する各プランとの差分をまとめる。
func (s *SchemaService) Analyze(ctx context.Context, plans []*domain.TablePlan) (*domain.Analysis, error) {
	tables, err := s.ListTables(ctx)
	if err != nil {
		return nil, err
	}

	analysis := &domain.Analysis{Tables: tables}
	for _, plan := range plans {
		exists, err := s.repo.TableExists(ctx, plan.Table)
		if err != nil {
			return nil, fmt.Errorf("checking %s: %w", plan.Table, err)
		}
		if !exists {
			analysis.Skipped = append(analysis.Skipped, plan.Name)
			continue
		}
		columns, err := s.repo.Columns(ctx, plan.Table)
		if err != nil {
			return nil, err
		}
		analysis.Drift = append(analysis.Drift, compareColumns(plan, columns))
	}
	return analysis, nil
}

func (s *SchemaService) requireTable(ctx context.Context, table string) error {
	exists, err := s.repo.TableExists(ctx, table)
	if err != nil {
		return fmt.Errorf("checking table %s: %w", table, err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", domain.ErrTableNotFound, table)
	}
	return nil
}

// compareColumns はプランと実カラムの差分を求める。カラム名は大文字小文字を区別しない。
func compareColumns(plan *domain.TablePlan, columns []domain.Column) *domain.DriftReport {
	report := &domain.DriftReport{Plan: plan.Name, Table: plan.Table}

	live := make(map[string]domain.Column, len(columns))
	for _, c := range columns {
		live[strings.ToUpper(c.Name)] = c
	}

	for _, want := range plan.Columns {
		got, ok := live[strings.ToUpper(want.Name)]
		if !ok {
			report.Missing = append(report.Missing, want.Name)
			continue
		}
		if normalizeType(want.Type) != normalizeType(got.Type) {
			report.Diffs = append(report.Diffs, domain.ColumnDiff{
				Column: want.Name, Field: "type",
				Expected: strings.ToUpper(want.Type), Actual: got.Type,
			})
		}
		if want.NotNull != got.NotNull {
			report.Diffs = append(report.Diffs, domain.ColumnDiff{
				Column: want.Name, Field: "not_null",
				Expected: fmt.Sprint(want.NotNull), Actual: fmt.Sprint(got.NotNull),
			})
		}
		if want.PrimaryKey != got.PrimaryKey {
			report.Diffs = append(report.Diffs, domain.ColumnDiff{
				Column: want.Name, Field: "primary_key",
				Expected: fmt.Sprint(want.PrimaryKey), Actual: fmt.Sprint(got.PrimaryKey),
			})
		}
	}

	for _, c := range columns {
		if _, ok := plan.Column(c.Name); !ok {
			report.Unexpected = append(report.Unexpected, c.Name)
		}
	}
	return report
}

var typeSpaces = regexp.MustCompile(`\s*([(),])\s*|\s+`)

// normalizeType は "varchar (20)" と "VARCHAR(20)" を同一視する。
func normalizeType(t string) string {
	t = strings.ToUpper(strings.TrimSpace(t))
	return typeSpaces.ReplaceAllStringFunc(t, func(m string) string {
		if trimmed := strings.TrimSpace(m); trimmed != "" {
			return trimmed
		}
		return " "
	})
}
