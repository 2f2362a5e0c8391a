package domain

import (
	"fmt"
	"strings"
)

// ColumnSpec は再構築後のカラム定義を表す。
type ColumnSpec struct {
	Name          string `yaml:"name"`
	Type          string `yaml:"type"`
	NotNull       bool   `yaml:"not_null"`
	PrimaryKey    bool   `yaml:"primary_key"`
	Autoincrement bool   `yaml:"autoincrement"`
	Default       string `yaml:"default"` // SQLリテラルをそのまま埋め込む
}

// ForeignKey は外部キー制約を表す。
type ForeignKey struct {
	Column     string `yaml:"column"`
	References string `yaml:"references"` // 例: USUARIO(ID_USUARIO)
}

// TablePlan はテーブル再構築の目標構造を表す。
type TablePlan struct {
	Name        string         `yaml:"name"`
	Table       string         `yaml:"table"`
	Description string         `yaml:"description"`
	Columns     []ColumnSpec   `yaml:"columns"`
	ForeignKeys []ForeignKey   `yaml:"foreign_keys"`
	CopyColumns []string       `yaml:"copy_columns"`
	Probe       map[string]any `yaml:"probe"`
}

// Column は名前（大文字小文字を区別しない）でカラム定義を返す。
func (p *TablePlan) Column(name string) (ColumnSpec, bool) {
	for _, c := range p.Columns {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return ColumnSpec{}, false
}

// Validate はプラン定義の整合性を検証する。
func (p *TablePlan) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidPlan)
	}
	if strings.TrimSpace(p.Table) == "" {
		return fmt.Errorf("%w: %s: table is required", ErrInvalidPlan, p.Name)
	}
	if len(p.Columns) == 0 {
		return fmt.Errorf("%w: %s: at least one column is required", ErrInvalidPlan, p.Name)
	}

	seen := make(map[string]bool, len(p.Columns))
	primaryKeys := 0
	for _, c := range p.Columns {
		if strings.TrimSpace(c.Name) == "" || strings.TrimSpace(c.Type) == "" {
			return fmt.Errorf("%w: %s: column name and type are required", ErrInvalidPlan, p.Name)
		}
		key := strings.ToUpper(c.Name)
		if seen[key] {
			return fmt.Errorf("%w: %s: duplicate column %s", ErrInvalidPlan, p.Name, c.Name)
		}
		seen[key] = true
		if c.PrimaryKey {
			primaryKeys++
		}
		if c.Autoincrement && (!c.PrimaryKey || !strings.EqualFold(c.Type, "INTEGER")) {
			return fmt.Errorf("%w: %s: AUTOINCREMENT requires INTEGER PRIMARY KEY on %s", ErrInvalidPlan, p.Name, c.Name)
		}
	}
	if primaryKeys > 1 {
		return fmt.Errorf("%w: %s: at most one primary key column is supported", ErrInvalidPlan, p.Name)
	}

	for _, fk := range p.ForeignKeys {
		if !seen[strings.ToUpper(fk.Column)] {
			return fmt.Errorf("%w: %s: foreign key column %s is not declared", ErrInvalidPlan, p.Name, fk.Column)
		}
		if strings.TrimSpace(fk.References) == "" {
			return fmt.Errorf("%w: %s: foreign key %s has no reference", ErrInvalidPlan, p.Name, fk.Column)
		}
	}
	for _, name := range p.CopyColumns {
		if !seen[strings.ToUpper(name)] {
			return fmt.Errorf("%w: %s: copy column %s is not declared", ErrInvalidPlan, p.Name, name)
		}
	}
	for name := range p.Probe {
		if !seen[strings.ToUpper(name)] {
			return fmt.Errorf("%w: %s: probe column %s is not declared", ErrInvalidPlan, p.Name, name)
		}
	}
	return nil
}

// CreateSQL はプランからCREATE TABLE文を生成する。
func (p *TablePlan) CreateSQL() string {
	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	b.WriteString(QuoteIdent(p.Table))
	b.WriteString(" (\n")

	lines := make([]string, 0, len(p.Columns)+len(p.ForeignKeys))
	for _, c := range p.Columns {
		line := "    " + QuoteIdent(c.Name) + " " + strings.ToUpper(c.Type)
		if c.PrimaryKey {
			line += " PRIMARY KEY"
			if c.Autoincrement {
				line += " AUTOINCREMENT"
			}
		}
		if c.NotNull {
			line += " NOT NULL"
		}
		if c.Default != "" {
			line += " DEFAULT " + c.Default
		}
		lines = append(lines, line)
	}
	for _, fk := range p.ForeignKeys {
		lines = append(lines, "    FOREIGN KEY ("+QuoteIdent(fk.Column)+") REFERENCES "+fk.References)
	}

	b.WriteString(strings.Join(lines, ",\n"))
	b.WriteString("\n)")
	return b.String()
}

// QuoteIdent はSQLite識別子をダブルクォートで囲む。
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
