package domain

import (
	"errors"
	"strings"
	"testing"
)

func vehiculoPlan() *TablePlan {
	return &TablePlan{
		Name:  "vehiculo",
		Table: "VEHICULO",
		Columns: []ColumnSpec{
			{Name: "ID_VEHICULO", Type: "INTEGER", PrimaryKey: true, Autoincrement: true},
			{Name: "ID_USUARIO", Type: "INTEGER", NotNull: true},
			{Name: "MARCA", Type: "TEXT", NotNull: true},
			{Name: "VERSION", Type: "INTEGER", Default: "1"},
		},
		ForeignKeys: []ForeignKey{{Column: "ID_USUARIO", References: "USUARIO(ID_USUARIO)"}},
		Probe:       map[string]any{"ID_USUARIO": 999, "MARCA": "Toyota"},
	}
}

func TestTablePlan_CreateSQL(t *testing.T) {
	got := vehiculoPlan().CreateSQL()
	want := `CREATE TABLE "VEHICULO" (
    "ID_VEHICULO" INTEGER PRIMARY KEY AUTOINCREMENT,
    "ID_USUARIO" INTEGER NOT NULL,
    "MARCA" TEXT NOT NULL,
    "VERSION" INTEGER DEFAULT 1,
    FOREIGN KEY ("ID_USUARIO") REFERENCES USUARIO(ID_USUARIO)
)`
	if got != want {
		t.Errorf("unexpected DDL:\n%s\nwant:\n%s", got, want)
	}
}

func TestTablePlan_Validate(t *testing.T) {
	if err := vehiculoPlan().Validate(); err != nil {
		t.Fatalf("expected valid plan, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(p *TablePlan)
		want   string
	}{
		{"missing table", func(p *TablePlan) { p.Table = "" }, "table is required"},
		{"no columns", func(p *TablePlan) { p.Columns = nil }, "at least one column"},
		{"duplicate column", func(p *TablePlan) {
			p.Columns = append(p.Columns, ColumnSpec{Name: "marca", Type: "TEXT"})
		}, "duplicate column"},
		{"autoincrement on text", func(p *TablePlan) {
			p.Columns[0].Type = "TEXT"
		}, "AUTOINCREMENT"},
		{"two primary keys", func(p *TablePlan) {
			p.Columns[1].PrimaryKey = true
		}, "at most one primary key"},
		{"unknown fk column", func(p *TablePlan) {
			p.ForeignKeys[0].Column = "ID_OTRO"
		}, "foreign key column"},
		{"unknown copy column", func(p *TablePlan) {
			p.CopyColumns = []string{"PLACA"}
		}, "copy column"},
		{"unknown probe column", func(p *TablePlan) {
			p.Probe["PLACA"] = "ABC123"
		}, "probe column"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := vehiculoPlan()
			tt.mutate(p)
			err := p.Validate()
			if !errors.Is(err, ErrInvalidPlan) {
				t.Fatalf("want ErrInvalidPlan, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("want error containing %q, got %q", tt.want, err.Error())
			}
		})
	}
}

func TestTablePlan_Column(t *testing.T) {
	p := vehiculoPlan()
	c, ok := p.Column("marca")
	if !ok {
		t.Fatal("expected MARCA to be found case-insensitively")
	}
	if c.Name != "MARCA" {
		t.Errorf("want MARCA, got %s", c.Name)
	}
	if _, ok := p.Column("PLACA"); ok {
		t.Error("expected PLACA to be absent")
	}
}

func TestQuoteIdent(t *testing.T) {
	if got := QuoteIdent(`A"B`); got != `"A""B"` {
		t.Errorf("want %q, got %q", `"A""B"`, got)
	}
}
