// Package domain はドメインモデルとビジネスルールを定義する。
package domain

// Column はPRAGMA table_infoの1行を表す。
type Column struct {
	CID          int
	Name         string
	Type         string
	NotNull      bool
	DefaultValue *string
	PrimaryKey   bool
}

// TableSummary はテーブル名と件数を表す。
type TableSummary struct {
	Name     string
	RowCount int64
}

// TableDescription はテーブル構造とサンプル行を表す。
type TableDescription struct {
	Name     string
	Columns  []Column
	RowCount int64
	Samples  []map[string]any
}

// ColumnDiff は期待値と実際のカラム定義の差分を表す。
type ColumnDiff struct {
	Column   string
	Field    string // "type", "not_null", "primary_key"
	Expected string
	Actual   string
}

// DriftReport はプランとの構造差分を表す。
type DriftReport struct {
	Plan       string
	Table      string
	Missing    []string
	Unexpected []string
	Diffs      []ColumnDiff
}

// InSync は差分がない場合にtrueを返す。
func (r *DriftReport) InSync() bool {
	return len(r.Missing) == 0 && len(r.Unexpected) == 0 && len(r.Diffs) == 0
}

// Analysis はデータベース全体の分析結果を表す。
type Analysis struct {
	Tables []TableSummary
	Drift  []*DriftReport
	// Skipped はテーブルが存在しないため比較できなかったプラン名。
	Skipped []string
}

// RebuildPreview は再構築のドライラン結果を表す。
type RebuildPreview struct {
	Plan           string
	Table          string
	BackupTable    string
	CopyColumns    []string
	DroppedColumns []string
	AddedColumns   []string
	RowCount       int64
	CreateSQL      string

	// KeptObjects は再構築後に作り直すインデックス・トリガー名。
	KeptObjects    []string
	// SkippedObjects は削除されるカラムを参照するため作り直さないもの。
	SkippedObjects []string
}

// RebuildResult は再構築の実行結果を表す。
type RebuildResult struct {
	RunID       string
	Plan        string
	Table       string
	BackupTable string
	BackupRows  int64
	CopiedRows  int64
	CopyColumns []string
	Columns     []Column
	Probed      bool
	BackupKept  bool

	// RestoredObjects は作り直したインデックス・トリガー名。
	RestoredObjects []string
	// SkippedObjects は作り直せなかったインデックス・トリガー名。
	SkippedObjects  []string
}

// TableObjectType はテーブルに付属するスキーマオブジェクトの種類。
type TableObjectType string

const (
	TableObjectIndex   TableObjectType = "index"
	TableObjectTrigger TableObjectType = "trigger"
)

// TableObject はsqlite_masterに記録されたインデックスまたはトリガー。
type TableObject struct {
	Type TableObjectType
	Name string
	SQL  string

	// Columns はインデックスの対象カラム。式インデックスとトリガーでは空。
	Columns []string
}
