package domain

import "time"

// MigrationStatus はマイグレーションの適用状態を表す
type MigrationStatus string

const (
	MigrationStatusPending MigrationStatus = "pending"
	MigrationStatusApplied MigrationStatus = "applied"
)

// Migration は番号付きSQLファイル1本分のマイグレーション。
type Migration struct {
	Version   string // 例: "001"
	Name      string // 例: "add_id_usuario_indexes"
	Source    string // 読み込み元のファイル名
	Status    MigrationStatus
	AppliedAt *time.Time
}

// FileName は {version}_{name}.sql 形式の名前を返す。
func (m *Migration) FileName() string {
	return m.Version + "_" + m.Name + ".sql"
}

// IsApplied は適用済みならtrueを返す。
func (m *Migration) IsApplied() bool {
	return m.Status == MigrationStatusApplied
}
