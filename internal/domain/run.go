package domain

import "time"

// RunStatus はメンテナンス実行の結果を表す。
type RunStatus string

const (
	RunStatusSuccess RunStatus = "success"
	RunStatusFailed  RunStatus = "failed"
)

// MaintenanceRun はデータベースに対して実行した破壊的操作の履歴を表す。
type MaintenanceRun struct {
	ID         string
	Operation  string // 例: "rebuild", "restore", "repair.user-ids"
	Target     string // テーブル名またはプラン名
	Status     RunStatus
	Detail     string
	StartedAt  time.Time
	FinishedAt time.Time
}
