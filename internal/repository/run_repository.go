// Package repository はデータアクセス層の実装を提供する。
package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"employee-data-maintenance/internal/domain"
)

// MaintenanceRunModel はgorm用のモデル定義。
type MaintenanceRunModel struct {
	ID         string    `gorm:"column:ID;type:char(36);primaryKey"`
	Operation  string    `gorm:"column:OPERATION;type:varchar(64);not null;index"`
	Target     string    `gorm:"column:TARGET;type:varchar(128);not null"`
	Status     string    `gorm:"column:STATUS;type:varchar(16);not null"`
	Detail     string    `gorm:"column:DETAIL;type:text"`
	StartedAt  time.Time `gorm:"column:STARTED_AT;not null;index"`
	FinishedAt time.Time `gorm:"column:FINISHED_AT;not null"`
}

// TableName はテーブル名を返す。
func (MaintenanceRunModel) TableName() string {
	return "HRCTL_RUNS"
}

// BeforeCreate はレコード作成前にUUIDを生成する。
func (m *MaintenanceRunModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return nil
}

func (m *MaintenanceRunModel) toDomain() *domain.MaintenanceRun {
	return &domain.MaintenanceRun{
		ID:         m.ID,
		Operation:  m.Operation,
		Target:     m.Target,
		Status:     domain.RunStatus(m.Status),
		Detail:     m.Detail,
		StartedAt:  m.StartedAt,
		FinishedAt: m.FinishedAt,
	}
}

// RunRepository はメンテナンス実行履歴へのアクセスを提供する。
type RunRepository struct {
	db *gorm.DB
}

// NewRunRepository は新しいRunRepositoryを生成する。
func NewRunRepository(db *gorm.DB) *RunRepository {
	return &RunRepository{db: db}
}

// EnsureTable は履歴テーブルがなければ作成する。
func (r *RunRepository) EnsureTable(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&MaintenanceRunModel{}); err != nil {
		slog.ErrorContext(ctx, "failed to ensure run table",
			"operation", "ensure_table",
			"error", err,
		)
		return err
	}
	return nil
}

// Create は実行履歴を保存し、採番したIDをrunに設定する。
func (r *RunRepository) Create(ctx context.Context, run *domain.MaintenanceRun) error {
	if err := r.EnsureTable(ctx); err != nil {
		return err
	}
	model := &MaintenanceRunModel{
		ID:         run.ID,
		Operation:  run.Operation,
		Target:     run.Target,
		Status:     string(run.Status),
		Detail:     run.Detail,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		slog.ErrorContext(ctx, "failed to create run",
			"operation", "create_run",
			"run_operation", run.Operation,
			"target", run.Target,
			"error", err,
		)
		return err
	}
	run.ID = model.ID
	return nil
}

// FindRecent は新しい順にlimit件の履歴を返す。テーブルがなければ空を返す。
func (r *RunRepository) FindRecent(ctx context.Context, limit int) ([]*domain.MaintenanceRun, error) {
	db := r.db.WithContext(ctx)
	if !db.Migrator().HasTable(&MaintenanceRunModel{}) {
		return []*domain.MaintenanceRun{}, nil
	}

	var models []MaintenanceRunModel
	query := db.Order("STARTED_AT DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&models).Error; err != nil {
		slog.ErrorContext(ctx, "failed to find recent runs",
			"operation", "find_recent",
			"error", err,
		)
		return nil, err
	}

	runs := make([]*domain.MaintenanceRun, len(models))
	for i := range models {
		runs[i] = models[i].toDomain()
	}
	return runs, nil
}
