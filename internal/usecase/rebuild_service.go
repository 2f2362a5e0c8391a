package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"employee-data-maintenance/internal/domain"
	"employee-data-maintenance/internal/repository"
)

// DefaultBackupSuffix はバックアップテーブル名に付ける既定の接尾辞。
const DefaultBackupSuffix = "_BACKUP"

// RunRecorder はメンテナンス実行履歴を保存するインターフェース。
type RunRecorder interface {
	Create(ctx context.Context, run *domain.MaintenanceRun) error
}

// RebuildOptions は再構築の挙動を指定する。
type RebuildOptions struct {
	BackupSuffix string
	KeepBackup   bool
	SkipProbe    bool
}

func (o RebuildOptions) suffix() string {
	if o.BackupSuffix == "" {
		return DefaultBackupSuffix
	}
	return o.BackupSuffix
}

// RebuildService はテーブルのバックアップ・再作成・復元を行う。
type RebuildService struct {
	repo *repository.SchemaRepository
	runs RunRecorder
	now  func() time.Time
}

// NewRebuildService は新しいRebuildServiceを生成する。
func NewRebuildService(repo *repository.SchemaRepository, runs RunRecorder) *RebuildService {
	return &RebuildService{
		repo: repo,
		runs: runs,
		now:  time.Now,
	}
}

// PlanRebuild は再構築を行わずに、コピー対象・削除・追加カラムと件数を返す。
func (s *RebuildService) PlanRebuild(ctx context.Context, plan *domain.TablePlan, opts RebuildOptions) (*domain.RebuildPreview, error) {
	if err := s.repo.RequireSQLite(); err != nil {
		return nil, err
	}
	oldColumns, err := s.existingColumns(ctx, s.repo, plan.Table)
	if err != nil {
		return nil, err
	}
	copyCols, err := resolveCopyColumns(plan, oldColumns)
	if err != nil {
		return nil, err
	}
	count, err := s.repo.CountRows(ctx, plan.Table)
	if err != nil {
		return nil, fmt.Errorf("counting %s: %w", plan.Table, err)
	}
	objects, err := s.repo.TableObjects(ctx, plan.Table)
	if err != nil {
		return nil, fmt.Errorf("reading indexes of %s: %w", plan.Table, err)
	}
	keep, skip := splitObjects(plan, objects)

	preview := &domain.RebuildPreview{
		Plan:        plan.Name,
		Table:       plan.Table,
		BackupTable: plan.Table + opts.suffix(),
		CopyColumns: copyCols,
		RowCount:    count,
		CreateSQL:   plan.CreateSQL(),
	}
	for _, obj := range keep {
		preview.KeptObjects = append(preview.KeptObjects, obj.Name)
	}
	for _, obj := range skip {
		preview.SkippedObjects = append(preview.SkippedObjects, obj.Name)
	}
	for _, c := range oldColumns {
		if _, ok := plan.Column(c.Name); !ok {
			preview.DroppedColumns = append(preview.DroppedColumns, c.Name)
		}
	}
	for _, c := range plan.Columns {
		if !hasColumn(oldColumns, c.Name) {
			preview.AddedColumns = append(preview.AddedColumns, c.Name)
		}
	}
	return preview, nil
}

// Rebuild はプランに従ってテーブルを1トランザクション内で再作成する。
// 途中で失敗した場合は全体がロールバックされ、元のテーブルはそのまま残る。
func (s *RebuildService) Rebuild(ctx context.Context, plan *domain.TablePlan, opts RebuildOptions) (*domain.RebuildResult, error) {
	if err := s.repo.RequireSQLite(); err != nil {
		return nil, err
	}

	started := s.now()
	backup := plan.Table + opts.suffix()
	result := &domain.RebuildResult{
		Plan:        plan.Name,
		Table:       plan.Table,
		BackupTable: backup,
		BackupKept:  opts.KeepBackup,
	}

	err := s.repo.Transaction(ctx, func(tx *repository.SchemaRepository) error {
		// 1. 存在確認
		oldColumns, err := s.existingColumns(ctx, tx, plan.Table)
		if err != nil {
			return err
		}
		copyCols, err := resolveCopyColumns(plan, oldColumns)
		if err != nil {
			return err
		}
		result.CopyColumns = copyCols
		objects, err := tx.TableObjects(ctx, plan.Table)
		if err != nil {
			return fmt.Errorf("reading indexes of %s: %w", plan.Table, err)
		}
		keep, skip := splitObjects(plan, objects)
		for _, obj := range skip {
			result.SkippedObjects = append(result.SkippedObjects, obj.Name)
		}

		// 2. バックアップ
		if err := tx.DropTable(ctx, backup); err != nil {
			return fmt.Errorf("dropping previous backup: %w", err)
		}
		if err := tx.CopyTable(ctx, plan.Table, backup); err != nil {
			return fmt.Errorf("creating backup: %w", err)
		}
		result.BackupRows, err = tx.CountRows(ctx, backup)
		if err != nil {
			return fmt.Errorf("counting backup: %w", err)
		}

		// 3. 削除
		if err := tx.DropTable(ctx, plan.Table); err != nil {
			return fmt.Errorf("dropping %s: %w", plan.Table, err)
		}

		// 4. 再作成
		if err := tx.Exec(ctx, plan.CreateSQL()); err != nil {
			return fmt.Errorf("creating %s: %w", plan.Table, err)
		}

		// 5. データ移行
		if _, err := tx.InsertSelect(ctx, plan.Table, backup, copyCols); err != nil {
			return fmt.Errorf("copying rows into %s: %w", plan.Table, err)
		}
		result.CopiedRows, err = tx.CountRows(ctx, plan.Table)
		if err != nil {
			return fmt.Errorf("counting %s: %w", plan.Table, err)
		}
		if result.CopiedRows != result.BackupRows {
			return fmt.Errorf("%w: backup has %d rows, %s has %d",
				domain.ErrRowCountMismatch, result.BackupRows, plan.Table, result.CopiedRows)
		}

		// 6. テスト挿入
		if !opts.SkipProbe && len(plan.Probe) > 0 {
			if err := probe(ctx, tx, plan); err != nil {
				return err
			}
			result.Probed = true
		}

		// 7. インデックス・トリガー再作成
		for _, obj := range keep {
			if err := tx.RecreateObject(ctx, obj); err != nil {
				result.SkippedObjects = append(result.SkippedObjects, obj.Name)
				continue
			}
			result.RestoredObjects = append(result.RestoredObjects, obj.Name)
		}

		result.Columns, err = tx.Columns(ctx, plan.Table)
		if err != nil {
			return err
		}

		// 8. バックアップ削除
		if !opts.KeepBackup {
			if err := tx.DropTable(ctx, backup); err != nil {
				return fmt.Errorf("dropping backup: %w", err)
			}
		}
		return nil
	})

	detail := fmt.Sprintf("copied %d/%d rows", result.CopiedRows, result.BackupRows)
	if err != nil {
		detail = err.Error()
	}
	result.RunID = s.record(ctx, "rebuild", plan.Table, started, err, detail)

	if err != nil {
		return nil, err
	}
	return result, nil
}

// Backup はtableの複製を <table><suffix> として作成し、バックアップ名と件数を返す。
// 同名のバックアップが既にあれば置き換える。
func (s *RebuildService) Backup(ctx context.Context, table, suffix string) (string, int64, error) {
	if err := s.repo.RequireSQLite(); err != nil {
		return "", 0, err
	}
	if suffix == "" {
		suffix = DefaultBackupSuffix
	}
	backup := table + suffix
	started := s.now()

	var rows int64
	err := s.repo.Transaction(ctx, func(tx *repository.SchemaRepository) error {
		if _, err := s.existingColumns(ctx, tx, table); err != nil {
			return err
		}
		if err := tx.DropTable(ctx, backup); err != nil {
			return err
		}
		if err := tx.CopyTable(ctx, table, backup); err != nil {
			return err
		}
		var err error
		rows, err = tx.CountRows(ctx, backup)
		return err
	})

	detail := fmt.Sprintf("%s: %d rows", backup, rows)
	if err != nil {
		detail = err.Error()
	}
	s.record(ctx, "backup", table, started, err, detail)

	if err != nil {
		return "", 0, err
	}
	return backup, rows, nil
}

// Restore はtableを削除し、<table><suffix> を元の名前に戻す。
func (s *RebuildService) Restore(ctx context.Context, table, suffix string) error {
	if err := s.repo.RequireSQLite(); err != nil {
		return err
	}
	if suffix == "" {
		suffix = DefaultBackupSuffix
	}
	backup := table + suffix
	started := s.now()

	err := s.repo.Transaction(ctx, func(tx *repository.SchemaRepository) error {
		exists, err := tx.TableExists(ctx, backup)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: %s", domain.ErrBackupNotFound, backup)
		}
		if err := tx.DropTable(ctx, table); err != nil {
			return err
		}
		return tx.RenameTable(ctx, backup, table)
	})

	detail := "restored from " + backup
	if err != nil {
		detail = err.Error()
	}
	s.record(ctx, "restore", table, started, err, detail)
	return err
}

func (s *RebuildService) existingColumns(ctx context.Context, repo *repository.SchemaRepository, table string) ([]domain.Column, error) {
	exists, err := repo.TableExists(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("checking table %s: %w", table, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", domain.ErrTableNotFound, table)
	}
	return repo.Columns(ctx, table)
}

// record は実行履歴を保存する。保存の失敗は操作自体の結果を変えない。
func (s *RebuildService) record(ctx context.Context, operation, target string, started time.Time, opErr error, detail string) string {
	return recordRun(ctx, s.runs, operation, target, started, s.now(), opErr, detail)
}

func recordRun(ctx context.Context, runs RunRecorder, operation, target string, started, finished time.Time, opErr error, detail string) string {
	if runs == nil {
		return ""
	}
	run := &domain.MaintenanceRun{
		Operation:  operation,
		Target:     target,
		Status:     domain.RunStatusSuccess,
		Detail:     detail,
		StartedAt:  started,
		FinishedAt: finished,
	}
	if opErr != nil {
		run.Status = domain.RunStatusFailed
	}
	if err := runs.Create(ctx, run); err != nil {
		slog.WarnContext(ctx, "failed to record maintenance run",
			"operation", operation,
			"target", target,
			"error", err,
		)
		return ""
	}
	return run.ID
}

// resolveCopyColumns はコピー対象カラムを決める。
// プランで明示されていればそれを検証し、なければ旧テーブルと新定義の共通カラムを使う。
func resolveCopyColumns(plan *domain.TablePlan, oldColumns []domain.Column) ([]string, error) {
	if len(plan.CopyColumns) > 0 {
		for _, name := range plan.CopyColumns {
			if !hasColumn(oldColumns, name) {
				return nil, fmt.Errorf("%w: %s.%s does not exist", domain.ErrColumnMismatch, plan.Table, name)
			}
			if _, ok := plan.Column(name); !ok {
				return nil, fmt.Errorf("%w: %s is not in plan %s", domain.ErrColumnMismatch, name, plan.Name)
			}
		}
		return append([]string(nil), plan.CopyColumns...), nil
	}

	var cols []string
	for _, c := range plan.Columns {
		if hasColumn(oldColumns, c.Name) {
			cols = append(cols, c.Name)
		}
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: %s has no column in common with plan %s", domain.ErrColumnMismatch, plan.Table, plan.Name)
	}
	return cols, nil
}

// splitObjects はインデックス・トリガーを、作り直すものと
// プランにないカラムを参照するため作り直さないものに分ける。
func splitObjects(plan *domain.TablePlan, objects []domain.TableObject) (keep, skip []domain.TableObject) {
	for _, obj := range objects {
		missing := false
		for _, col := range obj.Columns {
			if _, ok := plan.Column(col); !ok {
				missing = true
				break
			}
		}
		if missing {
			skip = append(skip, obj)
		} else {
			keep = append(keep, obj)
		}
	}
	return keep, skip
}

func hasColumn(columns []domain.Column, name string) bool {
	for _, c := range columns {
		if strings.EqualFold(c.Name, name) {
			return true
		}
	}
	return false
}

// probe はテスト行を挿入して読み戻し、削除する。
func probe(ctx context.Context, tx *repository.SchemaRepository, plan *domain.TablePlan) error {
	rowID, err := tx.InsertRow(ctx, plan.Table, plan.Probe)
	if err != nil {
		return fmt.Errorf("%w: insert: %v", domain.ErrProbeFailed, err)
	}
	ok, err := tx.RowMatches(ctx, plan.Table, rowID, plan.Probe)
	if err != nil {
		return fmt.Errorf("%w: read back: %v", domain.ErrProbeFailed, err)
	}
	if !ok {
		return fmt.Errorf("%w: inserted row does not match", domain.ErrProbeFailed)
	}
	n, err := tx.DeleteRow(ctx, plan.Table, rowID)
	if err != nil {
		return fmt.Errorf("%w: delete: %v", domain.ErrProbeFailed, err)
	}
	if n != 1 {
		return fmt.Errorf("%w: deleted %d rows, want 1", domain.ErrProbeFailed, n)
	}
	return nil
}
