package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"employee-data-maintenance/internal/domain"
	"employee-data-maintenance/internal/repository"
)

const (
	// DefaultTestDocument は開発中に登録されたテスト用の書類番号。
	DefaultTestDocument = "99999999"
	// DefaultInvalidDate はフロントエンドの不具合で保存された日付のエポックミリ秒。
	DefaultInvalidDate = "1751950800000"
)

// DefaultLegacyTables は旧バージョンのエンティティが作成した不要なテーブル名。
var DefaultLegacyTables = []string{"HTE_usuario", "estudios_academicos", "personas_a_cargo", "vehiculos", "contactos_emergencia"}

// DuplicateCleanup は重複ユーザー削除の結果。
type DuplicateCleanup struct {
	TestRowsDeleted      int64
	DuplicateRowsDeleted int64
}

// RepairService はデータ補正を提供する。各補正は1トランザクションで実行する。
type RepairService struct {
	repo   *repository.RepairRepository
	schema *repository.SchemaRepository
	runs   RunRecorder
	now    func() time.Time
}

// NewRepairService は新しいRepairServiceを生成する。
func NewRepairService(repo *repository.RepairRepository, schema *repository.SchemaRepository, runs RunRecorder) *RepairService {
	return &RepairService{
		repo:   repo,
		schema: schema,
		runs:   runs,
		now:    time.Now,
	}
}

// AssignMissingUserIDs はID_USUARIOが未設定のUSUARIO行に連番を振る。
func (s *RepairService) AssignMissingUserIDs(ctx context.Context) (int64, error) {
	if err := s.requireTables(ctx, "USUARIO"); err != nil {
		return 0, err
	}
	started := s.now()

	var updated int64
	err := s.repo.Transaction(ctx, func(tx *repository.RepairRepository) error {
		var err error
		updated, err = tx.AssignMissingUserIDs(ctx)
		return err
	})
	s.record(ctx, "repair.user-ids", "USUARIO", started, err, fmt.Sprintf("assigned %d ids", updated))
	if err != nil {
		return 0, fmt.Errorf("assigning user ids: %w", err)
	}
	return updated, nil
}

// RemoveDuplicateUsers はテスト用書類番号の行を削除し、DOCUMENTOごとに最小IDの行だけを残す。
func (s *RepairService) RemoveDuplicateUsers(ctx context.Context, testDocument string) (*DuplicateCleanup, error) {
	if err := s.requireTables(ctx, "USUARIO"); err != nil {
		return nil, err
	}
	started := s.now()

	result := &DuplicateCleanup{}
	err := s.repo.Transaction(ctx, func(tx *repository.RepairRepository) error {
		var err error
		if testDocument != "" {
			if result.TestRowsDeleted, err = tx.DeleteUsersByDocument(ctx, testDocument); err != nil {
				return err
			}
		}
		result.DuplicateRowsDeleted, err = tx.DeleteDuplicateUsers(ctx)
		return err
	})
	s.record(ctx, "repair.duplicates", "USUARIO", started, err,
		fmt.Sprintf("deleted %d test rows, %d duplicates", result.TestRowsDeleted, result.DuplicateRowsDeleted))
	if err != nil {
		return nil, fmt.Errorf("removing duplicate users: %w", err)
	}
	return result, nil
}

// NullifyInvalidDates はtable.columnの空文字とsentinelsに一致する値をNULLにする。
func (s *RepairService) NullifyInvalidDates(ctx context.Context, table, column string, sentinels []string) (int64, error) {
	if err := s.requireTables(ctx, table); err != nil {
		return 0, err
	}
	started := s.now()

	var updated int64
	err := s.repo.Transaction(ctx, func(tx *repository.RepairRepository) error {
		var err error
		updated, err = tx.NullifyValues(ctx, table, column, sentinels)
		return err
	})
	s.record(ctx, "repair.dates", table+"."+column, started, err, fmt.Sprintf("nullified %d values", updated))
	if err != nil {
		return 0, fmt.Errorf("nullifying %s.%s: %w", table, column, err)
	}
	return updated, nil
}

// DropLegacyTables は指定テーブルを存在すれば削除し、実際に削除した名前を返す。
func (s *RepairService) DropLegacyTables(ctx context.Context, names []string) ([]string, error) {
	if err := s.schema.RequireSQLite(); err != nil {
		return nil, err
	}
	started := s.now()

	var dropped []string
	err := s.schema.Transaction(ctx, func(tx *repository.SchemaRepository) error {
		for _, name := range names {
			exists, err := tx.TableExists(ctx, name)
			if err != nil {
				return err
			}
			if !exists {
				continue
			}
			if err := tx.DropTable(ctx, name); err != nil {
				return err
			}
			dropped = append(dropped, name)
		}
		return nil
	})
	s.record(ctx, "repair.drop-legacy", strings.Join(names, ","), started, err, fmt.Sprintf("dropped %v", dropped))
	if err != nil {
		return nil, fmt.Errorf("dropping legacy tables: %w", err)
	}
	return dropped, nil
}

func (s *RepairService) requireTables(ctx context.Context, tables ...string) error {
	if err := s.schema.RequireSQLite(); err != nil {
		return err
	}
	for _, t := range tables {
		exists, err := s.schema.TableExists(ctx, t)
		if err != nil {
			return fmt.Errorf("checking table %s: %w", t, err)
		}
		if !exists {
			return fmt.Errorf("%w: %s", domain.ErrTableNotFound, t)
		}
	}
	return nil
}

func (s *RepairService) record(ctx context.Context, operation, target string, started time.Time, opErr error, detail string) {
	if opErr != nil {
		detail = opErr.Error()
	}
	recordRun(ctx, s.runs, operation, target, started, s.now(), opErr, detail)
}
