package repository

import (
	"context"
	"log/slog"

	"employee-data-maintenance/internal/domain"

	"gorm.io/gorm"
)

// RepairRepository はUSUARIOなどのデータ補正を行うリポジトリ。
type RepairRepository struct {
	db *gorm.DB
}

// NewRepairRepository は新しいRepairRepositoryを生成する。
func NewRepairRepository(db *gorm.DB) *RepairRepository {
	return &RepairRepository{db: db}
}

// Transaction はfnを1つのトランザクション内で実行する。
func (r *RepairRepository) Transaction(ctx context.Context, fn func(tx *RepairRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&RepairRepository{db: tx})
	})
}

// AssignMissingUserIDs はID_USUARIOがNULLの行にrowid順で連番を振り、更新件数を返す。
func (r *RepairRepository) AssignMissingUserIDs(ctx context.Context) (int64, error) {
	db := r.db.WithContext(ctx)

	var rowIDs []int64
	if err := db.Raw(`SELECT rowid FROM "USUARIO" WHERE "ID_USUARIO" IS NULL ORDER BY rowid`).Scan(&rowIDs).Error; err != nil {
		slog.ErrorContext(ctx, "failed to find users without id",
			"operation", "assign_missing_user_ids",
			"error", err,
		)
		return 0, err
	}
	if len(rowIDs) == 0 {
		return 0, nil
	}

	var maxID int64
	if err := db.Raw(`SELECT COALESCE(MAX("ID_USUARIO"), 0) FROM "USUARIO"`).Scan(&maxID).Error; err != nil {
		slog.ErrorContext(ctx, "failed to read max user id",
			"operation", "assign_missing_user_ids",
			"error", err,
		)
		return 0, err
	}

	for i, rowID := range rowIDs {
		if err := db.Exec(`UPDATE "USUARIO" SET "ID_USUARIO" = ? WHERE rowid = ?`, maxID+int64(i)+1, rowID).Error; err != nil {
			slog.ErrorContext(ctx, "failed to assign user id",
				"operation", "assign_missing_user_ids",
				"rowid", rowID,
				"error", err,
			)
			return 0, err
		}
	}
	return int64(len(rowIDs)), nil
}

// DeleteUsersByDocument は指定した書類番号の行を削除する。
func (r *RepairRepository) DeleteUsersByDocument(ctx context.Context, document string) (int64, error) {
	result := r.db.WithContext(ctx).Exec(`DELETE FROM "USUARIO" WHERE CAST("DOCUMENTO" AS TEXT) = ?`, document)
	if result.Error != nil {
		slog.ErrorContext(ctx, "failed to delete users by document",
			"operation", "delete_users_by_document",
			"document", document,
			"error", result.Error,
		)
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// DeleteDuplicateUsers はDOCUMENTOが重複する行のうち、書類ごとにID_USUARIOが最小の行だけを残して削除する。
// ID_USUARIOも同じ行どうしはrowidが最小の行を残す。
func (r *RepairRepository) DeleteDuplicateUsers(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).Exec(`
		DELETE FROM "USUARIO"
		WHERE "DOCUMENTO" IS NOT NULL
		  AND EXISTS (
			SELECT 1 FROM "USUARIO" AS o
			WHERE o."DOCUMENTO" = "USUARIO"."DOCUMENTO"
			  AND (o."ID_USUARIO" < "USUARIO"."ID_USUARIO"
				OR (o."ID_USUARIO" IS "USUARIO"."ID_USUARIO" AND o.rowid < "USUARIO".rowid))
		  )`)
	if result.Error != nil {
		slog.ErrorContext(ctx, "failed to delete duplicate users",
			"operation", "delete_duplicate_users",
			"error", result.Error,
		)
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// NullifyValues はcolumnが空文字またはsentinelsのいずれかに一致する行をNULLにする。
func (r *RepairRepository) NullifyValues(ctx context.Context, table, column string, sentinels []string) (int64, error) {
	col := domain.QuoteIdent(column)
	where := col + " = ''"
	args := []any{}
	if len(sentinels) > 0 {
		where += " OR CAST(" + col + " AS TEXT) IN ?"
		args = append(args, sentinels)
	}
	result := r.db.WithContext(ctx).Exec("UPDATE "+domain.QuoteIdent(table)+" SET "+col+" = NULL WHERE "+where, args...)
	if result.Error != nil {
		slog.ErrorContext(ctx, "failed to nullify values",
			"operation", "nullify_values",
			"table", table,
			"column", column,
			"error", result.Error,
		)
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
