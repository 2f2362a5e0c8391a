package repository

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"employee-data-maintenance/internal/domain"

	"gorm.io/gorm"
)

// tableInfoRow はPRAGMA table_infoの結果行。
type tableInfoRow struct {
	CID       int     `gorm:"column:cid"`
	Name      string  `gorm:"column:name"`
	Type      string  `gorm:"column:type"`
	NotNull   int     `gorm:"column:notnull"`
	DfltValue *string `gorm:"column:dflt_value"`
	PK        int     `gorm:"column:pk"`
}

// SchemaRepository はSQLiteのスキーマとテーブルを直接操作するリポジトリ。
type SchemaRepository struct {
	db *gorm.DB
}

// NewSchemaRepository は新しいSchemaRepositoryを生成する。
func NewSchemaRepository(db *gorm.DB) *SchemaRepository {
	return &SchemaRepository{db: db}
}

// RequireSQLite は接続先がSQLiteでなければErrUnsupportedDialectを返す。
func (r *SchemaRepository) RequireSQLite() error {
	if name := r.db.Dialector.Name(); name != "sqlite" {
		return fmt.Errorf("%w: %s", domain.ErrUnsupportedDialect, name)
	}
	return nil
}

// Transaction はfnを1つのトランザクション内で実行する。fnがエラーを返すとロールバックする。
func (r *SchemaRepository) Transaction(ctx context.Context, fn func(tx *SchemaRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&SchemaRepository{db: tx})
	})
}

// ListTables はユーザーテーブル名を名前順に返す。
func (r *SchemaRepository) ListTables(ctx context.Context) ([]string, error) {
	var names []string
	err := r.db.WithContext(ctx).
		Raw("SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name").
		Scan(&names).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to list tables",
			"operation", "list_tables",
			"error", err,
		)
		return nil, err
	}
	return names, nil
}

// TableExists はテーブルの存在を大文字小文字を区別せずに確認する。
func (r *SchemaRepository) TableExists(ctx context.Context, table string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Raw("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND lower(name) = lower(?)", table).
		Scan(&count).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to check table existence",
			"operation", "table_exists",
			"table", table,
			"error", err,
		)
		return false, err
	}
	return count > 0, nil
}

// Columns はPRAGMA table_infoでカラム定義を取得する。
func (r *SchemaRepository) Columns(ctx context.Context, table string) ([]domain.Column, error) {
	var rows []tableInfoRow
	if err := r.db.WithContext(ctx).Raw("PRAGMA table_info(" + domain.QuoteIdent(table) + ")").Scan(&rows).Error; err != nil {
		slog.ErrorContext(ctx, "failed to read table info",
			"operation", "columns",
			"table", table,
			"error", err,
		)
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrTableNotFound, table)
	}

	columns := make([]domain.Column, len(rows))
	for i, row := range rows {
		columns[i] = domain.Column{
			CID:          row.CID,
			Name:         row.Name,
			Type:         row.Type,
			NotNull:      row.NotNull != 0,
			DefaultValue: row.DfltValue,
			PrimaryKey:   row.PK != 0,
		}
	}
	return columns, nil
}

// CountRows はテーブルの件数を返す。
func (r *SchemaRepository) CountRows(ctx context.Context, table string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Raw("SELECT COUNT(*) FROM " + domain.QuoteIdent(table)).Scan(&count).Error; err != nil {
		slog.ErrorContext(ctx, "failed to count rows",
			"operation", "count_rows",
			"table", table,
			"error", err,
		)
		return 0, err
	}
	return count, nil
}

// SampleRows は先頭からlimit件の行をカラム名→値のマップで返す。
func (r *SchemaRepository) SampleRows(ctx context.Context, table string, limit int) ([]map[string]any, error) {
	var rows []map[string]any
	if limit <= 0 {
		return rows, nil
	}
	err := r.db.WithContext(ctx).
		Raw("SELECT * FROM "+domain.QuoteIdent(table)+" LIMIT ?", limit).
		Scan(&rows).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to sample rows",
			"operation", "sample_rows",
			"table", table,
			"error", err,
		)
		return nil, err
	}
	for _, row := range rows {
		for k, v := range row {
			if b, ok := v.([]byte); ok {
				row[k] = string(b)
			}
		}
	}
	return rows, nil
}

// Exec は任意のDDL/DMLを実行する。
func (r *SchemaRepository) Exec(ctx context.Context, sql string, args ...any) error {
	if err := r.db.WithContext(ctx).Exec(sql, args...).Error; err != nil {
		slog.ErrorContext(ctx, "failed to execute statement",
			"operation", "exec",
			"error", err,
		)
		return err
	}
	return nil
}

// DropTable はテーブルを削除する。存在しない場合も成功する。
func (r *SchemaRepository) DropTable(ctx context.Context, table string) error {
	return r.Exec(ctx, "DROP TABLE IF EXISTS "+domain.QuoteIdent(table))
}

// CopyTable はsrcの全行をdstという新しいテーブルに複製する。
func (r *SchemaRepository) CopyTable(ctx context.Context, src, dst string) error {
	return r.Exec(ctx, "CREATE TABLE "+domain.QuoteIdent(dst)+" AS SELECT * FROM "+domain.QuoteIdent(src))
}

// RenameTable はテーブル名を変更する。
func (r *SchemaRepository) RenameTable(ctx context.Context, from, to string) error {
	return r.Exec(ctx, "ALTER TABLE "+domain.QuoteIdent(from)+" RENAME TO "+domain.QuoteIdent(to))
}

// InsertSelect はsrcのcolumnsをdstへコピーし、挿入件数を返す。
func (r *SchemaRepository) InsertSelect(ctx context.Context, dst, src string, columns []string) (int64, error) {
	cols := quoteList(columns)
	sql := fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s",
		domain.QuoteIdent(dst), cols, cols, domain.QuoteIdent(src))
	result := r.db.WithContext(ctx).Exec(sql)
	if result.Error != nil {
		slog.ErrorContext(ctx, "failed to copy rows",
			"operation", "insert_select",
			"table", dst,
			"source", src,
			"error", result.Error,
		)
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// InsertRow は1行を挿入し、挿入した行のrowidを返す。
func (r *SchemaRepository) InsertRow(ctx context.Context, table string, row map[string]any) (int64, error) {
	keys := sortedKeys(row)
	placeholders := make([]string, len(keys))
	args := make([]any, len(keys))
	for i, k := range keys {
		placeholders[i] = "?"
		args[i] = row[k]
	}
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		domain.QuoteIdent(table), quoteList(keys), strings.Join(placeholders, ", "))
	if err := r.Exec(ctx, sql, args...); err != nil {
		return 0, err
	}

	var rowID int64
	if err := r.db.WithContext(ctx).Raw("SELECT last_insert_rowid()").Scan(&rowID).Error; err != nil {
		slog.ErrorContext(ctx, "failed to read last insert rowid",
			"operation", "insert_row",
			"table", table,
			"error", err,
		)
		return 0, err
	}
	return rowID, nil
}

// RowMatches はrowidの行がrowの全カラムと一致するか確認する。
func (r *SchemaRepository) RowMatches(ctx context.Context, table string, rowID int64, row map[string]any) (bool, error) {
	where, args := matchClause(row)
	if where != "" {
		where = " AND " + where
	}
	var count int64
	err := r.db.WithContext(ctx).
		Raw("SELECT COUNT(*) FROM "+domain.QuoteIdent(table)+" WHERE rowid = ?"+where, append([]any{rowID}, args...)...).
		Scan(&count).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to read back row",
			"operation", "row_matches",
			"table", table,
			"error", err,
		)
		return false, err
	}
	return count == 1, nil
}

// DeleteRow はrowidの行を削除し、削除件数を返す。
func (r *SchemaRepository) DeleteRow(ctx context.Context, table string, rowID int64) (int64, error) {
	result := r.db.WithContext(ctx).Exec("DELETE FROM "+domain.QuoteIdent(table)+" WHERE rowid = ?", rowID)
	if result.Error != nil {
		slog.ErrorContext(ctx, "failed to delete row",
			"operation", "delete_row",
			"table", table,
			"error", result.Error,
		)
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// TableObjects はtableに付属するインデックスとトリガーを作成順に返す。
// 自動生成されたインデックス(sqlが NULL のもの)は含まない。
func (r *SchemaRepository) TableObjects(ctx context.Context, table string) ([]domain.TableObject, error) {
	db := r.db.WithContext(ctx)

	var rows []struct {
		Type string `gorm:"column:type"`
		Name string `gorm:"column:name"`
		SQL  string `gorm:"column:sql"`
	}
	err := db.Raw(`SELECT type, name, sql FROM sqlite_master
		WHERE tbl_name = ? COLLATE NOCASE AND type IN ('index', 'trigger') AND sql IS NOT NULL
		ORDER BY rowid`, table).Scan(&rows).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to list table objects",
			"operation", "table_objects",
			"table", table,
			"error", err,
		)
		return nil, err
	}

	objects := make([]domain.TableObject, 0, len(rows))
	for _, row := range rows {
		obj := domain.TableObject{Type: domain.TableObjectType(row.Type), Name: row.Name, SQL: row.SQL}
		if obj.Type == domain.TableObjectIndex {
			var names []string
			if err := db.Raw("SELECT COALESCE(name, '') FROM pragma_index_info(?) ORDER BY seqno", row.Name).Scan(&names).Error; err != nil {
				slog.ErrorContext(ctx, "failed to read index columns",
					"operation", "table_objects",
					"index", row.Name,
					"error", err,
				)
				return nil, err
			}
			for _, n := range names {
				// 式インデックスの要素は名前を持たない
				if n != "" {
					obj.Columns = append(obj.Columns, n)
				}
			}
		}
		objects = append(objects, obj)
	}
	return objects, nil
}

// RecreateObject はセーブポイント内でobjのSQLを実行する。
// 失敗した場合はセーブポイントまで戻し、トランザクション自体は継続できる状態でエラーを返す。
func (r *SchemaRepository) RecreateObject(ctx context.Context, obj domain.TableObject) error {
	db := r.db.WithContext(ctx)
	const savepoint = "recreate_object"

	if err := db.SavePoint(savepoint).Error; err != nil {
		return err
	}
	if err := db.Exec(obj.SQL).Error; err != nil {
		slog.WarnContext(ctx, "failed to recreate table object",
			"operation", "recreate_object",
			"type", string(obj.Type),
			"name", obj.Name,
			"error", err,
		)
		if rbErr := db.RollbackTo(savepoint).Error; rbErr != nil {
			return rbErr
		}
		if relErr := db.Exec("RELEASE SAVEPOINT " + savepoint).Error; relErr != nil {
			return relErr
		}
		return err
	}
	return db.Exec("RELEASE SAVEPOINT " + savepoint).Error
}

func matchClause(row map[string]any) (string, []any) {
	keys := sortedKeys(row)
	conds := make([]string, len(keys))
	args := make([]any, len(keys))
	for i, k := range keys {
		conds[i] = domain.QuoteIdent(k) + " IS ?"
		args[i] = row[k]
	}
	return strings.Join(conds, " AND "), args
}

func quoteList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = domain.QuoteIdent(n)
	}
	return strings.Join(quoted, ", ")
}

func sortedKeys(row map[string]any) []string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
