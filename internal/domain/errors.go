package domain

import "errors"

var (
	// ErrTableNotFound は指定されたテーブルが存在しない場合のエラー。
	ErrTableNotFound = errors.New("table not found")

	// ErrBackupNotFound は復元元のバックアップテーブルが存在しない場合のエラー。
	ErrBackupNotFound = errors.New("backup table not found")

	// ErrPlanNotFound は指定された再構築プランが存在しない場合のエラー。
	ErrPlanNotFound = errors.New("rebuild plan not found")

	// ErrInvalidPlan は再構築プランの定義が不正な場合のエラー。
	ErrInvalidPlan = errors.New("invalid rebuild plan")

	// ErrColumnMismatch はコピー対象カラムが旧テーブルまたは新テーブルに存在しない場合のエラー。
	ErrColumnMismatch = errors.New("column mismatch")

	// ErrRowCountMismatch はコピー後の件数がバックアップと一致しない場合のエラー。
	ErrRowCountMismatch = errors.New("row count mismatch")

	// ErrProbeFailed は再構築後のテスト挿入が読み戻せなかった場合のエラー。
	ErrProbeFailed = errors.New("probe insert failed")

	// ErrUnsupportedDialect はSQLite以外のデータベースでスキーマ操作を行った場合のエラー。
	ErrUnsupportedDialect = errors.New("unsupported database dialect")

	// ErrInvalidToken はJWTの形式・署名が不正な場合のエラー。
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired はJWTの有効期限が切れている場合のエラー。
	ErrTokenExpired = errors.New("token expired")

	// ErrSuiteNotFound は指定されたスモークテストスイートが存在しない場合のエラー。
	ErrSuiteNotFound = errors.New("smoke suite not found")

	// ErrMigrationFailed はマイグレーション実行時のエラー。
	ErrMigrationFailed = errors.New("migration failed")

	// ErrMigrationFileNotFound はマイグレーションファイルが見つからない場合のエラー。
	ErrMigrationFileNotFound = errors.New("migration file not found")

	// ErrInvalidMigrationFile はマイグレーションファイルのフォーマットが不正な場合のエラー。
	ErrInvalidMigrationFile = errors.New("invalid migration file")
)
