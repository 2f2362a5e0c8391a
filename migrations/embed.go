// Package migrations は同梱のSQLマイグレーションを提供する。
package migrations

import "embed"

// FS は番号付きの .sql ファイルを保持する。
//
//go:embed *.sql
var FS embed.FS
