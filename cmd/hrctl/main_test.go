package main

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"employee-data-maintenance/internal/domain"
	"employee-data-maintenance/internal/handler"
	"employee-data-maintenance/internal/infra"
	"employee-data-maintenance/internal/usecase"
)

// execute はルートコマンドを実行し、標準出力と標準エラーの内容を返す。
func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func seedDatabase(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bd.db")
	db, err := infra.NewDB(path, nil)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer infra.CloseDB(db)

	sql := `
		CREATE TABLE VEHICULO (
			ID_VEHICULO INTEGER,
			ID_USUARIO INTEGER,
			TIPO_VEHICULO TEXT,
			MARCA TEXT,
			PLACA TEXT,
			ANIO INTEGER,
			PROPIETARIO TEXT,
			COLOR TEXT
		);
		INSERT INTO VEHICULO VALUES (1, 10, 'Carro', 'Mazda', 'ABC123', 2020, 'Propio', 'Rojo');
		INSERT INTO VEHICULO VALUES (2, 11, 'Moto', 'Yamaha', 'XYZ98A', 2018, 'Propio', 'Negro');
	`
	if err := db.Exec(sql).Error; err != nil {
		t.Fatalf("failed to seed database: %v", err)
	}
	return path
}

func TestIsAffirmative(t *testing.T) {
	tests := []struct {
		answer string
		want   bool
	}{
		{"s", true},
		{"S", true},
		{"si", true},
		{"sí", true},
		{"SÍ", true},
		{"y", true},
		{" yes \n", true},
		{"", false},
		{"n", false},
		{"no", false},
		{"sip", false},
	}

	for _, tt := range tests {
		if got := IsAffirmative(tt.answer); got != tt.want {
			t.Errorf("IsAffirmative(%q) = %v, want %v", tt.answer, got, tt.want)
		}
	}
}

func TestPlansCommand(t *testing.T) {
	stdout, _, err := execute(t, "", "plans")
	if err != nil {
		t.Fatalf("plans failed: %v", err)
	}
	for _, name := range []string{"vehiculo", "estudios", "vivienda", "usuario"} {
		if !strings.Contains(stdout, name) {
			t.Errorf("want plan %s in output, got:\n%s", name, stdout)
		}
	}

	stdout, _, err = execute(t, "", "plans", "vehiculo")
	if err != nil {
		t.Fatalf("plans vehiculo failed: %v", err)
	}
	if !strings.Contains(stdout, "CREATE TABLE") {
		t.Errorf("want DDL, got:\n%s", stdout)
	}
}

func TestRebuildCommand_JSONOutputWithPrompt(t *testing.T) {
	path := seedDatabase(t)

	stdout, stderr, err := execute(t, "s\n", "--db", path, "--output", "json", "rebuild", "vehiculo")
	if err != nil {
		t.Fatalf("rebuild failed: %v", err)
	}
	if !strings.Contains(stderr, "¿Continuar? (s/N)") {
		t.Errorf("want confirmation prompt on stderr, got:\n%s", stderr)
	}

	var result domain.RebuildResult
	if err := json.Unmarshal([]byte(stdout), &result); err != nil {
		t.Fatalf("want stdout to be a single JSON document: %v\n%s", err, stdout)
	}
	if result.Table != "VEHICULO" || result.CopiedRows != 2 {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestRebuildCommand_DeclinedLeavesTable(t *testing.T) {
	path := seedDatabase(t)

	stdout, stderr, err := execute(t, "n\n", "--db", path, "rebuild", "vehiculo")
	if err != nil {
		t.Fatalf("rebuild failed: %v", err)
	}
	if !strings.Contains(stderr, "¿Continuar? (s/N)") {
		t.Errorf("want confirmation prompt on stderr, got:\n%s", stderr)
	}
	if !strings.Contains(stderr, "Operación cancelada.") {
		t.Errorf("want cancellation message on stderr, got:\n%s", stderr)
	}
	if strings.Contains(stdout, "¿Continuar?") {
		t.Errorf("want no prompt on stdout, got:\n%s", stdout)
	}

	stdout, _, err = execute(t, "", "--db", path, "schema", "describe", "VEHICULO")
	if err != nil {
		t.Fatalf("describe failed: %v", err)
	}
	if !strings.Contains(stdout, "COLOR") {
		t.Errorf("want old COLOR column kept, got:\n%s", stdout)
	}
}

func TestRebuildCommand_ThenCheckAndHistory(t *testing.T) {
	path := seedDatabase(t)

	if _, _, err := execute(t, "", "--db", path, "schema", "check", "vehiculo"); err == nil {
		t.Error("want check to fail before rebuild")
	}

	stdout, _, err := execute(t, "s\n", "--db", path, "rebuild", "vehiculo")
	if err != nil {
		t.Fatalf("rebuild failed: %v", err)
	}
	if !strings.Contains(stdout, "copied 2/2 rows") {
		t.Errorf("want copy summary, got:\n%s", stdout)
	}

	stdout, _, err = execute(t, "", "--db", path, "schema", "check", "vehiculo")
	if err != nil {
		t.Fatalf("check after rebuild failed: %v\n%s", err, stdout)
	}
	if !strings.Contains(stdout, "in sync") {
		t.Errorf("want in sync, got:\n%s", stdout)
	}

	stdout, _, err = execute(t, "", "--db", path, "history")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if !strings.Contains(stdout, "rebuild") || !strings.Contains(stdout, "success") {
		t.Errorf("want rebuild run in history, got:\n%s", stdout)
	}
}

func TestBackupAndRestoreCommands(t *testing.T) {
	path := seedDatabase(t)

	stdout, _, err := execute(t, "", "--db", path, "backup", "VEHICULO")
	if err != nil {
		t.Fatalf("backup failed: %v", err)
	}
	if !strings.Contains(stdout, "VEHICULO_BACKUP (2 rows)") {
		t.Errorf("unexpected output:\n%s", stdout)
	}

	if _, _, err := execute(t, "", "--db", path, "--yes", "restore", "VEHICULO"); err != nil {
		t.Fatalf("restore failed: %v", err)
	}

	stdout, _, err = execute(t, "", "--db", path, "schema", "tables")
	if err != nil {
		t.Fatalf("tables failed: %v", err)
	}
	if strings.Contains(stdout, "VEHICULO_BACKUP") {
		t.Errorf("want backup renamed away, got:\n%s", stdout)
	}
}

func TestOpenDB_MissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.db")
	if _, _, err := execute(t, "", "--db", missing, "schema", "tables"); err == nil {
		t.Error("want error for missing database file")
	}
}

func TestTokenCommands(t *testing.T) {
	stdout, _, err := execute(t, "", "token", "generate", "--cedula", "1000000003", "--ttl", "10m")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	token := strings.TrimSpace(stdout)

	stdout, _, err = execute(t, "", "token", "verify", "Bearer "+token)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if !strings.Contains(stdout, "CP1000000003") || !strings.Contains(stdout, "Signature valid.") {
		t.Errorf("unexpected verify output:\n%s", stdout)
	}

	if _, _, err := execute(t, "", "token", "verify", token, "--secret", "other"); err == nil {
		t.Error("want verify to fail with another secret")
	}

	stdout, _, err = execute(t, "", "token", "decode", token)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !strings.Contains(stdout, "HS512") {
		t.Errorf("want algorithm in decode output:\n%s", stdout)
	}

	if _, _, err := execute(t, "", "token", "decode", "not-a-token"); err == nil {
		t.Error("want decode error for malformed token")
	}
}

func TestSmokeRunCommand(t *testing.T) {
	tokens := usecase.NewTokenService("defaultSecretKeyForDevelopmentOnlyChangeThisInProduction", time.Hour)
	srv := httptest.NewServer(handler.NewRouter(handler.NewAuthHandler(tokens, handler.TestIdentity)))
	defer srv.Close()

	stdout, _, err := execute(t, "", "--api-url", srv.URL, "smoke", "run", "health", "auth")
	if err != nil {
		t.Fatalf("smoke run failed: %v\n%s", err, stdout)
	}
	if !strings.Contains(stdout, "== health") || !strings.Contains(stdout, "== auth") {
		t.Errorf("want both suites reported, got:\n%s", stdout)
	}

	// vehiculo のフォームエンドポイントは開発用サーバーにないため失敗する
	if _, _, err := execute(t, "", "--api-url", srv.URL, "smoke", "run", "vehiculo"); err == nil {
		t.Error("want failure exit for failing suite")
	}

	if _, _, err := execute(t, "", "smoke", "run", "missing"); err == nil {
		t.Error("want error for unknown suite")
	}
}
