package usecase

import (
	"context"
	"errors"
	"testing"

	"employee-data-maintenance/internal/domain"
	"employee-data-maintenance/internal/repository"

	"gorm.io/gorm"
)

// mockRunRecorder はテスト用のモック。
type mockRunRecorder struct {
	runs []*domain.MaintenanceRun
	err  error
}

func (m *mockRunRecorder) Create(ctx context.Context, run *domain.MaintenanceRun) error {
	if m.err != nil {
		return m.err
	}
	run.ID = "run-" + run.Operation
	m.runs = append(m.runs, run)
	return nil
}

// seedOldVehiculo はAUTOINCREMENTのない旧形式のVEHICULOを作成する。
func seedOldVehiculo(t *testing.T, db *gorm.DB) {
	t.Helper()

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
		t.Fatalf("failed to seed VEHICULO: %v", err)
	}
}

func vehiculoPlan() *domain.TablePlan {
	return &domain.TablePlan{
		Name:  "vehiculo",
		Table: "VEHICULO",
		Columns: []domain.ColumnSpec{
			{Name: "ID_VEHICULO", Type: "INTEGER", PrimaryKey: true, Autoincrement: true},
			{Name: "ID_USUARIO", Type: "INTEGER", NotNull: true},
			{Name: "TIPO_VEHICULO", Type: "TEXT", NotNull: true},
			{Name: "MARCA", Type: "TEXT", NotNull: true},
			{Name: "PLACA", Type: "TEXT", NotNull: true},
			{Name: "ANIO", Type: "INTEGER", NotNull: true},
			{Name: "PROPIETARIO", Type: "TEXT", NotNull: true},
			{Name: "VERSION", Type: "INTEGER", Default: "1"},
		},
		Probe: map[string]any{
			"ID_USUARIO":    999,
			"TIPO_VEHICULO": "Automovil",
			"MARCA":         "Toyota",
			"PLACA":         "ABC123",
			"ANIO":          2020,
			"PROPIETARIO":   "Propietario Prueba",
		},
	}
}

func tableExists(t *testing.T, db *gorm.DB, name string) bool {
	t.Helper()
	var count int64
	if err := db.Raw("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name).Scan(&count).Error; err != nil {
		t.Fatalf("failed to check table %s: %v", name, err)
	}
	return count == 1
}

func TestRebuildService_PlanRebuild(t *testing.T) {
	db := setupTestDB(t)
	seedOldVehiculo(t, db)
	service := NewRebuildService(repository.NewSchemaRepository(db), &mockRunRecorder{})

	preview, err := service.PlanRebuild(context.Background(), vehiculoPlan(), RebuildOptions{})
	if err != nil {
		t.Fatalf("PlanRebuild failed: %v", err)
	}
	if preview.RowCount != 2 {
		t.Errorf("want 2 rows, got %d", preview.RowCount)
	}
	if len(preview.CopyColumns) != 7 {
		t.Errorf("want 7 copy columns, got %v", preview.CopyColumns)
	}
	if len(preview.DroppedColumns) != 1 || preview.DroppedColumns[0] != "COLOR" {
		t.Errorf("want dropped [COLOR], got %v", preview.DroppedColumns)
	}
	if len(preview.AddedColumns) != 1 || preview.AddedColumns[0] != "VERSION" {
		t.Errorf("want added [VERSION], got %v", preview.AddedColumns)
	}
	if preview.BackupTable != "VEHICULO_BACKUP" {
		t.Errorf("want VEHICULO_BACKUP, got %s", preview.BackupTable)
	}
	if !tableExists(t, db, "VEHICULO") || tableExists(t, db, "VEHICULO_BACKUP") {
		t.Error("dry run must not change the database")
	}
}

func TestRebuildService_Rebuild(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	seedOldVehiculo(t, db)
	runs := &mockRunRecorder{}
	service := NewRebuildService(repository.NewSchemaRepository(db), runs)

	result, err := service.Rebuild(ctx, vehiculoPlan(), RebuildOptions{})
	if err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}
	if result.BackupRows != 2 || result.CopiedRows != 2 {
		t.Errorf("want 2/2 rows, got %d/%d", result.CopiedRows, result.BackupRows)
	}
	if !result.Probed {
		t.Error("want probe to run")
	}
	if result.RunID != "run-rebuild" {
		t.Errorf("want run id recorded, got %q", result.RunID)
	}
	if tableExists(t, db, "VEHICULO_BACKUP") {
		t.Error("want backup dropped")
	}

	// IDは維持され、新しい行は自動採番される
	if err := db.Exec("INSERT INTO VEHICULO (ID_USUARIO, TIPO_VEHICULO, MARCA, PLACA, ANIO, PROPIETARIO) VALUES (12, 'Carro', 'Kia', 'KIA001', 2022, 'Propio')").Error; err != nil {
		t.Fatalf("insert after rebuild failed: %v", err)
	}
	var ids []int64
	db.Raw("SELECT ID_VEHICULO FROM VEHICULO ORDER BY ID_VEHICULO").Scan(&ids)
	if len(ids) != 3 || ids[0] != 1 || ids[1] != 2 || ids[2] < 3 {
		t.Errorf("want ids [1 2 >=3], got %v", ids)
	}

	var version int64
	db.Raw("SELECT VERSION FROM VEHICULO WHERE ID_VEHICULO = 1").Scan(&version)
	if version != 1 {
		t.Errorf("want default VERSION 1, got %d", version)
	}

	var probeRows int64
	db.Raw("SELECT COUNT(*) FROM VEHICULO WHERE ID_USUARIO = 999").Scan(&probeRows)
	if probeRows != 0 {
		t.Errorf("want probe row removed, got %d", probeRows)
	}

	if len(runs.runs) != 1 || runs.runs[0].Status != domain.RunStatusSuccess {
		t.Errorf("want one successful run, got %v", runs.runs)
	}
}

func TestRebuildService_Rebuild_KeepBackup(t *testing.T) {
	db := setupTestDB(t)
	seedOldVehiculo(t, db)
	// 前回のバックアップが残っていても置き換える
	if err := db.Exec("CREATE TABLE VEHICULO_OLD (X INTEGER)").Error; err != nil {
		t.Fatalf("failed to create stale backup: %v", err)
	}
	service := NewRebuildService(repository.NewSchemaRepository(db), nil)

	result, err := service.Rebuild(context.Background(), vehiculoPlan(), RebuildOptions{
		BackupSuffix: "_OLD",
		KeepBackup:   true,
		SkipProbe:    true,
	})
	if err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}
	if result.Probed {
		t.Error("want probe skipped")
	}
	if !tableExists(t, db, "VEHICULO_OLD") {
		t.Fatal("want backup kept")
	}
	var count int64
	db.Raw("SELECT COUNT(*) FROM VEHICULO_OLD").Scan(&count)
	if count != 2 {
		t.Errorf("want backup with 2 rows, got %d", count)
	}
}

func schemaObjectExists(t *testing.T, db *gorm.DB, typ, name string) bool {
	t.Helper()
	var count int64
	if err := db.Raw("SELECT COUNT(*) FROM sqlite_master WHERE type=? AND name=?", typ, name).Scan(&count).Error; err != nil {
		t.Fatalf("failed to check %s %s: %v", typ, name, err)
	}
	return count == 1
}

func TestRebuildService_Rebuild_KeepsIndexes(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	seedOldVehiculo(t, db)
	for _, sql := range []string{
		`CREATE INDEX IDX_VEHICULO_ID_USUARIO ON VEHICULO (ID_USUARIO)`,
		`CREATE INDEX IDX_VEHICULO_COLOR ON VEHICULO (COLOR)`,
		`CREATE TRIGGER TRG_VEHICULO_PLACA BEFORE INSERT ON VEHICULO
			WHEN NEW.PLACA = ''
			BEGIN SELECT RAISE(ABORT, 'placa vacia'); END`,
	} {
		if err := db.Exec(sql).Error; err != nil {
			t.Fatalf("failed to create schema object: %v", err)
		}
	}
	service := NewRebuildService(repository.NewSchemaRepository(db), nil)

	preview, err := service.PlanRebuild(ctx, vehiculoPlan(), RebuildOptions{})
	if err != nil {
		t.Fatalf("PlanRebuild failed: %v", err)
	}
	if len(preview.KeptObjects) != 2 || preview.KeptObjects[0] != "IDX_VEHICULO_ID_USUARIO" || preview.KeptObjects[1] != "TRG_VEHICULO_PLACA" {
		t.Errorf("want kept [IDX_VEHICULO_ID_USUARIO TRG_VEHICULO_PLACA], got %v", preview.KeptObjects)
	}
	if len(preview.SkippedObjects) != 1 || preview.SkippedObjects[0] != "IDX_VEHICULO_COLOR" {
		t.Errorf("want skipped [IDX_VEHICULO_COLOR], got %v", preview.SkippedObjects)
	}

	result, err := service.Rebuild(ctx, vehiculoPlan(), RebuildOptions{})
	if err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}
	if len(result.RestoredObjects) != 2 {
		t.Errorf("want 2 objects recreated, got %v", result.RestoredObjects)
	}
	if len(result.SkippedObjects) != 1 || result.SkippedObjects[0] != "IDX_VEHICULO_COLOR" {
		t.Errorf("want skipped [IDX_VEHICULO_COLOR], got %v", result.SkippedObjects)
	}

	if !schemaObjectExists(t, db, "index", "IDX_VEHICULO_ID_USUARIO") {
		t.Error("want IDX_VEHICULO_ID_USUARIO recreated")
	}
	if schemaObjectExists(t, db, "index", "IDX_VEHICULO_COLOR") {
		t.Error("want IDX_VEHICULO_COLOR gone with its column")
	}
	if !schemaObjectExists(t, db, "trigger", "TRG_VEHICULO_PLACA") {
		t.Fatal("want TRG_VEHICULO_PLACA recreated")
	}
	err = db.Exec("INSERT INTO VEHICULO (ID_USUARIO, TIPO_VEHICULO, MARCA, PLACA, ANIO, PROPIETARIO) VALUES (12, 'Carro', 'Kia', '', 2022, 'Propio')").Error
	if err == nil {
		t.Error("want trigger to reject an empty PLACA")
	}
}

func TestRebuildService_Rebuild_NullValueInCheckRow(t *testing.T) {
	db := setupTestDB(t)
	seedOldVehiculo(t, db)
	service := NewRebuildService(repository.NewSchemaRepository(db), nil)

	plan := vehiculoPlan()
	plan.Probe["VERSION"] = nil
	if err := plan.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	result, err := service.Rebuild(context.Background(), plan, RebuildOptions{})
	if err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}
	if !result.Probed {
		t.Error("want check row inserted and removed")
	}
	var count int64
	db.Raw("SELECT COUNT(*) FROM VEHICULO").Scan(&count)
	if count != 2 {
		t.Errorf("want 2 rows after rebuild, got %d", count)
	}
}

func TestRebuildService_Rebuild_RollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	seedOldVehiculo(t, db)
	// NOT NULL違反となる行
	if err := db.Exec("INSERT INTO VEHICULO (ID_VEHICULO, ID_USUARIO) VALUES (3, 12)").Error; err != nil {
		t.Fatalf("failed to insert incomplete row: %v", err)
	}
	runs := &mockRunRecorder{}
	service := NewRebuildService(repository.NewSchemaRepository(db), runs)

	if _, err := service.Rebuild(ctx, vehiculoPlan(), RebuildOptions{}); err == nil {
		t.Fatal("want error for NOT NULL violation, got nil")
	}

	cols, err := repository.NewSchemaRepository(db).Columns(ctx, "VEHICULO")
	if err != nil {
		t.Fatalf("Columns failed: %v", err)
	}
	if len(cols) != 8 {
		t.Errorf("want original 8 columns after rollback, got %d", len(cols))
	}
	if tableExists(t, db, "VEHICULO_BACKUP") {
		t.Error("want backup rolled back")
	}
	if len(runs.runs) != 1 || runs.runs[0].Status != domain.RunStatusFailed {
		t.Errorf("want one failed run, got %v", runs.runs)
	}
}

func TestRebuildService_Rebuild_CopyColumnMismatch(t *testing.T) {
	db := setupTestDB(t)
	seedOldVehiculo(t, db)
	service := NewRebuildService(repository.NewSchemaRepository(db), nil)

	plan := vehiculoPlan()
	plan.CopyColumns = []string{"ID_VEHICULO", "VERSION"}

	_, err := service.Rebuild(context.Background(), plan, RebuildOptions{})
	if !errors.Is(err, domain.ErrColumnMismatch) {
		t.Errorf("want ErrColumnMismatch, got %v", err)
	}
}

func TestRebuildService_Rebuild_TableNotFound(t *testing.T) {
	service := NewRebuildService(repository.NewSchemaRepository(setupTestDB(t)), nil)

	_, err := service.Rebuild(context.Background(), vehiculoPlan(), RebuildOptions{})
	if !errors.Is(err, domain.ErrTableNotFound) {
		t.Errorf("want ErrTableNotFound, got %v", err)
	}
}

func TestRebuildService_Rebuild_ProbeFailure(t *testing.T) {
	db := setupTestDB(t)
	seedOldVehiculo(t, db)
	service := NewRebuildService(repository.NewSchemaRepository(db), nil)

	plan := vehiculoPlan()
	// NOT NULLのカラムを欠いたテスト行は挿入できない
	plan.Probe = map[string]any{"ID_USUARIO": 999}

	_, err := service.Rebuild(context.Background(), plan, RebuildOptions{})
	if !errors.Is(err, domain.ErrProbeFailed) {
		t.Errorf("want ErrProbeFailed, got %v", err)
	}
	if !tableExists(t, db, "VEHICULO") {
		t.Error("want original table kept")
	}
}

func TestRebuildService_BackupAndRestore(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	seedOldVehiculo(t, db)
	runs := &mockRunRecorder{}
	service := NewRebuildService(repository.NewSchemaRepository(db), runs)

	backup, rows, err := service.Backup(ctx, "VEHICULO", "")
	if err != nil {
		t.Fatalf("Backup failed: %v", err)
	}
	if backup != "VEHICULO_BACKUP" || rows != 2 {
		t.Errorf("want VEHICULO_BACKUP with 2 rows, got %s with %d", backup, rows)
	}

	if err := db.Exec("DELETE FROM VEHICULO").Error; err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	if err := service.Restore(ctx, "VEHICULO", ""); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	var count int64
	db.Raw("SELECT COUNT(*) FROM VEHICULO").Scan(&count)
	if count != 2 {
		t.Errorf("want 2 rows restored, got %d", count)
	}
	if tableExists(t, db, "VEHICULO_BACKUP") {
		t.Error("want backup renamed away")
	}

	err = service.Restore(ctx, "VEHICULO", "")
	if !errors.Is(err, domain.ErrBackupNotFound) {
		t.Errorf("want ErrBackupNotFound, got %v", err)
	}
	if len(runs.runs) != 3 {
		t.Errorf("want 3 recorded runs, got %d", len(runs.runs))
	}
}

func TestRebuildService_RecorderFailureDoesNotFailRebuild(t *testing.T) {
	db := setupTestDB(t)
	seedOldVehiculo(t, db)
	service := NewRebuildService(repository.NewSchemaRepository(db), &mockRunRecorder{err: errors.New("locked")})

	result, err := service.Rebuild(context.Background(), vehiculoPlan(), RebuildOptions{SkipProbe: true})
	if err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}
	if result.RunID != "" {
		t.Errorf("want empty run id, got %q", result.RunID)
	}
}
