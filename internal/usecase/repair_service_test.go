package usecase

import (
	"context"
	"errors"
	"testing"

	"employee-data-maintenance/internal/domain"
	"employee-data-maintenance/internal/repository"

	"gorm.io/gorm"
)

func newRepairService(db *gorm.DB, runs RunRecorder) *RepairService {
	return NewRepairService(repository.NewRepairRepository(db), repository.NewSchemaRepository(db), runs)
}

func seedUsuarios(t *testing.T, db *gorm.DB) {
	t.Helper()

	sql := `
		CREATE TABLE USUARIO (ID_USUARIO NUMBER, DOCUMENTO NUMBER, NOMBRE VARCHAR2(100));
		INSERT INTO USUARIO VALUES (3, 1000000001, 'Primero');
		INSERT INTO USUARIO VALUES (NULL, 1000000002, 'SinId');
		INSERT INTO USUARIO VALUES (4, 1000000001, 'Duplicado');
		INSERT INTO USUARIO VALUES (6, 99999999, 'Prueba');
	`
	if err := db.Exec(sql).Error; err != nil {
		t.Fatalf("failed to seed USUARIO: %v", err)
	}
}

func TestRepairService_AssignMissingUserIDs(t *testing.T) {
	db := setupTestDB(t)
	seedUsuarios(t, db)
	runs := &mockRunRecorder{}
	service := newRepairService(db, runs)

	n, err := service.AssignMissingUserIDs(context.Background())
	if err != nil {
		t.Fatalf("AssignMissingUserIDs failed: %v", err)
	}
	if n != 1 {
		t.Errorf("want 1 id assigned, got %d", n)
	}
	var id int64
	db.Raw("SELECT ID_USUARIO FROM USUARIO WHERE DOCUMENTO = 1000000002").Scan(&id)
	if id != 7 {
		t.Errorf("want id 7, got %d", id)
	}
	if len(runs.runs) != 1 || runs.runs[0].Operation != "repair.user-ids" {
		t.Errorf("want repair.user-ids run recorded, got %v", runs.runs)
	}
}

func TestRepairService_RemoveDuplicateUsers(t *testing.T) {
	db := setupTestDB(t)
	seedUsuarios(t, db)
	service := newRepairService(db, nil)

	result, err := service.RemoveDuplicateUsers(context.Background(), DefaultTestDocument)
	if err != nil {
		t.Fatalf("RemoveDuplicateUsers failed: %v", err)
	}
	if result.TestRowsDeleted != 1 || result.DuplicateRowsDeleted != 1 {
		t.Errorf("want 1 test row and 1 duplicate deleted, got %+v", result)
	}

	var names []string
	db.Raw("SELECT NOMBRE FROM USUARIO ORDER BY NOMBRE").Scan(&names)
	if len(names) != 2 || names[0] != "Primero" || names[1] != "SinId" {
		t.Errorf("want [Primero SinId], got %v", names)
	}
}

func TestRepairService_NullifyInvalidDates(t *testing.T) {
	db := setupTestDB(t)
	sql := `
		CREATE TABLE FAMILIA (ID_FAMILIA INTEGER PRIMARY KEY, FECHA_NACIMIENTO TEXT);
		INSERT INTO FAMILIA (FECHA_NACIMIENTO) VALUES ('1751950800000');
		INSERT INTO FAMILIA (FECHA_NACIMIENTO) VALUES ('2015-06-01');
	`
	if err := db.Exec(sql).Error; err != nil {
		t.Fatalf("failed to seed FAMILIA: %v", err)
	}
	service := newRepairService(db, nil)

	n, err := service.NullifyInvalidDates(context.Background(), "FAMILIA", "FECHA_NACIMIENTO", []string{DefaultInvalidDate})
	if err != nil {
		t.Fatalf("NullifyInvalidDates failed: %v", err)
	}
	if n != 1 {
		t.Errorf("want 1 value nullified, got %d", n)
	}
}

func TestRepairService_TableNotFound(t *testing.T) {
	service := newRepairService(setupTestDB(t), nil)

	_, err := service.AssignMissingUserIDs(context.Background())
	if !errors.Is(err, domain.ErrTableNotFound) {
		t.Errorf("want ErrTableNotFound, got %v", err)
	}
	_, err = service.NullifyInvalidDates(context.Background(), "FAMILIA", "FECHA_NACIMIENTO", nil)
	if !errors.Is(err, domain.ErrTableNotFound) {
		t.Errorf("want ErrTableNotFound, got %v", err)
	}
}

func TestRepairService_DropLegacyTables(t *testing.T) {
	db := setupTestDB(t)
	if err := db.Exec("CREATE TABLE vehiculos (id INTEGER); CREATE TABLE VEHICULO (ID_VEHICULO INTEGER);").Error; err != nil {
		t.Fatalf("failed to create tables: %v", err)
	}
	runs := &mockRunRecorder{}
	service := newRepairService(db, runs)

	dropped, err := service.DropLegacyTables(context.Background(), DefaultLegacyTables)
	if err != nil {
		t.Fatalf("DropLegacyTables failed: %v", err)
	}
	if len(dropped) != 1 || dropped[0] != "vehiculos" {
		t.Errorf("want [vehiculos] dropped, got %v", dropped)
	}
	if !tableExists(t, db, "VEHICULO") {
		t.Error("want VEHICULO kept")
	}
	if len(runs.runs) != 1 || runs.runs[0].Status != domain.RunStatusSuccess {
		t.Errorf("want one successful run, got %v", runs.runs)
	}
}
