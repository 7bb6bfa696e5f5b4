package db

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// dropAll removes everything migrations create, including golang-migrate's
// bookkeeping table, so each test starts from an empty schema.
func dropAll(t *testing.T, ctx context.Context, db *sql.DB) {
	t.Helper()
	for _, stmt := range []string{
		`DROP TABLE IF EXISTS feed_sessions CASCADE`,
		`DROP TABLE IF EXISTS kv CASCADE`,
		`DROP TABLE IF EXISTS schema_migrations CASCADE`,
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			t.Fatalf("clean: %v", err)
		}
	}
}

func TestRunMigrations(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	dropAll(t, ctx, db)

	if err := RunMigrations(db); err != nil {
		t.Fatalf("RunMigrations() error = %v", err)
	}

	for _, table := range []string{"feed_sessions", "kv"} {
		var exists bool
		err := db.QueryRow(`SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_name = $1
		)`, table).Scan(&exists)
		if err != nil {
			t.Fatalf("failed to check table %s: %v", table, err)
		}
		if !exists {
			t.Errorf("table %s does not exist after migration", table)
		}
	}

	version, dirty, err := GetMigrationVersion(db)
	if err != nil {
		t.Fatalf("GetMigrationVersion() error = %v", err)
	}
	if dirty {
		t.Error("migration version is dirty")
	}
	if version < 1 {
		t.Errorf("migration version = %d, want >= 1", version)
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	dropAll(t, ctx, db)

	if err := RunMigrations(db); err != nil {
		t.Fatalf("first RunMigrations() error = %v", err)
	}
	version1, dirty1, err := GetMigrationVersion(db)
	if err != nil {
		t.Fatalf("GetMigrationVersion() after first migration error = %v", err)
	}

	if err := RunMigrations(db); err != nil {
		t.Fatalf("second RunMigrations() error = %v", err)
	}
	version2, dirty2, err := GetMigrationVersion(db)
	if err != nil {
		t.Fatalf("GetMigrationVersion() after second migration error = %v", err)
	}

	if version1 != version2 {
		t.Errorf("version changed: %d -> %d (should be stable)", version1, version2)
	}
	if dirty1 != dirty2 {
		t.Errorf("dirty state changed: %v -> %v", dirty1, dirty2)
	}
}

func TestMigrationUpDown(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	dropAll(t, ctx, db)

	if err := RunMigrations(db); err != nil {
		t.Fatalf("RunMigrations() error = %v", err)
	}
	versionBefore, _, err := GetMigrationVersion(db)
	if err != nil {
		t.Fatalf("GetMigrationVersion() before down error = %v", err)
	}

	if err := MigrateDown(db); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}

	// Rolling back the only migration leaves no version and no tables.
	versionAfter, dirty, err := GetMigrationVersion(db)
	if err != nil {
		t.Fatalf("GetMigrationVersion() after down error = %v", err)
	}
	if dirty {
		t.Error("migration is dirty after down")
	}
	if versionAfter >= versionBefore {
		t.Errorf("version did not decrease: %d -> %d", versionBefore, versionAfter)
	}
	var exists bool
	err = db.QueryRow(`SELECT EXISTS (
		SELECT FROM information_schema.tables
		WHERE table_name = 'feed_sessions'
	)`).Scan(&exists)
	if err != nil {
		t.Fatalf("failed to check feed_sessions after down: %v", err)
	}
	if exists {
		t.Error("feed_sessions should be gone after rolling back the init migration")
	}

	if err := RunMigrations(db); err != nil {
		t.Fatalf("RunMigrations() after rollback error = %v", err)
	}
	versionFinal, dirty, err := GetMigrationVersion(db)
	if err != nil {
		t.Fatalf("GetMigrationVersion() after re-apply error = %v", err)
	}
	if dirty {
		t.Error("migration is dirty after re-apply")
	}
	if versionFinal != versionBefore {
		t.Errorf("version after re-apply = %d, want %d", versionFinal, versionBefore)
	}
}
