package shared

import (
	"database/sql"
	"testing"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	ConfigureDatabase(db, 1, 1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrationRunner(t *testing.T) {
	t.Run("loadMigrations", func(t *testing.T) {
		migrations, err := loadMigrations()
		if err != nil {
			t.Fatalf("failed to load migrations: %v", err)
		}

		if len(migrations) < 2 {
			t.Fatalf("expected schema and seed migrations, got %d", len(migrations))
		}

		for i := 1; i < len(migrations); i++ {
			if migrations[i].Version <= migrations[i-1].Version {
				t.Errorf("migrations not sorted: version %d comes after %d", migrations[i].Version, migrations[i-1].Version)
			}
		}

		if migrations[0].Name != "create_tables" {
			t.Errorf("expected first migration create_tables, got %q", migrations[0].Name)
		}
	})

	t.Run("RunMigrations seeds catalog", func(t *testing.T) {
		db := newTestDB(t)

		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}

		var mangas, scripts int
		if err := db.QueryRow("SELECT COUNT(*) FROM mangas").Scan(&mangas); err != nil {
			t.Fatalf("failed to count mangas: %v", err)
		}
		if err := db.QueryRow("SELECT COUNT(*) FROM audio_scripts WHERE chapter_id = 'orv-demo'").Scan(&scripts); err != nil {
			t.Fatalf("failed to count scripts: %v", err)
		}
		if mangas != 8 {
			t.Errorf("expected 8 seeded mangas, got %d", mangas)
		}
		if scripts != 6 {
			t.Errorf("expected 6 seeded narration scripts, got %d", scripts)
		}
	})

	t.Run("Rollback", func(t *testing.T) {
		db := newTestDB(t)

		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}
		if err := RollbackMigration(db); err != nil {
			t.Fatalf("failed to rollback migration: %v", err)
		}

		var mangas int
		if err := db.QueryRow("SELECT COUNT(*) FROM mangas").Scan(&mangas); err != nil {
			t.Fatalf("mangas table should survive seed rollback: %v", err)
		}
		if mangas != 0 {
			t.Errorf("expected seed rows removed, got %d", mangas)
		}

		if err := RollbackMigration(db); err != nil {
			t.Fatalf("failed to rollback schema: %v", err)
		}
		if _, err := db.Exec("SELECT 1 FROM users LIMIT 1"); err == nil {
			t.Error("users table should be dropped after schema rollback")
		}
		if err := RollbackMigration(db); err == nil {
			t.Error("expected error when nothing is left to roll back")
		}
	})

	t.Run("Idempotent", func(t *testing.T) {
		db := newTestDB(t)

		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations first time: %v", err)
		}
		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations second time: %v", err)
		}

		statuses, err := Migrations(db)
		if err != nil {
			t.Fatalf("failed to list migrations: %v", err)
		}
		for _, s := range statuses {
			if !s.Applied {
				t.Errorf("migration %d should be applied", s.Version)
			}
		}
	})
}

func TestSplitStatements(t *testing.T) {
	script := "-- header\nCREATE TABLE a (id INTEGER);\n\nINSERT INTO a VALUES (1); -- trailing\n"
	got := splitStatements(script)
	if len(got) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(got), got)
	}
	if got[1] != "INSERT INTO a VALUES (1)" {
		t.Errorf("unexpected statement %q", got[1])
	}
}
