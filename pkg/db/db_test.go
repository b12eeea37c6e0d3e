package db_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/HomegrownMarine/sailing-calculations/pkg/db"
)

func TestDB(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "nested", "db_test.db")

	d, err := db.Init(path)
	if err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	if d == nil {
		t.Fatal("Init() returned nil DB")
	}
	d.Close()

	// Reopen runs migrations again on an existing schema
	d, err = db.Init(path)
	if err != nil {
		t.Fatalf("Init() on existing db failed: %v", err)
	}
	defer d.Close()

	var n int
	if err := d.QueryRow("SELECT count(*) FROM pragma_table_info('runs') WHERE name='settings'").Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("Expected settings column, got %d", n)
	}
}

func TestPruneRuns(t *testing.T) {
	d, err := db.Init(filepath.Join(t.TempDir(), "prune.db"))
	if err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	defer d.Close()

	if _, err := d.Exec(`INSERT INTO runs (id, created_at) VALUES ('old', '2000-01-01 00:00:00'), ('new', CURRENT_TIMESTAMP)`); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Exec(`INSERT INTO tacks (id, run_id) VALUES ('t1', 'old'), ('t2', 'new')`); err != nil {
		t.Fatal(err)
	}

	n, err := d.PruneRuns(24 * time.Hour)
	if err != nil {
		t.Fatalf("PruneRuns() failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 pruned run, got %d", n)
	}

	var tacks int
	if err := d.QueryRow("SELECT count(*) FROM tacks").Scan(&tacks); err != nil {
		t.Fatal(err)
	}
	if tacks != 1 {
		t.Errorf("Expected tacks of pruned run to cascade, %d left", tacks)
	}
}

func TestInitUnopenablePath(t *testing.T) {
	// A directory cannot be opened as a database file
	dir := t.TempDir()
	d, err := db.Init(dir)
	if err == nil {
		d.Close()
		t.Fatal("Init() on a directory should fail")
	}
	if d != nil {
		t.Error("Init() returned a DB alongside an error")
	}
}
