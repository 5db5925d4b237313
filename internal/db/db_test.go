package db

import (
	"path/filepath"
	"testing"
)

func TestOpenSetsPragmas(t *testing.T) {
	database, err := Open(filepath.Join(t.TempDir(), "pragmas.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer database.Close()

	var mode string
	if err := database.Get(&mode, `PRAGMA journal_mode`); err != nil {
		t.Fatalf("read journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Fatalf("journal_mode=%q, want wal", mode)
	}
}
