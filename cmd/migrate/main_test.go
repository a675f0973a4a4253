package main

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"002_core_tables.sql", "001_init_extensions.sql", "002_core_tables.down.sql",
		"003_indexes.sql", "003_indexes.down.sql", "README.md",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	up, down, err := discover(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantUp := []string{
		filepath.Join(dir, "001_init_extensions.sql"),
		filepath.Join(dir, "002_core_tables.sql"),
		filepath.Join(dir, "003_indexes.sql"),
	}
	wantDown := []string{
		filepath.Join(dir, "003_indexes.down.sql"),
		filepath.Join(dir, "002_core_tables.down.sql"),
	}
	if !reflect.DeepEqual(up, wantUp) {
		t.Errorf("up: expected %v, got %v", wantUp, up)
	}
	if !reflect.DeepEqual(down, wantDown) {
		t.Errorf("down: expected %v, got %v", wantDown, down)
	}
}

func TestDiscover_Empty(t *testing.T) {
	if _, _, err := discover(t.TempDir()); err == nil {
		t.Fatal("expected error for a folder without migrations")
	}
}
