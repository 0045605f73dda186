package fsutil

import (
	"errors"
	"io/fs"
	"path/filepath"
	"testing"
)

func TestOSFileSystem_Exists(t *testing.T) {
	fsys := OSFileSystem{}

	if !fsys.Exists("filesystem.go") {
		t.Error("expected filesystem.go to exist")
	}
	if fsys.Exists("nonexistent_file_xyz.go") {
		t.Error("expected nonexistent file to not exist")
	}
}

func TestOSFileSystem_WriteRenameRead(t *testing.T) {
	fsys := OSFileSystem{}
	dir := t.TempDir()

	tmp := filepath.Join(dir, "blob.tmp")
	final := filepath.Join(dir, "sub", "blob")
	if err := fsys.MkdirAll(filepath.Dir(final), 0755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	if err := fsys.WriteFile(tmp, []byte("payload"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := fsys.Rename(tmp, final); err != nil {
		t.Fatalf("Rename failed: %v", err)
	}

	data, err := fsys.ReadFile(final)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "payload" {
		t.Errorf("expected payload, got %q", data)
	}
	if fsys.Exists(tmp) {
		t.Error("temporary file should be gone after rename")
	}
}

func TestMemoryFileSystem_WriteAndRead(t *testing.T) {
	mfs := NewMemoryFileSystem()

	if err := mfs.WriteFile("/data/label_02/0000.txt", []byte("hello"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	data, err := mfs.ReadFile("/data/label_02/0000.txt")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("expected hello, got %q", data)
	}

	// Returned slices are copies.
	data[0] = 'X'
	again, _ := mfs.ReadFile("/data/label_02/0000.txt")
	if string(again) != "hello" {
		t.Errorf("stored data was mutated: %q", again)
	}

	if !mfs.Exists("/data/label_02") {
		t.Error("parent directory should be implied by the file path")
	}
	info, err := mfs.Stat("/data")
	if err != nil || !info.IsDir() {
		t.Errorf("expected /data to be a directory, got %v, %v", info, err)
	}
}

func TestMemoryFileSystem_Missing(t *testing.T) {
	mfs := NewMemoryFileSystem()

	if _, err := mfs.ReadFile("/nope"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
	if err := mfs.Remove("/nope"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
	if err := mfs.Rename("/nope", "/other"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
}

func TestMemoryFileSystem_RenameAndGlob(t *testing.T) {
	mfs := NewMemoryFileSystem()
	_ = mfs.WriteFile("/cache/a.cache.tmp", []byte("a"), 0644)
	_ = mfs.WriteFile("/cache/b.cache", []byte("b"), 0644)

	if err := mfs.Rename("/cache/a.cache.tmp", "/cache/a.cache"); err != nil {
		t.Fatalf("Rename failed: %v", err)
	}

	names, err := mfs.Glob("/cache/*.cache")
	if err != nil {
		t.Fatalf("Glob failed: %v", err)
	}
	if len(names) != 2 || names[0] != "/cache/a.cache" || names[1] != "/cache/b.cache" {
		t.Errorf("unexpected glob result: %v", names)
	}

	if err := mfs.Remove("/cache/b.cache"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	info, err := mfs.Stat("/cache/a.cache")
	if err != nil || info.Size() != 1 {
		t.Errorf("unexpected stat: %v, %v", info, err)
	}
}
