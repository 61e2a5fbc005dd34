package fileutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteFileAtomicReplacesContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "entry.json")

	if err := WriteFileAtomic(path, []byte("first"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := WriteFileAtomic(path, []byte("second"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "second" {
		t.Fatalf("content mismatch: got %q", got)
	}

	leftovers, err := filepath.Glob(filepath.Join(dir, "nested", ".*.tmp"))
	if err != nil {
		t.Fatal(err)
	}
	if len(leftovers) != 0 {
		t.Fatalf("expected temp files to be cleaned up, found %v", leftovers)
	}
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "out", "dst.txt")

	content := []byte("hello world")
	if err := os.WriteFile(src, content, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := CopyFile(src, dst); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(content) {
		t.Fatalf("content mismatch: got %q, want %q", got, content)
	}
}

func TestListFilesFiltersAndSorts(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.md", "a.txt", "sub/c.txt", ".hidden.txt", "image.png", ".git/config.txt"} {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(name), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := ListFiles(dir, ".txt", ".md")
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, entry := range entries {
		got = append(got, entry.RelPath)
	}
	want := []string{"a.txt", "b.md", "sub/c.txt"}
	if len(got) != len(want) {
		t.Fatalf("unexpected entries %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected entries %v", got)
		}
	}
}

func TestHashFilesChangesWithContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")
	if err := os.WriteFile(path, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}
	entries, err := ListFiles(dir)
	if err != nil {
		t.Fatal(err)
	}
	first, err := HashFiles(entries)
	if err != nil {
		t.Fatal(err)
	}
	again, err := HashFiles(entries)
	if err != nil {
		t.Fatal(err)
	}
	if first != again {
		t.Fatal("expected stable digest for unchanged files")
	}

	if err := os.WriteFile(path, []byte("v2"), 0o644); err != nil {
		t.Fatal(err)
	}
	second, err := HashFiles(entries)
	if err != nil {
		t.Fatal(err)
	}
	if first == second {
		t.Fatal("expected digest to change after edit")
	}
}
