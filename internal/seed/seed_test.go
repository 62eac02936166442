package seed

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteNumbersSeedsSequentially(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir, "sess1")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	p0, err := w.Write([]byte("abc"))
	if err != nil {
		t.Fatalf("write 0: %v", err)
	}
	p1, err := w.Write([]byte("de"))
	if err != nil {
		t.Fatalf("write 1: %v", err)
	}
	if filepath.Base(p0) != "0" || filepath.Base(p1) != "1" {
		t.Fatalf("seed names = %s, %s", p0, p1)
	}
	got, err := os.ReadFile(p0)
	if err != nil || string(got) != "abc" {
		t.Fatalf("seed 0 contents = %q, err %v", got, err)
	}
	want := filepath.Join(dir, "sess1", "seeds", "0")
	if p0 != want {
		t.Fatalf("path = %s, want %s", p0, want)
	}
}

func TestCounterTracksWrites(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir, "sess1")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := w.Write([]byte{byte(i)}); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}
	if w.Counter() != 3 {
		t.Fatalf("counter = %d, want 3", w.Counter())
	}
}
