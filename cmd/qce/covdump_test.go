package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/qemu-qce/qce/internal/coverage"
)

func testLogger() *logrus.FieldLogger {
	var log logrus.FieldLogger = logrus.StandardLogger()
	return &log
}

func TestCovdumpReportsStats(t *testing.T) {
	db := coverage.New()
	db.Record(coverage.Hash(coverage.Trace{1}), coverage.Trace{1})
	db.Record(coverage.Hash(coverage.Trace{1, 2}), coverage.Trace{1, 2})

	path := filepath.Join(t.TempDir(), "coverage.db")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := db.WriteTo(f); err != nil {
		t.Fatalf("write: %v", err)
	}
	f.Close()

	cmd := newCovdumpCmd(testLogger())
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{path})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if out.Len() == 0 {
		t.Fatal("expected non-empty report")
	}
}

func TestCovdumpRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coverage.db")
	if err := os.WriteFile(path, []byte{0, 0, 0, 0, 0, 0, 0, 3, 0xff}, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cmd := newCovdumpCmd(testLogger())
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetArgs([]string{path})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for a corrupt coverage file")
	}
}
