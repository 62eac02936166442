package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewDefaultsToInfoLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf})
	if lvl, ok := log.(*logrus.Logger); !ok || lvl.GetLevel() != logrus.InfoLevel {
		t.Fatalf("expected info level logger, got %+v", log)
	}
}

func TestNewVerboseEnablesDebugLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf, Verbose: true})

	log.Debug("debug line")
	if !strings.Contains(buf.String(), "debug line") {
		t.Fatalf("expected debug line to be emitted, got %q", buf.String())
	}
}

func TestNewInfoLevelSuppressesDebug(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf})

	log.Debug("should not appear")
	if strings.Contains(buf.String(), "should not appear") {
		t.Fatal("expected debug line to be suppressed at info level")
	}
}
