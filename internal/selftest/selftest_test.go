package selftest

import "testing"

func TestRunPasses(t *testing.T) {
	if err := Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
}
