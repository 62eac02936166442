package main

import "testing"

func TestRootCmdRegistersSubcommands(t *testing.T) {
	root := newRootCmd()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	if !names["check"] || !names["covdump"] {
		t.Fatalf("expected check and covdump subcommands, got %v", names)
	}
}
