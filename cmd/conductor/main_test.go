package main

import "testing"

func TestBuildRootCmdRegistersSubcommands(t *testing.T) {
	root := buildRootCmd()
	want := map[string]bool{"serve": false, "migrate": false, "inspect-agent": false}
	for _, cmd := range root.Commands() {
		name := cmd.Name()
		if _, ok := want[name]; ok {
			want[name] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Fatalf("expected a %q subcommand", name)
		}
	}
}
