package main

import "testing"

func TestVersionCommandExists(t *testing.T) {
	if versionCmd == nil {
		t.Fatal("versionCmd is nil")
	}
	if versionCmd.Use != "version" {
		t.Errorf("versionCmd.Use = %q, want %q", versionCmd.Use, "version")
	}
	if versionCmd.Run == nil {
		t.Error("versionCmd.Run should not be nil")
	}
}

func TestRootCommandWiring(t *testing.T) {
	if rootCmd.Use != "callisto" {
		t.Errorf("rootCmd.Use = %q, want %q", rootCmd.Use, "callisto")
	}

	names := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		names[cmd.Name()] = true
	}
	for _, want := range []string{"serve", "sync", "sweep", "cleanup", "version"} {
		if !names[want] {
			t.Errorf("Expected subcommand %q to be registered", want)
		}
	}

	if flag := rootCmd.PersistentFlags().Lookup("config"); flag == nil {
		t.Error("Expected a persistent --config flag")
	}
}
