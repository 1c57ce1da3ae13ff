package main

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errors.New("boom"), 1},
		{&scriptFailedError{failed: 3}, 2},
		{fmt.Errorf("run: %w", &scriptFailedError{failed: 1}), 2},
	}
	for _, tt := range tests {
		if got := exitCode(tt.err); got != tt.want {
			t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	versionCmd.Run(versionCmd, nil)
	if got := out.String(); !strings.HasPrefix(got, "auxlab "+version) || !strings.Contains(got, commit) {
		t.Errorf("version output = %q", got)
	}
}

func TestSubcommandsRegistered(t *testing.T) {
	for _, name := range []string{"run", "config", "version"} {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not registered: %v", name, err)
		}
	}
	for _, flag := range []string{"config", "log-file", "log-level", "no-watch", "no-history"} {
		if rootCmd.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("flag --%s missing", flag)
		}
	}
}
