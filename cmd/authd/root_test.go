package main

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"
)

func TestRootCmd_HasSubcommands(t *testing.T) {
	cmd := NewRootCmd()

	for _, name := range []string{"serve", "ensure-indexes"} {
		found, _, err := cmd.Find([]string{name})
		if err != nil || found.Name() != name {
			t.Fatalf("expected subcommand %q, got %v (%v)", name, found, err)
		}
	}
}

func TestServe_FailsWithoutSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "unset-below")
	if err := os.Unsetenv("JWT_SECRET"); err != nil {
		t.Fatal(err)
	}

	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"serve"})

	err := cmd.ExecuteContext(context.Background())
	if err == nil || !strings.Contains(err.Error(), "load config") {
		t.Fatalf("expected config error, got %v", err)
	}
}
