package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeConfig creates a local-backend config in a temp dir.
func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	cfg := fmt.Sprintf(`server:
  port: 8080
storage:
  backend: local
  sqlite_path: %s
auth:
  admin_api_key: test-key
`, filepath.Join(dir, "physcio.db"))
	if err := os.WriteFile(path, []byte(cfg), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(t *testing.T, cfgPath string, args ...string) string {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("physcioctl %s: %v\n%s", strings.Join(args, " "), err, errOut.String())
	}
	return out.String()
}

// TestUsersCommands creates a user, grants premium and sends a message.
func TestUsersCommands(t *testing.T) {
	cfg := writeConfig(t)

	id := strings.TrimSpace(execute(t, cfg, "users", "create", "Ada Lovelace", "ada@example.com"))
	if id == "" {
		t.Fatal("users create printed no id")
	}

	if out := execute(t, cfg, "users", "premium", id); !strings.Contains(out, "premium=true") {
		t.Errorf("premium output = %q", out)
	}
	if out := execute(t, cfg, "users", "message", id, "Please", "book", "a", "review"); !strings.HasPrefix(out, "sent ") {
		t.Errorf("message output = %q", out)
	}

	out := execute(t, cfg, "users", "list")
	if !strings.Contains(out, "ada@example.com") {
		t.Errorf("list output missing user:\n%s", out)
	}
}

// TestProgramStatusWithoutPlan verifies status and log on a user with no
// active program.
func TestProgramStatusWithoutPlan(t *testing.T) {
	cfg := writeConfig(t)
	id := strings.TrimSpace(execute(t, cfg, "users", "create", "Bea", "bea@example.com"))

	if out := execute(t, cfg, "program", "status", id); !strings.Contains(out, "no active program") {
		t.Errorf("status output = %q", out)
	}
	if out := execute(t, cfg, "program", "log", id); !strings.Contains(out, "no_program") {
		t.Errorf("log output = %q", out)
	}
}

// TestStatsCommand verifies the dashboard counts include seeded journals.
func TestStatsCommand(t *testing.T) {
	cfg := writeConfig(t)

	out := execute(t, cfg, "stats")
	if !strings.Contains(out, "journals") || !strings.Contains(out, "7") {
		t.Errorf("stats output = %q", out)
	}
}
