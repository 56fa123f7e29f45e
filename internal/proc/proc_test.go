package proc

import (
	"bytes"
	"context"
	"runtime"
	"strings"
	"testing"
)

func requirePOSIXShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}

func TestRunSuccess(t *testing.T) {
	requirePOSIXShell(t)

	var out bytes.Buffer
	code, err := ExecRunner{}.Run(context.Background(), Command{
		Name:   "sh",
		Args:   []string{"-c", "echo hello"},
		Stdout: &out,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if code != 0 {
		t.Errorf("exit code: expected 0, got %d", code)
	}
	if out.String() != "hello\n" {
		t.Errorf("stdout: expected %q, got %q", "hello\n", out.String())
	}
}

func TestRunNonZeroExit(t *testing.T) {
	requirePOSIXShell(t)

	code, err := ExecRunner{}.Run(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", "exit 7"},
	})
	if err == nil {
		t.Fatal("expected an error for non-zero exit")
	}
	if code != 7 {
		t.Errorf("exit code: expected 7, got %d", code)
	}
}

func TestRunMissingProgram(t *testing.T) {
	code, err := ExecRunner{}.Run(context.Background(), Command{
		Name: "definitely-not-a-real-program-4281",
	})
	if err == nil {
		t.Fatal("expected an error for a missing program")
	}
	if code != -1 {
		t.Errorf("exit code: expected -1, got %d", code)
	}
}

func TestRunEmptyName(t *testing.T) {
	code, err := ExecRunner{}.Run(context.Background(), Command{})
	if err == nil {
		t.Fatal("expected an error for an empty command name")
	}
	if code != -1 {
		t.Errorf("exit code: expected -1, got %d", code)
	}
}

func TestRunWorkingDirectory(t *testing.T) {
	requirePOSIXShell(t)

	dir := t.TempDir()
	var out bytes.Buffer
	_, err := ExecRunner{}.Run(context.Background(), Command{
		Name:   "sh",
		Args:   []string{"-c", "pwd"},
		Dir:    dir,
		Stdout: &out,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	// macOS may report /private-prefixed paths for temp dirs.
	got := out.String()
	if !strings.Contains(got, dir) {
		t.Errorf("working directory: expected output containing %q, got %q", dir, got)
	}
}
