package orchestrator

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MJE43/berghain-runner-go/internal/proc"
	"github.com/MJE43/berghain-runner-go/internal/registry"
)

// scriptedRunner plays the external commands the workflow shells out to:
// the create/play programs and git.
type scriptedRunner struct {
	calls      []string
	commits    []string
	onCreate   func(dir string) error
	createExit int
	playExit   int
	commitExit int
	commitOut  string
}

func (r *scriptedRunner) Run(_ context.Context, cmd proc.Command) (int, error) {
	switch cmd.Name {
	case "python3":
		switch cmd.Args[0] {
		case "create_game.py":
			r.calls = append(r.calls, "create")
			if r.createExit != 0 {
				return r.createExit, fmt.Errorf("exit status %d", r.createExit)
			}
			if r.onCreate != nil {
				if err := r.onCreate(cmd.Dir); err != nil {
					return 1, err
				}
			}
			return 0, nil
		case "play_game.py":
			r.calls = append(r.calls, "play")
			if r.playExit != 0 {
				return r.playExit, fmt.Errorf("exit status %d", r.playExit)
			}
			return 0, nil
		}
	case "git":
		sub := cmd.Args[2]
		r.calls = append(r.calls, "git "+sub)
		switch sub {
		case "rev-parse":
			if cmd.Stdout != nil {
				fmt.Fprintln(cmd.Stdout, ".git")
			}
			return 0, nil
		case "commit":
			r.commits = append(r.commits, cmd.Args[4])
			if r.commitExit != 0 {
				if cmd.Stdout != nil {
					fmt.Fprint(cmd.Stdout, r.commitOut)
				}
				return r.commitExit, fmt.Errorf("exit status %d", r.commitExit)
			}
			return 0, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("unexpected command %s", cmd.Name)
}

func writeRegistryFile(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, registry.FileName), []byte(content), 0o644); err != nil {
		t.Fatalf("write registry: %v", err)
	}
}

// newTestOrchestrator lays out <root>/scenario_1 and wires a scripted runner.
func newTestOrchestrator(t *testing.T, r *scriptedRunner) (*Orchestrator, string) {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "scenario_1")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatalf("mkdir scenario: %v", err)
	}
	o := New(Config{
		ScenarioRoot: root,
		RepoRoot:     root,
		Runner:       r,
		Stdout:       io.Discard,
		Stderr:       io.Discard,
		Logger:       log.New(io.Discard, "", 0),
	})
	return o, dir
}

func TestRunHappyPath(t *testing.T) {
	r := &scriptedRunner{}
	o, dir := newTestOrchestrator(t, r)
	r.onCreate = func(d string) error {
		writeRegistryFile(t, dir, `{"g1": {}, "g2": {}}`)
		return nil
	}

	res, err := o.Run(context.Background(), "1")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.GameID != "g2" {
		t.Errorf("game id: expected g2 (last key), got %s", res.GameID)
	}
	if res.ExitCode != 0 {
		t.Errorf("exit code: expected 0, got %d", res.ExitCode)
	}

	got := strings.Join(r.calls, ",")
	want := "create,git rev-parse,git add,git commit,play"
	if got != want {
		t.Errorf("call order: expected %s, got %s", want, got)
	}
	if len(r.commits) != 1 || r.commits[0] != "g2" {
		t.Errorf("commit message: expected [g2], got %v", r.commits)
	}
}

func TestRunMissingSelector(t *testing.T) {
	r := &scriptedRunner{}
	o, _ := newTestOrchestrator(t, r)

	res, err := o.Run(context.Background(), "  ")
	if !IsUsageError(err) {
		t.Fatalf("expected a usage error, got %v", err)
	}
	if res.ExitCode != 1 {
		t.Errorf("exit code: expected 1, got %d", res.ExitCode)
	}
	if len(r.calls) != 0 {
		t.Errorf("no commands should run, got %v", r.calls)
	}
}

func TestRunMissingScenarioDirectory(t *testing.T) {
	r := &scriptedRunner{}
	o, _ := newTestOrchestrator(t, r)

	res, err := o.Run(context.Background(), "9")
	if !IsNotFoundError(err) {
		t.Fatalf("expected a not-found error, got %v", err)
	}
	if res.ExitCode != 1 {
		t.Errorf("exit code: expected 1, got %d", res.ExitCode)
	}
	if len(r.calls) != 0 {
		t.Errorf("no commands should run for a missing directory, got %v", r.calls)
	}
}

func TestRunCreateFailureAborts(t *testing.T) {
	r := &scriptedRunner{createExit: 2}
	o, _ := newTestOrchestrator(t, r)

	res, err := o.Run(context.Background(), "1")
	if !IsExternalCommandError(err) {
		t.Fatalf("expected an external-command error, got %v", err)
	}
	if res.ExitCode != 2 {
		t.Errorf("exit code: expected 2 (propagated), got %d", res.ExitCode)
	}
	if got := strings.Join(r.calls, ","); got != "create" {
		t.Errorf("only create should run, got %s", got)
	}
}

func TestRunRegistryMissingAfterCreate(t *testing.T) {
	r := &scriptedRunner{}
	o, _ := newTestOrchestrator(t, r)

	_, err := o.Run(context.Background(), "1")
	if !IsNotFoundError(err) {
		t.Fatalf("expected a not-found error, got %v", err)
	}
}

func TestRunEmptyRegistry(t *testing.T) {
	r := &scriptedRunner{}
	o, dir := newTestOrchestrator(t, r)
	r.onCreate = func(string) error {
		writeRegistryFile(t, dir, `{}`)
		return nil
	}

	_, err := o.Run(context.Background(), "1")
	if !IsEmptyRegistryError(err) {
		t.Fatalf("expected an empty-registry error, got %v", err)
	}
	for _, call := range r.calls {
		if strings.HasPrefix(call, "git") || call == "play" {
			t.Errorf("no commit or play should happen on an empty registry, got %v", r.calls)
		}
	}
}

func TestRunMalformedRegistry(t *testing.T) {
	r := &scriptedRunner{}
	o, dir := newTestOrchestrator(t, r)
	r.onCreate = func(string) error {
		writeRegistryFile(t, dir, `{"g1": `)
		return nil
	}

	_, err := o.Run(context.Background(), "1")
	if !IsParseError(err) {
		t.Fatalf("expected a parse error, got %v", err)
	}
}

func TestRunRegistryNotAnObject(t *testing.T) {
	r := &scriptedRunner{}
	o, dir := newTestOrchestrator(t, r)
	r.onCreate = func(string) error {
		writeRegistryFile(t, dir, `["g1"]`)
		return nil
	}

	_, err := o.Run(context.Background(), "1")
	if !IsParseError(err) {
		t.Fatalf("expected a parse error, got %v", err)
	}
}

func TestRunCommitFailureIsNonFatal(t *testing.T) {
	r := &scriptedRunner{
		commitExit: 128,
		commitOut:  "fatal: could not open '.git/COMMIT_EDITMSG': Permission denied\n",
	}
	o, dir := newTestOrchestrator(t, r)
	r.onCreate = func(string) error {
		writeRegistryFile(t, dir, `{"g1": {}}`)
		return nil
	}

	res, err := o.Run(context.Background(), "1")
	if err != nil {
		t.Fatalf("commit failure must not fail the run: %v", err)
	}
	if res.GameID != "g1" || res.ExitCode != 0 {
		t.Errorf("expected g1/0, got %s/%d", res.GameID, res.ExitCode)
	}
	if r.calls[len(r.calls)-1] != "play" {
		t.Errorf("play must still run after a failed commit, calls: %v", r.calls)
	}
}

func TestRunCommitFailureDoesNotMaskPlayExit(t *testing.T) {
	// A hard commit failure and a failing play command: the play exit
	// status is still what propagates.
	r := &scriptedRunner{
		commitExit: 128,
		commitOut:  "fatal: unable to write new index file\n",
		playExit:   3,
	}
	o, dir := newTestOrchestrator(t, r)
	r.onCreate = func(string) error {
		writeRegistryFile(t, dir, `{"g1": {}}`)
		return nil
	}

	res, err := o.Run(context.Background(), "1")
	if !IsExternalCommandError(err) {
		t.Fatalf("expected an external-command error from play, got %v", err)
	}
	if res.ExitCode != 3 {
		t.Errorf("exit code: expected 3 from play, got %d", res.ExitCode)
	}
	if res.GameID != "g1" {
		t.Errorf("game id should still be reported, got %q", res.GameID)
	}
}

func TestRunPlayExitStatusPropagates(t *testing.T) {
	r := &scriptedRunner{playExit: 7}
	o, dir := newTestOrchestrator(t, r)
	r.onCreate = func(string) error {
		writeRegistryFile(t, dir, `{"g1": {}}`)
		return nil
	}

	res, err := o.Run(context.Background(), "1")
	if !IsExternalCommandError(err) {
		t.Fatalf("expected an external-command error, got %v", err)
	}
	if res.ExitCode != 7 {
		t.Errorf("exit code: expected 7, got %d", res.ExitCode)
	}
}

func TestRunTwiceTracksNewestKey(t *testing.T) {
	// An append-only create program yields a different id and a distinct
	// commit on every run.
	r := &scriptedRunner{}
	o, dir := newTestOrchestrator(t, r)
	run := 0
	r.onCreate = func(string) error {
		run++
		if run == 1 {
			writeRegistryFile(t, dir, `{"g1": {}}`)
		} else {
			writeRegistryFile(t, dir, `{"g1": {}, "g2": {}}`)
		}
		return nil
	}

	first, err := o.Run(context.Background(), "1")
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	second, err := o.Run(context.Background(), "1")
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	if first.GameID != "g1" || second.GameID != "g2" {
		t.Errorf("expected g1 then g2, got %s then %s", first.GameID, second.GameID)
	}
	if len(r.commits) != 2 || r.commits[0] != "g1" || r.commits[1] != "g2" {
		t.Errorf("expected commits [g1 g2], got %v", r.commits)
	}
}

func TestScenarioDirRejectsFile(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "scenario_5"), []byte("not a dir"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	_, err := ScenarioDir(root, "5")
	if !IsNotFoundError(err) {
		t.Errorf("expected a not-found error for a non-directory, got %v", err)
	}
}
