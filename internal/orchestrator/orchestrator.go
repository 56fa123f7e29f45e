// Package orchestrator sequences one full scenario run: enter the scenario
// directory, create a game via the external create command, read the newest
// game id from the registry, commit the repository state under that id,
// then hand control to the external play command.
//
// Every step is fatal on failure except the commit, which is logged as a
// warning and skipped; a clean working tree is an expected state when the
// same scenario is re-run. There are no retries: this is a single-shot tool
// and the operator re-runs it after fixing the cause.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/MJE43/berghain-runner-go/internal/proc"
	"github.com/MJE43/berghain-runner-go/internal/registry"
	"github.com/MJE43/berghain-runner-go/internal/vcs"
)

// Config holds configuration for the run workflow.
type Config struct {
	// ScenarioRoot is the directory containing the scenario_<N> directories.
	// Defaults to the current directory.
	ScenarioRoot string

	// RepoRoot is the repository the commit step targets. When empty it is
	// resolved from ScenarioRoot with git rev-parse.
	RepoRoot string

	// CreateCommand and PlayCommand are the external program argv vectors,
	// run with the scenario directory as working directory.
	// Default to {"python3", "create_game.py"} and {"python3", "play_game.py"}.
	CreateCommand []string
	PlayCommand   []string

	// RegistryFile is the registry file name inside the scenario directory.
	// Defaults to registry.FileName.
	RegistryFile string

	// Runner executes the external commands. Defaults to proc.ExecRunner.
	Runner proc.Runner

	// Stdin, Stdout and Stderr are inherited by the external commands.
	// Default to the process streams.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Logger receives step progress and the commit warning.
	Logger *log.Logger
}

// Orchestrator runs the five-step scenario workflow.
type Orchestrator struct {
	cfg Config
	log *log.Logger
}

// Result reports a finished workflow: the extracted game identifier and
// the exit status to propagate.
type Result struct {
	GameID   string
	ExitCode int
}

// New creates an Orchestrator, filling zero config fields with defaults.
func New(cfg Config) *Orchestrator {
	if cfg.ScenarioRoot == "" {
		cfg.ScenarioRoot = "."
	}
	if len(cfg.CreateCommand) == 0 {
		cfg.CreateCommand = []string{"python3", "create_game.py"}
	}
	if len(cfg.PlayCommand) == 0 {
		cfg.PlayCommand = []string{"python3", "play_game.py"}
	}
	if cfg.RegistryFile == "" {
		cfg.RegistryFile = registry.FileName
	}
	if cfg.Runner == nil {
		cfg.Runner = proc.ExecRunner{}
	}
	if cfg.Stdin == nil {
		cfg.Stdin = os.Stdin
	}
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}
	if cfg.Stderr == nil {
		cfg.Stderr = os.Stderr
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[run] ", log.LstdFlags)
	}
	return &Orchestrator{cfg: cfg, log: logger}
}

// ScenarioDir maps a selector to its directory under root and verifies the
// directory exists.
func ScenarioDir(root, selector string) (string, error) {
	dir := filepath.Join(root, "scenario_"+selector)
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", NewNotFoundError(fmt.Sprintf("scenario directory %s does not exist", dir), err)
		}
		return "", NewNotFoundError(fmt.Sprintf("scenario directory %s is not accessible", dir), err)
	}
	if !info.IsDir() {
		return "", NewNotFoundError(fmt.Sprintf("%s is not a directory", dir), nil)
	}
	return dir, nil
}

// Run executes the workflow for the given scenario selector. On success the
// returned exit code is 0; when the play command fails its exit status is
// returned alongside the error so callers can propagate it.
func (o *Orchestrator) Run(ctx context.Context, selector string) (Result, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return Result{ExitCode: 1}, NewUsageError("scenario selector is required")
	}

	dir, err := ScenarioDir(o.cfg.ScenarioRoot, selector)
	if err != nil {
		return Result{ExitCode: ExitCode(err)}, err
	}
	o.log.Printf("scenario %s: %s", selector, dir)

	if err := o.runExternal(ctx, "create", o.cfg.CreateCommand, dir); err != nil {
		return Result{ExitCode: ExitCode(err)}, err
	}

	gameID, err := o.latestGameID(filepath.Join(dir, o.cfg.RegistryFile))
	if err != nil {
		return Result{ExitCode: ExitCode(err)}, err
	}
	o.log.Printf("game id %s", gameID)

	// The sole non-fatal step. A failure here (typically a clean tree) must
	// not keep the play command from running.
	if err := o.commit(ctx, gameID); err != nil {
		o.log.Printf("warning: commit step failed: %v", err)
	}

	if err := o.runExternal(ctx, "play", o.cfg.PlayCommand, dir); err != nil {
		return Result{GameID: gameID, ExitCode: ExitCode(err)}, err
	}
	return Result{GameID: gameID}, nil
}

// runExternal invokes one external command with inherited streams and the
// scenario directory as working directory.
func (o *Orchestrator) runExternal(ctx context.Context, step string, argv []string, dir string) error {
	o.log.Printf("%s: %s", step, strings.Join(argv, " "))
	code, err := o.cfg.Runner.Run(ctx, proc.Command{
		Name:   argv[0],
		Args:   argv[1:],
		Dir:    dir,
		Stdin:  o.cfg.Stdin,
		Stdout: o.cfg.Stdout,
		Stderr: o.cfg.Stderr,
	})
	if err != nil {
		return NewExternalCommandError(step, code, err)
	}
	return nil
}

// latestGameID reads the registry and classifies its failures into the
// workflow taxonomy.
func (o *Orchestrator) latestGameID(path string) (string, error) {
	gameID, err := registry.LatestGameID(path)
	switch {
	case err == nil:
		return gameID, nil
	case errors.Is(err, os.ErrNotExist):
		return "", NewNotFoundError(fmt.Sprintf("registry file %s does not exist after create", path), err)
	case errors.Is(err, registry.ErrEmpty):
		return "", NewEmptyRegistryError(fmt.Sprintf("registry file %s holds no games", path))
	default:
		return "", NewParseError(fmt.Sprintf("registry file %s is not a valid JSON object", path), err)
	}
}

// commit stages all changes at the repository root and commits them with
// the game id as the message.
func (o *Orchestrator) commit(ctx context.Context, gameID string) error {
	root := o.cfg.RepoRoot
	if root == "" {
		var err error
		root, err = vcs.Root(ctx, o.cfg.Runner, o.cfg.ScenarioRoot)
		if err != nil {
			return err
		}
	}
	repo, err := vcs.Open(ctx, o.cfg.Runner, root)
	if err != nil {
		return err
	}
	if err := repo.StageAll(ctx); err != nil {
		return err
	}
	if err := repo.Commit(ctx, gameID); err != nil {
		return err
	}
	o.log.Printf("committed %s", gameID)
	return nil
}
