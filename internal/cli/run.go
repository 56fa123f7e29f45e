package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"

	"github.com/MJE43/berghain-runner-go/internal/config"
	"github.com/MJE43/berghain-runner-go/internal/orchestrator"
)

const runUsage = "Usage: berghain run [flags] <scenario>\n"

// cmdRun executes the scenario workflow: create a game via the external
// create command, checkpoint the repository under the new game id, then
// play. The play command's exit status becomes ours.
func cmdRun(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	root := fs.String("root", cfg.ScenarioRoot, "directory containing scenario_<N> folders")
	repo := fs.String("repo", cfg.RepoRoot, "git repository for the checkpoint commit (empty: discover)")
	createCmd := fs.String("create-cmd", cfg.CreateCommand, "game creation command")
	playCmd := fs.String("play-cmd", cfg.PlayCommand, "game play command")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() > 1 {
		fmt.Fprint(stderr, runUsage)
		return 2
	}

	o := orchestrator.New(orchestrator.Config{
		ScenarioRoot:  *root,
		RepoRoot:      *repo,
		CreateCommand: config.SplitCommand(*createCmd),
		PlayCommand:   config.SplitCommand(*playCmd),
		Stdout:        stdout,
		Stderr:        stderr,
		Logger:        log.New(stderr, "[run] ", log.LstdFlags),
	})

	res, err := o.Run(ctx, fs.Arg(0))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		if orchestrator.IsUsageError(err) {
			fmt.Fprint(stderr, runUsage)
		}
		return res.ExitCode
	}
	fmt.Fprintf(stdout, "game %s: play finished cleanly\n", res.GameID)
	return 0
}
