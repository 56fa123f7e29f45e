// Package cli implements the berghain command line: the scenario run
// workflow plus native game management, attempt history views, and the
// local inspection server.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
)

const usageText = `berghain - doorman for the nightclub admission challenge

Usage:
  berghain <command> [flags] [args]

Commands:
  run <scenario>      create a game, checkpoint the repo, and play it
  create <scenario>   create a new game and record it in the registry
  play [gameID]       play a registered game (newest by default)
  attempts [gameID]   show recorded attempts, recent ones when no game given
  leaderboard         rank completed attempts by fewest rejections
  player              show or change the stored player identity
  serve               run the local inspection API

BERGHAIN_* environment variables set defaults; command flags win.
Run "berghain <command> -h" for the flags of one command.
`

// Main dispatches a subcommand and returns the process exit code.
func Main(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usageText)
		return 2
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "run":
		return cmdRun(ctx, rest, stdout, stderr)
	case "play":
		return cmdPlay(ctx, rest, stdout, stderr)
	case "create":
		return exitStatus(cmdCreate(ctx, rest, stdout, stderr), stderr)
	case "attempts":
		return exitStatus(cmdAttempts(ctx, rest, stdout, stderr), stderr)
	case "leaderboard":
		return exitStatus(cmdLeaderboard(ctx, rest, stdout, stderr), stderr)
	case "player":
		return exitStatus(cmdPlayer(ctx, rest, stdout, stderr), stderr)
	case "serve":
		return exitStatus(cmdServe(ctx, rest, stdout, stderr), stderr)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usageText)
		return 0
	default:
		fmt.Fprintf(stderr, "berghain: unknown command %q\n\n", cmd)
		fmt.Fprint(stderr, usageText)
		return 2
	}
}

// exitStatus folds a command error into an exit code. Parse errors have
// already been reported by the flag package; -h is not an error at all.
func exitStatus(err error, stderr io.Writer) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, flag.ErrHelp):
		return 0
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
}
