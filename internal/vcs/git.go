// Package vcs wraps the git operations the run workflow needs: resolving
// the enclosing repository root, staging everything, and committing. All
// commands are addressed with `git -C <dir>` so the process working
// directory is never touched.
package vcs

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/MJE43/berghain-runner-go/internal/proc"
)

// Repo performs git operations against a fixed repository root.
type Repo struct {
	root   string
	runner proc.Runner
}

// Root resolves the top-level directory of the repository enclosing dir.
func Root(ctx context.Context, runner proc.Runner, dir string) (string, error) {
	out, err := runGit(ctx, runner, dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", fmt.Errorf("vcs: %s is not inside a git repository: %w", dir, err)
	}
	root := strings.TrimSpace(out)
	if root == "" {
		return "", fmt.Errorf("vcs: could not resolve repository root from %s", dir)
	}
	return root, nil
}

// Open binds a Repo to the repository rooted at root. The root is verified
// with rev-parse so later failures point at the commands that caused them.
func Open(ctx context.Context, runner proc.Runner, root string) (*Repo, error) {
	if runner == nil {
		runner = proc.ExecRunner{}
	}
	if _, err := runGit(ctx, runner, root, "rev-parse", "--git-dir"); err != nil {
		return nil, fmt.Errorf("vcs: %s is not a git repository: %w", root, err)
	}
	return &Repo{root: root, runner: runner}, nil
}

// Root returns the repository root this Repo is bound to.
func (r *Repo) Root() string {
	return r.root
}

// StageAll stages every change in the working tree.
func (r *Repo) StageAll(ctx context.Context) error {
	if _, err := runGit(ctx, r.runner, r.root, "add", "-A"); err != nil {
		return fmt.Errorf("vcs: stage all: %w", err)
	}
	return nil
}

// Commit records the staged changes with the given message. A clean tree
// ("nothing to commit") is reported as success so callers can run the
// workflow repeatedly without special-casing the no-op.
func (r *Repo) Commit(ctx context.Context, message string) error {
	out, err := runGit(ctx, r.runner, r.root, "commit", "-m", message)
	if err != nil {
		if strings.Contains(out, "nothing to commit") {
			return nil
		}
		return fmt.Errorf("vcs: commit: %w", err)
	}
	return nil
}

// runGit executes one git command and returns its combined output.
func runGit(ctx context.Context, runner proc.Runner, dir string, args ...string) (string, error) {
	var out bytes.Buffer
	gitArgs := append([]string{"-C", dir}, args...)
	_, err := runner.Run(ctx, proc.Command{
		Name:   "git",
		Args:   gitArgs,
		Stdout: &out,
		Stderr: &out,
	})
	if err != nil {
		trimmed := strings.TrimSpace(out.String())
		if trimmed != "" {
			return out.String(), fmt.Errorf("git %s: %s: %w", strings.Join(args, " "), trimmed, err)
		}
		return out.String(), fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return out.String(), nil
}
