// Command berghain runs the nightclub admission challenge workflow:
// game creation, scenario checkpointing, the door strategy, and the
// attempt history tooling.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/MJE43/berghain-runner-go/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code := cli.Main(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
