package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	"go.uber.org/multierr"

	"github.com/MJE43/berghain-runner-go/internal/api"
	"github.com/MJE43/berghain-runner-go/internal/config"
)

// cmdServe runs the local inspection API until the context is cancelled.
func cmdServe(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	addr := fs.String("addr", cfg.ListenAddr, "bind address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}

	srv := api.New(st, cfg.ScenarioRoot, *addr)
	if err := srv.Start(); err != nil {
		st.Close()
		return err
	}
	fmt.Fprintf(stdout, "inspection API on http://%s (Ctrl-C to stop)\n", *addr)

	<-ctx.Done()
	fmt.Fprintln(stdout, "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return multierr.Combine(srv.Shutdown(shutdownCtx), st.Close())
}
